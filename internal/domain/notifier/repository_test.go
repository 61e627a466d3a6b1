package notifier

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func testRepository(t *testing.T) Repository {
	t.Helper()
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skipf("Skipping notifier repository test: TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		t.Skipf("Skipping notifier repository test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	t.Cleanup(func() {
		db.Exec(`DELETE FROM notified_events WHERE record_id IN (900001, 900002)`)
	})
	return repo
}

func TestMarkAndCheckNotified(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	got, err := repo.IsNotified(ctx, 900001, EventReminder)
	if err != nil {
		t.Fatalf("is notified: %v", err)
	}
	if got {
		t.Fatal("fresh record must not be notified")
	}

	if err := repo.MarkNotified(ctx, 900001, EventReminder); err != nil {
		t.Fatalf("mark notified: %v", err)
	}
	got, err = repo.IsNotified(ctx, 900001, EventReminder)
	if err != nil {
		t.Fatalf("is notified: %v", err)
	}
	if !got {
		t.Fatal("marked record must be notified")
	}

	// Same record, different event.
	got, err = repo.IsNotified(ctx, 900001, EventFeedback)
	if err != nil {
		t.Fatalf("is notified: %v", err)
	}
	if got {
		t.Fatal("events are tracked independently")
	}
}

func TestMarkNotifiedIdempotent(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	if err := repo.MarkNotified(ctx, 900002, EventFeedback); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if err := repo.MarkNotified(ctx, 900002, EventFeedback); err != nil {
		t.Fatalf("second mark must not error: %v", err)
	}
}
