package notifier

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Notification events tracked per record.
const (
	EventReminder = "reminder"
	EventFeedback = "feedback"
)

// Repository remembers which notifications were already sent, so the hourly
// sweeps never message the same record twice.
type Repository interface {
	EnsureSchema(ctx context.Context) error
	IsNotified(ctx context.Context, recordID int64, event string) (bool, error)
	MarkNotified(ctx context.Context, recordID int64, event string) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates the notified-events repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS notified_events (
			record_id  BIGINT      NOT NULL,
			event      TEXT        NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (record_id, event)
		)
	`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

func (r *repository) IsNotified(ctx context.Context, recordID int64, event string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM notified_events WHERE record_id = $1 AND event = $2)`
	var exists bool
	err := r.db.GetContext(ctx, &exists, query, recordID, event)
	return exists, err
}

func (r *repository) MarkNotified(ctx context.Context, recordID int64, event string) error {
	query := `INSERT INTO notified_events (record_id, event) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, recordID, event)
	return err
}
