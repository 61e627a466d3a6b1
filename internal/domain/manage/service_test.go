package manage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pilatesguru/studio-bot/internal/domain/session"
	"github.com/pilatesguru/studio-bot/internal/pkg/yclients"
)

type fakeGateway struct {
	records []yclients.Record
	dates   []string
	slots   []yclients.Slot

	recordsErr error
	cancelErr  error
	moveErr    error
	datesErr   error
	timesErr   error

	canceled []int64
	moved    []moveCall
}

type moveCall struct {
	recordID, staffID, serviceID int64
	datetime                     string
}

func (f *fakeGateway) ListClientRecords(ctx context.Context, phone string, from, to time.Time) ([]yclients.Record, error) {
	return f.records, f.recordsErr
}

func (f *fakeGateway) CancelRecord(ctx context.Context, recordID int64) error {
	f.canceled = append(f.canceled, recordID)
	return f.cancelErr
}

func (f *fakeGateway) RescheduleRecord(ctx context.Context, recordID, staffID, serviceID int64, datetime string) error {
	f.moved = append(f.moved, moveCall{recordID, staffID, serviceID, datetime})
	return f.moveErr
}

func (f *fakeGateway) ListDates(ctx context.Context, staffID, serviceID int64) ([]string, error) {
	if f.datesErr != nil {
		return nil, f.datesErr
	}
	return f.dates, nil
}

func (f *fakeGateway) ListTimes(ctx context.Context, staffID int64, date string, serviceID int64) ([]yclients.Slot, error) {
	if f.timesErr != nil {
		return nil, f.timesErr
	}
	return f.slots, nil
}

func testService(t *testing.T, gw *fakeGateway, now time.Time) *Service {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	svc := NewService(gw, 20, loc)
	svc.now = func() time.Time { return now }
	return svc
}

func recordJSON(t *testing.T, raw string) yclients.Record {
	t.Helper()
	var rec yclients.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	return rec
}

func TestRescheduleEligibilityBoundary(t *testing.T) {
	now := time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		hoursLeft float64
		allowed   bool
	}{
		{"just under notice", 19.9, false},
		{"exactly at notice", 20.0, true},
		{"just over notice", 20.1, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			gw := &fakeGateway{dates: []string{"2025-06-15"}}
			svc := testService(t, gw, now)
			st := &session.State{Step: session.StepManageRecord}
			st.Manage.RecordID = 10
			st.Manage.StaffID = 2
			st.Manage.ServiceID = 1
			st.Manage.StartUnix = now.Add(time.Duration(c.hoursLeft * float64(time.Hour))).Unix()

			p := svc.StartReschedule(context.Background(), st)
			if c.allowed {
				if st.Step != session.StepManageDate {
					t.Fatalf("expected date step, got %q (%q)", st.Step, p.Text)
				}
			} else {
				if !strings.Contains(p.Text, "20+ часов") {
					t.Fatalf("expected refusal, got %q", p.Text)
				}
				if st.Step != session.StepIdle {
					t.Fatalf("refusal must reset the flow, got %q", st.Step)
				}
			}
		})
	}
}

func TestRescheduleUnresolvableIDsAborts(t *testing.T) {
	now := time.Now()
	svc := testService(t, &fakeGateway{dates: []string{"2025-06-15"}}, now)
	st := &session.State{Step: session.StepManageRecord}
	st.Manage.RecordID = 10
	st.Manage.StartUnix = now.Add(48 * time.Hour).Unix()

	p := svc.StartReschedule(context.Background(), st)
	if !strings.Contains(p.Text, "Не удалось определить") {
		t.Fatalf("unexpected prompt: %q", p.Text)
	}
	if st.Step != session.StepIdle {
		t.Fatalf("abort must reset the flow, got %q", st.Step)
	}
}

func TestCancelWordingTiers(t *testing.T) {
	now := time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC)
	svc := testService(t, &fakeGateway{}, now)

	cases := []struct {
		name        string
		hoursLeft   float64
		lateCancels int
		want        string
	}{
		{"free cancel", 30, 0, "Отмена бесплатна"},
		{"first violation", 5, 0, "Первое нарушение"},
		{"repeat violation", 5, 1, "Повторное нарушение"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			st := &session.State{Step: session.StepManageRecord, LateCancels: c.lateCancels}
			st.Manage.StartUnix = now.Add(time.Duration(c.hoursLeft * float64(time.Hour))).Unix()

			p := svc.StartCancel(st)
			if !strings.Contains(p.Text, c.want) {
				t.Fatalf("expected %q in prompt, got %q", c.want, p.Text)
			}
			if st.Step != session.StepManageCancel {
				t.Fatalf("expected cancel step, got %q", st.Step)
			}
		})
	}
}

func TestLateCancelCounterMovesOnlyOnce(t *testing.T) {
	now := time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	// First late cancellation increments.
	gw := &fakeGateway{}
	svc := testService(t, gw, now)
	st := &session.State{Step: session.StepManageCancel}
	st.Manage.RecordID = 10
	st.Manage.StartUnix = now.Add(5 * time.Hour).Unix()
	svc.ConfirmCancel(ctx, st)
	if st.LateCancels != 1 {
		t.Fatalf("expected counter 1 after first late cancel, got %d", st.LateCancels)
	}
	if len(gw.canceled) != 1 || gw.canceled[0] != 10 {
		t.Fatalf("expected record 10 canceled, got %v", gw.canceled)
	}

	// Second late cancellation does not move the counter again.
	st.Manage.RecordID = 11
	st.Manage.StartUnix = now.Add(5 * time.Hour).Unix()
	svc.ConfirmCancel(ctx, st)
	if st.LateCancels != 1 {
		t.Fatalf("counter must stay at 1, got %d", st.LateCancels)
	}

	// A timely cancellation never touches it.
	fresh := &session.State{Step: session.StepManageCancel}
	fresh.Manage.RecordID = 12
	fresh.Manage.StartUnix = now.Add(48 * time.Hour).Unix()
	svc.ConfirmCancel(ctx, fresh)
	if fresh.LateCancels != 0 {
		t.Fatalf("timely cancel must not move the counter, got %d", fresh.LateCancels)
	}
}

func TestFailedCancelKeepsFreeTier(t *testing.T) {
	now := time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	gw := &fakeGateway{cancelErr: errors.New("upstream down")}
	svc := testService(t, gw, now)
	st := &session.State{Step: session.StepManageCancel}
	st.Manage.RecordID = 10
	st.Manage.StartUnix = now.Add(5 * time.Hour).Unix()

	p := svc.ConfirmCancel(ctx, st)
	if !strings.Contains(p.Text, "Ошибка при отмене") {
		t.Fatalf("unexpected prompt: %q", p.Text)
	}
	if st.LateCancels != 0 {
		t.Fatalf("failed cancel must not move the counter, got %d", st.LateCancels)
	}

	// The retry that actually cancels consumes the tier.
	gw.cancelErr = nil
	st.Manage.RecordID = 10
	st.Manage.StartUnix = now.Add(5 * time.Hour).Unix()
	svc.ConfirmCancel(ctx, st)
	if st.LateCancels != 1 {
		t.Fatalf("expected counter 1 after successful late cancel, got %d", st.LateCancels)
	}
}

func TestRescheduleKeepsStateOnGatewayError(t *testing.T) {
	now := time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	gw := &fakeGateway{
		datesErr: errors.New("timeout"),
		dates:    []string{"2025-06-15"},
		slots:    []yclients.Slot{{Time: "11:30"}},
	}
	svc := testService(t, gw, now)
	st := &session.State{Step: session.StepManageRecord}
	st.Manage.RecordID = 10
	st.Manage.StaffID = 2
	st.Manage.ServiceID = 1
	st.Manage.StartUnix = now.Add(48 * time.Hour).Unix()

	p := svc.StartReschedule(ctx, st)
	if !strings.Contains(p.Text, "Попробуйте позже") {
		t.Fatalf("unexpected prompt: %q", p.Text)
	}
	if st.Step != session.StepManageRecord || st.Manage.RecordID != 10 {
		t.Fatalf("scratch must survive the failure: step=%q manage=%+v", st.Step, st.Manage)
	}

	// The same press retries once the gateway recovers.
	gw.datesErr = nil
	svc.StartReschedule(ctx, st)
	if st.Step != session.StepManageDate {
		t.Fatalf("expected date step after retry, got %q", st.Step)
	}

	gw.timesErr = errors.New("timeout")
	svc.ChooseDate(ctx, st, "2025-06-15")
	if st.Step != session.StepManageDate {
		t.Fatalf("scratch must survive the failure, got %q", st.Step)
	}

	gw.timesErr = nil
	svc.ChooseDate(ctx, st, "2025-06-15")
	if st.Step != session.StepManageTime {
		t.Fatalf("expected time step after retry, got %q", st.Step)
	}
}

func TestShowRecordsFiltersInactive(t *testing.T) {
	now := time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC)
	gw := &fakeGateway{records: []yclients.Record{
		recordJSON(t, `{"id": 1, "datetime": "2025-06-10 10:00:00", "staff": {"id": 2, "name": "Anna"}, "services": [{"id": 1, "title": "Personal"}]}`),
		recordJSON(t, `{"id": 2, "datetime": "2025-06-11 10:00:00", "deleted": true}`),
		recordJSON(t, `{"id": 3, "datetime": "2025-06-12 10:00:00", "attendance": -1}`),
	}}
	svc := testService(t, gw, now)
	st := &session.State{ClientPhone: "+79001234567"}

	p := svc.ShowRecords(context.Background(), st)
	if st.Step != session.StepManageList {
		t.Fatalf("expected record list step, got %q", st.Step)
	}
	// One record button plus the menu button.
	if len(p.Choices) != 2 {
		t.Fatalf("expected 1 active record, got %d choices", len(p.Choices))
	}
	if p.Choices[0].Token != "rec:1" {
		t.Fatalf("unexpected record token %q", p.Choices[0].Token)
	}
	if !strings.Contains(p.Choices[0].Label, "10.06 10:00") || !strings.Contains(p.Choices[0].Label, "Anna") {
		t.Fatalf("unexpected record label %q", p.Choices[0].Label)
	}
}

func TestShowRecordsWithoutPhone(t *testing.T) {
	svc := testService(t, &fakeGateway{}, time.Now())
	st := &session.State{}
	p := svc.ShowRecords(context.Background(), st)
	if !strings.Contains(p.Text, "укажите телефон") {
		t.Fatalf("unexpected prompt: %q", p.Text)
	}
}

func TestRescheduleFullFlow(t *testing.T) {
	now := time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC)
	gw := &fakeGateway{
		records: []yclients.Record{
			recordJSON(t, `{"id": 10, "datetime": "2025-06-12 10:00:00", "staff_id": 2, "services": [{"id": 1, "title": "Personal"}]}`),
		},
		dates: []string{"2025-06-15"},
		slots: []yclients.Slot{{Time: "11:30"}},
	}
	svc := testService(t, gw, now)
	ctx := context.Background()
	st := &session.State{ClientPhone: "+79001234567"}

	svc.ShowRecords(ctx, st)
	svc.ShowRecord(st, 10)
	if st.Manage.StaffID != 2 || st.Manage.ServiceID != 1 {
		t.Fatalf("ids not resolved: %+v", st.Manage)
	}

	svc.StartReschedule(ctx, st)
	if st.Step != session.StepManageDate {
		t.Fatalf("expected date step, got %q", st.Step)
	}

	svc.ChooseDate(ctx, st, "2025-06-15")
	if st.Step != session.StepManageTime {
		t.Fatalf("expected time step, got %q", st.Step)
	}

	p := svc.ChooseTime(st, 0)
	if st.Manage.Datetime != "2025-06-15 11:30:00" {
		t.Fatalf("unexpected canonical datetime %q", st.Manage.Datetime)
	}
	if !strings.Contains(p.Text, "15.06.2025 в 11:30") {
		t.Fatalf("unexpected confirm prompt %q", p.Text)
	}

	done := svc.ConfirmReschedule(ctx, st)
	if len(gw.moved) != 1 {
		t.Fatalf("expected one reschedule call, got %d", len(gw.moved))
	}
	m := gw.moved[0]
	if m.recordID != 10 || m.staffID != 2 || m.serviceID != 1 || m.datetime != "2025-06-15 11:30:00" {
		t.Fatalf("unexpected reschedule call: %+v", m)
	}
	if !strings.Contains(done.Text, "перенесена") {
		t.Fatalf("unexpected final prompt %q", done.Text)
	}
	if st.Step != session.StepIdle {
		t.Fatalf("flow must reset, got %q", st.Step)
	}
}

func TestChooseTimeStaleIndex(t *testing.T) {
	svc := testService(t, &fakeGateway{}, time.Now())
	st := &session.State{Step: session.StepManageTime}
	st.Manage.Slots = []yclients.Slot{{Time: "11:30"}}

	if p := svc.ChooseTime(st, 3); !p.Alert {
		t.Fatal("expected alert for stale index")
	}
	if st.Step != session.StepManageTime {
		t.Fatalf("state must be unchanged, got %q", st.Step)
	}
}
