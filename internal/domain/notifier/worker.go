package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pilatesguru/studio-bot/internal/domain/content"
	"github.com/pilatesguru/studio-bot/internal/pkg/prompt"
	"github.com/pilatesguru/studio-bot/internal/pkg/yclients"
)

const recordsPerSweep = 200

// Records is the scheduling client surface the worker needs.
type Records interface {
	ListRecords(ctx context.Context, from, to time.Time, count int) ([]yclients.Record, error)
}

// Sender pushes one prompt to a chat outside of a request cycle.
type Sender interface {
	Send(ctx context.Context, chatID string, p prompt.Prompt) error
}

// Worker runs periodic sweeps over upcoming and recent reservations,
// sending day-before reminders and post-session feedback requests.
type Worker struct {
	records    Records
	flags      Repository
	sender     Sender
	interval   time.Duration
	sessionDur time.Duration
	loc        *time.Location
	now        func() time.Time
}

func NewWorker(records Records, flags Repository, sender Sender, interval time.Duration, sessionMin int, loc *time.Location) *Worker {
	if loc == nil {
		loc = time.Local
	}
	return &Worker{
		records:    records,
		flags:      flags,
		sender:     sender,
		interval:   interval,
		sessionDur: time.Duration(sessionMin) * time.Minute,
		loc:        loc,
		now:        time.Now,
	}
}

// Run sweeps once immediately and then on every tick until the context is
// canceled.
func (w *Worker) Run(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("notifier: worker started")
	w.Sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("notifier: worker stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep fetches records around now and dispatches whatever notifications
// are due. Each record carries its own failure domain: one bad record never
// blocks the rest.
func (w *Worker) Sweep(ctx context.Context) {
	now := w.now().In(w.loc)
	records, err := w.records.ListRecords(ctx, now.AddDate(0, 0, -1), now.AddDate(0, 0, 2), recordsPerSweep)
	if err != nil {
		log.Warn().Err(err).Msg("notifier: list records failed")
		return
	}

	for _, rec := range records {
		w.maybeRemind(ctx, rec, now)
		w.maybeAskFeedback(ctx, rec, now)
	}
}

// maybeRemind sends the day-before reminder for records starting 23 to 25
// hours from now.
func (w *Worker) maybeRemind(ctx context.Context, rec yclients.Record, now time.Time) {
	recordID := int64(rec.ID)
	chatID := rec.ChatID()
	if recordID == 0 || chatID == "" || !rec.Active() {
		return
	}
	start, ok := rec.StartTime(w.loc)
	if !ok {
		return
	}
	diff := start.Sub(now).Hours()
	if diff < 23 || diff > 25 {
		return
	}

	if done, err := w.flags.IsNotified(ctx, recordID, EventReminder); err != nil || done {
		return
	}

	trainer := rec.StaffName()
	if trainer == "" {
		trainer = "тренер"
	}
	text := fmt.Sprintf(
		"⏰ Напоминание о тренировке в %s\n\n"+
			"Завтра, %s в %s\n"+
			"Тренер: %s\n"+
			"Занятие: %s\n\n"+
			"Если нужно отменить или перенести — сделайте это за 20+ часов до начала.",
		content.Studio.Name, start.Format("02.01.2006"), start.Format("15:04"),
		trainer, rec.ServiceTitle(),
	)
	p := prompt.New(text,
		prompt.Btn("❌ Отменить/Перенести", "menu:records"),
		prompt.Btn("✅ Буду", fmt.Sprintf("rec:ok:%d", recordID)),
	)

	if err := w.sender.Send(ctx, chatID, p); err != nil {
		log.Warn().Err(err).Int64("record_id", recordID).Msg("notifier: reminder send failed")
		return
	}
	if err := w.flags.MarkNotified(ctx, recordID, EventReminder); err != nil {
		log.Warn().Err(err).Int64("record_id", recordID).Msg("notifier: mark reminder failed")
		return
	}
	log.Info().Int64("record_id", recordID).Str("chat_id", chatID).Msg("notifier: reminder sent")
}

// maybeAskFeedback asks how the session went 1.5 to 2.5 hours after it
// ended.
func (w *Worker) maybeAskFeedback(ctx context.Context, rec yclients.Record, now time.Time) {
	recordID := int64(rec.ID)
	chatID := rec.ChatID()
	if recordID == 0 || chatID == "" {
		return
	}
	start, ok := rec.StartTime(w.loc)
	if !ok {
		return
	}
	end := start.Add(w.sessionDur)
	diff := now.Sub(end).Hours()
	if diff < 1.5 || diff > 2.5 {
		return
	}

	if done, err := w.flags.IsNotified(ctx, recordID, EventFeedback); err != nil || done {
		return
	}

	greeting := ""
	if rec.Client != nil {
		if parts := strings.Fields(rec.Client.Name); len(parts) > 0 {
			greeting = ", " + parts[0]
		}
	}
	trainer := rec.StaffName()
	if trainer == "" {
		trainer = "тренера"
	}
	text := fmt.Sprintf(
		"👋 Как прошла тренировка в %s%s?\n\n"+
			"Занятие с тренером %s только что завершилось. Оцените, пожалуйста:",
		content.Studio.Name, greeting, trainer,
	)
	p := prompt.New(text,
		prompt.Btn("👍 Всё отлично!", fmt.Sprintf("fb:good:%d", recordID)),
		prompt.Btn("👎 Есть замечания", fmt.Sprintf("fb:bad:%d", recordID)),
	)

	if err := w.sender.Send(ctx, chatID, p); err != nil {
		log.Warn().Err(err).Int64("record_id", recordID).Msg("notifier: feedback send failed")
		return
	}
	if err := w.flags.MarkNotified(ctx, recordID, EventFeedback); err != nil {
		log.Warn().Err(err).Int64("record_id", recordID).Msg("notifier: mark feedback failed")
		return
	}
	log.Info().Int64("record_id", recordID).Str("chat_id", chatID).Msg("notifier: feedback request sent")
}
