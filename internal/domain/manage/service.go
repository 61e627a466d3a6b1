package manage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pilatesguru/studio-bot/internal/domain/content"
	"github.com/pilatesguru/studio-bot/internal/domain/session"
	"github.com/pilatesguru/studio-bot/internal/pkg/prompt"
	"github.com/pilatesguru/studio-bot/internal/pkg/yclients"
)

const (
	maxDates = 14
	maxSlots = 20

	// Records further out than this are not offered for management.
	lookaheadDays = 30
)

// Gateway is the scheduling client surface the manage flow needs.
type Gateway interface {
	ListClientRecords(ctx context.Context, phone string, from, to time.Time) ([]yclients.Record, error)
	CancelRecord(ctx context.Context, recordID int64) error
	RescheduleRecord(ctx context.Context, recordID, staffID, serviceID int64, datetime string) error
	ListDates(ctx context.Context, staffID, serviceID int64) ([]string, error)
	ListTimes(ctx context.Context, staffID int64, date string, serviceID int64) ([]yclients.Slot, error)
}

// Service drives the cancel/reschedule conversation.
type Service struct {
	gateway     Gateway
	noticeHours float64
	loc         *time.Location
	now         func() time.Time
}

func NewService(gateway Gateway, noticeHours int, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		gateway:     gateway,
		noticeHours: float64(noticeHours),
		loc:         loc,
		now:         time.Now,
	}
}

func mainMenuChoice() prompt.Choice {
	return prompt.Btn("Главное меню", "menu:main")
}

// ShowRecords lists the client's upcoming reservations.
func (s *Service) ShowRecords(ctx context.Context, st *session.State) prompt.Prompt {
	if st.ClientPhone == "" {
		return prompt.New(
			"Для просмотра записей укажите телефон. Поделитесь номером в начале диалога.",
			mainMenuChoice(),
		)
	}

	now := s.now().In(s.loc)
	records, err := s.gateway.ListClientRecords(ctx, st.ClientPhone, now, now.AddDate(0, 0, lookaheadDays))
	if err != nil {
		if errors.Is(err, yclients.ErrNotConfigured) {
			return prompt.New(content.UnavailableMessage(), mainMenuChoice())
		}
		log.Warn().Err(err).Msg("manage: list records failed")
		return prompt.New("Ошибка загрузки записей. Попробуйте позже.", mainMenuChoice())
	}

	active := records[:0]
	for _, rec := range records {
		if rec.Active() {
			active = append(active, rec)
		}
	}
	if len(active) == 0 {
		return prompt.New("У вас нет предстоящих записей", mainMenuChoice())
	}

	choices := make([]prompt.Choice, 0, len(active)+1)
	for _, rec := range active {
		choices = append(choices, prompt.Btn(
			s.recordLabel(rec),
			fmt.Sprintf("rec:%d", int64(rec.ID)),
		))
	}
	choices = append(choices, mainMenuChoice())

	st.Manage = session.Manage{Records: active}
	st.Step = session.StepManageList
	return prompt.New("Выберите запись для отмены или переноса:", choices...)
}

func (s *Service) recordLabel(rec yclients.Record) string {
	dateStr, timeStr := "?", "?"
	if start, ok := rec.StartTime(s.loc); ok {
		dateStr = start.Format("02.01")
		timeStr = start.Format("15:04")
	}
	trainer := rec.StaffName()
	if trainer == "" {
		trainer = "Тренер"
	}
	title := rec.ServiceTitle()
	if title == "" {
		title = "Занятие"
	}
	label := fmt.Sprintf("%s %s — %s (%s)", dateStr, timeStr, trainer, title)
	if r := []rune(label); len(r) > 64 {
		label = string(r[:64])
	}
	return label
}

// ShowRecord shows one record's details with cancel/reschedule actions. The
// late-notice warning appears when the session is closer than the policy
// allows.
func (s *Service) ShowRecord(st *session.State, recordID int64) prompt.Prompt {
	var record *yclients.Record
	for i := range st.Manage.Records {
		if int64(st.Manage.Records[i].ID) == recordID {
			record = &st.Manage.Records[i]
			break
		}
	}
	if record == nil {
		st.Reset()
		return prompt.New("Запись не найдена.", mainMenuChoice())
	}

	var startUnix int64
	dateStr, timeStr := "?", "?"
	if start, ok := record.StartTime(s.loc); ok {
		startUnix = start.Unix()
		dateStr = start.Format("02.01.2006")
		timeStr = start.Format("15:04")
	}

	trainer := record.StaffName()
	if trainer == "" {
		trainer = "Тренер"
	}
	title := record.ServiceTitle()
	if title == "" {
		title = "Занятие"
	}

	text := fmt.Sprintf("📅 Дата: %s\n🕐 Время: %s\n👤 Тренер: %s\n📋 Услуга: %s\n\n",
		dateStr, timeStr, trainer, title)
	if s.hoursUntil(startUnix) < s.noticeHours {
		text += fmt.Sprintf("⚠️ До тренировки менее %d часов. При отмене/переносе "+
			"возможно списание согласно правилам студии.\n\n", int(s.noticeHours))
	}
	text += "Выберите действие:"

	staffID, serviceID, _ := record.StaffServiceIDs()
	st.Manage.RecordID = recordID
	st.Manage.StaffID = staffID
	st.Manage.ServiceID = serviceID
	st.Manage.StartUnix = startUnix
	st.Step = session.StepManageRecord

	return prompt.New(text,
		prompt.Btn("❌ Отменить запись", "rec:cancel"),
		prompt.Btn("🔄 Перенести запись", "rec:move"),
		mainMenuChoice(),
	)
}

// hoursUntil returns hours from now to the given start. A record whose start
// could not be parsed counts as far in the future, so it manages freely.
func (s *Service) hoursUntil(startUnix int64) float64 {
	if startUnix == 0 {
		return 999
	}
	return time.Unix(startUnix, 0).Sub(s.now()).Hours()
}

// StartCancel asks for confirmation with wording based on how late the
// cancellation is and whether it is the first violation.
func (s *Service) StartCancel(st *session.State) prompt.Prompt {
	var text string
	switch {
	case s.hoursUntil(st.Manage.StartUnix) >= s.noticeHours:
		text = "Отмена бесплатна. Подтвердить отмену записи?"
	case st.LateCancels == 0:
		text = "Первое нарушение — средства остаются на депозите.\n\nПодтвердить отмену?"
	default:
		text = "Повторное нарушение — средства будут списаны.\n\nПодтвердить отмену?"
	}

	st.Step = session.StepManageCancel
	return prompt.New(text,
		prompt.Btn("✅ Да, отменить", "rec:cancel:yes"),
		prompt.Btn("❌ Нет", "menu:records"),
	)
}

// ConfirmCancel cancels the record. The late-cancel counter moves only on
// the first late cancellation, and only after the upstream cancel succeeds,
// so a failed request does not consume the free tier.
func (s *Service) ConfirmCancel(ctx context.Context, st *session.State) prompt.Prompt {
	recordID := st.Manage.RecordID
	late := s.hoursUntil(st.Manage.StartUnix) < s.noticeHours
	st.Reset()

	if err := s.gateway.CancelRecord(ctx, recordID); err != nil {
		if errors.Is(err, yclients.ErrNotConfigured) {
			return prompt.New(content.UnavailableMessage(), mainMenuChoice())
		}
		var apiErr *yclients.APIError
		if errors.As(err, &apiErr) {
			return prompt.New("❌ Не удалось отменить: "+apiErr.Message, mainMenuChoice())
		}
		log.Warn().Err(err).Int64("record_id", recordID).Msg("manage: cancel failed")
		return prompt.New("Ошибка при отмене. Попробуйте позже.", mainMenuChoice())
	}

	if late && st.LateCancels == 0 {
		st.LateCancels++
	}

	log.Info().Int64("record_id", recordID).Msg("manage: record canceled")
	return prompt.New("✅ Запись успешно отменена.", mainMenuChoice())
}

// StartReschedule shows new dates. Rescheduling is allowed only with enough
// notice; a record whose staff or service id cannot be resolved aborts.
func (s *Service) StartReschedule(ctx context.Context, st *session.State) prompt.Prompt {
	if s.hoursUntil(st.Manage.StartUnix) < s.noticeHours {
		st.Reset()
		return prompt.New(
			fmt.Sprintf("Перенос возможен только за %d+ часов до занятия.", int(s.noticeHours)),
			mainMenuChoice(),
		)
	}
	if st.Manage.StaffID == 0 || st.Manage.ServiceID == 0 {
		st.Reset()
		return prompt.New("Не удалось определить данные записи для переноса.", mainMenuChoice())
	}

	// The scratch stays on a transient failure so the same press retries.
	dates, err := s.gateway.ListDates(ctx, st.Manage.StaffID, st.Manage.ServiceID)
	if err != nil {
		if errors.Is(err, yclients.ErrNotConfigured) {
			st.Reset()
			return prompt.New(content.UnavailableMessage(), mainMenuChoice())
		}
		log.Warn().Err(err).Msg("manage: list dates failed")
		return prompt.New("Ошибка загрузки дат. Попробуйте позже.", mainMenuChoice())
	}
	if len(dates) == 0 {
		st.Reset()
		return prompt.New("Нет доступных дат для переноса.", mainMenuChoice())
	}

	choices := make([]prompt.Choice, 0, maxDates+1)
	for _, date := range dates {
		if len(choices) == maxDates {
			break
		}
		label := date
		if t, err := time.Parse("2006-01-02", date); err == nil {
			label = t.Format("02.01.2006")
		}
		choices = append(choices, prompt.Btn(label, "rec:date:"+date))
	}
	choices = append(choices, prompt.Btn("❌ Отмена", "menu:records"))

	st.Step = session.StepManageDate
	return prompt.New("Выберите новую дату для переноса:", choices...)
}

// ChooseDate shows the time keyboard for the picked date.
func (s *Service) ChooseDate(ctx context.Context, st *session.State, date string) prompt.Prompt {
	st.Manage.Date = date

	slots, err := s.gateway.ListTimes(ctx, st.Manage.StaffID, date, st.Manage.ServiceID)
	if err != nil {
		if errors.Is(err, yclients.ErrNotConfigured) {
			st.Reset()
			return prompt.New(content.UnavailableMessage(), mainMenuChoice())
		}
		log.Warn().Err(err).Msg("manage: list times failed")
		return prompt.New("Ошибка загрузки времени. Попробуйте позже.", mainMenuChoice())
	}
	if len(slots) == 0 {
		return prompt.New("Нет свободного времени в этот день. Выберите другую дату.", mainMenuChoice())
	}

	choices := make([]prompt.Choice, 0, maxSlots+1)
	for i, slot := range slots {
		if i == maxSlots {
			break
		}
		choices = append(choices, prompt.Btn(slot.Label(), "rec:time:"+strconv.Itoa(i)))
	}
	choices = append(choices, prompt.Btn("❌ Отмена", "menu:records"))

	st.Manage.Slots = slots
	st.Step = session.StepManageTime
	return prompt.New("Выберите время:", choices...)
}

// ChooseTime resolves the slot and asks for final confirmation.
func (s *Service) ChooseTime(st *session.State, idx int) prompt.Prompt {
	if idx < 0 || idx >= len(st.Manage.Slots) {
		return prompt.Alert("Время недоступно.")
	}

	st.Manage.Datetime = st.Manage.Slots[idx].Canonical(st.Manage.Date)
	st.Step = session.StepManageConfirm

	display := st.Manage.Datetime
	if t, err := time.Parse("2006-01-02 15:04:05", st.Manage.Datetime); err == nil {
		display = t.Format("02.01.2006 в 15:04")
	}
	return prompt.New(
		fmt.Sprintf("Перенос на:\n\n📅 Дата: %s\n\nПодтвердить перенос?", display),
		prompt.Btn("✅ Да, перенести", "rec:move:yes"),
		prompt.Btn("❌ Отмена", "menu:records"),
	)
}

// ConfirmReschedule moves the record to the chosen slot.
func (s *Service) ConfirmReschedule(ctx context.Context, st *session.State) prompt.Prompt {
	m := st.Manage
	st.Reset()

	if m.RecordID == 0 || m.StaffID == 0 || m.ServiceID == 0 || m.Datetime == "" {
		return prompt.New("Ошибка: неполные данные. Попробуйте снова.", mainMenuChoice())
	}

	if err := s.gateway.RescheduleRecord(ctx, m.RecordID, m.StaffID, m.ServiceID, m.Datetime); err != nil {
		if errors.Is(err, yclients.ErrNotConfigured) {
			return prompt.New(content.UnavailableMessage(), mainMenuChoice())
		}
		var apiErr *yclients.APIError
		if errors.As(err, &apiErr) {
			return prompt.New("❌ Не удалось перенести: "+apiErr.Message, mainMenuChoice())
		}
		log.Warn().Err(err).Int64("record_id", m.RecordID).Msg("manage: reschedule failed")
		return prompt.New("Ошибка при переносе. Попробуйте позже.", mainMenuChoice())
	}

	log.Info().Int64("record_id", m.RecordID).Str("datetime", m.Datetime).Msg("manage: record rescheduled")
	return prompt.New("✅ Запись перенесена.", mainMenuChoice())
}
