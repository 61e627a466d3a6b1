package booking

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
	"github.com/pilatesguru/studio-bot/internal/pkg/yookassa"
)

// Presentation caps: long upstream lists are cut before rendering.
const (
	maxServices = 15
	maxStaff    = 10
	maxDates    = 14
	maxSlots    = 20
)

// Catalog is the scheduling gateway surface the flow needs.
type Catalog interface {
	ListServices(ctx context.Context, staffID int64) ([]yclients.Service, error)
	ListStaff(ctx context.Context, serviceID int64) ([]yclients.Staff, error)
	ListDates(ctx context.Context, staffID, serviceID int64) ([]string, error)
	ListTimes(ctx context.Context, staffID int64, date string, serviceID int64) ([]yclients.Slot, error)
	CreateRecord(ctx context.Context, req yclients.CreateRecordRequest) (int64, error)
}

// Payments is the payment gateway surface the flow needs.
type Payments interface {
	CreatePayment(ctx context.Context, req yookassa.CreatePaymentRequest) (*yookassa.Payment, error)
	CheckPayment(ctx context.Context, paymentID string) (string, error)
}

// Service drives the booking conversation. Methods mutate the passed state;
// the caller persists it after each event.
type Service struct {
	catalog   Catalog
	payments  Payments
	returnURL string
	loc       *time.Location
}

func NewService(catalog Catalog, payments Payments, returnURL string, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		catalog:   catalog,
		payments:  payments,
		returnURL: returnURL,
		loc:       loc,
	}
}

// Start enters the flow: drop any previous draft (the preferred trainer
// survives via State.Reset) and show the service keyboard.
func (s *Service) Start(ctx context.Context, st *session.State) prompt.Prompt {
	st.Reset()

	services, err := s.catalog.ListServices(ctx, 0)
	if err != nil {
		if errors.Is(err, yclients.ErrNotConfigured) {
			return prompt.New(content.UnavailableMessage())
		}
		log.Warn().Err(err).Msg("booking: list services failed")
		return prompt.New("Ошибка при загрузке услуг. Попробуйте позже.")
	}

	options := make([]session.BookingService, 0, len(services))
	for _, svc := range services {
		options = append(options, session.BookingService{
			ID:    svc.Key(),
			Title: svc.Name(),
			Price: svc.Amount(),
		})
	}
	if len(options) == 0 {
		options = fallbackServices()
	}
	if len(options) == 0 {
		st.Reset()
		return prompt.New(
			"К сожалению, сейчас нет доступных услуг для записи. " +
				"Попробуйте позже или свяжитесь с нами.",
		)
	}

	st.Draft.Services = options
	st.Step = session.StepService
	return servicesPrompt(options)
}

// fallbackServices turns the static price list into pseudo-services with
// sequential ids.
func fallbackServices() []session.BookingService {
	var options []session.BookingService
	id := int64(1)
	for _, category := range content.Prices {
		for _, item := range category.Items {
			options = append(options, session.BookingService{
				ID:    id,
				Title: item.Name,
				Price: item.Price,
			})
			id++
		}
	}
	return options
}

// ChooseService records the pick and shows the staff keyboard.
func (s *Service) ChooseService(ctx context.Context, st *session.State, serviceID int64) prompt.Prompt {
	st.Draft.ServiceID = serviceID
	for _, svc := range st.Draft.Services {
		if svc.ID == serviceID {
			st.Draft.ServiceTitle = svc.Title
			st.Draft.Price = svc.Price
			break
		}
	}
	return s.showStaff(ctx, st)
}

func (s *Service) showStaff(ctx context.Context, st *session.State) prompt.Prompt {
	staff, err := s.fetchStaff(ctx, st.Draft.ServiceID)
	if err != nil {
		if errors.Is(err, yclients.ErrNotConfigured) {
			return prompt.New(content.UnavailableMessage())
		}
		log.Warn().Err(err).Int64("service_id", st.Draft.ServiceID).Msg("booking: list staff failed")
		return prompt.New("Ошибка при загрузке инструкторов. Попробуйте позже.")
	}
	if len(staff) == 0 {
		return prompt.New("Нет доступных инструкторов для этой услуги. Выберите другую услугу.",
			prompt.Btn("⬅️ Назад", "back:service"),
			prompt.Btn("❌ Отмена", "menu:main"),
		)
	}

	staff = reorderPreferred(staff, st.PreferredTrainer)
	st.Step = session.StepStaff
	return staffPrompt(staff, st.PreferredTrainer)
}

// fetchStaff loads bookable staff enriched with the static trainer
// profiles, falling back to the static roster when the API has none.
func (s *Service) fetchStaff(ctx context.Context, serviceID int64) ([]yclients.Staff, error) {
	staff, err := s.catalog.ListStaff(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	bookable := staff[:0]
	for _, member := range staff {
		if !member.Bookable() {
			continue
		}
		if profile, ok := content.TrainerProfiles[member.Name]; ok {
			member.BestFor = profile.BestFor
			member.Experience = profile.Experience
		}
		bookable = append(bookable, member)
	}

	if len(bookable) == 0 {
		for i, name := range content.Trainers {
			member := yclients.Staff{ID: yclients.FlexInt(i + 1), Name: name}
			if profile, ok := content.TrainerProfiles[name]; ok {
				member.BestFor = profile.BestFor
				member.Experience = profile.Experience
			}
			bookable = append(bookable, member)
		}
	}
	return bookable, nil
}

// ChooseStaff records the pick and shows available dates.
func (s *Service) ChooseStaff(ctx context.Context, st *session.State, staffID int64) prompt.Prompt {
	st.Draft.StaffID = staffID
	return s.showDates(ctx, st)
}

func (s *Service) showDates(ctx context.Context, st *session.State) prompt.Prompt {
	dates, err := s.catalog.ListDates(ctx, st.Draft.StaffID, st.Draft.ServiceID)
	if err != nil {
		if errors.Is(err, yclients.ErrNotConfigured) {
			return prompt.New(content.UnavailableMessage())
		}
		log.Warn().Err(err).Int64("staff_id", st.Draft.StaffID).Msg("booking: list dates failed")
		return prompt.New("Ошибка при загрузке дат. Попробуйте позже.")
	}
	if len(dates) == 0 {
		return prompt.New("Нет свободных дат. Попробуйте другого инструктора.",
			prompt.Btn("⬅️ Назад", "back:staff"),
			prompt.Btn("❌ Отмена", "menu:main"),
		)
	}

	st.Step = session.StepDate
	return datesPrompt(dates)
}

// ChooseDate records the pick (date button payloads may arrive as Unix
// timestamps) and shows the time keyboard.
func (s *Service) ChooseDate(ctx context.Context, st *session.State, rawDate string) prompt.Prompt {
	st.Draft.Date = s.normalizeDateArg(rawDate)

	slots, err := s.catalog.ListTimes(ctx, st.Draft.StaffID, st.Draft.Date, st.Draft.ServiceID)
	if err != nil {
		if errors.Is(err, yclients.ErrNotConfigured) {
			return prompt.New(content.UnavailableMessage())
		}
		log.Warn().Err(err).Str("date", st.Draft.Date).Msg("booking: list times failed")
		return prompt.New("Ошибка при загрузке времени. Попробуйте позже.")
	}
	if len(slots) == 0 {
		return prompt.New("Нет свободного времени в этот день. Выберите другую дату.",
			prompt.Btn("⬅️ Назад", "back:date"),
			prompt.Btn("❌ Отмена", "menu:main"),
		)
	}

	st.Draft.Slots = slots
	st.Step = session.StepTime
	return slotsPrompt(slots, "back:date")
}

func (s *Service) normalizeDateArg(raw string) string {
	if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(ts, 0).In(s.loc).Format("2006-01-02")
	}
	return raw
}

// ChooseTime resolves the slot index (the slot list may have gone stale if
// the session was replayed), canonicalizes the datetime, then asks for a name.
func (s *Service) ChooseTime(st *session.State, idx int) prompt.Prompt {
	if idx < 0 || idx >= len(st.Draft.Slots) {
		return prompt.Alert("Время недоступно. Выберите другое.")
	}

	st.Draft.Datetime = st.Draft.Slots[idx].Canonical(st.Draft.Date)
	st.Step = session.StepName
	return prompt.New("Введите ваше имя (ФИО):")
}

// EnterName stores the name and asks for a phone.
func (s *Service) EnterName(st *session.State, text string) prompt.Prompt {
	st.Draft.Fullname = text
	st.Step = session.StepPhone
	return prompt.New("Введите номер телефона (например, +79001234567):")
}

// EnterPhone stores the phone and asks for an optional email.
func (s *Service) EnterPhone(st *session.State, text string) prompt.Prompt {
	st.Draft.Phone = text
	st.Step = session.StepEmail
	return prompt.New("Введите email (или нажмите «Пропустить»):",
		prompt.Btn("Пропустить", "skip"),
	)
}

// EnterEmail stores the email (empty on skip) and shows the confirmation
// summary.
func (s *Service) EnterEmail(st *session.State, text string) prompt.Prompt {
	if text == "skip" || text == "/skip" {
		text = ""
	}
	st.Draft.Email = text
	st.Step = session.StepConfirm
	return confirmPrompt(st.Draft)
}

// Back replays the previous step. Services and slots come back from state;
// staff and dates are re-fetched so their keyboards stay current.
func (s *Service) Back(ctx context.Context, st *session.State, step string) prompt.Prompt {
	switch step {
	case "service":
		if len(st.Draft.Services) == 0 {
			return prompt.Alert("Начните запись заново.")
		}
		st.Step = session.StepService
		return servicesPrompt(st.Draft.Services)
	case "staff":
		if st.Draft.ServiceID == 0 {
			return prompt.Alert("Ошибка. Начните запись заново.")
		}
		return s.showStaff(ctx, st)
	case "date":
		if st.Draft.StaffID == 0 || st.Draft.ServiceID == 0 {
			return prompt.Alert("Ошибка. Начните запись заново.")
		}
		return s.showDates(ctx, st)
	case "time":
		if len(st.Draft.Slots) == 0 {
			return prompt.Alert("Ошибка. Начните запись заново.")
		}
		st.Step = session.StepTime
		return slotsPrompt(st.Draft.Slots, "back:date")
	default:
		return prompt.Alert("Начните запись заново.")
	}
}

// Confirm validates the draft, registers a payment for the service price
// and moves to the payment step. A price that cannot be resolved aborts the
// flow rather than creating a zero-amount payment.
func (s *Service) Confirm(ctx context.Context, st *session.State, userID string) prompt.Prompt {
	d := st.Draft
	if d.Fullname == "" || d.Phone == "" || d.ServiceID == 0 || d.StaffID == 0 || d.Datetime == "" {
		st.Reset()
		return prompt.New("Ошибка: неполные данные. Начните запись заново.")
	}

	if d.Price <= 0 {
		st.Reset()
		return prompt.New(content.CallUsMessage("Не удалось определить стоимость."))
	}

	description := d.ServiceTitle
	if description == "" {
		description = "Занятие " + content.Studio.Name
	}

	payment, err := s.payments.CreatePayment(ctx, yookassa.CreatePaymentRequest{
		Amount:      d.Price,
		Description: description,
		ReturnURL:   s.returnURL,
		Metadata: map[string]string{
			"service_id": strconv.FormatInt(d.ServiceID, 10),
			"staff_id":   strconv.FormatInt(d.StaffID, 10),
			"datetime":   d.Datetime,
			"tg_user_id": userID,
		},
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("booking: create payment failed")
		st.Reset()
		return prompt.New(content.CallUsMessage("Ошибка при создании платежа."))
	}

	st.Draft.PaymentID = payment.ID
	st.Step = session.StepPayment

	amount := int(d.Price)
	return prompt.New(
		fmt.Sprintf("Оплатите %d ₽ для подтверждения записи.\n\nНажмите кнопку ниже для перехода к оплате.", amount),
		prompt.Link(fmt.Sprintf("💳 Оплатить %d ₽", amount), payment.ConfirmationURL),
		prompt.Btn("🔄 Проверить оплату", "pay:check:"+payment.ID),
		prompt.Btn("❌ Отменить", "menu:main"),
	)
}

// CheckPayment polls the payment and, exactly once on success, creates the
// reservation. Pending keeps the state so the user can poll again; canceled
// and reservation failures drop the draft.
func (s *Service) CheckPayment(ctx context.Context, st *session.State, paymentID string) prompt.Prompt {
	status, err := s.payments.CheckPayment(ctx, paymentID)
	if err != nil {
		log.Warn().Err(err).Str("payment_id", paymentID).Msg("booking: check payment failed")
	}

	switch status {
	case yookassa.StatusSucceeded:
		return s.createReservation(ctx, st)
	case yookassa.StatusPending:
		return prompt.Alert("Оплата ещё не прошла. Попробуйте через минуту.")
	case yookassa.StatusCanceled:
		st.Reset()
		return prompt.New("Платёж отменён. Начните запись заново.")
	default:
		return prompt.New(content.CallUsMessage("Ошибка проверки."))
	}
}

func (s *Service) createReservation(ctx context.Context, st *session.State) prompt.Prompt {
	d := st.Draft
	email := d.Email
	if email == "" {
		email = "noreply@pilates.local"
	}

	recordID, err := s.catalog.CreateRecord(ctx, yclients.CreateRecordRequest{
		Fullname:  d.Fullname,
		Phone:     d.Phone,
		Email:     email,
		ServiceID: d.ServiceID,
		StaffID:   d.StaffID,
		Datetime:  d.Datetime,
	})

	st.ClientPhone = d.Phone
	st.Reset()

	if err != nil {
		if errors.Is(err, yclients.ErrNotConfigured) {
			return prompt.New(content.UnavailableMessage())
		}
		var apiErr *yclients.APIError
		if errors.As(err, &apiErr) {
			return prompt.New(content.CallUsMessage(
				"Оплата прошла, но запись не создана: " + apiErr.Message + ".",
			))
		}
		log.Error().Err(err).Msg("booking: create record failed")
		return prompt.New(content.CallUsMessage("Ошибка при создании записи."))
	}

	log.Info().Int64("record_id", recordID).Msg("booking: reservation created")
	return prompt.New("✅ Запись создана!\n\nЖдём вас на занятии! 🙏")
}
