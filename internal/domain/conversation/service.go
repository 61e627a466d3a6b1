package conversation

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/pilatesguru/studio-bot/internal/domain/assistant"
	"github.com/pilatesguru/studio-bot/internal/domain/booking"
	"github.com/pilatesguru/studio-bot/internal/domain/content"
	"github.com/pilatesguru/studio-bot/internal/domain/manage"
	"github.com/pilatesguru/studio-bot/internal/domain/session"
	"github.com/pilatesguru/studio-bot/internal/pkg/prompt"
	"github.com/pilatesguru/studio-bot/internal/pkg/yclients"
)

// ClientLookup resolves a shared phone to an existing studio client.
type ClientLookup interface {
	FindClientByPhone(ctx context.Context, phone string) (*yclients.ClientInfo, error)
}

// AdminNotifier forwards written feedback to the studio owner's chat.
type AdminNotifier interface {
	Send(ctx context.Context, chatID string, p prompt.Prompt) error
}

// Service is the front controller: it loads the session, routes one inbound
// event to the owning flow and saves the session back.
type Service struct {
	sessions session.Store
	booking  *booking.Service
	manage   *manage.Service
	assist   *assistant.Service
	clients  ClientLookup

	admin       AdminNotifier
	adminChatID string
}

func NewService(
	sessions session.Store,
	bookingSvc *booking.Service,
	manageSvc *manage.Service,
	assistSvc *assistant.Service,
	clients ClientLookup,
) *Service {
	return &Service{
		sessions: sessions,
		booking:  bookingSvc,
		manage:   manageSvc,
		assist:   assistSvc,
		clients:  clients,
	}
}

// WithAdminForwarding routes written negative feedback to the given chat.
func (s *Service) WithAdminForwarding(admin AdminNotifier, chatID string) *Service {
	s.admin = admin
	s.adminChatID = chatID
	return s
}

// Handle processes one event and returns the prompts to render. The session
// is saved even when a handler bails out halfway, so the user can always
// continue from the step the state reflects.
func (s *Service) Handle(ctx context.Context, ev Event) ([]prompt.Prompt, error) {
	st, err := s.sessions.Get(ctx, ev.UserID)
	if err != nil {
		return nil, err
	}

	var p prompt.Prompt
	switch ev.Kind {
	case KindContact:
		p = s.onContact(ctx, st, ev)
	case KindButton:
		p = s.onButton(ctx, st, ev)
	default:
		p = s.onText(ctx, st, ev)
	}

	if err := s.sessions.Save(ctx, ev.UserID, st); err != nil {
		log.Error().Err(err).Str("user_id", ev.UserID).Msg("conversation: session save failed")
	}
	return []prompt.Prompt{p}, nil
}

func (s *Service) mainMenu(st *session.State) prompt.Prompt {
	st.Reset()
	text := content.Studio.Name + "\n\n" +
		"Помогу записаться на тренировку, расскажу о ценах и расписании.\n\n" +
		"Выберите действие:"
	return prompt.New(text,
		prompt.Btn("📅 Записаться на тренировку", "menu:booking"),
		prompt.Btn("📋 Мои записи", "menu:records"),
		prompt.Btn("🎯 Подобрать тренера", "menu:match"),
		prompt.Btn("💰 Цены и услуги", "menu:prices"),
		prompt.Btn("❓ Частые вопросы", "menu:faq"),
		prompt.Btn("📍 Контакты", "menu:contacts"),
	)
}

// onboardingMenu is the shorter menu shown right after a client introduces
// themselves.
func onboardingMenu() []prompt.Choice {
	return []prompt.Choice{
		prompt.Btn("📅 Записаться", "menu:booking"),
		prompt.Btn("💰 Цены", "menu:prices"),
		prompt.Btn("👤 Мои записи", "menu:records"),
	}
}

func staleButton() prompt.Prompt {
	return prompt.Alert("Кнопка устарела. Откройте меню заново.")
}

func (s *Service) onButton(ctx context.Context, st *session.State, ev Event) prompt.Prompt {
	token := ev.Payload
	arg := prompt.Arg(token)

	switch prompt.Action(token) {
	case "menu":
		return s.onMenu(ctx, st, arg)

	case "svc":
		if st.Step != session.StepService {
			return staleButton()
		}
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return staleButton()
		}
		return s.booking.ChooseService(ctx, st, id)

	case "staff":
		if st.Step != session.StepStaff {
			return staleButton()
		}
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return staleButton()
		}
		return s.booking.ChooseStaff(ctx, st, id)

	case "date":
		if st.Step != session.StepDate {
			return staleButton()
		}
		return s.booking.ChooseDate(ctx, st, arg)

	case "time":
		if st.Step != session.StepTime {
			return staleButton()
		}
		idx, err := strconv.Atoi(arg)
		if err != nil {
			return staleButton()
		}
		return s.booking.ChooseTime(st, idx)

	case "skip":
		if st.Step != session.StepEmail {
			return staleButton()
		}
		return s.booking.EnterEmail(st, "skip")

	case "back":
		return s.booking.Back(ctx, st, arg)

	case "confirm":
		if st.Step != session.StepConfirm {
			return staleButton()
		}
		return s.booking.Confirm(ctx, st, ev.UserID)

	case "pay":
		if prompt.Action(arg) != "check" || st.Step != session.StepPayment {
			return staleButton()
		}
		return s.booking.CheckPayment(ctx, st, prompt.Arg(arg))

	case "rec":
		return s.onRecord(ctx, st, arg)

	case "match":
		return s.onMatch(ctx, st, arg)

	case "faq":
		idx, err := strconv.Atoi(arg)
		if err != nil {
			return staleButton()
		}
		return content.FAQAnswerPrompt(idx)

	case "fb":
		return s.onFeedback(st, arg)
	}

	log.Debug().Str("token", token).Msg("conversation: unknown token")
	return staleButton()
}

func (s *Service) onMenu(ctx context.Context, st *session.State, arg string) prompt.Prompt {
	switch arg {
	case "booking":
		return s.booking.Start(ctx, st)
	case "records":
		return s.manage.ShowRecords(ctx, st)
	case "match":
		return s.assist.StartMatch(st)
	case "prices":
		return content.PricesPrompt()
	case "faq":
		return content.FAQListPrompt()
	case "contacts":
		return content.ContactsPrompt()
	default:
		return s.mainMenu(st)
	}
}

func (s *Service) onRecord(ctx context.Context, st *session.State, arg string) prompt.Prompt {
	switch {
	case arg == "cancel":
		if st.Step != session.StepManageRecord {
			return staleButton()
		}
		return s.manage.StartCancel(st)

	case arg == "cancel:yes":
		if st.Step != session.StepManageCancel {
			return staleButton()
		}
		return s.manage.ConfirmCancel(ctx, st)

	case arg == "move":
		if st.Step != session.StepManageRecord {
			return staleButton()
		}
		return s.manage.StartReschedule(ctx, st)

	case arg == "move:yes":
		if st.Step != session.StepManageConfirm {
			return staleButton()
		}
		return s.manage.ConfirmReschedule(ctx, st)

	case prompt.HasPrefix(arg, "date"):
		if st.Step != session.StepManageDate {
			return staleButton()
		}
		return s.manage.ChooseDate(ctx, st, prompt.Arg(arg))

	case prompt.HasPrefix(arg, "time"):
		if st.Step != session.StepManageTime {
			return staleButton()
		}
		idx, err := strconv.Atoi(prompt.Arg(arg))
		if err != nil {
			return staleButton()
		}
		return s.manage.ChooseTime(st, idx)

	case prompt.HasPrefix(arg, "ok"):
		// "I'll be there" press on the day-before reminder.
		return prompt.New("Отлично, ждём вас! 🙏 Приходите за 5–10 минут, не забудьте носки.")

	default:
		if st.Step != session.StepManageList {
			return staleButton()
		}
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return staleButton()
		}
		return s.manage.ShowRecord(st, id)
	}
}

func (s *Service) onMatch(ctx context.Context, st *session.State, arg string) prompt.Prompt {
	q, value := prompt.Action(arg), prompt.Arg(arg)
	switch {
	case q == "q1" && st.Step == session.StepMatchQ1:
		return s.assist.AnswerGoal(st, value)
	case q == "q2" && st.Step == session.StepMatchQ2:
		return s.assist.AnswerLevel(st, value)
	case q == "q3" && st.Step == session.StepMatchQ3:
		return s.assist.AnswerHealth(ctx, st, value)
	default:
		return staleButton()
	}
}

func (s *Service) onText(ctx context.Context, st *session.State, ev Event) prompt.Prompt {
	text := strings.TrimSpace(ev.Payload)

	if text == "/start" {
		st.Reset()
		return prompt.New(
			"Добро пожаловать в студию "+content.Studio.Name+"! 🌸\n\n"+
				"Меня зовут Марина, я ваш виртуальный администратор. "+
				"Чтобы я могла проверить ваши абонементы или подобрать тренировку, "+
				"пожалуйста, поделитесь номером телефона 👇",
			prompt.Btn("📱 Поделиться номером", "contact:share"),
		)
	}

	switch st.Step {
	case session.StepName:
		return s.booking.EnterName(st, text)
	case session.StepPhone:
		phone := NormalizePhone(text)
		if phone == "" {
			return prompt.New("Не удалось распознать номер. Введите телефон в формате +79991234567:")
		}
		return s.booking.EnterPhone(st, phone)
	case session.StepEmail:
		return s.booking.EnterEmail(st, text)
	case session.StepOnboardGoals:
		return s.onboardGoals(st, text)
	case session.StepOnboardInjuries:
		return s.onboardInjuries(ctx, st, text)
	case session.StepFeedbackText:
		return s.receiveFeedbackText(ctx, st, ev, text)
	default:
		return s.assist.Respond(ctx, st, text)
	}
}

func (s *Service) onContact(ctx context.Context, st *session.State, ev Event) prompt.Prompt {
	phone := NormalizePhone(ev.Payload)
	if phone == "" {
		return prompt.New("Не удалось получить номер. Попробуйте ещё раз.")
	}
	st.ClientPhone = phone

	client, err := s.clients.FindClientByPhone(ctx, phone)
	if err != nil {
		log.Warn().Err(err).Msg("conversation: client lookup failed")
		client = nil
	}

	if client != nil && client.Name != "" {
		name := strings.Fields(client.Name)[0]
		st.ClientName = name
		st.Reset()
		return prompt.New(
			"Рада вас снова видеть, "+name+"! Чем могу помочь сегодня?",
			onboardingMenu()...,
		)
	}

	if ev.Name != "" {
		st.ClientName = strings.Fields(ev.Name)[0]
	}
	st.Step = session.StepOnboardGoals
	return prompt.New(
		"Вижу, вы у нас впервые! Давайте подберём вам идеальную тренировку.\n\n" +
			"Какие у вас основные цели? " +
			"(Например: здоровая спина, гибкость, похудение)",
	)
}

func (s *Service) onboardGoals(st *session.State, text string) prompt.Prompt {
	st.OnboardGoals = truncateRunes(text, 500)
	st.Step = session.StepOnboardInjuries
	return prompt.New(
		"Есть ли у вас какие-то травмы или медицинские противопоказания, " +
			"о которых должен знать тренер?",
	)
}

func (s *Service) onboardInjuries(ctx context.Context, st *session.State, text string) prompt.Prompt {
	goals := st.OnboardGoals
	injuries := truncateRunes(text, 500)
	st.Reset()

	welcome := s.assist.Welcome(ctx, goals, injuries)
	return prompt.New(welcome, onboardingMenu()...)
}

func truncateRunes(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
