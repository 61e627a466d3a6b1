package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pilatesguru/studio-bot/internal/domain/content"
	"github.com/pilatesguru/studio-bot/internal/domain/session"
	"github.com/pilatesguru/studio-bot/internal/pkg/prompt"
)

// Service answers free-text questions in the voice of the studio
// administrator. A nil Generator puts it into degraded mode with a fixed
// reply, so the bot keeps working without an API key.
type Service struct {
	gen Generator
	now func() time.Time
}

func NewService(gen Generator) *Service {
	return &Service{gen: gen, now: time.Now}
}

// adminName rotates the persona: Мария on even days, Ирина on odd.
func (s *Service) adminName() string {
	if s.now().Day()%2 == 0 {
		return "Мария"
	}
	return "Ирина"
}

func (s *Service) systemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ты — администратор студии пилатеса %s.\n", content.Studio.Name)
	fmt.Fprintf(&b, "Твоё имя: %s\n", s.adminName())
	fmt.Fprintf(&b, "Адрес: %s, метро %s\n", content.Studio.Address, content.Studio.Metro)
	fmt.Fprintf(&b, "График: %s\n", content.Studio.Schedule)
	fmt.Fprintf(&b, "Телефон: %s\n\nПрайс:\n", content.Studio.Phone)
	for _, cat := range content.Prices {
		for _, item := range cat.Items {
			fmt.Fprintf(&b, "- %s: %.0f ₽\n", item.Name, item.Price)
		}
	}
	b.WriteString(`
Правила:
- Отмена бесплатна за 20+ часов до занятия
- Для новичков только стартовая тренировка
- Предоплата 100% обязательна

Стиль общения:
- Дружелюбно, тепло, профессионально
- Обращение на "Вы"
- Короткие ответы (2-4 предложения)
- Используй эмодзи умеренно
- Если вопрос про запись — предлагай нажать кнопку "Записаться"
- Если не знаешь ответа — предложи связаться напрямую: ` + content.Studio.Phone + `
- НЕ давай медицинских рекомендаций
- НЕ обещай скидки

`)
	return b.String()
}

// Respond answers one free-text message with recent dialog history as
// context and records the exchange in the session.
func (s *Service) Respond(ctx context.Context, st *session.State, text string) prompt.Prompt {
	if s.gen == nil {
		return prompt.New(
			"Для записи воспользуйтесь кнопкой меню, или позвоните нам: "+content.Studio.Phone,
			prompt.Btn("📅 Записаться", "menu:booking"),
			prompt.Btn("Главное меню", "menu:main"),
		)
	}

	var b strings.Builder
	b.WriteString(s.systemPrompt())
	for _, turn := range st.History {
		role := "Клиент"
		if turn.Role == "assistant" {
			role = "Администратор"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, turn.Text)
	}
	fmt.Fprintf(&b, "Клиент: %s\nАдминистратор:", text)

	reply, err := s.gen.Generate(ctx, b.String())
	reply = strings.TrimSpace(reply)
	if err != nil || reply == "" {
		log.Warn().Err(err).Msg("assistant: generate failed")
		return prompt.New(
			"Сейчас не могу ответить. Позвоните нам: "+content.Studio.Phone,
			prompt.Btn("Главное меню", "menu:main"),
		)
	}

	st.PushHistory("user", text)
	st.PushHistory("assistant", reply)
	return prompt.New(reply,
		prompt.Btn("📅 Записаться", "menu:booking"),
		prompt.Btn("Главное меню", "menu:main"),
	)
}

const defaultWelcome = "Рады видеть вас в Pilates Guru! 🙏 " +
	"Запишитесь на пробное занятие через кнопку ниже — подберём идеальный формат."

// Welcome greets a first-time client based on their questionnaire answers.
func (s *Service) Welcome(ctx context.Context, goals, injuries string) string {
	if s.gen == nil {
		return defaultWelcome
	}
	if goals == "" {
		goals = "не указано"
	}
	if injuries == "" {
		injuries = "нет"
	}

	p := fmt.Sprintf(`Ты — Марина, администратор студии пилатеса %s.
Клиент впервые в студии. Он ответил на вопросы:
- Цели: %s
- Травмы/противопоказания: %s

Сгенерируй короткое (2-4 предложения) персональное приветствие. Поблагодари
за ответы, отметь их цели, мягко упомяни про противопоказания (если есть),
пригласи записаться на пробное занятие. Дружелюбный женский стиль, эмодзи.
Не генерируй ссылки.`, content.Studio.Name, goals, injuries)

	text, err := s.gen.Generate(ctx, p)
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		log.Warn().Err(err).Msg("assistant: welcome generation failed")
		return defaultWelcome
	}
	return text
}
