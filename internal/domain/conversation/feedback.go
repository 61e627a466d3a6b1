package conversation

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/pilatesguru/studio-bot/internal/domain/content"
	"github.com/pilatesguru/studio-bot/internal/domain/session"
	"github.com/pilatesguru/studio-bot/internal/pkg/prompt"
)

// Post-session feedback. Arrives via the notifier's push buttons, so these
// handlers are not gated on a conversation step.
func (s *Service) onFeedback(st *session.State, arg string) prompt.Prompt {
	verb, value := prompt.Action(arg), prompt.Arg(arg)

	switch verb {
	case "good":
		return prompt.New(
			"Спасибо! Рады, что тренировка прошла хорошо 🙏\n\n"+
				"Нам очень важно ваше мнение — если не сложно, "+
				"оставьте короткий отзыв. Это помогает нам развиваться "+
				"и поможет другим людям найти "+content.Studio.Name+" ❤️",
			prompt.Link("⭐ Яндекс Карты", content.YandexMapsReviewURL),
			prompt.Link("⭐ 2ГИС", content.DGISReviewURL),
			prompt.Btn("Не хочу оставлять отзыв", "fb:skip"),
		)

	case "bad":
		recordID, _ := strconv.ParseInt(value, 10, 64)
		st.FeedbackRecordID = recordID
		return prompt.New(
			"Жаль, что что-то пошло не так 😔\n\n"+
				"Расскажите нам — это поможет стать лучше. "+
				"Ваше сообщение получит руководитель лично:",
			prompt.Btn("✍️ Написать руководителю", "fb:write"),
			prompt.Btn("Не сейчас", "fb:skip"),
		)

	case "write":
		st.Step = session.StepFeedbackText
		return prompt.New(
			"📝 Напишите, что не понравилось или что можно улучшить.\n\n" +
				"Ваше сообщение получит только руководитель студии.",
		)

	case "skip":
		st.Reset()
		return prompt.New("Хорошо, до следующей тренировки! 🙏")

	default:
		return staleButton()
	}
}

func (s *Service) receiveFeedbackText(ctx context.Context, st *session.State, ev Event, text string) prompt.Prompt {
	recordID := st.FeedbackRecordID
	st.Reset()

	if s.admin != nil && s.adminChatID != "" {
		report := fmt.Sprintf(
			"⚠️ Негативный отзыв — %s\n\nЗапись: #%d\nКлиент: %s (id: %s)\n\n💬 Отзыв:\n%s",
			content.Studio.Name, recordID, st.ClientName, ev.UserID, text,
		)
		if err := s.admin.Send(ctx, s.adminChatID, prompt.New(report)); err != nil {
			log.Warn().Err(err).Msg("conversation: feedback forward failed")
		}
	}

	return prompt.New(
		"Спасибо, что написали 🙏\n\n" +
			"Руководитель студии лично ознакомится с вашим отзывом. " +
			"Мы обязательно учтём это и станем лучше ❤️",
	)
}
