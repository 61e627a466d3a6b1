package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/pilatesguru/studio-bot/internal/domain/content"
	"github.com/pilatesguru/studio-bot/internal/domain/session"
	"github.com/pilatesguru/studio-bot/internal/pkg/prompt"
)

// Questionnaire answer codes mapped to the human wording used in the
// recommendation prompt.
var (
	goalLabels = map[string]string{
		"strength":    "укрепить тело и мышцы",
		"flexibility": "гибкость и осанка",
		"rehab":       "реабилитация после травмы",
		"newbie":      "первый раз, хочу попробовать",
	}
	levelLabels = map[string]string{
		"none":     "никогда не занимался(ась)",
		"beginner": "немного занимался(ась)",
		"regular":  "занимаюсь регулярно",
	}
	healthLabels = map[string]string{
		"none":      "всё в порядке",
		"spine":     "проблемы со спиной/суставами",
		"injury":    "травма или операция",
		"pregnancy": "беременность / послеродовой",
	}
)

// Recommendation is the trainer-match verdict.
type Recommendation struct {
	Trainer   string `json:"trainer"`
	Reason    string `json:"reason"`
	FirstStep string `json:"first_step"`
	Escalate  bool   `json:"escalate"`
}

func staticRecommendation() Recommendation {
	return Recommendation{
		Trainer:   "Марина",
		Reason:    "Марина поможет подобрать программу на первом занятии.",
		FirstStep: "Запишитесь на Стартовую персональную (2 400 ₽)",
	}
}

// StartMatch opens the three-question trainer questionnaire.
func (s *Service) StartMatch(st *session.State) prompt.Prompt {
	st.Reset()
	st.Step = session.StepMatchQ1
	return prompt.New(
		"Ответьте на 3 коротких вопроса — я подберу тренера под ваши цели 🙏",
		prompt.Btn("💪 Укрепить тело и мышцы", "match:q1:strength"),
		prompt.Btn("🧘 Гибкость и осанка", "match:q1:flexibility"),
		prompt.Btn("🩹 Реабилитация после травмы", "match:q1:rehab"),
		prompt.Btn("🌱 Первый раз, хочу попробовать", "match:q1:newbie"),
	)
}

// AnswerGoal stores the goal and asks about experience.
func (s *Service) AnswerGoal(st *session.State, value string) prompt.Prompt {
	st.MatchAnswers = []string{value}
	st.Step = session.StepMatchQ2
	return prompt.New(
		"Какой у вас опыт занятий пилатесом?",
		prompt.Btn("🆕 Никогда не занимался(ась)", "match:q2:none"),
		prompt.Btn("🔰 Немного занимался(ась)", "match:q2:beginner"),
		prompt.Btn("✅ Занимаюсь регулярно", "match:q2:regular"),
	)
}

// AnswerLevel stores the experience level and asks about health.
func (s *Service) AnswerLevel(st *session.State, value string) prompt.Prompt {
	st.MatchAnswers = append(st.MatchAnswers, value)
	st.Step = session.StepMatchQ3
	return prompt.New(
		"Есть ли особенности здоровья?",
		prompt.Btn("❤️ Всё в порядке", "match:q3:none"),
		prompt.Btn("🦴 Проблемы со спиной/суставами", "match:q3:spine"),
		prompt.Btn("🤕 Травма или операция", "match:q3:injury"),
		prompt.Btn("🤰 Беременность / послеродовой", "match:q3:pregnancy"),
	)
}

// AnswerHealth closes the questionnaire and shows the recommendation. The
// matched trainer is remembered in the session so the booking flow can
// promote them.
func (s *Service) AnswerHealth(ctx context.Context, st *session.State, value string) prompt.Prompt {
	goal, level := "newbie", "none"
	if len(st.MatchAnswers) > 0 {
		goal = st.MatchAnswers[0]
	}
	if len(st.MatchAnswers) > 1 {
		level = st.MatchAnswers[1]
	}

	rec := s.recommend(ctx, labelOr(goalLabels, goal), labelOr(levelLabels, level), labelOr(healthLabels, value))

	st.PreferredTrainer = rec.Trainer
	st.Reset()

	text := fmt.Sprintf("🎯 Ваш тренер — %s\n\n%s\n\n📌 %s", rec.Trainer, rec.Reason, rec.FirstStep)
	choices := []prompt.Choice{
		prompt.Btn("📅 Записаться", "menu:booking"),
		prompt.Btn("🔄 Выбрать другого тренера", "menu:match"),
		prompt.Btn("◀️ Главное меню", "menu:main"),
	}
	if rec.Escalate {
		text += "\n\n⚠️ Для записи с вашими особенностями здоровья " +
			"рекомендуем предварительную консультацию с тренером."
		handle := strings.TrimPrefix(content.Studio.Telegram, "@")
		choices = append(choices, prompt.Link("💬 Написать напрямую", "https://t.me/"+handle))
	}
	return prompt.New(text, choices...)
}

func labelOr(m map[string]string, key string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return key
}

func (s *Service) recommend(ctx context.Context, goal, level, health string) Recommendation {
	if s.gen == nil {
		return staticRecommendation()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Ты — ассистент студии пилатеса %s.\nТренеры студии:\n", content.Studio.Name)
	for _, name := range content.Trainers {
		profile := content.TrainerProfiles[name]
		fmt.Fprintf(&b, "- %s: %s, %s\n", name, profile.BestFor, profile.Experience)
	}
	fmt.Fprintf(&b, "\nКлиент:\n- Цель: %s\n- Уровень: %s\n- Здоровье: %s\n", goal, level, health)
	b.WriteString(`
Ответь строго в формате JSON:
{
  "trainer": "Имя тренера",
  "reason": "1-2 предложения почему именно этот тренер",
  "first_step": "Конкретный следующий шаг (например: запишитесь на Стартовую персональную)"
}
Если клиент указал травму или беременность — рекомендуй Дарью и добавь:
"escalate": true
`)

	raw, err := s.gen.Generate(ctx, b.String())
	if err != nil {
		log.Warn().Err(err).Msg("assistant: trainer match failed")
		return staticRecommendation()
	}
	rec, ok := parseRecommendation(raw)
	if !ok {
		log.Warn().Str("raw", raw).Msg("assistant: trainer match returned non-JSON")
		return staticRecommendation()
	}
	return rec
}

// parseRecommendation decodes the model's JSON verdict, tolerating markdown
// code fences around it.
func parseRecommendation(raw string) (Recommendation, bool) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var rec Recommendation
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &rec); err != nil {
		return Recommendation{}, false
	}
	if rec.Trainer == "" {
		return Recommendation{}, false
	}
	if rec.FirstStep == "" {
		rec.FirstStep = staticRecommendation().FirstStep
	}
	return rec, true
}
