package content

import (
	"fmt"
	"strings"

	"github.com/pilatesguru/studio-bot/internal/pkg/prompt"
)

// PricesPrompt renders the full price list with booking shortcuts.
func PricesPrompt() prompt.Prompt {
	var b strings.Builder
	b.WriteString("Цены " + Studio.Name + ":\n\n")
	for _, category := range Prices {
		for _, item := range category.Items {
			fmt.Fprintf(&b, "• %s: %d ₽\n", item.Name, int(item.Price))
		}
	}
	b.WriteString("\nДля записи нажмите «Записаться».")

	return prompt.New(b.String(),
		prompt.Btn("📅 Записаться", "menu:booking"),
		prompt.Btn("◀️ Главное меню", "menu:main"),
	)
}

// FAQListPrompt renders the question list, one button per question.
func FAQListPrompt() prompt.Prompt {
	choices := make([]prompt.Choice, 0, len(FAQ)+1)
	for i, item := range FAQ {
		q := item.Question
		if len([]rune(q)) > 45 {
			q = string([]rune(q)[:45]) + "…"
		}
		choices = append(choices, prompt.Btn(q, fmt.Sprintf("faq:%d", i)))
	}
	choices = append(choices, prompt.Btn("◀️ Назад в меню", "menu:main"))
	return prompt.New("Часто задаваемые вопросы:\n\nВыберите вопрос:", choices...)
}

// FAQAnswerPrompt renders one answer; out-of-range indexes get a polite miss.
func FAQAnswerPrompt(idx int) prompt.Prompt {
	text := "Вопрос не найден."
	if idx >= 0 && idx < len(FAQ) {
		item := FAQ[idx]
		text = item.Question + "\n\n" + item.Answer
	}
	return prompt.New(text,
		prompt.Btn("◀️ К списку вопросов", "menu:faq"),
		prompt.Btn("🏠 В главное меню", "menu:main"),
	)
}

// ContactsPrompt renders the studio card.
func ContactsPrompt() prompt.Prompt {
	text := fmt.Sprintf(
		"%s\n\n📍 %s\nметро %s\n🕐 %s\n📞 %s\n💬 %s",
		Studio.Name, Studio.Address, Studio.Metro, Studio.Schedule, Studio.Phone, Studio.Telegram,
	)
	return prompt.New(text,
		prompt.Btn("📅 Записаться", "menu:booking"),
		prompt.Btn("◀️ Главное меню", "menu:main"),
	)
}
