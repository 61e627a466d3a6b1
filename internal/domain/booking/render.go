package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/pilatesguru/studio-bot/internal/domain/session"
	"github.com/pilatesguru/studio-bot/internal/pkg/prompt"
	"github.com/pilatesguru/studio-bot/internal/pkg/yclients"
)

// normName folds a trainer name for comparison: case-insensitive, ё and е
// treated as equal.
func normName(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "ё", "е")
}

// reorderPreferred moves the preferred trainer to the head of the list,
// keeping the relative order of the rest.
func reorderPreferred(staff []yclients.Staff, preferred string) []yclients.Staff {
	if preferred == "" {
		return staff
	}
	want := normName(preferred)
	matched := make([]yclients.Staff, 0, len(staff))
	rest := make([]yclients.Staff, 0, len(staff))
	for _, member := range staff {
		if normName(member.Name) == want {
			matched = append(matched, member)
		} else {
			rest = append(rest, member)
		}
	}
	return append(matched, rest...)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

func servicesPrompt(services []session.BookingService) prompt.Prompt {
	choices := make([]prompt.Choice, 0, maxServices+1)
	for _, svc := range services {
		if len(choices) == maxServices {
			break
		}
		title := svc.Title
		if title == "" {
			title = "Услуга"
		}
		choices = append(choices, prompt.Btn(truncate(title, 40), fmt.Sprintf("svc:%d", svc.ID)))
	}
	choices = append(choices, prompt.Btn("❌ Отмена", "menu:main"))
	return prompt.New("Выберите тип занятия:", choices...)
}

func staffPrompt(staff []yclients.Staff, preferred string) prompt.Prompt {
	want := normName(preferred)
	choices := make([]prompt.Choice, 0, maxStaff+2)
	for _, member := range staff {
		if len(choices) == maxStaff {
			break
		}
		name := member.Name
		if name == "" {
			name = "Инструктор"
		}
		label := truncate(name, 35)
		if preferred != "" && normName(member.Name) == want {
			label = "⭐ Рекомендуем " + label
		}
		if desc := staffDescription(member); desc != "" {
			label += " — " + truncate(desc, 25)
		}
		choices = append(choices, prompt.Btn(truncate(label, 60), fmt.Sprintf("staff:%d", int64(member.ID))))
	}
	choices = append(choices,
		prompt.Btn("⬅️ Назад", "back:service"),
		prompt.Btn("❌ Отмена", "menu:main"),
	)
	return prompt.New("Выберите инструктора:", choices...)
}

func staffDescription(member yclients.Staff) string {
	if member.BestFor != "" {
		return member.BestFor
	}
	return member.Experience
}

func datesPrompt(dates []string) prompt.Prompt {
	choices := make([]prompt.Choice, 0, maxDates+2)
	for _, date := range dates {
		if len(choices) == maxDates {
			break
		}
		choices = append(choices, prompt.Btn(dateLabel(date), "date:"+date))
	}
	choices = append(choices,
		prompt.Btn("⬅️ Назад", "back:staff"),
		prompt.Btn("❌ Отмена", "menu:main"),
	)
	return prompt.New("Выберите дату:", choices...)
}

func dateLabel(date string) string {
	if t, err := time.Parse("2006-01-02", date); err == nil {
		return t.Format("02.01.2006")
	}
	return date
}

// slotsPrompt indexes choices into the cached slot list so the datetime is
// resolved from state, never from the button payload.
func slotsPrompt(slots []yclients.Slot, backToken string) prompt.Prompt {
	choices := make([]prompt.Choice, 0, maxSlots+2)
	for i, slot := range slots {
		if i == maxSlots {
			break
		}
		choices = append(choices, prompt.Btn(slot.Label(), fmt.Sprintf("time:%d", i)))
	}
	choices = append(choices,
		prompt.Btn("⬅️ Назад", backToken),
		prompt.Btn("❌ Отмена", "menu:main"),
	)
	return prompt.New("Выберите время:", choices...)
}

func confirmPrompt(d session.Draft) prompt.Prompt {
	display := d.Datetime
	if t, err := time.Parse("2006-01-02 15:04:05", d.Datetime); err == nil {
		display = t.Format("02.01.2006 в 15:04")
	}
	email := d.Email
	if email == "" {
		email = "—"
	}
	text := fmt.Sprintf(
		"Проверьте данные:\n\n👤 Имя: %s\n📱 Телефон: %s\n📧 Email: %s\n📅 Дата и время: %s\n\nПодтвердить запись?",
		d.Fullname, d.Phone, email, display,
	)
	return prompt.New(text,
		prompt.Btn("✅ Подтвердить запись", "confirm"),
		prompt.Btn("⬅️ Назад", "back:time"),
		prompt.Btn("❌ Отмена", "menu:main"),
	)
}
