package report

import (
	"fmt"
	"strings"

	"github.com/christopherklint97/worktracker/internal/hours"
	"github.com/christopherklint97/worktracker/internal/model"
)

// Keyboard selects which reply keyboard accompanies a message.
type Keyboard int

const (
	KeyboardKeep Keyboard = iota
	KeyboardMenu
	KeyboardYesNo
	KeyboardRemove
)

// Reply is one outbound message.
type Reply struct {
	Text     string
	Keyboard Keyboard
}

const (
	AnswerYes = "Да"
	AnswerNo  = "Нет"
)

func promptTimeRange() Reply {
	return Reply{
		Text: "📝 Заполним отчет о работе!\n\n" +
			"🕐 ШАГ 1: Укажи ВРЕМЯ РАБОТЫ, когда ты работал:\n\n" +
			"Примеры:\n" +
			"• 9:00-18:00\n" +
			"• с 10 до 19\n" +
			"• 9:00-13:00, 14:00-18:30\n" +
			"• 23:00-2:00\n\n" +
			"/cancel — отменить",
		Keyboard: KeyboardRemove,
	}
}

func promptLunch(res hours.Result) Reply {
	var b strings.Builder
	if res.Invalid() {
		b.WriteString("⚠️ Не получилось распознать время, проверь формат. Сейчас это 0 ч.\n")
	} else {
		b.WriteString("✅ Отлично!\n")
	}
	fmt.Fprintf(&b, "\n⏱️ Рассчитано часов работы: %.2f ч. (без учета обеда)\n", res.Hours)
	if notes := warningNotes(res); notes != "" {
		b.WriteString(notes)
	}
	b.WriteString("\n🍽 ШАГ 2: Был ли у тебя обед? (да/нет)")
	return Reply{Text: b.String(), Keyboard: KeyboardYesNo}
}

func warningNotes(res hours.Result) string {
	var b strings.Builder
	for _, w := range res.Warnings {
		switch w.Kind {
		case hours.Skipped:
			fmt.Fprintf(&b, "⚠️ «%s» пропущено: нужно два времени\n", w.Expr)
		case hours.Truncated:
			fmt.Fprintf(&b, "⚠️ В «%s» учтены только первые два времени\n", w.Expr)
		}
	}
	return b.String()
}

func repromptLunch() Reply {
	return Reply{
		Text:     "🤔 Не понял ответ. Был ли у тебя обед? Ответь «да» или «нет».",
		Keyboard: KeyboardYesNo,
	}
}

func repromptTimeRange() Reply {
	return Reply{
		Text:     "🕐 Напиши время работы, например 9:00-18:00 или с 10 до 19.",
		Keyboard: KeyboardRemove,
	}
}

func promptDescription(hints []string) Reply {
	var b strings.Builder
	b.WriteString("📝 ШАГ 3: Теперь опиши, что ты делал:\n\n" +
		"Примеры:\n" +
		"• Разрабатывал новый функционал\n" +
		"• Участвовал в совещаниях\n" +
		"• Исправлял ошибки")
	if len(hints) > 0 {
		b.WriteString("\n\n📅 Из календаря на сегодня:\n")
		for _, h := range hints {
			b.WriteString("• " + h + "\n")
		}
	}
	return Reply{Text: strings.TrimRight(b.String(), "\n"), Keyboard: KeyboardRemove}
}

func committed(e model.Entry, total int) Reply {
	lunch := "нет"
	if e.HadLunch {
		lunch = "да"
	}
	return Reply{
		Text: "🎉 ОТЛИЧНО! Запись сохранена!\n\n" +
			fmt.Sprintf("📅 Дата: %s\n", e.DateString()) +
			fmt.Sprintf("🕐 Время работы: %s\n", e.TimeRange) +
			fmt.Sprintf("🍽 Обед: %s\n", lunch) +
			fmt.Sprintf("⏱️ Часы работы без обеда: %.2f ч.\n", e.Hours) +
			fmt.Sprintf("📝 Описание работы: %s\n", e.Description) +
			fmt.Sprintf("📊 Всего записей: %d", total),
		Keyboard: KeyboardMenu,
	}
}

func duplicateToday(day string) Reply {
	return Reply{
		Text: fmt.Sprintf("⚠️ Отчет за %s уже есть.\n\n", day) +
			"Чтобы заполнить его заново, сначала удали сегодняшнюю запись кнопкой «🗑 Удалить сегодня» или командой /delete_today.",
		Keyboard: KeyboardMenu,
	}
}

func storageFailed() Reply {
	return Reply{
		Text:     "❌ Произошла ошибка при сохранении. Попробуй позже, начав отчет заново.",
		Keyboard: KeyboardMenu,
	}
}

func sessionLost() Reply {
	return Reply{
		Text:     "❌ Что-то пошло не так. Давай начнем заново.",
		Keyboard: KeyboardMenu,
	}
}

func cancelled() Reply {
	return Reply{Text: "❌ Диалог отменен.", Keyboard: KeyboardMenu}
}
