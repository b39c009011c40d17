package bot

import (
	"fmt"
	"strings"

	"github.com/christopherklint97/worktracker/internal/report"
)

// Menu buttons.
const (
	btnReport      = "📝 Отчет"
	btnStats       = "📊 Статистика"
	btnMyTime      = "⏰ Мое время"
	btnReminder    = "⚙️ Напомнить"
	btnTestRemind  = "🔔 Тест напоминания"
	btnDownload    = "📥 Скачать отчет"
	btnDeleteToday = "🗑 Удалить сегодня"
)

// MenuRows is the layout of the main menu keyboard.
var MenuRows = [][]string{
	{btnReport, btnStats},
	{btnMyTime, btnReminder},
	{btnTestRemind, btnDownload},
	{btnDeleteToday},
}

const menuHelp = "📝 Отчет - добавить запись о работе\n" +
	"📊 Статистика - посмотреть статистику\n" +
	"⏰ Мое время - посмотреть время напоминания\n" +
	"⚙️ Напомнить - изменить время напоминания\n" +
	"🔔 Тест напоминания - проверить напоминание\n" +
	"📥 Скачать отчет - получить Excel файл\n" +
	"🗑 Удалить сегодня - удалить сегодняшнюю запись"

const welcomeText = "🎉 ДОБРО ПОЖАЛОВАТЬ! 🎉\n" +
	"🤖 Я - Work Tracker Bot 🤖\n\n" +
	"Моя задача: помогать тебе вести учет рабочего времени!\n\n" +
	"Как это работает:\n" +
	"• Каждый день я буду напоминать тебе заполнить отчет\n" +
	"• Ты указываешь, в какое время работал и что делал\n" +
	"• Все данные автоматически сохраняются в Excel таблицу\n" +
	"• У каждого сотрудника свой лист в таблице\n\n" +
	"Используй кнопки меню ниже для навигации!"

func greeting(firstName string, isNew bool, entries int, hour, minute int) string {
	var b strings.Builder
	if isNew {
		fmt.Fprintf(&b, "👋 Рад познакомиться, %s!\n\n", firstName)
	} else {
		fmt.Fprintf(&b, "👋 С возвращением, %s!\n\n", firstName)
	}
	fmt.Fprintf(&b, "📊 Твоя статистика: %d записей\n", entries)
	fmt.Fprintf(&b, "⏰ Напоминание установлено на: %02d:%02d\n\n", hour, minute)
	b.WriteString("Используй кнопки меню для управления:\n\n")
	b.WriteString(menuHelp)
	return b.String()
}

func statsText(count int, total float64, lastDate string) string {
	if count == 0 {
		return "📊 Твоя статистика:\n\nПока нет ни одной записи. Нажми «📝 Отчет», чтобы добавить первую!"
	}
	return "📊 Твоя статистика:\n\n" +
		fmt.Sprintf("• Всего записей: %d\n", count) +
		fmt.Sprintf("• Всего часов: %s\n", report.FormatHours(total)) +
		fmt.Sprintf("• Дата последней записи: %s\n\n", lastDate) +
		"Продолжай в том же духе! 💪"
}

func myTimeText(hour, minute int) string {
	return fmt.Sprintf("⏰ Твое текущее время напоминания: %02d:%02d\n\n", hour, minute) +
		"Чтобы изменить время, нажми кнопку «⚙️ Напомнить»"
}

const reminderPrompt = "⏰ Установи свое время напоминания!\n\n" +
	"Введи время в формате ЧАСЫ:МИНУТЫ (24-часовой формат):\n\n" +
	"Примеры:\n" +
	"• 18:00 - в 6 вечера\n" +
	"• 09:30 - в 9:30 утра\n" +
	"• 17:45 - в 5:45 вечера\n\n" +
	"/cancel - отменить"

const reminderInvalid = "❌ Неверный формат времени!\n\n" +
	"Введи время в формате ЧАСЫ:МИНУТЫ (24-часовой формат):\n" +
	"• 18:00\n• 09:30\n• 17:45\n\n" +
	"Попробуй еще раз или отправь /cancel."

func reminderSet(hour, minute int) string {
	return fmt.Sprintf("✅ Отлично! Твое время напоминания установлено на %02d:%02d\n\n", hour, minute) +
		"Каждый день в это время я буду присылать тебе напоминание заполнить отчет о работе.\n\n" +
		"Ты всегда можешь изменить время через кнопку «⚙️ Напомнить»"
}

func testReminderText(hour, minute int) string {
	return "🔔 ТЕСТОВОЕ НАПОМИНАНИЕ!\n\n" +
		"Привет! Пора заполнить отчет о работе за сегодня.\n\n" +
		fmt.Sprintf("⏰ Твое установленное время: %02d:%02d\n\n", hour, minute) +
		"Нажми кнопку «📝 Отчет», чтобы добавить запись о работе!"
}

const testReminderSent = "✅ Тестовое напоминание отправлено!"

const downloadCaption = "📊 Вот файл с отчетами!\n\n" +
	"Файл содержит все записи о рабочем времени.\n" +
	"Каждый пользователь имеет свой лист в файле."

const downloadFailed = "❌ Произошла ошибка при отправке файла. Попробуй позже."

func deletedText(day string) string {
	return fmt.Sprintf("🗑 Запись за %s удалена. Можно заполнить отчет заново.", day)
}

func nothingToDelete(day string) string {
	return fmt.Sprintf("ℹ️ За %s записей нет.", day)
}

const deleteFailed = "❌ Не удалось удалить запись. Попробуй позже."

const statsFailed = "❌ Не удалось прочитать статистику. Попробуй позже."

const unknownCommand = "❌ Неизвестная команда.\n\nИспользуй кнопки меню:\n" + menuHelp

const unknownText = "Неизвестная команда. Используй кнопки меню."

const helpText = "ℹ️ Я веду учет рабочего времени.\n\n" +
	"Команды:\n" +
	"/report - заполнить отчет за сегодня\n" +
	"/stats - статистика\n" +
	"/my_time - время напоминания\n" +
	"/reminder - изменить время напоминания\n" +
	"/test_remind - тестовое напоминание\n" +
	"/download - скачать файл с отчетами\n" +
	"/delete_today - удалить сегодняшнюю запись\n" +
	"/cancel - отменить текущий диалог\n\n" +
	menuHelp
