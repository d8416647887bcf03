package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/suxofrukt/WeatherTRPP/internal/domain"
)

// Reply keyboard buttons
const (
	btnWeather       = "🌤 Weather"
	btnForecast      = "📅 Forecast"
	btnSubscribe     = "🔔 Subscribe"
	btnSubscriptions = "📋 My subscriptions"
	btnHistory       = "🕘 History"
)

const callbackUnsubscribe = "unsub:"

// UI texts in English
const (
	startText = "👋 I am a weather bot.\n\n" +
		"Ask me for the current weather or a forecast, or subscribe to a city: " +
		"I will send its forecast every morning and warn you when rain or snow is coming.\n\n" +
		"Send /help for the list of commands."
	helpText = "Commands:\n" +
		"/weather <city>: current weather\n" +
		"/forecast <city>: forecast for the next days\n" +
		"/subscribe <city> [HH:MM] [Region/City]: daily forecast and precipitation alerts\n" +
		"/unsubscribe <city>: stop notifications for a city\n" +
		"/subscriptions: your subscriptions\n" +
		"/history: your last requests"
	unknownCommandText  = "Unknown command. Send /help for the list of commands."
	askCityText         = "Which city?"
	askSubscribeText    = "Send the city, optionally followed by time and timezone.\nExample: Berlin 07:30 Europe/Berlin"
	cityNotFoundText    = "🏙 City not found. Check the spelling and try again."
	invalidCityText     = "That does not look like a city name."
	weatherDownText     = "⚠️ The weather service is unavailable right now. Please try again later."
	storageDownText     = "⚠️ Something went wrong on our side. Please try again later."
	noSubscriptionsText = "You have no subscriptions yet. Use /subscribe <city>."
	noHistoryText       = "You have not requested any weather yet."
	subscriptionsTitle  = "🔔 Your subscriptions:"
	historyTitle        = "🕘 Your last requests:"
	subscribedFmt       = "✅ Subscribed to %s.\nDaily forecast at %s (%s), next one %s.\nYou will also get precipitation alerts."
	unsubscribedFmt     = "🔕 Unsubscribed from %s."
	notSubscribedFmt    = "You are not subscribed to %s."
	historyLimit        = 10
)

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnWeather),
			tgbotapi.NewKeyboardButton(btnForecast),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSubscribe),
			tgbotapi.NewKeyboardButton(btnSubscriptions),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnHistory),
		),
	)
}

// unsubscribeKeyboard offers one button per subscription. Telegram limits
// callback data to 64 bytes, longer city names are left out.
func unsubscribeKeyboard(subs []domain.Subscription) (tgbotapi.InlineKeyboardMarkup, bool) {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, s := range subs {
		data := callbackUnsubscribe + s.City
		if len(data) > 64 {
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔕 "+s.City, data),
		))
	}
	if len(rows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}
