package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/suxofrukt/WeatherTRPP/internal/domain"
)

// --- Generic helpers ---

func (r *Router) sendText(chatID int64, text string) {
	if _, err := r.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.log.Warn("send reply failed", zap.Int64("chatID", chatID), zap.Error(err))
	}
}

func (r *Router) answerCallback(id, text string) error {
	_, err := r.bot.Request(tgbotapi.NewCallback(id, text))
	return err
}

func (r *Router) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opTimeout)
}

// --- Core commands ---

func (r *Router) handleStart(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, startText)
	msg.ReplyMarkup = mainMenuKeyboard()
	_, _ = r.bot.Send(msg)
}

// handleLookup answers /weather and /forecast. Without a city it asks for one.
func (r *Router) handleLookup(ctx context.Context, chatID int64, username, city string, kind domain.RequestKind) {
	if city == "" {
		state := pendingWeather
		if kind == domain.RequestForecast {
			state = pendingForecast
		}
		r.setPending(chatID, state)
		r.sendText(chatID, askCityText)
		return
	}

	city, err := domain.NormalizeCity(city)
	if err != nil {
		r.sendText(chatID, invalidCityText)
		return
	}

	opCtx, cancel := r.opContext(ctx)
	defer cancel()

	var report string
	if kind == domain.RequestForecast {
		report, err = r.weather.Forecast(opCtx, city)
	} else {
		report, err = r.weather.CurrentReport(opCtx, city)
	}
	if err != nil {
		r.replyWeatherError(chatID, city, err)
		return
	}
	r.sendText(chatID, report)

	req := domain.WeatherRequest{
		UserID:      chatID,
		Username:    username,
		City:        city,
		Kind:        kind,
		RequestedAt: r.now().UTC(),
	}
	if err := r.repo.SaveRequest(opCtx, req); err != nil {
		r.log.Error("save request failed", zap.Int64("chatID", chatID), zap.Error(err))
	}
}

func (r *Router) replyWeatherError(chatID int64, city string, err error) {
	if errors.Is(err, domain.ErrCityNotFound) {
		r.sendText(chatID, cityNotFoundText)
		return
	}
	r.log.Warn("weather lookup failed", zap.Int64("chatID", chatID), zap.String("city", city), zap.Error(err))
	r.sendText(chatID, weatherDownText)
}

// --- Subscriptions ---

func (r *Router) handleSubscribe(ctx context.Context, chatID int64, args string) {
	if args == "" {
		r.setPending(chatID, pendingSubscribe)
		r.sendText(chatID, askSubscribeText)
		return
	}

	city, at, tz, err := parseSubscribeArgs(args, r.defaults)
	switch {
	case errors.Is(err, domain.ErrUnknownTimezone):
		r.sendText(chatID, "Invalid timezone. Example: Europe/Moscow")
		return
	case errors.Is(err, domain.ErrInvalidTime):
		r.sendText(chatID, "Invalid time. Use HH:MM, e.g. 07:30")
		return
	case err != nil:
		r.sendText(chatID, invalidCityText)
		return
	}

	opCtx, cancel := r.opContext(ctx)
	defer cancel()

	// Confirm the provider knows the city before storing it.
	if _, err := r.weather.CurrentReport(opCtx, city); err != nil {
		r.replyWeatherError(chatID, city, err)
		return
	}

	sub := &domain.Subscription{
		UserID:   chatID,
		City:     city,
		NotifyAt: at,
		TZ:       tz,
		Active:   true,
	}
	if err := r.repo.UpsertSubscription(opCtx, sub); err != nil {
		r.log.Error("upsert subscription failed", zap.Int64("chatID", chatID), zap.String("city", city), zap.Error(err))
		r.sendText(chatID, storageDownText)
		return
	}

	next := "soon"
	if t, err := domain.NextDailyFire(r.now().UTC(), at, tz); err == nil {
		next, _ = domain.LocalizeTime(t, tz)
	}
	r.sendText(chatID, fmt.Sprintf(subscribedFmt, city, at, tz, next))
}

func (r *Router) handleUnsubscribe(ctx context.Context, chatID int64, city string) {
	city, err := domain.NormalizeCity(city)
	if err != nil {
		r.sendText(chatID, "Usage: /unsubscribe <city>")
		return
	}

	opCtx, cancel := r.opContext(ctx)
	defer cancel()

	ok, err := r.repo.Deactivate(opCtx, chatID, city)
	if err != nil {
		r.log.Error("deactivate failed", zap.Int64("chatID", chatID), zap.String("city", city), zap.Error(err))
		r.sendText(chatID, storageDownText)
		return
	}
	if !ok {
		r.sendText(chatID, fmt.Sprintf(notSubscribedFmt, city))
		return
	}
	r.sendText(chatID, fmt.Sprintf(unsubscribedFmt, city))
}

func (r *Router) handleSubscriptions(ctx context.Context, chatID int64) {
	opCtx, cancel := r.opContext(ctx)
	defer cancel()

	subs, err := r.repo.ListUserSubscriptions(opCtx, chatID)
	if err != nil {
		r.log.Error("list subscriptions failed", zap.Int64("chatID", chatID), zap.Error(err))
		r.sendText(chatID, storageDownText)
		return
	}
	if len(subs) == 0 {
		r.sendText(chatID, noSubscriptionsText)
		return
	}

	now := r.now().UTC()
	var b strings.Builder
	b.WriteString(subscriptionsTitle)
	for _, s := range subs {
		next := "?"
		if t, err := domain.NextDailyFire(now, s.NotifyAt, s.TZ); err == nil {
			next, _ = domain.LocalizeTime(t, s.TZ)
		}
		fmt.Fprintf(&b, "\n• %s: %s %s, next %s", s.City, s.NotifyAt, s.TZ, next)
	}

	msg := tgbotapi.NewMessage(chatID, b.String())
	if kb, ok := unsubscribeKeyboard(subs); ok {
		msg.ReplyMarkup = kb
	}
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleHistory(ctx context.Context, chatID int64) {
	opCtx, cancel := r.opContext(ctx)
	defer cancel()

	reqs, err := r.repo.History(opCtx, chatID, historyLimit)
	if err != nil {
		r.log.Error("history failed", zap.Int64("chatID", chatID), zap.Error(err))
		r.sendText(chatID, storageDownText)
		return
	}
	if len(reqs) == 0 {
		r.sendText(chatID, noHistoryText)
		return
	}

	var b strings.Builder
	b.WriteString(historyTitle)
	for _, q := range reqs {
		fmt.Fprintf(&b, "\n• %s UTC %s (%s)", q.RequestedAt.UTC().Format("2006-01-02 15:04"), q.City, q.Kind)
	}
	r.sendText(chatID, b.String())
}

// --- Free-form dispatcher (for the keyboard flows) ---

func (r *Router) handleFreeForm(ctx context.Context, chatID int64, username, text string) {
	switch r.takePending(chatID) {
	case pendingWeather:
		r.handleLookup(ctx, chatID, username, text, domain.RequestCurrent)
	case pendingForecast:
		r.handleLookup(ctx, chatID, username, text, domain.RequestForecast)
	case pendingSubscribe:
		if text == "" {
			r.sendText(chatID, invalidCityText)
			return
		}
		r.handleSubscribe(ctx, chatID, text)
	default:
		r.sendText(chatID, helpText)
	}
}
