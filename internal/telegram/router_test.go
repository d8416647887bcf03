package telegram

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/suxofrukt/WeatherTRPP/internal/domain"
	"github.com/suxofrukt/WeatherTRPP/internal/store"
)

type fakeBot struct {
	mu        sync.Mutex
	sent      []tgbotapi.MessageConfig
	callbacks []string
	errs      []error // consumed by Send in order
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.errs) > 0 {
		err := b.errs[0]
		b.errs = b.errs[1:]
		if err != nil {
			return tgbotapi.Message{}, err
		}
	}
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		b.sent = append(b.sent, m)
	}
	return tgbotapi.Message{MessageID: len(b.sent)}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		b.callbacks = append(b.callbacks, cb.CallbackQueryID)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.sent, "no message sent")
	return b.sent[len(b.sent)-1]
}

type fakeWeather struct {
	reports map[string]string
	err     error
}

func (w *fakeWeather) lookup(city string) (string, error) {
	if w.err != nil {
		return "", w.err
	}
	r, ok := w.reports[city]
	if !ok {
		return "", domain.ErrCityNotFound
	}
	return r, nil
}

func (w *fakeWeather) CurrentReport(_ context.Context, city string) (string, error) {
	return w.lookup(city)
}

func (w *fakeWeather) Forecast(_ context.Context, city string) (string, error) {
	r, err := w.lookup(city)
	if err != nil {
		return "", err
	}
	return "forecast: " + r, nil
}

type fixture struct {
	router  *Router
	bot     *fakeBot
	repo    *store.SQLRepo
	weather *fakeWeather
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	bot := &fakeBot{}
	weather := &fakeWeather{reports: map[string]string{
		"Berlin":   "Weather in Berlin: 12°C",
		"New York": "Weather in New York: 20°C",
	}}
	r := NewRouter(bot, zaptest.NewLogger(t), repo, weather, Defaults{
		TZ:       "Europe/Moscow",
		NotifyAt: domain.NewTimeOfDay(8, 0, 0),
	})
	r.now = func() time.Time { return time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC) }
	return fixture{router: r, bot: bot, repo: repo, weather: weather}
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: chatID, UserName: "alice"},
	}}
}

func TestRouter_SubscribeListUnsubscribe(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.router.HandleUpdate(ctx, textUpdate(5, "/subscribe New York 08:15 America/New_York"))
	reply := f.bot.last(t).Text
	assert.Contains(t, reply, "Subscribed to New York")
	assert.Contains(t, reply, "08:15 (America/New_York)")
	assert.Contains(t, reply, "2025-03-01 08:15", "next fire in local time")

	sub, err := f.repo.GetSubscription(ctx, 5, "new york")
	require.NoError(t, err)
	assert.True(t, sub.Active)
	assert.Equal(t, "America/New_York", sub.TZ)

	f.router.HandleUpdate(ctx, textUpdate(5, "/subscriptions"))
	list := f.bot.last(t)
	assert.Contains(t, list.Text, "New York: 08:15 America/New_York")
	kb, ok := list.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 1)
	data := kb.InlineKeyboard[0][0].CallbackData
	require.NotNil(t, data)
	assert.Equal(t, "unsub:New York", *data)

	f.router.HandleUpdate(ctx, tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		Data:    *data,
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 5}},
	}})
	assert.Equal(t, "🔕 Unsubscribed from New York.", f.bot.last(t).Text)
	assert.Equal(t, []string{"cb-1"}, f.bot.callbacks)

	active, err := f.repo.ListActiveSubscriptions(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	f.router.HandleUpdate(ctx, textUpdate(5, "/unsubscribe New York"))
	assert.Equal(t, "You are not subscribed to New York.", f.bot.last(t).Text)
}

func TestRouter_SubscribeUsesDefaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.router.HandleUpdate(ctx, textUpdate(6, "/subscribe"))
	assert.Equal(t, askSubscribeText, f.bot.last(t).Text)
	f.router.HandleUpdate(ctx, textUpdate(6, "Berlin"))

	sub, err := f.repo.GetSubscription(ctx, 6, "Berlin")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Moscow", sub.TZ)
	assert.Equal(t, domain.NewTimeOfDay(8, 0, 0), sub.NotifyAt)
}

func TestRouter_SubscribeUnknownCityStoresNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.router.HandleUpdate(ctx, textUpdate(7, "/subscribe Atlantis 07:00"))
	assert.Equal(t, cityNotFoundText, f.bot.last(t).Text)

	_, err := f.repo.GetSubscription(ctx, 7, "Atlantis")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRouter_SubscribeRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.router.HandleUpdate(ctx, textUpdate(8, "/subscribe Berlin 07:00 Mars/Olympus"))
	assert.Contains(t, f.bot.last(t).Text, "Invalid timezone")

	f.router.HandleUpdate(ctx, textUpdate(8, "/subscribe Berlin 31:00"))
	assert.Contains(t, f.bot.last(t).Text, "Invalid time")
}

func TestRouter_WeatherButtonFlowRecordsHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.router.HandleUpdate(ctx, textUpdate(9, btnWeather))
	assert.Equal(t, askCityText, f.bot.last(t).Text)

	f.router.HandleUpdate(ctx, textUpdate(9, "Berlin"))
	assert.Equal(t, "Weather in Berlin: 12°C", f.bot.last(t).Text)

	f.router.HandleUpdate(ctx, textUpdate(9, "/forecast New York"))
	assert.Equal(t, "forecast: Weather in New York: 20°C", f.bot.last(t).Text)

	// The pending slot was consumed; plain text now gets the help.
	f.router.HandleUpdate(ctx, textUpdate(9, "Berlin"))
	assert.Equal(t, helpText, f.bot.last(t).Text)

	hist, err := f.repo.History(ctx, 9, 10)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "alice", hist[0].Username)

	f.router.HandleUpdate(ctx, textUpdate(9, "/history"))
	out := f.bot.last(t).Text
	assert.Contains(t, out, historyTitle)
	assert.Contains(t, out, "Berlin (current)")
	assert.Contains(t, out, "New York (forecast)")
}

func TestRouter_ProviderDown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.weather.err = errors.Join(domain.ErrProvider, errors.New("503"))

	f.router.HandleUpdate(ctx, textUpdate(10, "/weather Berlin"))
	assert.Equal(t, weatherDownText, f.bot.last(t).Text)

	hist, err := f.repo.History(ctx, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, hist, "failed lookups are not recorded")
}

func TestRouter_StartAndUnknownCommand(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.router.HandleUpdate(ctx, textUpdate(11, "/start"))
	start := f.bot.last(t)
	assert.Equal(t, startText, start.Text)
	_, ok := start.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	assert.True(t, ok)

	f.router.HandleUpdate(ctx, textUpdate(11, "/teleport"))
	assert.Equal(t, unknownCommandText, f.bot.last(t).Text)

	f.router.HandleUpdate(ctx, textUpdate(11, "/subscriptions"))
	assert.Equal(t, noSubscriptionsText, f.bot.last(t).Text)
}
