package telegram

import (
	"context"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/suxofrukt/WeatherTRPP/internal/domain"
)

// Pending state keys used in conversational flows.
const (
	pendingWeather   = "await_weather_city"
	pendingForecast  = "await_forecast_city"
	pendingSubscribe = "await_subscribe_args"
)

// Bot is the subset of *tgbotapi.BotAPI the package uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Store is the storage the chat handlers need.
type Store interface {
	UpsertSubscription(ctx context.Context, s *domain.Subscription) error
	ListUserSubscriptions(ctx context.Context, userID int64) ([]domain.Subscription, error)
	Deactivate(ctx context.Context, userID int64, city string) (bool, error)
	SaveRequest(ctx context.Context, r domain.WeatherRequest) error
	History(ctx context.Context, userID int64, limit int) ([]domain.WeatherRequest, error)
}

// Weather answers interactive lookups.
type Weather interface {
	CurrentReport(ctx context.Context, city string) (string, error)
	Forecast(ctx context.Context, city string) (string, error)
}

// Defaults fill in the optional /subscribe arguments.
type Defaults struct {
	TZ       string
	NotifyAt domain.TimeOfDay
}

// Router wires Telegram updates to handlers and holds minimal in-memory state.
type Router struct {
	bot       Bot
	log       *zap.Logger
	repo      Store
	weather   Weather
	defaults  Defaults
	opTimeout time.Duration
	now       func() time.Time

	state map[int64]string // chatID -> pending state
	mu    sync.RWMutex
}

// NewRouter creates a new Telegram router.
func NewRouter(bot Bot, log *zap.Logger, repo Store, weather Weather, defaults Defaults) *Router {
	return &Router{
		bot:       bot,
		log:       log.With(zap.String("component", "telegram")),
		repo:      repo,
		weather:   weather,
		defaults:  defaults,
		opTimeout: 15 * time.Second,
		now:       time.Now,
		state:     make(map[int64]string),
	}
}

// setPending sets a pending state for a chat (non-persistent, in-memory).
func (r *Router) setPending(chatID int64, s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[chatID] = s
}

// takePending returns and clears the pending state for a chat.
func (r *Router) takePending(chatID int64) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.state[chatID]
	delete(r.state, chatID)
	return s
}

// clearPending clears a pending state for a chat.
func (r *Router) clearPending(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.state, chatID)
}

// HandleUpdate routes a single update to appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		r.handleMessage(ctx, upd.Message)
		return
	}
	if upd.CallbackQuery != nil {
		r.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (r *Router) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	username := ""
	if msg.From != nil {
		username = msg.From.UserName
	}

	cmd, args := splitCommand(text)
	if cmd != "" || isMenuButton(text) {
		// Any command abandons an unfinished flow.
		r.clearPending(chatID)
	}

	switch {
	case cmd == "start":
		r.handleStart(chatID)
	case cmd == "help":
		r.sendText(chatID, helpText)
	case cmd == "weather" || text == btnWeather:
		r.handleLookup(ctx, chatID, username, args, domain.RequestCurrent)
	case cmd == "forecast" || text == btnForecast:
		r.handleLookup(ctx, chatID, username, args, domain.RequestForecast)
	case cmd == "subscribe" || text == btnSubscribe:
		r.handleSubscribe(ctx, chatID, args)
	case cmd == "unsubscribe":
		r.handleUnsubscribe(ctx, chatID, args)
	case cmd == "subscriptions" || text == btnSubscriptions:
		r.handleSubscriptions(ctx, chatID)
	case cmd == "history" || text == btnHistory:
		r.handleHistory(ctx, chatID)
	case cmd != "":
		r.sendText(chatID, unknownCommandText)
	default:
		r.handleFreeForm(ctx, chatID, username, text)
	}
}

func (r *Router) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	switch {
	case strings.HasPrefix(cb.Data, callbackUnsubscribe):
		city := strings.TrimPrefix(cb.Data, callbackUnsubscribe)
		_ = r.answerCallback(cb.ID, "")
		r.handleUnsubscribe(ctx, chatID, city)
	default:
		// Unknown callback, ignore silently
		_ = r.answerCallback(cb.ID, "")
	}
}

func isMenuButton(text string) bool {
	switch text {
	case btnWeather, btnForecast, btnSubscribe, btnSubscriptions, btnHistory:
		return true
	}
	return false
}

// splitCommand returns the command name without the slash or bot mention,
// and the rest of the text. cmd is empty for non-command text.
func splitCommand(text string) (cmd, args string) {
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	head, _, _ = strings.Cut(head, "@")
	return strings.ToLower(head), strings.TrimSpace(rest)
}
