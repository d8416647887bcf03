package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/suxofrukt/WeatherTRPP/internal/domain"
)

// maxRetryAfter caps how long a send waits when Telegram asks to slow down.
const maxRetryAfter = 30 * time.Second

// Sender delivers scheduler notifications through the bot, keeping under
// Telegram's global flood limit.
type Sender struct {
	bot     Bot
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewSender creates a Sender allowing perSecond messages per second.
func NewSender(bot Bot, perSecond float64, log *zap.Logger) *Sender {
	if perSecond <= 0 {
		perSecond = 25
	}
	return &Sender{
		bot:     bot,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		log:     log.With(zap.String("component", "sender")),
	}
}

// Send waits for a rate slot and sends text to userID. A nil error means
// Telegram accepted the message. A 429 answer is retried once after the
// advertised delay if ctx allows.
func (s *Sender) Send(ctx context.Context, userID int64, text string) error {
	err := s.send(ctx, userID, text)
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) || apiErr.RetryAfter <= 0 {
		return err
	}

	wait := time.Duration(apiErr.RetryAfter) * time.Second
	if wait > maxRetryAfter {
		return err
	}
	s.log.Warn("rate limited by telegram", zap.Int64("user_id", userID), zap.Duration("retry_after", wait))
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", domain.ErrChannelSend, ctx.Err())
	case <-timer.C:
	}
	return s.send(ctx, userID, text)
}

func (s *Sender) send(ctx context.Context, userID int64, text string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrChannelSend, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrChannelSend, err)
	}
	if _, err := s.bot.Send(tgbotapi.NewMessage(userID, text)); err != nil {
		return fmt.Errorf("%w: chat %d: %w", domain.ErrChannelSend, userID, err)
	}
	return nil
}
