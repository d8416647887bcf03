package store

import (
	"context"
	"time"

	"github.com/suxofrukt/WeatherTRPP/internal/domain"
)

// Repo defines storage operations for subscriptions and request history.
type Repo interface {
	UpsertSubscription(ctx context.Context, s *domain.Subscription) error
	GetSubscription(ctx context.Context, userID int64, city string) (*domain.Subscription, error)
	ListUserSubscriptions(ctx context.Context, userID int64) ([]domain.Subscription, error)
	Deactivate(ctx context.Context, userID int64, city string) (bool, error)

	ListActiveSubscriptions(ctx context.Context) ([]domain.Subscription, error)
	UpdateLastDailySent(ctx context.Context, userID int64, city string, ts time.Time) error
	UpdateLastAlertSent(ctx context.Context, userID int64, city string, ts time.Time) error

	SaveRequest(ctx context.Context, r domain.WeatherRequest) error
	History(ctx context.Context, userID int64, limit int) ([]domain.WeatherRequest, error)

	Ping(ctx context.Context) error
	Close() error
}

var _ Repo = (*SQLRepo)(nil)
