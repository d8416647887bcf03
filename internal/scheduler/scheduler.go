package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/suxofrukt/WeatherTRPP/internal/domain"
)

// ErrTickInProgress is returned when a tick of the same job is still running.
var ErrTickInProgress = errors.New("tick already in progress")

// ErrLeaseHeld is returned when another bot instance holds the job's lease.
var ErrLeaseHeld = errors.New("job lease held by another instance")

// Repository is the part of the store the scheduler depends on.
type Repository interface {
	ListActiveSubscriptions(ctx context.Context) ([]domain.Subscription, error)
	UpdateLastDailySent(ctx context.Context, userID int64, city string, ts time.Time) error
	UpdateLastAlertSent(ctx context.Context, userID int64, city string, ts time.Time) error
}

// WeatherProvider produces report and alert text for a city.
type WeatherProvider interface {
	CurrentReport(ctx context.Context, city string) (string, error)
	PrecipitationLookahead(ctx context.Context, city string, minLead, maxLead time.Duration) (string, bool, error)
}

// Channel delivers text to a user. A nil error means the message was accepted.
type Channel interface {
	Send(ctx context.Context, userID int64, text string) error
}

// Lease is a cross-instance mutual exclusion for one job.
type Lease interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
}

// Config holds the scheduler cadences, windows and limits.
type Config struct {
	DailyInterval  time.Duration
	AlertInterval  time.Duration
	DailyTolerance time.Duration
	DailyGuard     time.Duration
	AlertCooldown  time.Duration
	LeadMin        time.Duration
	LeadMax        time.Duration
	OpTimeout      time.Duration
	Workers        int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DailyInterval:  time.Minute,
		AlertInterval:  time.Hour,
		DailyTolerance: 30 * time.Second,
		DailyGuard:     60 * time.Second,
		AlertCooldown:  3 * time.Hour,
		LeadMin:        30 * time.Minute,
		LeadMax:        120 * time.Minute,
		OpTimeout:      10 * time.Second,
		Workers:        8,
	}
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithLease makes every tick acquire a cross-instance lease first.
func WithLease(l Lease) Option {
	return func(s *Scheduler) { s.lease = l }
}

// WithClock overrides the wall clock used by Run.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler periodically evaluates active subscriptions and dispatches the
// daily forecast and precipitation alerts.
type Scheduler struct {
	repo    Repository
	weather WeatherProvider
	channel Channel
	lease   Lease
	log     *zap.Logger
	cfg     Config
	now     func() time.Time

	dailyMu sync.Mutex
	alertMu sync.Mutex
}

// New creates a new Scheduler. Zero config fields fall back to DefaultConfig.
func New(repo Repository, weather WeatherProvider, channel Channel, log *zap.Logger, cfg Config, opts ...Option) *Scheduler {
	def := DefaultConfig()
	if cfg.DailyInterval <= 0 {
		cfg.DailyInterval = def.DailyInterval
	}
	if cfg.AlertInterval <= 0 {
		cfg.AlertInterval = def.AlertInterval
	}
	if cfg.DailyTolerance <= 0 {
		cfg.DailyTolerance = def.DailyTolerance
	}
	if cfg.DailyGuard <= 0 {
		cfg.DailyGuard = def.DailyGuard
	}
	if cfg.AlertCooldown <= 0 {
		cfg.AlertCooldown = def.AlertCooldown
	}
	if cfg.LeadMin <= 0 {
		cfg.LeadMin = def.LeadMin
	}
	if cfg.LeadMax <= 0 {
		cfg.LeadMax = def.LeadMax
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = def.OpTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scheduler{
		repo:    repo,
		weather: weather,
		channel: channel,
		log:     log.With(zap.String("component", "scheduler")),
		cfg:     cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run drives both jobs on independent timers until ctx is canceled. The
// daily timer is aligned to its interval boundary. Run returns after the
// in-flight ticks finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("scheduler starting",
		zap.Duration("daily_interval", s.cfg.DailyInterval),
		zap.Duration("alert_interval", s.cfg.AlertInterval),
		zap.Int("workers", s.cfg.Workers),
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.loop(ctx, domain.JobDaily, s.cfg.DailyInterval, true, s.RunDailyTick)
	}()
	go func() {
		defer wg.Done()
		s.loop(ctx, domain.JobPrecipitation, s.cfg.AlertInterval, false, s.RunAlertTick)
	}()
	wg.Wait()

	s.log.Info("scheduler stopping")
}

type tickFunc func(ctx context.Context, now time.Time) (Report, error)

func (s *Scheduler) loop(ctx context.Context, job domain.JobKind, every time.Duration, align bool, tick tickFunc) {
	if align {
		wait := s.now().Truncate(every).Add(every).Sub(s.now())
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	fire := func() {
		_, err := tick(ctx, s.now().UTC())
		switch {
		case err == nil, errors.Is(err, ErrLeaseHeld):
		case errors.Is(err, ErrTickInProgress):
			s.log.Warn("previous tick still running, skipped", zap.String("job", string(job)))
		default:
			s.log.Error("tick failed", zap.String("job", string(job)), zap.Error(err))
		}
	}

	fire()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fire()
		}
	}
}

func (s *Scheduler) interval(job domain.JobKind) time.Duration {
	if job == domain.JobDaily {
		return s.cfg.DailyInterval
	}
	return s.cfg.AlertInterval
}
