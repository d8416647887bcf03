package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/suxofrukt/WeatherTRPP/internal/cache"
	"github.com/suxofrukt/WeatherTRPP/internal/config"
	"github.com/suxofrukt/WeatherTRPP/internal/scheduler"
	"github.com/suxofrukt/WeatherTRPP/internal/store"
	"github.com/suxofrukt/WeatherTRPP/internal/telegram"
	"github.com/suxofrukt/WeatherTRPP/internal/weather"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	bot     *tgbotapi.BotAPI
	httpSrv *http.Server
	repo    store.Repo
	redis   *cache.Redis
	router  *telegram.Router
	sched   *scheduler.Scheduler
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return &App{cfg: cfg, log: log, bot: bot, httpSrv: srv}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting weather-bot",
		zap.String("mode", a.cfg.RunMode),
		zap.String("db", a.cfg.DBDriver),
		zap.String("http", a.cfg.HTTPAddr),
		zap.String("bot", a.bot.Self.UserName),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.setup(ctx); err != nil {
		a.close()
		return err
	}
	defer a.close()

	var updates chan tgbotapi.Update
	if a.cfg.RunMode == "webhook" {
		updates = make(chan tgbotapi.Update, 100)
	}
	a.httpSrv.Handler = newHTTPHandler(a.log, a.repo, a.bot.HandleUpdate, updates)
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	updCh, err := a.receive(updates)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.sched.Run(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")

			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := a.httpSrv.Shutdown(shCtx)
			cancel()
			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}
			if a.cfg.RunMode != "webhook" {
				a.bot.StopReceivingUpdates()
			}

			// In-flight ticks finish recording what they already sent.
			wg.Wait()
			return nil

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}

// setup opens storage and the optional Redis, then wires the weather
// client, Telegram router and scheduler.
func (a *App) setup(ctx context.Context) error {
	repo, err := store.Open(ctx, a.cfg.DBDriver, a.cfg.DBPath, a.cfg.DatabaseURL)
	if err != nil {
		a.log.Error("open store failed", zap.Error(err))
		return err
	}
	a.repo = repo
	a.log.Info("store ready", zap.String("driver", a.cfg.DBDriver))

	var (
		weatherCache weather.Cache
		schedOpts    []scheduler.Option
	)
	if a.cfg.RedisURL != "" {
		rc, err := cache.Dial(ctx, a.cfg.RedisURL)
		if err != nil {
			a.log.Error("redis connect failed", zap.Error(err))
			return err
		}
		a.redis = rc
		weatherCache = rc
		schedOpts = append(schedOpts, scheduler.WithLease(rc))
		a.log.Info("redis ready")
	}

	wc := weather.NewClient(weather.Options{
		BaseURL:  a.cfg.WeatherBaseURL,
		APIKey:   a.cfg.WeatherAPIKey,
		Units:    a.cfg.WeatherUnits,
		Lang:     a.cfg.WeatherLang,
		Timeout:  a.cfg.OpTimeout,
		Cache:    weatherCache,
		CacheTTL: a.cfg.WeatherCacheTTL,
		Log:      a.log,
	})

	a.router = telegram.NewRouter(a.bot, a.log, repo, wc, telegram.Defaults{
		TZ:       a.cfg.DefaultTZ,
		NotifyAt: a.cfg.NotifyAt(),
	})

	sender := telegram.NewSender(a.bot, a.cfg.SendRatePerSec, a.log)
	a.sched = scheduler.New(repo, wc, sender, a.log, scheduler.Config{
		DailyInterval:  a.cfg.DailyTickInterval,
		AlertInterval:  a.cfg.AlertTickInterval,
		DailyTolerance: a.cfg.DailyWindowTolerance,
		DailyGuard:     a.cfg.DailyReentryGuard,
		AlertCooldown:  a.cfg.AlertCooldown,
		LeadMin:        a.cfg.PrecipLeadMin,
		LeadMax:        a.cfg.PrecipLeadMax,
		OpTimeout:      a.cfg.OpTimeout,
		Workers:        a.cfg.SchedulerWorkers,
	}, schedOpts...)
	return nil
}

// receive registers the webhook or switches Telegram to long polling.
func (a *App) receive(webhook chan tgbotapi.Update) (<-chan tgbotapi.Update, error) {
	if webhook != nil {
		wh, err := tgbotapi.NewWebhook(a.cfg.WebhookURL)
		if err != nil {
			return nil, fmt.Errorf("webhook config: %w", err)
		}
		if _, err := a.bot.Request(wh); err != nil {
			return nil, fmt.Errorf("set webhook: %w", err)
		}
		a.log.Info("webhook registered", zap.String("url", a.cfg.WebhookURL))
		return webhook, nil
	}

	// A leftover webhook makes getUpdates fail.
	if _, err := a.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		a.log.Warn("delete webhook failed", zap.Error(err))
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	return a.bot.GetUpdatesChan(u), nil
}

func (a *App) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.repo != nil {
		_ = a.repo.Close()
	}
}
