package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/suxofrukt/WeatherTRPP/internal/domain"
)

const (
	dailyMessageFmt = "☀️ Daily weather for %s:\n\n%s"
	alertMessageFmt = "Attention! Weather in %s is changing. %s"

	persistAttempts = 3
	persistBackoff  = 200 * time.Millisecond
)

type pipeline func(ctx context.Context, now time.Time, sub domain.Subscription) Outcome

type persistFunc func(ctx context.Context, userID int64, city string, ts time.Time) error

// RunDailyTick evaluates every active subscription for the daily forecast at now.
func (s *Scheduler) RunDailyTick(ctx context.Context, now time.Time) (Report, error) {
	return s.runTick(ctx, domain.JobDaily, &s.dailyMu, now, s.daily)
}

// RunAlertTick evaluates every active subscription for a precipitation alert at now.
func (s *Scheduler) RunAlertTick(ctx context.Context, now time.Time) (Report, error) {
	return s.runTick(ctx, domain.JobPrecipitation, &s.alertMu, now, s.alert)
}

func (s *Scheduler) runTick(ctx context.Context, job domain.JobKind, mu *sync.Mutex, now time.Time, run pipeline) (Report, error) {
	if !mu.TryLock() {
		return Report{}, fmt.Errorf("%s: %w", job, ErrTickInProgress)
	}
	defer mu.Unlock()

	now = now.UTC()
	started := time.Now()
	rep := Report{TickID: uuid.NewString(), Job: job, At: now}
	log := s.log.With(zap.String("tick", rep.TickID), zap.String("job", string(job)))

	if s.lease != nil {
		release, ok, err := s.lease.Acquire(ctx, string(job), s.interval(job))
		switch {
		case err != nil:
			log.Warn("lease unavailable, running without it", zap.Error(err))
		case !ok:
			log.Debug("lease held elsewhere, tick skipped")
			return rep, fmt.Errorf("%s: %w", job, ErrLeaseHeld)
		default:
			defer release()
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	subs, err := s.repo.ListActiveSubscriptions(fetchCtx)
	cancel()
	if err != nil {
		if !errors.Is(err, domain.ErrRepositoryUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrRepositoryUnavailable, err)
		}
		log.Error("snapshot fetch failed, tick aborted", zap.Error(err))
		return rep, err
	}

	rep.Outcomes = make([]Outcome, len(subs))
	// Plain Group: a failed subscription must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, sub := range subs {
		i, sub := i, sub
		g.Go(func() error {
			o := s.evaluate(ctx, now, sub, run)
			o.UserID, o.City = sub.UserID, sub.City
			rep.Outcomes[i] = o
			return nil
		})
	}
	_ = g.Wait()

	rep.Duration = time.Since(started)
	rep.count()
	for _, o := range rep.Outcomes {
		switch {
		case o.Status == StatusFailed:
			log.Warn("notification failed", outcomeFields(job, o)...)
		case o.Status == StatusSkipped && o.Reason != ReasonNotDue:
			log.Debug("notification skipped", outcomeFields(job, o)...)
		}
	}
	log.Info("tick done", zap.Object("report", rep))
	return rep, nil
}

// evaluate runs one pipeline and turns a panic into a failed outcome.
func (s *Scheduler) evaluate(ctx context.Context, now time.Time, sub domain.Subscription, run pipeline) (o Outcome) {
	defer func() {
		if r := recover(); r != nil {
			o = failed(ReasonInternal, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := ctx.Err(); err != nil {
		return failed(ctxReason(err), err)
	}
	return run(ctx, now, sub)
}

func (s *Scheduler) daily(ctx context.Context, now time.Time, sub domain.Subscription) Outcome {
	due, err := domain.ShouldFireDaily(now, sub.NotifyAt, sub.TZ, sub.LastDailySentAt, s.cfg.DailyTolerance, s.cfg.DailyGuard)
	if err != nil {
		return failed(ReasonUnknownTimezone, err)
	}
	if !due {
		return skipped(ReasonNotDue)
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	report, err := s.weather.CurrentReport(opCtx, sub.City)
	cancel()
	if err != nil {
		return failed(errReason(err, ReasonProviderError), err)
	}
	return s.deliver(ctx, now, sub, fmt.Sprintf(dailyMessageFmt, sub.City, report), s.repo.UpdateLastDailySent)
}

func (s *Scheduler) alert(ctx context.Context, now time.Time, sub domain.Subscription) Outcome {
	if !domain.MayFireAlert(now, sub.LastAlertSentAt, s.cfg.AlertCooldown) {
		return skipped(ReasonCooldown)
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	text, found, err := s.weather.PrecipitationLookahead(opCtx, sub.City, s.cfg.LeadMin, s.cfg.LeadMax)
	cancel()
	if err != nil {
		return failed(errReason(err, ReasonProviderError), err)
	}
	if !found {
		return skipped(ReasonNoPrecipitation)
	}
	return s.deliver(ctx, now, sub, fmt.Sprintf(alertMessageFmt, sub.City, text), s.repo.UpdateLastAlertSent)
}

// deliver sends text and, only after a confirmed send, records now.
func (s *Scheduler) deliver(ctx context.Context, now time.Time, sub domain.Subscription, text string, persist persistFunc) Outcome {
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	err := s.channel.Send(sendCtx, sub.UserID, text)
	cancel()
	if err != nil {
		return failed(errReason(err, ReasonSendError), err)
	}

	// The message is out; record it even if the tick is being canceled.
	if err := s.persist(context.WithoutCancel(ctx), now, sub, persist); err != nil {
		return failed(ReasonPersistError, fmt.Errorf("sent but not recorded: %w", err))
	}
	return sent()
}

func (s *Scheduler) persist(ctx context.Context, now time.Time, sub domain.Subscription, persist persistFunc) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	var err error
	for attempt := 0; attempt < persistAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(err, ctx.Err())
			case <-time.After(persistBackoff * time.Duration(attempt)):
			}
		}
		err = persist(ctx, sub.UserID, sub.City, now)
		if err == nil || !errors.Is(err, domain.ErrRepositoryUnavailable) {
			return err
		}
	}
	return err
}

func errReason(err error, fallback Reason) Reason {
	if r := ctxReason(err); r != ReasonNone {
		return r
	}
	return fallback
}

func ctxReason(err error) Reason {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	}
	return ReasonNone
}
