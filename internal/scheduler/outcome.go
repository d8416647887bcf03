package scheduler

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/suxofrukt/WeatherTRPP/internal/domain"
)

// Status is the result class of one subscription in one tick.
type Status string

const (
	StatusSent    Status = "sent"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Reason explains a skip or a failure.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonNotDue          Reason = "not_due"
	ReasonCooldown        Reason = "cooldown"
	ReasonNoPrecipitation Reason = "no_precipitation"
	ReasonUnknownTimezone Reason = "unknown_timezone"
	ReasonProviderError   Reason = "provider_error"
	ReasonSendError       Reason = "send_error"
	ReasonTimeout         Reason = "timeout"
	ReasonCanceled        Reason = "canceled"
	ReasonPersistError    Reason = "persist_error"
	ReasonInternal        Reason = "internal_error"
)

// Outcome is what happened to one subscription during a tick.
type Outcome struct {
	UserID int64
	City   string
	Status Status
	Reason Reason
	Err    error
}

func sent() Outcome                      { return Outcome{Status: StatusSent} }
func skipped(r Reason) Outcome           { return Outcome{Status: StatusSkipped, Reason: r} }
func failed(r Reason, err error) Outcome { return Outcome{Status: StatusFailed, Reason: r, Err: err} }

// Report aggregates the outcomes of one tick. Outcomes is index-aligned
// with the subscription snapshot.
type Report struct {
	TickID   string
	Job      domain.JobKind
	At       time.Time
	Duration time.Duration
	Outcomes []Outcome
	Sent     int
	Skipped  int
	Failed   int
}

func (r *Report) count() {
	r.Sent, r.Skipped, r.Failed = 0, 0, 0
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusSent:
			r.Sent++
		case StatusSkipped:
			r.Skipped++
		case StatusFailed:
			r.Failed++
		}
	}
}

// Reasons returns how many outcomes carry each non-empty reason.
func (r Report) Reasons() map[Reason]int {
	m := make(map[Reason]int)
	for _, o := range r.Outcomes {
		if o.Reason != ReasonNone {
			m[o.Reason]++
		}
	}
	return m
}

// MarshalLogObject lets a Report be logged as a single zap field.
func (r Report) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("tick", r.TickID)
	enc.AddString("job", string(r.Job))
	enc.AddTime("at", r.At)
	enc.AddDuration("duration", r.Duration)
	enc.AddInt("total", len(r.Outcomes))
	enc.AddInt("sent", r.Sent)
	enc.AddInt("skipped", r.Skipped)
	enc.AddInt("failed", r.Failed)
	return enc.AddObject("reasons", zapcore.ObjectMarshalerFunc(func(enc zapcore.ObjectEncoder) error {
		for reason, n := range r.Reasons() {
			enc.AddInt(string(reason), n)
		}
		return nil
	}))
}

func outcomeFields(job domain.JobKind, o Outcome) []zap.Field {
	fields := []zap.Field{
		zap.String("job", string(job)),
		zap.Int64("user_id", o.UserID),
		zap.String("city", o.City),
		zap.String("reason", string(o.Reason)),
	}
	if o.Err != nil {
		fields = append(fields, zap.Error(o.Err))
	}
	return fields
}
