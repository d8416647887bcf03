package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/suxofrukt/WeatherTRPP/internal/domain"
)

// SQLRepo implements Repo over database/sql for both SQLite and Postgres.
type SQLRepo struct {
	db *sql.DB
	d  dialect
}

// Close releases the underlying database resources.
func (r *SQLRepo) Close() error {
	return r.db.Close()
}

// Ping checks that the database is reachable.
func (r *SQLRepo) Ping(ctx context.Context) error {
	return classify(r.db.PingContext(ctx))
}

// cityKey is the case-insensitive identity of a city within one user's subscriptions.
func cityKey(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

const subscriptionColumns = `user_id, city, notify_at_s, tz, is_active,
	last_daily_sent_at, last_alert_sent_at, created_at, updated_at`

// UpsertSubscription inserts a subscription or, if (user, city) exists,
// updates its time and timezone and re-activates it. Sent timestamps of an
// existing row are kept.
func (r *SQLRepo) UpsertSubscription(ctx context.Context, s *domain.Subscription) error {
	if s == nil {
		return errors.New("nil subscription")
	}
	if _, err := domain.ValidateTZ(s.TZ); err != nil {
		return err
	}

	now := time.Now().UTC().Unix()
	created := s.CreatedAt.UTC().Unix()
	if s.CreatedAt.IsZero() {
		created = now
	}

	_, err := r.db.ExecContext(ctx, r.d.rebind(`
		INSERT INTO subscriptions (
			user_id, city, city_key, notify_at_s, tz, is_active,
			last_daily_sent_at, last_alert_sent_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, city_key) DO UPDATE SET
			notify_at_s = excluded.notify_at_s,
			tz          = excluded.tz,
			is_active   = excluded.is_active,
			updated_at  = excluded.updated_at`),
		s.UserID, strings.TrimSpace(s.City), cityKey(s.City), s.NotifyAt.Seconds(), s.TZ, boolToInt(s.Active),
		toNullInt64(s.LastDailySentAt), toNullInt64(s.LastAlertSentAt), created, now,
	)
	return classify(err)
}

// GetSubscription returns one subscription regardless of its active flag.
func (r *SQLRepo) GetSubscription(ctx context.Context, userID int64, city string) (*domain.Subscription, error) {
	row := r.db.QueryRowContext(ctx, r.d.rebind(`
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = ? AND city_key = ?`),
		userID, cityKey(city),
	)
	s, err := scanSubscription(row)
	if err != nil {
		return nil, classify(err)
	}
	return s, nil
}

// ListUserSubscriptions returns the user's active subscriptions ordered by city.
func (r *SQLRepo) ListUserSubscriptions(ctx context.Context, userID int64) ([]domain.Subscription, error) {
	return r.list(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = ? AND is_active = 1
		ORDER BY city_key ASC`, userID)
}

// ListActiveSubscriptions returns every active subscription with full detail.
// Any failure is reported as domain.ErrRepositoryUnavailable.
func (r *SQLRepo) ListActiveSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	res, err := r.list(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE is_active = 1
		ORDER BY user_id ASC, city_key ASC`)
	if err != nil {
		if errors.Is(err, domain.ErrRepositoryUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrRepositoryUnavailable, err)
	}
	return res, nil
}

// Deactivate marks a subscription inactive. It reports false if the user had
// no active subscription for the city.
func (r *SQLRepo) Deactivate(ctx context.Context, userID int64, city string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.d.rebind(`
		UPDATE subscriptions
		SET is_active = 0, updated_at = ?
		WHERE user_id = ? AND city_key = ? AND is_active = 1`),
		time.Now().UTC().Unix(), userID, cityKey(city),
	)
	if err != nil {
		return false, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify(err)
	}
	return n > 0, nil
}

// UpdateLastDailySent records a confirmed daily delivery.
func (r *SQLRepo) UpdateLastDailySent(ctx context.Context, userID int64, city string, ts time.Time) error {
	return r.touch(ctx, "last_daily_sent_at", userID, city, ts)
}

// UpdateLastAlertSent records a confirmed precipitation alert.
func (r *SQLRepo) UpdateLastAlertSent(ctx context.Context, userID int64, city string, ts time.Time) error {
	return r.touch(ctx, "last_alert_sent_at", userID, city, ts)
}

// touch is a single-row update keyed by (user_id, city_key); column is one of
// the two constants above, never user input.
func (r *SQLRepo) touch(ctx context.Context, column string, userID int64, city string, ts time.Time) error {
	res, err := r.db.ExecContext(ctx, r.d.rebind(`
		UPDATE subscriptions
		SET `+column+` = ?
		WHERE user_id = ? AND city_key = ?`),
		ts.UTC().Unix(), userID, cityKey(city),
	)
	if err != nil {
		return classify(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s for user %d city %q: %w", column, userID, city, domain.ErrNotFound)
	}
	return nil
}

func (r *SQLRepo) list(ctx context.Context, query string, args ...any) ([]domain.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, r.d.rebind(query), args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var res []domain.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, classify(err)
		}
		res = append(res, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return res, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*domain.Subscription, error) {
	var (
		userID    int64
		city      string
		notifyAtS int
		tz        string
		activeInt int
		dailyNS   sql.NullInt64
		alertNS   sql.NullInt64
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(
		&userID, &city, &notifyAtS, &tz, &activeInt,
		&dailyNS, &alertNS, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	at, err := domain.TimeOfDayFromSeconds(notifyAtS)
	if err != nil {
		return nil, fmt.Errorf("subscription %d/%q: %w", userID, city, err)
	}
	return &domain.Subscription{
		UserID:          userID,
		City:            city,
		NotifyAt:        at,
		TZ:              tz,
		Active:          activeInt != 0,
		LastDailySentAt: fromNullInt64(dailyNS),
		LastAlertSentAt: fromNullInt64(alertNS),
		CreatedAt:       time.Unix(createdAt, 0).UTC(),
		UpdatedAt:       time.Unix(updatedAt, 0).UTC(),
	}, nil
}
