package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suxofrukt/WeatherTRPP/internal/domain"
)

func openTestRepo(t *testing.T) *SQLRepo {
	t.Helper()
	repo, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "weather.db"))
	require.NoError(t, err, "open sqlite")
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func ptr(t time.Time) *time.Time { return &t }

func TestSQLRepo_UpsertIsUniquePerUserAndCity(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	require.NoError(t, repo.UpsertSubscription(ctx, &domain.Subscription{
		UserID: 42, City: "Berlin", NotifyAt: domain.NewTimeOfDay(7, 0, 0), TZ: "Europe/Berlin", Active: true,
	}))
	sent := time.Date(2024, time.March, 30, 6, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateLastDailySent(ctx, 42, "Berlin", sent))

	// Second subscribe to the same city, different casing: updates the row.
	require.NoError(t, repo.UpsertSubscription(ctx, &domain.Subscription{
		UserID: 42, City: "berlin", NotifyAt: domain.NewTimeOfDay(8, 30, 0), TZ: "Europe/Moscow", Active: true,
	}))

	subs, err := repo.ListUserSubscriptions(ctx, 42)
	require.NoError(t, err)
	require.Len(t, subs, 1)

	want := domain.Subscription{
		UserID:          42,
		City:            "Berlin",
		NotifyAt:        domain.NewTimeOfDay(8, 30, 0),
		TZ:              "Europe/Moscow",
		Active:          true,
		LastDailySentAt: ptr(sent),
	}
	ignore := cmpopts.IgnoreFields(domain.Subscription{}, "CreatedAt", "UpdatedAt")
	if diff := cmp.Diff(want, subs[0], ignore); diff != "" {
		t.Fatalf("subscription mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLRepo_UpsertRejectsUnknownTimezone(t *testing.T) {
	repo := openTestRepo(t)
	err := repo.UpsertSubscription(context.Background(), &domain.Subscription{
		UserID: 1, City: "Nowhere", TZ: "Nowhere/Land", Active: true,
	})
	assert.ErrorIs(t, err, domain.ErrUnknownTimezone)
}

func TestSQLRepo_DeactivateHidesFromScheduler(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	for _, city := range []string{"Moscow", "Kazan"} {
		require.NoError(t, repo.UpsertSubscription(ctx, &domain.Subscription{
			UserID: 7, City: city, NotifyAt: domain.NewTimeOfDay(8, 0, 0), TZ: "Europe/Moscow", Active: true,
		}))
	}

	ok, err := repo.Deactivate(ctx, 7, "MOSCOW")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Deactivate(ctx, 7, "Moscow")
	require.NoError(t, err)
	assert.False(t, ok, "second deactivate must report nothing changed")

	active, err := repo.ListActiveSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Kazan", active[0].City)

	// The row is kept, only the flag changes.
	row, err := repo.GetSubscription(ctx, 7, "moscow")
	require.NoError(t, err)
	assert.False(t, row.Active)

	// Re-subscribing re-activates.
	require.NoError(t, repo.UpsertSubscription(ctx, &domain.Subscription{
		UserID: 7, City: "Moscow", NotifyAt: domain.NewTimeOfDay(9, 0, 0), TZ: "Europe/Moscow", Active: true,
	}))
	active, err = repo.ListActiveSubscriptions(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestSQLRepo_TimestampUpdates(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	require.NoError(t, repo.UpsertSubscription(ctx, &domain.Subscription{
		UserID: 5, City: "Tallinn", NotifyAt: domain.NewTimeOfDay(6, 45, 0), TZ: "Europe/Tallinn", Active: true,
	}))

	alert := time.Date(2025, time.June, 1, 10, 5, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateLastAlertSent(ctx, 5, "Tallinn", alert))

	got, err := repo.GetSubscription(ctx, 5, "Tallinn")
	require.NoError(t, err)
	require.NotNil(t, got.LastAlertSentAt)
	assert.True(t, got.LastAlertSentAt.Equal(alert))
	assert.Nil(t, got.LastDailySentAt)

	err = repo.UpdateLastDailySent(ctx, 5, "Riga", alert)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLRepo_GetMissing(t *testing.T) {
	repo := openTestRepo(t)
	_, err := repo.GetSubscription(context.Background(), 1, "Oslo")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLRepo_History(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	base := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 12; i++ {
		require.NoError(t, repo.SaveRequest(ctx, domain.WeatherRequest{
			UserID:      3,
			Username:    "alice",
			City:        "City" + string(rune('A'+i)),
			Kind:        domain.RequestCurrent,
			RequestedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.SaveRequest(ctx, domain.WeatherRequest{
		UserID: 4, City: "Other", Kind: domain.RequestForecast, RequestedAt: base,
	}))

	got, err := repo.History(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, got, 10)
	assert.Equal(t, "CityL", got[0].City, "newest first")
	assert.Equal(t, domain.RequestCurrent, got[0].Kind)
	assert.True(t, got[0].RequestedAt.Equal(base.Add(11*time.Minute)))
}

func TestSQLRepo_MigrationsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "weather.db")

	first, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.UpsertSubscription(ctx, &domain.Subscription{
		UserID: 1, City: "Paris", NotifyAt: domain.NewTimeOfDay(7, 0, 0), TZ: "Europe/Paris", Active: true,
	}))
	require.NoError(t, first.Close())

	second, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer second.Close()

	subs, err := second.ListActiveSubscriptions(ctx)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestSQLRepo_RejectsOutOfRangeNotifyAt(t *testing.T) {
	repo := openTestRepo(t)
	_, err := repo.db.ExecContext(context.Background(), `
		INSERT INTO subscriptions (user_id, city, city_key, notify_at_s, tz, created_at, updated_at)
		VALUES (1, 'Oslo', 'oslo', 86400, 'Europe/Oslo', 0, 0)`)
	require.Error(t, err, "a row the scheduler cannot decode must not be stored")

	subs, err := repo.ListActiveSubscriptions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, subs)
}
