package domain

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"
)

const (
	testTolerance = 30 * time.Second
	testGuard     = 60 * time.Second
)

// helper: build a time in given tz and return its UTC
func mustLocalUTC(t *testing.T, tz string, y int, m time.Month, d, hh, mm, ss int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation(tz)
	if err != nil {
		t.Fatalf("load tz: %v", err)
	}
	return time.Date(y, m, d, hh, mm, ss, 0, loc).UTC()
}

func TestShouldFireDaily_BerlinSpringForward(t *testing.T) {
	at := NewTimeOfDay(7, 0, 0)

	// 2024-03-31 is the spring-forward date, local offset is +2 by 07:00.
	now := time.Date(2024, time.March, 31, 5, 0, 10, 0, time.UTC)
	ok, err := ShouldFireDaily(now, at, "Europe/Berlin", nil, testTolerance, testGuard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("want fire at %s", now)
	}

	// The pre-transition UTC instant is an hour late on that date.
	late := time.Date(2024, time.March, 31, 6, 0, 10, 0, time.UTC)
	if ok, _ := ShouldFireDaily(late, at, "Europe/Berlin", nil, testTolerance, testGuard); ok {
		t.Fatalf("want no fire at %s", late)
	}

	// The day before, still +1, the target is 06:00Z.
	before := time.Date(2024, time.March, 30, 6, 0, 10, 0, time.UTC)
	if ok, _ := ShouldFireDaily(before, at, "Europe/Berlin", nil, testTolerance, testGuard); !ok {
		t.Fatalf("want fire at %s", before)
	}
	early := time.Date(2024, time.March, 30, 5, 0, 10, 0, time.UTC)
	if ok, _ := ShouldFireDaily(early, at, "Europe/Berlin", nil, testTolerance, testGuard); ok {
		t.Fatalf("want no fire at %s", early)
	}
}

func TestDailyTarget_ShiftEqualsOffsetChange(t *testing.T) {
	at := NewTimeOfDay(7, 0, 0)
	cases := []struct {
		name       string
		tz         string
		transition time.Time
		regular    time.Time
	}{
		{
			name:       "berlin spring forward",
			tz:         "Europe/Berlin",
			transition: time.Date(2024, time.March, 31, 12, 0, 0, 0, time.UTC),
			regular:    time.Date(2024, time.March, 29, 12, 0, 0, 0, time.UTC),
		},
		{
			name:       "berlin fall back",
			tz:         "Europe/Berlin",
			transition: time.Date(2024, time.October, 27, 12, 0, 0, 0, time.UTC),
			regular:    time.Date(2024, time.October, 25, 12, 0, 0, 0, time.UTC),
		},
		{
			name:       "new york spring forward",
			tz:         "America/New_York",
			transition: time.Date(2024, time.March, 10, 18, 0, 0, 0, time.UTC),
			regular:    time.Date(2024, time.March, 8, 18, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			loc, _ := time.LoadLocation(tc.tz)
			onD, err := DailyTarget(tc.transition, at, tc.tz)
			if err != nil {
				t.Fatalf("target: %v", err)
			}
			offD, err := DailyTarget(tc.regular, at, tc.tz)
			if err != nil {
				t.Fatalf("target: %v", err)
			}

			_, offsetOnD := onD.In(loc).Zone()
			_, offsetRegular := offD.In(loc).Zone()
			wantShift := time.Duration(offsetRegular-offsetOnD) * time.Second

			gotShift := clockOf(onD) - clockOf(offD)
			if gotShift != wantShift {
				t.Fatalf("utc shift: want %s, got %s", wantShift, gotShift)
			}
			if wantShift == 0 {
				t.Fatalf("test dates do not straddle a transition")
			}
		})
	}
}

// clockOf returns the UTC time of day of t as a duration since midnight.
func clockOf(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
}

func TestShouldFireDaily_ExactlyOncePerLocalDay(t *testing.T) {
	const tz = "Europe/Berlin"
	at := NewTimeOfDay(7, 0, 0)
	loc, _ := time.LoadLocation(tz)

	// Cover the spring-forward weekend with several tick phases.
	for _, phase := range []time.Duration{0, 17 * time.Second, 30 * time.Second, 45 * time.Second} {
		start := time.Date(2024, time.March, 29, 0, 0, 0, 0, time.UTC).Add(phase)
		end := start.Add(4 * 24 * time.Hour)

		var last *time.Time
		fires := map[string]int{}
		for now := start; now.Before(end); now = now.Add(time.Minute) {
			ok, err := ShouldFireDaily(now, at, tz, last, testTolerance, testGuard)
			if err != nil {
				t.Fatalf("phase %s: %v", phase, err)
			}
			if ok {
				sent := now
				last = &sent
				fires[now.In(loc).Format("2006-01-02")]++
			}
		}

		if len(fires) != 4 {
			t.Fatalf("phase %s: want fires on 4 days, got %v", phase, fires)
		}
		for day, n := range fires {
			if n != 1 {
				t.Fatalf("phase %s: day %s fired %d times", phase, day, n)
			}
		}
	}
}

func TestShouldFireDaily_ReentryGuard(t *testing.T) {
	at := NewTimeOfDay(9, 30, 0)
	now := mustLocalUTC(t, "Asia/Almaty", 2025, time.May, 6, 9, 30, 5)

	recent := now.Add(-20 * time.Second)
	if ok, _ := ShouldFireDaily(now, at, "Asia/Almaty", &recent, testTolerance, testGuard); ok {
		t.Fatal("want guard to block a send 20s after the last one")
	}

	sameInstant := now
	if ok, _ := ShouldFireDaily(now, at, "Asia/Almaty", &sameInstant, testTolerance, testGuard); ok {
		t.Fatal("want guard to block a repeated tick at the same instant")
	}

	yesterday := now.Add(-24 * time.Hour)
	if ok, _ := ShouldFireDaily(now, at, "Asia/Almaty", &yesterday, testTolerance, testGuard); !ok {
		t.Fatal("want fire when the last send was yesterday")
	}
}

// A failed send at the only in-window tick is not retried later that day.
// The next delivery is the following day's window.
func TestShouldFireDaily_MissedWindowIsLostUntilNextDay(t *testing.T) {
	const tz = "Europe/Moscow"
	at := NewTimeOfDay(8, 0, 0)
	first := mustLocalUTC(t, tz, 2025, time.May, 5, 8, 0, 0)

	ok, err := ShouldFireDaily(first, at, tz, nil, testTolerance, testGuard)
	if err != nil || !ok {
		t.Fatalf("want fire at window tick, got ok=%v err=%v", ok, err)
	}

	// Send failed, nothing recorded. Every later tick that day stays silent.
	for now := first.Add(time.Minute); now.Before(first.Add(23 * time.Hour)); now = now.Add(time.Minute) {
		if ok, _ := ShouldFireDaily(now, at, tz, nil, testTolerance, testGuard); ok {
			t.Fatalf("missed window was retried at %s", now)
		}
	}

	next := first.Add(24 * time.Hour)
	if ok, _ := ShouldFireDaily(next, at, tz, nil, testTolerance, testGuard); !ok {
		t.Fatalf("want fire on the following day at %s", next)
	}
}

func TestShouldFireDaily_WindowAcrossLocalMidnight(t *testing.T) {
	const tz = "Europe/Tallinn"
	at := NewTimeOfDay(23, 59, 50)
	now := mustLocalUTC(t, tz, 2025, time.May, 6, 0, 0, 5)

	ok, err := ShouldFireDaily(now, at, tz, nil, testTolerance, testGuard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("want fire 15s after yesterday's 23:59:50 target")
	}
}

func TestShouldFireDaily_UnknownTimezone(t *testing.T) {
	now := time.Date(2025, time.May, 5, 8, 0, 10, 0, time.UTC)
	// "" and "Local" resolve to UTC and the host zone in the time package.
	for _, tz := range []string{"Mars/Olympus_Mons", "", "Local"} {
		ok, err := ShouldFireDaily(now, NewTimeOfDay(8, 0, 0), tz, nil, testTolerance, testGuard)
		if ok {
			t.Fatalf("tz %q: want no fire", tz)
		}
		if !errors.Is(err, ErrUnknownTimezone) {
			t.Fatalf("tz %q: want ErrUnknownTimezone, got %v", tz, err)
		}
		if _, err := DailyTarget(now, NewTimeOfDay(8, 0, 0), tz); !errors.Is(err, ErrUnknownTimezone) {
			t.Fatalf("tz %q: target: want ErrUnknownTimezone, got %v", tz, err)
		}
		if _, err := NextDailyFire(now, NewTimeOfDay(8, 0, 0), tz); !errors.Is(err, ErrUnknownTimezone) {
			t.Fatalf("tz %q: next: want ErrUnknownTimezone, got %v", tz, err)
		}
	}
}

func TestNextDailyFire(t *testing.T) {
	const tz = "Europe/Moscow"
	at := NewTimeOfDay(8, 0, 0)

	before := mustLocalUTC(t, tz, 2025, time.May, 5, 7, 0, 0)
	got, err := NextDailyFire(before, at, tz)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if want := mustLocalUTC(t, tz, 2025, time.May, 5, 8, 0, 0); !got.Equal(want) {
		t.Fatalf("want %s, got %s", want, got)
	}

	after := mustLocalUTC(t, tz, 2025, time.May, 5, 8, 0, 0)
	got, err = NextDailyFire(after, at, tz)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if want := mustLocalUTC(t, tz, 2025, time.May, 6, 8, 0, 0); !got.Equal(want) {
		t.Fatalf("want %s, got %s", want, got)
	}
}

func TestMayFireAlert(t *testing.T) {
	const cooldown = 3 * time.Hour
	now := time.Date(2025, time.July, 1, 12, 0, 0, 0, time.UTC)

	if !MayFireAlert(now, nil, cooldown) {
		t.Fatal("want fire when no alert was sent yet")
	}

	twoHoursAgo := now.Add(-2 * time.Hour)
	if MayFireAlert(now, &twoHoursAgo, cooldown) {
		t.Fatal("want cooldown to block an alert sent 2h ago")
	}

	longAgo := now.Add(-(3*time.Hour + time.Minute))
	if !MayFireAlert(now, &longAgo, cooldown) {
		t.Fatal("want fire after 3h1m")
	}

	exactly := now.Add(-cooldown)
	if !MayFireAlert(now, &exactly, cooldown) {
		t.Fatal("want fire at exactly the cooldown boundary")
	}
}

func TestMayFireAlert_RepeatedCallsInsideCooldown(t *testing.T) {
	const cooldown = 3 * time.Hour
	last := time.Date(2025, time.July, 1, 9, 0, 0, 0, time.UTC)

	for _, delta := range []time.Duration{0, time.Second, 90 * time.Minute, cooldown - time.Second} {
		now := last.Add(delta)
		first := MayFireAlert(now, &last, cooldown)
		second := MayFireAlert(now.Add(time.Millisecond), &last, cooldown)
		if first || second {
			t.Fatalf("delta %s: want both calls blocked, got %v/%v", delta, first, second)
		}
	}
}
