package domain

import "time"

// DailyTarget returns the UTC instant of notifyAt on the local calendar date
// that nowUTC falls on in tz. Zone rules of that specific date apply, so the
// instant moves with DST transitions.
func DailyTarget(nowUTC time.Time, notifyAt TimeOfDay, tz string) (time.Time, error) {
	loc, err := LoadZone(tz)
	if err != nil {
		return time.Time{}, err
	}
	local := nowUTC.In(loc)
	target := time.Date(local.Year(), local.Month(), local.Day(),
		notifyAt.Hour, notifyAt.Minute, notifyAt.Second, 0, loc)
	return target.UTC(), nil
}

// NextDailyFire returns the first target instant strictly after nowUTC.
func NextDailyFire(nowUTC time.Time, notifyAt TimeOfDay, tz string) (time.Time, error) {
	loc, err := LoadZone(tz)
	if err != nil {
		return time.Time{}, err
	}
	target, err := DailyTarget(nowUTC, notifyAt, tz)
	if err != nil {
		return time.Time{}, err
	}
	if target.After(nowUTC) {
		return target, nil
	}
	// Noon of the next local date; never lands in a DST gap.
	local := nowUTC.In(loc)
	tomorrow := time.Date(local.Year(), local.Month(), local.Day()+1, 12, 0, 0, 0, loc)
	return DailyTarget(tomorrow.UTC(), notifyAt, tz)
}

// ShouldFireDaily reports whether the daily forecast is due at nowUTC.
//
// It fires only when nowUTC is within tolerance of the local target instant and
// the previous delivery is older than guard. A day whose window passes
// without a successful send is not caught up later: the next chance is the
// following day's window.
func ShouldFireDaily(nowUTC time.Time, notifyAt TimeOfDay, tz string, lastSent *time.Time, tolerance, guard time.Duration) (bool, error) {
	loc, err := LoadZone(tz)
	if err != nil {
		return false, err
	}
	if absDuration(nowUTC.Sub(nearestTarget(nowUTC, notifyAt, loc))) > tolerance {
		return false, nil
	}
	if lastSent != nil && nowUTC.Sub(*lastSent) <= guard {
		return false, nil
	}
	return true, nil
}

// MayFireAlert is a debounce: an alert may go out when none was sent yet or
// the last one is at least cooldown old. Whether precipitation is expected is
// decided elsewhere, and only after this gate passes.
func MayFireAlert(nowUTC time.Time, lastAlert *time.Time, cooldown time.Duration) bool {
	if lastAlert == nil {
		return true
	}
	return nowUTC.Sub(*lastAlert) >= cooldown
}

// nearestTarget picks the closest of yesterday's, today's and tomorrow's
// local targets, so a window straddling local midnight is still seen.
func nearestTarget(nowUTC time.Time, notifyAt TimeOfDay, loc *time.Location) time.Time {
	local := nowUTC.In(loc)
	var best time.Time
	for day := -1; day <= 1; day++ {
		t := time.Date(local.Year(), local.Month(), local.Day()+day,
			notifyAt.Hour, notifyAt.Minute, notifyAt.Second, 0, loc).UTC()
		if best.IsZero() || absDuration(nowUTC.Sub(t)) < absDuration(nowUTC.Sub(best)) {
			best = t
		}
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
