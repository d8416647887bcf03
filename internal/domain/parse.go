package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmptyTime   = errors.New("empty time")
	ErrInvalidTime = errors.New("invalid time")
	ErrInvalidCity = errors.New("invalid city name")
)

// TimeOfDay is a wall-clock time without a date or zone.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// NewTimeOfDay panics on out-of-range values; use ParseTimeOfDay for user input.
func NewTimeOfDay(h, m, s int) TimeOfDay {
	t := TimeOfDay{Hour: h, Minute: m, Second: s}
	if !t.valid() {
		panic(fmt.Sprintf("domain: time of day out of range: %d:%d:%d", h, m, s))
	}
	return t
}

func (t TimeOfDay) valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 &&
		t.Minute >= 0 && t.Minute <= 59 &&
		t.Second >= 0 && t.Second <= 59
}

// Seconds returns seconds since midnight (0..86399).
func (t TimeOfDay) Seconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

// TimeOfDayFromSeconds is the inverse of Seconds.
func TimeOfDayFromSeconds(s int) (TimeOfDay, error) {
	if s < 0 || s >= 24*3600 {
		return TimeOfDay{}, fmt.Errorf("%w: %d seconds", ErrInvalidTime, s)
	}
	return TimeOfDay{Hour: s / 3600, Minute: s % 3600 / 60, Second: s % 60}, nil
}

// String formats as HH:MM, or HH:MM:SS when seconds are set.
func (t TimeOfDay) String() string {
	if t.Second != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	}
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TimeOfDay{}, ErrEmptyTime
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return TimeOfDay{}, fmt.Errorf("%w: expected HH:MM or HH:MM:SS, got %q", ErrInvalidTime, s)
	}
	vals := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		vals[i] = v
	}
	t := TimeOfDay{Hour: vals[0], Minute: vals[1], Second: vals[2]}
	if !t.valid() {
		return TimeOfDay{}, fmt.Errorf("%w: %q out of range", ErrInvalidTime, s)
	}
	return t, nil
}

// LoadZone resolves an IANA zone name. Unlike time.LoadLocation it rejects
// "" and "Local", which would otherwise resolve to UTC and the host zone.
func LoadZone(tz string) (*time.Location, error) {
	if tz == "" || tz == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, tz)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, tz)
	}
	return loc, nil
}

// ValidateTZ checks that the tz is a valid IANA location.
func ValidateTZ(tz string) (string, error) {
	loc, err := LoadZone(strings.TrimSpace(tz))
	if err != nil {
		return "", err
	}
	return loc.String(), nil
}

// NormalizeCity trims the name and rejects values that cannot be a city.
func NormalizeCity(s string) (string, error) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" || strings.ContainsAny(s, "/\\") || len(s) > 128 {
		return "", ErrInvalidCity
	}
	return s, nil
}

// LocalizeTime formats t in user's timezone as "2006-01-02 15:04".
func LocalizeTime(t time.Time, tz string) (string, error) {
	loc, err := LoadZone(tz)
	if err != nil {
		return "", err
	}
	return t.In(loc).Format("2006-01-02 15:04"), nil
}
