package domain

import "time"

// Subscription is one user's standing interest in one city.
// (UserID, City) is unique; unsubscribing clears Active instead of deleting the row.
type Subscription struct {
	UserID          int64
	City            string     // provider lookup key, stored verbatim
	NotifyAt        TimeOfDay  // local time of the daily forecast
	TZ              string     // IANA name
	Active          bool       // false once unsubscribed
	LastDailySentAt *time.Time // UTC, nullable
	LastAlertSentAt *time.Time // UTC, nullable
	CreatedAt       time.Time  // UTC
	UpdatedAt       time.Time  // UTC
}

// JobKind names the notification a scheduler tick is evaluating.
type JobKind string

const (
	JobDaily         JobKind = "daily"
	JobPrecipitation JobKind = "precipitation-alert"
)

// RequestKind distinguishes interactive lookups in the request history.
type RequestKind string

const (
	RequestCurrent  RequestKind = "current"
	RequestForecast RequestKind = "forecast"
)

// WeatherRequest is one successful interactive lookup made by a user.
type WeatherRequest struct {
	UserID      int64
	Username    string
	City        string
	Kind        RequestKind
	RequestedAt time.Time // UTC
}
