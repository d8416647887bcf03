package domain

import "errors"

var (
	// ErrRepositoryUnavailable aborts a whole scheduler tick; the next tick retries.
	ErrRepositoryUnavailable = errors.New("repository unavailable")
	ErrUnknownTimezone       = errors.New("unknown timezone")
	ErrProvider              = errors.New("weather provider error")
	ErrCityNotFound          = errors.New("city not found")
	ErrChannelSend           = errors.New("channel send failed")
	ErrNotFound              = errors.New("not found")
)
