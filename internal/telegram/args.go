package telegram

import (
	"strings"

	"github.com/suxofrukt/WeatherTRPP/internal/domain"
)

// parseSubscribeArgs splits "<city> [HH:MM] [Region/City]". The city may
// contain spaces; the optional time and zone are read from the end.
func parseSubscribeArgs(args string, defaults Defaults) (city string, at domain.TimeOfDay, tz string, err error) {
	fields := strings.Fields(args)
	at, tz = defaults.NotifyAt, defaults.TZ

	if n := len(fields); n > 1 && looksLikeZone(fields[n-1]) {
		zone := fields[n-1]
		if strings.EqualFold(zone, "UTC") {
			zone = "UTC"
		}
		if tz, err = domain.ValidateTZ(zone); err != nil {
			return "", domain.TimeOfDay{}, "", err
		}
		fields = fields[:n-1]
	}
	if n := len(fields); n > 1 && strings.Contains(fields[n-1], ":") {
		if at, err = domain.ParseTimeOfDay(fields[n-1]); err != nil {
			return "", domain.TimeOfDay{}, "", err
		}
		fields = fields[:n-1]
	}

	city, err = domain.NormalizeCity(strings.Join(fields, " "))
	if err != nil {
		return "", domain.TimeOfDay{}, "", err
	}
	return city, at, tz, nil
}

func looksLikeZone(s string) bool {
	return strings.Contains(s, "/") || strings.EqualFold(s, "UTC")
}
