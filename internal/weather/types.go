package weather

import (
	"encoding/json"
	"strings"
)

// condition is one entry of the OpenWeatherMap "weather" array.
type condition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
}

type currentResponse struct {
	Name    string      `json:"name"`
	Weather []condition `json:"weather"`
	Main    struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

type volume struct {
	ThreeHours float64 `json:"3h"`
}

type forecastEntry struct {
	Dt      int64       `json:"dt"`
	DtTxt   string      `json:"dt_txt"`
	Weather []condition `json:"weather"`
	Main    struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Pop  float64 `json:"pop"`
	Rain *volume `json:"rain,omitempty"`
	Snow *volume `json:"snow,omitempty"`
}

type forecastResponse struct {
	List []forecastEntry `json:"list"`
	City struct {
		Name     string `json:"name"`
		Timezone int    `json:"timezone"` // seconds east of UTC
	} `json:"city"`
}

// errorResponse is what the API returns on failure; cod is a string there
// but a number on success, so it is decoded loosely.
type errorResponse struct {
	Cod     json.RawMessage `json:"cod"`
	Message string          `json:"message"`
}

func (c condition) precipitation() bool {
	switch c.ID / 100 {
	case 2, 3, 5, 6: // thunderstorm, drizzle, rain, snow
		return true
	}
	return false
}

func (e forecastEntry) precipitation() bool {
	if e.Rain != nil && e.Rain.ThreeHours > 0 {
		return true
	}
	if e.Snow != nil && e.Snow.ThreeHours > 0 {
		return true
	}
	for _, c := range e.Weather {
		if c.precipitation() {
			return true
		}
	}
	return false
}

func (e forecastEntry) description() string {
	for _, c := range e.Weather {
		if c.precipitation() {
			return capitalize(c.Description)
		}
	}
	if len(e.Weather) > 0 {
		return capitalize(e.Weather[0].Description)
	}
	return "Precipitation"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
