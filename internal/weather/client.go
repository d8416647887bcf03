package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/suxofrukt/WeatherTRPP/internal/domain"
)

const (
	DefaultBaseURL = "https://api.openweathermap.org"
	forecastStep   = 3 * time.Hour
	forecastDays   = 3
)

// Cache stores raw upstream responses keyed by endpoint and city.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options configures Client.
type Options struct {
	BaseURL  string
	APIKey   string
	Units    string // metric|imperial|standard
	Lang     string
	Timeout  time.Duration
	Cache    Cache // optional
	CacheTTL time.Duration
	Log      *zap.Logger
}

// Client talks to the OpenWeatherMap 2.5 API.
type Client struct {
	baseURL    string
	apiKey     string
	units      string
	lang       string
	httpClient *http.Client
	cache      Cache
	cacheTTL   time.Duration
	log        *zap.Logger
	now        func() time.Time
}

// NewClient creates a new OpenWeatherMap client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Units == "" {
		opts.Units = "metric"
	}
	if opts.Lang == "" {
		opts.Lang = "en"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		units:      opts.Units,
		lang:       opts.Lang,
		httpClient: &http.Client{Timeout: opts.Timeout},
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		log:        opts.Log.With(zap.String("component", "weather")),
		now:        time.Now,
	}
}

// CurrentReport returns a formatted report of the current weather in city.
func (c *Client) CurrentReport(ctx context.Context, city string) (string, error) {
	var resp currentResponse
	if err := c.get(ctx, "weather", city, &resp); err != nil {
		return "", err
	}
	desc := ""
	if len(resp.Weather) > 0 {
		desc = capitalize(resp.Weather[0].Description)
	}
	return fmt.Sprintf("🌍 Weather in %s:\n🌡 Temperature: %.1f%s\n💨 Wind: %.1f %s\n💧 Humidity: %d%%\n☁ %s",
		city, resp.Main.Temp, c.tempUnit(), resp.Wind.Speed, c.speedUnit(), resp.Main.Humidity, desc), nil
}

// Forecast returns a short multi-day forecast taken at local noon.
func (c *Client) Forecast(ctx context.Context, city string) (string, error) {
	var resp forecastResponse
	if err := c.get(ctx, "forecast", city, &resp); err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📅 Forecast for %s (%d days):\n", city, forecastDays)
	n := 0
	for _, e := range resp.List {
		if !strings.Contains(e.DtTxt, "12:00:00") {
			continue
		}
		desc := ""
		if len(e.Weather) > 0 {
			desc = capitalize(e.Weather[0].Description)
		}
		fmt.Fprintf(&b, "\n📆 %s: %.1f%s, %s", e.DtTxt[:10], e.Main.Temp, c.tempUnit(), desc)
		n++
		if n == forecastDays {
			break
		}
	}
	if n == 0 {
		return "", fmt.Errorf("%w: empty forecast for %q", domain.ErrProvider, city)
	}
	return b.String(), nil
}

// PrecipitationLookahead looks for precipitation in forecast slots that
// overlap [now+minLead, now+maxLead]. It returns found=false when none is
// expected. Slots are three hours long, so a slot that started before the
// window but is still running counts.
func (c *Client) PrecipitationLookahead(ctx context.Context, city string, minLead, maxLead time.Duration) (string, bool, error) {
	var resp forecastResponse
	if err := c.get(ctx, "forecast", city, &resp); err != nil {
		return "", false, err
	}
	now := c.now().UTC()
	from, to := now.Add(minLead), now.Add(maxLead)
	loc := time.FixedZone("", resp.City.Timezone)

	for _, e := range resp.List {
		start := time.Unix(e.Dt, 0).UTC()
		end := start.Add(forecastStep)
		if !start.Before(to) || !end.After(from) {
			continue
		}
		if !e.precipitation() {
			continue
		}
		at := start
		if at.Before(now) {
			at = now
		}
		text := fmt.Sprintf("%s expected around %s local time (in about %s).",
			e.description(), at.In(loc).Format("15:04"), formatLead(at.Sub(now)))
		if e.Pop > 0 {
			text += fmt.Sprintf(" Chance: %d%%.", int(e.Pop*100+0.5))
		}
		return text, true, nil
	}
	return "", false, nil
}

// formatLead renders a lead time as "45m", "2h" or "1h30m".
func formatLead(d time.Duration) string {
	d = d.Round(time.Minute)
	if d < time.Minute {
		d = time.Minute
	}
	h, m := int(d/time.Hour), int(d%time.Hour/time.Minute)
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh%dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dm", m)
}

func (c *Client) tempUnit() string {
	switch c.units {
	case "imperial":
		return "°F"
	case "standard":
		return "K"
	}
	return "°C"
}

func (c *Client) speedUnit() string {
	if c.units == "imperial" {
		return "mph"
	}
	return "m/s"
}

// get fetches endpoint for city (through the cache if configured) and decodes into out.
func (c *Client) get(ctx context.Context, endpoint, city string, out any) error {
	key := cacheKey(endpoint, c.units, c.lang, city)
	if c.cache != nil {
		body, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return decode(body, out)
		}
	}

	body, err := c.fetch(ctx, endpoint, city)
	if err != nil {
		return err
	}
	if err := decode(body, out); err != nil {
		return err
	}
	if c.cache != nil && c.cacheTTL > 0 {
		if err := c.cache.Set(ctx, key, body, c.cacheTTL); err != nil {
			c.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, endpoint, city string) ([]byte, error) {
	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", c.apiKey)
	q.Set("units", c.units)
	q.Set("lang", c.lang)
	u := c.baseURL + "/data/2.5/" + endpoint + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q: %w", domain.ErrProvider, endpoint, city, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", domain.ErrProvider, err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		_ = json.Unmarshal(body, &apiErr)
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %q: %s", domain.ErrCityNotFound, city, msg)
		}
		return nil, fmt.Errorf("%w: %s returned status %d: %s", domain.ErrProvider, endpoint, resp.StatusCode, msg)
	}
	return body, nil
}

func decode(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode: %w", domain.ErrProvider, err)
	}
	return nil
}

func cacheKey(endpoint, units, lang, city string) string {
	return "weather:" + endpoint + ":" + units + ":" + lang + ":" + strings.ToLower(strings.TrimSpace(city))
}
