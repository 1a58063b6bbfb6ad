// Package geocode resolves coordinates to place names with the Nominatim
// reverse geocoding API. Lookups are cached, rate limited and guarded by a
// circuit breaker so a slow or failing upstream cannot stall trip creation.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/pkordes/photo-trips/internal/domain"
	"github.com/pkordes/photo-trips/internal/metrics"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("geocoder unavailable")

// Config configures a Client. Zero values fall back to the defaults below.
type Config struct {
	// BaseURL is the Nominatim root, e.g. https://nominatim.openstreetmap.org.
	BaseURL string
	// UserAgent is required by the Nominatim usage policy.
	UserAgent string
	// RatePerSecond caps upstream requests. The public instance allows 1.
	RatePerSecond float64

	Timeout          time.Duration
	CacheTTL         time.Duration
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

const (
	defaultUserAgent        = "photo-trips/1.0"
	defaultRatePerSecond    = 1
	defaultTimeout          = 10 * time.Second
	defaultCacheTTL         = 24 * time.Hour
	defaultFailureThreshold = 5
	defaultOpenTimeout      = time.Minute

	// zoom 10 asks Nominatim for city-level detail, which is what a trip
	// name wants; building-level names are too specific.
	zoom = 10
)

// Client implements service.PlaceNamer against Nominatim.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	cache     *cache.Cache
	breaker   *gobreaker.CircuitBreaker[string]
	log       *slog.Logger
}

// New validates cfg and returns a ready Client.
func New(cfg Config, log *slog.Logger) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("geocode.New: invalid base URL %q", cfg.BaseURL)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = defaultRatePerSecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaultOpenTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		cache:     cache.New(cfg.CacheTTL, cfg.CacheTTL/2),
		log:       log,
	}
	c.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "nominatim",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// A caller giving up is not an upstream failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("geocoder circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return c, nil
}

// PlaceName returns the city-level name for coords, or "" when Nominatim
// knows nothing there. Results, including empty ones, are cached per ~100 m
// cell so photos of one outing share a single upstream request.
func (c *Client) PlaceName(ctx context.Context, coords domain.Coordinates) (string, error) {
	key := cacheKey(coords)
	if v, ok := c.cache.Get(key); ok {
		metrics.RecordGeocode(metrics.ResultHit)
		return v.(string), nil
	}

	name, err := c.breaker.Execute(func() (string, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
		return c.reverse(ctx, coords)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordGeocode(metrics.ResultRejected)
		return "", fmt.Errorf("geocode.Client.PlaceName: %w", ErrUnavailable)
	case err != nil:
		metrics.RecordGeocode(metrics.ResultError)
		return "", fmt.Errorf("geocode.Client.PlaceName: %w", err)
	}

	metrics.RecordGeocode(metrics.ResultMiss)
	c.cache.Set(key, name, cache.DefaultExpiration)
	return name, nil
}

// BreakerState reports the circuit breaker state ("closed", "open",
// "half-open") for health output.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

type reverseResponse struct {
	Name    string  `json:"name"`
	Error   string  `json:"error"`
	Address address `json:"address"`
}

type address struct {
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	Hamlet       string `json:"hamlet"`
	Municipality string `json:"municipality"`
	Suburb       string `json:"suburb"`
	County       string `json:"county"`
	State        string `json:"state"`
	Country      string `json:"country"`
}

func (c *Client) reverse(ctx context.Context, coords domain.Coordinates) (string, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(coords.Latitude, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(coords.Longitude, 'f', 6, 64))
	q.Set("format", "jsonv2")
	q.Set("zoom", strconv.Itoa(zoom))
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.GeocodeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("nominatim request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode nominatim response: %w", err)
	}
	if body.Error != "" {
		// "Unable to geocode": open sea, poles. Not an upstream failure.
		return "", nil
	}
	return placeName(body), nil
}

// placeName picks the most useful settlement-level name, falling back to
// wider regions and finally to the feature's own name.
func placeName(r reverseResponse) string {
	a := r.Address
	for _, name := range []string{
		a.City, a.Town, a.Village, a.Hamlet, a.Municipality, a.Suburb,
		a.County, a.State, a.Country, r.Name,
	} {
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	return ""
}

// cacheKey rounds to three decimals, roughly 100 m at the equator.
func cacheKey(c domain.Coordinates) string {
	return fmt.Sprintf("%.3f,%.3f", c.Latitude, c.Longitude)
}
