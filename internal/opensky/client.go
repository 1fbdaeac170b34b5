// Package opensky wraps the OpenSky Network REST API: the state-vector
// snapshot endpoint, the per-airframe metadata endpoint, and the OAuth2
// client-credentials token exchange. Rate limiting, authentication, and
// transient failures are absorbed here; callers only ever see a FetchResult.
package opensky

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/signalsfoundry/flight-spotter/geo"
	"github.com/signalsfoundry/flight-spotter/internal/logging"
	"github.com/signalsfoundry/flight-spotter/model"
)

const (
	defaultBaseURL        = "https://opensky-network.org/api"
	defaultRequestTimeout = 15 * time.Second
	defaultBackoff        = 60 * time.Second
)

// AuthMode selects how requests to the snapshot API are authenticated. It is
// resolved once at startup, never inferred per call.
type AuthMode int

const (
	// AuthNone issues anonymous requests.
	AuthNone AuthMode = iota
	// AuthBasic sends the account username and password with every request.
	AuthBasic
	// AuthOAuth2 exchanges client credentials for a bearer token and
	// refreshes it before expiry.
	AuthOAuth2
)

func (m AuthMode) String() string {
	switch m {
	case AuthBasic:
		return "basic"
	case AuthOAuth2:
		return "oauth2"
	default:
		return "none"
	}
}

// Outcome classifies what happened to an upstream call. The monitor treats
// everything except OutcomeOK as "no data this cycle", but logs and metrics
// keep the distinction.
type Outcome string

const (
	OutcomeOK            Outcome = "ok"
	OutcomeEmpty         Outcome = "empty"
	OutcomeRateLimited   Outcome = "rate_limited"
	OutcomeAuthRejected  Outcome = "auth_rejected"
	OutcomeUpstreamError Outcome = "upstream_error"
)

// FetchResult is the outcome of one snapshot fetch. Aircraft is empty for
// every outcome except OutcomeOK.
type FetchResult struct {
	Aircraft []model.Aircraft
	Outcome  Outcome
}

// Config holds the upstream endpoints and credentials.
type Config struct {
	BaseURL  string
	TokenURL string

	Mode AuthMode

	// Username and Password are used when Mode is AuthBasic.
	Username string
	Password string

	// ClientID and ClientSecret are used when Mode is AuthOAuth2.
	ClientID     string
	ClientSecret string

	// RequestTimeout bounds every upstream call. Default 15s.
	RequestTimeout time.Duration

	// Backoff is how long all upstream calls are suppressed after a 429.
	// Default 60s.
	Backoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.Backoff <= 0 {
		c.Backoff = defaultBackoff
	}
	return c
}

// Client talks to OpenSky. The rate-limit window, the cached bearer token,
// and the metadata cache are process-wide: one Client is shared by every
// upstream call the process makes.
type Client struct {
	cfg   Config
	httpc *http.Client
	log   logging.Logger

	// now is swapped out by tests to step through rate-limit windows and
	// token expiry.
	now func() time.Time

	mu           sync.Mutex
	blockedUntil time.Time
	token        string
	tokenExpiry  time.Time

	metaMu     sync.RWMutex
	metadata   map[string]*model.AircraftMetadata
	metaHits   int64
	metaMisses int64
}

// New constructs a client. A nil logger drops all logs.
func New(cfg Config, log logging.Logger) *Client {
	if log == nil {
		log = logging.Noop()
	}
	cfg = cfg.withDefaults()
	return &Client{
		cfg:      cfg,
		httpc:    &http.Client{Timeout: cfg.RequestTimeout},
		log:      log,
		now:      time.Now,
		metadata: make(map[string]*model.AircraftMetadata),
	}
}

// FetchNearby returns the airborne aircraft inside the bounding box around
// center. Aircraft on the ground or without a position are excluded here,
// before any distance filtering. Every failure degrades to an empty result;
// this method never returns an error.
func (c *Client) FetchNearby(ctx context.Context, center geo.Coordinate, radiusMiles float64) FetchResult {
	box := geo.BoundingBox(center, radiusMiles)
	url := fmt.Sprintf("%s/states/all?lamin=%.6f&lamax=%.6f&lomin=%.6f&lomax=%.6f",
		c.cfg.BaseURL, box.LatMin, box.LatMax, box.LonMin, box.LonMax)

	body, outcome := c.get(ctx, url)
	if outcome != OutcomeOK {
		return FetchResult{Outcome: outcome}
	}

	var snapshot struct {
		Time   int64   `json:"time"`
		States [][]any `json:"states"`
	}
	if err := json.Unmarshal(body, &snapshot); err != nil {
		c.log.Warn(ctx, "malformed state snapshot", logging.String("error", err.Error()))
		return FetchResult{Outcome: OutcomeUpstreamError}
	}

	aircraft := make([]model.Aircraft, 0, len(snapshot.States))
	for _, state := range snapshot.States {
		a, ok := parseStateVector(state)
		if !ok {
			continue
		}
		if a.OnGround {
			continue
		}
		aircraft = append(aircraft, a)
	}

	if len(aircraft) == 0 {
		return FetchResult{Outcome: OutcomeEmpty}
	}
	return FetchResult{Aircraft: aircraft, Outcome: OutcomeOK}
}

// RateLimitedUntil reports the end of the current backoff window, zero when
// no window is active.
func (c *Client) RateLimitedUntil() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.now().Before(c.blockedUntil) {
		return c.blockedUntil
	}
	return time.Time{}
}

// get issues an authenticated GET with the shared rate-limit handling: a
// still-active backoff window short-circuits before any network I/O, a 429
// opens a new window, and a 401 invalidates the cached token so the next
// call re-authenticates.
func (c *Client) get(ctx context.Context, url string) ([]byte, Outcome) {
	if wait, blocked := c.rateLimitRemaining(); blocked {
		c.log.Info(ctx, "rate limited, skipping upstream call",
			logging.String("wait", wait.Round(time.Second).String()))
		return nil, OutcomeRateLimited
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.log.Warn(ctx, "building upstream request failed", logging.String("error", err.Error()))
		return nil, OutcomeUpstreamError
	}
	c.applyAuth(ctx, req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Warn(ctx, "upstream request failed", logging.String("error", err.Error()))
		return nil, OutcomeUpstreamError
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			c.log.Warn(ctx, "reading upstream response failed", logging.String("error", err.Error()))
			return nil, OutcomeUpstreamError
		}
		return body, OutcomeOK

	case http.StatusTooManyRequests:
		c.setRateLimited(ctx)
		return nil, OutcomeRateLimited

	case http.StatusUnauthorized:
		c.invalidateToken()
		c.log.Warn(ctx, "upstream rejected credentials, token invalidated")
		return nil, OutcomeAuthRejected

	default:
		c.log.Warn(ctx, "upstream error", logging.Int("status", resp.StatusCode))
		return nil, OutcomeUpstreamError
	}
}

func (c *Client) rateLimitRemaining() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if now.Before(c.blockedUntil) {
		return c.blockedUntil.Sub(now), true
	}
	return 0, false
}

func (c *Client) setRateLimited(ctx context.Context) {
	c.mu.Lock()
	c.blockedUntil = c.now().Add(c.cfg.Backoff)
	c.mu.Unlock()
	c.log.Warn(ctx, "upstream rate limit hit, backing off",
		logging.String("backoff", c.cfg.Backoff.String()))
}

// parseStateVector maps one 17-field positional array onto an Aircraft.
// Returns false for vectors that are too short or have no position.
func parseStateVector(state []any) (model.Aircraft, bool) {
	if len(state) < 17 {
		return model.Aircraft{}, false
	}

	lat, latOK := stateFloat(state[6])
	lon, lonOK := stateFloat(state[5])
	if !latOK || !lonOK {
		return model.Aircraft{}, false
	}

	a := model.Aircraft{
		ICAO24:        stateString(state[0]),
		Callsign:      strings.TrimSpace(stateString(state[1])),
		OriginCountry: stateString(state[2]),
		Longitude:     lon,
		Latitude:      lat,
		BaroAltitude:  stateFloatPtr(state[7]),
		OnGround:      stateBool(state[8]),
		Velocity:      stateFloatPtr(state[9]),
		TrueTrack:     stateFloatPtr(state[10]),
		VerticalRate:  stateFloatPtr(state[11]),
		GeoAltitude:   stateFloatPtr(state[13]),
		Squawk:        stateString(state[14]),
	}
	return a, true
}

func stateString(v any) string {
	s, _ := v.(string)
	return s
}

func stateFloat(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func stateFloatPtr(v any) *float64 {
	if f, ok := v.(float64); ok {
		return &f
	}
	return nil
}

func stateBool(v any) bool {
	b, _ := v.(bool)
	return b
}
