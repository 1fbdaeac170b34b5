// Package lametric pushes notifications to a LaMetric Time device over its
// local-network API. It owns the payload contract: one scrolling frame with
// callsign, type, altitude band, and distance.
package lametric

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/flight-spotter/internal/logging"
	"github.com/signalsfoundry/flight-spotter/model"
)

const (
	// airplaneIcon is the LaMetric icon id rendered next to the text.
	airplaneIcon = "8879"

	defaultLifetimeMs = 10000
	defaultCycles     = 3

	requestTimeout = 10 * time.Second
)

// Client pushes notifications to one device.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	log     logging.Logger
}

// New creates a client for the device at deviceIP. The API key is the
// device's local "dev" key.
func New(deviceIP, apiKey string, log logging.Logger) *Client {
	if log == nil {
		log = logging.Noop()
	}
	return &Client{
		baseURL: fmt.Sprintf("http://%s:8080/api/v2", deviceIP),
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: requestTimeout},
		log:     log,
	}
}

type frame struct {
	Icon string `json:"icon"`
	Text string `json:"text"`
}

type sound struct {
	Category string `json:"category"`
	ID       string `json:"id"`
}

type frameModel struct {
	Cycles int     `json:"cycles"`
	Frames []frame `json:"frames"`
	Sound  *sound  `json:"sound,omitempty"`
}

type payload struct {
	Priority string     `json:"priority"`
	IconType string     `json:"icon_type"`
	Lifetime int        `json:"lifetime,omitempty"`
	Model    frameModel `json:"model"`
}

// Push sends one flight notification. The error is only ever used as a
// success/failure signal by the monitor; it never carries retry semantics.
func (c *Client) Push(ctx context.Context, n model.Notification) error {
	lifetime := n.LifetimeMs
	if lifetime <= 0 {
		lifetime = defaultLifetimeMs
	}
	cycles := n.Cycles
	if cycles <= 0 {
		cycles = defaultCycles
	}

	p := payload{
		Priority: "info",
		IconType: "none",
		Lifetime: lifetime,
		Model: frameModel{
			Cycles: cycles,
			Frames: []frame{{Icon: airplaneIcon, Text: FormatText(n)}},
			Sound:  &sound{Category: "notifications", ID: "notification"},
		},
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/device/notifications", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building notification request: %w", err)
	}
	req.SetBasicAuth("dev", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("pushing notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("device rejected notification: HTTP %d", resp.StatusCode)
	}

	c.log.Debug(ctx, "notification pushed", logging.String("callsign", n.Callsign))
	return nil
}

// FormatText renders the single scrolling line shown on the device:
// "EIN123  A320  35k ft  2.4mi". Parts are joined by two spaces; typecode
// and distance are omitted when unknown.
func FormatText(n model.Notification) string {
	callsign := n.Callsign
	if callsign == "" {
		callsign = "Aircraft"
	}

	parts := []string{callsign}
	if n.TypeCode != "" {
		parts = append(parts, n.TypeCode)
	}
	parts = append(parts, formatAltitude(n.AltitudeFeet))
	if n.DistanceMiles > 0 {
		parts = append(parts, fmt.Sprintf("%.1fmi", n.DistanceMiles))
	}

	return strings.Join(parts, "  ")
}

// formatAltitude renders the altitude band: thousands above 10,000 ft,
// comma-grouped feet below, "Ground" when unknown or zero.
func formatAltitude(feet int) string {
	switch {
	case feet >= 10000:
		return fmt.Sprintf("%dk ft", int(float64(feet)/1000.0+0.5))
	case feet > 0:
		return groupThousands(feet) + " ft"
	default:
		return "Ground"
	}
}

// groupThousands inserts comma separators: 9500 -> "9,500".
func groupThousands(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
