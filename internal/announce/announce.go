// Package announce publishes sighting events to an MQTT broker so
// home-automation consumers can react to aircraft overhead. Announcements
// are strictly fire-and-forget: the display notification path never waits on
// or fails because of the broker.
package announce

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/signalsfoundry/flight-spotter/geo"
	"github.com/signalsfoundry/flight-spotter/internal/logging"
)

const publishTimeout = 2 * time.Second

// Config identifies the broker and topic.
type Config struct {
	BrokerURL string
	ClientID  string
	Topic     string
	Username  string
	Password  string
}

// Announcer owns the MQTT connection.
type Announcer struct {
	client mqtt.Client
	topic  string
	log    logging.Logger
}

// sightingEvent is the published JSON document.
type sightingEvent struct {
	ICAO24        string  `json:"icao24"`
	Callsign      string  `json:"callsign,omitempty"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	DistanceMiles float64 `json:"distance_miles"`
	AltitudeFeet  *int    `json:"altitude_feet,omitempty"`
	SeenAt        string  `json:"seen_at"`
}

// New builds the announcer. The connection is not opened here; call Connect.
func New(cfg Config, log logging.Logger) *Announcer {
	if log == nil {
		log = logging.Noop()
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetOrderMatters(false).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.OnConnect = func(mqtt.Client) {
		log.Info(context.Background(), "connected to mqtt broker",
			logging.String("broker", cfg.BrokerURL))
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn(context.Background(), "mqtt connection lost",
			logging.String("error", err.Error()))
	}

	return &Announcer{
		client: mqtt.NewClient(opts),
		topic:  cfg.Topic,
		log:    log,
	}
}

// Connect dials the broker, retrying with exponential backoff until it
// succeeds or ctx is cancelled. Meant to run in its own goroutine; the
// monitor does not wait for the broker.
func (a *Announcer) Connect(ctx context.Context) {
	backoff := time.Second
	const maxBackoff = time.Minute

	for {
		token := a.client.Connect()
		if token.Wait() && token.Error() == nil {
			return
		}
		a.log.Warn(ctx, "mqtt connect failed, retrying",
			logging.String("error", token.Error().Error()),
			logging.String("backoff", backoff.String()))

		select {
		case <-time.After(backoff):
			if backoff < maxBackoff {
				backoff *= 2
			}
		case <-ctx.Done():
			return
		}
	}
}

// Announce publishes one sighting event at QoS 0. Failures are logged and
// dropped.
func (a *Announcer) Announce(ctx context.Context, s geo.Sighting) {
	if a == nil || !a.client.IsConnected() {
		return
	}

	event := sightingEvent{
		ICAO24:        s.Aircraft.ICAO24,
		Callsign:      s.Aircraft.Callsign,
		Latitude:      s.Aircraft.Latitude,
		Longitude:     s.Aircraft.Longitude,
		DistanceMiles: s.DistanceMiles,
		SeenAt:        time.Now().UTC().Format(time.RFC3339),
	}
	if feet, ok := s.Aircraft.AltitudeFeet(); ok {
		event.AltitudeFeet = &feet
	}

	body, err := json.Marshal(event)
	if err != nil {
		a.log.Warn(ctx, "encoding sighting event failed", logging.String("error", err.Error()))
		return
	}

	token := a.client.Publish(a.topic, 0, false, body)
	if token.WaitTimeout(publishTimeout) && token.Error() != nil {
		a.log.Warn(ctx, "publishing sighting event failed",
			logging.String("error", token.Error().Error()))
	}
}

// Close disconnects from the broker, allowing in-flight publishes a short
// grace period.
func (a *Announcer) Close() {
	if a == nil {
		return
	}
	a.client.Disconnect(uint(publishTimeout.Milliseconds()))
}
