// Package config loads the spotter configuration from a YAML file with
// environment-variable overrides, applies defaults, and validates once at
// startup. The rest of the program receives a fully-populated Config and
// never touches the environment again.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/flight-spotter/internal/opensky"
)

// HomeConfig is the fixed coordinate the radius is centred on.
type HomeConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// TrackingConfig controls the monitor loop.
type TrackingConfig struct {
	RadiusMiles         float64 `yaml:"radius_miles"`
	PollIntervalSeconds int     `yaml:"poll_interval_seconds"`
	CooldownMinutes     int     `yaml:"cooldown_minutes"`
	FetchMetadata       bool    `yaml:"fetch_metadata"`
	NotifyDelayMs       int     `yaml:"notify_delay_ms"`
}

// OpenSkyConfig holds upstream endpoints and credentials. The auth mode is
// derived from which credentials are present: client credentials win over
// username/password, and neither means anonymous.
type OpenSkyConfig struct {
	BaseURL        string `yaml:"base_url"`
	TokenURL       string `yaml:"token_url"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	BackoffSeconds int    `yaml:"backoff_seconds"`
}

// LaMetricConfig identifies the display device on the local network.
type LaMetricConfig struct {
	DeviceIP string `yaml:"device_ip"`
	APIKey   string `yaml:"api_key"`
}

// MQTTConfig controls the optional sighting announcements.
type MQTTConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BrokerURL string `yaml:"broker_url"`
	ClientID  string `yaml:"client_id"`
	Topic     string `yaml:"topic"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

// Config is the top-level structure of spotter.yaml.
type Config struct {
	Home     HomeConfig     `yaml:"home"`
	Tracking TrackingConfig `yaml:"tracking"`
	OpenSky  OpenSkyConfig  `yaml:"opensky"`
	LaMetric LaMetricConfig `yaml:"lametric"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
}

// Load reads the YAML file at path (missing file is fine: defaults plus env
// overrides then describe the whole configuration), applies environment
// overrides and defaults, and validates.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// fall through to env + defaults
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	envFloat("HOME_LATITUDE", &c.Home.Latitude)
	envFloat("HOME_LONGITUDE", &c.Home.Longitude)
	envFloat("RADIUS_MILES", &c.Tracking.RadiusMiles)
	envInt("POLL_INTERVAL_SECONDS", &c.Tracking.PollIntervalSeconds)
	envInt("COOLDOWN_MINUTES", &c.Tracking.CooldownMinutes)
	envBool("FETCH_AIRCRAFT_METADATA", &c.Tracking.FetchMetadata)
	envString("OPENSKY_BASE_URL", &c.OpenSky.BaseURL)
	envString("OPENSKY_TOKEN_URL", &c.OpenSky.TokenURL)
	envString("OPENSKY_USERNAME", &c.OpenSky.Username)
	envString("OPENSKY_PASSWORD", &c.OpenSky.Password)
	envString("OPENSKY_CLIENT_ID", &c.OpenSky.ClientID)
	envString("OPENSKY_CLIENT_SECRET", &c.OpenSky.ClientSecret)
	envString("LAMETRIC_DEVICE_IP", &c.LaMetric.DeviceIP)
	envString("LAMETRIC_API_KEY", &c.LaMetric.APIKey)
	envBool("MQTT_ENABLED", &c.MQTT.Enabled)
	envString("MQTT_BROKER_URL", &c.MQTT.BrokerURL)
	envString("MQTT_TOPIC", &c.MQTT.Topic)
	envString("MQTT_USERNAME", &c.MQTT.Username)
	envString("MQTT_PASSWORD", &c.MQTT.Password)
}

func (c *Config) applyDefaults() {
	if c.Home.Latitude == 0 && c.Home.Longitude == 0 {
		c.Home.Latitude = 53.313912009645804
		c.Home.Longitude = -6.287110040207438
	}
	if c.Tracking.RadiusMiles <= 0 {
		c.Tracking.RadiusMiles = 10
	}
	if c.Tracking.PollIntervalSeconds <= 0 {
		c.Tracking.PollIntervalSeconds = 30
	}
	if c.Tracking.CooldownMinutes <= 0 {
		c.Tracking.CooldownMinutes = 5
	}
	if c.Tracking.NotifyDelayMs <= 0 {
		c.Tracking.NotifyDelayMs = 500
	}
	if c.OpenSky.BaseURL == "" {
		c.OpenSky.BaseURL = "https://opensky-network.org/api"
	}
	if c.OpenSky.TokenURL == "" {
		c.OpenSky.TokenURL = "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token"
	}
	if c.OpenSky.TimeoutSeconds <= 0 {
		c.OpenSky.TimeoutSeconds = 15
	}
	if c.OpenSky.BackoffSeconds <= 0 {
		c.OpenSky.BackoffSeconds = 60
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "flight-spotter"
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "flightspotter/sightings"
	}
}

func (c *Config) validate() error {
	if c.Home.Latitude < -90 || c.Home.Latitude > 90 {
		return fmt.Errorf("home latitude %v out of range", c.Home.Latitude)
	}
	if c.Home.Longitude < -180 || c.Home.Longitude > 180 {
		return fmt.Errorf("home longitude %v out of range", c.Home.Longitude)
	}
	if c.LaMetric.DeviceIP == "" {
		return fmt.Errorf("lametric device_ip is required")
	}
	if c.MQTT.Enabled && c.MQTT.BrokerURL == "" {
		return fmt.Errorf("mqtt enabled but broker_url is empty")
	}
	return nil
}

// AuthMode resolves which upstream auth mode is active. Decided once here;
// never inferred per call.
func (c *Config) AuthMode() opensky.AuthMode {
	switch {
	case c.OpenSky.ClientID != "" && c.OpenSky.ClientSecret != "":
		return opensky.AuthOAuth2
	case c.OpenSky.Username != "" && c.OpenSky.Password != "":
		return opensky.AuthBasic
	default:
		return opensky.AuthNone
	}
}

// OpenSkyClientConfig assembles the upstream client configuration.
func (c *Config) OpenSkyClientConfig() opensky.Config {
	return opensky.Config{
		BaseURL:        c.OpenSky.BaseURL,
		TokenURL:       c.OpenSky.TokenURL,
		Mode:           c.AuthMode(),
		Username:       c.OpenSky.Username,
		Password:       c.OpenSky.Password,
		ClientID:       c.OpenSky.ClientID,
		ClientSecret:   c.OpenSky.ClientSecret,
		RequestTimeout: time.Duration(c.OpenSky.TimeoutSeconds) * time.Second,
		Backoff:        time.Duration(c.OpenSky.BackoffSeconds) * time.Second,
	}
}

// PollInterval returns the poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Tracking.PollIntervalSeconds) * time.Second
}

// Cooldown returns the notification cooldown as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Tracking.CooldownMinutes) * time.Minute
}

// NotifyDelay returns the pause between consecutive notifications.
func (c *Config) NotifyDelay() time.Duration {
	return time.Duration(c.Tracking.NotifyDelayMs) * time.Millisecond
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = parsed
		}
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}
