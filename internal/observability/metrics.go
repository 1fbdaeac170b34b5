package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the Prometheus metrics for the monitor loop and the
// upstream client, and provides the /metrics handler.
type Collector struct {
	gatherer prometheus.Gatherer

	Cycles        prometheus.Counter
	CycleFailures prometheus.Counter

	UpstreamRequests *prometheus.CounterVec

	AircraftFetched prometheus.Gauge
	AircraftInRange prometheus.Gauge
	RateLimited     prometheus.Gauge

	NotificationsSent    prometheus.Counter
	NotificationsFailed  prometheus.Counter
	NotificationsSkipped prometheus.Counter
}

// NewCollector registers the spotter metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	cycles, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spotter_cycles_total",
		Help: "Total number of completed poll cycles.",
	}), "spotter_cycles_total")
	if err != nil {
		return nil, err
	}
	cycleFailures, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spotter_cycle_failures_total",
		Help: "Total number of poll cycles that ended in a recovered panic.",
	}), "spotter_cycle_failures_total")
	if err != nil {
		return nil, err
	}

	upstream := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spotter_upstream_fetches_total",
		Help: "Upstream snapshot fetches, labeled by outcome.",
	}, []string{"outcome"})
	upstream, err = registerCounterVec(reg, upstream, "spotter_upstream_fetches_total")
	if err != nil {
		return nil, err
	}

	fetched, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "spotter_aircraft_fetched",
		Help: "Airborne aircraft returned by the last upstream fetch.",
	}), "spotter_aircraft_fetched")
	if err != nil {
		return nil, err
	}
	inRange, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "spotter_aircraft_in_range",
		Help: "Aircraft inside the watch radius on the last cycle.",
	}), "spotter_aircraft_in_range")
	if err != nil {
		return nil, err
	}
	rateLimited, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "spotter_upstream_rate_limited",
		Help: "1 while the upstream backoff window is active, 0 otherwise.",
	}), "spotter_upstream_rate_limited")
	if err != nil {
		return nil, err
	}

	sent, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spotter_notifications_sent_total",
		Help: "Notifications successfully pushed to the device.",
	}), "spotter_notifications_sent_total")
	if err != nil {
		return nil, err
	}
	failed, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spotter_notifications_failed_total",
		Help: "Notification pushes rejected or unreachable.",
	}), "spotter_notifications_failed_total")
	if err != nil {
		return nil, err
	}
	skipped, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spotter_notifications_skipped_total",
		Help: "Sightings skipped because the aircraft is inside its cooldown window.",
	}), "spotter_notifications_skipped_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:             gatherer,
		Cycles:               cycles,
		CycleFailures:        cycleFailures,
		UpstreamRequests:     upstream,
		AircraftFetched:      fetched,
		AircraftInRange:      inRange,
		RateLimited:          rateLimited,
		NotificationsSent:    sent,
		NotificationsFailed:  failed,
		NotificationsSkipped: skipped,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// RecordFetchOutcome counts one upstream fetch by outcome and keeps the
// rate-limited gauge in step.
func (c *Collector) RecordFetchOutcome(outcome string, rateLimited bool) {
	if c == nil {
		return
	}
	if c.UpstreamRequests != nil {
		c.UpstreamRequests.WithLabelValues(outcome).Inc()
	}
	if c.RateLimited != nil {
		if rateLimited {
			c.RateLimited.Set(1)
		} else {
			c.RateLimited.Set(0)
		}
	}
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
