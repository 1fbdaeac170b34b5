// Package monitor runs the poll loop: fetch nearby aircraft, filter them by
// distance, decide which ones deserve a fresh notification, enrich, dispatch,
// and record. One cycle runs to completion before the next can begin.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/flight-spotter/geo"
	"github.com/signalsfoundry/flight-spotter/internal/ledger"
	"github.com/signalsfoundry/flight-spotter/internal/logging"
	"github.com/signalsfoundry/flight-spotter/internal/observability"
	"github.com/signalsfoundry/flight-spotter/internal/opensky"
	"github.com/signalsfoundry/flight-spotter/model"
)

// Source is the slice of the upstream client the monitor needs.
type Source interface {
	FetchNearby(ctx context.Context, center geo.Coordinate, radiusMiles float64) opensky.FetchResult
	Metadata(ctx context.Context, icao24 string) (*model.AircraftMetadata, bool)
}

// Pusher delivers one formatted notification to the display device. The
// monitor only consumes the success/failure signal.
type Pusher interface {
	Push(ctx context.Context, n model.Notification) error
}

// Announcer receives a copy of every sighting that was successfully
// notified. Optional; implementations must not block for long.
type Announcer interface {
	Announce(ctx context.Context, s geo.Sighting)
}

// Config holds the loop parameters.
type Config struct {
	Home        geo.Coordinate
	RadiusMiles float64

	// PollInterval is the time between cycle starts. It should be generous
	// relative to the expected cycle duration; a slow cycle delays the next
	// tick rather than overlapping it.
	PollInterval time.Duration

	// NotifyDelay is the pause between consecutive dispatches within one
	// cycle, so a busy sky does not burst the device.
	NotifyDelay time.Duration

	// FetchMetadata enables the per-airframe classification lookup. It is a
	// separate switch because every lookup spends upstream quota.
	FetchMetadata bool
}

// Monitor is the loop. It is either idle or running; Start and Stop move it
// between the two.
type Monitor struct {
	cfg    Config
	source Source
	pusher Pusher
	ledger *ledger.Ledger

	announcer Announcer
	metrics   *observability.Collector
	tracer    trace.Tracer
	log       logging.Logger

	now func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option customises a Monitor.
type Option func(*Monitor)

// WithMetrics attaches a metrics collector.
func WithMetrics(c *observability.Collector) Option {
	return func(m *Monitor) { m.metrics = c }
}

// WithAnnouncer attaches a sighting announcer.
func WithAnnouncer(a Announcer) Option {
	return func(m *Monitor) { m.announcer = a }
}

// WithTracer overrides the default tracer.
func WithTracer(t trace.Tracer) Option {
	return func(m *Monitor) { m.tracer = t }
}

// New wires a monitor. Source, pusher, and ledger are required.
func New(cfg Config, source Source, pusher Pusher, led *ledger.Ledger, log logging.Logger, opts ...Option) (*Monitor, error) {
	if source == nil {
		return nil, fmt.Errorf("source is nil")
	}
	if pusher == nil {
		return nil, fmt.Errorf("pusher is nil")
	}
	if led == nil {
		return nil, fmt.Errorf("ledger is nil")
	}
	if log == nil {
		log = logging.Noop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}

	m := &Monitor{
		cfg:    cfg,
		source: source,
		pusher: pusher,
		ledger: led,
		tracer: otel.Tracer("flight-spotter/monitor"),
		log:    log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Start begins polling: one immediate cycle, then one per interval. Starting
// a running monitor is a warned no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		m.log.Warn(ctx, "monitor already running")
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	m.log.Info(ctx, "monitor starting",
		logging.Float64("home_lat", m.cfg.Home.Latitude),
		logging.Float64("home_lon", m.cfg.Home.Longitude),
		logging.Float64("radius_miles", m.cfg.RadiusMiles),
		logging.String("poll_interval", m.cfg.PollInterval.String()),
		logging.String("cooldown", m.ledger.Cooldown().String()),
	)

	go m.run(runCtx, done)
}

// Stop cancels future cycles and waits for any in-flight cycle to finish.
// Idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.done
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	<-done
	m.log.Info(context.Background(), "monitor stopped")
}

// Running reports whether the loop is scheduled.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	// Cycles run on an uncancellable context: a stop request parks the
	// scheduler but lets the cycle in flight complete.
	cycleCtx := context.WithoutCancel(ctx)

	m.cycle(cycleCtx)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.cycle(cycleCtx)
		}
	}
}

// cycle is one fetch→filter→dedup→enrich→dispatch→mark pass. Nothing that
// happens in here may kill the loop; panics are contained at this boundary.
func (m *Monitor) cycle(parent context.Context) {
	ctx, log := logging.WithCycleLogger(parent, m.log)
	ctx, span := m.tracer.Start(ctx, "poll_cycle")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			log.Error(ctx, "cycle panicked", logging.Any("panic", r))
			if m.metrics != nil {
				m.metrics.CycleFailures.Inc()
			}
		}
	}()

	if m.metrics != nil {
		m.metrics.Cycles.Inc()
	}

	res := m.source.FetchNearby(ctx, m.cfg.Home, m.cfg.RadiusMiles)
	span.SetAttributes(
		attribute.String("fetch.outcome", string(res.Outcome)),
		attribute.Int("aircraft.fetched", len(res.Aircraft)),
	)
	if m.metrics != nil {
		m.metrics.RecordFetchOutcome(string(res.Outcome), res.Outcome == opensky.OutcomeRateLimited)
		m.metrics.AircraftFetched.Set(float64(len(res.Aircraft)))
	}

	if len(res.Aircraft) == 0 {
		if m.metrics != nil {
			m.metrics.AircraftInRange.Set(0)
		}
		log.Info(ctx, "no aircraft in bounding box", logging.String("outcome", string(res.Outcome)))
		return
	}

	sightings := geo.FilterByDistance(res.Aircraft, m.cfg.Home, m.cfg.RadiusMiles)
	span.SetAttributes(attribute.Int("aircraft.in_range", len(sightings)))
	if m.metrics != nil {
		m.metrics.AircraftInRange.Set(float64(len(sightings)))
	}

	if len(sightings) == 0 {
		log.Info(ctx, "no aircraft within radius",
			logging.Int("candidates", len(res.Aircraft)),
			logging.Float64("radius_miles", m.cfg.RadiusMiles))
		return
	}

	log.Info(ctx, "aircraft within radius", logging.Int("count", len(sightings)))

	for _, s := range sightings {
		m.process(ctx, log, s)
	}
}

// process handles one sighting: dedup check, optional enrichment, dispatch,
// and ledger update. Eligibility is checked here, immediately before
// dispatch, because earlier sightings in the same cycle share the ledger.
func (m *Monitor) process(ctx context.Context, log logging.Logger, s geo.Sighting) {
	icao24 := s.Aircraft.ICAO24

	if !m.ledger.Eligible(icao24, m.now()) {
		log.Debug(ctx, "skipped, recently notified",
			logging.String("callsign", s.Aircraft.DisplayCode()),
			logging.String("icao24", icao24))
		if m.metrics != nil {
			m.metrics.NotificationsSkipped.Inc()
		}
		return
	}

	typeCode := ""
	if m.cfg.FetchMetadata {
		if meta, ok := m.source.Metadata(ctx, icao24); ok {
			typeCode = meta.TypeCode
		}
	}

	altitudeFeet, _ := s.Aircraft.AltitudeFeet()
	n := model.Notification{
		Callsign:      s.Aircraft.DisplayCode(),
		AltitudeFeet:  altitudeFeet,
		TypeCode:      typeCode,
		DistanceMiles: s.DistanceMiles,
	}

	if err := m.pusher.Push(ctx, n); err != nil {
		// A failed dispatch leaves the ledger untouched so the next
		// eligible cycle retries.
		log.Warn(ctx, "notification push failed",
			logging.String("callsign", n.Callsign),
			logging.String("error", err.Error()))
		if m.metrics != nil {
			m.metrics.NotificationsFailed.Inc()
		}
	} else {
		m.ledger.MarkNotified(icao24, m.now())
		log.Info(ctx, "notified",
			logging.String("callsign", n.Callsign),
			logging.String("type", typeCode),
			logging.Int("altitude_ft", altitudeFeet),
			logging.Float64("distance_miles", s.DistanceMiles))
		if m.metrics != nil {
			m.metrics.NotificationsSent.Inc()
		}
		if m.announcer != nil {
			m.announcer.Announce(ctx, s)
		}
	}

	if m.cfg.NotifyDelay > 0 {
		time.Sleep(m.cfg.NotifyDelay)
	}
}
