package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/flight-spotter/geo"
	"github.com/signalsfoundry/flight-spotter/internal/ledger"
	"github.com/signalsfoundry/flight-spotter/internal/logging"
	"github.com/signalsfoundry/flight-spotter/internal/opensky"
	"github.com/signalsfoundry/flight-spotter/model"
)

var home = geo.Coordinate{Latitude: 53.3139, Longitude: -6.2871}

type fakeSource struct {
	mu      sync.Mutex
	result  opensky.FetchResult
	meta    map[string]*model.AircraftMetadata
	fetches int
}

func (f *fakeSource) FetchNearby(context.Context, geo.Coordinate, float64) opensky.FetchResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return f.result
}

func (f *fakeSource) Metadata(_ context.Context, icao24 string) (*model.AircraftMetadata, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta, ok := f.meta[icao24]
	return meta, ok && meta != nil
}

type fakePusher struct {
	mu     sync.Mutex
	pushed []model.Notification
	err    error
}

func (f *fakePusher) Push(_ context.Context, n model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.pushed = append(f.pushed, n)
	return nil
}

func (f *fakePusher) sent() []model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Notification, len(f.pushed))
	copy(out, f.pushed)
	return out
}

func airborne(icao24, callsign string, lat, lon, baroMeters float64) model.Aircraft {
	alt := baroMeters
	return model.Aircraft{
		ICAO24:       icao24,
		Callsign:     callsign,
		Latitude:     lat,
		Longitude:    lon,
		BaroAltitude: &alt,
	}
}

func snapshot(aircraft ...model.Aircraft) opensky.FetchResult {
	outcome := opensky.OutcomeOK
	if len(aircraft) == 0 {
		outcome = opensky.OutcomeEmpty
	}
	return opensky.FetchResult{Aircraft: aircraft, Outcome: outcome}
}

func newTestMonitor(t *testing.T, src *fakeSource, push Pusher, led *ledger.Ledger, cfg Config) *Monitor {
	t.Helper()
	if cfg.RadiusMiles == 0 {
		cfg.RadiusMiles = 10
	}
	cfg.Home = home
	m, err := New(cfg, src, push, led, logging.Noop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return m
}

func TestCycle_DispatchesAndEntersCooldown(t *testing.T) {
	// ~2.4 miles north of home, 10668 m up (35,000 ft).
	src := &fakeSource{result: snapshot(airborne("4ca123", "EIN123", 53.3487, -6.2871, 10668))}
	push := &fakePusher{}
	led := ledger.New(5 * time.Minute)

	m := newTestMonitor(t, src, push, led, Config{})
	m.cycle(context.Background())

	sent := push.sent()
	if len(sent) != 1 {
		t.Fatalf("got %d notifications, want 1", len(sent))
	}
	n := sent[0]
	if n.Callsign != "EIN123" {
		t.Errorf("callsign = %q, want EIN123", n.Callsign)
	}
	if n.AltitudeFeet != 35000 {
		t.Errorf("altitude = %d ft, want 35000", n.AltitudeFeet)
	}
	if n.DistanceMiles < 2.2 || n.DistanceMiles > 2.6 {
		t.Errorf("distance = %.2f mi, want ~2.4", n.DistanceMiles)
	}

	// Same aircraft on the next cycle is inside its cooldown.
	m.cycle(context.Background())
	if got := len(push.sent()); got != 1 {
		t.Errorf("got %d notifications after second cycle, want still 1", got)
	}
}

func TestCycle_MetadataEnrichment(t *testing.T) {
	src := &fakeSource{
		result: snapshot(airborne("4ca123", "EIN123", 53.3487, -6.2871, 10668)),
		meta: map[string]*model.AircraftMetadata{
			"4ca123": {TypeCode: "A320"},
		},
	}
	push := &fakePusher{}

	m := newTestMonitor(t, src, push, ledger.New(0), Config{FetchMetadata: true})
	m.cycle(context.Background())

	sent := push.sent()
	if len(sent) != 1 {
		t.Fatalf("got %d notifications, want 1", len(sent))
	}
	if sent[0].TypeCode != "A320" {
		t.Errorf("type code = %q, want A320", sent[0].TypeCode)
	}
}

func TestCycle_NoEnrichmentWhenDisabled(t *testing.T) {
	src := &fakeSource{
		result: snapshot(airborne("4ca123", "EIN123", 53.3487, -6.2871, 10668)),
		meta: map[string]*model.AircraftMetadata{
			"4ca123": {TypeCode: "A320"},
		},
	}
	push := &fakePusher{}

	m := newTestMonitor(t, src, push, ledger.New(0), Config{FetchMetadata: false})
	m.cycle(context.Background())

	sent := push.sent()
	if len(sent) != 1 {
		t.Fatalf("got %d notifications, want 1", len(sent))
	}
	if sent[0].TypeCode != "" {
		t.Errorf("type code = %q, want empty with enrichment off", sent[0].TypeCode)
	}
}

func TestCycle_FailedPushIsRetriedNextCycle(t *testing.T) {
	src := &fakeSource{result: snapshot(airborne("4ca123", "EIN123", 53.3487, -6.2871, 10668))}
	push := &fakePusher{err: errors.New("device unreachable")}
	led := ledger.New(5 * time.Minute)

	m := newTestMonitor(t, src, push, led, Config{})
	m.cycle(context.Background())

	if got := len(push.sent()); got != 0 {
		t.Fatalf("got %d notifications despite push error, want 0", got)
	}
	if !led.Eligible("4ca123", time.Now()) {
		t.Fatal("failed push must not start the cooldown")
	}

	push.mu.Lock()
	push.err = nil
	push.mu.Unlock()

	m.cycle(context.Background())
	if got := len(push.sent()); got != 1 {
		t.Errorf("got %d notifications after recovery, want 1", got)
	}
}

func TestCycle_ClosestAircraftFirst(t *testing.T) {
	// Fetch order is farthest first; dispatch order must not be.
	far := airborne("4ca999", "RYR77", 53.43, -6.2871, 3000)
	near := airborne("4ca123", "EIN123", 53.3487, -6.2871, 10668)
	src := &fakeSource{result: snapshot(far, near)}
	push := &fakePusher{}

	m := newTestMonitor(t, src, push, ledger.New(0), Config{})
	m.cycle(context.Background())

	sent := push.sent()
	if len(sent) != 2 {
		t.Fatalf("got %d notifications, want 2", len(sent))
	}
	if sent[0].Callsign != "EIN123" || sent[1].Callsign != "RYR77" {
		t.Errorf("dispatch order = [%s %s], want closest first", sent[0].Callsign, sent[1].Callsign)
	}
}

func TestCycle_OutOfRangeIgnored(t *testing.T) {
	// ~69 miles north of home, far outside the 10 mile radius.
	src := &fakeSource{result: snapshot(airborne("4ca123", "EIN123", 54.3139, -6.2871, 10668))}
	push := &fakePusher{}

	m := newTestMonitor(t, src, push, ledger.New(0), Config{})
	m.cycle(context.Background())

	if got := len(push.sent()); got != 0 {
		t.Errorf("got %d notifications for out-of-range aircraft, want 0", got)
	}
}

func TestCycle_EmptyFetchIsQuiet(t *testing.T) {
	src := &fakeSource{result: snapshot()}
	push := &fakePusher{}

	m := newTestMonitor(t, src, push, ledger.New(0), Config{})
	m.cycle(context.Background())

	if got := len(push.sent()); got != 0 {
		t.Errorf("got %d notifications from an empty snapshot, want 0", got)
	}
}

func TestStartStop(t *testing.T) {
	src := &fakeSource{result: snapshot()}
	push := &fakePusher{}

	m := newTestMonitor(t, src, push, ledger.New(0), Config{PollInterval: time.Hour})

	m.Start(context.Background())
	if !m.Running() {
		t.Fatal("monitor should be running after Start")
	}

	// Second Start is a no-op.
	m.Start(context.Background())

	m.Stop()
	if m.Running() {
		t.Fatal("monitor should be idle after Stop")
	}
	// Idempotent.
	m.Stop()

	src.mu.Lock()
	fetches := src.fetches
	src.mu.Unlock()
	if fetches != 1 {
		t.Errorf("got %d fetches, want exactly 1 immediate cycle", fetches)
	}
}

func TestCycle_PanicIsContained(t *testing.T) {
	src := &fakeSource{result: snapshot(airborne("4ca123", "EIN123", 53.3487, -6.2871, 10668))}
	push := &panickyPusher{}

	m := newTestMonitor(t, src, push, ledger.New(0), Config{})

	// Must not propagate.
	m.cycle(context.Background())
	m.cycle(context.Background())
}

type panickyPusher struct{}

func (panickyPusher) Push(context.Context, model.Notification) error {
	panic("device driver bug")
}
