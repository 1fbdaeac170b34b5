package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewCollector_RegistersAndGathers(t *testing.T) {
	reg := prometheus.NewRegistry()

	c, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector failed: %v", err)
	}

	c.Cycles.Inc()
	c.RecordFetchOutcome("ok", false)
	c.RecordFetchOutcome("rate_limited", true)
	c.AircraftInRange.Set(2)
	c.NotificationsSent.Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	want := map[string]bool{
		"spotter_cycles_total":             false,
		"spotter_upstream_fetches_total":   false,
		"spotter_aircraft_in_range":        false,
		"spotter_upstream_rate_limited":    false,
		"spotter_notifications_sent_total": false,
	}
	for _, fam := range families {
		if _, ok := want[fam.GetName()]; ok {
			want[fam.GetName()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("metric %s not gathered", name)
		}
	}
}

func TestNewCollector_DoubleRegistrationTolerated(t *testing.T) {
	reg := prometheus.NewRegistry()

	if _, err := NewCollector(reg); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if _, err := NewCollector(reg); err != nil {
		t.Fatalf("re-registration against the same registry should reuse collectors: %v", err)
	}
}
