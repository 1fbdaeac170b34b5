package geo

import (
	"math"
	"testing"

	"github.com/signalsfoundry/flight-spotter/model"
)

var home = Coordinate{Latitude: 53.3139, Longitude: -6.2871}

func TestDistance_Symmetric(t *testing.T) {
	a := Coordinate{Latitude: 53.3139, Longitude: -6.2871}
	b := Coordinate{Latitude: 53.4264, Longitude: -6.2499}

	ab := Distance(a, b)
	ba := Distance(b, a)

	if math.Abs(ab-ba) > 1e-9 {
		t.Errorf("distance not symmetric: a->b=%v b->a=%v", ab, ba)
	}
	if ab <= 0 {
		t.Errorf("expected positive distance, got %v", ab)
	}
}

func TestDistance_SamePointIsZero(t *testing.T) {
	if d := Distance(home, home); d != 0 {
		t.Errorf("expected zero distance for identical points, got %v", d)
	}
}

func TestDistance_KnownValue(t *testing.T) {
	// Dublin Airport is roughly 8 miles north-northeast of the home
	// coordinate used throughout the tests.
	airport := Coordinate{Latitude: 53.4264, Longitude: -6.2499}

	d := Distance(home, airport)
	if d < 7 || d > 9 {
		t.Errorf("expected ~8 miles to Dublin Airport, got %v", d)
	}
}

func TestBoundingBox_ContainsCenterAndScalesLongitude(t *testing.T) {
	box := BoundingBox(home, 10)

	if box.LatMin >= home.Latitude || box.LatMax <= home.Latitude {
		t.Errorf("box latitude range does not contain center: %+v", box)
	}
	if box.LonMin >= home.Longitude || box.LonMax <= home.Longitude {
		t.Errorf("box longitude range does not contain center: %+v", box)
	}

	// At 53°N a degree of longitude is shorter than a degree of latitude,
	// so the longitude delta must be wider.
	latDelta := box.LatMax - box.LatMin
	lonDelta := box.LonMax - box.LonMin
	if lonDelta <= latDelta {
		t.Errorf("expected longitude delta > latitude delta at 53N, got lat=%v lon=%v", latDelta, lonDelta)
	}
}

func aircraftAt(icao string, lat, lon float64) model.Aircraft {
	return model.Aircraft{ICAO24: icao, Latitude: lat, Longitude: lon}
}

func TestFilterByDistance_RadiusCut(t *testing.T) {
	// ~3 miles and ~7 miles north of home (1 degree latitude ≈ 69 miles).
	near := aircraftAt("near01", home.Latitude+3.0/69.0, home.Longitude)
	far := aircraftAt("far001", home.Latitude+7.0/69.0, home.Longitude)

	got := FilterByDistance([]model.Aircraft{far, near}, home, 5)

	if len(got) != 1 {
		t.Fatalf("expected exactly one sighting within 5 miles, got %d", len(got))
	}
	if got[0].Aircraft.ICAO24 != "near01" {
		t.Errorf("expected the near aircraft, got %s", got[0].Aircraft.ICAO24)
	}
	if got[0].DistanceMiles > 5 || got[0].DistanceMiles < 0 {
		t.Errorf("annotated distance out of range: %v", got[0].DistanceMiles)
	}
}

func TestFilterByDistance_SortedClosestFirst(t *testing.T) {
	planes := []model.Aircraft{
		aircraftAt("c", home.Latitude+4.0/69.0, home.Longitude),
		aircraftAt("a", home.Latitude+1.0/69.0, home.Longitude),
		aircraftAt("b", home.Latitude+2.0/69.0, home.Longitude),
	}

	got := FilterByDistance(planes, home, 10)
	if len(got) != 3 {
		t.Fatalf("expected 3 sightings, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].DistanceMiles < got[i-1].DistanceMiles {
			t.Errorf("sightings not sorted ascending at index %d: %v then %v",
				i, got[i-1].DistanceMiles, got[i].DistanceMiles)
		}
	}
	if got[0].Aircraft.ICAO24 != "a" || got[2].Aircraft.ICAO24 != "c" {
		t.Errorf("unexpected order: %s, %s, %s",
			got[0].Aircraft.ICAO24, got[1].Aircraft.ICAO24, got[2].Aircraft.ICAO24)
	}
}

func TestFilterByDistance_StableForEqualDistances(t *testing.T) {
	// Two aircraft at the exact same position, distinct identities.
	first := aircraftAt("first1", home.Latitude+1.0/69.0, home.Longitude)
	second := aircraftAt("second", home.Latitude+1.0/69.0, home.Longitude)

	got := FilterByDistance([]model.Aircraft{first, second}, home, 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 sightings, got %d", len(got))
	}
	if got[0].Aircraft.ICAO24 != "first1" {
		t.Errorf("equal-distance ordering not stable: got %s first", got[0].Aircraft.ICAO24)
	}
}

func TestFilterByDistance_InclusiveBoundary(t *testing.T) {
	onEdge := aircraftAt("edge01", home.Latitude, home.Longitude)
	got := FilterByDistance([]model.Aircraft{onEdge}, home, 0)
	if len(got) != 1 {
		t.Errorf("radius comparison must be inclusive, zero-distance aircraft dropped")
	}
}
