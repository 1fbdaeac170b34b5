// Package geo provides the pure great-circle geometry used to decide whether
// an aircraft is inside the watch radius. All distances are statute miles.
package geo

import (
	"math"
	"sort"

	"github.com/signalsfoundry/flight-spotter/model"
)

// EarthRadiusMiles is the mean Earth radius used for all distance
// calculations. Use 6371.0 if the system is ever switched to kilometres.
const EarthRadiusMiles = 3959.0

// milesPerDegreeLat approximates one degree of latitude. Only used for the
// bounding-box over-fetch, never for the precise filter.
const milesPerDegreeLat = 69.0

// Coordinate is a WGS84 point in decimal degrees.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// Box is a latitude/longitude rectangle matching the upstream query
// parameters (lamin, lamax, lomin, lomax).
type Box struct {
	LatMin float64
	LatMax float64
	LonMin float64
	LonMax float64
}

// Sighting is an aircraft annotated with its distance from the home
// coordinate. DistanceMiles is always non-negative.
type Sighting struct {
	Aircraft      model.Aircraft
	DistanceMiles float64
}

// Distance returns the haversine great-circle distance between two points in
// miles. Symmetric, and zero for identical points.
func Distance(a, b Coordinate) float64 {
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)

	h := sinLat*sinLat +
		math.Cos(toRadians(a.Latitude))*math.Cos(toRadians(b.Latitude))*sinLon*sinLon

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMiles * c
}

// BoundingBox converts a radius around a center into a lat/lon rectangle.
// The longitude delta widens with latitude to account for meridian
// convergence. The box deliberately over-fetches; the precise cut happens in
// FilterByDistance.
func BoundingBox(center Coordinate, radiusMiles float64) Box {
	latDelta := radiusMiles / milesPerDegreeLat
	lonDelta := radiusMiles / (milesPerDegreeLat * math.Cos(toRadians(center.Latitude)))

	return Box{
		LatMin: center.Latitude - latDelta,
		LatMax: center.Latitude + latDelta,
		LonMin: center.Longitude - lonDelta,
		LonMax: center.Longitude + lonDelta,
	}
}

// FilterByDistance annotates each aircraft with its distance from center,
// keeps those within radiusMiles (inclusive), and returns them closest
// first. The sort is stable, so equal distances keep their input order.
func FilterByDistance(aircraft []model.Aircraft, center Coordinate, radiusMiles float64) []Sighting {
	sightings := make([]Sighting, 0, len(aircraft))
	for _, a := range aircraft {
		d := Distance(center, Coordinate{Latitude: a.Latitude, Longitude: a.Longitude})
		if d <= radiusMiles {
			sightings = append(sightings, Sighting{Aircraft: a, DistanceMiles: d})
		}
	}

	sort.SliceStable(sightings, func(i, j int) bool {
		return sightings[i].DistanceMiles < sightings[j].DistanceMiles
	})
	return sightings
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
