package model

import "math"

// Aircraft is one position report for a single aircraft, rebuilt from the
// upstream state snapshot on every poll. Nothing here survives a cycle.
type Aircraft struct {
	// ICAO24 is the 24-bit transponder address, lower-case hex. It is the
	// stable identity of the airframe and the key used for dedup and
	// metadata lookups.
	ICAO24 string

	// Callsign is the broadcast callsign with surrounding whitespace
	// removed. May be empty; display code falls back to ICAO24.
	Callsign string

	OriginCountry string

	Latitude  float64
	Longitude float64

	// BaroAltitude and GeoAltitude are in metres. Either may be absent.
	BaroAltitude *float64
	GeoAltitude  *float64

	OnGround bool

	// Velocity is ground speed in m/s, TrueTrack is degrees clockwise from
	// north, VerticalRate is m/s. All optional and unused by dispatch.
	Velocity     *float64
	TrueTrack    *float64
	VerticalRate *float64

	Squawk string
}

// DisplayCode returns the callsign, or the ICAO24 address when the aircraft
// broadcasts no callsign.
func (a Aircraft) DisplayCode() string {
	if a.Callsign != "" {
		return a.Callsign
	}
	return a.ICAO24
}

// AltitudeFeet returns the best available altitude in feet, preferring
// barometric over geometric, and false when neither is present.
func (a Aircraft) AltitudeFeet() (int, bool) {
	if a.BaroAltitude != nil {
		return MetersToFeet(*a.BaroAltitude), true
	}
	if a.GeoAltitude != nil {
		return MetersToFeet(*a.GeoAltitude), true
	}
	return 0, false
}

// AircraftMetadata holds the optional classification record for an airframe.
// All fields may be empty; a missing record entirely is represented by a nil
// *AircraftMetadata cached as an explicit negative entry.
type AircraftMetadata struct {
	Registration     string `json:"registration"`
	ManufacturerName string `json:"manufacturerName"`
	Model            string `json:"model"`
	TypeCode         string `json:"typecode"`
	Owner            string `json:"owner"`
}

// MetersToFeet converts metres to feet, rounded to the nearest foot.
func MetersToFeet(meters float64) int {
	return int(math.Round(meters * 3.28084))
}

// MSToKnots converts metres per second to knots, rounded.
func MSToKnots(ms float64) int {
	return int(math.Round(ms * 1.94384))
}
