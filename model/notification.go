package model

// Notification is the payload contract between the monitor and the display
// device. The monitor fills it from a sighting; the dispatcher owns transport
// and on-device rendering.
type Notification struct {
	// Callsign is the display code for the aircraft ("Aircraft" when the
	// dispatcher has nothing better).
	Callsign string

	// AltitudeFeet is the reported altitude in feet. Zero means unknown or
	// on the ground; the dispatcher renders it as "Ground".
	AltitudeFeet int

	// TypeCode is the ICAO type designator (e.g. "A320"), empty when
	// metadata enrichment is disabled or unavailable.
	TypeCode string

	// DistanceMiles is the great-circle distance from the home coordinate.
	DistanceMiles float64

	// LifetimeMs is how long the device keeps the notification before
	// returning to the clock face.
	LifetimeMs int

	// Cycles is how many times the scrolling text repeats.
	Cycles int
}
