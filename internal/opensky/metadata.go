package opensky

import (
	"context"
	"encoding/json"

	"github.com/signalsfoundry/flight-spotter/internal/logging"
	"github.com/signalsfoundry/flight-spotter/model"
)

// Metadata returns the classification record for an airframe, consulting the
// process-lifetime cache first. A cached entry is final whether it is a real
// record or the negative marker; permanently-missing metadata is asked for
// exactly once. Failures are never fatal: the caller gets (nil, false) and
// dispatch proceeds with partial information.
//
// The cache is unbounded. The identifier space is the local airspace, which
// is small and stable, so eviction buys nothing here.
func (c *Client) Metadata(ctx context.Context, icao24 string) (*model.AircraftMetadata, bool) {
	if icao24 == "" {
		return nil, false
	}

	c.metaMu.RLock()
	cached, ok := c.metadata[icao24]
	c.metaMu.RUnlock()
	if ok {
		c.recordMetaHit()
		if cached == nil {
			return nil, false
		}
		return cached, true
	}
	c.recordMetaMiss()

	record := c.fetchMetadata(ctx, icao24)

	c.metaMu.Lock()
	c.metadata[icao24] = record
	c.metaMu.Unlock()

	if record == nil {
		return nil, false
	}
	return record, true
}

// MetadataCacheStats returns cumulative cache hits and misses.
func (c *Client) MetadataCacheStats() (hits, misses int64) {
	c.metaMu.RLock()
	defer c.metaMu.RUnlock()
	return c.metaHits, c.metaMisses
}

// fetchMetadata asks the metadata endpoint once. Any failure, including an
// active rate-limit window, yields nil, which the caller stores as the
// negative marker.
func (c *Client) fetchMetadata(ctx context.Context, icao24 string) *model.AircraftMetadata {
	url := c.cfg.BaseURL + "/metadata/aircraft/icao/" + icao24

	body, outcome := c.get(ctx, url)
	if outcome != OutcomeOK {
		return nil
	}

	var record model.AircraftMetadata
	if err := json.Unmarshal(body, &record); err != nil {
		c.log.Warn(ctx, "malformed metadata response",
			logging.String("icao24", icao24),
			logging.String("error", err.Error()))
		return nil
	}
	return &record
}

func (c *Client) recordMetaHit() {
	c.metaMu.Lock()
	c.metaHits++
	c.metaMu.Unlock()
}

func (c *Client) recordMetaMiss() {
	c.metaMu.Lock()
	c.metaMisses++
	c.metaMu.Unlock()
}
