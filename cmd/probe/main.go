// Command probe performs a single fetch against the configured upstream and
// prints what the monitor would see. Useful for checking credentials, the
// radius, and the device without starting the loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/signalsfoundry/flight-spotter/geo"
	"github.com/signalsfoundry/flight-spotter/internal/config"
	"github.com/signalsfoundry/flight-spotter/internal/lametric"
	"github.com/signalsfoundry/flight-spotter/internal/logging"
	"github.com/signalsfoundry/flight-spotter/internal/opensky"
	"github.com/signalsfoundry/flight-spotter/model"
)

func main() {
	configPath := flag.String("config", "spotter.yaml", "Path to the YAML configuration file")
	radius := flag.Float64("radius", 0, "Override the configured radius in miles")
	push := flag.Bool("push", false, "Push a test notification for the closest aircraft")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error(ctx, "failed to load configuration", logging.String("error", err.Error()))
		os.Exit(1)
	}

	radiusMiles := cfg.Tracking.RadiusMiles
	if *radius > 0 {
		radiusMiles = *radius
	}
	home := geo.Coordinate{Latitude: cfg.Home.Latitude, Longitude: cfg.Home.Longitude}

	client := opensky.New(cfg.OpenSkyClientConfig(), log)
	res := client.FetchNearby(ctx, home, radiusMiles)

	fmt.Printf("outcome: %s, airborne aircraft in bounding box: %d\n", res.Outcome, len(res.Aircraft))

	sightings := geo.FilterByDistance(res.Aircraft, home, radiusMiles)
	fmt.Printf("within %.1f miles: %d\n", radiusMiles, len(sightings))

	for _, s := range sightings {
		altitude := "unknown"
		if feet, ok := s.Aircraft.AltitudeFeet(); ok {
			altitude = fmt.Sprintf("%d ft", feet)
		}
		fmt.Printf("  %-8s %-8s %7.2f mi  %s\n",
			s.Aircraft.DisplayCode(), s.Aircraft.ICAO24, s.DistanceMiles, altitude)
	}

	if !*push {
		return
	}

	device := lametric.New(cfg.LaMetric.DeviceIP, cfg.LaMetric.APIKey, log)
	n := model.Notification{Callsign: "PROBE"}
	if len(sightings) > 0 {
		closest := sightings[0]
		feet, _ := closest.Aircraft.AltitudeFeet()
		n = model.Notification{
			Callsign:      closest.Aircraft.DisplayCode(),
			AltitudeFeet:  feet,
			DistanceMiles: closest.DistanceMiles,
		}
	}
	if err := device.Push(ctx, n); err != nil {
		log.Error(ctx, "test notification failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
	fmt.Println("test notification pushed")
}
