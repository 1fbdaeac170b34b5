package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/signalsfoundry/flight-spotter/geo"
	"github.com/signalsfoundry/flight-spotter/internal/announce"
	"github.com/signalsfoundry/flight-spotter/internal/config"
	"github.com/signalsfoundry/flight-spotter/internal/lametric"
	"github.com/signalsfoundry/flight-spotter/internal/ledger"
	"github.com/signalsfoundry/flight-spotter/internal/logging"
	"github.com/signalsfoundry/flight-spotter/internal/monitor"
	"github.com/signalsfoundry/flight-spotter/internal/observability"
	"github.com/signalsfoundry/flight-spotter/internal/opensky"
)

func main() {
	configPath := flag.String("config", "spotter.yaml", "Path to the YAML configuration file")
	metricsAddr := flag.String("metrics-addr", ":9090", "HTTP address for Prometheus /metrics")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error(ctx, "failed to load configuration", logging.String("error", err.Error()))
		os.Exit(1)
	}

	collector, err := observability.NewCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}
	metricsSrv := serveMetrics(*metricsAddr, collector, log)

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Warn(ctx, "tracing disabled", logging.String("error", err.Error()))
	}

	log.Info(ctx, "upstream configured",
		logging.String("base_url", cfg.OpenSky.BaseURL),
		logging.String("auth_mode", cfg.AuthMode().String()))

	source := opensky.New(cfg.OpenSkyClientConfig(), log)
	pusher := lametric.New(cfg.LaMetric.DeviceIP, cfg.LaMetric.APIKey, log)
	led := ledger.New(cfg.Cooldown())

	opts := []monitor.Option{monitor.WithMetrics(collector)}

	var announcer *announce.Announcer
	if cfg.MQTT.Enabled {
		announcer = announce.New(announce.Config{
			BrokerURL: cfg.MQTT.BrokerURL,
			ClientID:  cfg.MQTT.ClientID,
			Topic:     cfg.MQTT.Topic,
			Username:  cfg.MQTT.Username,
			Password:  cfg.MQTT.Password,
		}, log)
		go announcer.Connect(ctx)
		opts = append(opts, monitor.WithAnnouncer(announcer))
	}

	mon, err := monitor.New(monitor.Config{
		Home:          geo.Coordinate{Latitude: cfg.Home.Latitude, Longitude: cfg.Home.Longitude},
		RadiusMiles:   cfg.Tracking.RadiusMiles,
		PollInterval:  cfg.PollInterval(),
		NotifyDelay:   cfg.NotifyDelay(),
		FetchMetadata: cfg.Tracking.FetchMetadata,
	}, source, pusher, led, log, opts...)
	if err != nil {
		log.Error(ctx, "failed to build monitor", logging.String("error", err.Error()))
		os.Exit(1)
	}

	mon.Start(ctx)

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-stopCtx.Done()

	log.Info(ctx, "shutting down spotter")
	mon.Stop()
	if announcer != nil {
		announcer.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	observability.ShutdownWithTimeout(shutdownCtx, shutdownTracing, log)
}

func serveMetrics(addr string, collector *observability.Collector, log logging.Logger) *http.Server {
	if collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
