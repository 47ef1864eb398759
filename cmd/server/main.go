package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/anomaly"
	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/api"
	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/bus"
	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/config"
	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/fanout"
	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/logger"
	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/metrics"
	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/pipeline"
	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/store"
	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/tracing"
)

func main() {
	log := logger.New(env("LOG_LEVEL", "info"))

	cfg, err := config.Load(env("CONFIG_PATH", "configs/config.yaml"))
	if err != nil { log.Fatal().Err(err).Msg("load config") }

	metrics.MustRegister()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	closer, err := tracing.Init(ctx, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  first(cfg.Tracing.ServiceName, "iot-sensor-monitor"),
		OTLPEndpoint: first(cfg.Tracing.OTLPEndpoint, "localhost:4317"),
		SampleRatio:  ifzero(cfg.Tracing.SampleRatio, 1.0),
	})
	if err != nil { log.Error().Err(err).Msg("tracing init failed") }
	defer func() { _ = closer(context.Background()) }()

	// Rolling store
	mem := store.NewMemory(cfg.Window.Readings, cfg.Window.Alerts)

	// Optional durable alert archive
	var archive pipeline.Archiver
	if cfg.Storage.Path != "" {
		arch, err := store.OpenArchive(cfg.Storage.Path)
		if err != nil { log.Fatal().Err(err).Msg("open alert archive") }
		defer arch.Close()
		archive = arch
	}

	// Detector: fit once at startup, fixed seed
	baseline := map[string]anomaly.Baseline{}
	for k, b := range cfg.Model.Baseline {
		baseline[k] = anomaly.Baseline{Mean: b.Mean, Stddev: b.Stddev}
	}
	cls, err := anomaly.FitBaseline(baseline, anomaly.Options{
		Contamination: cfg.Model.Contamination,
		Seed:          cfg.Model.Seed,
		TrainSamples:  cfg.Model.TrainSamples,
	})
	if err != nil { log.Fatal().Err(err).Msg("fit detector") }
	log.Info().Float64("threshold", cls.Threshold()).Msg("detector fitted")

	// Fan-out + pipeline
	broker := fanout.NewBroker(cfg.Subscriber.Buffer)
	pipe := pipeline.New(log, mem, cls, broker, archive)

	// MQTT consumer, lives for the whole process
	consumer := bus.NewConsumer(log, bus.Config{
		Broker:   cfg.MQTT.Broker,
		Port:     cfg.MQTT.Port,
		Topic:    cfg.MQTT.Topic,
		ClientID: cfg.MQTT.ClientID,
	}, func(raw map[string]any) error { return pipe.Submit("mqtt", raw) })
	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error().Err(err).Msg("mqtt consumer stopped")
		}
	}()

	srv := api.NewServer(api.Deps{Log: log, Pipe: pipe}, api.Config{Addr: cfg.Server.Addr})
	if err := srv.Run(ctx); err != nil { log.Error().Err(err).Msg("server stopped") }
}

func env(k, d string) string { if v := os.Getenv(k); v != "" { return v }; return d }
func ifzero(f, def float64) float64 { if f == 0 { return def }; return f }
func first(s, def string) string { if s == "" { return def }; return s }
