package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"bvstrack/internal/config"
	"bvstrack/internal/ingest"
	"bvstrack/internal/metrics"
	m "bvstrack/internal/mosquitto"
	"bvstrack/internal/position"
	"bvstrack/internal/recorder"
	"bvstrack/internal/render"
)

// run executes one batch: load, locate every sample, record and export.
func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	runID := uuid.NewString()
	log = log.With(slog.String("run_id", runID))

	side, err := cfg.SideValue()
	if err != nil {
		return err
	}

	ds, err := ingest.ReadFile(cfg.Input.Path, ingest.Options{Delimiter: cfg.DelimiterRune(), Log: log})
	if err != nil {
		return err
	}
	log.Info("run started",
		slog.String("side", side.String()),
		slog.Float64("tolerance_m", cfg.ToleranceM),
		slog.Int("samples", len(ds.Samples)),
	)

	mx := metrics.New(prometheus.Labels{"run_id": runID})

	var (
		sinks []recorder.Sink
		view  *render.Map
	)
	if cfg.Output.Map != "" {
		view = render.NewMap(ds.Anchors, cfg.Output.Map, cfg.Output.Live, log)
		sinks = append(sinks, view)
	}
	if cfg.MQTT.Broker != "" {
		client, err := m.NewClient(m.Config{
			Broker:         cfg.MQTT.Broker,
			ClientId:       cfg.MQTT.ClientID,
			Username:       cfg.MQTT.Username,
			Password:       cfg.MQTT.Password,
			Topic:          cfg.MQTT.Topic,
			QoS:            cfg.MQTT.QoS,
			Retained:       cfg.MQTT.Retained,
			ConnectTimeout: cfg.MQTT.ConnectTimeout,
		}, runID, mx, log)
		if err != nil {
			return fmt.Errorf("creating broker client: %w", err)
		}
		defer client.Close()
		sinks = append(sinks, client)
	}

	rec, err := recorder.NewRecorder(cfg.Output.CSV, cfg.Output.Pace, log, sinks...)
	if err != nil {
		return err
	}
	defer rec.Close()

	builder := position.NewTrackBuilder(position.NewTrilaterator(cfg.ToleranceM), mx, log)
	track, runErr := rec.Run(ctx, builder.Fixes(ds.Anchors, side, ds.Samples))
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	if runErr != nil {
		log.Warn("run interrupted, writing partial track", slog.Int("fixes", len(track)))
	}

	if len(track) > 1 {
		log.Info("route added to the map")
	} else {
		log.Warn("not enough points to build a route", slog.Int("fixes", len(track)))
	}

	if view != nil {
		if err := view.WriteFile(); err != nil {
			return err
		}
		log.Info("map saved", slog.String("path", cfg.Output.Map))
	}
	if cfg.Output.GeoJSON != "" {
		if err := render.WriteGeoJSON(cfg.Output.GeoJSON, ds.Anchors, track); err != nil {
			return err
		}
		log.Info("geojson saved", slog.String("path", cfg.Output.GeoJSON))
	}
	if cfg.Metrics.Textfile != "" {
		if err := mx.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	log.Info("run finished",
		slog.Int("samples", len(ds.Samples)),
		slog.Int("fixes", len(track)),
		slog.Int("dropped", len(ds.Samples)-len(track)),
	)
	return runErr
}
