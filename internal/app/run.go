package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"airsense-server/internal/config"
	"airsense-server/internal/db"
	"airsense-server/internal/httpapi"
	"airsense-server/internal/modules/device"
	"airsense-server/internal/modules/telemetry"
	telemetryservice "airsense-server/internal/modules/telemetry/service"
	"airsense-server/internal/mqtt"
	"airsense-server/internal/ws"
)

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"dbDriver", cfg.DBDriver,
		"sqlitePath", cfg.SQLitePath,
		"mqttEnabled", cfg.MQTTEnabled,
		"mqttBroker", cfg.MQTTBrokerURL,
		"mqttTopicPrefix", cfg.MQTTTopicPrefix,
	)

	dbConn, err := db.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	if err := db.Migrate(dbConn); err != nil {
		return err
	}

	var ok int
	if err := dbConn.QueryRow(`SELECT 1`).Scan(&ok); err != nil {
		return err
	}
	slog.Info("database connection successful")

	hub := ws.NewHub(slog.Default())
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	mux := httpapi.NewMux(dbConn, hub)
	deviceRepository := device.RegisterFeature(mux, dbConn)
	telemetryRepository := telemetry.RegisterFeature(mux, dbConn, deviceRepository)

	pipeline := telemetryservice.NewService(cfg, deviceRepository, telemetryRepository, hub, slog.Default())

	// The handler must be wired before Start so queued messages arriving
	// right after CONNACK are not lost.
	manager := mqtt.NewManager(cfg, slog.Default(), pipeline.HandleMessage)
	if err := manager.Start(ctx); err != nil {
		slog.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
	}

	srv := httpapi.NewServer(cfg, mux)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		manager.Stop()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("mqtt stopping")
	manager.Stop()

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
