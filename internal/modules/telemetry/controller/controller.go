package controller

import (
	"net/http"
	"time"

	devicerepo "airsense-server/internal/modules/device/repository"
	telemetryrepo "airsense-server/internal/modules/telemetry/repository"
)

type TelemetryController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type telemetryControllerImpl struct {
	readings telemetryrepo.TelemetryRepository
	devices  devicerepo.DeviceRepository
	now      func() time.Time
}

func NewTelemetryController(readings telemetryrepo.TelemetryRepository, devices devicerepo.DeviceRepository) TelemetryController {
	return &telemetryControllerImpl{readings: readings, devices: devices, now: time.Now}
}

func (c *telemetryControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/devices/{uid}/readings", c.handleReadings)
	mux.HandleFunc("GET /api/devices/{uid}/readings/latest", c.handleLatest)
	mux.HandleFunc("GET /api/stats", c.handleStats)
}
