package telemetry

import (
	"database/sql"
	"net/http"

	devicerepo "airsense-server/internal/modules/device/repository"
	"airsense-server/internal/modules/telemetry/controller"
	"airsense-server/internal/modules/telemetry/repository"
)

func RegisterFeature(mux *http.ServeMux, db *sql.DB, devices devicerepo.DeviceRepository) repository.TelemetryRepository {
	telemetryRepository := repository.NewRepository(db)
	telemetryController := controller.NewTelemetryController(telemetryRepository, devices)
	telemetryController.RegisterRoutes(mux)
	return telemetryRepository
}
