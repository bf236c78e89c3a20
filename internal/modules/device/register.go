package device

import (
	"database/sql"
	"net/http"

	"airsense-server/internal/modules/device/controller"
	"airsense-server/internal/modules/device/repository"
)

func RegisterFeature(mux *http.ServeMux, db *sql.DB) repository.DeviceRepository {
	deviceRepository := repository.NewRepository(db)
	deviceController := controller.NewDeviceController(deviceRepository)
	deviceController.RegisterRoutes(mux)
	return deviceRepository
}
