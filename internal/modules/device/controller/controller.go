package controller

import (
	"net/http"
	"time"

	"airsense-server/internal/modules/device/repository"
)

type DeviceController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type deviceControllerImpl struct {
	repository repository.DeviceRepository
	now        func() time.Time
}

func NewDeviceController(repository repository.DeviceRepository) DeviceController {
	return &deviceControllerImpl{repository: repository, now: time.Now}
}

func (c *deviceControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/devices", c.handleList)
	mux.HandleFunc("GET /api/devices/{uid}", c.handleGet)
	mux.HandleFunc("POST /api/devices", c.handleCreate)
}
