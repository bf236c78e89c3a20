package controller

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"airsense-server/internal/modules/device/repository"
	"airsense-server/internal/modules/device/types"
	"airsense-server/internal/utils"
)

// deviceView is a registry record plus its derived liveness status. The
// status is computed per request and never stored.
type deviceView struct {
	types.Device
	Status types.LivenessStatus `json:"status"`
}

func (c *deviceControllerImpl) handleList(w http.ResponseWriter, r *http.Request) {
	devices, err := c.repository.List()
	if err != nil {
		slog.Error("list devices failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load devices")
		return
	}

	now := c.now()
	views := make([]deviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, deviceView{Device: d, Status: types.Status(d.LastSeen, now)})
	}
	utils.WriteJSON(w, http.StatusOK, views)
}

func (c *deviceControllerImpl) handleGet(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	if uid == "" {
		utils.WriteError(w, http.StatusBadRequest, "missing device uid")
		return
	}

	device, err := c.repository.GetByUID(uid)
	if errors.Is(err, repository.ErrNotFound) {
		utils.WriteError(w, http.StatusNotFound, "device not found")
		return
	}
	if err != nil {
		slog.Error("get device failed", "uid", uid, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load device")
		return
	}

	utils.WriteJSON(w, http.StatusOK, deviceView{
		Device: device,
		Status: types.Status(device.LastSeen, c.now()),
	})
}

type createDeviceRequest struct {
	UID        string `json:"uid"`
	Name       string `json:"name"`
	Location   string `json:"location"`
	DeviceType string `json:"deviceType"`
}

func (c *deviceControllerImpl) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.UID = strings.TrimSpace(req.UID)
	if req.UID == "" {
		utils.WriteError(w, http.StatusBadRequest, "uid is required")
		return
	}

	device, err := c.repository.CreateOrUpdate(req.UID, req.Name, req.Location, req.DeviceType)
	if err != nil {
		slog.Error("create device failed", "uid", req.UID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to save device")
		return
	}

	utils.WriteJSON(w, http.StatusOK, deviceView{
		Device: device,
		Status: types.Status(device.LastSeen, c.now()),
	})
}
