package controller

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"airsense-server/internal/modules/telemetry/repository"
	"airsense-server/internal/modules/telemetry/types"
	"airsense-server/internal/utils"
)

type readingsPage struct {
	Readings []types.Reading `json:"readings"`
	Total    int             `json:"total"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
}

func (c *telemetryControllerImpl) handleReadings(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	if uid == "" {
		utils.WriteError(w, http.StatusBadRequest, "missing device uid")
		return
	}

	limit, offset, err := parseReadingsQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	readings, err := c.readings.RangeByDevice(uid, limit, offset)
	if err != nil {
		slog.Error("range readings failed", "uid", uid, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load readings")
		return
	}
	total, err := c.readings.CountByDevice(uid)
	if err != nil {
		slog.Error("count readings failed", "uid", uid, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load readings")
		return
	}

	utils.WriteJSON(w, http.StatusOK, readingsPage{
		Readings: readings,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	})
}

func (c *telemetryControllerImpl) handleLatest(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	if uid == "" {
		utils.WriteError(w, http.StatusBadRequest, "missing device uid")
		return
	}

	reading, err := c.readings.LatestByDevice(uid)
	if errors.Is(err, repository.ErrNoReadings) {
		utils.WriteError(w, http.StatusNotFound, "no readings for device")
		return
	}
	if err != nil {
		slog.Error("latest reading failed", "uid", uid, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load reading")
		return
	}

	utils.WriteJSON(w, http.StatusOK, reading)
}

type statsResponse struct {
	Devices          int `json:"devices"`
	Readings         int `json:"readings"`
	ReadingsLastHour int `json:"readingsLastHour"`
	ReadingsLastDay  int `json:"readingsLastDay"`
}

func (c *telemetryControllerImpl) handleStats(w http.ResponseWriter, r *http.Request) {
	now := c.now()

	devices, err := c.devices.Count()
	if err != nil {
		slog.Error("count devices failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	total, err := c.readings.Count()
	if err != nil {
		slog.Error("count readings failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	lastHour, err := c.readings.CountSince(now.Add(-time.Hour))
	if err != nil {
		slog.Error("count recent readings failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	lastDay, err := c.readings.CountSince(now.Add(-24 * time.Hour))
	if err != nil {
		slog.Error("count recent readings failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	utils.WriteJSON(w, http.StatusOK, statsResponse{
		Devices:          devices,
		Readings:         total,
		ReadingsLastHour: lastHour,
		ReadingsLastDay:  lastDay,
	})
}
