// Package service is the ingest pipeline: broker message in, validated and
// decoded reading out to the store, the device registry and the realtime
// subscribers.
package service

import (
	"errors"
	"log/slog"
	"time"

	"airsense-server/internal/config"
	"airsense-server/internal/metrics"
	devicerepo "airsense-server/internal/modules/device/repository"
	"airsense-server/internal/modules/telemetry/decode"
	telemetryrepo "airsense-server/internal/modules/telemetry/repository"
	"airsense-server/internal/modules/telemetry/types"
	"airsense-server/internal/ws"
)

// Broadcaster fans an event out to realtime subscribers. Implementations
// must never block the caller.
type Broadcaster interface {
	Broadcast(event string, data any)
}

type Service struct {
	topicPrefix string
	keepRaw     bool

	devices     devicerepo.DeviceRepository
	readings    telemetryrepo.TelemetryRepository
	broadcaster Broadcaster
	logger      *slog.Logger

	now func() time.Time
}

func NewService(
	cfg config.Config,
	devices devicerepo.DeviceRepository,
	readings telemetryrepo.TelemetryRepository,
	broadcaster Broadcaster,
	logger *slog.Logger,
) *Service {
	return &Service{
		topicPrefix: cfg.MQTTTopicPrefix,
		keepRaw:     cfg.IngestKeepRaw,
		devices:     devices,
		readings:    readings,
		broadcaster: broadcaster,
		logger:      logger,
		now:         time.Now,
	}
}

// HandleMessage processes one raw broker message. It never returns an error
// to the transport: every failure degrades to "this one message is lost",
// logged and counted.
func (s *Service) HandleMessage(topic string, payload []byte) {
	metrics.MessagesReceived.Inc()

	topicUID, err := deviceIDFromTopic(topic, s.topicPrefix)
	if err != nil {
		metrics.MessagesDropped.WithLabelValues(metrics.DropTopic).Inc()
		s.logger.Warn("dropping message with unexpected topic", "topic", topic)
		return
	}

	env, err := parseEnvelope(payload)
	if err != nil {
		reason := metrics.DropPayload
		if errors.Is(err, errShape) {
			reason = metrics.DropShape
		}
		metrics.MessagesDropped.WithLabelValues(reason).Inc()
		s.logger.Warn("dropping invalid payload", "topic", topic, "error", err)
		return
	}

	uid := env.UID
	if uid == "" {
		uid = topicUID
	}

	now := s.now().UTC()
	reading := types.Reading{
		DeviceID: uid,
		UID:      uid,
		Firmware: env.FW,
		TTS:      env.TTS,
		Data: types.ReadingData{
			Temperature: s.decodeField(uid, "temp", env.Data["temp"]),
			Humidity:    s.decodeField(uid, "hum", env.Data["hum"]),
			PM25:        s.decodeField(uid, "pm2.5", env.Data["pm2.5"]),
		},
		Timestamp:  now,
		ReceivedAt: now,
	}
	if reading.Firmware == "" {
		reading.Firmware = "unknown"
	}
	if s.keepRaw {
		reading.RawPayload = append([]byte(nil), payload...)
	}

	stored, err := s.readings.Append(reading)
	if err != nil {
		// No retry queue: the reading is lost.
		metrics.ReadingsLost.Inc()
		s.logger.Error("failed to store reading", "device", uid, "error", err)
		return
	}
	metrics.ReadingsStored.Inc()

	if err := s.devices.UpsertOnMessage(uid, env.FW, now); err != nil {
		s.logger.Error("failed to upsert device", "device", uid, "error", err)
	}

	s.broadcaster.Broadcast(ws.EventTelemetryNew, map[string]any{
		"deviceId": uid,
		"data":     stored,
	})
	s.broadcaster.Broadcast(ws.EventDeviceUpdate, map[string]any{
		"deviceId": uid,
		"lastSeen": now,
	})

	s.logger.Debug("reading stored",
		"device", uid,
		"temperature", stored.Data.Temperature,
		"humidity", stored.Data.Humidity,
		"pm25", stored.Data.PM25,
	)
}

// decodeField decodes and rounds one sensor value. An unrecognized encoding
// is stored as 0 but flagged, so operators can tell it from a real zero.
func (s *Service) decodeField(uid, field string, raw any) float64 {
	v := decode.Field(raw)
	if v.Kind == decode.KindUnknown {
		metrics.DecodeFallbacks.Inc()
		s.logger.Warn("unparseable sensor value, storing zero",
			"device", uid, "field", field, "raw", raw)
	}
	return decode.Round2(v.Float)
}
