// Package metrics exposes the ingestion pipeline's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airsense_messages_received_total",
		Help: "Broker messages delivered to the ingest pipeline",
	})
	MessagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airsense_messages_dropped_total",
		Help: "Messages rejected before storage, by reason",
	}, []string{"reason"})
	ReadingsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airsense_readings_stored_total",
		Help: "Readings durably appended to the telemetry store",
	})
	ReadingsLost = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airsense_readings_lost_total",
		Help: "Valid readings lost to a store write failure",
	})
	DecodeFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airsense_decode_fallbacks_total",
		Help: "Sensor fields with no recognized wire encoding (stored as zero)",
	})
	ReconnectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airsense_mqtt_reconnect_attempts_total",
		Help: "Broker reconnect attempts",
	})
	RealtimeClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "airsense_realtime_clients",
		Help: "Connected WebSocket subscribers",
	})
)

// Drop reasons for MessagesDropped.
const (
	DropTopic   = "topic"
	DropPayload = "payload"
	DropShape   = "shape"
)
