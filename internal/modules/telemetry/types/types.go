package types

import "time"

// ReadingData holds the three normalized sensor values of one reading,
// each rounded to 2 decimal places.
type ReadingData struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	PM25        float64 `json:"pm25"`
}

// Reading is one persisted telemetry reading. Readings are append-only:
// once stored they are never mutated.
type Reading struct {
	ID       int64  `json:"id"`
	DeviceID string `json:"deviceId"`
	UID      string `json:"uid"`
	Firmware string `json:"firmware"`

	// TTS is the device-reported epoch timestamp (seconds). May be 0 and
	// is not trusted for ordering; Timestamp is.
	TTS int64 `json:"tts"`

	Data ReadingData `json:"data"`

	// Timestamp is the server-assigned receipt time used for ordering.
	Timestamp  time.Time `json:"timestamp"`
	ReceivedAt time.Time `json:"receivedAt"`

	// RawPayload keeps the original broker bytes for forensic replay.
	// Not exposed over the API.
	RawPayload []byte `json:"-"`
}
