package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Devices publish to "<prefix>/out/<deviceId>" where prefix is two fixed
// segments. Anything else on the wire is noise and is dropped without
// touching any state.

var (
	errBadTopic  = errors.New("topic does not match <prefix>/out/<deviceId>")
	errMalformed = errors.New("payload is not a JSON object")
	errShape     = errors.New("payload missing required data fields")
)

// requiredFields are the sensor keys every message must carry under "data".
var requiredFields = []string{"temp", "hum", "pm2.5"}

type wirePayload struct {
	UID  string          `json:"uid"`
	FW   string          `json:"fw"`
	TTS  float64         `json:"tts"`
	Data json.RawMessage `json:"data"`
}

type envelope struct {
	UID  string
	FW   string
	TTS  int64
	Data map[string]any
}

// deviceIDFromTopic validates the topic shape and extracts the 4th segment.
func deviceIDFromTopic(topic, prefix string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 {
		return "", fmt.Errorf("%w: %q", errBadTopic, topic)
	}
	if parts[0]+"/"+parts[1] != prefix || parts[2] != "out" || parts[3] == "" {
		return "", fmt.Errorf("%w: %q", errBadTopic, topic)
	}
	return parts[3], nil
}

// parseEnvelope decodes and shape-checks a message body. Malformed JSON
// yields errMalformed; a well-formed body without the three required sensor
// fields yields errShape.
func parseEnvelope(payload []byte) (envelope, error) {
	var wire wirePayload
	if err := json.Unmarshal(payload, &wire); err != nil {
		return envelope{}, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if len(wire.Data) == 0 {
		return envelope{}, fmt.Errorf("%w: no data object", errShape)
	}

	var data map[string]any
	if err := json.Unmarshal(wire.Data, &data); err != nil {
		return envelope{}, fmt.Errorf("%w: data is not an object", errShape)
	}
	for _, f := range requiredFields {
		v, ok := data[f]
		if !ok || v == nil {
			return envelope{}, fmt.Errorf("%w: missing %q", errShape, f)
		}
	}

	return envelope{
		UID:  strings.TrimSpace(wire.UID),
		FW:   strings.TrimSpace(wire.FW),
		TTS:  int64(wire.TTS),
		Data: data,
	}, nil
}
