package service

import (
	"errors"
	"testing"
)

const prefix = "airsense/devices"

func TestDeviceIDFromTopic(t *testing.T) {
	cases := []struct {
		name    string
		topic   string
		wantUID string
		wantErr bool
	}{
		{"valid", "airsense/devices/out/esp32-01", "esp32-01", false},
		{"three segments", "airsense/out/esp32-01", "", true},
		{"five segments", "airsense/devices/out/esp32-01/extra", "", true},
		{"wrong prefix", "other/devices/out/esp32-01", "", true},
		{"wrong second segment", "airsense/gateways/out/esp32-01", "", true},
		{"wrong middle segment", "airsense/devices/in/esp32-01", "", true},
		{"empty device id", "airsense/devices/out/", "", true},
		{"empty topic", "", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			uid, err := deviceIDFromTopic(tc.topic, prefix)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("deviceIDFromTopic(%q): want error, got uid %q", tc.topic, uid)
				}
				return
			}
			if err != nil {
				t.Fatalf("deviceIDFromTopic(%q): %v", tc.topic, err)
			}
			if uid != tc.wantUID {
				t.Errorf("uid = %q; want %q", uid, tc.wantUID)
			}
		})
	}
}

func TestParseEnvelope_Valid(t *testing.T) {
	payload := []byte(`{"uid":"esp32-01","fw":"1.4.2","tts":1767225600,"data":{"temp":21.5,"hum":"40.25","pm2.5":"0x41200000"}}`)
	env, err := parseEnvelope(payload)
	if err != nil {
		t.Fatalf("parseEnvelope: %v", err)
	}
	if env.UID != "esp32-01" || env.FW != "1.4.2" || env.TTS != 1767225600 {
		t.Errorf("envelope = %+v", env)
	}
	if len(env.Data) != 3 {
		t.Errorf("data has %d fields; want 3", len(env.Data))
	}
}

func TestParseEnvelope_Rejections(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		wantErr error
	}{
		{"malformed json", `{"uid":`, errMalformed},
		{"not an object", `[1,2,3]`, errMalformed},
		{"no data", `{"uid":"x"}`, errShape},
		{"data not object", `{"data":42}`, errShape},
		{"missing temp", `{"data":{"hum":1,"pm2.5":2}}`, errShape},
		{"missing hum", `{"data":{"temp":1,"pm2.5":2}}`, errShape},
		{"missing pm2.5", `{"data":{"temp":1,"hum":2}}`, errShape},
		{"null field", `{"data":{"temp":null,"hum":2,"pm2.5":3}}`, errShape},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseEnvelope([]byte(tc.payload))
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("parseEnvelope(%s): err = %v; want %v", tc.payload, err, tc.wantErr)
			}
		})
	}
}
