package service

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"airsense-server/internal/config"
	devicerepo "airsense-server/internal/modules/device/repository"
	telemetryrepo "airsense-server/internal/modules/telemetry/repository"
	"airsense-server/internal/modules/telemetry/types"
	"airsense-server/internal/ws"
)

// Minimal schema matching internal/db/sql/0001_schema.sql for in-memory tests.
const testSchema = `
CREATE TABLE IF NOT EXISTS devices (
  id          INTEGER PRIMARY KEY,
  uid         TEXT    NOT NULL,
  name        TEXT    NOT NULL,
  location    TEXT    NOT NULL DEFAULT '',
  device_type TEXT    NOT NULL DEFAULT '',
  firmware    TEXT    NOT NULL DEFAULT 'unknown',
  last_seen   TEXT,
  is_active   INTEGER NOT NULL DEFAULT 0,
  created_at  TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_devices_uid ON devices(uid);

CREATE TABLE IF NOT EXISTS readings (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  device_uid  TEXT    NOT NULL,
  firmware    TEXT    NOT NULL DEFAULT 'unknown',
  tts         INTEGER NOT NULL DEFAULT 0,
  temperature REAL    NOT NULL,
  humidity    REAL    NOT NULL,
  pm25        REAL    NOT NULL,
  ts          TEXT    NOT NULL,
  received_at TEXT    NOT NULL,
  raw_payload BLOB
);
CREATE INDEX IF NOT EXISTS idx_readings_device_ts ON readings(device_uid, ts DESC, id DESC);
`

type recordedEvent struct {
	event string
	data  any
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *fakeBroadcaster) Broadcast(event string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{event: event, data: data})
}

func (b *fakeBroadcaster) recorded() []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]recordedEvent(nil), b.events...)
}

type fixture struct {
	svc         *Service
	devices     devicerepo.DeviceRepository
	readings    telemetryrepo.TelemetryRepository
	broadcaster *fakeBroadcaster
	now         time.Time
}

func setupService(t *testing.T) *fixture {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(testSchema); err != nil {
		t.Fatalf("exec schema: %v", err)
	}
	t.Cleanup(func() {
		if err := conn.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})

	f := &fixture{
		devices:     devicerepo.NewRepository(conn),
		readings:    telemetryrepo.NewRepository(conn),
		broadcaster: &fakeBroadcaster{},
		now:         time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
	}
	cfg := config.Config{
		MQTTTopicPrefix: "airsense/devices",
		IngestKeepRaw:   true,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewService(cfg, f.devices, f.readings, f.broadcaster, logger)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func TestHandleMessage_StoresReadingAndDevice(t *testing.T) {
	f := setupService(t)

	payload := []byte(`{"uid":"esp32-01","fw":"1.4.2","tts":1767225600,` +
		`"data":{"temp":21.456,"hum":"40.25","pm2.5":"0x41200000"}}`)
	f.svc.HandleMessage("airsense/devices/out/esp32-01", payload)

	reading, err := f.readings.LatestByDevice("esp32-01")
	if err != nil {
		t.Fatalf("LatestByDevice: %v", err)
	}
	if reading.Data.Temperature != 21.46 {
		t.Errorf("temperature = %v; want 21.46", reading.Data.Temperature)
	}
	if reading.Data.Humidity != 40.25 {
		t.Errorf("humidity = %v; want 40.25", reading.Data.Humidity)
	}
	if reading.Data.PM25 != 10 {
		t.Errorf("pm25 = %v; want 10", reading.Data.PM25)
	}
	if reading.Firmware != "1.4.2" {
		t.Errorf("firmware = %q; want %q", reading.Firmware, "1.4.2")
	}
	if reading.TTS != 1767225600 {
		t.Errorf("tts = %d; want 1767225600", reading.TTS)
	}

	device, err := f.devices.GetByUID("esp32-01")
	if err != nil {
		t.Fatalf("GetByUID: %v", err)
	}
	if !device.LastSeen.Equal(f.now) {
		t.Errorf("last_seen = %v; want %v", device.LastSeen, f.now)
	}
	if device.Firmware != "1.4.2" {
		t.Errorf("device firmware = %q; want %q", device.Firmware, "1.4.2")
	}

	events := f.broadcaster.recorded()
	if len(events) != 2 {
		t.Fatalf("broadcast %d events; want 2", len(events))
	}
	if events[0].event != ws.EventTelemetryNew {
		t.Errorf("events[0] = %q; want %q", events[0].event, ws.EventTelemetryNew)
	}
	if events[1].event != ws.EventDeviceUpdate {
		t.Errorf("events[1] = %q; want %q", events[1].event, ws.EventDeviceUpdate)
	}
}

func TestHandleMessage_UIDFallsBackToTopic(t *testing.T) {
	f := setupService(t)

	payload := []byte(`{"data":{"temp":20,"hum":50,"pm2.5":5}}`)
	f.svc.HandleMessage("airsense/devices/out/bare-sensor", payload)

	reading, err := f.readings.LatestByDevice("bare-sensor")
	if err != nil {
		t.Fatalf("LatestByDevice: %v", err)
	}
	if reading.Firmware != "unknown" {
		t.Errorf("firmware = %q; want %q", reading.Firmware, "unknown")
	}
	if _, err := f.devices.GetByUID("bare-sensor"); err != nil {
		t.Fatalf("GetByUID: %v", err)
	}
}

func TestHandleMessage_DropsBadTopic(t *testing.T) {
	f := setupService(t)

	payload := []byte(`{"data":{"temp":20,"hum":50,"pm2.5":5}}`)
	for _, topic := range []string{
		"airsense/devices/out",
		"other/devices/out/esp32-01",
		"airsense/devices/in/esp32-01",
		"airsense/devices/out/esp32-01/extra",
	} {
		f.svc.HandleMessage(topic, payload)
	}

	if n, err := f.readings.Count(); err != nil || n != 0 {
		t.Errorf("readings count = %d, err = %v; want 0, nil", n, err)
	}
	if n, err := f.devices.Count(); err != nil || n != 0 {
		t.Errorf("devices count = %d, err = %v; want 0, nil", n, err)
	}
	if len(f.broadcaster.recorded()) != 0 {
		t.Errorf("broadcast events on dropped messages")
	}
}

func TestHandleMessage_DropsBadPayload(t *testing.T) {
	f := setupService(t)

	for _, payload := range []string{
		`not json at all`,
		`{"uid":"esp32-01"}`,
		`{"data":{"temp":20,"hum":50}}`,
		`{"data":{"temp":null,"hum":50,"pm2.5":5}}`,
	} {
		f.svc.HandleMessage("airsense/devices/out/esp32-01", []byte(payload))
	}

	if n, err := f.readings.Count(); err != nil || n != 0 {
		t.Errorf("readings count = %d, err = %v; want 0, nil", n, err)
	}
	if len(f.broadcaster.recorded()) != 0 {
		t.Errorf("broadcast events on dropped messages")
	}
}

func TestHandleMessage_UnknownEncodingStoresZero(t *testing.T) {
	f := setupService(t)

	payload := []byte(`{"data":{"temp":"garbage value","hum":41.5,"pm2.5":[1,2]}}`)
	f.svc.HandleMessage("airsense/devices/out/esp32-02", payload)

	reading, err := f.readings.LatestByDevice("esp32-02")
	if err != nil {
		t.Fatalf("LatestByDevice: %v", err)
	}
	if reading.Data.Temperature != 0 {
		t.Errorf("temperature = %v; want 0", reading.Data.Temperature)
	}
	if reading.Data.PM25 != 0 {
		t.Errorf("pm25 = %v; want 0", reading.Data.PM25)
	}
	if reading.Data.Humidity != 41.5 {
		t.Errorf("humidity = %v; want 41.5", reading.Data.Humidity)
	}
}

func TestHandleMessage_ByteSequenceEncoding(t *testing.T) {
	f := setupService(t)

	// [0,0,32,65] is 0x41200000 little-endian, the float32 10.0.
	payload := []byte(`{"data":{"temp":[0,0,32,65],"hum":"39.5","pm2.5":"12.5"}}`)
	f.svc.HandleMessage("airsense/devices/out/esp32-03", payload)

	reading, err := f.readings.LatestByDevice("esp32-03")
	if err != nil {
		t.Fatalf("LatestByDevice: %v", err)
	}
	if reading.Data.Temperature != 10 {
		t.Errorf("temperature = %v; want 10", reading.Data.Temperature)
	}
	if reading.Data.Humidity != 39.5 {
		t.Errorf("humidity = %v; want 39.5", reading.Data.Humidity)
	}
	if reading.Data.PM25 != 12.5 {
		t.Errorf("pm25 = %v; want 12.5", reading.Data.PM25)
	}
}

func TestHandleMessage_LastSeenAdvances(t *testing.T) {
	f := setupService(t)

	payload := []byte(`{"uid":"esp32-01","data":{"temp":20,"hum":50,"pm2.5":5}}`)
	f.svc.HandleMessage("airsense/devices/out/esp32-01", payload)

	later := f.now.Add(2 * time.Minute)
	f.now = later
	f.svc.HandleMessage("airsense/devices/out/esp32-01", payload)

	device, err := f.devices.GetByUID("esp32-01")
	if err != nil {
		t.Fatalf("GetByUID: %v", err)
	}
	if !device.LastSeen.Equal(later) {
		t.Errorf("last_seen = %v; want %v", device.LastSeen, later)
	}

	if n, err := f.devices.Count(); err != nil || n != 1 {
		t.Errorf("devices count = %d, err = %v; want 1, nil", n, err)
	}
	if n, err := f.readings.CountByDevice("esp32-01"); err != nil || n != 2 {
		t.Errorf("readings count = %d, err = %v; want 2, nil", n, err)
	}
}

func TestHandleMessage_AppendFailureSkipsUpsert(t *testing.T) {
	f := setupService(t)
	f.svc.readings = failingReadings{}

	payload := []byte(`{"data":{"temp":20,"hum":50,"pm2.5":5}}`)
	f.svc.HandleMessage("airsense/devices/out/esp32-01", payload)

	if n, err := f.devices.Count(); err != nil || n != 0 {
		t.Errorf("devices count = %d, err = %v; want 0, nil", n, err)
	}
	if len(f.broadcaster.recorded()) != 0 {
		t.Errorf("broadcast events after failed store")
	}
}

type failingReadings struct {
	telemetryrepo.TelemetryRepository
}

func (failingReadings) Append(types.Reading) (types.Reading, error) {
	return types.Reading{}, errors.New("disk full")
}
