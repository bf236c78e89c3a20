package repository

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"airsense-server/internal/db"
	"airsense-server/internal/modules/telemetry/decode"
	"airsense-server/internal/modules/telemetry/types"
)

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/latest-by-device.sql
var latestByDeviceSQL string

//go:embed sql/range-by-device.sql
var rangeByDeviceSQL string

//go:embed sql/count-by-device.sql
var countByDeviceSQL string

//go:embed sql/count-since.sql
var countSinceSQL string

//go:embed sql/count-all.sql
var countAllSQL string

// ErrNoReadings is returned by LatestByDevice when the device has no stored
// reading.
var ErrNoReadings = errors.New("no readings for device")

// TelemetryRepository persists normalized readings. Rows are append-only and
// ordered by ts descending; rows sharing a ts are ordered by insertion
// sequence (id) descending.
type TelemetryRepository interface {
	Append(r types.Reading) (types.Reading, error)
	LatestByDevice(uid string) (types.Reading, error)
	RangeByDevice(uid string, limit, offset int) ([]types.Reading, error)
	CountByDevice(uid string) (int, error)
	CountSince(cutoff time.Time) (int, error)
	Count() (int, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(conn *sql.DB) TelemetryRepository {
	return &repositoryImpl{db: conn}
}

func (r *repositoryImpl) Append(reading types.Reading) (types.Reading, error) {
	res, err := r.db.Exec(insertReadingSQL,
		reading.DeviceID,
		reading.Firmware,
		reading.TTS,
		reading.Data.Temperature,
		reading.Data.Humidity,
		reading.Data.PM25,
		db.FormatTime(reading.Timestamp),
		db.FormatTime(reading.ReceivedAt),
		reading.RawPayload,
	)
	if err != nil {
		return types.Reading{}, fmt.Errorf("insert reading: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.Reading{}, fmt.Errorf("reading id: %w", err)
	}
	reading.ID = id
	reading.UID = reading.DeviceID
	return reading, nil
}

func (r *repositoryImpl) LatestByDevice(uid string) (types.Reading, error) {
	row := r.db.QueryRow(latestByDeviceSQL, uid)
	reading, err := scanReading(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Reading{}, ErrNoReadings
	}
	return reading, err
}

func (r *repositoryImpl) RangeByDevice(uid string, limit, offset int) ([]types.Reading, error) {
	rows, err := r.db.Query(rangeByDeviceSQL, uid, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close readings rows", "error", err)
		}
	}()
	var out []types.Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, reading)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) CountByDevice(uid string) (int, error) {
	var n int
	err := r.db.QueryRow(countByDeviceSQL, uid).Scan(&n)
	return n, err
}

func (r *repositoryImpl) CountSince(cutoff time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(countSinceSQL, db.FormatTime(cutoff)).Scan(&n)
	return n, err
}

func (r *repositoryImpl) Count() (int, error) {
	var n int
	err := r.db.QueryRow(countAllSQL).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReading(s scanner) (types.Reading, error) {
	var (
		reading  types.Reading
		ts       string
		received string
	)
	err := s.Scan(
		&reading.ID,
		&reading.DeviceID,
		&reading.Firmware,
		&reading.TTS,
		&reading.Data.Temperature,
		&reading.Data.Humidity,
		&reading.Data.PM25,
		&ts,
		&received,
	)
	if err != nil {
		return types.Reading{}, err
	}
	reading.UID = reading.DeviceID

	// Re-round on read so hand-inserted or replayed rows come out normalized.
	reading.Data.Temperature = decode.Round2(reading.Data.Temperature)
	reading.Data.Humidity = decode.Round2(reading.Data.Humidity)
	reading.Data.PM25 = decode.Round2(reading.Data.PM25)

	t, err := db.ParseTime(ts)
	if err != nil {
		return types.Reading{}, err
	}
	reading.Timestamp = t
	t, err = db.ParseTime(received)
	if err != nil {
		return types.Reading{}, err
	}
	reading.ReceivedAt = t
	return reading, nil
}
