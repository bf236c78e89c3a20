package repository

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"airsense-server/internal/db"
	"airsense-server/internal/modules/device/types"
)

//go:embed sql/upsert-on-message.sql
var upsertOnMessageSQL string

//go:embed sql/create-or-update.sql
var createOrUpdateSQL string

//go:embed sql/get-device.sql
var getDeviceSQL string

//go:embed sql/list-devices.sql
var listDevicesSQL string

//go:embed sql/count-devices.sql
var countDevicesSQL string

// ErrNotFound is returned when no device exists for the requested uid.
var ErrNotFound = errors.New("device not found")

type DeviceRepository interface {
	// UpsertOnMessage records an accepted reading for uid: it creates the
	// device with a synthesized display name if unknown, otherwise updates
	// firmware (when the hint is non-empty), last_seen and is_active. The
	// single-statement upsert is atomic, so concurrent messages for the same
	// uid never lose a last_seen advance or create a duplicate row.
	UpsertOnMessage(uid, firmwareHint string, seenAt time.Time) error

	// CreateOrUpdate is the explicit registration path with caller-supplied
	// metadata. An empty uid is a caller input error.
	CreateOrUpdate(uid, name, location, deviceType string) (types.Device, error)

	GetByUID(uid string) (types.Device, error)
	List() ([]types.Device, error)
	Count() (int, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(conn *sql.DB) DeviceRepository {
	return &repositoryImpl{db: conn}
}

func (r *repositoryImpl) UpsertOnMessage(uid, firmwareHint string, seenAt time.Time) error {
	if uid == "" {
		return errors.New("empty uid")
	}
	name := "Sensor " + uid
	_, err := r.db.Exec(upsertOnMessageSQL, uid, name, firmwareHint, db.FormatTime(seenAt))
	if err != nil {
		return fmt.Errorf("upsert device %q: %w", uid, err)
	}
	return nil
}

func (r *repositoryImpl) CreateOrUpdate(uid, name, location, deviceType string) (types.Device, error) {
	if uid == "" {
		return types.Device{}, errors.New("uid is required")
	}
	if name == "" {
		name = "Sensor " + uid
	}
	if _, err := r.db.Exec(createOrUpdateSQL, uid, name, location, deviceType); err != nil {
		return types.Device{}, fmt.Errorf("create or update device %q: %w", uid, err)
	}
	return r.GetByUID(uid)
}

func (r *repositoryImpl) GetByUID(uid string) (types.Device, error) {
	row := r.db.QueryRow(getDeviceSQL, uid)
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Device{}, ErrNotFound
	}
	return d, err
}

func (r *repositoryImpl) List() ([]types.Device, error) {
	rows, err := r.db.Query(listDevicesSQL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close devices rows", "error", err)
		}
	}()
	var out []types.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) Count() (int, error) {
	var n int
	err := r.db.QueryRow(countDevicesSQL).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(s scanner) (types.Device, error) {
	var (
		d        types.Device
		lastSeen sql.NullString
		active   int
		created  string
	)
	if err := s.Scan(&d.ID, &d.UID, &d.Name, &d.Location, &d.DeviceType, &d.Firmware, &lastSeen, &active, &created); err != nil {
		return types.Device{}, err
	}
	if lastSeen.Valid {
		t, err := db.ParseTime(lastSeen.String)
		if err != nil {
			return types.Device{}, err
		}
		d.LastSeen = t
	}
	d.IsActive = active != 0
	t, err := db.ParseTime(created)
	if err != nil {
		return types.Device{}, err
	}
	d.CreatedAt = t
	return d, nil
}
