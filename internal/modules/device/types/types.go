package types

import "time"

// DefaultFirmware is reported for devices that never sent a firmware version.
const DefaultFirmware = "unknown"

// Device is the registry record for one physical sensor, keyed by its
// immutable uid. Exactly one record exists per uid; creation is implicit on
// the first accepted reading.
type Device struct {
	ID         int64     `json:"id"`
	UID        string    `json:"uid"`
	Name       string    `json:"name"`
	Location   string    `json:"location"`
	DeviceType string    `json:"deviceType"`
	Firmware   string    `json:"firmware"`
	LastSeen   time.Time `json:"lastSeen"`
	IsActive   bool      `json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
}
