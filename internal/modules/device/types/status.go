package types

import "time"

// LivenessStatus is the derived tri-state computed from the recency of a
// device's last accepted reading. It is never stored.
type LivenessStatus string

const (
	StatusOnline  LivenessStatus = "online"
	StatusWarning LivenessStatus = "warning"
	StatusOffline LivenessStatus = "offline"
)

const (
	onlineWindow  = 5 * time.Minute
	warningWindow = 30 * time.Minute
)

// Status maps a device's last-seen instant to its liveness status. A device
// that has never been seen is offline. Boundary ages (exactly 5 or 30
// minutes) belong to the next worse bucket.
func Status(lastSeen, now time.Time) LivenessStatus {
	if lastSeen.IsZero() {
		return StatusOffline
	}
	age := now.Sub(lastSeen)
	switch {
	case age < onlineWindow:
		return StatusOnline
	case age < warningWindow:
		return StatusWarning
	default:
		return StatusOffline
	}
}
