package types

import (
	"testing"
	"time"
)

func TestStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		age  time.Duration
		want LivenessStatus
	}{
		{"just seen", 0, StatusOnline},
		{"4m59s", 4*time.Minute + 59*time.Second, StatusOnline},
		{"exactly 5m", 5 * time.Minute, StatusWarning},
		{"29m59s", 29*time.Minute + 59*time.Second, StatusWarning},
		{"exactly 30m", 30 * time.Minute, StatusOffline},
		{"hours ago", 6 * time.Hour, StatusOffline},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Status(now.Add(-tc.age), now)
			if got != tc.want {
				t.Errorf("Status(age=%v) = %q; want %q", tc.age, got, tc.want)
			}
		})
	}
}

func TestStatus_NeverSeen(t *testing.T) {
	if got := Status(time.Time{}, time.Now()); got != StatusOffline {
		t.Errorf("Status(zero) = %q; want %q", got, StatusOffline)
	}
}
