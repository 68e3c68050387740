// Package pulse implements the device probes used by the status-check loop:
// ICMP echo, TCP connect and HTTP GET.
package pulse

import (
	"time"

	"github.com/HerbHall/lanwatch/pkg/models"
)

// CheckResult is the raw outcome of a single probe, before hysteresis.
type CheckResult struct {
	Status         models.DeviceStatus
	ResponseTimeMs *float64
	Error          string
	CheckedAt      time.Time
}

func millis(d time.Duration) *float64 {
	ms := float64(d) / float64(time.Millisecond)
	return &ms
}

func failed(status models.DeviceStatus, msg string) *CheckResult {
	return &CheckResult{
		Status:    status,
		Error:     msg,
		CheckedAt: time.Now().UTC(),
	}
}
