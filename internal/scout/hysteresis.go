package scout

import (
	"fmt"
	"sync"

	"github.com/HerbHall/lanwatch/pkg/models"
)

// Phase is the flap-dampening state of one monitored device.
type Phase int

const (
	// PhaseOther covers devices last reported degraded, unknown, or never seen.
	PhaseOther Phase = iota
	// PhaseHealthy is a device reported online with no pending failures.
	PhaseHealthy
	// PhaseSuspect is a device still reported online while failures accumulate.
	PhaseSuspect
	// PhaseDown is a device reported offline.
	PhaseDown
)

func (p Phase) String() string {
	switch p {
	case PhaseHealthy:
		return "healthy"
	case PhaseSuspect:
		return "suspect"
	case PhaseDown:
		return "down"
	default:
		return "other"
	}
}

// TrackingState is the hysteresis record for one device.
type TrackingState struct {
	ConsecutiveFailures int                 `json:"consecutive_failures"`
	LastStatus          models.DeviceStatus `json:"last_status"`
}

// Phase derives the device's dampening phase from the record.
func (s TrackingState) Phase() Phase {
	switch s.LastStatus {
	case models.DeviceStatusOnline:
		if s.ConsecutiveFailures > 0 {
			return PhaseSuspect
		}
		return PhaseHealthy
	case models.DeviceStatusOffline:
		return PhaseDown
	default:
		return PhaseOther
	}
}

func (s TrackingState) String() string {
	if s.Phase() == PhaseSuspect {
		return fmt.Sprintf("suspect(%d)", s.ConsecutiveFailures)
	}
	return s.Phase().String()
}

// Tracker applies hysteresis to raw probe results. Records are keyed by
// MonitoredDevice.TrackingKey and created on first observation. Only the
// status-check loop mutates a Tracker; the lock lets the status endpoint
// take snapshots concurrently.
type Tracker struct {
	mu        sync.RWMutex
	threshold int
	records   map[string]*TrackingState
}

// NewTracker returns a tracker that lets offline through after threshold
// consecutive failures. Thresholds below 1 are treated as 1.
func NewTracker(threshold int) *Tracker {
	if threshold < 1 {
		threshold = 1
	}
	return &Tracker{
		threshold: threshold,
		records:   make(map[string]*TrackingState),
	}
}

// Observe feeds one raw status for key and returns the status to report.
// suppressed is true when a raw offline was reported as online.
//
// A raw offline following a reported online increments the failure count;
// offline is reported only once the count reaches the threshold. A raw
// online clears the count. Degraded and unknown pass through untouched.
func (t *Tracker) Observe(key string, raw models.DeviceStatus) (reported models.DeviceStatus, suppressed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[key]
	if !ok {
		rec = &TrackingState{}
		t.records[key] = rec
	}

	reported = raw
	switch raw {
	case models.DeviceStatusOnline:
		rec.ConsecutiveFailures = 0
	case models.DeviceStatusOffline:
		if rec.LastStatus == models.DeviceStatusOnline {
			rec.ConsecutiveFailures++
			if rec.ConsecutiveFailures < t.threshold {
				reported = models.DeviceStatusOnline
				suppressed = true
			}
		}
	}
	rec.LastStatus = reported
	return reported, suppressed
}

// State returns the record for key.
func (t *Tracker) State(key string) (TrackingState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[key]
	if !ok {
		return TrackingState{}, false
	}
	return *rec, true
}

// Prune drops every record whose key is not in keep and returns how many were dropped.
func (t *Tracker) Prune(keep map[string]struct{}) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for key := range t.records {
		if _, ok := keep[key]; !ok {
			delete(t.records, key)
			n++
		}
	}
	return n
}

// Len returns the number of tracked devices.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// Snapshot returns a copy of every record.
func (t *Tracker) Snapshot() map[string]TrackingState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]TrackingState, len(t.records))
	for k, v := range t.records {
		out[k] = *v
	}
	return out
}
