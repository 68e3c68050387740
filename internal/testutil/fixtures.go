package testutil

import (
	"github.com/google/uuid"

	"github.com/HerbHall/lanwatch/pkg/models"
)

// NewMonitoredDevice returns a ping-checked, monitored device with a random
// ID. Override individual fields with the With* options.
func NewMonitoredDevice(opts ...func(*models.MonitoredDevice)) models.MonitoredDevice {
	d := models.MonitoredDevice{
		ID:          uuid.New().String(),
		IPAddress:   "192.168.1.100",
		CheckType:   models.CheckTypePing,
		IsMonitored: true,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// WithID sets the device ID.
func WithID(id string) func(*models.MonitoredDevice) {
	return func(d *models.MonitoredDevice) { d.ID = id }
}

// WithIP sets the device's IP address.
func WithIP(ip string) func(*models.MonitoredDevice) {
	return func(d *models.MonitoredDevice) { d.IPAddress = ip }
}

// WithTCP switches the device to a TCP check on port.
func WithTCP(port int) func(*models.MonitoredDevice) {
	return func(d *models.MonitoredDevice) {
		d.CheckType = models.CheckTypeTCP
		d.Port = port
	}
}

// WithHTTP switches the device to an HTTP check against url.
func WithHTTP(url string) func(*models.MonitoredDevice) {
	return func(d *models.MonitoredDevice) {
		d.CheckType = models.CheckTypeHTTP
		d.URL = url
	}
}

// Unmonitored marks the device as not monitored.
func Unmonitored() func(*models.MonitoredDevice) {
	return func(d *models.MonitoredDevice) { d.IsMonitored = false }
}

// NewSegment returns a segment assignment scanned every intervalSeconds.
func NewSegment(id, cidr string, intervalSeconds int) models.Segment {
	return models.Segment{
		ID:                  id,
		CIDR:                cidr,
		Name:                "segment " + id,
		ScanIntervalSeconds: intervalSeconds,
	}
}
