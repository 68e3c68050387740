package models

// DeviceType categorizes a network device.
type DeviceType string

const (
	DeviceTypeServer  DeviceType = "server"
	DeviceTypeDesktop DeviceType = "desktop"
	DeviceTypeRouter  DeviceType = "router"
	DeviceTypePrinter DeviceType = "printer"
	DeviceTypeIoT     DeviceType = "iot"
	DeviceTypeUnknown DeviceType = "unknown"
)

// DeviceStatus represents the health of a monitored device as reported to
// the control plane.
type DeviceStatus string

const (
	DeviceStatusOnline   DeviceStatus = "online"
	DeviceStatusOffline  DeviceStatus = "offline"
	DeviceStatusDegraded DeviceStatus = "degraded"
	DeviceStatusUnknown  DeviceStatus = "unknown"
)

// DiscoveryMethod indicates how a device was discovered.
type DiscoveryMethod string

const (
	DiscoveryICMP DiscoveryMethod = "icmp"
	DiscoveryARP  DiscoveryMethod = "arp"
	DiscoverymDNS DiscoveryMethod = "mdns"
)

// CheckType selects the probe used for a monitored device.
type CheckType string

const (
	CheckTypePing CheckType = "ping"
	CheckTypeTCP  CheckType = "tcp"
	CheckTypeHTTP CheckType = "http"
)

// MonitoredDevice is a device the control plane wants the agent to poll.
type MonitoredDevice struct {
	ID          string    `json:"id"`
	IPAddress   string    `json:"ip_address"`
	CheckType   CheckType `json:"check_type"`
	URL         string    `json:"url,omitempty"`
	Port        int       `json:"port,omitempty"`
	IsMonitored bool      `json:"is_monitored"`
}

// TrackingKey returns the composite key used for hysteresis bookkeeping.
func (d MonitoredDevice) TrackingKey() string {
	return d.ID + "-" + d.IPAddress
}

// DiscoveredDevice is a host found during a subnet scan.
type DiscoveredDevice struct {
	IPAddress       string          `json:"ip_address"`
	MACAddress      string          `json:"mac_address,omitempty"`
	Hostname        string          `json:"hostname,omitempty"`
	DeviceType      DeviceType      `json:"device_type"`
	Description     string          `json:"description,omitempty"`
	ResponseTimeMs  *float64        `json:"response_time_ms"`
	DiscoveryMethod DiscoveryMethod `json:"discovery_method"`
}

// StatusReport is one hysteresis-adjusted check result sent to the control plane.
type StatusReport struct {
	DeviceID       string       `json:"device_id"`
	IPAddress      string       `json:"ip_address"`
	Status         DeviceStatus `json:"status"`
	ResponseTimeMs *float64     `json:"response_time_ms"`
	CheckType      CheckType    `json:"check_type"`
	CheckedAt      string       `json:"checked_at"`
	Error          string       `json:"error,omitempty"`
}
