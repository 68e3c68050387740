package models

// Segment is a network range assigned to the agent for discovery scanning.
type Segment struct {
	ID                  string `json:"id"`
	CIDR                string `json:"cidr"`
	Name                string `json:"name"`
	ScanIntervalSeconds int    `json:"scan_interval_seconds"`
}

// LocalNetwork describes the agent host's primary IPv4 network.
type LocalNetwork struct {
	CIDR          string `json:"cidr"`
	InterfaceName string `json:"interface_name"`
	Address       string `json:"address"`
}

// AutoSegmentRequest registers a locally detected network as a segment.
type AutoSegmentRequest struct {
	CIDR          string `json:"cidr"`
	Name          string `json:"name"`
	InterfaceName string `json:"interface_name"`
}

// ScanRecord is a journaled subnet scan run.
type ScanRecord struct {
	ID        string `json:"id"`
	SegmentID string `json:"segment_id"`
	CIDR      string `json:"cidr"`
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at,omitempty"`
	Status    string `json:"status"`
	Devices   int    `json:"devices"`
	Error     string `json:"error,omitempty"`
}
