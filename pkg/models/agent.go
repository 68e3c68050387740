package models

// HeartbeatRequest is sent by the agent on every heartbeat.
type HeartbeatRequest struct {
	Version  string `json:"version"`
	Hostname string `json:"hostname"`
	Name     string `json:"name,omitempty"`
	Platform string `json:"platform,omitempty"`
}

// HeartbeatResponse carries the agent's current configuration.
type HeartbeatResponse struct {
	AgentID            string    `json:"agent_id"`
	OrganizationID     string    `json:"organization_id"`
	Segments           []Segment `json:"segments"`
	UpgradeAvailable   bool      `json:"upgrade_available"`
	LatestAgentVersion string    `json:"latest_agent_version,omitempty"`
	Commands           []Command `json:"commands,omitempty"`
}

// CommandType identifies a remote command issued from the dashboard.
type CommandType string

const (
	CommandScanNow CommandType = "scan_now"
	CommandRestart CommandType = "restart"
)

// Command is a pending remote command delivered with a heartbeat.
type Command struct {
	ID        string      `json:"id"`
	Type      CommandType `json:"type"`
	SegmentID string      `json:"segment_id,omitempty"`
}

// Command acknowledgement statuses.
const (
	CommandStatusAccepted    = "accepted"
	CommandStatusFailed      = "failed"
	CommandStatusUnsupported = "unsupported"
)

// CommandAck reports the outcome of a remote command.
type CommandAck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// UploadResult is returned when discovered devices are uploaded.
type UploadResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}
