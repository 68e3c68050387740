// Package restarter restarts the agent process through whatever supervises
// it: Docker, systemd, OpenRC, the Windows service manager, or a plain re-exec.
package restarter

import "context"

// ServiceName is the unit, rc script and Windows service name the agent installs as.
const ServiceName = "lanwatch-agent"

// Restarter restarts the running agent.
type Restarter interface {
	// Name identifies the mechanism ("systemd", "docker", "exec", ...).
	Name() string
	// Restart asks the supervisor to restart the agent. Some mechanisms
	// never return.
	Restart(ctx context.Context) error
}

// Detect returns the Restarter for the current environment.
func Detect() Restarter {
	return detectPlatform()
}
