//go:build windows

package restarter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// windowsServiceName is the service key registered by the installer.
const windowsServiceName = "LanWatchAgent"

func detectPlatform() Restarter {
	if err := exec.Command("sc", "query", windowsServiceName).Run(); err == nil {
		return &serviceRestarter{service: windowsServiceName}
	}
	return &execRestarter{}
}

type serviceRestarter struct {
	service string
}

func (r *serviceRestarter) Name() string { return "windows-service" }
func (r *serviceRestarter) Restart(ctx context.Context) error {
	// sc has no restart verb.
	if err := exec.CommandContext(ctx, "sc", "stop", r.service).Run(); err != nil {
		return fmt.Errorf("sc stop %s: %w", r.service, err)
	}
	if err := exec.CommandContext(ctx, "sc", "start", r.service).Start(); err != nil {
		return fmt.Errorf("sc start %s: %w", r.service, err)
	}
	return nil
}

// execRestarter starts a new copy of the agent and exits.
type execRestarter struct{}

func (r *execRestarter) Name() string { return "exec" }
func (r *execRestarter) Restart(_ context.Context) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable path: %w", err)
	}
	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start new process: %w", err)
	}
	os.Exit(0)
	return nil
}
