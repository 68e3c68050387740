//go:build !windows

package restarter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

func detectPlatform() Restarter {
	return detectWith(fileExists, commandExists)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// detectWith picks a restarter from environment probes, in order of
// preference: container, systemd, OpenRC, re-exec.
func detectWith(exists func(string) bool, hasCommand func(string) bool) Restarter {
	switch {
	case exists("/.dockerenv"):
		return &dockerRestarter{}
	case exists("/run/systemd/system"):
		return &systemdRestarter{unit: ServiceName}
	case hasCommand("rc-service"):
		return &openrcRestarter{service: ServiceName}
	default:
		return &execRestarter{}
	}
}

// dockerRestarter exits cleanly and relies on the container restart policy.
type dockerRestarter struct{}

func (r *dockerRestarter) Name() string { return "docker" }
func (r *dockerRestarter) Restart(_ context.Context) error {
	os.Exit(0)
	return nil
}

type systemdRestarter struct {
	unit string
}

func (r *systemdRestarter) Name() string { return "systemd" }
func (r *systemdRestarter) Restart(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "systemctl", "restart", r.unit)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("systemctl restart %s: %w", r.unit, err)
	}
	// systemctl stops this process; waiting would race it.
	return nil
}

type openrcRestarter struct {
	service string
}

func (r *openrcRestarter) Name() string { return "openrc" }
func (r *openrcRestarter) Restart(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "rc-service", r.service, "restart")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("rc-service %s restart: %w", r.service, err)
	}
	return nil
}

// execRestarter replaces the current process image with a fresh copy.
type execRestarter struct{}

func (r *execRestarter) Name() string { return "exec" }
func (r *execRestarter) Restart(_ context.Context) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable path: %w", err)
	}
	return syscall.Exec(exe, os.Args, os.Environ())
}
