package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	info := Info()
	if !strings.Contains(info, "LanWatch") {
		t.Errorf("Info() should contain 'LanWatch', got: %s", info)
	}
	if !strings.Contains(info, runtime.Version()) {
		t.Errorf("Info() should contain Go version, got: %s", info)
	}
}

func TestShort(t *testing.T) {
	if got := Short(); got != "dev" {
		t.Errorf("Short() = %q, want %q (default)", got, "dev")
	}
}

func TestMap(t *testing.T) {
	m := Map()

	requiredKeys := []string{"version", "git_commit", "build_date", "go_version", "os", "arch"}
	for _, key := range requiredKeys {
		if _, ok := m[key]; !ok {
			t.Errorf("Map() missing key %q", key)
		}
	}

	if m["version"] != "dev" {
		t.Errorf("Map()[\"version\"] = %q, want %q", m["version"], "dev")
	}
	if m["go_version"] != runtime.Version() {
		t.Errorf("Map()[\"go_version\"] = %q, want %q", m["go_version"], runtime.Version())
	}
}

func TestIsNewer(t *testing.T) {
	tests := []struct {
		name    string
		current string
		latest  string
		want    bool
	}{
		{"newer patch", "1.2.3", "1.2.4", true},
		{"newer minor with v prefix", "v1.2.3", "v1.3.0", true},
		{"same version", "1.2.3", "1.2.3", false},
		{"older version", "1.3.0", "1.2.9", false},
		{"dev build", "dev", "1.0.0", false},
		{"empty latest", "1.0.0", "", false},
		{"prerelease is older than release", "1.0.0-rc.1", "1.0.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNewer(tt.current, tt.latest); got != tt.want {
				t.Errorf("IsNewer(%q, %q) = %v, want %v", tt.current, tt.latest, got, tt.want)
			}
		})
	}
}

func TestUpgradeAvailable(t *testing.T) {
	if !UpgradeAvailable("dev", "", true) {
		t.Error("server flag should force upgrade availability")
	}
	if !UpgradeAvailable("1.0.0", "1.1.0", false) {
		t.Error("newer latest version should report upgrade availability")
	}
	if UpgradeAvailable("1.1.0", "1.1.0", false) {
		t.Error("equal versions should not report upgrade availability")
	}
}
