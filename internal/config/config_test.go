package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestViperConfigUnmarshal(t *testing.T) {
	v := viper.New()
	v.Set("dashboard_url", "https://dash.example.com")
	v.Set("status_failure_threshold", 4)
	cfg := New(v)

	var target struct {
		DashboardURL string `mapstructure:"dashboard_url"`
		Threshold    int    `mapstructure:"status_failure_threshold"`
	}
	if err := cfg.Unmarshal(&target); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if target.DashboardURL != "https://dash.example.com" {
		t.Errorf("DashboardURL = %q, want %q", target.DashboardURL, "https://dash.example.com")
	}
	if target.Threshold != 4 {
		t.Errorf("Threshold = %d, want %d", target.Threshold, 4)
	}
}

func TestNilViper(t *testing.T) {
	cfg := New(nil)
	if got := cfg.ConfigFileUsed(); got != "" {
		t.Errorf("nil viper ConfigFileUsed() = %q, want empty", got)
	}
	var target struct {
		Name string `mapstructure:"name"`
	}
	if err := cfg.Unmarshal(&target); err != nil {
		t.Errorf("nil viper Unmarshal() error = %v", err)
	}
	out, err := cfg.Dump()
	if err != nil {
		t.Fatalf("nil viper Dump() error = %v", err)
	}
	if string(out) != "{}\n" {
		t.Errorf("nil viper Dump() = %q, want empty mapping", out)
	}
}

func TestLoad_FileEnvAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	content := "dashboard_url: https://file.example.com\nlog:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LANWATCH_API_KEY", "from-env")

	cfg, err := Load(path, map[string]any{
		"api_key":                  "",
		"status_failure_threshold": 3,
		"log.level":                "info",
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	var got struct {
		DashboardURL string `mapstructure:"dashboard_url"`
		APIKey       string `mapstructure:"api_key"`
		Threshold    int    `mapstructure:"status_failure_threshold"`
		Log          struct {
			Level string `mapstructure:"level"`
		} `mapstructure:"log"`
	}
	if err := cfg.Unmarshal(&got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.DashboardURL != "https://file.example.com" {
		t.Errorf("dashboard_url = %q, want file value", got.DashboardURL)
	}
	if got.APIKey != "from-env" {
		t.Errorf("api_key = %q, want env value", got.APIKey)
	}
	if got.Threshold != 3 {
		t.Errorf("status_failure_threshold = %d, want default 3", got.Threshold)
	}
	if got.Log.Level != "debug" {
		t.Errorf("log.level = %q, want debug", got.Log.Level)
	}
	if cfg.ConfigFileUsed() != path {
		t.Errorf("ConfigFileUsed() = %q, want %q", cfg.ConfigFileUsed(), path)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	if err == nil {
		t.Fatal("Load() with missing explicit file should fail")
	}
}

func TestDump_RedactsSecrets(t *testing.T) {
	v := viper.New()
	v.Set("api_key", "super-secret")
	v.Set("agent_name", "closet-pi")
	cfg := New(v)

	out, err := cfg.Dump("api_key")
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	s := string(out)
	if strings.Contains(s, "super-secret") {
		t.Errorf("Dump() leaked api_key: %s", s)
	}
	if !strings.Contains(s, "closet-pi") {
		t.Errorf("Dump() missing agent_name: %s", s)
	}
}
