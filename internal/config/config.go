// Package config wraps viper for the LanWatch agent: file, environment and
// default layering decoded into a typed struct.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable override,
// e.g. LANWATCH_API_KEY or LANWATCH_LOG_LEVEL.
const EnvPrefix = "LANWATCH"

// Config is a read-only view over a viper instance.
type Config struct {
	v *viper.Viper
}

// New wraps v. A nil viper yields a Config that returns zero values.
func New(v *viper.Viper) *Config {
	return &Config{v: v}
}

// Load reads configuration from path (optional), environment variables and
// the supplied defaults. Every default key is also bound to its environment
// variable so that Unmarshal sees env-only overrides.
func Load(path string, defaults map[string]any) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	} else {
		v.SetConfigName("lanwatch-agent")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/lanwatch")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return New(v), nil
}

// ConfigFileUsed returns the path of the file that was loaded, if any.
func (c *Config) ConfigFileUsed() string {
	if c.v == nil {
		return ""
	}
	return c.v.ConfigFileUsed()
}

// Unmarshal decodes the whole configuration into target using mapstructure tags.
func (c *Config) Unmarshal(target any) error {
	if c.v == nil {
		return nil
	}
	if err := c.v.Unmarshal(target); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Dump renders the effective settings as YAML. Values of the redacted keys
// are masked.
func (c *Config) Dump(redact ...string) ([]byte, error) {
	if c.v == nil {
		return []byte("{}\n"), nil
	}
	settings := c.v.AllSettings()
	for _, key := range redact {
		if c.v.GetString(key) != "" {
			setNested(settings, strings.Split(key, "."), "********")
		}
	}
	out, err := yaml.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return out, nil
}

func setNested(m map[string]any, path []string, value any) {
	if len(path) == 1 {
		m[path[0]] = value
		return
	}
	next, ok := m[path[0]].(map[string]any)
	if !ok {
		return
	}
	setNested(next, path[1:], value)
}
