// ABOUTME: Configuration for the kdmapi commands
// ABOUTME: YAML file, .env file and KDMAPI_* environment overrides
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full command configuration.
type Config struct {
	Driver DriverConfig `yaml:"driver"`
	Log    LogConfig    `yaml:"log"`
	Bridge BridgeConfig `yaml:"bridge"`
	Keys   KeysConfig   `yaml:"keys"`
}

// DriverConfig overrides where the driver module is looked for.
type DriverConfig struct {
	// File replaces the platform's driver file name
	File string `yaml:"file"`

	// VendorDir replaces the subdirectory searched under the system directory
	VendorDir string `yaml:"vendor_dir"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// BridgeConfig controls the network bridge.
type BridgeConfig struct {
	Name       string `yaml:"name"`
	Port       int    `yaml:"port"`
	Path       string `yaml:"path"`
	EnableMDNS bool   `yaml:"mdns"`
}

// KeysConfig controls the keyboard TUI.
type KeysConfig struct {
	Channel    uint8         `yaml:"channel"`
	Program    uint8         `yaml:"program"`
	Velocity   uint8         `yaml:"velocity"`
	Octave     int           `yaml:"octave"`
	NoteLength time.Duration `yaml:"note_length"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Bridge: BridgeConfig{
			Name:       hostName() + "-kdmapi",
			Port:       8928,
			Path:       "/kdmapi",
			EnableMDNS: true,
		},
		Keys: KeysConfig{
			Velocity:   100,
			Octave:     4,
			NoteLength: 400 * time.Millisecond,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (optional when empty or missing), then .env and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := Parse(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: %s: %w", path, err)
			}
		}
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, keeping fields the document omits.
func Parse(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// applyEnv applies KDMAPI_* overrides.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	str("KDMAPI_DRIVER_FILE", &c.Driver.File)
	str("KDMAPI_VENDOR_DIR", &c.Driver.VendorDir)
	str("KDMAPI_LOG_LEVEL", &c.Log.Level)
	str("KDMAPI_LOG_FILE", &c.Log.File)
	str("KDMAPI_BRIDGE_NAME", &c.Bridge.Name)
	str("KDMAPI_BRIDGE_PATH", &c.Bridge.Path)

	if v, ok := lookup("KDMAPI_BRIDGE_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: KDMAPI_BRIDGE_PORT: %w", err)
		}
		c.Bridge.Port = port
	}
	if v, ok := lookup("KDMAPI_BRIDGE_MDNS"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: KDMAPI_BRIDGE_MDNS: %w", err)
		}
		c.Bridge.EnableMDNS = enabled
	}
	if v, ok := lookup("KDMAPI_KEYS_CHANNEL"); ok {
		ch, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return fmt.Errorf("config: KDMAPI_KEYS_CHANNEL: %w", err)
		}
		c.Keys.Channel = uint8(ch)
	}
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var problems []string

	if c.Bridge.Port < 1 || c.Bridge.Port > 65535 {
		problems = append(problems, fmt.Sprintf("bridge.port %d out of range", c.Bridge.Port))
	}
	if !strings.HasPrefix(c.Bridge.Path, "/") {
		problems = append(problems, fmt.Sprintf("bridge.path %q must start with /", c.Bridge.Path))
	}
	if c.Keys.Channel > 15 {
		problems = append(problems, fmt.Sprintf("keys.channel %d out of range 0-15", c.Keys.Channel))
	}
	if c.Keys.Program > 127 {
		problems = append(problems, fmt.Sprintf("keys.program %d out of range 0-127", c.Keys.Program))
	}
	if c.Keys.Velocity > 127 {
		problems = append(problems, fmt.Sprintf("keys.velocity %d out of range 0-127", c.Keys.Velocity))
	}
	if c.Keys.Octave < 0 || c.Keys.Octave > 9 {
		problems = append(problems, fmt.Sprintf("keys.octave %d out of range 0-9", c.Keys.Octave))
	}
	if c.Keys.NoteLength <= 0 {
		problems = append(problems, "keys.note_length must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func hostName() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "unknown"
	}
	return h
}
