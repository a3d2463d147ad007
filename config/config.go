// Package config loads and saves the host configuration: device signatures,
// footswitch bindings and protocol timing knobs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Action names what a footswitch button does to a slot.
type Action string

const (
	ActionEnable Action = "enable"
	ActionBypass Action = "bypass"
)

// Binding maps a MIDI note from the footswitch controller to a slot action.
type Binding struct {
	Note   uint8  `json:"note"`
	Action Action `json:"action"`
	Slot   int    `json:"slot"`
}

// Signature identifies a device role by MIDI port name keywords.
type Signature struct {
	Keywords []string `json:"keywords"`
}

// Config is the main configuration structure.
type Config struct {
	Pedal      Signature `json:"pedal"`
	Footswitch Signature `json:"footswitch"`
	Bindings   []Binding `json:"bindings,omitempty"`

	PollIntervalMS int `json:"pollIntervalMs,omitempty"`
	ReplyTimeoutMS int `json:"replyTimeoutMs,omitempty"`
	ReplyRetries   int `json:"replyRetries,omitempty"`
}

// DefaultConfig returns a config with sensible defaults for the MS-60B+ and
// the M-Vave Chocolate footswitch.
func DefaultConfig() *Config {
	return &Config{
		Pedal:      Signature{Keywords: []string{"ZOOM MS-60B+", "MS-60B+"}},
		Footswitch: Signature{Keywords: []string{"M-VAVE", "CHOCOLATE", "CHOCOLATR"}},
		Bindings: []Binding{
			{Note: 60, Action: ActionEnable, Slot: 2},
			{Note: 61, Action: ActionBypass, Slot: 2},
			{Note: 62, Action: ActionEnable, Slot: 1},
			{Note: 63, Action: ActionBypass, Slot: 1},
		},
		PollIntervalMS: 1000,
		ReplyTimeoutMS: 500,
		ReplyRetries:   3,
	}
}

// PollInterval returns the device watcher poll interval.
func (c *Config) PollInterval() time.Duration {
	if c.PollIntervalMS <= 0 {
		return time.Second
	}
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// ReplyTimeout returns how long to wait for a patch reply before retrying.
func (c *Config) ReplyTimeout() time.Duration {
	if c.ReplyTimeoutMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.ReplyTimeoutMS) * time.Millisecond
}

// Validate reports config values the protocol components cannot work with.
func (c *Config) Validate() error {
	if len(c.Pedal.Keywords) == 0 {
		return fmt.Errorf("config: pedal signature has no keywords")
	}
	if c.ReplyRetries < 0 {
		return fmt.Errorf("config: replyRetries must not be negative")
	}
	for _, b := range c.Bindings {
		if b.Action != ActionEnable && b.Action != ActionBypass {
			return fmt.Errorf("config: unknown binding action %q for note %d", b.Action, b.Note)
		}
		if b.Slot < 0 {
			return fmt.Errorf("config: negative slot for note %d", b.Note)
		}
	}
	return nil
}

// ConfigDir returns the config directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "pedalhost"), nil
}

// ConfigPath returns the full path to config.json.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from the default path, or returns defaults if the
// file does not exist.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads the config from an explicit path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to the default path.
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to an explicit path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
