package client

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment overrides applied by LoadSettings.
const (
	EnvAPIURL      = "RADIOLINK_API_URL"
	EnvRealtimeURL = "RADIOLINK_REALTIME_URL"
)

const appDirName = "radiolink"

// Settings stores user preferences persisted as YAML in the user config
// directory.
type Settings struct {
	APIURL         string        `yaml:"api_url"`
	RealtimeURL    string        `yaml:"realtime_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	StateDB        string        `yaml:"state_db,omitempty"`
	PTTKey         string        `yaml:"ptt_key,omitempty"`
	AudioInput     string        `yaml:"audio_input,omitempty"`
	AudioOutput    string        `yaml:"audio_output,omitempty"`
	MetricsAddr    string        `yaml:"metrics_addr,omitempty"`
}

// DefaultSettings returns default settings.
func DefaultSettings() *Settings {
	return &Settings{
		APIURL:         "http://localhost:8000",
		RealtimeURL:    "ws://localhost:7880",
		RequestTimeout: 15 * time.Second,
		PTTKey:         "F8",
	}
}

// ConfigDir returns the per-user directory holding settings and state.
func ConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		exe, err := os.Executable()
		if err != nil {
			return "."
		}
		return filepath.Dir(exe)
	}
	return filepath.Join(dir, appDirName)
}

// SettingsPath is where LoadSettings and Save look.
func SettingsPath() string {
	return filepath.Join(ConfigDir(), "settings.yaml")
}

// StatePath returns the client state database path.
func (s *Settings) StatePath() string {
	if s.StateDB != "" {
		return s.StateDB
	}
	return filepath.Join(ConfigDir(), "state.db")
}

// LoadSettings loads settings from the default path or returns defaults,
// then applies environment overrides.
func LoadSettings() *Settings {
	s, err := LoadSettingsFrom(SettingsPath())
	if err != nil {
		slog.Error("load settings", "err", err)
		s = DefaultSettings()
	}
	s.ApplyEnv()
	return s
}

// LoadSettingsFrom reads path. A missing file yields defaults.
func LoadSettingsFrom(path string) (*Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("client: read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("client: parse settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the values a session needs.
func (s *Settings) Validate() error {
	if s.APIURL == "" {
		return errors.New("client: settings: api_url is required")
	}
	if s.RealtimeURL == "" {
		return errors.New("client: settings: realtime_url is required")
	}
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("client: settings: request_timeout must be positive, got %s", s.RequestTimeout)
	}
	return nil
}

// ApplyEnv overrides the server URLs from RADIOLINK_API_URL and
// RADIOLINK_REALTIME_URL.
func (s *Settings) ApplyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		s.APIURL = v
	}
	if v := os.Getenv(EnvRealtimeURL); v != "" {
		s.RealtimeURL = v
	}
}

// Save writes settings to the default path.
func (s *Settings) Save() error {
	return s.SaveTo(SettingsPath())
}

// SaveTo writes settings to path, creating its directory.
func (s *Settings) SaveTo(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("client: create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
