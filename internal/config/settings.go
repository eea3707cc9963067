package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Host modes.
const (
	HostModeProcess   = "process"
	HostModeInProcess = "inprocess"
)

// Settings is the agent configuration file.
type Settings struct {
	Agent  AgentSettings  `yaml:"agent"`
	Host   HostSettings   `yaml:"host"`
	API    APISettings    `yaml:"api"`
	Router RouterSettings `yaml:"router"`
	Notify NotifySettings `yaml:"notify"`
}

// AgentSettings controls the sync loop.
type AgentSettings struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	SpawnRate      float64       `yaml:"spawn_rate"` // host spawns per second
	SpawnBurst     int           `yaml:"spawn_burst"`
	WatchStateFile bool          `yaml:"watch_state_file"`
}

// HostSettings controls how the host is reached.
type HostSettings struct {
	Mode      string `yaml:"mode"`
	Path      string `yaml:"path"`
	StateFile string `yaml:"state_file"`
}

// APISettings controls the local HTTP API.
type APISettings struct {
	Addr string `yaml:"addr"`
	// TokenFile lists accepted API tokens, one per line. When unset the API
	// is open to any local client; when set but empty or missing, it denies all.
	TokenFile string `yaml:"token_file"`
}

// RouterSettings controls the query router.
type RouterSettings struct {
	SiloMap string `yaml:"silo_map"`
}

// NotifySettings controls desktop notifications.
type NotifySettings struct {
	Desktop bool `yaml:"desktop"`
}

// DefaultSettings returns the default agent configuration.
func DefaultSettings() *Settings {
	return &Settings{
		Agent: AgentSettings{
			PollInterval:   5 * time.Second,
			RequestTimeout: 5 * time.Second,
			SpawnRate:      10,
			SpawnBurst:     4,
			WatchStateFile: true,
		},
		Host: HostSettings{
			Mode: HostModeProcess,
		},
		API: APISettings{
			Addr: "127.0.0.1:7587",
		},
		Notify: NotifySettings{
			Desktop: true,
		},
	}
}

// LoadSettings reads the settings file at path. A missing file yields defaults.
func LoadSettings(path string) (*Settings, error) {
	cfg := DefaultSettings()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.Host.Path = expandHome(cfg.Host.Path)
	cfg.Host.StateFile = expandHome(cfg.Host.StateFile)
	cfg.Router.SiloMap = expandHome(cfg.Router.SiloMap)
	cfg.API.TokenFile = expandHome(cfg.API.TokenFile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings for values the agent cannot run with.
func (s *Settings) Validate() error {
	if s.Agent.PollInterval <= 0 {
		return fmt.Errorf("agent.poll_interval must be positive")
	}
	if s.Agent.RequestTimeout <= 0 {
		return fmt.Errorf("agent.request_timeout must be positive")
	}
	if s.Agent.SpawnRate <= 0 || s.Agent.SpawnBurst <= 0 {
		return fmt.Errorf("agent.spawn_rate and agent.spawn_burst must be positive")
	}
	if s.API.Addr == "" {
		return fmt.Errorf("api.addr must be set")
	}
	switch s.Host.Mode {
	case HostModeProcess, HostModeInProcess:
	default:
		return fmt.Errorf("host.mode %q: want %q or %q", s.Host.Mode, HostModeProcess, HostModeInProcess)
	}
	return nil
}

// StatePath returns the configured state file, falling back to the platform path.
func (s *Settings) StatePath() (string, error) {
	if s.Host.StateFile != "" {
		return s.Host.StateFile, nil
	}
	return DefaultStatePath()
}

// HostPath returns the host binary, defaulting to metaco-host next to the
// running executable.
func (s *Settings) HostPath() string {
	if s.Host.Path != "" {
		return s.Host.Path
	}
	name := "metaco-host"
	if filepath.Separator == '\\' {
		name += ".exe"
	}
	exe, err := os.Executable()
	if err != nil {
		return name
	}
	return filepath.Join(filepath.Dir(exe), name)
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
