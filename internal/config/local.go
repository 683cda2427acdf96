package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/listenex/internal/domain"
)

// Storage backends for the last result.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// LocalConfig holds configuration for the listenex CLI
type LocalConfig struct {
	LogLevel  string          `yaml:"log_level" validate:"oneof=debug info warn error"`
	Player    PlayerConfig    `yaml:"player"`
	Audio     AudioConfig     `yaml:"audio"`
	Storage   StorageConfig   `yaml:"storage"`
	Reporting ReportingConfig `yaml:"reporting"`
	Preview   PreviewConfig   `yaml:"preview"`
	Export    ExportConfig    `yaml:"export"`
}

// PlayerConfig holds gameplay settings
type PlayerConfig struct {
	Reveal        string `yaml:"reveal" validate:"oneof=all sequential"`
	RevealDelayMS int    `yaml:"reveal_delay_ms" validate:"gte=0"`
	Shuffle       bool   `yaml:"shuffle"`
}

// RevealDelay returns the reveal delay as a duration.
func (p PlayerConfig) RevealDelay() time.Duration {
	return time.Duration(p.RevealDelayMS) * time.Millisecond
}

// AudioConfig holds desktop playback settings
type AudioConfig struct {
	Enabled    bool    `yaml:"enabled"`
	SampleRate int     `yaml:"sample_rate" validate:"gte=8000,lte=192000"`
	Volume     float64 `yaml:"volume" validate:"gte=0,lte=1"`
}

// StorageConfig selects where the last result is kept
type StorageConfig struct {
	Backend string `yaml:"backend" validate:"oneof=json sqlite"`
}

// ReportingConfig holds optional completion reporting settings
type ReportingConfig struct {
	AMQP AMQPConfig `yaml:"amqp"`
}

// AMQPConfig holds the broker settings for result reporting
type AMQPConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url,omitempty"` // secrets.yaml takes precedence
}

// PreviewConfig holds preview server settings
type PreviewConfig struct {
	Bind          string `yaml:"bind" validate:"required"`
	Port          int    `yaml:"port" validate:"gte=0,lte=65535"`
	RatePerSecond int    `yaml:"rate_per_second" validate:"gte=0"`
}

// ExportConfig holds bundle export settings
type ExportConfig struct {
	EngineDir string `yaml:"engine_dir,omitempty"` // directory with engine.wasm and wasm_exec.js
}

// SecretsConfig holds credentials loaded from secrets.yaml
type SecretsConfig struct {
	AMQP struct {
		URL string `yaml:"url"`
	} `yaml:"amqp"`
}

// ListenexDir returns the path to ~/.listenex, or $LISTENEX_HOME when set.
func ListenexDir() (string, error) {
	if dir := getEnv(EnvHome, ""); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".listenex"), nil
}

// EnsureListenexDir creates ~/.listenex and subdirectories if they don't exist
func EnsureListenexDir() (string, error) {
	dir, err := ListenexDir()
	if err != nil {
		return "", err
	}

	subdirs := []string{
		"",
		"logs",
		"results",
		"exercises",
	}

	for _, subdir := range subdirs {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}

	return dir, nil
}

// DefaultLocalConfig returns sensible defaults for local mode
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{
		LogLevel: "info",
		Player: PlayerConfig{
			Reveal:        "sequential",
			RevealDelayMS: 1000,
			Shuffle:       true,
		},
		Audio: AudioConfig{
			Enabled:    true,
			SampleRate: 44100,
			Volume:     0.7,
		},
		Storage: StorageConfig{
			Backend: BackendJSON,
		},
		Reporting: ReportingConfig{
			AMQP: AMQPConfig{Enabled: false},
		},
		Preview: PreviewConfig{
			Bind:          "127.0.0.1",
			Port:          7433,
			RatePerSecond: 50,
		},
	}
}

// Validate checks field constraints.
func (c *LocalConfig) Validate() error {
	errs, err := domain.StructErrors(c)
	if err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", errs.Error())
	}
	if c.Reporting.AMQP.Enabled && c.Reporting.AMQP.URL == "" {
		return fmt.Errorf("invalid config: reporting.amqp.url is required when reporting is enabled")
	}
	return nil
}

// LoadLocalConfig loads configuration from ~/.listenex/config.yaml
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := ListenexDir()
	if err != nil {
		return nil, err
	}

	cfg := DefaultLocalConfig()
	configPath := filepath.Join(dir, "config.yaml")

	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadSecrets(dir, cfg); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadSecrets loads the broker URL from secrets.yaml
func loadSecrets(dir string, cfg *LocalConfig) error {
	secretsPath := filepath.Join(dir, "secrets.yaml")

	data, err := os.ReadFile(secretsPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}

	var secrets SecretsConfig
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return fmt.Errorf("parse secrets: %w", err)
	}

	if secrets.AMQP.URL != "" {
		cfg.Reporting.AMQP.URL = secrets.AMQP.URL
	}
	return nil
}

// SaveLocalConfig saves configuration to ~/.listenex/config.yaml
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsureListenexDir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SaveSecrets saves the broker URL to ~/.listenex/secrets.yaml
func SaveSecrets(amqpURL string) error {
	dir, err := EnsureListenexDir()
	if err != nil {
		return err
	}

	var secrets SecretsConfig
	secrets.AMQP.URL = amqpURL

	data, err := yaml.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}

	// Write with restricted permissions (owner read/write only)
	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), data, 0600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}
	return nil
}
