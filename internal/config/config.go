// Package config loads listenex settings from ~/.listenex with environment
// overrides.
package config

import (
	"os"
	"strconv"
)

// Environment variables that override config.yaml.
const (
	EnvHome      = "LISTENEX_HOME"
	EnvLogLevel  = "LISTENEX_LOG_LEVEL"
	EnvBackend   = "LISTENEX_STORAGE_BACKEND"
	EnvAMQPURL   = "LISTENEX_AMQP_URL"
	EnvAudio     = "LISTENEX_AUDIO"
	EnvPort      = "LISTENEX_PREVIEW_PORT"
	EnvEngineDir = "LISTENEX_ENGINE_DIR"
)

// applyEnv overlays environment overrides on cfg.
func applyEnv(cfg *LocalConfig) {
	cfg.LogLevel = getEnv(EnvLogLevel, cfg.LogLevel)
	cfg.Storage.Backend = getEnv(EnvBackend, cfg.Storage.Backend)
	cfg.Audio.Enabled = getEnvBool(EnvAudio, cfg.Audio.Enabled)
	cfg.Preview.Port = getEnvInt(EnvPort, cfg.Preview.Port)
	cfg.Export.EngineDir = getEnv(EnvEngineDir, cfg.Export.EngineDir)
	if url := getEnv(EnvAMQPURL, ""); url != "" {
		cfg.Reporting.AMQP.URL = url
		cfg.Reporting.AMQP.Enabled = true
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
