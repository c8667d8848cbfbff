package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all flowdeck host configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	RuntimeURL       string `json:"runtime_url"`
	RuntimeTimeoutMs int    `json:"runtime_timeout_ms"`
	DBPath           string `json:"db_path"`
	LogLevel         string `json:"log_level"`
	Triggers         bool   `json:"triggers"`
}

func defaultConfig() Config {
	return Config{
		RuntimeURL:       "http://localhost:4200",
		RuntimeTimeoutMs: 30000,
		DBPath:           filepath.Join(flowdeckDir(), "flowdeck.db"),
		LogLevel:         "info",
		Triggers:         true,
	}
}

func flowdeckDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowdeck"
	}
	return filepath.Join(home, ".flowdeck")
}

func settingsPath() string {
	return filepath.Join(flowdeckDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("FLOWDECK_RUNTIME_URL"); v != "" {
		cfg.RuntimeURL = v
	}
	if v := os.Getenv("FLOWDECK_RUNTIME_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RuntimeTimeoutMs = n
		}
	}
	if v := os.Getenv("FLOWDECK_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("FLOWDECK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("FLOWDECK_TRIGGERS"); v != "" {
		cfg.Triggers = v == "true" || v == "1"
	}

	return cfg
}
