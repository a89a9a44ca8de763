// Package config loads the server configuration from YAML. Everything has a
// working default so a bare binary starts against a local SQLite file with
// no external channels.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DB       DB       `yaml:"db"`
	Log      Log      `yaml:"log"`
	Toggles  Toggles  `yaml:"toggles"`
	Delivery Delivery `yaml:"delivery"`
	// Templates overrides external-channel subject lines per notification
	// kind (e.g. "task_assigned").
	Templates map[string]string `yaml:"templates"`
}

type DB struct {
	Path string `yaml:"path"`
}

type Log struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// Toggles seeds the runtime settings on first start. After that the
// DB-backed settings win; edits there take effect without a restart.
type Toggles struct {
	NotificationsEnabled  bool `yaml:"notifications_enabled"`
	VolunteerCreatesTasks bool `yaml:"volunteer_creates_tasks"`
	EditWindowMinutes     int  `yaml:"edit_window_minutes"`
}

type Delivery struct {
	Email    Email    `yaml:"email"`
	Telegram Telegram `yaml:"telegram"`
}

type Email struct {
	Enabled   bool   `yaml:"enabled"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	From      string `yaml:"from"`
}

type Telegram struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	// Chats maps an account's contact address to the Telegram chat id the
	// bot may message. Addresses without an entry are skipped.
	Chats map[string]int64 `yaml:"chats"`
}

func Default() Config {
	return Config{
		DB:  DB{Path: "crewbase.db"},
		Log: Log{Level: "info"},
		Toggles: Toggles{
			NotificationsEnabled:  true,
			VolunteerCreatesTasks: false,
			EditWindowMinutes:     15,
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Toggles.EditWindowMinutes <= 0 {
		return cfg, fmt.Errorf("toggles.edit_window_minutes must be positive")
	}
	return cfg, nil
}
