package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Sync targets. Each one has its own default set of syncable extensions.
const (
	TargetNotes    = "notes"
	TargetGitHub   = "github"
	TargetDropbox  = "dropbox"
	TargetSupabase = "supabase"
)

const DefaultSyncInterval = 5 * time.Minute

// SyncConfig is the value handed to the remote client and the reconciler.
// It is reloaded only at start-up and when the config file changes.
type SyncConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Target     string        `yaml:"target"`
	URL        string        `yaml:"url"`
	Key        string        `yaml:"key"`
	Interval   time.Duration `yaml:"interval"`
	Extensions []string      `yaml:"extensions,omitempty"`
}

func (s SyncConfig) Configured() bool {
	return strings.TrimSpace(s.URL) != "" && strings.TrimSpace(s.Key) != ""
}

type Config struct {
	DBPath           string        `yaml:"db_path"`
	ChatDBPath       string        `yaml:"chat_db_path"`
	Theme            string        `yaml:"theme"`
	AutoSaveInterval time.Duration `yaml:"auto_save_interval"`
	Language         string        `yaml:"language"`
	LogLevel         string        `yaml:"log_level"`
	Sync             SyncConfig    `yaml:"sync"`
}

func DefaultConfigPath() string {
	return besideExecutable("config.yml")
}

func DefaultDBPath() string {
	return besideExecutable("notepad.db")
}

func DefaultChatDBPath() string {
	return besideExecutable("chats.db")
}

func besideExecutable(name string) string {
	exe, err := os.Executable()
	if err != nil {
		return name
	}
	return filepath.Join(filepath.Dir(exe), name)
}

func ConfigExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

func Default() *Config {
	return &Config{
		DBPath:           DefaultDBPath(),
		ChatDBPath:       DefaultChatDBPath(),
		Theme:            "dark",
		AutoSaveInterval: 3 * time.Second,
		Language:         "en",
		LogLevel:         "info",
		Sync: SyncConfig{
			Target:   TargetNotes,
			Interval: DefaultSyncInterval,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath()
	}
	if cfg.ChatDBPath == "" {
		cfg.ChatDBPath = DefaultChatDBPath()
	}
	cfg.DBPath = expandHome(cfg.DBPath)
	cfg.ChatDBPath = expandHome(cfg.ChatDBPath)

	if cfg.Sync.Target == "" {
		cfg.Sync.Target = TargetNotes
	}
	if cfg.Sync.Interval <= 0 {
		cfg.Sync.Interval = DefaultSyncInterval
	}
	cfg.Sync.URL = strings.TrimRight(strings.TrimSpace(cfg.Sync.URL), "/")

	return cfg, nil
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}

func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file holds the sync API key.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
