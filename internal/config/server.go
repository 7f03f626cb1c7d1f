package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig configures the notes proxy. Values come from NOTES_* env vars
// and an optional notes-server.{yaml,json,toml} file.
type ServerConfig struct {
	Port         string
	Driver       string
	DSN          string
	LogLevel     string
	RateLimit    int
	RequestLimit time.Duration
}

func LoadServer(configFile string) (*ServerConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("NOTES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", "5689")
	v.SetDefault("driver", "sqlite")
	v.SetDefault("dsn", "/data/notes.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("rate_limit", 100)
	v.SetDefault("request_timeout", 30*time.Second)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("notes-server")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read server config: %w", err)
		}
	}

	cfg := &ServerConfig{
		Port:         v.GetString("port"),
		Driver:       strings.ToLower(v.GetString("driver")),
		DSN:          v.GetString("dsn"),
		LogLevel:     v.GetString("log_level"),
		RateLimit:    v.GetInt("rate_limit"),
		RequestLimit: v.GetDuration("request_timeout"),
	}
	switch cfg.Driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported driver %q (want sqlite or postgres)", cfg.Driver)
	}
	return cfg, nil
}
