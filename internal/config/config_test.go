package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Sync.Target != TargetNotes {
		t.Fatalf("expected default target %q, got %q", TargetNotes, cfg.Sync.Target)
	}
	if cfg.Sync.Interval != DefaultSyncInterval {
		t.Fatalf("expected default interval, got %s", cfg.Sync.Interval)
	}
	if cfg.Sync.Configured() {
		t.Fatalf("expected default sync config to be unconfigured")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yml")
	cfg := Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "n.db")
	cfg.Sync = SyncConfig{
		Enabled:    true,
		Target:     TargetGitHub,
		URL:        "https://notes.example.com/",
		Key:        "k-123",
		Interval:   90 * time.Second,
		Extensions: []string{".md"},
	}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("expected 0600 permissions, got %v", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Sync.URL != "https://notes.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", loaded.Sync.URL)
	}
	if loaded.Sync.Interval != 90*time.Second || loaded.Sync.Target != TargetGitHub {
		t.Fatalf("unexpected sync config %+v", loaded.Sync)
	}
	if !loaded.Sync.Configured() {
		t.Fatalf("expected loaded sync config to be configured")
	}
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("sync: [unterminated"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadServerFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("NOTES_PORT", "9000")
	t.Setenv("NOTES_DRIVER", "postgres")
	t.Setenv("NOTES_DSN", "postgres://u:p@localhost/notes?sslmode=disable")

	cfg, err := LoadServer("")
	if err != nil {
		t.Fatalf("load server: %v", err)
	}
	if cfg.Port != "9000" || cfg.Driver != "postgres" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.RateLimit != 100 {
		t.Fatalf("expected default rate limit 100, got %d", cfg.RateLimit)
	}
}

func TestLoadServerRejectsUnknownDriver(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("NOTES_DRIVER", "mysql")
	if _, err := LoadServer(""); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	cfg := Default()
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) { changes <- c }, nil)
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	cfg.Sync.URL = "https://changed.example.com"
	cfg.Sync.Key = "new-key"
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changes:
		if got.Sync.URL != "https://changed.example.com" {
			t.Fatalf("expected reloaded URL, got %q", got.Sync.URL)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for config reload")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watch returned error: %v", err)
	}
}
