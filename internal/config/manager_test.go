package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestManager_ReloadNotifiesSubscribers(t *testing.T) {
	clearProviderEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
[general]
  source = "en-US"
[recognition]
  provider = "google"
[caption]
  width = 60
`)

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if got := m.GetConfig().Caption.Width; got != 60 {
		t.Fatalf("initial width = %d", got)
	}

	changed := make(chan *Config, 4)
	m.OnChange(func(c *Config) { changed <- c })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.StartWatching(ctx); err != nil {
		t.Fatalf("StartWatching() error = %v", err)
	}
	defer m.Stop()

	writeFile(t, path, `
[general]
  source = "en-US"
[recognition]
  provider = "google"
[caption]
  width = 100
`)

	deadline := time.After(3 * time.Second)
	for {
		select {
		case c := <-changed:
			if c.Caption.Width == 100 {
				if got := m.GetConfig().Caption.Width; got != 100 {
					t.Errorf("GetConfig() width = %d after reload", got)
				}
				return
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

func TestManager_InvalidReloadKeepsConfig(t *testing.T) {
	clearProviderEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[general]\n  source = \"en-US\"\n[recognition]\n  provider = \"google\"\n")

	m, err := NewManager(path)
	if err != nil {
		t.Fatal(err)
	}
	called := false
	m.OnChange(func(*Config) { called = true })

	writeFile(t, path, "[general]\n  source = \"en-US\"\n[caption]\n  mode = \"hologram\"\n")
	m.reloadConfig()

	if called {
		t.Error("subscriber notified for an invalid config")
	}
	if got := m.GetConfig().Caption.Mode; got != "line" {
		t.Errorf("caption.mode = %q, want the previous value", got)
	}
}

func TestManager_Update(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatal(err)
	}
	m.Update(func(c *Config) { c.General.Target = "fr" })

	if got := m.GetConfig().TargetLanguage(); got != "fr" {
		t.Errorf("TargetLanguage() = %q", got)
	}
}
