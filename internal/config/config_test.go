package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Slavikss/musicroast/internal/browser"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8000" {
		t.Fatalf("addr = %q, want :8000", cfg.Server.Addr)
	}
	if cfg.OAuth.ClientID != browser.DefaultYandexClientID {
		t.Fatalf("client id = %q", cfg.OAuth.ClientID)
	}
	if !cfg.Browser.Headless || cfg.Browser.InteractiveHeadless {
		t.Fatal("headless defaults wrong")
	}
	if got := cfg.Viewport(); got.Width != 1280 || got.Height != 720 {
		t.Fatalf("viewport = %+v", got)
	}
	if cfg.Sessions.LoginTimeout != 120*time.Second {
		t.Fatalf("login timeout = %s", cfg.Sessions.LoginTimeout)
	}
	if cfg.Tokens.DefaultTTL != 86400*time.Second {
		t.Fatalf("token ttl = %s", cfg.Tokens.DefaultTTL)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("server:\n  addr: \":9000\"\nbrowser:\n  viewport_width: 800\n  viewport_height: 600\nsessions:\n  max: 2\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Fatalf("addr = %q, want :9000", cfg.Server.Addr)
	}
	if got := cfg.Viewport(); got.Width != 800 || got.Height != 600 {
		t.Fatalf("viewport = %+v", got)
	}
	if cfg.Sessions.Max != 2 {
		t.Fatalf("max sessions = %d, want 2", cfg.Sessions.Max)
	}
	// Untouched keys keep their defaults.
	if cfg.Sessions.IdleTimeout != 15*time.Minute {
		t.Fatalf("idle timeout = %s", cfg.Sessions.IdleTimeout)
	}
}

func TestMissingFileIsNotAnError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestMalformedFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: ["), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted malformed YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":7777")
	t.Setenv("YANDEX_OAUTH_CLIENT_ID", "custom-client")
	t.Setenv("YANDEX_OAUTH_HEADLESS", "false")
	t.Setenv("YANDEX_OAUTH_VIEWPORT_WIDTH", "1920")
	t.Setenv("YANDEX_OAUTH_TIMEOUT", "300")
	t.Setenv("TOKEN_STORAGE_DEFAULT_TTL", "3600")
	t.Setenv("ACCESS_SECRET", "s3cret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":7777" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.OAuth.ClientID != "custom-client" {
		t.Fatalf("client id = %q", cfg.OAuth.ClientID)
	}
	if cfg.Browser.Headless {
		t.Fatal("headless override ignored")
	}
	if cfg.Browser.ViewportWidth != 1920 {
		t.Fatalf("viewport width = %d", cfg.Browser.ViewportWidth)
	}
	if cfg.Sessions.LoginTimeout != 300*time.Second {
		t.Fatalf("login timeout = %s", cfg.Sessions.LoginTimeout)
	}
	if cfg.Tokens.DefaultTTL != time.Hour {
		t.Fatalf("token ttl = %s", cfg.Tokens.DefaultTTL)
	}
	if cfg.Auth.AccessSecret != "s3cret" {
		t.Fatal("access secret override ignored")
	}
}

func TestBadEnvValuesAreIgnored(t *testing.T) {
	t.Setenv("YANDEX_OAUTH_VIEWPORT_WIDTH", "wide")
	t.Setenv("YANDEX_OAUTH_HEADLESS", "sometimes")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Browser.ViewportWidth != 1280 {
		t.Fatalf("viewport width = %d, want default", cfg.Browser.ViewportWidth)
	}
	if !cfg.Browser.Headless {
		t.Fatal("headless changed by unparseable value")
	}
}
