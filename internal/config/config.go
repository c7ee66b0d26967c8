// Package config loads service configuration from an optional YAML file
// with environment variable overrides on top. Environment names follow
// the deployment conventions the service has always used, so existing
// .env files keep working.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Slavikss/musicroast/internal/browser"
)

// Config is the full service configuration.
type Config struct {
	Server   Server   `yaml:"server"`
	OAuth    OAuth    `yaml:"oauth"`
	Browser  Browser  `yaml:"browser"`
	Sessions Sessions `yaml:"sessions"`
	Tokens   Tokens   `yaml:"tokens"`
	Auth     Auth     `yaml:"auth"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

type OAuth struct {
	ClientID string `yaml:"client_id"`
}

type Browser struct {
	// Headless controls the background login flow; InteractiveHeadless
	// controls sessions a user watches. The latter stays off so the
	// streamed page renders the way a desktop browser would.
	Headless            bool   `yaml:"headless"`
	InteractiveHeadless bool   `yaml:"interactive_headless"`
	ViewportWidth       int    `yaml:"viewport_width"`
	ViewportHeight      int    `yaml:"viewport_height"`
	ChromeBinary        string `yaml:"chrome_binary"`
	NoSandbox           bool   `yaml:"no_sandbox"`
	MaxInstances        int    `yaml:"max_instances"`
}

type Sessions struct {
	Max          int           `yaml:"max"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	LoginTimeout time.Duration `yaml:"login_timeout"`
}

type Tokens struct {
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

type Auth struct {
	// AccessSecret enables JWT verification on the API when non-empty.
	AccessSecret string `yaml:"access_secret"`
}

// Default returns the configuration used when nothing is provided.
func Default() Config {
	return Config{
		Server: Server{Addr: ":8000"},
		OAuth:  OAuth{ClientID: browser.DefaultYandexClientID},
		Browser: Browser{
			Headless:       true,
			ViewportWidth:  1280,
			ViewportHeight: 720,
			MaxInstances:   4,
		},
		Sessions: Sessions{
			Max:          4,
			IdleTimeout:  15 * time.Minute,
			LoginTimeout: 120 * time.Second,
		},
		Tokens: Tokens{DefaultTTL: 86400 * time.Second},
	}
}

// Load reads the YAML file at path when it exists, then applies
// environment overrides. An empty path skips the file step.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Optional file; env alone is a valid configuration.
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	envString("SERVER_ADDR", &c.Server.Addr)
	envString("YANDEX_OAUTH_CLIENT_ID", &c.OAuth.ClientID)
	envBool("YANDEX_OAUTH_HEADLESS", &c.Browser.Headless)
	envBool("YANDEX_OAUTH_INTERACTIVE_HEADLESS", &c.Browser.InteractiveHeadless)
	envInt("YANDEX_OAUTH_VIEWPORT_WIDTH", &c.Browser.ViewportWidth)
	envInt("YANDEX_OAUTH_VIEWPORT_HEIGHT", &c.Browser.ViewportHeight)
	envString("YANDEX_OAUTH_CHROME_BINARY", &c.Browser.ChromeBinary)
	envBool("CHROME_NO_SANDBOX", &c.Browser.NoSandbox)
	envInt("CHROME_MAX_INSTANCES", &c.Browser.MaxInstances)
	envInt("MAX_SESSIONS", &c.Sessions.Max)
	envSeconds("YANDEX_OAUTH_TIMEOUT", &c.Sessions.LoginTimeout)
	envSeconds("SESSION_IDLE_TIMEOUT", &c.Sessions.IdleTimeout)
	envSeconds("TOKEN_STORAGE_DEFAULT_TTL", &c.Tokens.DefaultTTL)
	envString("ACCESS_SECRET", &c.Auth.AccessSecret)
}

// Viewport returns the configured browser viewport.
func (c Config) Viewport() browser.Viewport {
	return browser.Viewport{Width: c.Browser.ViewportWidth, Height: c.Browser.ViewportHeight}
}

func envString(name string, dst *string) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		*dst = v
	}
}

func envBool(name string, dst *bool) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envInt(name string, dst *int) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// envSeconds reads a whole number of seconds, matching how the existing
// deployments express durations.
func envSeconds(name string, dst *time.Duration) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = time.Duration(n) * time.Second
		}
	}
}
