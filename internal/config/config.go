package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Click suppression strategies for the grid.
const (
	SuppressWindow = "window"
	SuppressOnce   = "once"
)

type Config struct {
	ListenAddr string

	DB struct {
		DSN      string
		MaxConns int32
	}

	Redis struct {
		URL     string
		Channel string
	}

	Log struct {
		Level       string
		Development bool
	}

	Grid struct {
		StrictGestures     bool
		ClickSuppression   string
		SessionIdleTimeout time.Duration
		MemberPalette      []string
	}

	RateLimit struct {
		RequestsPerSecond float64
		Burst             int
	}

	CORSAllowedOrigins []string
	PrometheusEnabled  bool
	TrustedProxies     []string
}

// overlay is the optional YAML file named by APP_CONFIG_FILE. Only the
// settings that are awkward to express as env vars live there.
type overlay struct {
	Grid *struct {
		StrictGestures     *bool    `yaml:"strict_gestures"`
		ClickSuppression   string   `yaml:"click_suppression"`
		SessionIdleTimeout string   `yaml:"session_idle_timeout"`
		MemberPalette      []string `yaml:"member_palette"`
	} `yaml:"grid"`
	RateLimit *struct {
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

func Load() (*Config, error) {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.ListenAddr = getenvDefault("APP_LISTEN_ADDR", ":8080")
	cfg.DB.DSN = os.Getenv("APP_DB_DSN")

	if cfg.DB.DSN == "" {
		host := os.Getenv("APP_DB_HOST")
		name := os.Getenv("APP_DB_NAME")
		user := os.Getenv("APP_DB_USER")
		password := os.Getenv("APP_DB_PASSWORD")
		port := getenvDefault("APP_DB_PORT", "5432")
		sslmode := getenvDefault("APP_DB_SSLMODE", "disable")

		if host != "" && name != "" && user != "" && password != "" {
			cfg.DB.DSN = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, name, sslmode)
		}
	}
	cfg.DB.MaxConns = int32(getenvInt("APP_DB_MAX_CONNS", 10))

	cfg.Redis.URL = os.Getenv("APP_REDIS_URL")
	cfg.Redis.Channel = getenvDefault("APP_REDIS_CHANNEL", "crmcal-events")

	cfg.Log.Level = strings.ToLower(getenvDefault("APP_LOG_LEVEL", "info"))
	cfg.Log.Development = getenvBool("APP_LOG_DEVELOPMENT", false)

	cfg.Grid.StrictGestures = getenvBool("APP_GRID_STRICT_GESTURES", false)
	cfg.Grid.ClickSuppression = strings.ToLower(getenvDefault("APP_GRID_CLICK_SUPPRESSION", SuppressWindow))
	cfg.Grid.SessionIdleTimeout = getenvDuration("APP_GRID_SESSION_IDLE_TIMEOUT", 30*time.Minute)

	cfg.RateLimit.RequestsPerSecond = getenvFloat("APP_RATE_LIMIT_RPS", 20)
	cfg.RateLimit.Burst = getenvInt("APP_RATE_LIMIT_BURST", 40)

	cfg.CORSAllowedOrigins = getenvList("APP_CORS_ALLOWED_ORIGINS")
	cfg.PrometheusEnabled = getenvBool("APP_PROMETHEUS_ENDPOINT_ENABLED", false)
	cfg.TrustedProxies = getenvList("APP_TRUSTED_PROXIES")

	if path := os.Getenv("APP_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var o overlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if g := o.Grid; g != nil {
		if g.StrictGestures != nil {
			c.Grid.StrictGestures = *g.StrictGestures
		}
		if g.ClickSuppression != "" {
			c.Grid.ClickSuppression = strings.ToLower(g.ClickSuppression)
		}
		if g.SessionIdleTimeout != "" {
			d, err := time.ParseDuration(g.SessionIdleTimeout)
			if err != nil {
				return fmt.Errorf("grid.session_idle_timeout: %w", err)
			}
			c.Grid.SessionIdleTimeout = d
		}
		if len(g.MemberPalette) > 0 {
			c.Grid.MemberPalette = g.MemberPalette
		}
	}
	if rl := o.RateLimit; rl != nil {
		if rl.RequestsPerSecond > 0 {
			c.RateLimit.RequestsPerSecond = rl.RequestsPerSecond
		}
		if rl.Burst > 0 {
			c.RateLimit.Burst = rl.Burst
		}
	}
	if len(o.CORSAllowedOrigins) > 0 {
		c.CORSAllowedOrigins = o.CORSAllowedOrigins
	}
	return nil
}

func (c *Config) validate() error {
	if c.DB.DSN == "" {
		return errors.New("APP_DB_DSN is required (or set APP_DB_HOST, APP_DB_NAME, APP_DB_USER, and APP_DB_PASSWORD)")
	}
	switch c.Grid.ClickSuppression {
	case SuppressWindow, SuppressOnce:
	default:
		return fmt.Errorf("click suppression must be %q or %q, got %q", SuppressWindow, SuppressOnce, c.Grid.ClickSuppression)
	}
	if c.Grid.SessionIdleTimeout < time.Minute {
		return fmt.Errorf("grid session idle timeout must be at least 1m (got %s)", c.Grid.SessionIdleTimeout)
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("rate limit requests per second and burst must be positive")
	}
	for _, color := range c.Grid.MemberPalette {
		if !strings.HasPrefix(color, "#") {
			return fmt.Errorf("member palette color %q must be a hex color", color)
		}
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getenvList(key string) []string {
	if v := os.Getenv(key); v != "" {
		var result []string
		for _, item := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return nil
}
