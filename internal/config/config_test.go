package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setenv(t *testing.T, kv map[string]string) {
	t.Helper()
	for _, k := range []string{
		"APP_DB_DSN", "APP_DB_HOST", "APP_DB_NAME", "APP_DB_USER", "APP_DB_PASSWORD",
		"APP_GRID_CLICK_SUPPRESSION", "APP_GRID_SESSION_IDLE_TIMEOUT", "APP_CONFIG_FILE",
		"APP_RATE_LIMIT_RPS", "APP_RATE_LIMIT_BURST", "APP_CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(k, "")
	}
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestLoadDefaults(t *testing.T) {
	setenv(t, map[string]string{"APP_DB_DSN": "postgres://localhost/crmcal"})
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.Grid.ClickSuppression != SuppressWindow {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Grid.SessionIdleTimeout != 30*time.Minute || cfg.RateLimit.Burst != 40 {
		t.Fatalf("unexpected grid defaults: %+v", cfg.Grid)
	}
}

func TestLoadBuildsDSNFromParts(t *testing.T) {
	setenv(t, map[string]string{
		"APP_DB_HOST": "db", "APP_DB_NAME": "crm", "APP_DB_USER": "u", "APP_DB_PASSWORD": "p",
	})
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if want := "postgres://u:p@db:5432/crm?sslmode=disable"; cfg.DB.DSN != want {
		t.Fatalf("dsn = %q, want %q", cfg.DB.DSN, want)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing dsn", map[string]string{}},
		{"bad suppression", map[string]string{"APP_DB_DSN": "x", "APP_GRID_CLICK_SUPPRESSION": "never"}},
		{"short idle timeout", map[string]string{"APP_DB_DSN": "x", "APP_GRID_SESSION_IDLE_TIMEOUT": "5s"}},
		{"zero burst", map[string]string{"APP_DB_DSN": "x", "APP_RATE_LIMIT_BURST": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setenv(t, tt.env)
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crmcal.yaml")
	data := `
grid:
  strict_gestures: true
  click_suppression: once
  session_idle_timeout: 10m
  member_palette: ["#111111", "#222222"]
rate_limit:
  burst: 5
cors_allowed_origins:
  - https://crm.example.com
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	setenv(t, map[string]string{"APP_DB_DSN": "x", "APP_CONFIG_FILE": path, "APP_CORS_ALLOWED_ORIGINS": "http://localhost:3000"})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Grid.StrictGestures || cfg.Grid.ClickSuppression != SuppressOnce || cfg.Grid.SessionIdleTimeout != 10*time.Minute {
		t.Fatalf("grid = %+v", cfg.Grid)
	}
	if len(cfg.Grid.MemberPalette) != 2 || cfg.RateLimit.Burst != 5 || cfg.RateLimit.RequestsPerSecond != 20 {
		t.Fatalf("palette/rate = %+v %+v", cfg.Grid.MemberPalette, cfg.RateLimit)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "https://crm.example.com" {
		t.Fatalf("cors = %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadYAMLOverlayErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	_ = os.WriteFile(path, []byte("grid: [unclosed"), 0o600)
	setenv(t, map[string]string{"APP_DB_DSN": "x", "APP_CONFIG_FILE": path})
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}

	setenv(t, map[string]string{"APP_DB_DSN": "x", "APP_CONFIG_FILE": filepath.Join(t.TempDir(), "missing.yaml")})
	if _, err := Load(); err == nil {
		t.Fatal("expected read error")
	}
}

func TestGetenvList(t *testing.T) {
	t.Setenv("APP_TEST_LIST", " a, ,b ,")
	got := getenvList("APP_TEST_LIST")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("list = %v", got)
	}
}
