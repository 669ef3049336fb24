package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Email = "ops@example.com"
	cfg.Password = "secret"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "missing email",
			mutate: func(cfg *Config) {
				cfg.Email = ""
			},
			wantErr: "email",
		},
		{
			name: "missing password",
			mutate: func(cfg *Config) {
				cfg.Password = ""
			},
			wantErr: "password",
		},
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.LoginURL = "http://"
			},
			wantErr: "login URL",
		},
		{
			name: "unknown backend",
			mutate: func(cfg *Config) {
				cfg.Backend = "curl"
			},
			wantErr: "backend",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "backoff exceeds cap",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = time.Minute
				cfg.RetryBackoffMax = time.Second
			},
			wantErr: "retry backoff",
		},
		{
			name: "zero max pages",
			mutate: func(cfg *Config) {
				cfg.MaxPages = 0
			},
			wantErr: "max pages",
		},
		{
			name: "export without directory",
			mutate: func(cfg *Config) {
				cfg.ExportJSON = true
				cfg.ExportDir = ""
			},
			wantErr: "export directory",
		},
		{
			name: "empty cursor file",
			mutate: func(cfg *Config) {
				cfg.CursorFile = ""
			},
			wantErr: "cursor file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValidWithCredentials(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("default config with credentials should validate, got %v", err)
	}
}

func TestListingPageURL(t *testing.T) {
	cfg := validConfig()
	cfg.OrdersURL = "https://panel.example.com/pedidos"

	if got := cfg.ListingPageURL(1); got != cfg.OrdersURL {
		t.Fatalf("page 1 should be the bare orders URL, got %q", got)
	}
	if got, want := cfg.ListingPageURL(3), cfg.OrdersURL+"?page=3"; got != want {
		t.Fatalf("page 3 = %q, want %q", got, want)
	}

	cfg.OrdersURL = "https://panel.example.com/pedidos?tab=all"
	if got, want := cfg.ListingPageURL(2), cfg.OrdersURL+"&page=2"; got != want {
		t.Fatalf("page 2 with query = %q, want %q", got, want)
	}
}

func TestEnvOverlay(t *testing.T) {
	t.Setenv("MT_PREMIADO_EMAIL", "env@example.com")
	t.Setenv("REQUEST_TIMEOUT", "15")
	t.Setenv("EXTRACT_BACKEND", "browser")
	t.Setenv("EXPORT_JSON", "false")

	cfg := DefaultConfig()
	if err := cfg.FromEnv(); err != nil {
		t.Fatalf("overlay: %v", err)
	}
	if cfg.Email != "env@example.com" {
		t.Fatalf("email not overlaid, got %q", cfg.Email)
	}
	if cfg.Timeout != 15*time.Second {
		t.Fatalf("timeout = %v, want 15s", cfg.Timeout)
	}
	if cfg.Backend != BackendBrowser {
		t.Fatalf("backend = %q, want browser", cfg.Backend)
	}
	if cfg.ExportJSON {
		t.Fatalf("export json should be disabled")
	}
}

func TestEnvOverlayRejectsBadValues(t *testing.T) {
	t.Setenv("MAX_RETRIES", "many")
	cfg := DefaultConfig()
	if err := cfg.FromEnv(); err == nil || !strings.Contains(err.Error(), "MAX_RETRIES") {
		t.Fatalf("expected MAX_RETRIES error, got %v", err)
	}
}
