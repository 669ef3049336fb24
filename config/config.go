// Package config holds the runtime configuration for the extraction
// service.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Fetch backend identifiers.
const (
	BackendStatic  = "static"
	BackendBrowser = "browser"
)

// Config holds extraction service configuration.
type Config struct {
	// Vendor panel credentials.
	Email    string
	Password string

	// Vendor URLs. LoginURL and OrdersURL default to paths under BaseURL.
	BaseURL   string
	LoginURL  string
	OrdersURL string

	// Backend selects the fetch strategy for a run: static or browser.
	Backend string

	// Timeout bounds a single page or detail fetch.
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration

	// MaxPages caps the listing walk as a runaway guard.
	MaxPages int

	// WaitSelector is the content-ready condition for the browser backend.
	WaitSelector    string
	BrowserHeadless bool

	CursorFile string
	ExportDir  string
	ExportJSON bool

	// PageCacheSize bounds the raw-page cache serving the debug endpoint.
	PageCacheSize int

	ListenAddr  string
	MetricsAddr string
	UserAgent   string
	Verbose     bool
}

// DefaultConfig returns conservative defaults for the vendor panel.
// Credentials are intentionally empty and must come from the environment.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "https://omtpremiado.com.br",
		LoginURL:        "https://omtpremiado.com.br/login",
		OrdersURL:       "https://omtpremiado.com.br/pedidos",
		Backend:         BackendStatic,
		Timeout:         30 * time.Second,
		MaxRetries:      3,
		RetryBackoff:    2 * time.Second,
		RetryBackoffMax: 10 * time.Second,
		MaxPages:        200,
		WaitSelector:    ".nk-tb-item",
		BrowserHeadless: true,
		CursorFile:      "data/last_order_state.json",
		ExportDir:       "data/exports",
		ExportJSON:      true,
		PageCacheSize:   64,
		ListenAddr:      ":8000",
		MetricsAddr:     "",
		UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		Verbose:         false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.Email == "" {
		return fmt.Errorf("credentials: email cannot be empty")
	}
	if c.Password == "" {
		return fmt.Errorf("credentials: password cannot be empty")
	}

	for _, u := range []struct {
		name  string
		value string
	}{
		{"base URL", c.BaseURL},
		{"login URL", c.LoginURL},
		{"orders URL", c.OrdersURL},
	} {
		if u.value == "" {
			return fmt.Errorf("%s cannot be empty", u.name)
		}
		parsed, err := url.Parse(u.value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", u.name, err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("%s must include a host", u.name)
		}
	}

	switch c.Backend {
	case BackendStatic, BackendBrowser:
	default:
		return fmt.Errorf("backend must be %q or %q", BackendStatic, BackendBrowser)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.WaitSelector == "" {
		return fmt.Errorf("wait selector cannot be empty")
	}
	if c.CursorFile == "" {
		return fmt.Errorf("cursor file cannot be empty")
	}
	if c.ExportJSON && c.ExportDir == "" {
		return fmt.Errorf("export directory cannot be empty when export is enabled")
	}
	if c.PageCacheSize <= 0 {
		return fmt.Errorf("page cache size must be positive")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// ListingPageURL builds the URL for one listing page (1-based).
func (c *Config) ListingPageURL(page int) string {
	if page <= 1 {
		return c.OrdersURL
	}
	sep := "?"
	if strings.Contains(c.OrdersURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%spage=%d", c.OrdersURL, sep, page)
}
