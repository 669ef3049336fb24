package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads a .env file when present. A missing file is not an
// error; a malformed one is.
func LoadDotEnv() error {
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	slog.Debug("loaded environment from .env")
	return nil
}

// EnvString reads a string environment variable.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// EnvInt reads an integer environment variable.
func EnvInt(key string) (int, bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return parsed, true, nil
}

// EnvBool reads a boolean environment variable.
func EnvBool(key string) (bool, bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return parsed, true, nil
}

// EnvDuration reads a duration environment variable. Plain integers are
// treated as seconds for parity with the original deployment settings.
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return 0, false, nil
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, true, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return parsed, true, nil
}

// FromEnv overlays environment variables onto cfg. Flag parsing happens
// in the binary; env vars fill whatever the flags left at defaults.
func (c *Config) FromEnv() error {
	if v, ok := EnvString("MT_PREMIADO_EMAIL"); ok {
		c.Email = v
	}
	if v, ok := EnvString("MT_PREMIADO_SENHA"); ok {
		c.Password = v
	}
	if v, ok := EnvString("MT_PREMIADO_BASE_URL"); ok {
		c.BaseURL = v
	}
	if v, ok := EnvString("MT_PREMIADO_LOGIN_URL"); ok {
		c.LoginURL = v
	}
	if v, ok := EnvString("MT_PREMIADO_PEDIDOS_URL"); ok {
		c.OrdersURL = v
	}
	if v, ok := EnvString("EXTRACT_BACKEND"); ok {
		c.Backend = v
	}
	if v, ok, err := EnvDuration("REQUEST_TIMEOUT"); err != nil {
		return err
	} else if ok {
		c.Timeout = v
	}
	if v, ok, err := EnvInt("MAX_RETRIES"); err != nil {
		return err
	} else if ok {
		c.MaxRetries = v
	}
	if v, ok, err := EnvDuration("RETRY_DELAY"); err != nil {
		return err
	} else if ok {
		c.RetryBackoff = v
	}
	if v, ok, err := EnvInt("MAX_PAGES"); err != nil {
		return err
	} else if ok {
		c.MaxPages = v
	}
	if v, ok := EnvString("WAIT_FOR_SELECTOR"); ok {
		c.WaitSelector = v
	}
	if v, ok, err := EnvBool("BROWSER_HEADLESS"); err != nil {
		return err
	} else if ok {
		c.BrowserHeadless = v
	}
	if v, ok := EnvString("STATE_FILE"); ok {
		c.CursorFile = v
	}
	if v, ok := EnvString("EXPORTS_DIR"); ok {
		c.ExportDir = v
	}
	if v, ok, err := EnvBool("EXPORT_JSON"); err != nil {
		return err
	} else if ok {
		c.ExportJSON = v
	}
	if v, ok := EnvString("LISTEN_ADDR"); ok {
		c.ListenAddr = v
	}
	if v, ok := EnvString("METRICS_ADDR"); ok {
		c.MetricsAddr = v
	}
	return nil
}
