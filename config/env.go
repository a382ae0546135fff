package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv reads KEY=VALUE pairs from the given dotenv files (".env" when none
// are given) into the process environment. Missing files are ignored and
// variables already set win over file values.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// EnvString returns the trimmed value of key and whether it was set.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvDuration parses key with time.ParseDuration.
func EnvDuration(key string) (time.Duration, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// ApplyEnv overrides cfg with any SCRAPER_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if value, ok := EnvString("SCRAPER_BASE_URL"); ok {
		cfg.BaseURL = value
	}
	if value, ok, err := EnvInt("SCRAPER_MAX_RETRIES"); err != nil {
		return err
	} else if ok {
		cfg.MaxRetries = value
	}
	if value, ok, err := EnvDuration("SCRAPER_REQUEST_DELAY"); err != nil {
		return err
	} else if ok {
		cfg.RequestDelay = value
	}
	if value, ok, err := EnvDuration("SCRAPER_TIMEOUT"); err != nil {
		return err
	} else if ok {
		cfg.Timeout = value
	}
	if value, ok := EnvString("SCRAPER_FORMAT"); ok {
		cfg.OutputFormat = strings.ToLower(value)
	}
	if value, ok := EnvString("SCRAPER_OUTPUT"); ok {
		cfg.OutputFile = value
	}
	if value, ok := os.LookupEnv("SCRAPER_DEBUG_DIR"); ok {
		cfg.DebugDir = strings.TrimSpace(value)
	}
	if value, ok := EnvString("SCRAPER_METRICS_ADDR"); ok {
		cfg.MetricsAddr = value
	}
	return nil
}
