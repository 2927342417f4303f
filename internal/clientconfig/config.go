package clientconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds the settings of the quotes command line client.
type Config struct {
	APIURL               string
	PortalURL            string
	CachePath            string
	PollInterval         time.Duration
	StatusInterval       time.Duration
	SessionCheckInterval time.Duration
	ProbeTimeout         time.Duration
}

const (
	defaultConfigPath           = "~/.config/quotes/config.toml"
	defaultAPIURL               = "http://127.0.0.1:3001"
	defaultCachePath            = "~/.local/share/quotes/cache.db"
	defaultPollInterval         = 10 * time.Second
	defaultStatusInterval       = 15 * time.Second
	defaultSessionCheckInterval = 30 * time.Second
	defaultProbeTimeout         = 10 * time.Second
)

func Defaults() Config {
	return Config{
		APIURL:               defaultAPIURL,
		CachePath:            mustExpand(defaultCachePath),
		PollInterval:         defaultPollInterval,
		StatusInterval:       defaultStatusInterval,
		SessionCheckInterval: defaultSessionCheckInterval,
		ProbeTimeout:         defaultProbeTimeout,
	}
}

// Load reads the config file at path, or the default location when path is
// empty. A missing file yields the defaults.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Defaults()

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIURL               string `toml:"api_url"`
		PortalURL            string `toml:"portal_url"`
		CachePath            string `toml:"cache_path"`
		PollInterval         string `toml:"poll_interval"`
		StatusInterval       string `toml:"status_interval"`
		SessionCheckInterval string `toml:"session_check_interval"`
		ProbeTimeout         string `toml:"probe_timeout"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIURL); v != "" {
		cfg.APIURL = v
	}
	cfg.PortalURL = strings.TrimRight(strings.TrimSpace(raw.PortalURL), "/")
	if v := strings.TrimSpace(raw.CachePath); v != "" {
		cfg.CachePath = mustExpand(v)
	}

	durations := []struct {
		key   string
		raw   string
		value *time.Duration
	}{
		{"poll_interval", raw.PollInterval, &cfg.PollInterval},
		{"status_interval", raw.StatusInterval, &cfg.StatusInterval},
		{"session_check_interval", raw.SessionCheckInterval, &cfg.SessionCheckInterval},
		{"probe_timeout", raw.ProbeTimeout, &cfg.ProbeTimeout},
	}
	for _, d := range durations {
		if strings.TrimSpace(d.raw) == "" {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		if parsed <= 0 {
			return Config{}, fmt.Errorf("%s must be positive", d.key)
		}
		*d.value = parsed
	}

	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
