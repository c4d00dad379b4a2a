package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Steam    SteamConfig    `json:"steam"`
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Monitor  MonitorConfig  `json:"monitor"`
	Storage  StorageConfig  `json:"storage"`
}

// SteamConfig configures the upstream Steam Web API client.
//
// RequestTimeout is a Go duration string (e.g. "8s"). The API key is the
// only required setting in the whole config.
type SteamConfig struct {
	APIKey         string `json:"api_key"`
	RequestTimeout string `json:"request_timeout,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// MonitorConfig controls the periodic polling jobs.
//
// All intervals are Go duration strings. Defaults (when omitted/zero):
//   - check_interval: "60s" (friend presence)
//   - news_check_interval: "60m"
//   - discount_check_interval: "8h"
//   - stats_at: "00:00" (daily library stats, HH:MM wall clock)
//   - price_alert_threshold: 15 (percent)
//   - news_count: 3 (clamped to 1..5)
//   - discount_count: 5 (clamped to 1..10)
type MonitorConfig struct {
	CheckInterval         string  `json:"check_interval,omitempty"`
	NewsCheckInterval     string  `json:"news_check_interval,omitempty"`
	DiscountCheckInterval string  `json:"discount_check_interval,omitempty"`
	StatsAt               string  `json:"stats_at,omitempty"`
	PriceAlertThreshold   float64 `json:"price_alert_threshold,omitempty"`
	NewsCount             int     `json:"news_count,omitempty"`
	DiscountCount         int     `json:"discount_count,omitempty"`
	// Timezone is an IANA TZ name for daily triggers and quiet hours,
	// e.g. "Asia/Shanghai". Empty means the host local zone.
	Timezone string `json:"timezone,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Driver values: "sqlite" (default) or "memory" (volatile, for tests and
// throwaway runs). BusyTimeout is a Go duration string (sqlite only).
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// MonitorSettings is MonitorConfig with durations parsed, counts clamped
// and the timezone resolved. Jobs consume this snapshot, never the raw config.
type MonitorSettings struct {
	CheckInterval         time.Duration
	NewsCheckInterval     time.Duration
	DiscountCheckInterval time.Duration
	StatsAt               string
	PriceAlertThreshold   float64
	NewsCount             int
	DiscountCount         int
	Location              *time.Location
}

// Validate rejects configs that must not be committed (startup or hot reload).
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Steam.APIKey) == "" {
		return errors.New("steam.api_key is required")
	}
	if _, err := ParseDurationField("steam.request_timeout", c.Steam.RequestTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	if c.Monitor.PriceAlertThreshold < 0 {
		return errors.New("monitor.price_alert_threshold must be >= 0")
	}
	if _, err := c.Monitor.Settings(); err != nil {
		return err
	}
	return nil
}

// Settings resolves the monitor block into a MonitorSettings snapshot.
func (m MonitorConfig) Settings() (MonitorSettings, error) {
	check, err := ParseDurationOrDefault("monitor.check_interval", m.CheckInterval, 60*time.Second)
	if err != nil {
		return MonitorSettings{}, err
	}
	news, err := ParseDurationOrDefault("monitor.news_check_interval", m.NewsCheckInterval, 60*time.Minute)
	if err != nil {
		return MonitorSettings{}, err
	}
	discount, err := ParseDurationOrDefault("monitor.discount_check_interval", m.DiscountCheckInterval, 8*time.Hour)
	if err != nil {
		return MonitorSettings{}, err
	}

	statsAt := strings.TrimSpace(m.StatsAt)
	if statsAt == "" {
		statsAt = "00:00"
	}
	if _, _, err := ParseHHMM(statsAt); err != nil {
		return MonitorSettings{}, fmt.Errorf("monitor.stats_at: %w", err)
	}

	threshold := m.PriceAlertThreshold
	if threshold == 0 {
		threshold = 15
	}

	loc := time.Local
	if tz := strings.TrimSpace(m.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return MonitorSettings{}, fmt.Errorf("monitor.timezone: invalid %q: %w", tz, err)
		}
		loc = l
	}

	return MonitorSettings{
		CheckInterval:         check,
		NewsCheckInterval:     news,
		DiscountCheckInterval: discount,
		StatsAt:               statsAt,
		PriceAlertThreshold:   threshold,
		NewsCount:             clamp(m.NewsCount, 1, 5, 3),
		DiscountCount:         clamp(m.DiscountCount, 1, 10, 5),
		Location:              loc,
	}, nil
}

func clamp(v, lo, hi, def int) int {
	if v == 0 {
		return def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ParseHHMM parses a wall-clock "HH:MM" string.
func ParseHHMM(s string) (hour int, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}
