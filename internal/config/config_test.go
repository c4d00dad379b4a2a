package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `{
  "steam": {"api_key": "XYZ"},
  "telegram": {"token": "123:abc"}
}`

func TestLoadMinimalDefaults(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, minimalConfig))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	set, err := cfg.Monitor.Settings()
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if set.CheckInterval != 60*time.Second {
		t.Fatalf("check interval default = %v", set.CheckInterval)
	}
	if set.NewsCheckInterval != 60*time.Minute {
		t.Fatalf("news interval default = %v", set.NewsCheckInterval)
	}
	if set.DiscountCheckInterval != 8*time.Hour {
		t.Fatalf("discount interval default = %v", set.DiscountCheckInterval)
	}
	if set.StatsAt != "00:00" {
		t.Fatalf("stats_at default = %q", set.StatsAt)
	}
	if set.PriceAlertThreshold != 15 {
		t.Fatalf("threshold default = %v", set.PriceAlertThreshold)
	}
	if set.NewsCount != 3 || set.DiscountCount != 5 {
		t.Fatalf("count defaults = %d %d", set.NewsCount, set.DiscountCount)
	}
}

func TestSettingsClamps(t *testing.T) {
	t.Parallel()
	set, err := MonitorConfig{NewsCount: 99, DiscountCount: -1}.Settings()
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if set.NewsCount != 5 {
		t.Fatalf("news count not clamped: %d", set.NewsCount)
	}
	if set.DiscountCount != 1 {
		t.Fatalf("discount count not clamped: %d", set.DiscountCount)
	}
}

func TestSettingsRejectsBadValues(t *testing.T) {
	t.Parallel()
	if _, err := (MonitorConfig{CheckInterval: "soon"}).Settings(); err == nil {
		t.Fatal("bad duration accepted")
	}
	if _, err := (MonitorConfig{StatsAt: "25:00"}).Settings(); err == nil {
		t.Fatal("bad stats_at accepted")
	}
	if _, err := (MonitorConfig{Timezone: "Mars/Olympus"}).Settings(); err == nil {
		t.Fatal("bad timezone accepted")
	}
}

func TestValidateRequiresAPIKey(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, `{"telegram": {"token": "123:abc"}}`))
	if _, err := m.Load(); err == nil || !strings.Contains(err.Error(), "api_key") {
		t.Fatalf("expected api_key error, got %v", err)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, `{"steam": {"api_key": "X", "tpyo": true}}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, `{"steam": {"api_key": "X"}}{"extra": 1}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("trailing data accepted")
	}
}

func TestYAMLConfigAccepted(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "steam:\n  api_key: XYZ\ntelegram:\n  token: 123:abc\nmonitor:\n  check_interval: 30s\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	set, err := cfg.Monitor.Settings()
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if set.CheckInterval != 30*time.Second {
		t.Fatalf("yaml value lost: %v", set.CheckInterval)
	}
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	h, m, err := ParseHHMM("18:30")
	if err != nil || h != 18 || m != 30 {
		t.Fatalf("ParseHHMM(18:30) = %d %d %v", h, m, err)
	}
	for _, bad := range []string{"", "1830", "24:00", "12:60", "ab:cd"} {
		if _, _, err := ParseHHMM(bad); err == nil {
			t.Fatalf("ParseHHMM(%q) should fail", bad)
		}
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("x", "", 5*time.Second)
	if err != nil || d != 5*time.Second {
		t.Fatalf("empty should default: %v %v", d, err)
	}
	d, err = ParseDurationOrDefault("x", "2m", 5*time.Second)
	if err != nil || d != 2*time.Minute {
		t.Fatalf("explicit value lost: %v %v", d, err)
	}
	if _, err := ParseDurationOrDefault("x", "-1s", 0); err == nil {
		t.Fatal("negative duration accepted")
	}
}
