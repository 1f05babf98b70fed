package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tiiuae/rmacs/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.RMACS.ChannelBandwidth != 20 {
		t.Errorf("RMACS.ChannelBandwidth = %d, want %d", cfg.RMACS.ChannelBandwidth, 20)
	}

	if cfg.RMACS.ChannelQualityIndexThreshold != 5 {
		t.Errorf("RMACS.ChannelQualityIndexThreshold = %d, want %d", cfg.RMACS.ChannelQualityIndexThreshold, 5)
	}

	if cfg.RMACS.ReportExpiryWindow != 30*time.Second {
		t.Errorf("RMACS.ReportExpiryWindow = %v, want %v", cfg.RMACS.ReportExpiryWindow, 30*time.Second)
	}

	if cfg.RMACS.StabilityThreshold != 2 {
		t.Errorf("RMACS.StabilityThreshold = %d, want %d", cfg.RMACS.StabilityThreshold, 2)
	}

	if cfg.RMACS.SeqLimit != 3 {
		t.Errorf("RMACS.SeqLimit = %d, want %d", cfg.RMACS.SeqLimit, 3)
	}

	if cfg.RMACS.MaxSwitchRetries != 3 {
		t.Errorf("RMACS.MaxSwitchRetries = %d, want %d", cfg.RMACS.MaxSwitchRetries, 3)
	}

	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.API.Addr != ":8090" {
		t.Errorf("API.Addr = %q, want %q", cfg.API.Addr, ":8090")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}

	// Defaults fail validation because the required fields (primary
	// radio, freq list, radio interfaces) have no sensible default.
	if err := config.Validate(cfg); err == nil {
		t.Error("Validate(DefaultConfig()) = nil, want error for missing required fields")
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
rmacs:
  primary_radio: wlan0
  radio_interfaces: [wlan0, wlan1]
  freq_list: [5180, 5200, 5220]
  starting_frequency: 5180
  channel_bandwidth: 40
  orchestrator_node: true
multicast:
  wlan0:
    group: "ff02::1"
    port: 9999
  wlan1:
    group: "ff02::1"
    port: 9999
metrics:
  addr: ":9200"
  path: "/custom-metrics"
log:
  level: "debug"
  format: "text"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.RMACS.PrimaryRadio != "wlan0" {
		t.Errorf("RMACS.PrimaryRadio = %q, want %q", cfg.RMACS.PrimaryRadio, "wlan0")
	}

	if len(cfg.RMACS.FreqList) != 3 {
		t.Fatalf("RMACS.FreqList len = %d, want 3", len(cfg.RMACS.FreqList))
	}

	if cfg.RMACS.ChannelBandwidth != 40 {
		t.Errorf("RMACS.ChannelBandwidth = %d, want %d", cfg.RMACS.ChannelBandwidth, 40)
	}

	if !cfg.RMACS.OrchestratorNode {
		t.Error("RMACS.OrchestratorNode = false, want true")
	}

	if cfg.Multicast["wlan0"].Port != 9999 {
		t.Errorf("Multicast[wlan0].Port = %d, want %d", cfg.Multicast["wlan0"].Port, 9999)
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}

	// Unspecified fields inherit defaults.
	if cfg.RMACS.StabilityThreshold != 2 {
		t.Errorf("RMACS.StabilityThreshold = %d, want default %d", cfg.RMACS.StabilityThreshold, 2)
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	yamlContent := `
rmacs:
  primary_radio: wlan0
  radio_interfaces: [wlan0]
  freq_list: [5180]
multicast:
  wlan0:
    group: "ff02::1"
    port: 9999
log:
  level: "warn"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}

	// Default values should be preserved.
	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want default %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.RMACS.ChannelBandwidth != 20 {
		t.Errorf("RMACS.ChannelBandwidth = %d, want default %d", cfg.RMACS.ChannelBandwidth, 20)
	}

	if cfg.RMACS.ReportExpiryWindow != 30*time.Second {
		t.Errorf("RMACS.ReportExpiryWindow = %v, want default %v", cfg.RMACS.ReportExpiryWindow, 30*time.Second)
	}

	if err := config.Validate(cfg); err != nil {
		t.Errorf("Validate() with required fields set = %v, want nil", err)
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	validBase := func() *config.Config {
		cfg := config.DefaultConfig()
		cfg.RMACS.PrimaryRadio = "wlan0"
		cfg.RMACS.RadioInterfaces = []string{"wlan0"}
		cfg.RMACS.FreqList = []int{5180, 5200}
		cfg.Multicast = map[string]config.SocketConfig{
			"wlan0": {Group: "ff02::1", Port: 9999},
		}
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name: "empty primary radio",
			modify: func(cfg *config.Config) {
				cfg.RMACS.PrimaryRadio = ""
			},
			wantErr: config.ErrEmptyPrimaryRadio,
		},
		{
			name: "empty freq list",
			modify: func(cfg *config.Config) {
				cfg.RMACS.FreqList = nil
			},
			wantErr: config.ErrEmptyFreqList,
		},
		{
			name: "empty radio interfaces",
			modify: func(cfg *config.Config) {
				cfg.RMACS.RadioInterfaces = nil
			},
			wantErr: config.ErrEmptyRadioInterfaces,
		},
		{
			name: "zero stability threshold",
			modify: func(cfg *config.Config) {
				cfg.RMACS.StabilityThreshold = 0
			},
			wantErr: config.ErrInvalidStabilityThreshold,
		},
		{
			name: "zero seq limit",
			modify: func(cfg *config.Config) {
				cfg.RMACS.SeqLimit = 0
			},
			wantErr: config.ErrInvalidSeqLimit,
		},
		{
			name: "missing multicast config for interface",
			modify: func(cfg *config.Config) {
				cfg.RMACS.RadioInterfaces = []string{"wlan0", "wlan1"}
			},
			wantErr: config.ErrMissingMulticastConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validBase()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "INFO", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "WARN", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "Error", want: slog.LevelError},
		{input: "unknown", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "trace", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got := config.ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/path/config.yml")
	if err == nil {
		t.Fatal("Load() returned nil error for nonexistent file")
	}
}

// writeTemp writes content to a temporary YAML file and returns its path.
func writeTemp(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}
