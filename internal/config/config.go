// Package config manages the rmacsd daemon configuration using koanf/v2.
//
// Supports YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete rmacsd configuration. RMACS and Multicast map
// directly onto the rmacs and multicast YAML sections; Metrics, API, and
// Log are the ambient sections for observability and the operator API.
type Config struct {
	RMACS     RMACSConfig             `koanf:"rmacs"`
	Multicast map[string]SocketConfig `koanf:"multicast"`
	Metrics   MetricsConfig           `koanf:"metrics"`
	API       APIConfig               `koanf:"api"`
	Log       LogConfig               `koanf:"log"`
}

// RMACSConfig holds the channel-selection control plane parameters.
type RMACSConfig struct {
	// PrimaryRadio is the mesh radio interface monitored and switched.
	PrimaryRadio string `koanf:"primary_radio"`

	// RadioInterfaces is the set of control-channel interfaces that carry
	// the multicast wire protocol.
	RadioInterfaces []string `koanf:"radio_interfaces"`

	// FreqList is the candidate frequency set F (MHz) scanned off-channel.
	FreqList []int `koanf:"freq_list"`

	// StartingFrequency is the operating frequency assumed at startup.
	StartingFrequency int `koanf:"starting_frequency"`

	// ChannelBandwidth is the channel width in MHz used in switch commands
	// (HT<bandwidth> in the `iw` invocation).
	ChannelBandwidth int `koanf:"channel_bandwidth"`

	// ClientBeaconCount is the beacon count used in a client-initiated
	// switch command and the settle time (seconds) after issuing it.
	ClientBeaconCount int `koanf:"client_beacon_count"`

	// ServerBeaconCount is the beacon count used in an orchestrator-issued
	// local switch, during PFH and on adoption.
	ServerBeaconCount int `koanf:"server_beacon_count"`

	// ChannelQualityIndexThreshold is the scalar above which an
	// operating-channel scan is considered bad.
	ChannelQualityIndexThreshold int `koanf:"channel_quality_index_threshold"`

	// PhyErrorLimit is the PHY-error-delta limit per error-monitoring sample.
	PhyErrorLimit int `koanf:"phy_error_limit"`

	// TxTimeoutLimit is the TX-timeout-delta limit per error-monitoring sample.
	TxTimeoutLimit int `koanf:"tx_timeout_limit"`

	// AirTimeLimit is the channel busy/active air-time percentage limit.
	AirTimeLimit int `koanf:"air_time_limit"`

	// TrafficThreshold is the TX bitrate (kbps) above which traffic is
	// considered present.
	TrafficThreshold int `koanf:"traffic_threshold"`

	// ReportExpiryWindow bounds how old a ledger entry may be and still
	// count toward average_quality.
	ReportExpiryWindow time.Duration `koanf:"report_expiry_window"`

	// BCQIThresholdTime is the debounce window between accepted BCQI
	// alerts for the currently-operating frequency.
	BCQIThresholdTime time.Duration `koanf:"bcqi_threshold_time"`

	// PeriodicOperatingFreqBroadcast is the interval between unsolicited
	// OperatingFrequency broadcasts.
	PeriodicOperatingFreqBroadcast time.Duration `koanf:"periodic_operating_freq_broadcast"`

	// HopInterval is the sleep between PFH loop iterations once the
	// stability counter has started incrementing.
	HopInterval time.Duration `koanf:"hop_interval"`

	// StabilityThreshold S is the number of consecutive re-evaluations the
	// top frequency must hold before PFH adopts it.
	StabilityThreshold int `koanf:"stability_threshold"`

	// SeqLimit K is the top-N candidates PFH rotates through, clamped to
	// the ledger size at runtime.
	SeqLimit int `koanf:"seq_limit"`

	// MaxErrorCheck bounds error_monitoring's sampling loop.
	MaxErrorCheck int `koanf:"max_error_check"`

	// MaxSwitchRetries bounds the client's switch_frequency retry loop.
	MaxSwitchRetries int `koanf:"max_switch_retries"`

	// BufferPeriod is additional settle time (seconds) added to the
	// beacon count when the server verifies a local switch.
	BufferPeriod time.Duration `koanf:"buffer_period"`

	// OrchestratorNode selects whether this process also runs the server
	// FSM.
	OrchestratorNode bool `koanf:"orchestrator_node"`
}

// SocketConfig is one control-channel interface's multicast group/port.
type SocketConfig struct {
	Group string `koanf:"group"`
	Port  int    `koanf:"port"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// APIConfig holds the operator HTTP+JSON API endpoint configuration.
type APIConfig struct {
	// Addr is the HTTP listen address for the operator API (e.g., ":8090").
	Addr string `koanf:"addr"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RMACS: RMACSConfig{
			ChannelBandwidth:               20,
			ClientBeaconCount:              10,
			ServerBeaconCount:              10,
			ChannelQualityIndexThreshold:   5,
			PhyErrorLimit:                  50,
			TxTimeoutLimit:                 5,
			AirTimeLimit:                   80,
			TrafficThreshold:               100,
			ReportExpiryWindow:             30 * time.Second,
			BCQIThresholdTime:              10 * time.Second,
			PeriodicOperatingFreqBroadcast: 60 * time.Second,
			HopInterval:                    5 * time.Second,
			StabilityThreshold:             2,
			SeqLimit:                       3,
			MaxErrorCheck:                  3,
			MaxSwitchRetries:               3,
			BufferPeriod:                   2 * time.Second,
			OrchestratorNode:               false,
		},
		Multicast: map[string]SocketConfig{},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		API: APIConfig{
			Addr: ":8090",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for RMACS configuration.
// Variables are named RMACS_<section>_<key>, e.g., RMACS_METRICS_ADDR.
const envPrefix = "RMACS_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (RMACS_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults.
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms RMACS_RMACS_PRIMARY_RADIO -> rmacs.primary_radio.
// Strips the RMACS_ prefix, lowercases, and replaces the first _ (the
// section/key separator) with .
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"rmacs.channel_bandwidth":                 defaults.RMACS.ChannelBandwidth,
		"rmacs.client_beacon_count":               defaults.RMACS.ClientBeaconCount,
		"rmacs.server_beacon_count":               defaults.RMACS.ServerBeaconCount,
		"rmacs.channel_quality_index_threshold":   defaults.RMACS.ChannelQualityIndexThreshold,
		"rmacs.phy_error_limit":                   defaults.RMACS.PhyErrorLimit,
		"rmacs.tx_timeout_limit":                  defaults.RMACS.TxTimeoutLimit,
		"rmacs.air_time_limit":                    defaults.RMACS.AirTimeLimit,
		"rmacs.traffic_threshold":                 defaults.RMACS.TrafficThreshold,
		"rmacs.report_expiry_window":              defaults.RMACS.ReportExpiryWindow.String(),
		"rmacs.bcqi_threshold_time":                defaults.RMACS.BCQIThresholdTime.String(),
		"rmacs.periodic_operating_freq_broadcast":  defaults.RMACS.PeriodicOperatingFreqBroadcast.String(),
		"rmacs.hop_interval":                       defaults.RMACS.HopInterval.String(),
		"rmacs.stability_threshold":                defaults.RMACS.StabilityThreshold,
		"rmacs.seq_limit":                          defaults.RMACS.SeqLimit,
		"rmacs.max_error_check":                    defaults.RMACS.MaxErrorCheck,
		"rmacs.max_switch_retries":                 defaults.RMACS.MaxSwitchRetries,
		"rmacs.buffer_period":                      defaults.RMACS.BufferPeriod.String(),
		"rmacs.orchestrator_node":                  defaults.RMACS.OrchestratorNode,
		"metrics.addr":                             defaults.Metrics.Addr,
		"metrics.path":                             defaults.Metrics.Path,
		"api.addr":                                 defaults.API.Addr,
		"log.level":                                defaults.Log.Level,
		"log.format":                               defaults.Log.Format,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyPrimaryRadio indicates rmacs.primary_radio is empty.
	ErrEmptyPrimaryRadio = errors.New("rmacs.primary_radio must not be empty")

	// ErrEmptyFreqList indicates rmacs.freq_list has no candidate frequencies.
	ErrEmptyFreqList = errors.New("rmacs.freq_list must not be empty")

	// ErrEmptyRadioInterfaces indicates rmacs.radio_interfaces is empty.
	ErrEmptyRadioInterfaces = errors.New("rmacs.radio_interfaces must not be empty")

	// ErrInvalidStabilityThreshold indicates stability_threshold is < 1.
	ErrInvalidStabilityThreshold = errors.New("rmacs.stability_threshold must be >= 1")

	// ErrInvalidSeqLimit indicates seq_limit is < 1.
	ErrInvalidSeqLimit = errors.New("rmacs.seq_limit must be >= 1")

	// ErrMissingMulticastConfig indicates a radio interface has no
	// corresponding multicast group/port entry.
	ErrMissingMulticastConfig = errors.New("multicast config missing for radio interface")
)

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.RMACS.PrimaryRadio == "" {
		return ErrEmptyPrimaryRadio
	}

	if len(cfg.RMACS.FreqList) == 0 {
		return ErrEmptyFreqList
	}

	if len(cfg.RMACS.RadioInterfaces) == 0 {
		return ErrEmptyRadioInterfaces
	}

	if cfg.RMACS.StabilityThreshold < 1 {
		return ErrInvalidStabilityThreshold
	}

	if cfg.RMACS.SeqLimit < 1 {
		return ErrInvalidSeqLimit
	}

	for _, iface := range cfg.RMACS.RadioInterfaces {
		if _, ok := cfg.Multicast[iface]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingMulticastConfig, iface)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
