package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/bombwatch/extension/internal/schema"
)

// FileName is the config file looked up in the config directory.
const FileName = "bombwatch.cfg.json"

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	// MetricInterval is the metric export period.
	MetricInterval time.Duration `json:"metricInterval" mapstructure:"metricInterval"`
	Endpoint       string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `json:"insecure" mapstructure:"insecure"`
}

// CaptureConfig holds settings for the memory capture store
type CaptureConfig struct {
	Driver string `json:"driver" mapstructure:"driver"`
	DSN    string `json:"dsn" mapstructure:"dsn"`
}

// TrackerConfig holds settings for the polling tracker
type TrackerConfig struct {
	PollInterval time.Duration `json:"pollInterval" mapstructure:"pollInterval"`
	// CacheTTL > 0 reuses snapshots for that long instead of recomputing per request.
	CacheTTL time.Duration `json:"cacheTTL" mapstructure:"cacheTTL"`
}

// SetDefaults registers default values for every known key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logFormat", "text")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "bombwatch")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "60s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("capture.driver", "sqlite")
	viper.SetDefault("capture.dsn", "./captures.db")

	viper.SetDefault("tracker.pollInterval", "50ms")
	viper.SetDefault("tracker.cacheTTL", "0s")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetOTelConfig returns the OTel settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}

// GetCaptureConfig returns the capture store settings.
func GetCaptureConfig() CaptureConfig {
	return CaptureConfig{
		Driver: viper.GetString("capture.driver"),
		DSN:    viper.GetString("capture.dsn"),
	}
}

// GetTrackerConfig returns the tracker settings.
func GetTrackerConfig() TrackerConfig {
	return TrackerConfig{
		PollInterval: viper.GetDuration("tracker.pollInterval"),
		CacheTTL:     viper.GetDuration("tracker.cacheTTL"),
	}
}

// GetLayout returns schema.DefaultLayout with any "layout" overrides applied.
// Offsets may be given as numbers or as strings such as "0x328".
func GetLayout() (schema.Layout, error) {
	layout := schema.DefaultLayout()
	if !viper.IsSet("layout") {
		return layout, nil
	}
	if err := viper.UnmarshalKey("layout", &layout); err != nil {
		return schema.Layout{}, fmt.Errorf("decoding layout: %w", err)
	}
	return layout, nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}
