package config

import (
	"fmt"

	"github.com/rs/zerolog"
)

type ObservabilityConfig struct {
	ServiceName string         `koanf:"service_name"`
	Environment string         `koanf:"environment"`
	Logging     LoggingConfig  `koanf:"logging"`
	NewRelic    NewRelicConfig `koanf:"new_relic"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"omitempty,oneof=console json"`
}

// NewRelicConfig turns on the APM agent. It stays off without a license key.
type NewRelicConfig struct {
	LicenseKey       string `koanf:"license_key"`
	AppLogForwarding bool   `koanf:"app_log_forwarding"`
}

func DefaultObservabilityConfig() *ObservabilityConfig {
	return &ObservabilityConfig{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func (o *ObservabilityConfig) fillDefaults() {
	def := DefaultObservabilityConfig()
	if o.Logging.Level == "" {
		o.Logging.Level = def.Logging.Level
	}
	if o.Logging.Format == "" {
		o.Logging.Format = def.Logging.Format
	}
}

// NewRelicEnabled reports whether an APM application should be started.
func (o *ObservabilityConfig) NewRelicEnabled() bool {
	return o.NewRelic.LicenseKey != ""
}

// LogLevel parses Logging.Level.
func (o *ObservabilityConfig) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(o.Logging.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

func (o *ObservabilityConfig) Validate() error {
	if o.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if _, err := zerolog.ParseLevel(o.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch o.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", o.Logging.Format)
	}
	// The agent only accepts 40 character keys.
	if o.NewRelicEnabled() && len(o.NewRelic.LicenseKey) != 40 {
		return fmt.Errorf("new_relic.license_key must be 40 characters")
	}
	return nil
}
