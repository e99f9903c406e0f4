package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "DEVSERVE_"

type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Static        StaticConfig         `koanf:"static" validate:"required"`
	Ingest        IngestConfig         `koanf:"ingest" validate:"required"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required,oneof=development production test"`
}

type ServerConfig struct {
	Host               string        `koanf:"host"`
	Port               string        `koanf:"port" validate:"required,numeric"`
	ReadTimeout        time.Duration `koanf:"read_timeout" validate:"gte=0"`
	WriteTimeout       time.Duration `koanf:"write_timeout" validate:"gte=0"`
	IdleTimeout        time.Duration `koanf:"idle_timeout" validate:"gte=0"`
	ShutdownTimeout    time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	Sequential         bool          `koanf:"sequential"`
	CORSAllowedOrigins []string      `koanf:"cors_allowed_origins"`
}

// Addr is the listen address, host:port. An empty host binds every interface.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

type StaticConfig struct {
	Root   string `koanf:"root" validate:"required,dir"`
	Index  string `koanf:"index" validate:"required"`
	Browse bool   `koanf:"browse"`
}

type IngestConfig struct {
	Path string `koanf:"path" validate:"required,startswith=/"`
}

func defaults() map[string]any {
	return map[string]any{
		"primary.env":             "development",
		"server.host":             "",
		"server.port":             "8000",
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "60s",
		"server.shutdown_timeout": "5s",
		"server.sequential":       true,
		"static.root":             ".",
		"static.index":            "index.html",
		"static.browse":           true,
		"ingest.path":             "/log-json-error",
	}
}

// RegisterFlags adds the command-line overrides to flags. Only flags the user
// actually sets are applied by LoadConfig.
func RegisterFlags(flags *flag.FlagSet) {
	flags.String("port", "8000", "port to listen on")
	flags.String("dir", ".", "directory to serve")
	flags.String("env", "development", "environment name")
}

var flagKeys = map[string]string{
	"port": "server.port",
	"dir":  "static.root",
	"env":  "primary.env",
}

// LoadConfig builds the configuration from defaults, an optional .env file,
// DEVSERVE_* environment variables and explicitly set flags, in that order.
// Nested keys use a double underscore: DEVSERVE_SERVER__PORT=9000.
func LoadConfig(flags *flag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	err := k.Load(env.ProviderWithValue(envPrefix, ".", func(s, v string) (string, any) {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		key = strings.ReplaceAll(key, "__", ".")
		if key == "server.cors_allowed_origins" {
			return key, strings.Split(v, ",")
		}
		return key, v
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	if flags != nil {
		set := map[string]any{}
		flags.Visit(func(f *flag.Flag) {
			if key, ok := flagKeys[f.Name]; ok {
				set[key] = f.Value.String()
			}
		})
		if err := k.Load(confmap.Provider(set, "."), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	mainConfig := &Config{}
	if err := k.Unmarshal("", mainConfig); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(mainConfig); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// Observability is a pointer so an absent section can be told apart from
	// a zero one.
	if mainConfig.Observability == nil {
		mainConfig.Observability = DefaultObservabilityConfig()
	}
	mainConfig.Observability.fillDefaults()
	mainConfig.Observability.ServiceName = "devserve"
	mainConfig.Observability.Environment = mainConfig.Primary.Env

	if err := mainConfig.Observability.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}

	return mainConfig, nil
}
