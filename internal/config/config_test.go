package config

import (
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Primary.Env)
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, ":8000", cfg.Server.Addr())
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.True(t, cfg.Server.Sequential)
	assert.Equal(t, ".", cfg.Static.Root)
	assert.Equal(t, "index.html", cfg.Static.Index)
	assert.Equal(t, "/log-json-error", cfg.Ingest.Path)

	require.NotNil(t, cfg.Observability)
	assert.Equal(t, "devserve", cfg.Observability.ServiceName)
	assert.Equal(t, "development", cfg.Observability.Environment)
	assert.Equal(t, zerolog.InfoLevel, cfg.Observability.LogLevel())
	assert.False(t, cfg.Observability.NewRelicEnabled())
}

func TestLoadConfig_Env(t *testing.T) {
	root := t.TempDir()
	t.Setenv("DEVSERVE_SERVER__PORT", "9001")
	t.Setenv("DEVSERVE_SERVER__SEQUENTIAL", "false")
	t.Setenv("DEVSERVE_SERVER__READ_TIMEOUT", "2s")
	t.Setenv("DEVSERVE_SERVER__CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")
	t.Setenv("DEVSERVE_STATIC__ROOT", root)
	t.Setenv("DEVSERVE_OBSERVABILITY__LOGGING__LEVEL", "debug")

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, "9001", cfg.Server.Port)
	assert.False(t, cfg.Server.Sequential)
	assert.Equal(t, 2*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, root, cfg.Static.Root)
	assert.Equal(t, zerolog.DebugLevel, cfg.Observability.LogLevel())
	assert.Equal(t, "console", cfg.Observability.Logging.Format)
}

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	root := t.TempDir()
	t.Setenv("DEVSERVE_SERVER__PORT", "9001")

	fs := flag.NewFlagSet("devserve", flag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-port", "9002", "-dir", root}))

	cfg, err := LoadConfig(fs)
	require.NoError(t, err)
	assert.Equal(t, "9002", cfg.Server.Port)
	assert.Equal(t, root, cfg.Static.Root)
	assert.Equal(t, "development", cfg.Primary.Env)
}

func TestLoadConfig_UnsetFlagsKeepEnv(t *testing.T) {
	t.Setenv("DEVSERVE_SERVER__PORT", "9001")

	fs := flag.NewFlagSet("devserve", flag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(nil))

	cfg, err := LoadConfig(fs)
	require.NoError(t, err)
	assert.Equal(t, "9001", cfg.Server.Port)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"non-numeric port", "DEVSERVE_SERVER__PORT", "http", "Port"},
		{"missing root", "DEVSERVE_STATIC__ROOT", "/does/not/exist/devserve", "Root"},
		{"relative ingest path", "DEVSERVE_INGEST__PATH", "log-json-error", "Path"},
		{"unknown env", "DEVSERVE_PRIMARY__ENV", "staging", "Env"},
		{"unknown log format", "DEVSERVE_OBSERVABILITY__LOGGING__FORMAT", "xml", "Format"},
		{"short license key", "DEVSERVE_OBSERVABILITY__NEW_RELIC__LICENSE_KEY", "abc", "license_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := LoadConfig(nil)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), "error %q should mention %q", err, tt.want)
		})
	}
}

func TestObservabilityConfig_NewRelicEnabled(t *testing.T) {
	o := DefaultObservabilityConfig()
	o.ServiceName = "devserve"
	assert.False(t, o.NewRelicEnabled())

	o.NewRelic.LicenseKey = strings.Repeat("a", 40)
	assert.True(t, o.NewRelicEnabled())
	assert.NoError(t, o.Validate())
}
