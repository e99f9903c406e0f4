package telemetry

import (
	"fmt"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"

	"github.com/akave-ai/devserve/internal/config"
	"github.com/akave-ai/devserve/internal/model"
)

// ReportEventType is the custom event recorded for every accepted report.
const ReportEventType = "ClientErrorReport"

// NewApplication starts the New Relic agent. It returns nil, nil when no
// license key is configured; every caller treats a nil app as "off".
func NewApplication(cfg *config.ObservabilityConfig, log zerolog.Logger) (*newrelic.Application, error) {
	if cfg == nil || !cfg.NewRelicEnabled() {
		return nil, nil
	}
	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.ServiceName+"-"+cfg.Environment),
		newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(cfg.NewRelic.AppLogForwarding),
	)
	if err != nil {
		return nil, fmt.Errorf("new relic: %w", err)
	}
	log.Info().Str("app", cfg.ServiceName).Msg("new relic agent started")
	return app, nil
}

// RecordReport sends a ClientErrorReport event. Safe to call with a nil app.
func RecordReport(app *newrelic.Application, r model.Report, path string) {
	if app == nil {
		return
	}
	app.RecordCustomEvent(ReportEventType, map[string]any{
		"reportId":   r.ID.String(),
		"path":       path,
		"bytes":      r.Length,
		"remoteAddr": r.RemoteAddr,
	})
}

// Shutdown flushes pending data. Safe to call with a nil app.
func Shutdown(app *newrelic.Application, timeout time.Duration) {
	if app == nil {
		return
	}
	app.Shutdown(timeout)
}
