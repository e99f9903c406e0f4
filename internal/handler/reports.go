package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"

	"github.com/akave-ai/devserve/internal/console"
	"github.com/akave-ai/devserve/internal/ingest"
	"github.com/akave-ai/devserve/internal/response"
	"github.com/akave-ai/devserve/internal/telemetry"
)

const receivedBody = "Log received"

// ReportHandler prints error reports posted by the browser.
type ReportHandler struct {
	Sink console.Sink
	Log  zerolog.Logger
	APM  *newrelic.Application // optional
}

// Receive handles POST on the ingestion path. Failures answer 500 with an
// empty body and close the connection; the reason only goes to the console.
func (h *ReportHandler) Receive(c echo.Context) error {
	req := c.Request()

	report, err := ingest.Read(req.Header, req.Body)
	if err != nil {
		h.Sink.Failure(err)
		h.Log.Warn().Err(err).Str("reason", string(ingest.ReasonOf(err))).Msg("[ingest] report rejected")
		// Whatever the client sent after a rejected head is not a request.
		c.Response().Header().Set("Connection", "close")
		return response.Empty(c, http.StatusInternalServerError)
	}

	report.ID = requestID(c)
	report.ReceivedAt = time.Now().UTC()
	report.RemoteAddr = c.RealIP()

	if err := h.Sink.Report(report); err != nil {
		h.Sink.Failure(err)
		h.Log.Error().Err(err).Msg("[ingest] write report")
		return response.Empty(c, http.StatusInternalServerError)
	}

	newrelic.FromContext(req.Context()).AddAttribute("report.bytes", report.Length)
	telemetry.RecordReport(h.APM, report, req.URL.Path)
	h.Log.Debug().
		Str("report_id", report.ID.String()).
		Int64("bytes", report.Length).
		Msg("[ingest] report received")

	return response.Text(c, http.StatusOK, receivedBody)
}

// requestID reuses the id the RequestID middleware put on the response so the
// report and the access log line share it.
func requestID(c echo.Context) uuid.UUID {
	if id, err := uuid.Parse(c.Response().Header().Get(echo.HeaderXRequestID)); err == nil {
		return id
	}
	return uuid.New()
}
