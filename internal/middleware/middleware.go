// Package middleware holds the echo middleware devserve installs around the
// router: access logging, APM transactions and sequential request handling.
package middleware

import (
	"sync"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"
)

// RequestLogger writes one zerolog event per request. Handler errors are
// rendered here first so the logged status is the one the client got.
func RequestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		HandleError:  true,
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			var ev *zerolog.Event
			switch {
			case v.Status >= 500:
				ev = log.Error().Err(v.Error)
			case v.Status >= 400:
				ev = log.Warn()
			default:
				ev = log.Info()
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}

// NewRelic runs each request inside an APM transaction. A nil app disables it.
func NewRelic(app *newrelic.Application) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if app == nil {
			return next
		}
		return func(c echo.Context) error {
			req := c.Request()
			txn := app.StartTransaction(req.Method + " " + c.Path())
			defer txn.End()

			txn.SetWebRequestHTTP(req)
			c.Response().Writer = txn.SetWebResponse(c.Response().Writer)
			c.SetRequest(req.WithContext(newrelic.NewContext(req.Context(), txn)))

			err := next(c)
			if err != nil {
				txn.NoticeError(err)
			}
			return err
		}
	}
}

// Sequential handles one request at a time. Requests queue on a single lock
// until the one in flight has written its response, error responses included.
// Install it outside the logging and APM middleware: errors stop here.
func Sequential() echo.MiddlewareFunc {
	var mu sync.Mutex
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			mu.Lock()
			defer mu.Unlock()
			if err := next(c); err != nil {
				c.Error(err)
			}
			return nil
		}
	}
}
