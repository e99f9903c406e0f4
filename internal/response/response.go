package response

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// APIError is the JSON body of error pages on the static side. Reports never
// get one: ingestion failures answer with an empty body.
type APIError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Path    string `json:"path"`
	Status  int    `json:"status"`
}

// Text sends a plain-text body.
func Text(c echo.Context, status int, body string) error {
	return c.String(status, body)
}

// Empty sends a status with no body.
func Empty(c echo.Context, status int) error {
	return c.NoContent(status)
}

func apiError(c echo.Context, status int, message string) error {
	return c.JSON(status, APIError{
		Message: message,
		Error:   http.StatusText(status),
		Path:    c.Request().URL.Path,
		Status:  status,
	})
}

// ErrorHandler renders errors returned by handlers. HEAD requests get the
// status only; everything else gets an APIError body. Internal errors are
// logged, not echoed to the client.
func ErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			message = http.StatusText(code)
			if m, ok := he.Message.(string); ok && m != "" {
				message = m
			}
		}
		if code >= http.StatusInternalServerError {
			// The cause stays in the log; the client only sees the status text.
			log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("request failed")
			message = http.StatusText(code)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = Empty(c, code)
		} else {
			werr = apiError(c, code, message)
		}
		if werr != nil {
			log.Error().Err(werr).Msg("write error response")
		}
	}
}
