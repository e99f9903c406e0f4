package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		path      string
		status    int
		wantLevel string
	}{
		{"GET ok", http.MethodGet, "/index.html", http.StatusOK, "info"},
		{"POST not found", http.MethodPost, "/other-path", http.StatusNotFound, "warn"},
		{"POST failed", http.MethodPost, "/log-json-error", http.StatusInternalServerError, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			e := echo.New()
			e.Use(echomw.RequestID(), RequestLogger(zerolog.New(&buf)))
			e.Any("/*", func(c echo.Context) error {
				return c.NoContent(tt.status)
			})

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			var line map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
			assert.Equal(t, tt.wantLevel, line["level"])
			assert.Equal(t, tt.method, line["method"])
			assert.Equal(t, tt.path, line["uri"])
			assert.EqualValues(t, tt.status, line["status"])
			assert.NotEmpty(t, line["request_id"])
		})
	}
}

func TestNewRelic_NilAppPassesThrough(t *testing.T) {
	e := echo.New()
	e.Use(NewRelic(nil))
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestSequential_OneRequestAtATime(t *testing.T) {
	var inFlight, peak int32

	e := echo.New()
	e.Use(Sequential())
	e.GET("/", func(c echo.Context) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return c.NoContent(http.StatusOK)
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
}

func TestSequential_CommitsErrors(t *testing.T) {
	e := echo.New()
	e.Use(Sequential())
	e.GET("/", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "short and stout")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestSequential_ErrorsStillReachTheAccessLog(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(Sequential(), RequestLogger(zerolog.New(&buf)), NewRelic(nil))
	e.GET("/", func(c echo.Context) error {
		return errors.New("read index: permission denied")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "error", line["level"])
	assert.EqualValues(t, http.StatusInternalServerError, line["status"])
	assert.Equal(t, "read index: permission denied", line["error"])
}
