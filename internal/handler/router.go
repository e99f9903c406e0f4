package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/akave-ai/devserve/internal/response"
)

// Router sends each request to exactly one of two behaviors: report
// ingestion for POSTs to IngestPath, static files for GET and HEAD.
type Router struct {
	IngestPath string
	Reports    *ReportHandler
	Static     echo.HandlerFunc
}

// Handle is mounted on every method and path.
func (rt *Router) Handle(c echo.Context) error {
	req := c.Request()
	switch req.Method {
	case http.MethodPost:
		// Compared against the raw request target, so a query string or an
		// escaped character is a different path.
		if req.RequestURI == rt.IngestPath {
			return rt.Reports.Receive(c)
		}
		return response.Empty(c, http.StatusNotFound)
	case http.MethodGet, http.MethodHead:
		return rt.Static(c)
	default:
		return response.Empty(c, http.StatusNotImplemented)
	}
}

// StaticOptions configures NewStatic.
type StaticOptions struct {
	Root   string
	Index  string
	Browse bool
}

// NewStatic serves files under Root. Directories resolve to Index, or to a
// listing when Browse is set. Anything else is echo.ErrNotFound.
func NewStatic(opts StaticOptions) echo.HandlerFunc {
	static := middleware.StaticWithConfig(middleware.StaticConfig{
		Root:   opts.Root,
		Index:  opts.Index,
		Browse: opts.Browse,
	})
	return static(func(c echo.Context) error {
		return echo.ErrNotFound
	})
}
