// Package ingest reads client error reports off an HTTP request.
//
// Read never interprets the payload: a report is whatever UTF-8 text the
// client declared with Content-Length. Every failure comes back as an *Error
// tagged with a Reason so callers can choose a status without string matching.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"github.com/akave-ai/devserve/internal/model"
)

// DefaultPath is where browsers post their reports.
const DefaultPath = "/log-json-error"

// Reason classifies an ingestion failure.
type Reason string

const (
	ReasonMissingLength Reason = "missing-length"
	ReasonInvalidLength Reason = "invalid-length"
	ReasonShortBody     Reason = "short-body"
	ReasonReadFailed    Reason = "read-failed"
	ReasonInvalidUTF8   Reason = "invalid-utf8"
)

var (
	ErrMissingLength = errors.New("missing Content-Length header")
	ErrInvalidLength = errors.New("invalid Content-Length header")
	ErrShortBody     = errors.New("body shorter than Content-Length")
	ErrInvalidUTF8   = errors.New("body is not valid UTF-8")
)

// Error is the failure half of Read's result.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	return string(e.Reason) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// ReasonOf returns the Reason carried by err, or "" if err is not an *Error.
func ReasonOf(err error) Reason {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Reason
	}
	return ""
}

// Read consumes exactly Content-Length bytes from body and decodes them as
// UTF-8. The returned report has Length and Body set; identity and
// timestamps are left to the caller.
func Read(header http.Header, body io.Reader) (model.Report, error) {
	length, err := contentLength(header)
	if err != nil {
		return model.Report{}, err
	}
	if body == nil {
		body = http.NoBody
	}

	// CopyN grows the buffer as bytes arrive, so a bogus length cannot force
	// a huge allocation up front.
	var buf bytes.Buffer
	n, err := io.CopyN(&buf, body, length)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return model.Report{}, &Error{
				Reason: ReasonShortBody,
				Err:    fmt.Errorf("%w: read %d of %d bytes", ErrShortBody, n, length),
			}
		}
		return model.Report{}, &Error{Reason: ReasonReadFailed, Err: fmt.Errorf("read body: %w", err)}
	}

	text, err := decode(buf.Bytes())
	if err != nil {
		return model.Report{}, err
	}
	return model.Report{Length: length, Body: text}, nil
}

func contentLength(header http.Header) (int64, error) {
	raw := header.Get("Content-Length")
	if raw == "" {
		raw = header.Get(RejectedLengthHeader)
	}
	if raw == "" {
		return 0, &Error{Reason: ReasonMissingLength, Err: ErrMissingLength}
	}
	n, ok := parseLength(raw)
	if !ok {
		return 0, &Error{Reason: ReasonInvalidLength, Err: fmt.Errorf("%w: %q", ErrInvalidLength, raw)}
	}
	return n, nil
}

// parseLength accepts what net/http accepts for Content-Length: ASCII digits
// with optional surrounding whitespace.
func parseLength(raw string) (int64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

func decode(p []byte) (string, error) {
	out, _, err := transform.Bytes(encoding.UTF8Validator, p)
	if err != nil {
		return "", &Error{Reason: ReasonInvalidUTF8, Err: fmt.Errorf("%w: %v", ErrInvalidUTF8, err)}
	}
	return string(out), nil
}
