package model

import (
	"time"

	"github.com/google/uuid"
)

// Report is a client-side error report received on the ingestion endpoint.
// It lives for a single request: it is printed and then dropped.
type Report struct {
	ID         uuid.UUID `json:"id"`
	ReceivedAt time.Time `json:"received_at"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	Length     int64     `json:"length"` // declared Content-Length
	Body       string    `json:"body"`   // decoded text, printed verbatim
}
