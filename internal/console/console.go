package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/akave-ai/devserve/internal/model"
)

const (
	HeaderLine = "--- JSON PARSE ERROR RECEIVED ---"
	FooterLine = "---------------------------------"
)

// Sink receives reports from the ingestion endpoint.
type Sink interface {
	Report(r model.Report) error
	Failure(err error)
}

// Console prints reports to an operator-facing stream, normally stdout.
// Each report is written as one block so concurrent reports never interleave.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// New returns a Console writing to out. A nil out means os.Stdout.
func New(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

// Report prints the report body between the delimiter lines.
func (c *Console) Report(r model.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := bufio.NewWriter(c.out)
	fmt.Fprintln(w, HeaderLine)
	fmt.Fprintln(w, r.Body)
	fmt.Fprintln(w, FooterLine)
	return w.Flush()
}

// Failure prints a one-line diagnostic for a report that could not be read.
func (c *Console) Failure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "Error processing log request: %v\n", err)
}
