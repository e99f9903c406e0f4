package ingest

import (
	"bytes"
	"net"
	"net/http"
	"strings"
)

// RejectedLengthHeader carries a Content-Length value net/http would refuse.
// WrapListener renames the header so the request reaches Read, which then
// rejects the report like any other malformed one.
const RejectedLengthHeader = "X-Rejected-Content-Length"

// maxHeadBytes mirrors the header limit net/http enforces by default.
const maxHeadBytes = http.DefaultMaxHeaderBytes + 4096

// WrapListener returns ln with every accepted connection watched for POSTs to
// path whose Content-Length net/http would answer with 400 before any handler
// runs. Those requests are passed on with the header renamed to
// RejectedLengthHeader. All other traffic is left as is.
func WrapListener(ln net.Listener, path string) net.Listener {
	return &listener{Listener: ln, path: path}
}

type listener struct {
	net.Listener
	path string
}

func (l *listener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return &conn{Conn: c, path: l.path}, nil
}

// conn follows request framing on a keep-alive connection. Each request head
// is held until complete; body bytes go through untouched.
type conn struct {
	net.Conn
	path string

	buf  [4096]byte
	in   []byte // read from the peer, not yet examined
	out  []byte // examined, waiting for the server
	body int64  // body bytes left in the current request
	raw  bool   // framing no longer known; pass everything through
	err  error  // read error held until out drains
}

func (c *conn) Read(p []byte) (int, error) {
	for len(c.out) == 0 {
		if len(c.in) > 0 && c.examine() {
			continue
		}
		if c.err != nil {
			err := c.err
			c.err = nil
			return 0, err
		}
		if len(c.in) == 0 && (c.raw || c.body > 0) {
			if !c.raw && int64(len(p)) > c.body {
				p = p[:int(c.body)]
			}
			n, err := c.Conn.Read(p)
			if !c.raw {
				c.body -= int64(n)
			}
			return n, err
		}
		n, err := c.Conn.Read(c.buf[:])
		c.in = append(c.in, c.buf[:n]...)
		c.err = err
	}
	n := copy(p, c.out)
	c.out = c.out[n:]
	return n, nil
}

// examine moves bytes from in to out once their role is known. It reports
// false while in holds only part of a request head.
func (c *conn) examine() bool {
	switch {
	case c.raw:
		c.out, c.in = c.in, nil
		return true
	case c.body > 0:
		n := int64(len(c.in))
		if n > c.body {
			n = c.body
		}
		c.out, c.in = c.in[:n], c.in[n:]
		c.body -= n
		return true
	}

	// net/http skips blank lines a client leaves after a POST body.
	if k := leadingNewlines(c.in); k > 0 {
		c.out, c.in = c.in[:k], c.in[k:]
		return true
	}
	end := headEnd(c.in)
	if end < 0 {
		if len(c.in) > maxHeadBytes {
			c.raw = true
			return c.examine()
		}
		return false
	}
	c.out, c.in = c.frame(c.in[:end]), c.in[end:]
	return true
}

// frame reads the framing headers of one request head and returns the head
// to hand to the server.
func (c *conn) frame(head []byte) []byte {
	lines := strings.SplitAfter(string(head), "\n")
	reqLine := strings.Fields(lines[0])
	if len(reqLine) != 3 {
		c.raw = true
		return head
	}

	var lengths []int
	for i := 1; i < len(lines); i++ {
		name, _, ok := strings.Cut(lines[i], ":")
		if !ok {
			continue
		}
		switch {
		case strings.EqualFold(name, "Transfer-Encoding"):
			c.raw = true
			return head
		case strings.EqualFold(name, "Content-Length"):
			lengths = append(lengths, i)
		}
	}
	if len(lengths) == 0 {
		return head
	}

	var length int64 = -1
	valid := true
	for _, i := range lengths {
		_, v, _ := strings.Cut(lines[i], ":")
		n, ok := parseLength(v)
		if !ok || (length >= 0 && n != length) {
			valid = false
			break
		}
		length = n
	}
	if valid {
		c.body = length
		return head
	}

	// Either net/http refuses the request and closes, or the report handler
	// answers and closes. The rest of the stream is never parsed.
	c.raw = true
	if reqLine[0] != http.MethodPost || reqLine[1] != c.path {
		return head
	}
	for _, i := range lengths {
		lines[i] = RejectedLengthHeader + lines[i][len("Content-Length"):]
	}
	return []byte(strings.Join(lines, ""))
}

func leadingNewlines(b []byte) int {
	n := 0
	for n < len(b) && (b[n] == '\r' || b[n] == '\n') {
		n++
	}
	return n
}

// headEnd returns the offset just past the blank line that ends the request
// head in b, or -1 if the head is incomplete.
func headEnd(b []byte) int {
	for i := 0; ; {
		j := bytes.IndexByte(b[i:], '\n')
		if j < 0 {
			return -1
		}
		if len(bytes.TrimSuffix(b[i:i+j], []byte("\r"))) == 0 {
			return i + j + 1
		}
		i += j + 1
	}
}
