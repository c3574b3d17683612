package http

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"
)

func parse(raw string) (*Request, *bufio.Reader) {
	r := bufio.NewReader(strings.NewReader(raw))
	return ParseRequest(r), r
}

// TestParseRequestLine tests method, path and version extraction
func TestParseRequestLine(t *testing.T) {
	req, _ := parse("GET /match/abc123 HTTP/1.1\r\nHost: localhost\r\n\r\n")

	if req.Method != "GET" {
		t.Errorf("Expected method GET, got %s", req.Method)
	}
	if req.Path != "/match/abc123" {
		t.Errorf("Expected path /match/abc123, got %s", req.Path)
	}
	if req.Version != "1.1" {
		t.Errorf("Expected version 1.1, got %s", req.Version)
	}
	if !req.Valid() {
		t.Error("Expected valid request")
	}
}

// TestParseHeaders tests header extraction and the optional space after ':'
func TestParseHeaders(t *testing.T) {
	req, _ := parse("POST /string HTTP/1.1\r\nHost: localhost\r\nContent-Length:11\r\nX-Empty: \r\n\r\n")

	tests := map[string]string{
		"Host":           "localhost",
		"Content-Length": "11",
		"X-Empty":        "",
	}
	for name, want := range tests {
		got, ok := req.Headers[name]
		if !ok || got != want {
			t.Errorf("Header %s: expected %q, got %q (present=%v)", name, want, got, ok)
		}
	}
	if len(req.Headers) != len(tests) {
		t.Errorf("Expected %d headers, got %d", len(tests), len(req.Headers))
	}
}

// TestParseHeadersLastWins tests duplicate header names
func TestParseHeadersLastWins(t *testing.T) {
	req, _ := parse("GET / HTTP/1.1\r\nX-Trace: one\r\nX-Trace: two\r\n\r\n")

	if got := req.Headers["X-Trace"]; got != "two" {
		t.Errorf("Expected last value two, got %s", got)
	}
}

// TestParseStopsAtBlankLine tests that the body is left unread
func TestParseStopsAtBlankLine(t *testing.T) {
	req, r := parse("POST /string HTTP/1.1\r\nContent-Length: 11\r\n\r\nhello world")

	if len(req.Headers) != 1 {
		t.Errorf("Expected 1 header, got %d", len(req.Headers))
	}
	rest, _ := io.ReadAll(r)
	if string(rest) != "hello world" {
		t.Errorf("Expected body left in reader, got %q", rest)
	}
}

// TestParseStopsAtNonHeaderLine tests termination on the first line that is
// not a header
func TestParseStopsAtNonHeaderLine(t *testing.T) {
	req, r := parse("GET / HTTP/1.1\r\nA: 1\r\nnot a header\r\nB: 2\r\n\r\n")

	if _, ok := req.Headers["B"]; ok {
		t.Error("Header after the terminating line must not be parsed")
	}
	rest, _ := io.ReadAll(r)
	if string(rest) != "B: 2\r\n\r\n" {
		t.Errorf("Unexpected remainder %q", rest)
	}
}

// TestParseMalformed tests requests that do not have a valid request line
func TestParseMalformed(t *testing.T) {
	tests := []string{
		"GARBAGE\r\n\r\n",
		"GET /path\r\n\r\n",
		"GET /path FTP/1.0\r\nHost: x\r\n\r\n",
		"GET  /a b HTTP/1.1\r\n\r\n",
		"",
	}

	for _, raw := range tests {
		req, _ := parse(raw)
		if req.Valid() {
			t.Errorf("%q: expected invalid request", raw)
		}
		if req.Method != "" || req.Path != "" || req.Version != "" {
			t.Errorf("%q: expected empty request line fields", raw)
		}
		if req.Headers == nil || len(req.Headers) != 0 {
			t.Errorf("%q: expected empty header map", raw)
		}
	}
}

// TestParseHeaderBlockWithoutCR tests bare LF line endings
func TestParseHeaderBlockWithoutCR(t *testing.T) {
	req := ParseHeaderBlock([]byte("GET /info HTTP/1.0\nHost: x\n\n"))

	if req.Path != "/info" || req.Version != "1.0" {
		t.Errorf("Unexpected request line %q %q", req.Path, req.Version)
	}
	if req.Headers["Host"] != "x" {
		t.Errorf("Expected Host x, got %q", req.Headers["Host"])
	}
}

func TestContentLength(t *testing.T) {
	tests := []struct {
		raw    string
		n      int64
		ok     bool
		hasErr bool
	}{
		{"GET / HTTP/1.1\r\n\r\n", 0, false, false},
		{"POST / HTTP/1.1\r\nContent-Length: 11\r\n\r\n", 11, true, false},
		{"POST / HTTP/1.1\r\nContent-Length: 0\r\n\r\n", 0, true, false},
		{"POST / HTTP/1.1\r\nContent-Length: eleven\r\n\r\n", 0, true, true},
		{"POST / HTTP/1.1\r\nContent-Length: -1\r\n\r\n", 0, true, true},
	}

	for _, tt := range tests {
		req, _ := parse(tt.raw)
		n, ok, err := req.ContentLength()
		if n != tt.n || ok != tt.ok || (err != nil) != tt.hasErr {
			t.Errorf("%q: got (%d, %v, %v)", tt.raw, n, ok, err)
		}
		if tt.hasErr && !errors.Is(err, ErrInvalidContentLength) {
			t.Errorf("%q: expected ErrInvalidContentLength, got %v", tt.raw, err)
		}
	}
}

func TestKeepAlive(t *testing.T) {
	tests := []struct {
		version string
		want    bool
	}{
		{"1.1", true},
		{"2.0", true},
		{"1.0", false},
		{"1.05", false},
		{"0.9", false},
		{"", false},
		{"x", false},
	}

	for _, tt := range tests {
		req := &Request{Version: tt.version}
		if got := req.KeepAlive(); got != tt.want {
			t.Errorf("Version %q: expected keep-alive=%v, got %v", tt.version, tt.want, got)
		}
	}
}

func TestHeaderLookup(t *testing.T) {
	req := &Request{Headers: map[string]string{"content-type": "text/plain"}}

	if got := req.Header("Content-Type"); got != "text/plain" {
		t.Errorf("Expected case-insensitive fallback, got %q", got)
	}
	if got := req.Header("Accept"); got != "" {
		t.Errorf("Expected empty, got %q", got)
	}
}

func TestParam(t *testing.T) {
	req := &Request{PathMatch: []string{"/match/abc123", "abc123"}}

	if req.Param(0) != "/match/abc123" || req.Param(1) != "abc123" {
		t.Errorf("Unexpected params %v", req.PathMatch)
	}
	if req.Param(2) != "" || req.Param(-1) != "" {
		t.Error("Expected empty string for missing groups")
	}
}

func TestReleaseRequestResets(t *testing.T) {
	req, _ := parse("GET /a HTTP/1.1\r\nA: b\r\n\r\n")
	ReleaseRequest(req)

	if req.Valid() || len(req.Headers) != 0 || req.Body != nil || req.PathMatch != nil {
		t.Error("Expected released request to be reset")
	}
}

func BenchmarkParseRequest(b *testing.B) {
	raw := []byte("GET /match/abc123 HTTP/1.1\r\nHost: localhost\r\nUser-Agent: bench\r\nAccept: */*\r\n\r\n")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ReleaseRequest(ParseHeaderBlock(raw))
	}
}
