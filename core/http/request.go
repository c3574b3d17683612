package http

import (
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Request is one parsed HTTP/1.x request
type Request struct {
	Method  string
	Path    string
	Version string // "1.1" for HTTP/1.1

	// Headers keeps names as sent; a repeated name overwrites the earlier value
	Headers map[string]string

	// Body is set only when Content-Length was declared
	Body io.Reader

	// PathMatch holds the winning route match: index 0 is the whole path,
	// index i the i-th capture group
	PathMatch []string

	RemoteAddr string

	// Log is a request-scoped logger
	Log zerolog.Logger
}

var requestPool = sync.Pool{
	New: func() any {
		return &Request{
			Headers: make(map[string]string, 8),
		}
	},
}

// AcquireRequest returns an empty request from the pool
func AcquireRequest() *Request {
	req := requestPool.Get().(*Request)
	if req.Headers == nil {
		req.Headers = make(map[string]string, 8)
	}
	return req
}

// Reset resets the request for reuse (memory not freed, just reset)
func (r *Request) Reset() {
	r.Method = ""
	r.Path = ""
	r.Version = ""
	r.Body = nil
	r.PathMatch = nil
	r.RemoteAddr = ""
	r.Log = zerolog.Nop()

	// Clear map without freeing memory
	for k := range r.Headers {
		delete(r.Headers, k)
	}
}

// ReleaseRequest puts req back into the pool
func ReleaseRequest(req *Request) {
	req.Reset()
	requestPool.Put(req)
}

// Valid reports whether the request line was parsed.
func (r *Request) Valid() bool {
	return r.Method != "" || r.Path != "" || r.Version != ""
}

// Header returns the value for name. An exact match is tried first, then a
// case-insensitive one.
func (r *Request) Header(name string) string {
	if v, ok := r.Headers[name]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// ContentLength returns the declared body length. ok is false when no
// Content-Length header was sent.
func (r *Request) ContentLength() (n int64, ok bool, err error) {
	v, ok := r.Headers[HeaderContentLength]
	if !ok {
		return 0, false, nil
	}

	n, err = strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n < 0 {
		return 0, true, ErrInvalidContentLength
	}
	return n, true, nil
}

// KeepAlive reports whether the declared version allows a persistent
// connection: the version read as a number must be greater than 1.05.
func (r *Request) KeepAlive() bool {
	v, err := strconv.ParseFloat(r.Version, 64)
	if err != nil {
		return false
	}
	return v > 1.05
}

// Param returns capture group i of the route match, or "" if absent
func (r *Request) Param(i int) string {
	if i < 0 || i >= len(r.PathMatch) {
		return ""
	}
	return r.PathMatch[i]
}
