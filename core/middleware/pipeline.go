package middleware

import (
	"bytes"
	"io"
	"strconv"
	"time"

	"github.com/searchktools/webframe/core/http"
)

// Middleware wraps a handler
type Middleware func(http.Handler) http.Handler

// Pipeline is an ordered middleware chain. The first middleware added is the
// outermost.
type Pipeline struct {
	middlewares []Middleware
}

// NewPipeline creates a new middleware pipeline
func NewPipeline() *Pipeline {
	return &Pipeline{
		middlewares: make([]Middleware, 0, 8),
	}
}

// Use adds a middleware to the pipeline
func (p *Pipeline) Use(m ...Middleware) *Pipeline {
	p.middlewares = append(p.middlewares, m...)
	return p
}

// Len returns the number of middlewares
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// Then wraps h in every middleware of the pipeline
func (p *Pipeline) Then(h http.Handler) http.Handler {
	// Fast path: no middlewares
	if p == nil || len(p.middlewares) == 0 {
		return h
	}

	for i := len(p.middlewares) - 1; i >= 0; i-- {
		h = p.middlewares[i](h)
	}
	return h
}

// Common middleware implementations

// Recovery answers a panicking handler with an empty 500 instead of letting
// the panic close the connection. Anything the handler already wrote is
// discarded.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return func(w io.Writer, req *http.Request) {
			var buf bytes.Buffer
			defer func() {
				if r := recover(); r != nil {
					req.Log.Error().Interface("panic", r).Msg("panic recovered")
					http.Error(w, 500)
					return
				}
				w.Write(buf.Bytes())
			}()
			next(&buf, req)
		}
	}
}

// Logger writes one access log line per request to the request logger
func Logger() Middleware {
	return func(next http.Handler) http.Handler {
		return func(w io.Writer, req *http.Request) {
			start := time.Now()
			rec := &recorder{w: w}
			next(rec, req)

			req.Log.Info().
				Int("status", rec.status()).
				Int("bytes", rec.n).
				Dur("duration", time.Since(start)).
				Msg("request")
		}
	}
}

// recorder counts written bytes and keeps the status line
type recorder struct {
	w    io.Writer
	n    int
	line []byte
}

func (r *recorder) Write(p []byte) (int, error) {
	if len(r.line) < 16 {
		r.line = append(r.line, p[:min(len(p), 16-len(r.line))]...)
	}
	n, err := r.w.Write(p)
	r.n += n
	return n, err
}

// status parses the code of "HTTP/1.1 200 ..."; 0 when nothing was written
func (r *recorder) status() int {
	i := bytes.IndexByte(r.line, ' ')
	if i < 0 || len(r.line) < i+4 {
		return 0
	}
	code, err := strconv.Atoi(string(r.line[i+1 : i+4]))
	if err != nil {
		return 0
	}
	return code
}
