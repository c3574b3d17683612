package core

import (
	"context"
	"errors"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"

	"github.com/searchktools/webframe/core/http"
	"github.com/searchktools/webframe/core/middleware"
	"github.com/searchktools/webframe/core/observability"
	"github.com/searchktools/webframe/core/pools"
	"github.com/searchktools/webframe/core/router"
)

// Options configures an Engine
type Options struct {
	// Threads is the number of dispatcher workers, the Start caller included.
	// 0 means runtime.NumCPU().
	Threads int

	// Transport defaults to a PlainTransport
	Transport Transport

	Logger zerolog.Logger

	// NotFound makes unmatched requests get an empty 404 response instead
	// of no response at all
	NotFound bool

	// IdleTimeout bounds the wait for a request header block; 0 waits forever
	IdleTimeout time.Duration

	// Monitor records per-route metrics; nil creates one
	Monitor *observability.Monitor
}

// Engine is an HTTP/1.x server: an accept loop feeding per-connection
// pipelines, all run as tasks on one shared dispatcher.
type Engine struct {
	resources *router.Table
	defaults  *router.Table
	router    *router.Router
	pipeline  *middleware.Pipeline

	transport  Transport
	listener   net.Listener
	dispatcher *pools.Dispatcher
	threads    int

	log         zerolog.Logger
	notFound    bool
	idleTimeout time.Duration
	monitor     *observability.Monitor

	bytes   *pools.BytePool
	buffers *pools.BufferPool

	// sizes holds the last response size per route, used to pick the
	// buffer tier of the next response
	sizes *xsync.MapOf[string, int]

	conns    *xsync.MapOf[uint64, *Connection]
	nextID   atomic.Uint64
	accepted atomic.Uint64
	rejected atomic.Uint64

	ctx       context.Context
	cancel    context.CancelFunc
	started   atomic.Bool
	closed    atomic.Bool
	ready     chan struct{}
	closeOnce sync.Once
}

// NewEngine creates a new engine instance
func NewEngine(opts Options) *Engine {
	if opts.Threads <= 0 {
		opts.Threads = runtime.NumCPU()
	}
	if opts.Transport == nil {
		opts.Transport = &PlainTransport{}
	}
	if opts.Monitor == nil {
		opts.Monitor = observability.NewMonitor()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		resources:   router.NewTable(),
		defaults:    router.NewTable(),
		pipeline:    middleware.NewPipeline(),
		transport:   opts.Transport,
		dispatcher:  pools.NewDispatcher(),
		threads:     opts.Threads,
		log:         opts.Logger,
		notFound:    opts.NotFound,
		idleTimeout: opts.IdleTimeout,
		monitor:     opts.Monitor,
		bytes:       pools.NewBytePool(),
		buffers:     pools.NewBufferPool(),
		sizes:       xsync.NewMapOf[string, int](),
		conns:       xsync.NewMapOf[uint64, *Connection](),
		ctx:         ctx,
		cancel:      cancel,
		ready:       make(chan struct{}),
	}
}

// Resource returns the method map of an explicit resource pattern.
// Registration is only allowed before the engine starts.
func (e *Engine) Resource(pattern string) router.Methods {
	e.mustNotBeStarted()
	return e.resources.Resource(pattern)
}

// DefaultResource returns the method map of a default resource pattern,
// consulted only after every explicit resource failed to match.
func (e *Engine) DefaultResource(pattern string) router.Methods {
	e.mustNotBeStarted()
	return e.defaults.Resource(pattern)
}

func (e *Engine) mustNotBeStarted() {
	if e.started.Load() {
		panic(ErrEngineStarted)
	}
}

// Use adds middlewares wrapping every handler, explicit and default
func (e *Engine) Use(m ...middleware.Middleware) {
	e.mustNotBeStarted()
	e.pipeline.Use(m...)
}

// GET registers a GET handler for pattern
func (e *Engine) GET(pattern string, handler http.Handler) {
	e.Resource(pattern)["GET"] = handler
}

// POST registers a POST handler for pattern
func (e *Engine) POST(pattern string, handler http.Handler) {
	e.Resource(pattern)["POST"] = handler
}

// PUT registers a PUT handler for pattern
func (e *Engine) PUT(pattern string, handler http.Handler) {
	e.Resource(pattern)["PUT"] = handler
}

// DELETE registers a DELETE handler for pattern
func (e *Engine) DELETE(pattern string, handler http.Handler) {
	e.Resource(pattern)["DELETE"] = handler
}

// PATCH registers a PATCH handler for pattern
func (e *Engine) PATCH(pattern string, handler http.Handler) {
	e.Resource(pattern)["PATCH"] = handler
}

// HEAD registers a HEAD handler for pattern
func (e *Engine) HEAD(pattern string, handler http.Handler) {
	e.Resource(pattern)["HEAD"] = handler
}

// OPTIONS registers an OPTIONS handler for pattern
func (e *Engine) OPTIONS(pattern string, handler http.Handler) {
	e.Resource(pattern)["OPTIONS"] = handler
}

// Start listens on addr and serves until Close. The caller joins the
// dispatcher's worker set.
func (e *Engine) Start(addr string) error {
	ln, err := e.transport.Listen(addr)
	if err != nil {
		return err
	}
	return e.Serve(ln)
}

// Serve accepts connections from ln until Close. Routes are frozen on entry.
func (e *Engine) Serve(ln net.Listener) error {
	if e.closed.Load() {
		ln.Close()
		return ErrEngineClosed
	}
	if !e.started.CompareAndSwap(false, true) {
		ln.Close()
		return ErrEngineStarted
	}

	r, err := router.Compile(e.resources, e.defaults)
	if err != nil {
		ln.Close()
		return err
	}
	e.router = r
	e.listener = ln

	e.log.Info().
		Str("addr", ln.Addr().String()).
		Str("transport", e.transport.Name()).
		Int("threads", e.threads).
		Int("routes", r.Len()).
		Msg("server listening")

	e.accept(0)
	close(e.ready)
	if e.closed.Load() {
		// Close ran before the listener was published
		ln.Close()
	}
	e.dispatcher.Run(e.threads)

	e.log.Info().Msg("server stopped")
	return nil
}

// Ready is closed once the engine is accepting connections
func (e *Engine) Ready() <-chan struct{} {
	return e.ready
}

// Addr returns the listening address, nil before Serve
func (e *Engine) Addr() net.Addr {
	select {
	case <-e.ready:
		return e.listener.Addr()
	default:
		return nil
	}
}

// accept issues one Accept; its completion re-arms the next accept before
// handing the connection on
func (e *Engine) accept(delay time.Duration) {
	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		raw, err := e.listener.Accept()
		if !e.dispatcher.Post(func() { e.onAccept(raw, err, delay) }) && raw != nil {
			raw.Close()
		}
	}()
}

func (e *Engine) onAccept(raw net.Conn, err error, delay time.Duration) {
	if err != nil {
		if e.closed.Load() || errors.Is(err, net.ErrClosed) {
			return
		}

		// Back off on accept errors such as EMFILE
		if delay == 0 {
			delay = 5 * time.Millisecond
		} else {
			delay = min(delay*2, time.Second)
		}
		e.log.Warn().Err(err).Dur("retry", delay).Msg("accept error")
		e.accept(delay)
		return
	}

	e.accept(0)
	e.accepted.Add(1)

	go func() {
		conn, err := e.transport.Handshake(e.ctx, raw)
		if err != nil {
			e.rejected.Add(1)
			e.log.Debug().Err(err).Str("remote", raw.RemoteAddr().String()).Msg("handshake failed")
			raw.Close()
			return
		}
		if !e.dispatcher.Post(func() { e.serveConn(conn) }) {
			conn.Close()
		}
	}()
}

// serveConn registers conn and starts its pipeline
func (e *Engine) serveConn(conn net.Conn) {
	c := &Connection{
		id:         e.nextID.Add(1),
		conn:       conn,
		state:      StateAwaitingHeaders,
		chunk:      e.bytes.Get(readChunkSize),
		pending:    make([]byte, 0, readChunkSize),
		lastActive: time.Now(),
	}
	c.log = e.log.With().
		Uint64("conn", c.id).
		Str("remote", conn.RemoteAddr().String()).
		Logger()

	e.conns.Store(c.id, c)
	if e.closed.Load() {
		e.closeConnection(c, ErrEngineClosed)
		return
	}

	c.log.Debug().Msg("connection opened")
	e.step(c)
}

// Close stops accepting, closes open connections and lets Serve return
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.cancel()

		if e.started.Load() {
			select {
			case <-e.ready:
				err = e.listener.Close()
			default:
			}
		}

		// Closing the sockets fails any outstanding read or write
		e.conns.Range(func(_ uint64, c *Connection) bool {
			c.conn.Close()
			return true
		})

		e.dispatcher.Close()
	})
	return err
}
