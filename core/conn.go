package core

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/searchktools/webframe/core/http"
)

// State is a connection pipeline state
type State int

// Connection states
const (
	StateAwaitingHeaders State = iota
	StateAwaitingBody
	StateDispatching
	StateWriting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingHeaders:
		return "awaiting-headers"
	case StateAwaitingBody:
		return "awaiting-body"
	case StateDispatching:
		return "dispatching"
	case StateWriting:
		return "writing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Connection is one accepted connection and the request currently in flight.
// Only the task chain of the connection touches it: at most one I/O
// operation is outstanding, and its completion is the next task.
type Connection struct {
	id    uint64
	conn  net.Conn
	state State
	log   zerolog.Logger

	// pending holds bytes read past the last consumed request
	pending []byte
	chunk   []byte

	request  *http.Request
	bodyLen  int64
	response *bytes.Buffer

	served     uint64
	lastActive time.Time
}

// await runs op on its own goroutine, then posts next with op's error to
// the dispatcher. If the dispatcher no longer accepts tasks the connection
// is closed.
func (e *Engine) await(c *Connection, op func() error, next func(error)) {
	go func() {
		err := op()
		if !e.dispatcher.Post(func() { next(err) }) {
			c.conn.Close()
		}
	}()
}

// step runs the handler of the current state
func (e *Engine) step(c *Connection) {
	switch c.state {
	case StateAwaitingHeaders:
		e.readHeaders(c)
	case StateAwaitingBody:
		e.readBody(c)
	case StateDispatching:
		e.dispatch(c)
	case StateWriting:
		e.write(c)
	case StateClosed:
		e.closeConnection(c, nil)
	}
}

// transition moves c to s and runs it
func (e *Engine) transition(c *Connection, s State) {
	c.state = s
	e.step(c)
}

// readHeaders waits until pending holds a full header block, then parses it
func (e *Engine) readHeaders(c *Connection) {
	if end := bytes.Index(c.pending, http.HeaderTerminator); end >= 0 {
		e.parseHeaders(c, end+len(http.HeaderTerminator))
		return
	}

	e.await(c, func() error {
		return e.readUntilTerminator(c)
	}, func(err error) {
		if err != nil {
			e.closeConnection(c, err)
			return
		}
		e.readHeaders(c)
	})
}

// readUntilTerminator reads into pending until it contains the header
// terminator. It runs off the dispatcher.
func (e *Engine) readUntilTerminator(c *Connection) error {
	for {
		if e.idleTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(e.idleTimeout))
		}

		n, err := c.conn.Read(c.chunk)

		// The terminator may straddle two reads
		from := len(c.pending) - (len(http.HeaderTerminator) - 1)
		if from < 0 {
			from = 0
		}
		c.pending = append(c.pending, c.chunk[:n]...)

		if bytes.Contains(c.pending[from:], http.HeaderTerminator) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// parseHeaders parses the header block pending[:n] and keeps the rest
func (e *Engine) parseHeaders(c *Connection, n int) {
	req := http.ParseHeaderBlock(c.pending[:n])
	c.pending = consume(c.pending, n)
	c.lastActive = time.Now()

	if !req.Valid() {
		e.monitor.RecordMalformed()
		http.ReleaseRequest(req)
		e.closeConnection(c, ErrMalformed)
		return
	}

	req.RemoteAddr = c.conn.RemoteAddr().String()
	req.Log = c.log.With().
		Str("method", req.Method).
		Str("path", req.Path).
		Logger()
	c.request = req

	n64, ok, err := req.ContentLength()
	if err != nil {
		e.closeConnection(c, err)
		return
	}
	if ok {
		c.bodyLen = n64
		e.transition(c, StateAwaitingBody)
		return
	}

	e.transition(c, StateDispatching)
}

// readBody attaches exactly bodyLen bytes to the request, taking what is
// already pending first
func (e *Engine) readBody(c *Connection) {
	if int64(len(c.pending)) >= c.bodyLen {
		body := make([]byte, c.bodyLen)
		copy(body, c.pending)
		c.pending = consume(c.pending, int(c.bodyLen))
		c.request.Body = bytes.NewReader(body)
		e.transition(c, StateDispatching)
		return
	}

	body := bytes.NewBuffer(make([]byte, 0, min(c.bodyLen, readChunkSize*4)))
	body.Write(c.pending)
	remaining := c.bodyLen - int64(len(c.pending))
	c.pending = c.pending[:0]

	e.await(c, func() error {
		if e.idleTimeout > 0 {
			// The idle timeout covers header blocks only
			c.conn.SetReadDeadline(time.Time{})
		}
		_, err := io.CopyN(body, c.conn, remaining)
		return err
	}, func(err error) {
		if err != nil {
			e.closeConnection(c, err)
			return
		}
		c.request.Body = bytes.NewReader(body.Bytes())
		e.transition(c, StateDispatching)
	})
}

// dispatch resolves the route and runs its handler into a buffer sized by
// the previous response of the same route
func (e *Engine) dispatch(c *Connection) {
	req := c.request

	m, ok := e.router.Resolve(req.Path, req.Method)
	if !ok {
		e.monitor.RecordUnmatched()
		req.Log.Debug().Msg("no route")

		if !e.notFound {
			// Nothing is written; the connection waits for the next request
			e.finishRequest(c)
			e.transition(c, StateAwaitingHeaders)
			return
		}

		c.response = e.buffers.Get(0)
		http.Error(c.response, 404)
		e.transition(c, StateWriting)
		return
	}

	req.PathMatch = m.Groups
	route := req.Method + " " + m.Pattern
	hint, _ := e.sizes.Load(route)
	buf := e.buffers.Get(hint)

	start := time.Now()
	err := invoke(e.pipeline.Then(m.Handler), buf, req)
	e.monitor.RecordRequest(route, time.Since(start), err != nil)

	if err != nil {
		e.buffers.Put(buf)
		e.closeConnection(c, err)
		return
	}
	e.sizes.Store(route, buf.Len())

	c.response = buf
	e.transition(c, StateWriting)
}

// invoke runs h, turning a panic into an error
func invoke(h http.Handler, w io.Writer, req *http.Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	h(w, req)
	return nil
}

// write sends the response buffer and decides whether to keep the
// connection
func (e *Engine) write(c *Connection) {
	buf := c.response

	e.await(c, func() error {
		_, err := c.conn.Write(buf.Bytes())
		return err
	}, func(err error) {
		e.buffers.Put(buf)
		c.response = nil

		if err != nil {
			e.closeConnection(c, err)
			return
		}

		c.served++
		c.lastActive = time.Now()
		keepAlive := c.request.KeepAlive()
		e.finishRequest(c)

		if !keepAlive {
			e.transition(c, StateClosed)
			return
		}
		e.transition(c, StateAwaitingHeaders)
	})
}

// finishRequest releases the request of the current cycle
func (e *Engine) finishRequest(c *Connection) {
	if c.request != nil {
		http.ReleaseRequest(c.request)
		c.request = nil
	}
	c.bodyLen = 0
}

// closeConnection closes c and releases its buffers. err is the reason,
// nil for an orderly close.
func (e *Engine) closeConnection(c *Connection, err error) {
	if _, ok := e.conns.LoadAndDelete(c.id); !ok {
		return
	}
	last := c.state
	c.state = StateClosed

	ev := c.log.Debug().
		Stringer("state", last).
		Uint64("served", c.served).
		Dur("idle", time.Since(c.lastActive))
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		ev.Msg("connection closed")
	default:
		ev.Err(err).Msg("connection aborted")
	}

	c.conn.Close()

	e.finishRequest(c)
	if c.response != nil {
		e.buffers.Put(c.response)
		c.response = nil
	}
	if c.chunk != nil {
		e.bytes.Put(c.chunk)
		c.chunk = nil
	}
	c.pending = nil
}

// consume drops the first n bytes of b, reusing its storage
func consume(b []byte, n int) []byte {
	return b[:copy(b, b[n:])]
}
