package core

import (
	"errors"
	"fmt"

	"github.com/searchktools/webframe/core/http"
)

// Error definitions
var (
	ErrEngineStarted = errors.New("engine already started")
	ErrEngineClosed  = errors.New("engine closed")
	ErrHandshake     = errors.New("transport handshake failed")
	ErrMalformed     = fmt.Errorf("malformed request line: %w", http.ErrInvalidRequest)
	ErrHandlerPanic  = errors.New("handler panicked")
)

// Default read chunk size for header and body reads
const readChunkSize = 8192
