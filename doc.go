/*
Package webframe is a small HTTP/1.x server framework with regex routing.

Resources are path patterns (regular expressions matched against the whole
request path) mapped to per-method handlers. Explicit resources are tried in
registration order, then default resources. Capture groups of the winning
pattern are available to the handler. Every connection runs as a chain of
tasks on one shared dispatcher served by a fixed number of worker threads,
so a single process can serve plain HTTP or HTTPS on the same engine.

# Features

  - Regex routing with explicit and default resource tables
  - HTTP and HTTPS transports (crypto/tls), optional connection limit
  - Keep-alive for HTTP/1.1 and pipelined requests on one connection
  - Middleware pipeline (access log, panic recovery)
  - Per-route metrics and engine statistics as JSON or protobuf

# Quick Start

Basic usage example:

	package main

	import (
	    "io"

	    "github.com/searchktools/webframe/app"
	    "github.com/searchktools/webframe/config"
	    "github.com/searchktools/webframe/core/http"
	)

	func main() {
	    cfg := config.New()
	    application, err := app.New(cfg)
	    if err != nil {
	        panic(err)
	    }

	    engine := application.Engine()
	    engine.GET(`^/match/([0-9a-zA-Z]+)$`, func(w io.Writer, req *http.Request) {
	        http.String(w, 200, req.Param(1))
	    })

	    application.Run()
	}

# Modules

The framework is organized into several modules:

  - app: Application lifecycle, logger and transport selection
  - config: Flags, JSON file and environment configuration
  - core: Engine, connection state machine and transports
  - core/http: Request parsing and response writing
  - core/router: Resource tables and the compiled regex router
  - core/middleware: Handler middleware pipeline
  - core/pools: Task dispatcher, buffer pools and GC tuning
  - core/observability: Per-route request metrics
  - handlers: Example resources (echo, info, match, stats, static files)
*/
package webframe
