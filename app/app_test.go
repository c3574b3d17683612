package app

import (
	"bytes"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/searchktools/webframe/config"
	"github.com/searchktools/webframe/core"
	"github.com/searchktools/webframe/core/http"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		env       string
		level     string
		wantLevel zerolog.Level
		wantJSON  bool
	}{
		{"production json", "production", "warn", zerolog.WarnLevel, true},
		{"development console", "development", "debug", zerolog.DebugLevel, false},
		{"unknown level", "production", "loud", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Env = tt.env
			cfg.LogLevel = tt.level

			var out bytes.Buffer
			log := NewLogger(cfg, &out)
			if log.GetLevel() != tt.wantLevel {
				t.Errorf("Expected level %v, got %v", tt.wantLevel, log.GetLevel())
			}

			log.WithLevel(tt.wantLevel).Msg("hello")
			line := out.String()
			if !strings.Contains(line, "hello") {
				t.Fatalf("Expected message in output, got %q", line)
			}
			if isJSON := strings.HasPrefix(line, "{"); isJSON != tt.wantJSON {
				t.Errorf("Expected JSON=%v, got %q", tt.wantJSON, line)
			}
		})
	}
}

func TestNewTransport(t *testing.T) {
	cfg := config.Default()
	cfg.MaxConnections = 10

	transport, err := NewTransport(cfg)
	if err != nil {
		t.Fatal(err)
	}
	plain, ok := transport.(*core.PlainTransport)
	if !ok {
		t.Fatalf("Expected PlainTransport, got %T", transport)
	}
	if plain.MaxConnections != 10 {
		t.Errorf("Expected 10 max connections, got %d", plain.MaxConnections)
	}

	cfg.CertFile = "missing.crt"
	cfg.KeyFile = "missing.key"
	if _, err := NewTransport(cfg); err == nil {
		t.Error("Expected error for missing key pair")
	}
}

func TestNew(t *testing.T) {
	cfg := config.Default()
	cfg.Threads = 2

	a, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if a.Engine() == nil {
		t.Fatal("Expected engine")
	}
	if s := a.Engine().Stats(); s.Transport != "http" {
		t.Errorf("Expected http transport, got %s", s.Transport)
	}
}

func TestAppLogger(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "error"

	a, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if a.Logger().GetLevel() != zerolog.ErrorLevel {
		t.Errorf("Expected error level, got %v", a.Logger().GetLevel())
	}

	// Derived loggers share the configured level
	sub := a.Logger().With().Str("component", "test").Logger()
	if sub.GetLevel() != zerolog.ErrorLevel {
		t.Errorf("Expected error level on sub logger, got %v", sub.GetLevel())
	}
	a.Logger().Debug().Msg("filtered")
}

func TestMetricsDisabled(t *testing.T) {
	tests := []struct {
		name    string
		metrics bool
		want    uint64
	}{
		{"enabled", true, 1},
		{"disabled", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Threads = 2
			cfg.LogLevel = "error"
			cfg.Metrics = tt.metrics

			a, err := New(cfg)
			if err != nil {
				t.Fatal(err)
			}
			engine := a.Engine()
			engine.GET(`^/ping$`, func(w io.Writer, req *http.Request) {
				http.WriteResponse(w, 200, "", []byte("pong"))
			})

			ln, err := net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				t.Fatal(err)
			}
			served := make(chan error, 1)
			go func() { served <- engine.Serve(ln) }()
			defer func() {
				engine.Close()
				<-served
			}()
			<-engine.Ready()

			conn, err := net.Dial("tcp", ln.Addr().String())
			if err != nil {
				t.Fatal(err)
			}
			defer conn.Close()
			conn.SetDeadline(time.Now().Add(5 * time.Second))

			want := "HTTP/1.1 200 OK\r\nContent-Length: 4\r\n\r\npong"
			io.WriteString(conn, "GET /ping HTTP/1.1\r\n\r\n")
			got := make([]byte, len(want))
			if _, err := io.ReadFull(conn, got); err != nil || string(got) != want {
				t.Fatalf("Expected %q, got %q (%v)", want, got, err)
			}

			if n := engine.Stats().Requests.TotalRequests; n != tt.want {
				t.Errorf("Expected %d recorded requests, got %d", tt.want, n)
			}
		})
	}
}
