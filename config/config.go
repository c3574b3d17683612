package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// EnvPrefix prefixes environment overrides, e.g. WEBFRAME_PORT
const EnvPrefix = "WEBFRAME"

// Config holds all application configuration.
type Config struct {
	Host    string `config:"host"`
	Port    int    `config:"port"`
	Threads int    `config:"threads"`

	// TLS is enabled when both are set
	CertFile string `config:"cert"`
	KeyFile  string `config:"key"`

	MaxConnections int           `config:"max.connections"`
	IdleTimeout    time.Duration `config:"idle.timeout"`
	NotFound       bool          `config:"not.found"`
	WebRoot        string        `config:"web.root"`
	GCPercent      int           `config:"gc.percent"`

	LogLevel  string `config:"log.level"`
	Env       string `config:"env"`
	AccessLog bool   `config:"access.log"`
	Recover   bool   `config:"recover"`
	Metrics   bool   `config:"metrics"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Port:     12345,
		Threads:  4,
		WebRoot:  "web",
		LogLevel: "info",
		Env:      "development",
		Metrics:  true,
	}
}

// New loads configuration from flags, an optional JSON file and env vars.
// It exits the process on invalid input.
func New() *Config {
	cfg, err := Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	return cfg
}

// Load parses args, then overlays the JSON file named by -config (or
// WEBFRAME_CONFIG) and WEBFRAME_* environment variables.
func Load(args []string) (*Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("webframe", flag.ContinueOnError)
	fs.StringVar(&cfg.Host, "host", cfg.Host, "Listen host (empty for all interfaces)")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "Listen port")
	fs.IntVar(&cfg.Threads, "threads", cfg.Threads, "Dispatcher worker threads")
	fs.StringVar(&cfg.CertFile, "cert", cfg.CertFile, "TLS certificate file")
	fs.StringVar(&cfg.KeyFile, "key", cfg.KeyFile, "TLS private key file")
	fs.IntVar(&cfg.MaxConnections, "max-connections", cfg.MaxConnections, "Max open connections (0 = unlimited)")
	fs.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "Max wait for a request header block (0 = forever)")
	fs.BoolVar(&cfg.NotFound, "not-found", cfg.NotFound, "Answer unmatched requests with 404 instead of silence")
	fs.StringVar(&cfg.WebRoot, "web-root", cfg.WebRoot, "Directory served by the default resource")
	fs.IntVar(&cfg.GCPercent, "gc-percent", cfg.GCPercent, "GOGC override (0 = runtime default)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug/info/warn/error)")
	fs.StringVar(&cfg.Env, "env", cfg.Env, "Environment (development/production)")
	fs.BoolVar(&cfg.AccessLog, "access-log", cfg.AccessLog, "Log every handled request")
	fs.BoolVar(&cfg.Metrics, "metrics", cfg.Metrics, "Record per-route request metrics")
	fs.BoolVar(&cfg.Recover, "recover", cfg.Recover, "Answer handler panics with 500 instead of closing the connection")
	file := fs.String("config", "", "JSON config file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	env := NewManager()
	env.LoadFromEnv(EnvPrefix)

	// WEBFRAME_CONFIG names the file when -config is not given
	path := *file
	if path == "" {
		path = env.GetString("config")
	}

	m := NewManager()
	if path != "" {
		if err := m.LoadFromJSON(path); err != nil {
			return nil, err
		}
	}
	m.LoadFromEnv(EnvPrefix)

	if err := m.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and TLS file pairing
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Threads < 1 {
		return fmt.Errorf("threads must be at least 1, got %d", c.Threads)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("max connections must not be negative, got %d", c.MaxConnections)
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return errors.New("cert and key must be set together")
	}
	return nil
}

// TLS reports whether HTTPS is configured
func (c *Config) TLS() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
