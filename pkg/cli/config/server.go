package config

import (
	"log/slog"
	"time"

	"github.com/secmon-lab/notelens/pkg/controller/ws"
	"github.com/urfave/cli/v3"
)

// Server holds CLI flags for the HTTP and websocket endpoint
type Server struct {
	addr         string
	origins      []string
	pingInterval time.Duration
}

// Flags returns CLI flags for server configuration
func (s *Server) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       "127.0.0.1:8000",
			Category:    "Server",
			Sources:     cli.EnvVars("NOTELENS_ADDR"),
			Destination: &s.addr,
		},
		&cli.StringSliceFlag{
			Name:        "allowed-origin",
			Usage:       "Host pattern allowed to open cross origin websocket connections",
			Category:    "Server",
			Sources:     cli.EnvVars("NOTELENS_ALLOWED_ORIGINS"),
			Destination: &s.origins,
		},
		&cli.DurationFlag{
			Name:        "ping-interval",
			Usage:       "Keepalive ping interval for websocket subscribers",
			Value:       ws.DefaultPingInterval,
			Category:    "Server",
			Sources:     cli.EnvVars("NOTELENS_PING_INTERVAL"),
			Destination: &s.pingInterval,
		},
	}
}

// LogAttrs returns log attributes for the server configuration
func (s *Server) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("addr", s.addr),
		slog.Any("allowed_origins", s.origins),
		slog.Duration("ping_interval", s.pingInterval),
	}
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) applyFile(c flagSetter, f *ServerFile) error {
	setString(c, "addr", &s.addr, f.Addr)
	if !c.IsSet("allowed-origin") && len(f.AllowedOrigins) > 0 {
		s.origins = f.AllowedOrigins
	}
	return setDuration(c, "ping-interval", &s.pingInterval, f.PingInterval)
}

// GatewayOptions returns the websocket gateway options
func (s *Server) GatewayOptions() []ws.Option {
	return []ws.Option{
		ws.WithPingInterval(s.pingInterval),
		ws.WithOriginPatterns(s.origins...),
	}
}
