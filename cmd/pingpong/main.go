package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pingpong/internal/announcer"
	"github.com/pingpong/internal/config"
	"github.com/pingpong/internal/monitor"
	"github.com/pingpong/internal/prober"
	"github.com/pingpong/internal/protocol"
	"github.com/pingpong/internal/responder"
)

// Set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

const usage = `Usage:
  pingpong [options] --ping x.x.x.x:9999 [local_port]  (send 'ping' and log every reply)
  pingpong [options] --pong 9999                       (receive 'ping' and reply with 'pong' for 30 minutes)
  pingpong [options] --dong x.x.x.x:9999 [local_port]  (send 'dong' every second)

Options:
`

// role is the common shape of the three modes
type role interface {
	Run(ctx context.Context) error
}

type invocation struct {
	role       string
	remote     string
	port       int
	localPort  int
	configPath string
	logLevel   string
	monitor    string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	inv, err := parseArgs(args)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(stderr, "Error: %v\n\n", err)
		}
		printUsage(stderr)
		return 1
	}

	// Load configuration
	cfg := config.DefaultConfig()
	if inv.configPath != "" {
		cfg, err = config.LoadConfig(inv.configPath)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
			return 1
		}
	}
	if err := inv.apply(cfg); err != nil {
		fmt.Fprintf(stderr, "Invalid arguments: %v\n", err)
		return 1
	}

	// Setup logger
	level := parseLogLevel(cfg.Logging.Level)
	if inv.logLevel != "" {
		level = parseLogLevel(inv.logLevel)
	}

	logger := slog.New(slog.NewTextHandler(stdout, &slog.HandlerOptions{
		Level: level,
	}))

	logger.Info("pingpong starting",
		"version", Version,
		"role", inv.role,
		"config", inv.configPath,
	)

	var hub *monitor.Hub
	var sink monitor.Sink
	if cfg.Monitor.ListenAddr != "" {
		hub = monitor.NewHub(inv.role, logger)
		sink = hub
		srv := monitor.NewServer(cfg.Monitor.ListenAddr, hub, logger)
		if err := srv.Start(); err != nil {
			logger.Error("failed to start monitor", "error", err)
			return 1
		}
		defer srv.Stop()
	}

	r, err := newRole(inv.role, cfg, sink, logger)
	if err != nil {
		logger.Error("failed to create role", "error", err)
		return 1
	}

	// Stop on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := r.Run(ctx); err != nil {
		logger.Error("stopped with error", "error", err)
		return 1
	}

	logger.Info("shutdown signal received, stopped")
	return 0
}

func newRole(name string, cfg *config.Config, sink monitor.Sink, logger *slog.Logger) (role, error) {
	switch name {
	case protocol.RoleProber:
		return prober.New(cfg.Prober, sink, logger)
	case protocol.RoleResponder:
		return responder.New(cfg.Responder, sink, logger), nil
	case protocol.RoleAnnouncer:
		return announcer.New(cfg.Announcer, sink, logger)
	default:
		return nil, fmt.Errorf("unknown role %q", name)
	}
}

func parseArgs(args []string) (*invocation, error) {
	fs := flag.NewFlagSet("pingpong", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		ping = fs.String("ping", "", "Send 'ping' to `host:port` and log replies")
		pong = fs.String("pong", "", "Listen on `port` and answer 'ping' with 'pong'")
		dong = fs.String("dong", "", "Send 'dong' to `host:port` every second")
		inv  = &invocation{}
	)
	fs.StringVar(&inv.configPath, "config", "", "Path to configuration file")
	fs.StringVar(&inv.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&inv.monitor, "monitor", "", "Serve /health, /metrics and /events on `addr`")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	modes := 0
	for _, m := range []string{*ping, *pong, *dong} {
		if m != "" {
			modes++
		}
	}
	if modes != 1 {
		return nil, errors.New("exactly one of --ping, --pong or --dong is required")
	}

	rest := fs.Args()
	switch {
	case *ping != "":
		inv.role = protocol.RoleProber
		inv.remote = *ping
	case *dong != "":
		inv.role = protocol.RoleAnnouncer
		inv.remote = *dong
	default:
		inv.role = protocol.RoleResponder
		port, err := protocol.ParsePort(*pong)
		if err != nil {
			return nil, err
		}
		if port == 0 {
			return nil, errors.New("--pong needs a non-zero port")
		}
		inv.port = port
		if len(rest) > 0 {
			return nil, fmt.Errorf("unexpected arguments: %v", rest)
		}
		return inv, nil
	}

	if len(rest) > 1 {
		return nil, fmt.Errorf("unexpected arguments: %v", rest[1:])
	}
	if len(rest) == 1 {
		port, err := protocol.ParsePort(rest[0])
		if err != nil {
			return nil, err
		}
		inv.localPort = port
	}
	return inv, nil
}

// apply overlays the command line on cfg and validates the selected role
func (inv *invocation) apply(cfg *config.Config) error {
	if inv.monitor != "" {
		cfg.Monitor.ListenAddr = inv.monitor
	}

	switch inv.role {
	case protocol.RoleProber:
		cfg.Prober.Remote = inv.remote
		if inv.localPort != 0 {
			cfg.Prober.LocalPort = inv.localPort
		}
		return cfg.ValidateProber()
	case protocol.RoleAnnouncer:
		cfg.Announcer.Remote = inv.remote
		if inv.localPort != 0 {
			cfg.Announcer.LocalPort = inv.localPort
		}
		return cfg.ValidateAnnouncer()
	default:
		cfg.Responder.Port = inv.port
		return cfg.ValidateResponder()
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, usage)
	fmt.Fprintln(w, "  -config string     Path to configuration file")
	fmt.Fprintln(w, "  -log-level string  Log level (debug, info, warn, error)")
	fmt.Fprintln(w, "  -monitor addr      Serve /health, /metrics and /events on addr")
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
