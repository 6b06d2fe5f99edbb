// Package announcer implements the dong role: a fire-and-forget
// announcement sent to a fixed endpoint at a fixed cadence.
package announcer

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/pingpong/internal/config"
	"github.com/pingpong/internal/monitor"
	"github.com/pingpong/internal/pacing"
	"github.com/pingpong/internal/protocol"
	"github.com/pingpong/internal/transport"
)

// Announcer periodically sends "dong" and never reads
type Announcer struct {
	config config.AnnouncerConfig
	remote *net.UDPAddr
	socket *transport.Socket
	sink   monitor.Sink
	logger *slog.Logger

	sent atomic.Uint64
}

// New creates an announcer for cfg. The remote endpoint is resolved here.
func New(cfg config.AnnouncerConfig, sink monitor.Sink, logger *slog.Logger) (*Announcer, error) {
	remote, err := transport.Resolve(cfg.Remote)
	if err != nil {
		return nil, err
	}

	return &Announcer{
		config: cfg,
		remote: remote,
		sink:   monitor.OrNop(sink),
		logger: logger.With("role", protocol.RoleAnnouncer),
	}, nil
}

// Listen binds the local socket, on an ephemeral port unless one is configured
func (a *Announcer) Listen() error {
	socket, err := transport.Bind(protocol.ListenAddr(a.config.LocalPort), transport.Options{
		ReusePort: a.config.ReusePort,
	})
	if err != nil {
		return err
	}
	a.socket = socket
	a.logger.Info("announcer bound", "local", socket.LocalAddr().String(), "interval", a.config.Interval)
	return nil
}

// Run announces until ctx is cancelled or a send fails. Cancellation
// returns nil; a send failure is fatal.
func (a *Announcer) Run(ctx context.Context) error {
	if a.socket == nil {
		if err := a.Listen(); err != nil {
			return err
		}
	}
	defer a.socket.Close()

	_, err := pacing.Repeat(ctx, 0, a.config.Interval, func(int) error {
		return a.announce()
	})
	if err != nil {
		return fmt.Errorf("announcer send failed: %w", err)
	}
	return nil
}

func (a *Announcer) announce() error {
	if err := a.socket.SendTo(protocol.NewDongMessage(), a.remote); err != nil {
		return err
	}

	a.sent.Add(1)
	a.logger.Info("sent", "peer", a.remote.String(), "payload", protocol.TypeDong)
	a.sink.Publish(monitor.Event{
		Kind:    monitor.EventSent,
		Role:    protocol.RoleAnnouncer,
		Peer:    a.remote.String(),
		Payload: protocol.TypeDong,
	})
	return nil
}

// LocalAddr returns the bound local endpoint, or nil before Listen
func (a *Announcer) LocalAddr() net.Addr {
	if a.socket == nil {
		return nil
	}
	return a.socket.LocalAddr()
}

// Sent returns the number of announcements sent
func (a *Announcer) Sent() uint64 {
	return a.sent.Load()
}
