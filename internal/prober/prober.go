// Package prober implements the ping role: send one probe, then log every
// reply that arrives.
package prober

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

// Prober sends a single probe and listens for replies indefinitely
type Prober struct {
	config config.ProberConfig
	remote *net.UDPAddr
	socket *transport.Socket
	sink   monitor.Sink
	logger *slog.Logger

	sent     atomic.Uint64
	received atomic.Uint64
}

// New creates a prober for cfg. The remote endpoint is resolved here.
func New(cfg config.ProberConfig, sink monitor.Sink, logger *slog.Logger) (*Prober, error) {
	remote, err := transport.Resolve(cfg.Remote)
	if err != nil {
		return nil, err
	}

	return &Prober{
		config: cfg,
		remote: remote,
		sink:   monitor.OrNop(sink),
		logger: logger.With("role", protocol.RoleProber),
	}, nil
}

// Listen binds the local socket, on an ephemeral port unless one is configured
func (p *Prober) Listen() error {
	socket, err := transport.Bind(protocol.ListenAddr(p.config.LocalPort), transport.Options{
		ReusePort: p.config.ReusePort,
	})
	if err != nil {
		return err
	}
	p.socket = socket
	p.logger.Info("prober bound", "local", socket.LocalAddr().String())
	return nil
}

// Run sends the probe and then logs replies until ctx is cancelled or the
// transport fails. Cancellation returns nil.
func (p *Prober) Run(ctx context.Context) error {
	if p.socket == nil {
		if err := p.Listen(); err != nil {
			return err
		}
	}
	defer p.socket.Close()

	stop := context.AfterFunc(ctx, func() { p.socket.Close() })
	defer stop()

	if err := p.probe(); err != nil {
		return err
	}

	buf := transport.NewBuffer()
	for {
		n, from, err := p.socket.ReceiveFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("prober receive failed: %w", err)
		}

		p.received.Add(1)
		payload := protocol.Describe(buf[:n])
		p.logger.Info("received", "peer", from.String(), "payload", payload, "bytes", n)
		p.sink.Publish(monitor.Event{
			Kind:    monitor.EventReceived,
			Role:    protocol.RoleProber,
			Peer:    from.String(),
			Payload: payload,
		})

		if !pacing.Wait(ctx, p.config.Pause) {
			return nil
		}
	}
}

// probe sends the one and only ping
func (p *Prober) probe() error {
	if err := p.socket.SendTo(protocol.NewPingMessage(), p.remote); err != nil {
		return fmt.Errorf("prober send failed: %w", err)
	}

	p.sent.Add(1)
	p.logger.Info("sent", "peer", p.remote.String(), "payload", protocol.TypePing)
	p.sink.Publish(monitor.Event{
		Kind:    monitor.EventSent,
		Role:    protocol.RoleProber,
		Peer:    p.remote.String(),
		Payload: protocol.TypePing,
	})
	return nil
}

// LocalAddr returns the bound local endpoint, or nil before Listen
func (p *Prober) LocalAddr() net.Addr {
	if p.socket == nil {
		return nil
	}
	return p.socket.LocalAddr()
}

// Remote returns the resolved target
func (p *Prober) Remote() *net.UDPAddr {
	return p.remote
}

// Stats returns datagram counters
func (p *Prober) Stats() map[string]uint64 {
	return map[string]uint64{
		"sent":     p.sent.Load(),
		"received": p.received.Load(),
	}
}
