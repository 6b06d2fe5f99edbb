// Package responder implements the pong role: listen for probes and answer
// each accepted probe with a bounded burst of replies.
package responder

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pingpong/internal/config"
	"github.com/pingpong/internal/monitor"
	"github.com/pingpong/internal/protocol"
	"github.com/pingpong/internal/transport"
	"golang.zx2c4.com/wireguard/ratelimiter"
)

// Responder listens on a fixed port and replies to probes
type Responder struct {
	config  config.ResponderConfig
	socket  *transport.Socket
	sink    monitor.Sink
	logger  *slog.Logger
	limiter *ratelimiter.Ratelimiter
	wg      sync.WaitGroup

	// sources with a burst in flight, only used with concurrent bursts
	active map[string]struct{}
	mu     sync.Mutex

	received  atomic.Uint64
	sent      atomic.Uint64
	bursts    atomic.Uint64
	refused   atomic.Uint64
	duplicate atomic.Uint64
}

// New creates a responder for cfg
func New(cfg config.ResponderConfig, sink monitor.Sink, logger *slog.Logger) *Responder {
	return &Responder{
		config: cfg,
		sink:   monitor.OrNop(sink),
		logger: logger.With("role", protocol.RoleResponder),
		active: make(map[string]struct{}),
	}
}

// Listen binds 0.0.0.0 on the configured port
func (r *Responder) Listen() error {
	socket, err := transport.Bind(protocol.ListenAddr(r.config.Port), transport.Options{})
	if err != nil {
		return err
	}
	r.socket = socket
	r.logger.Info("responder listening", "addr", socket.LocalAddr().String(),
		"reply_count", r.config.ReplyCount,
		"reply_interval", r.config.ReplyInterval,
		"concurrent_bursts", r.config.ConcurrentBursts,
		"rate_limit", r.config.RateLimit,
	)
	return nil
}

// Run binds if needed and serves until ctx is cancelled or a receive fails
func (r *Responder) Run(ctx context.Context) error {
	if r.socket == nil {
		if err := r.Listen(); err != nil {
			return err
		}
	}
	return r.Serve(ctx)
}

// Serve reads datagrams and answers probes. With sequential bursts (the
// default) a burst runs to completion before the next datagram is read, so
// probes from other sources queue in the socket buffer meanwhile.
func (r *Responder) Serve(ctx context.Context) error {
	if r.socket == nil {
		return fmt.Errorf("responder is not listening")
	}
	defer r.socket.Close()

	if r.config.RateLimit {
		r.limiter = &ratelimiter.Ratelimiter{}
		r.limiter.Init()
		defer r.limiter.Close()
	}

	// bursts still running must not outlive Serve
	burstCtx, cancelBursts := context.WithCancel(ctx)
	defer r.wg.Wait()
	defer cancelBursts()

	stop := context.AfterFunc(ctx, func() { r.socket.Close() })
	defer stop()

	buf := transport.NewBuffer()
	for {
		n, from, err := r.socket.ReceiveFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("responder receive failed: %w", err)
		}

		r.received.Add(1)
		payload := protocol.Describe(buf[:n])
		r.logger.Info("received", "peer", from.String(), "payload", payload, "bytes", n)
		r.sink.Publish(monitor.Event{
			Kind:    monitor.EventReceived,
			Role:    protocol.RoleResponder,
			Peer:    from.String(),
			Payload: payload,
		})

		if !protocol.IsProbe(buf[:n]) {
			continue
		}

		if !r.admit(from) {
			r.refused.Add(1)
			r.logger.Warn("probe rate limited", "peer", from.String())
			continue
		}

		if r.config.ConcurrentBursts {
			r.startBurst(burstCtx, from)
		} else {
			r.runBurst(burstCtx, from)
		}
	}
}

// admit applies the per-source rate limit, when enabled
func (r *Responder) admit(from net.Addr) bool {
	if r.limiter == nil {
		return true
	}
	udp, ok := from.(*net.UDPAddr)
	if !ok {
		return true
	}
	return r.limiter.Allow(udp.AddrPort().Addr().Unmap())
}

// startBurst runs a burst on its own goroutine unless one is already in
// flight for the same source
func (r *Responder) startBurst(ctx context.Context, from net.Addr) {
	key := from.String()

	r.mu.Lock()
	if _, busy := r.active[key]; busy {
		r.mu.Unlock()
		r.duplicate.Add(1)
		r.logger.Info("burst already active, probe ignored", "peer", key)
		return
	}
	r.active[key] = struct{}{}
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.active, key)
			r.mu.Unlock()
		}()
		r.runBurst(ctx, from)
	}()
}

func (r *Responder) runBurst(ctx context.Context, from net.Addr) {
	r.bursts.Add(1)
	burst := NewBurst(from, r.config.ReplyCount, r.config.ReplyInterval)

	r.logger.Info("burst started", "peer", from.String(), "replies", burst.Remaining, "interval", burst.Interval)
	r.sink.Publish(monitor.Event{
		Kind: monitor.EventBurstStarted,
		Role: protocol.RoleResponder,
		Peer: from.String(),
	})

	outcome, err := burst.Run(ctx, r.sendPong)
	if err != nil {
		// not fatal: the responder goes back to listening
		r.logger.Warn("burst aborted", "peer", from.String(), "sent", burst.Sent, "error", err)
	} else {
		r.logger.Info("burst finished", "peer", from.String(), "sent", burst.Sent, "outcome", outcome)
	}

	r.sink.Publish(monitor.Event{
		Kind:    monitor.EventBurstFinished,
		Role:    protocol.RoleResponder,
		Peer:    from.String(),
		Replies: burst.Sent,
		Outcome: outcome,
	})
}

func (r *Responder) sendPong(to net.Addr) error {
	if err := r.socket.SendTo(protocol.NewPongMessage(), to); err != nil {
		return err
	}

	r.sent.Add(1)
	r.logger.Info("sent", "peer", to.String(), "payload", protocol.TypePong)
	r.sink.Publish(monitor.Event{
		Kind:    monitor.EventSent,
		Role:    protocol.RoleResponder,
		Peer:    to.String(),
		Payload: protocol.TypePong,
	})
	return nil
}

// Addr returns the bound local endpoint, or nil before Listen
func (r *Responder) Addr() net.Addr {
	if r.socket == nil {
		return nil
	}
	return r.socket.LocalAddr()
}

// Port returns the bound local port, or 0 before Listen
func (r *Responder) Port() int {
	if r.socket == nil {
		return 0
	}
	return r.socket.Port()
}

// Stats returns datagram and burst counters
func (r *Responder) Stats() map[string]uint64 {
	return map[string]uint64{
		"received":  r.received.Load(),
		"sent":      r.sent.Load(),
		"bursts":    r.bursts.Load(),
		"refused":   r.refused.Load(),
		"duplicate": r.duplicate.Load(),
	}
}
