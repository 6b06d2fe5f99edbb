package prober

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"testing"
	"time"

	"github.com/pingpong/internal/config"
	"github.com/pingpong/internal/monitor"
	"github.com/pingpong/internal/protocol"
	"github.com/pingpong/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// peer is a bare socket standing in for a responder
func peer(t *testing.T) *transport.Socket {
	t.Helper()
	s, err := transport.Bind("127.0.0.1:0", transport.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func receive(t *testing.T, s *transport.Socket, timeout time.Duration) (string, net.Addr, bool) {
	t.Helper()
	type result struct {
		payload string
		from    net.Addr
	}
	ch := make(chan result, 1)
	go func() {
		buf := transport.NewBuffer()
		n, from, err := s.ReceiveFrom(buf)
		if err == nil {
			ch <- result{string(buf[:n]), from}
		}
	}()
	select {
	case r := <-ch:
		return r.payload, r.from, true
	case <-time.After(timeout):
		return "", nil, false
	}
}

func TestNewResolvesRemote(t *testing.T) {
	p, err := New(config.ProberConfig{Remote: "127.0.0.1:9999"}, nil, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 9999, p.Remote().Port)
	assert.Nil(t, p.LocalAddr())

	_, err = New(config.ProberConfig{Remote: "127.0.0.1"}, nil, quietLogger())
	assert.Error(t, err)
}

func TestProberSendsOnePingAndLogsReplies(t *testing.T) {
	responder := peer(t)
	hub := monitor.NewHub(protocol.RoleProber, quietLogger())

	p, err := New(config.ProberConfig{
		Remote: fmt.Sprintf("127.0.0.1:%d", responder.Port()),
		Pause:  10 * time.Millisecond,
	}, hub, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	payload, from, ok := receive(t, responder, 2*time.Second)
	require.True(t, ok, "expected a probe")
	assert.Equal(t, "ping", payload)

	for i := 0; i < 3; i++ {
		require.NoError(t, responder.SendTo(protocol.NewPongMessage(), from))
	}

	require.Eventually(t, func() bool { return p.Stats()["received"] == 3 }, 2*time.Second, 10*time.Millisecond)

	// no second probe, ever
	_, _, ok = receive(t, responder, 200*time.Millisecond)
	assert.False(t, ok, "prober must send exactly one probe")
	assert.Equal(t, uint64(1), p.Stats()["sent"])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("prober did not stop after cancel")
	}

	stats := hub.Stats()
	assert.Equal(t, uint64(1), stats["sent"])
	assert.Equal(t, uint64(3), stats["received"])
}

func TestProberLogsAnySource(t *testing.T) {
	responder := peer(t)
	stranger := peer(t)

	p, err := New(config.ProberConfig{
		Remote: fmt.Sprintf("127.0.0.1:%d", responder.Port()),
		Pause:  time.Millisecond,
	}, nil, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	_, from, ok := receive(t, responder, 2*time.Second)
	require.True(t, ok)

	require.NoError(t, stranger.SendTo([]byte("hello"), from))
	require.Eventually(t, func() bool { return p.Stats()["received"] == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestProberExplicitLocalPortBusy(t *testing.T) {
	busy := peer(t)

	// hold the wildcard port the prober wants
	holder, err := transport.Bind(protocol.ListenAddr(0), transport.Options{})
	require.NoError(t, err)
	defer holder.Close()

	p, err := New(config.ProberConfig{
		Remote:    fmt.Sprintf("127.0.0.1:%d", busy.Port()),
		LocalPort: holder.Port(),
	}, nil, quietLogger())
	require.NoError(t, err)

	err = p.Run(context.Background())
	var bindErr *transport.BindError
	assert.True(t, errors.As(err, &bindErr))
}

func TestProberExplicitLocalPort(t *testing.T) {
	responder := peer(t)

	probe, err := transport.Bind(protocol.ListenAddr(0), transport.Options{})
	require.NoError(t, err)
	port := probe.Port()
	require.NoError(t, probe.Close())

	p, err := New(config.ProberConfig{
		Remote:    fmt.Sprintf("127.0.0.1:%d", responder.Port()),
		LocalPort: port,
		Pause:     time.Millisecond,
	}, nil, quietLogger())
	require.NoError(t, err)
	require.NoError(t, p.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	_, from, ok := receive(t, responder, 2*time.Second)
	require.True(t, ok)
	assert.Equal(t, port, from.(*net.UDPAddr).Port)
}
