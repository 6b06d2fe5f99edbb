// Package transport binds unconnected UDP sockets and exposes blocking
// send-to / receive-from operations.
package transport

import (
	"fmt"
	"net"

	"github.com/libp2p/go-reuseport"
	"github.com/pingpong/internal/protocol"
)

// BindError is returned when a local endpoint cannot be bound.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// SendError is returned when a datagram could not be handed to the OS.
type SendError struct {
	Addr string
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s: %v", e.Addr, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// ReceiveError is returned when a blocking receive fails, including when the
// socket is closed underneath it.
type ReceiveError struct {
	Addr string
	Err  error
}

func (e *ReceiveError) Error() string {
	return fmt.Sprintf("receive on %s: %v", e.Addr, e.Err)
}

func (e *ReceiveError) Unwrap() error { return e.Err }

// Options control how a socket is bound.
type Options struct {
	// ReusePort sets SO_REUSEPORT/SO_REUSEADDR so several processes can
	// share an explicit local port.
	ReusePort bool
}

// Socket is an unconnected datagram socket.
type Socket struct {
	conn net.PacketConn
}

// Bind binds a socket to addr, e.g. "0.0.0.0:9999" or "0.0.0.0:0" for an
// ephemeral port.
func Bind(addr string, opts Options) (*Socket, error) {
	var (
		conn net.PacketConn
		err  error
	)
	if opts.ReusePort {
		conn, err = reuseport.ListenPacket("udp", addr)
	} else {
		conn, err = net.ListenPacket("udp", addr)
	}
	if err != nil {
		return nil, &BindError{Addr: addr, Err: err}
	}
	return &Socket{conn: conn}, nil
}

// Resolve resolves a remote "host:port" endpoint.
func Resolve(hostport string) (*net.UDPAddr, error) {
	addr, err := net.ResolveUDPAddr("udp", hostport)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", hostport, err)
	}
	if addr.Port == 0 {
		return nil, fmt.Errorf("remote endpoint %q has no port", hostport)
	}
	return addr, nil
}

// SendTo sends one datagram. Delivery is not confirmed.
func (s *Socket) SendTo(payload []byte, to net.Addr) error {
	if _, err := s.conn.WriteTo(payload, to); err != nil {
		return &SendError{Addr: to.String(), Err: err}
	}
	return nil
}

// ReceiveFrom blocks until a datagram arrives. Datagrams longer than buf are
// truncated by the OS.
func (s *Socket) ReceiveFrom(buf []byte) (int, net.Addr, error) {
	n, from, err := s.conn.ReadFrom(buf)
	if err != nil {
		return 0, nil, &ReceiveError{Addr: s.conn.LocalAddr().String(), Err: err}
	}
	return n, from, nil
}

// NewBuffer returns a receive buffer of the protocol's datagram size.
func NewBuffer() []byte {
	return make([]byte, protocol.MaxDatagramSize)
}

// LocalAddr returns the bound local endpoint.
func (s *Socket) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Port returns the bound local port.
func (s *Socket) Port() int {
	if addr, ok := s.conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.Port
	}
	return 0
}

// Close closes the socket. A pending ReceiveFrom returns a ReceiveError
// wrapping net.ErrClosed.
func (s *Socket) Close() error {
	return s.conn.Close()
}
