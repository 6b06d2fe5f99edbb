// Package protocol defines the datagram payloads exchanged by the probe roles.
package protocol

import (
	"bytes"
	"fmt"
	"strconv"
)

// Payloads are plain US-ASCII with no framing.
const (
	TypePing = "ping"
	TypePong = "pong"
	TypeDong = "dong"
)

// MaxDatagramSize is the receive buffer size; longer datagrams are truncated.
const MaxDatagramSize = 1024

// Roles
const (
	RoleProber    = "prober"
	RoleResponder = "responder"
	RoleAnnouncer = "announcer"
)

// NewPingMessage returns the probe payload
func NewPingMessage() []byte {
	return []byte(TypePing)
}

// NewPongMessage returns the reply payload
func NewPongMessage() []byte {
	return []byte(TypePong)
}

// NewDongMessage returns the announcement payload
func NewDongMessage() []byte {
	return []byte(TypeDong)
}

// IsProbe reports whether a received datagram is a probe. Surrounding
// whitespace is ignored; anything else must match exactly.
func IsProbe(data []byte) bool {
	return string(bytes.TrimSpace(data)) == TypePing
}

// Describe renders a payload for logging. Invalid UTF-8 is replaced rather
// than rejected.
func Describe(data []byte) string {
	return string(bytes.ToValidUTF8(data, []byte("�")))
}

// ParsePort parses a port argument. Zero is accepted and means ephemeral.
func ParsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", s, err)
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range", port)
	}
	return port, nil
}

// ListenAddr returns the wildcard local endpoint for a port.
func ListenAddr(port int) string {
	return "0.0.0.0:" + strconv.Itoa(port)
}
