// Package monitor exposes probe activity over HTTP: a health summary,
// Prometheus metrics and a WebSocket event stream.
package monitor

import (
	"time"
)

// Event kinds
const (
	EventSent          = "sent"
	EventReceived      = "received"
	EventBurstStarted  = "burst_started"
	EventBurstFinished = "burst_finished"
)

// Burst outcomes
const (
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
	OutcomeCancelled = "cancelled"
)

// Event is a single protocol occurrence as published to subscribers
type Event struct {
	Kind    string    `json:"kind"`
	Role    string    `json:"role"`
	Peer    string    `json:"peer"`
	Payload string    `json:"payload,omitempty"`
	Replies int       `json:"replies,omitempty"`
	Outcome string    `json:"outcome,omitempty"`
	Time    time.Time `json:"time"`
}

// Sink receives protocol events. Implementations must not block.
type Sink interface {
	Publish(Event)
}

type nopSink struct{}

func (nopSink) Publish(Event) {}

// Nop returns a Sink that discards everything.
func Nop() Sink {
	return nopSink{}
}

// OrNop returns s, or a discarding Sink when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return nopSink{}
	}
	return s
}
