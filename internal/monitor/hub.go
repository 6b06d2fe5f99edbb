package monitor

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Subscriber is a WebSocket client of the event stream
type Subscriber struct {
	ID       uint64
	Conn     *websocket.Conn
	SendChan chan []byte
	Done     chan struct{}
	mu       sync.Mutex
	logger   *slog.Logger
}

// NewSubscriber creates a new subscriber
func NewSubscriber(id uint64, conn *websocket.Conn, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		ID:       id,
		Conn:     conn,
		SendChan: make(chan []byte, 64),
		Done:     make(chan struct{}),
		logger:   logger,
	}
}

// Send queues an encoded event without blocking
func (s *Subscriber) Send(msg []byte) bool {
	select {
	case <-s.Done:
		return false
	default:
	}

	select {
	case s.SendChan <- msg:
		return true
	case <-s.Done:
		return false
	default:
		s.logger.Warn("subscriber buffer full, dropping event", "subscriber", s.ID)
		return false
	}
}

// Close closes the subscriber connection
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.Done:
		return
	default:
		close(s.Done)
		if s.Conn != nil {
			s.Conn.Close()
		}
	}
}

// Hub fans events out to metrics, counters and subscribers
type Hub struct {
	role        string
	metrics     *Metrics
	subscribers map[uint64]*Subscriber
	nextID      atomic.Uint64
	mu          sync.RWMutex
	logger      *slog.Logger

	sent         atomic.Uint64
	received     atomic.Uint64
	activeBursts atomic.Int64
}

// NewHub creates a hub for the given role
func NewHub(role string, logger *slog.Logger) *Hub {
	return &Hub{
		role:        role,
		metrics:     NewMetrics(),
		subscribers: make(map[uint64]*Subscriber),
		logger:      logger,
	}
}

// Publish records an event and broadcasts it to all subscribers
func (h *Hub) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	switch ev.Kind {
	case EventSent:
		h.sent.Add(1)
	case EventReceived:
		h.received.Add(1)
	case EventBurstStarted:
		h.activeBursts.Add(1)
	case EventBurstFinished:
		h.activeBursts.Add(-1)
	}
	h.metrics.observe(ev)

	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("failed to encode event", "error", err)
		return
	}
	h.Broadcast(data)
}

// Broadcast sends an encoded message to every subscriber and returns how many
// accepted it
func (h *Hub) Broadcast(msg []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, sub := range h.subscribers {
		if sub.Send(msg) {
			sent++
		}
	}
	return sent
}

// Subscribe registers a new subscriber for conn
func (h *Hub) Subscribe(conn *websocket.Conn) *Subscriber {
	sub := NewSubscriber(h.nextID.Add(1), conn, h.logger)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[sub.ID] = sub
	h.logger.Debug("subscriber added", "id", sub.ID, "total_subscribers", len(h.subscribers))
	return sub
}

// Unsubscribe removes and closes a subscriber
func (h *Hub) Unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, exists := h.subscribers[id]; exists {
		sub.Close()
		delete(h.subscribers, id)
		h.logger.Debug("subscriber removed", "id", id, "total_subscribers", len(h.subscribers))
	}
}

// SubscriberCount returns the number of connected subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// CloseAll disconnects every subscriber
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subscribers {
		sub.Close()
	}
	h.subscribers = make(map[uint64]*Subscriber)
}

// Role returns the role this hub reports for
func (h *Hub) Role() string { return h.role }

// Metrics returns the hub's collectors
func (h *Hub) Metrics() *Metrics { return h.metrics }

// Stats returns the running totals
func (h *Hub) Stats() map[string]interface{} {
	return map[string]interface{}{
		"sent":          h.sent.Load(),
		"received":      h.received.Load(),
		"active_bursts": h.activeBursts.Load(),
	}
}
