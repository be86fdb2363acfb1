package stream

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/lonelydomino/pilkchat-sub000/internal/models"
	"github.com/lonelydomino/pilkchat-sub000/internal/observability"
)

const sendBufferSize = 64

// Subscriber is one open event-stream connection. It is owned by the handler
// goroutine that created it; the registry holds a reference, never ownership.
type Subscriber struct {
	UserID      int
	ConnID      string
	ConnectedAt time.Time
	send        chan []byte
}

// NewSubscriber builds a subscriber with a buffered frame channel.
func NewSubscriber(userID int, connID string) *Subscriber {
	return &Subscriber{
		UserID:      userID,
		ConnID:      connID,
		ConnectedAt: time.Now(),
		send:        make(chan []byte, sendBufferSize),
	}
}

// Frames returns the channel the owning handler drains. It is closed when
// the subscriber leaves the registry.
func (s *Subscriber) Frames() <-chan []byte {
	return s.send
}

// Registry is the process-wide table of live stream connections, keyed by
// user id. A user may hold several subscribers at once (one per tab or
// device); registering a new one never displaces an existing one.
type Registry struct {
	mu          sync.RWMutex
	subscribers map[int]map[*Subscriber]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{subscribers: make(map[int]map[*Subscriber]bool)}
}

// Register associates a subscriber with its user.
func (r *Registry) Register(userID int, sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subscribers[userID]; !ok {
		r.subscribers[userID] = make(map[*Subscriber]bool)
	}
	r.subscribers[userID][sub] = true
}

// Unregister removes a subscriber and closes its frame channel. Calling it
// for a subscriber that is already gone is a no-op, so both the handler's
// cleanup path and Send's dead-handle path may race on it safely.
func (r *Registry) Unregister(userID int, sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, ok := r.subscribers[userID]
	if !ok {
		return
	}
	if _, exists := subs[sub]; !exists {
		return
	}
	delete(subs, sub)
	close(sub.send)
	if len(subs) == 0 {
		delete(r.subscribers, userID)
	}
}

// Send delivers an envelope to every open connection of the target user on a
// best-effort basis. No connection is a silent no-op. A subscriber whose
// buffer is full is treated as dead and dropped from the registry; neither
// case surfaces an error to the caller.
func (r *Registry) Send(userID int, event models.StreamEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("stream: marshal envelope: %v", err)
		return
	}

	var dead []*Subscriber

	r.mu.RLock()
	subs := r.subscribers[userID]
	if len(subs) == 0 {
		r.mu.RUnlock()
		observability.IncEnvelope(event.Type, "no_connection")
		return
	}
	for sub := range subs {
		// Channel sends happen under RLock; close only ever happens under
		// the write lock in Unregister, so a send on a closed channel is
		// impossible here.
		select {
		case sub.send <- payload:
			observability.IncEnvelope(event.Type, "delivered")
		default:
			dead = append(dead, sub)
		}
	}
	r.mu.RUnlock()

	for _, sub := range dead {
		log.Printf("stream: dropping stalled connection user=%d conn=%s", userID, sub.ConnID)
		r.Unregister(userID, sub)
		observability.IncEnvelope(event.Type, "dropped")
	}
}

// SendToUsers delivers the same envelope to several users.
func (r *Registry) SendToUsers(userIDs []int, event models.StreamEvent) {
	for _, userID := range userIDs {
		r.Send(userID, event)
	}
}

// IsOnline reports whether the user has at least one open connection.
func (r *Registry) IsOnline(userID int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers[userID]) > 0
}

// Count returns the number of open connections across all users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, subs := range r.subscribers {
		total += len(subs)
	}
	return total
}
