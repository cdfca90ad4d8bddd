package service

import (
	"log/slog"
	"sync"
	"time"

	"taskflow/internal/model"
)

type EventType string

const (
	EventAssignmentRequested EventType = "assignment.requested"
	EventAssignmentApproved  EventType = "assignment.approved"
	EventAssignmentRejected  EventType = "assignment.rejected"
	EventAssignmentUpdated   EventType = "assignment.updated"
	EventAssignmentWithdrawn EventType = "assignment.withdrawn"
	EventAssigneeSynced      EventType = "assignment.synced"
)

// AssignmentEvent is pushed to subscribers after an assignment change commits.
type AssignmentEvent struct {
	Type       EventType                `json:"type"`
	Assignment model.AssignmentResponse `json:"assignment"`
	At         time.Time                `json:"at"`
}

// EventHub fans assignment events out to subscribers. Publish never blocks:
// a subscriber whose buffer is full misses the event.
type EventHub struct {
	mu     sync.RWMutex
	subs   map[int]chan AssignmentEvent
	nextID int
	buffer int
}

func NewEventHub(buffer int) *EventHub {
	if buffer <= 0 {
		buffer = 16
	}
	return &EventHub{subs: make(map[int]chan AssignmentEvent), buffer: buffer}
}

// Subscribe returns an event channel and a cancel func that closes it.
func (h *EventHub) Subscribe() (<-chan AssignmentEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan AssignmentEvent, h.buffer)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *EventHub) Publish(ev AssignmentEvent) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("event dropped for slow subscriber", "subscriber", id, "type", ev.Type)
		}
	}
}

func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
