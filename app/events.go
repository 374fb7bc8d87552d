package app

import (
	"encoding/json"
	"sync"

	"example/cpl-trainer/app/models"
)

// Publisher receives session events. A nil Publisher drops them.
type Publisher interface {
	Publish(sessionID string, eventType string, payload any)
}

// Hub fans session events out to websocket subscribers. Slow subscribers
// lose events rather than blocking the session.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*Subscriber]struct{}
}

type Subscriber struct {
	hub       *Hub
	sessionID string
	send      chan []byte
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscriber]struct{})}
}

func (h *Hub) Subscribe(sessionID string) *Subscriber {
	s := &Subscriber{hub: h, sessionID: sessionID, send: make(chan []byte, 32)}
	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[*Subscriber]struct{})
	}
	h.subs[sessionID][s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[s.sessionID]
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	close(s.send)
	if len(set) == 0 {
		delete(h.subs, s.sessionID)
	}
}

// CloseSession drops every subscriber of a deleted session.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[sessionID] {
		close(s.send)
	}
	delete(h.subs, sessionID)
}

func (h *Hub) Publish(sessionID string, eventType string, payload any) {
	if h == nil {
		return
	}
	data, err := encodeEvent(eventType, payload)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[sessionID] {
		select {
		case s.send <- data:
		default:
		}
	}
}

// Messages yields encoded events until the subscriber is dropped.
func (s *Subscriber) Messages() <-chan []byte {
	return s.send
}

func encodeEvent(eventType string, payload any) ([]byte, error) {
	ev := models.SessionEvent{Type: eventType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		ev.Payload = raw
	}
	return json.Marshal(ev)
}
