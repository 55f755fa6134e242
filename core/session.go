package core

import (
	"context"
	"maps"
	"sync"
	"time"
)

// Session is the conversation container of one group (a chat thread). It
// holds the ordered events of every run in the group plus a small
// key/value state. It is safe for concurrent access.
//
// Contract:
//   - Mutations update the Updated timestamp
//   - GetEvents returns a defensive copy
//   - GetConversationHistory yields only user/assistant messages, excluding
//     handoff-only and error-only events
//   - Clone performs deep copies of maps and slices.
type Session struct {
	ID      string         `json:"id"`
	State   map[string]any `json:"state"`
	Events  []Event        `json:"events"`
	Created time.Time      `json:"created"`
	Updated time.Time      `json:"updated"`

	// LastAgent is the author of the most recent final answer.
	LastAgent AgentType `json:"lastAgent,omitempty"`

	mu sync.RWMutex
}

// NewSession creates a new empty session with the given ID.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{ID: id, State: map[string]any{}, Events: []Event{}, Created: now, Updated: now}
}

// GetState returns the value and existence flag for a state key.
func (s *Session) GetState(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.State[key]

	return v, ok
}

// SetState sets a key/value pair in session state.
func (s *Session) SetState(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.State[key] = value
	s.Updated = time.Now().UTC()
}

// AddEvent appends an event to the history. A final answer also records its
// author as the session's last agent.
func (s *Session) AddEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Events = append(s.Events, ev)
	if ev.IsFinalResponse() && ev.Message.Role == RoleAssistant && ev.Message.AgentType != AgentTypeNone {
		s.LastAgent = ev.Message.AgentType
	}

	s.Updated = time.Now().UTC()
}

// GetEvents returns a defensive copy of the full event slice.
func (s *Session) GetEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]Event, len(s.Events))
	copy(events, s.Events)

	return events
}

// GetConversationHistory returns the messages suitable for threading into the
// next run's context, oldest first.
func (s *Session) GetConversationHistory() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]Message, 0, len(s.Events))
	for _, ev := range s.Events {
		if ev.Message == nil || ev.ErrorMessage != "" {
			continue
		}

		if ev.Message.Role != RoleUser && ev.Message.Role != RoleAssistant {
			continue
		}

		res = append(res, *ev.Message)
	}

	return res
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clone := &Session{
		ID:        s.ID,
		State:     maps.Clone(s.State),
		Events:    make([]Event, len(s.Events)),
		Created:   s.Created,
		Updated:   s.Updated,
		LastAgent: s.LastAgent,
	}
	if clone.State == nil {
		clone.State = map[string]any{}
	}

	copy(clone.Events, s.Events)

	return clone
}

// SessionStore persists sessions keyed by group ID.
type SessionStore interface {
	Create(ctx context.Context, id string) (*Session, error)
	// Get returns the session or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)
	// AppendEvent adds an event, creating the session lazily.
	AppendEvent(ctx context.Context, sessionID string, event Event) error
}
