package tool

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
)

// CommandStatus is the lifecycle state of one command execution.
type CommandStatus string

const (
	StatusPending   CommandStatus = "pending"
	StatusExecuting CommandStatus = "executing"
	StatusCompleted CommandStatus = "completed"
	StatusFailed    CommandStatus = "failed"
)

// Terminal reports whether no further transition can happen.
func (s CommandStatus) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

// CommandState is the pollable execution record of a command.
type CommandState struct {
	ID         string         `json:"id"`
	ToolName   string         `json:"toolName"`
	UserID     string         `json:"userId"`
	RunID      string         `json:"runId,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Status     CommandStatus  `json:"status"`
	Result     *Result        `json:"result,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// StateStore persists command execution states.
type StateStore interface {
	Save(ctx context.Context, st CommandState) error
	// Get returns the state or core.ErrNotFound.
	Get(ctx context.Context, id string) (CommandState, error)
}

// InMemoryStateStore is a volatile StateStore backed by a map.
type InMemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]CommandState
}

// NewInMemoryStateStore constructs an empty store.
func NewInMemoryStateStore() *InMemoryStateStore {
	return &InMemoryStateStore{states: make(map[string]CommandState)}
}

// Save stores a copy of st.
func (s *InMemoryStateStore) Save(_ context.Context, st CommandState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st.Parameters = maps.Clone(st.Parameters)
	s.states[st.ID] = st

	return nil
}

// Get returns the stored state.
func (s *InMemoryStateStore) Get(_ context.Context, id string) (CommandState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[id]
	if !ok {
		return CommandState{}, core.ErrNotFound
	}

	return st, nil
}
