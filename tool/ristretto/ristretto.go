// Package ristretto implements tool.StateStore on dgraph-io/ristretto as an
// in-process TTL cache. Command states are short-lived polling records, so
// expiry after the TTL is the intended retention policy.
package ristretto

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
	"github.com/rvndrmann/mannmediaagency-sub000/tool"
)

// DefaultTTL is how long a command state stays pollable.
const DefaultTTL = 15 * time.Minute

// StateStore caches JSON-encoded command states.
type StateStore struct {
	c   *ristretto.Cache[string, []byte]
	ttl time.Duration
}

var _ tool.StateStore = (*StateStore)(nil)

// New creates a ristretto-backed state store. maxCostBytes is the maximum
// total size of cached states in bytes.
func New(maxCostBytes int64, ttl time.Duration) (*StateStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCostBytes / 100 * 10, // ~10x expected items
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &StateStore{c: c, ttl: ttl}, nil
}

// Save stores st, replacing earlier states of the same command.
func (s *StateStore) Save(_ context.Context, st tool.CommandState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal command state: %w", err)
	}

	if !s.c.SetWithTTL(st.ID, data, int64(len(data)), s.ttl) {
		return fmt.Errorf("command state %s dropped by cache", st.ID)
	}

	// Make the write visible to the next poll.
	s.c.Wait()

	return nil
}

// Get returns the cached state or core.ErrNotFound once expired or evicted.
func (s *StateStore) Get(_ context.Context, id string) (tool.CommandState, error) {
	data, found := s.c.Get(id)
	if !found {
		return tool.CommandState{}, core.ErrNotFound
	}

	var st tool.CommandState
	if err := json.Unmarshal(data, &st); err != nil {
		return tool.CommandState{}, fmt.Errorf("unmarshal command state: %w", err)
	}

	return st, nil
}

// Close shuts down the cache and releases resources.
func (s *StateStore) Close() {
	s.c.Close()
}
