package testutil

import (
	"github.com/rvndrmann/mannmediaagency-sub000/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("g1").User("r1", "hi").Answer("r1", core.AgentTypeMain, "hello").Build()
type SessionBuilder struct {
	id     string
	state  map[string]any
	events []core.Event
}

// NewSessionBuilder creates a new builder for a session with the given id.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id, state: map[string]any{}}
}

// State sets or overwrites a state key/value pair (chainable).
func (b *SessionBuilder) State(key string, val any) *SessionBuilder {
	b.state[key] = val
	return b
}

// User appends a user input event (chainable).
func (b *SessionBuilder) User(runID, text string) *SessionBuilder {
	b.events = append(b.events, core.NewUserMessageEvent(runID, text))
	return b
}

// Answer appends a terminal answer authored by t (chainable).
func (b *SessionBuilder) Answer(runID string, t core.AgentType, text string) *SessionBuilder {
	b.events = append(b.events, core.NewTurnEvent(runID, 1, core.NewResult(t, text)))
	return b
}

// Handoff appends a turn event of from delegating to to (chainable).
func (b *SessionBuilder) Handoff(runID string, turn int, from, to core.AgentType, text string) *SessionBuilder {
	res := core.NewResult(from, text).WithHandoff(to, "handoff to "+string(to), nil)
	b.events = append(b.events, core.NewTurnEvent(runID, turn, res))

	return b
}

// Event appends raw events (chainable).
func (b *SessionBuilder) Event(evs ...core.Event) *SessionBuilder {
	b.events = append(b.events, evs...)
	return b
}

// Build returns a *core.Session with pre-populated state and events.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id)

	for k, v := range b.state {
		s.SetState(k, v)
	}

	for _, ev := range b.events {
		s.AddEvent(ev)
	}

	return s
}
