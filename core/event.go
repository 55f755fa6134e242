package core

import (
	"time"

	"github.com/google/uuid"
)

// Event is the persisted audit record of one step of a run: the user input,
// a turn's response, a handoff, or a failure. After emission it should be
// treated as immutable.
//
// Message may be nil for handoff-only or error-only events. Handoff is set
// when the turn produced a delegation directive.
type Event struct {
	ID           string          `json:"id"`
	RunID        string          `json:"run_id"`
	Author       string          `json:"author"`
	Turn         int             `json:"turn,omitempty"`
	Message      *Message        `json:"message,omitempty"`
	Handoff      *HandoffRequest `json:"handoff,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// NewEvent creates a bare event authored by 'author' bound to a run.
func NewEvent(runID, author string) Event {
	return Event{
		ID:        NewID(),
		RunID:     runID,
		Author:    author,
		Timestamp: time.Now().UTC(),
	}
}

// NewUserMessageEvent creates a user-authored text message event.
func NewUserMessageEvent(runID, message string) Event {
	e := NewEvent(runID, RoleUser)
	m := NewUserMessage(message)
	e.Message = &m

	return e
}

// NewTurnEvent records the result of one agent turn, including any handoff.
func NewTurnEvent(runID string, turn int, res AgentResult) Event {
	e := NewEvent(runID, string(res.AgentType))
	e.Turn = turn
	m := NewAssistantMessage(res.AgentType, res.Response)
	e.Message = &m
	e.Handoff = res.Handoff()

	return e
}

// NewErrorEvent records a failure substituted by a degraded response.
func NewErrorEvent(runID, author string, err error) Event {
	e := NewEvent(runID, author)
	if err != nil {
		e.ErrorMessage = err.Error()
	}

	return e
}

// NewID generates a new unique identifier for runs, events and commands.
func NewID() string { return uuid.NewString() }

// IsHandoff reports whether the event carries a delegation directive.
func (e Event) IsHandoff() bool { return e.Handoff != nil }

// IsFinalResponse reports whether the event is a displayable, terminal answer.
func (e Event) IsFinalResponse() bool {
	return e.Message != nil && e.Handoff == nil && e.ErrorMessage == ""
}

// UnixSeconds returns the timestamp as fractional seconds since Unix epoch.
func (e Event) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }
