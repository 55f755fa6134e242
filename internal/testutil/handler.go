package testutil

import (
	"context"
	"sync/atomic"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
)

// StubHandler is a scripted core.Handler that counts its invocations.
type StubHandler struct {
	AgentType core.AgentType
	Response  string
	Next      core.AgentType
	Reason    string
	Err       error

	calls atomic.Int32
}

var _ core.Handler = (*StubHandler)(nil)

// NewStub returns a terminal stub answering response.
func NewStub(t core.AgentType, response string) *StubHandler {
	return &StubHandler{AgentType: t, Response: response}
}

// HandsOffTo makes the stub delegate to next (chainable).
func (h *StubHandler) HandsOffTo(next core.AgentType, reason string) *StubHandler {
	h.Next = next
	h.Reason = reason

	return h
}

// Type implements core.Handler.
func (h *StubHandler) Type() core.AgentType { return h.AgentType }

// Process implements core.Handler.
func (h *StubHandler) Process(context.Context, string, *core.AgentContext) (core.AgentResult, error) {
	h.calls.Add(1)

	if h.Err != nil {
		return core.AgentResult{}, h.Err
	}

	res := core.NewResult(h.AgentType, h.Response)
	if h.Next != core.AgentTypeNone {
		res = res.WithHandoff(h.Next, h.Reason, nil)
	}

	return res, nil
}

// Calls returns how often Process ran.
func (h *StubHandler) Calls() int { return int(h.calls.Load()) }

// Factory returns a registry factory always yielding h.
func (h *StubHandler) Factory() func() core.Handler {
	return func() core.Handler { return h }
}
