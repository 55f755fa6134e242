package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_StateAndClone(t *testing.T) {
	s := NewSession("g1")
	s.SetState("a", 1)

	v, ok := s.GetState("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	clone := s.Clone()
	assert.NotSame(t, s, clone)

	clone.SetState("c", 2)

	_, exists := s.GetState("c")
	assert.False(t, exists, "original should not see clone's new key")
}

func TestSession_EventsAreCopiedOnRead(t *testing.T) {
	s := NewSession("g2")
	s.AddEvent(NewUserMessageEvent("run-1", "hi"))
	s.AddEvent(NewTurnEvent("run-1", 1, NewResult(AgentTypeMain, "hello")))

	all := s.GetEvents()
	require.Len(t, all, 2)

	orig := all[0].Author
	all[0].Author = "changed"
	assert.Equal(t, orig, s.GetEvents()[0].Author)
}

func TestSession_ConversationHistory(t *testing.T) {
	s := NewSession("g3")
	s.AddEvent(NewUserMessageEvent("run-1", "write a script"))

	handoff := NewResult(AgentTypeMain, "routing").WithHandoff(AgentTypeScript, "script request", nil)
	s.AddEvent(NewTurnEvent("run-1", 1, handoff))
	s.AddEvent(NewTurnEvent("run-1", 2, NewResult(AgentTypeScript, "SCENE 1: ...")))
	s.AddEvent(NewErrorEvent("run-1", "runner", errors.New("boom")))

	history := s.GetConversationHistory()
	require.Len(t, history, 3)
	assert.Equal(t, RoleUser, history[0].Role)
	assert.Equal(t, "write a script", history[0].Content)
	assert.Equal(t, AgentTypeScript, history[2].AgentType)

	assert.Equal(t, AgentTypeScript, s.LastAgent, "only final answers set the last agent")
}

func TestEvent_Kinds(t *testing.T) {
	final := NewTurnEvent("r", 1, NewResult(AgentTypeImage, "done"))
	assert.True(t, final.IsFinalResponse())
	assert.False(t, final.IsHandoff())

	hand := NewTurnEvent("r", 1, NewResult(AgentTypeMain, "x").WithHandoff(AgentTypeData, "", nil))
	require.True(t, hand.IsHandoff())
	assert.Equal(t, "handoff requested by main agent", hand.Handoff.Reason)
	assert.False(t, hand.IsFinalResponse())

	assert.NotEmpty(t, final.ID)
	assert.NotEqual(t, final.ID, hand.ID)
}
