package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
)

func TestComplete_InterpretsReservedToolCalls(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.AddResponse("make a video", "On it.",
		NewToolCall("c1", TransferToolName, TransferArgs{Agent: "script", Reason: "video request"}),
		NewToolCall("c2", StructuredOutputToolName, map[string]any{"scenes": 3}),
		NewToolCall("c3", "generate_image", map[string]any{"prompt": "a robot"}),
	)

	c, err := Complete(context.Background(), m, Request{Input: "make a video"})
	require.NoError(t, err)

	assert.Equal(t, "On it.", c.Text)
	require.NotNil(t, c.Handoff)
	assert.Equal(t, core.AgentTypeScript, c.Handoff.TargetAgent)
	assert.Equal(t, "video request", c.Handoff.Reason)
	assert.EqualValues(t, 3, c.StructuredOutput["scenes"])
	require.Len(t, c.ToolCalls, 1)
	assert.Equal(t, "generate_image", c.ToolCalls[0].Function.Name)
	assert.Equal(t, 1, m.Calls())
}

func TestComplete_Streaming(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.AddResponse("hello", "hello there friend")

	c, err := Complete(context.Background(), m, Request{Input: "hello", Stream: true})
	require.NoError(t, err)
	assert.Equal(t, "hello there friend", c.Text)
}

func TestComplete_Error(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.SetError(errors.New("upstream down"))

	_, err := Complete(context.Background(), m, Request{Input: "x"})
	require.EqualError(t, err, "upstream down")
	assert.Equal(t, 1, m.Calls())
}

func TestComplete_CustomTransferTarget(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.Enqueue(Response{Text: "x", ToolCalls: []ToolCall{NewToolCall("c", TransferToolName, TransferArgs{Agent: "video"})}})

	c, err := Complete(context.Background(), m, Request{Input: "anything"})
	require.NoError(t, err)
	assert.Equal(t, core.AgentType("video"), c.Handoff.TargetAgent)
}

func TestComplete_MalformedReservedCallsKeepText(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.Enqueue(Response{Text: "Here is your answer.", ToolCalls: []ToolCall{
		{ID: "c1", Type: "function", Function: ToolCallFunction{Name: TransferToolName, Arguments: []byte(`{"agent":`)}},
		{ID: "c2", Type: "function", Function: ToolCallFunction{Name: StructuredOutputToolName, Arguments: []byte(`[1,2]`)}},
		NewToolCall("c3", TransferToolName, TransferArgs{Reason: "no target"}),
	}})

	c, err := Complete(context.Background(), m, Request{Input: "anything"})
	require.NoError(t, err)

	assert.Equal(t, "Here is your answer.", c.Text)
	assert.Nil(t, c.Handoff)
	assert.Nil(t, c.StructuredOutput)
	assert.Len(t, c.Rejected, 3)
}

func TestSystemPromptAndConversation(t *testing.T) {
	req := Request{
		Instructions: "You are helpful.",
		Input:        "next",
		ContextData:  map[string]any{"projectId": "p1", "agentType": "main"},
		History: []core.Message{
			core.NewUserMessage("first"),
			{Role: core.RoleSystem, Content: "ignored"},
			core.NewAssistantMessage(core.AgentTypeMain, "reply"),
		},
	}

	assert.Equal(t, "You are helpful.\n\nContext:\n- agentType: \"main\"\n- projectId: \"p1\"", SystemPrompt(req))

	conv := Conversation(req)
	require.Len(t, conv, 3)
	assert.Equal(t, "first", conv[0].Content)
	assert.Equal(t, "reply", conv[1].Content)
	assert.Equal(t, "next", conv[2].Content)
}
