package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
)

type mockProvider struct {
	text string
	err  error
}

func (m mockProvider) Instruction(context.Context, *core.AgentContext) (string, error) {
	return m.text, m.err
}

func TestInstruction_Static(t *testing.T) {
	inst := NewInstructionFromText("static instruction")
	assert.True(t, inst.IsStatic())
	assert.False(t, inst.IsZero())

	got, err := inst.Resolve(context.Background(), core.NewAgentContext("u1", "g1"))
	require.NoError(t, err)
	assert.Equal(t, "static instruction", got)
}

func TestInstruction_Provider(t *testing.T) {
	inst := NewInstructionFromProvider(mockProvider{text: "dynamic"})
	assert.False(t, inst.IsStatic())

	got, err := inst.Resolve(context.Background(), core.NewAgentContext("u1", "g1"))
	require.NoError(t, err)
	assert.Equal(t, "dynamic", got)

	_, err = NewInstructionFromProvider(mockProvider{err: errors.New("boom")}).Resolve(context.Background(), nil)
	assert.EqualError(t, err, "boom")
}

func TestInstruction_Func(t *testing.T) {
	inst := NewInstructionFromFunc(func(_ context.Context, actx *core.AgentContext) (string, error) {
		return "hello " + actx.UserID, nil
	})

	got, err := inst.Resolve(context.Background(), core.NewAgentContext("u1", "g1"))
	require.NoError(t, err)
	assert.Equal(t, "hello u1", got)
}

func TestInstruction_Zero(t *testing.T) {
	assert.True(t, Instruction{}.IsZero())
}

func TestResolveInstruction_Precedence(t *testing.T) {
	actx := core.NewAgentContext("u1", "g1")
	actx.ProjectID = "p1"

	b := NewBaseHandler(core.AgentTypeData, "default for {{.ProjectID}}")
	got, err := b.ResolveInstruction(context.Background(), actx)
	require.NoError(t, err)
	assert.Equal(t, "default for p1", got)

	b = NewBaseHandler(core.AgentTypeData, "default", func(o *Options) {
		o.Instruction = NewInstructionFromText("configured {{.UserID}}")
	})
	got, err = b.ResolveInstruction(context.Background(), actx)
	require.NoError(t, err)
	assert.Equal(t, "configured u1", got)

	actx.SetInstruction(core.AgentTypeData, "override {{.ProjectID}}")
	got, err = b.ResolveInstruction(context.Background(), actx)
	require.NoError(t, err)
	assert.Equal(t, "override p1", got)
}
