package agent

import (
	"context"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
)

// Provider supplies dynamic instruction text at runtime.
// Implementations can derive instructions from the run context, a database, etc.
type Provider interface {
	Instruction(ctx context.Context, actx *core.AgentContext) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(ctx context.Context, actx *core.AgentContext) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(ctx context.Context, actx *core.AgentContext) (string, error) {
	return f(ctx, actx)
}

// Instruction represents either a static instruction string or a dynamic provider.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(ctx context.Context, actx *core.AgentContext) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// IsZero reports whether neither text nor provider is set.
func (i Instruction) IsZero() bool { return i.provider == nil && i.text == "" }

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(ctx context.Context, actx *core.AgentContext) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(ctx, actx)
	}

	return i.text, nil
}
