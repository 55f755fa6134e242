package core

import "context"

// Runner defines the orchestration contract for driving a hop sequence from a
// starting agent until a terminal result or the turn ceiling.
//
// Semantics & Guarantees:
//   - Turns execute strictly in sequence; at most one agent is active per run.
//   - ProcessInput never returns an error: every failure is converted into a
//     displayable AgentResult.
//   - Overlapping calls on the same instance are rejected, not queued.
type Runner interface {
	ProcessInput(ctx context.Context, input string) AgentResult
	CurrentAgent() AgentType
}
