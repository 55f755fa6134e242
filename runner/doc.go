// Package runner implements the orchestration loop of the media agency.
//
// A Runner owns one conversation (a group). Each ProcessInput call is a run:
//
//  1. The run context is cloned from the conversation context, with a fresh
//     RunID and the persisted history of the group.
//  2. The current agent processes the input through the registry.
//  3. A result that names a next agent is applied to the context as a
//     handoff and the SAME input is processed again by the target.
//  4. The loop stops at a terminal result or after Options.MaxTurns turns.
//     Hitting the ceiling with a pending handoff ends the run with the last
//     response plus a notice.
//
// Every event of the run is appended to the SessionStore. Failures never
// escape: errors, vetoes and panics become degraded results carrying a
// displayable message. Overlapping calls on one Runner are rejected with
// BusyMessage rather than queued.
//
// Lifecycle hooks (before_turn, after_turn, on_handoff, on_error,
// on_complete) are delivered through a CallbackManager. A before_turn
// callback that returns an error vetoes the turn.
package runner
