// Package core provides the foundational domain types and interfaces shared by
// every layer of the media agent router. It defines:
//
//   - Agent types (the closed set of specialised handlers) and the Handler contract
//   - AgentContext (the typed, per-run conversation state threaded across hops)
//   - HandoffRequest / AgentResult (the delegation directive and uniform return shape)
//   - Events and Sessions (the audit trail and conversation history of a group)
//   - ToolContext (the constrained surface handed to tool implementations)
//   - Store interfaces for projects, scenes and credits
//
// The package keeps implementation concerns (persistence backends, concrete
// handlers, orchestration) out of scope and exposes small interfaces so that
// runners, registries and stores can be swapped independently.
package core
