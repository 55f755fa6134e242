// Package model defines the provider-agnostic abstractions and concrete
// helpers for calling the completion endpoint on behalf of agent handlers.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition, ToolCall)
//   - Express handoff requests and structured output as reserved tool calls
//     so every provider reports them the same way (see Complete)
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic, the remote edge function) implement the Model
// interface from this package so handlers remain decoupled from vendor SDKs.
package model
