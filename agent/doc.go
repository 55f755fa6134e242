// Package agent contains the specialised handlers of the media agency and
// the plumbing they share.
//
// Every handler embeds BaseHandler, which contributes:
//
//  1. Authentication (Authenticator, default RequireUserID)
//  2. Input and output guardrails (Guardrail, default NonEmptyGuardrail)
//  3. Instruction resolution: per-run override, configured Instruction or
//     the built-in template, rendered with the run context
//  4. The completion call through model.Complete, including the
//     transfer_to_agent tool so the model can request a handoff
//
// Handlers never return upstream failures as errors. A failed completion
// becomes an apologetic degraded result; a failed best-effort save is logged
// and reported under StructuredOutput["saveError"].
//
// Routing decisions:
//   - MainHandler delegates on the model's request or, failing that, on the
//     Classifier. Short messages (IsSimpleGreeting) are never delegated.
//   - ScriptHandler, ImageHandler and ToolHandler form the video workflow
//     (script_generation → image_prompt_generation → image_generation).
//   - DataHandler hands back to main when no project is selected.
package agent
