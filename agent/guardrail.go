package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
)

var (
	// ErrGuardrailBlocked is matched by every GuardrailError.
	ErrGuardrailBlocked = errors.New("blocked by guardrail")
	// ErrNotAuthenticated is returned by authenticators that reject a user.
	ErrNotAuthenticated = errors.New("user not authenticated")
)

const (
	// NotAuthenticatedMessage is returned to unauthenticated callers.
	NotAuthenticatedMessage = "User not authenticated"
	// GuardrailBlockedMessage prefixes the reason of a blocked input.
	GuardrailBlockedMessage = "Your message was blocked by a guardrail: "
	// OutputBlockedMessage prefixes the reason of a blocked response.
	OutputBlockedMessage = "The response was withheld by a guardrail: "
)

// GuardrailError describes a rejected input or output.
type GuardrailError struct {
	Guardrail string
	Stage     string // "input" or "output"
	Reason    string
}

func (e *GuardrailError) Error() string {
	return fmt.Sprintf("guardrail %s rejected %s: %s", e.Guardrail, e.Stage, e.Reason)
}

// Is makes errors.Is(err, ErrGuardrailBlocked) work.
func (e *GuardrailError) Is(target error) bool { return target == ErrGuardrailBlocked }

// Guardrail validates text before it reaches a model and after a response is
// produced. A nil error lets the text through.
type Guardrail interface {
	Name() string
	CheckInput(ctx context.Context, input string, actx *core.AgentContext) error
	CheckOutput(ctx context.Context, output string, actx *core.AgentContext) error
}

// NonEmptyGuardrail rejects blank input and blank responses.
type NonEmptyGuardrail struct{}

// Name implements Guardrail.
func (NonEmptyGuardrail) Name() string { return "non_empty" }

// CheckInput implements Guardrail.
func (g NonEmptyGuardrail) CheckInput(_ context.Context, input string, _ *core.AgentContext) error {
	if strings.TrimSpace(input) == "" {
		return &GuardrailError{Guardrail: g.Name(), Stage: "input", Reason: "message is empty"}
	}

	return nil
}

// CheckOutput implements Guardrail.
func (g NonEmptyGuardrail) CheckOutput(_ context.Context, output string, _ *core.AgentContext) error {
	if strings.TrimSpace(output) == "" {
		return &GuardrailError{Guardrail: g.Name(), Stage: "output", Reason: "response is empty"}
	}

	return nil
}

// MaxLengthGuardrail rejects inputs longer than Max runes. Outputs pass.
type MaxLengthGuardrail struct {
	Max int
}

// Name implements Guardrail.
func (MaxLengthGuardrail) Name() string { return "max_length" }

// CheckInput implements Guardrail.
func (g MaxLengthGuardrail) CheckInput(_ context.Context, input string, _ *core.AgentContext) error {
	if g.Max > 0 && utf8.RuneCountInString(input) > g.Max {
		return &GuardrailError{
			Guardrail: g.Name(),
			Stage:     "input",
			Reason:    fmt.Sprintf("message exceeds %d characters", g.Max),
		}
	}

	return nil
}

// CheckOutput implements Guardrail.
func (MaxLengthGuardrail) CheckOutput(context.Context, string, *core.AgentContext) error { return nil }

// BlocklistGuardrail rejects inputs containing any of Terms (case-insensitive).
type BlocklistGuardrail struct {
	Terms []string
}

// Name implements Guardrail.
func (BlocklistGuardrail) Name() string { return "blocklist" }

// CheckInput implements Guardrail.
func (g BlocklistGuardrail) CheckInput(_ context.Context, input string, _ *core.AgentContext) error {
	lower := strings.ToLower(input)
	for _, term := range g.Terms {
		if term != "" && strings.Contains(lower, strings.ToLower(term)) {
			return &GuardrailError{Guardrail: g.Name(), Stage: "input", Reason: "message contains blocked content"}
		}
	}

	return nil
}

// CheckOutput implements Guardrail.
func (BlocklistGuardrail) CheckOutput(context.Context, string, *core.AgentContext) error { return nil }

// Authenticator decides whether the user of a run may be served.
type Authenticator interface {
	Authenticate(ctx context.Context, actx *core.AgentContext) error
}

// AuthenticatorFunc adapts a function into an Authenticator.
type AuthenticatorFunc func(ctx context.Context, actx *core.AgentContext) error

// Authenticate implements Authenticator.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, actx *core.AgentContext) error {
	return f(ctx, actx)
}

// RequireUserID accepts any context carrying a non-empty user id.
var RequireUserID = AuthenticatorFunc(func(_ context.Context, actx *core.AgentContext) error {
	if actx == nil || strings.TrimSpace(actx.UserID) == "" {
		return ErrNotAuthenticated
	}

	return nil
})

func guardrailReason(err error) string {
	var ge *GuardrailError
	if errors.As(err, &ge) {
		return ge.Reason
	}

	return err.Error()
}
