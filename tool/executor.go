package tool

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
	"github.com/rvndrmann/mannmediaagency-sub000/internal/util"
	"github.com/rvndrmann/mannmediaagency-sub000/logging"
)

// Command names a tool and its parameters. ID is generated when empty.
type Command struct {
	ID         string         `json:"id,omitempty"`
	ToolName   string         `json:"tool"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	// States records execution state per command (default in-memory).
	States StateStore
	// Credits is charged for successful paid executions when set.
	Credits core.CreditStore
	// Projects is handed to tools through the ToolContext.
	Projects core.ProjectStore
	Logger   logging.Logger
}

// Executor runs commands against a Registry. Every attempt (success,
// business failure, validation error, panic) yields a Result; nothing is
// propagated as an error or panic past ExecuteCommand.
type Executor struct {
	registry *Registry
	opts     ExecutorOptions
	logger   *logging.StructuredLogger
}

// NewExecutor creates an executor over registry.
func NewExecutor(registry *Registry, optFns ...func(o *ExecutorOptions)) *Executor {
	opts := ExecutorOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.States == nil {
		opts.States = NewInMemoryStateStore()
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Executor{
		registry: registry,
		opts:     opts,
		logger:   logging.NewStructuredLogger(opts.Logger).WithComponent("tool.executor"),
	}
}

// Registry returns the registry the executor resolves tools from.
func (e *Executor) Registry() *Registry { return e.registry }

// ExecuteCommand looks up, credit-checks, validates and executes cmd on
// behalf of actx. A successful paid execution deducts the cost from actx
// (and from the CreditStore when configured).
func (e *Executor) ExecuteCommand(ctx context.Context, cmd Command, actx *core.AgentContext) Result {
	if actx == nil {
		actx = &core.AgentContext{}
	}

	if cmd.ID == "" {
		cmd.ID = core.NewID()
	}

	now := time.Now().UTC()
	st := CommandState{
		ID:         cmd.ID,
		ToolName:   cmd.ToolName,
		UserID:     actx.UserID,
		RunID:      actx.RunID,
		Parameters: maps.Clone(cmd.Parameters),
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	e.saveState(ctx, &st, StatusPending, nil)

	t, ok := e.registry.Get(cmd.ToolName)
	if !ok {
		return e.fail(ctx, &st, Failed(CodeNotFound, fmt.Sprintf("Tool not found: %s", cmd.ToolName)))
	}

	if cost := t.RequiredCredits(); actx.CreditsRemaining < cost {
		return e.fail(ctx, &st, Failed(CodeInsufficientCredits, fmt.Sprintf(
			"Insufficient credits. This action requires %d credits, but you have %d.", cost, actx.CreditsRemaining)))
	}

	params := cmd.Parameters
	if params == nil {
		params = map[string]any{}
	}

	if err := util.ValidateParameters(params, t.Parameters()); err != nil {
		return e.fail(ctx, &st, Failed(CodeValidation, fmt.Sprintf("Invalid parameters for %s: %v", t.Name(), err)))
	}

	e.saveState(ctx, &st, StatusExecuting, nil)

	tc := core.NewToolContext(ctx, actx, cmd.ID, t.Name(), func(o *core.ToolContextOptions) {
		o.Projects = e.opts.Projects
		o.Logger = e.opts.Logger
	})

	start := time.Now()
	res, err := e.safeExecute(t, tc, params)
	e.logger.WithRun(actx.RunID, actx.GroupID).LogToolCall(t.Name(), time.Since(start), err == nil && res.Success, err)

	if err != nil {
		code := CodeExecution

		var toolErr *ToolError
		if errors.As(err, &toolErr) && toolErr.Code != "" {
			code = toolErr.Code
		}

		return e.fail(ctx, &st, Failed(code, fmt.Sprintf("Error executing %s: %v", t.Name(), err)))
	}

	res.CommandID = cmd.ID
	res.Handoff = tc.Transfer()

	if !res.Success {
		if res.Error == "" {
			res.Error = res.Message
		}

		e.saveState(ctx, &st, StatusFailed, &res)

		return res
	}

	e.charge(ctx, t, actx)
	e.saveState(ctx, &st, StatusCompleted, &res)

	return res
}

// Status returns the execution state of a command for polling.
func (e *Executor) Status(ctx context.Context, id string) (CommandState, error) {
	return e.opts.States.Get(ctx, id)
}

func (e *Executor) safeExecute(t Tool, tc *core.ToolContext, params map[string]any) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ToolError{Tool: t.Name(), Message: fmt.Sprintf("panic: %v", r), Code: CodeExecution}
		}
	}()

	return t.Execute(tc, params)
}

// charge deducts the tool cost. The tool has already run, so a failed
// deduction is logged rather than turning the result into a failure.
func (e *Executor) charge(ctx context.Context, t Tool, actx *core.AgentContext) {
	cost := t.RequiredCredits()
	if cost <= 0 {
		return
	}

	if e.opts.Credits == nil {
		actx.CreditsRemaining -= cost
		return
	}

	balance, err := e.opts.Credits.Deduct(ctx, actx.UserID, cost)
	if err != nil {
		e.logger.Error("tool.credits.deduct_failed", "tool", t.Name(), "user_id", actx.UserID, "cost", cost, "error", err.Error())
		actx.CreditsRemaining -= cost

		return
	}

	actx.CreditsRemaining = balance
}

func (e *Executor) fail(ctx context.Context, st *CommandState, res Result) Result {
	res.CommandID = st.ID
	e.logger.Warn("tool.command.failed", "tool", st.ToolName, "command_id", st.ID, "code", res.Code, "message", res.Message)
	e.saveState(ctx, st, StatusFailed, &res)

	return res
}

func (e *Executor) saveState(ctx context.Context, st *CommandState, status CommandStatus, res *Result) {
	st.Status = status
	st.Result = res
	st.UpdatedAt = time.Now().UTC()

	if err := e.opts.States.Save(ctx, *st); err != nil {
		e.logger.Error("tool.state.save_failed", "command_id", st.ID, "status", string(status), "error", err.Error())
	}
}
