package runner

import (
	"context"
	"sync"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
	"github.com/rvndrmann/mannmediaagency-sub000/logging"
)

// CallbackType defines the lifecycle points of a run where callbacks execute.
//
// Callbacks are executed synchronously in registration order. A BeforeTurn
// callback returning an error vetoes the turn and ends the run with a
// degraded result; errors of every other type are logged and ignored.
type CallbackType string

const (
	// CallbackBeforeTurn is triggered before an agent processes a turn.
	CallbackBeforeTurn CallbackType = "before_turn"

	// CallbackAfterTurn is triggered after an agent returned its result.
	CallbackAfterTurn CallbackType = "after_turn"

	// CallbackOnHandoff is triggered after a handoff has been applied to the context.
	CallbackOnHandoff CallbackType = "on_handoff"

	// CallbackOnError is triggered when a turn was replaced by a degraded result.
	CallbackOnError CallbackType = "on_error"

	// CallbackOnComplete is triggered once per run with the final result.
	CallbackOnComplete CallbackType = "on_complete"
)

// CallbackContext carries the run state a callback may inspect.
type CallbackContext struct {
	CallbackType CallbackType

	// AgentContext is the live run context. Callbacks should treat it as read-only.
	AgentContext *core.AgentContext

	// Agent is the agent of the current turn.
	Agent core.AgentType
	Turn  int
	Input string

	// Result is set for AfterTurn, OnError and OnComplete.
	Result *core.AgentResult

	// Handoff is set for OnHandoff.
	Handoff *core.HandoffRecord

	// Err is set for OnError when the failure carried an error value.
	Err error
}

// Callback is a run lifecycle hook.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, cc *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	audit := NewFunctionCallback(CallbackOnHandoff, func(ctx context.Context, cc *CallbackContext) error {
//	    log.Printf("%s -> %s", cc.Handoff.From, cc.Handoff.To)
//	    return nil
//	})
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, cc *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(callbackType CallbackType, fn func(ctx context.Context, cc *CallbackContext) error) *FunctionCallback {
	return &FunctionCallback{callbackType: callbackType, fn: fn}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

// Execute calls the wrapped function.
func (c *FunctionCallback) Execute(ctx context.Context, cc *CallbackContext) error {
	return c.fn(ctx, cc)
}

// CallbackManager stores callbacks per type. Registration and execution are
// safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{callbacks: make(map[CallbackType][]Callback)}
}

// RegisterCallback adds callbacks; several may share a type.
func (cm *CallbackManager) RegisterCallback(callbacks ...Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for _, cb := range callbacks {
		cm.callbacks[cb.Type()] = append(cm.callbacks[cb.Type()], cb)
	}
}

// ExecuteCallbacks runs the callbacks of callbackType in registration order
// and returns the first error, skipping the remaining callbacks.
func (cm *CallbackManager) ExecuteCallbacks(ctx context.Context, callbackType CallbackType, cc *CallbackContext) error {
	cm.mu.RLock()
	callbacks := append([]Callback(nil), cm.callbacks[callbackType]...)
	cm.mu.RUnlock()

	cc.CallbackType = callbackType

	for _, cb := range callbacks {
		if err := cb.Execute(ctx, cc); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback writes one structured log line per lifecycle event.
type LoggingCallback struct {
	callbackType CallbackType
	logger       *logging.StructuredLogger
}

// NewLoggingCallback creates a logging callback for callbackType.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logging.NewStructuredLogger(logger).WithComponent("runner.callback"),
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType { return c.callbackType }

// Execute logs the event.
func (c *LoggingCallback) Execute(_ context.Context, cc *CallbackContext) error {
	args := []any{"agent", string(cc.Agent), "turn", cc.Turn}

	if cc.AgentContext != nil {
		args = append(args, "run_id", cc.AgentContext.RunID)
	}

	if cc.Handoff != nil {
		args = append(args, "from", string(cc.Handoff.From), "to", string(cc.Handoff.To), "reason", cc.Handoff.Reason)
	}

	if cc.Result != nil {
		args = append(args, "degraded", cc.Result.Degraded, "next_agent", string(cc.Result.NextAgent))
	}

	if cc.Err != nil {
		args = append(args, "error", cc.Err.Error())
	}

	c.logger.Info("runner."+string(c.callbackType), args...)

	return nil
}
