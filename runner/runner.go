package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
	"github.com/rvndrmann/mannmediaagency-sub000/internal/telemetry"
	"github.com/rvndrmann/mannmediaagency-sub000/logging"
	"github.com/rvndrmann/mannmediaagency-sub000/registry"
	"github.com/rvndrmann/mannmediaagency-sub000/session"
)

const (
	// BusyMessage rejects a call that overlaps a run in progress.
	BusyMessage = "I'm still processing your previous request. Please wait a moment."

	// ErrorMessage replaces the result of a run that failed unexpectedly.
	ErrorMessage = "I encountered an error while processing your request. Please try again."

	// DuplicateMessage answers a message id that was already processed.
	DuplicateMessage = "This message has already been processed."

	ceilingNotice = "(Maximum delegation depth reached after %d turns.)"

	maxProcessedIDs = 1024
)

var errTurnVetoed = errors.New("turn vetoed by callback")

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// StartAgent is where every run begins (default main).
	StartAgent core.AgentType
	// MaxTurns caps the agent turns of one run (default core.DefaultMaxTurns).
	MaxTurns int
	// ContinueWithLastAgent starts a run at the agent that produced the
	// previous final answer of the conversation.
	ContinueWithLastAgent bool
	// SessionStore persists the conversation under the context's GroupID.
	SessionStore core.SessionStore
	// Callbacks receives lifecycle hooks.
	Callbacks *CallbackManager
	// Metrics is optional.
	Metrics *telemetry.Metrics
	// MaxHistoryMessages bounds the history loaded into a new run.
	MaxHistoryMessages int
	// Logging services.
	Logger logging.Logger
}

// Runner drives the handoff loop of one conversation: it invokes the current
// agent, applies handoffs and re-processes the same input with the target
// agent until a terminal result or the turn ceiling. Overlapping calls on
// one instance are rejected, not queued.
type Runner struct {
	registry *registry.Registry
	base     *core.AgentContext
	opts     Options
	logger   *logging.StructuredLogger

	processing atomic.Bool

	mu        sync.RWMutex
	current   core.AgentType
	last      *core.AgentContext
	processed map[string]struct{}
}

var _ core.Runner = (*Runner)(nil)

// New constructs a Runner over reg. base carries the conversation identity
// (user, group, project, scene, credits); each run works on a clone of it.
func New(reg *registry.Registry, base *core.AgentContext, optFns ...func(o *Options)) *Runner {
	opts := Options{
		StartAgent:         core.AgentTypeMain,
		MaxTurns:           core.DefaultMaxTurns,
		MaxHistoryMessages: 50,
		Logger:             logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}

	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}

	if base == nil {
		base = core.NewAgentContext("", "")
	}

	if base.GroupID == "" {
		base.GroupID = core.NewID()
	}

	return &Runner{
		registry:  reg,
		base:      base,
		opts:      opts,
		logger:    logging.NewStructuredLogger(opts.Logger).WithComponent("runner"),
		current:   opts.StartAgent,
		processed: make(map[string]struct{}),
	}
}

// CurrentAgent returns the agent that is active (or was active last).
func (r *Runner) CurrentAgent() core.AgentType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.current
}

// LastContext returns a clone of the context of the most recent run.
func (r *Runner) LastContext() *core.AgentContext {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.last == nil {
		return nil
	}

	return r.last.Clone()
}

// Callbacks returns the callback manager for registration.
func (r *Runner) Callbacks() *CallbackManager { return r.opts.Callbacks }

// GroupID returns the conversation id the runner persists under.
func (r *Runner) GroupID() string { return r.base.GroupID }

// ProcessMessage is ProcessInput with de-duplication by client message id.
// A message rejected as busy is not recorded, so the client can resend it.
func (r *Runner) ProcessMessage(ctx context.Context, messageID, input string) (res core.AgentResult) {
	if !r.acquire() {
		return core.NewResult(r.CurrentAgent(), BusyMessage)
	}
	defer r.processing.Store(false)

	if messageID != "" && !r.markProcessed(messageID) {
		return core.NewResult(r.CurrentAgent(), DuplicateMessage)
	}

	defer r.recoverRun(&res)

	return r.run(ctx, input)
}

// ProcessInput runs input to completion. It never returns an error: every
// failure becomes a displayable, degraded result.
func (r *Runner) ProcessInput(ctx context.Context, input string) (res core.AgentResult) {
	if !r.acquire() {
		return core.NewResult(r.CurrentAgent(), BusyMessage)
	}
	defer r.processing.Store(false)

	defer r.recoverRun(&res)

	return r.run(ctx, input)
}

func (r *Runner) acquire() bool {
	if r.processing.CompareAndSwap(false, true) {
		return true
	}

	r.logger.Warn("runner.busy", "group_id", r.base.GroupID)

	return false
}

// markProcessed records messageID and reports whether it was new.
func (r *Runner) markProcessed(messageID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, seen := r.processed[messageID]; seen {
		return false
	}

	if len(r.processed) >= maxProcessedIDs {
		r.processed = make(map[string]struct{})
	}

	r.processed[messageID] = struct{}{}

	return true
}

func (r *Runner) recoverRun(res *core.AgentResult) {
	if rec := recover(); rec != nil {
		r.logger.Error("runner.panic", "group_id", r.base.GroupID, "panic", fmt.Sprint(rec))
		*res = core.DegradedResult(r.CurrentAgent(), ErrorMessage)
	}
}

func (r *Runner) run(ctx context.Context, input string) core.AgentResult {
	actx := r.newRunContext(ctx)
	log := r.logger.WithRun(actx.RunID, actx.GroupID)

	ctx, span := telemetry.StartRunSpan(ctx, actx.RunID, actx.GroupID, actx.UserID)
	defer span.End()

	start := time.Now()
	r.countRun(ctx, func(m *telemetry.Metrics) metric.Int64Counter { return m.RunsStarted })

	current := r.startAgent(ctx)
	r.setCurrent(current)

	r.persist(ctx, core.NewUserMessageEvent(actx.RunID, input))
	log.Info("runner.run.started", "agent", string(current))

	limiter := core.NewTurnLimiter(r.opts.MaxTurns)

	var res core.AgentResult

	for {
		if err := limiter.Increment(); err != nil {
			res = r.ceiling(res, limiter.Count())
			break
		}

		turn := limiter.Count()

		var err error

		res, err = r.turn(ctx, current, turn, input, actx)
		if err != nil {
			res = core.DegradedResult(current, ErrorMessage)
			r.fire(ctx, CallbackOnError, &CallbackContext{AgentContext: actx, Agent: current, Turn: turn, Input: input, Result: &res, Err: err})

			break
		}

		if res.Terminal() {
			break
		}

		if limiter.Exhausted() {
			log.Warn("runner.turn_limit.reached", "turns", turn, "pending_agent", string(res.NextAgent))
			res = r.ceiling(res, turn)

			break
		}

		req := res.Handoff()
		rec := actx.ApplyHandoff(current, *req, turn)

		log.LogHandoff(string(rec.From), string(rec.To), rec.Reason, turn)
		r.persist(ctx, core.NewTurnEvent(actx.RunID, turn, res))
		r.countRun(ctx, func(m *telemetry.Metrics) metric.Int64Counter { return m.Handoffs })
		r.fire(ctx, CallbackOnHandoff, &CallbackContext{AgentContext: actx, Agent: current, Turn: turn, Input: input, Result: &res, Handoff: &rec})

		current = req.TargetAgent
		r.setCurrent(current)
	}

	actx.AddMessage(core.NewUserMessage(input))
	actx.AddMessage(core.NewAssistantMessage(res.AgentType, res.Response))

	r.persist(ctx, core.NewTurnEvent(actx.RunID, limiter.Count(), res))
	r.fire(ctx, CallbackOnComplete, &CallbackContext{AgentContext: actx, Agent: current, Turn: limiter.Count(), Input: input, Result: &res})

	r.mu.Lock()
	r.last = actx
	r.mu.Unlock()

	span.SetAttributes(
		attribute.Int("run.turns", limiter.Count()),
		attribute.String("run.final_agent", string(res.AgentType)),
		attribute.Bool("run.degraded", res.Degraded),
	)

	if res.Degraded {
		span.SetStatus(codes.Error, "degraded result")
		r.countRun(ctx, func(m *telemetry.Metrics) metric.Int64Counter { return m.RunsDegraded })
	}

	r.countRun(ctx, func(m *telemetry.Metrics) metric.Int64Counter { return m.RunsCompleted })

	if m := r.opts.Metrics; m != nil {
		m.TurnsPerRun.Record(ctx, int64(limiter.Count()))
		m.RunDuration.Record(ctx, time.Since(start).Seconds())
	}

	log.Info("runner.run.completed", "agent", string(res.AgentType), "turns", limiter.Count(), "degraded", res.Degraded)

	return res
}

// turn executes a single agent turn with its callbacks and span.
func (r *Runner) turn(ctx context.Context, agentType core.AgentType, turn int, input string, actx *core.AgentContext) (core.AgentResult, error) {
	ctx, span := telemetry.StartTurnSpan(ctx, actx.RunID, string(agentType), turn)
	defer span.End()

	cc := &CallbackContext{AgentContext: actx, Agent: agentType, Turn: turn, Input: input}
	if err := r.opts.Callbacks.ExecuteCallbacks(ctx, CallbackBeforeTurn, cc); err != nil {
		r.logger.WithRun(actx.RunID, actx.GroupID).Warn("runner.turn.vetoed", "agent", string(agentType), "error", err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, "vetoed")

		return core.AgentResult{}, fmt.Errorf("%w: %w", errTurnVetoed, err)
	}

	res := r.registry.Run(ctx, agentType, input, actx)
	if res.AgentType == core.AgentTypeNone {
		res.AgentType = agentType
	}

	span.SetAttributes(attribute.String("turn.next_agent", string(res.NextAgent)))

	cc.Result = &res
	r.fire(ctx, CallbackAfterTurn, cc)

	if res.Degraded {
		r.fire(ctx, CallbackOnError, &CallbackContext{AgentContext: actx, Agent: agentType, Turn: turn, Input: input, Result: &res})
	}

	return res, nil
}

// ceiling ends a run that still wants to delegate after the last allowed turn.
func (r *Runner) ceiling(res core.AgentResult, turns int) core.AgentResult {
	res = res.ClearHandoff()

	notice := fmt.Sprintf(ceilingNotice, turns)
	if res.Response == "" {
		res.Response = notice
	} else {
		res.Response += "\n\n" + notice
	}

	return res
}

// newRunContext clones the conversation context for a fresh run and loads
// the persisted conversation history.
func (r *Runner) newRunContext(ctx context.Context) *core.AgentContext {
	actx := r.base.Clone()
	actx.RunID = core.NewID()
	actx.Metadata = core.Metadata{
		Instructions: actx.Metadata.Instructions,
		Extra:        actx.Metadata.Extra,
	}

	// Credits spent in the previous run carry over.
	r.mu.RLock()
	if r.last != nil {
		actx.CreditsRemaining = r.last.CreditsRemaining
	}
	r.mu.RUnlock()

	sess, err := r.opts.SessionStore.Get(ctx, actx.GroupID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			r.logger.Warn("runner.history.load_failed", "group_id", actx.GroupID, "error", err.Error())
		}

		return actx
	}

	history := sess.GetConversationHistory()
	if n := r.opts.MaxHistoryMessages; n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}

	actx.History = history

	return actx
}

func (r *Runner) startAgent(ctx context.Context) core.AgentType {
	if !r.opts.ContinueWithLastAgent {
		return r.opts.StartAgent
	}

	sess, err := r.opts.SessionStore.Get(ctx, r.base.GroupID)
	if err != nil || sess.LastAgent == core.AgentTypeNone || !r.registry.Has(sess.LastAgent) {
		return r.opts.StartAgent
	}

	return sess.LastAgent
}

func (r *Runner) setCurrent(t core.AgentType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.current = t
}

func (r *Runner) persist(ctx context.Context, ev core.Event) {
	if err := r.opts.SessionStore.AppendEvent(ctx, r.base.GroupID, ev); err != nil {
		r.logger.Error("runner.session.append_failed", "group_id", r.base.GroupID, "event_id", ev.ID, "error", err.Error())
	}
}

func (r *Runner) fire(ctx context.Context, t CallbackType, cc *CallbackContext) {
	if err := r.opts.Callbacks.ExecuteCallbacks(ctx, t, cc); err != nil {
		r.logger.Warn("runner.callback.failed", "callback", string(t), "error", err.Error())
	}
}

func (r *Runner) countRun(ctx context.Context, pick func(m *telemetry.Metrics) metric.Int64Counter) {
	if r.opts.Metrics != nil {
		pick(r.opts.Metrics).Add(ctx, 1)
	}
}
