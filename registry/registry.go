// Package registry maps agent types to handler factories.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rvndrmann/mannmediaagency-sub000/agent"
	"github.com/rvndrmann/mannmediaagency-sub000/core"
	"github.com/rvndrmann/mannmediaagency-sub000/logging"
)

// HandlerFailedMessage is returned when a handler errors or panics.
const HandlerFailedMessage = "The %s agent failed to process your request. Please try again."

// Factory builds a handler for one turn.
type Factory func() core.Handler

// DefaultFactories returns the factories of every built-in agent type, all
// sharing the given handler options.
func DefaultFactories(optFns ...func(o *agent.Options)) map[core.AgentType]Factory {
	return map[core.AgentType]Factory{
		core.AgentTypeMain:   func() core.Handler { return agent.NewMainHandler(optFns...) },
		core.AgentTypeScript: func() core.Handler { return agent.NewScriptHandler(optFns...) },
		core.AgentTypeImage:  func() core.Handler { return agent.NewImageHandler(optFns...) },
		core.AgentTypeTool:   func() core.Handler { return agent.NewToolHandler(optFns...) },
		core.AgentTypeScene:  func() core.Handler { return agent.NewSceneHandler(optFns...) },
		core.AgentTypeData:   func() core.Handler { return agent.NewDataHandler(optFns...) },
	}
}

// Options configures a Registry.
type Options struct {
	// HandlerOptions are applied to every built-in handler created by Initialize.
	HandlerOptions []func(o *agent.Options)
	Logger         logging.Logger
}

// Registry is a concurrency-safe map of agent types to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[core.AgentType]Factory
	opts      Options
	logger    *logging.StructuredLogger
	initOnce  sync.Once
}

// New creates an empty registry. Call Initialize to add the built-in types.
func New(optFns ...func(o *Options)) *Registry {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Registry{
		factories: make(map[core.AgentType]Factory),
		opts:      opts,
		logger:    logging.NewStructuredLogger(opts.Logger).WithComponent("registry"),
	}
}

// Initialize registers the built-in factories. It is idempotent, and types
// registered before the first call keep their custom factory.
func (r *Registry) Initialize() {
	r.initOnce.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		for t, f := range DefaultFactories(r.opts.HandlerOptions...) {
			if _, ok := r.factories[t]; !ok {
				r.factories[t] = f
			}
		}

		r.logger.Debug("registry.initialized", "types", len(r.factories))
	})
}

// Register adds or replaces the factory of t.
func (r *Registry) Register(t core.AgentType, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[t] = f
}

// Has reports whether t is registered.
func (r *Registry) Has(t core.AgentType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.factories[t]

	return ok
}

// Types returns the registered types sorted by name.
func (r *Registry) Types() []core.AgentType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.AgentType, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// Lookup builds the handler of t, reporting whether t is registered.
func (r *Registry) Lookup(t core.AgentType) (core.Handler, bool) {
	r.mu.RLock()
	f, ok := r.factories[t]
	r.mu.RUnlock()

	if !ok {
		return nil, false
	}

	return f(), true
}

// Create builds the handler of t. Unknown types yield a handler whose every
// turn answers with a degraded "Agent not found" result.
func (r *Registry) Create(t core.AgentType) core.Handler {
	if h, ok := r.Lookup(t); ok && h != nil {
		return h
	}

	r.logger.Warn("registry.agent.not_found", "agent_type", string(t))

	return notFound{agentType: t}
}

// Run creates the handler of t and processes input. Returned errors and
// panics are logged and degraded; Run never fails.
func (r *Registry) Run(ctx context.Context, t core.AgentType, input string, actx *core.AgentContext) (res core.AgentResult) {
	log := r.logger
	if actx != nil {
		log = log.WithRun(actx.RunID, actx.GroupID)
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("registry.agent.panic", "agent_type", string(t), "panic", fmt.Sprint(rec))
			res = core.DegradedResult(t, fmt.Sprintf(HandlerFailedMessage, t))
		}
	}()

	res, err := r.Create(t).Process(ctx, input, actx)
	if err != nil {
		log.Error("registry.agent.failed", "agent_type", string(t), "error", err.Error())
		return core.DegradedResult(t, fmt.Sprintf(HandlerFailedMessage, t))
	}

	if res.AgentType == core.AgentTypeNone {
		res.AgentType = t
	}

	return res
}

// notFound is the sentinel handler of an unregistered type.
type notFound struct {
	agentType core.AgentType
}

func (h notFound) Type() core.AgentType { return h.agentType }

func (h notFound) Process(context.Context, string, *core.AgentContext) (core.AgentResult, error) {
	return core.DegradedResult(h.agentType, fmt.Sprintf("Agent not found: %s", h.agentType)), nil
}
