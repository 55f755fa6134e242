// Package mediaagency provides a high-level façade over the agent registry,
// the tool executor and the runner. Most applications interact with this
// package by:
//  1. Creating a System via New() (optionally overriding the default
//     in-memory stores and supplying a model)
//  2. Calling Initialize() once to register the built-in agent types
//  3. Running user input synchronously (Run) or building a Runner per
//     conversation (NewRunner)
//
// All defaults are safe for local development and testing; production
// deployments supply the postgres stores, a real model and a structured
// logger.
package mediaagency

import (
	"context"

	"github.com/rvndrmann/mannmediaagency-sub000/agent"
	"github.com/rvndrmann/mannmediaagency-sub000/core"
	"github.com/rvndrmann/mannmediaagency-sub000/internal/telemetry"
	"github.com/rvndrmann/mannmediaagency-sub000/logging"
	"github.com/rvndrmann/mannmediaagency-sub000/model"
	"github.com/rvndrmann/mannmediaagency-sub000/project"
	"github.com/rvndrmann/mannmediaagency-sub000/registry"
	"github.com/rvndrmann/mannmediaagency-sub000/runner"
	"github.com/rvndrmann/mannmediaagency-sub000/session"
	"github.com/rvndrmann/mannmediaagency-sub000/tool"
)

// Options configures the System.
type Options struct {
	// Model serves every completion call of the built-in handlers. A nil
	// model makes every handler answer with its upstream failure message.
	Model model.Model

	// Stores (default to in-memory implementations if not provided). When
	// Projects also implements core.CreditStore and Credits is nil, it
	// serves both.
	Projects      core.ProjectStore
	Credits       core.CreditStore
	Sessions      core.SessionStore
	CommandStates tool.StateStore

	// Classifier routes main-agent input (default keyword classifier).
	Classifier agent.Classifier

	// Tools registered with the executor (default tool.Builtins()).
	Tools []tool.Tool

	// Runner defaults applied to every runner built by the System.
	StartAgent            core.AgentType
	MaxTurns              int
	ContinueWithLastAgent bool
	MaxHistoryMessages    int

	// HandlerOptions are applied after the System's own handler options.
	HandlerOptions []func(o *agent.Options)

	// Metrics is optional.
	Metrics *telemetry.Metrics

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// System aggregates the registry, the tool executor and the stores.
type System struct {
	opts     Options
	registry *registry.Registry
	executor *tool.Executor
}

// New creates a System with optional overrides. Any unset store is
// initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *System {
	opts := Options{
		StartAgent: core.AgentTypeMain,
		MaxTurns:   core.DefaultMaxTurns,
		Logger:     logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Projects == nil {
		opts.Projects = project.NewInMemoryStore()
	}

	if opts.Credits == nil {
		if cs, ok := opts.Projects.(core.CreditStore); ok {
			opts.Credits = cs
		}
	}

	if opts.Sessions == nil {
		opts.Sessions = session.NewInMemoryStore()
	}

	if opts.Tools == nil {
		opts.Tools = tool.Builtins()
	}

	executor := tool.NewExecutor(tool.NewRegistry(opts.Tools...), func(o *tool.ExecutorOptions) {
		o.States = opts.CommandStates
		o.Credits = opts.Credits
		o.Projects = opts.Projects
		o.Logger = opts.Logger
	})

	handlerOpts := append([]func(o *agent.Options){
		func(o *agent.Options) {
			o.Model = opts.Model
			o.Projects = opts.Projects
			o.Executor = executor
			o.Classifier = opts.Classifier
			o.Logger = opts.Logger
		},
	}, opts.HandlerOptions...)

	reg := registry.New(func(o *registry.Options) {
		o.HandlerOptions = handlerOpts
		o.Logger = opts.Logger
	})

	return &System{opts: opts, registry: reg, executor: executor}
}

// Initialize registers the built-in agent types. Calling it more than once
// has no further effect.
func (s *System) Initialize() { s.registry.Initialize() }

// Registry returns the agent registry.
func (s *System) Registry() *registry.Registry { return s.registry }

// Executor returns the tool executor.
func (s *System) Executor() *tool.Executor { return s.executor }

// Sessions returns the session store shared by every runner.
func (s *System) Sessions() core.SessionStore { return s.opts.Sessions }

// Credits returns the credit store, or nil when none is configured.
func (s *System) Credits() core.CreditStore { return s.opts.Credits }

// Projects returns the project store.
func (s *System) Projects() core.ProjectStore { return s.opts.Projects }

// RunnerOptions returns the runner defaults of the System. The returned
// functions are meant to be applied before caller overrides.
func (s *System) RunnerOptions() []func(o *runner.Options) {
	return []func(o *runner.Options){
		func(o *runner.Options) {
			if s.opts.StartAgent != "" {
				o.StartAgent = s.opts.StartAgent
			}

			if s.opts.MaxTurns > 0 {
				o.MaxTurns = s.opts.MaxTurns
			}

			o.ContinueWithLastAgent = s.opts.ContinueWithLastAgent
			o.SessionStore = s.opts.Sessions
			o.Metrics = s.opts.Metrics
			o.Logger = s.opts.Logger

			if s.opts.MaxHistoryMessages > 0 {
				o.MaxHistoryMessages = s.opts.MaxHistoryMessages
			}
		},
	}
}

// NewRunner builds a runner for the conversation described by base.
func (s *System) NewRunner(base *core.AgentContext, optFns ...func(o *runner.Options)) *runner.Runner {
	s.Initialize()
	return runner.New(s.registry, base, append(s.RunnerOptions(), optFns...)...)
}

// Run is a synchronous helper that processes one input with a fresh runner.
func (s *System) Run(ctx context.Context, base *core.AgentContext, input string) core.AgentResult {
	return s.NewRunner(base).ProcessInput(ctx, input)
}
