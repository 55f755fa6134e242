package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/nats-io/nats.go"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	mediaagency "github.com/rvndrmann/mannmediaagency-sub000"
	"github.com/rvndrmann/mannmediaagency-sub000/core"
	"github.com/rvndrmann/mannmediaagency-sub000/eventbus"
	"github.com/rvndrmann/mannmediaagency-sub000/internal/config"
	"github.com/rvndrmann/mannmediaagency-sub000/internal/telemetry"
	"github.com/rvndrmann/mannmediaagency-sub000/logging"
	"github.com/rvndrmann/mannmediaagency-sub000/model"
	"github.com/rvndrmann/mannmediaagency-sub000/model/anthropic"
	"github.com/rvndrmann/mannmediaagency-sub000/model/openai"
	"github.com/rvndrmann/mannmediaagency-sub000/model/remote"
	"github.com/rvndrmann/mannmediaagency-sub000/project/postgres"
	"github.com/rvndrmann/mannmediaagency-sub000/tool/ristretto"
)

// app holds the wired dependencies shared by serve and chat.
type app struct {
	cfg    *config.Config
	logger logging.Logger
	system *mediaagency.System
	bus    *eventbus.Bus
	start  core.AgentType

	closers []func(ctx context.Context) error
}

// loadConfig reads the config file named by the global flags.
func loadConfig(g *Globals) (*config.Config, error) {
	cfg, err := config.LoadFrom(g.Config)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// newApp wires telemetry, stores, the model and the event bus from cfg.
// On error everything opened so far is closed again.
func newApp(ctx context.Context, cfg *config.Config) (a *app, err error) {
	logger := logging.New(cfg.Logging.LoggerConfig())
	a = &app{cfg: cfg, logger: logger}

	defer func() {
		if err != nil {
			_ = a.close(context.Background())
			a = nil
		}
	}()

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return a, fmt.Errorf("telemetry: %w", err)
	}
	a.closers = append(a.closers, shutdown)

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return a, fmt.Errorf("metrics: %w", err)
	}

	m, err := newModel(cfg.Model)
	if err != nil {
		return a, err
	}

	states, err := ristretto.New(cfg.Cache.MaxCostMB<<20, cfg.Cache.CommandTTL)
	if err != nil {
		return a, fmt.Errorf("command cache: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { states.Close(); return nil })

	opts := []func(o *mediaagency.Options){
		func(o *mediaagency.Options) {
			o.Model = m
			o.CommandStates = states
			o.MaxTurns = cfg.Runner.MaxTurns
			o.ContinueWithLastAgent = cfg.Runner.ContinueWithLastAgent
			o.MaxHistoryMessages = cfg.Runner.MaxHistoryMessages
			o.Metrics = metrics
			o.Logger = logger
		},
	}

	if cfg.Postgres.DSN != "" {
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return a, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { pool.Close(); return nil })

		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return a, fmt.Errorf("migrations: %w", err)
		}

		store := postgres.NewStore(pool)
		sessions := postgres.NewSessionStore(pool)

		opts = append(opts, func(o *mediaagency.Options) {
			o.Projects = store
			o.Credits = store
			o.Sessions = sessions
		})

		logger.Info("app.postgres.connected")
	}

	if cfg.NATS.URL != "" {
		pub, err := eventbus.Connect(cfg.NATS.URL, nats.Name("mediaagent"))
		if err != nil {
			return a, err
		}
		a.closers = append(a.closers, func(context.Context) error { return pub.Close() })

		a.bus = eventbus.New(pub, func(o *eventbus.Options) {
			o.SubjectPrefix = cfg.NATS.SubjectPrefix
			o.Logger = logger
		})

		logger.Info("app.nats.connected", "url", cfg.NATS.URL)
	}

	// Parsing resolves aliases such as "assistant".
	start, err := core.ParseAgentType(cfg.Runner.StartAgent)
	if err != nil {
		return a, fmt.Errorf("start agent: %w", err)
	}

	a.start = start
	opts = append(opts, func(o *mediaagency.Options) { o.StartAgent = start })

	a.system = mediaagency.New(opts...)
	a.system.Initialize()

	logger.Info("app.ready",
		"model_provider", cfg.Model.Provider,
		"start_agent", string(start),
		"max_turns", cfg.Runner.MaxTurns,
		"postgres", cfg.Postgres.DSN != "",
		"nats", a.bus != nil,
	)

	return a, nil
}

// close runs the closers in reverse order.
func (a *app) close(ctx context.Context) error {
	var errs []error

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	a.closers = nil

	return errors.Join(errs...)
}

// newModel builds the completion backend selected by cfg.Provider.
func newModel(cfg config.Model) (model.Model, error) {
	switch cfg.Provider {
	case "openai":
		var reqOpts []option.RequestOption
		if cfg.APIKey != "" {
			reqOpts = append(reqOpts, option.WithAPIKey(cfg.APIKey))
		}

		if cfg.Timeout > 0 {
			reqOpts = append(reqOpts, option.WithRequestTimeout(cfg.Timeout))
		}

		client := openaisdk.NewClient(reqOpts...)

		return openai.NewModelFromClient(&client, func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = cfg.MaxTokens
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Name)
			}
			o.Temperature = cfg.Temperature
			o.MaxTokens = cfg.MaxTokens
			o.APIKey = cfg.APIKey
		}), nil
	case "remote":
		return remote.NewModel(cfg.RemoteURL, func(o *remote.Options) {
			if cfg.Name != "" {
				o.Name = cfg.Name
			}
			o.APIKey = cfg.APIKey
			o.Timeout = cfg.Timeout
		}), nil
	case "mock":
		name := cfg.Name
		if name == "" {
			name = "mock"
		}

		return model.NewMockModel(name, "mock"), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

// shutdownContext bounds the cleanup after a command returns.
func shutdownContext(cfg *config.Config) (context.Context, context.CancelFunc) {
	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return context.WithTimeout(context.Background(), timeout)
}
