// Package eventbus publishes orchestration events (handoffs, completed runs)
// to NATS so other services can follow a conversation without polling.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
	"github.com/rvndrmann/mannmediaagency-sub000/logging"
	"github.com/rvndrmann/mannmediaagency-sub000/runner"
)

// DefaultSubjectPrefix prefixes every subject when none is configured.
const DefaultSubjectPrefix = "mediaagent"

// Publisher sends a payload to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NATSPublisher implements Publisher over a core NATS connection.
type NATSPublisher struct {
	nc *nats.Conn
}

// Connect establishes a connection to NATS.
func Connect(url string, opts ...nats.Option) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &NATSPublisher{nc: nc}, nil
}

// Publish sends data to subject. ctx is checked before sending.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}

	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}

// HandoffEvent is published for every applied handoff.
type HandoffEvent struct {
	RunID     string         `json:"runId"`
	GroupID   string         `json:"groupId"`
	UserID    string         `json:"userId"`
	From      core.AgentType `json:"from"`
	To        core.AgentType `json:"to"`
	Reason    string         `json:"reason"`
	Turn      int            `json:"turn"`
	Timestamp time.Time      `json:"timestamp"`
}

// RunCompletedEvent is published once per run with the final result.
type RunCompletedEvent struct {
	RunID            string         `json:"runId"`
	GroupID          string         `json:"groupId"`
	UserID           string         `json:"userId"`
	ProjectID        string         `json:"projectId,omitempty"`
	AgentType        core.AgentType `json:"agentType"`
	Response         string         `json:"response"`
	Degraded         bool           `json:"degraded"`
	Turns            int            `json:"turns"`
	Handoffs         int            `json:"handoffs"`
	CreditsRemaining int            `json:"creditsRemaining"`
	Timestamp        time.Time      `json:"timestamp"`
}

// Options configures the runner callbacks.
type Options struct {
	SubjectPrefix string
	Logger        logging.Logger
}

// Bus turns runner lifecycle hooks into published events.
type Bus struct {
	pub    Publisher
	opts   Options
	logger *logging.StructuredLogger
}

// New creates a Bus publishing through pub.
func New(pub Publisher, optFns ...func(o *Options)) *Bus {
	opts := Options{SubjectPrefix: DefaultSubjectPrefix, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Bus{
		pub:    pub,
		opts:   opts,
		logger: logging.NewStructuredLogger(opts.Logger).WithComponent("eventbus"),
	}
}

// HandoffSubject is the subject handoff events are published on.
func (b *Bus) HandoffSubject() string { return b.opts.SubjectPrefix + ".runs.handoff" }

// CompletedSubject is the subject run completions are published on.
func (b *Bus) CompletedSubject() string { return b.opts.SubjectPrefix + ".runs.completed" }

// Callbacks returns the runner callbacks that publish the events.
func (b *Bus) Callbacks() []runner.Callback {
	return []runner.Callback{
		runner.NewFunctionCallback(runner.CallbackOnHandoff, b.onHandoff),
		runner.NewFunctionCallback(runner.CallbackOnComplete, b.onComplete),
	}
}

// Attach registers the callbacks on r.
func (b *Bus) Attach(r *runner.Runner) {
	r.Callbacks().RegisterCallback(b.Callbacks()...)
}

func (b *Bus) onHandoff(ctx context.Context, cc *runner.CallbackContext) error {
	if cc.Handoff == nil || cc.AgentContext == nil {
		return nil
	}

	return b.publish(ctx, b.HandoffSubject(), HandoffEvent{
		RunID:     cc.AgentContext.RunID,
		GroupID:   cc.AgentContext.GroupID,
		UserID:    cc.AgentContext.UserID,
		From:      cc.Handoff.From,
		To:        cc.Handoff.To,
		Reason:    cc.Handoff.Reason,
		Turn:      cc.Handoff.Turn,
		Timestamp: cc.Handoff.Timestamp,
	})
}

func (b *Bus) onComplete(ctx context.Context, cc *runner.CallbackContext) error {
	if cc.Result == nil || cc.AgentContext == nil {
		return nil
	}

	actx := cc.AgentContext

	return b.publish(ctx, b.CompletedSubject(), RunCompletedEvent{
		RunID:            actx.RunID,
		GroupID:          actx.GroupID,
		UserID:           actx.UserID,
		ProjectID:        actx.ProjectID,
		AgentType:        cc.Result.AgentType,
		Response:         cc.Result.Response,
		Degraded:         cc.Result.Degraded,
		Turns:            cc.Turn,
		Handoffs:         len(actx.Metadata.HandoffHistory),
		CreditsRemaining: actx.CreditsRemaining,
		Timestamp:        time.Now().UTC(),
	})
}

func (b *Bus) publish(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}

	if err := b.pub.Publish(ctx, subject, data); err != nil {
		b.logger.Warn("eventbus.publish.failed", "subject", subject, "error", err.Error())
		return err
	}

	b.logger.Debug("eventbus.published", "subject", subject, "bytes", len(data))

	return nil
}
