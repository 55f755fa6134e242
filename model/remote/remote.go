// Package remote provides a model.Model backed by a remote completion
// endpoint (an edge function) speaking the agent request/response JSON shape:
//
//	request  {input, agentType, userId, contextData, conversationHistory, runId, groupId}
//	response {completion, handoffRequest?, structured_output?}
//
// Handoff requests and structured output are surfaced as the reserved
// transfer_to_agent / structured_output tool calls so model.Complete treats
// them exactly like provider tool calls.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
	"github.com/rvndrmann/mannmediaagency-sub000/model"
)

// Options configures the remote client.
type Options struct {
	Name       string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Model calls a remote completion endpoint.
type Model struct {
	url        string
	opts       Options
	httpClient *http.Client
}

// NewModel creates a client for the endpoint at url.
func NewModel(url string, optFns ...func(o *Options)) *Model {
	opts := Options{Name: "remote", Timeout: 60 * time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	return &Model{url: url, opts: opts, httpClient: hc}
}

type handoffRequest struct {
	TargetAgent       string              `json:"targetAgent"`
	Reason            string              `json:"reason"`
	AdditionalContext core.HandoffContext `json:"additionalContext"`
}

// Reply is the wire response of the completion endpoint.
type Reply struct {
	Completion       string          `json:"completion"`
	HandoffRequest   *handoffRequest `json:"handoffRequest,omitempty"`
	StructuredOutput map[string]any  `json:"structured_output,omitempty"`
	Error            string          `json:"error,omitempty"`
}

// Generate implements model.Model. The endpoint is not streamed; a single
// final response is emitted.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		reply, err := m.call(ctx, req)
		if err != nil {
			errCh <- err
			return
		}

		out <- toResponse(reply)
	}()

	return out, errCh
}

func (m *Model) call(ctx context.Context, req model.Request) (Reply, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Reply{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if m.opts.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+m.opts.APIKey)
	}

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return Reply{}, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return Reply{}, fmt.Errorf("completion endpoint error %d: %s", resp.StatusCode, string(data))
	}

	var reply Reply
	if err := json.Unmarshal(data, &reply); err != nil {
		return Reply{}, fmt.Errorf("unmarshal response: %w", err)
	}

	if reply.Error != "" {
		return Reply{}, fmt.Errorf("completion endpoint: %s", reply.Error)
	}

	return reply, nil
}

func toResponse(r Reply) model.Response {
	resp := model.Response{Text: r.Completion, FinishReason: "stop"}

	if h := r.HandoffRequest; h != nil && h.TargetAgent != "" {
		resp.ToolCalls = append(resp.ToolCalls, model.NewToolCall("remote-handoff", model.TransferToolName, model.TransferArgs{
			Agent:             h.TargetAgent,
			Reason:            h.Reason,
			AdditionalContext: h.AdditionalContext,
		}))
	}

	if len(r.StructuredOutput) > 0 {
		resp.ToolCalls = append(resp.ToolCalls, model.NewToolCall("remote-output", model.StructuredOutputToolName, r.StructuredOutput))
	}

	return resp
}

// Info returns metadata describing the remote endpoint.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Name, Provider: "remote", SupportsTools: false}
}
