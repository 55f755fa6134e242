package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvndrmann/mannmediaagency-sub000/agent"
	"github.com/rvndrmann/mannmediaagency-sub000/core"
	"github.com/rvndrmann/mannmediaagency-sub000/model"
	"github.com/rvndrmann/mannmediaagency-sub000/project"
	"github.com/rvndrmann/mannmediaagency-sub000/registry"
	"github.com/rvndrmann/mannmediaagency-sub000/runner"
	"github.com/rvndrmann/mannmediaagency-sub000/server"
	"github.com/rvndrmann/mannmediaagency-sub000/tool"
)

type fixture struct {
	model *model.MockModel
	store *project.InMemoryStore
	srv   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	m := model.NewMockModel("mock", "mock")
	store := project.NewInMemoryStore()
	ex := tool.NewExecutor(tool.NewRegistry(tool.Builtins()...), func(o *tool.ExecutorOptions) { o.Projects = store })

	reg := registry.New(func(o *registry.Options) {
		o.HandlerOptions = []func(o *agent.Options){func(o *agent.Options) {
			o.Model = m
			o.Projects = store
			o.Executor = ex
		}}
	})
	reg.Initialize()

	s := server.New(reg, ex, func(o *server.Options) { o.DefaultCredits = 5 })
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	return &fixture{model: m, store: store, srv: ts}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func ptr[T any](v T) *T { return &v }

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))

	return v
}

func TestServer_HealthAndAgents(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get(f.srv.URL + "/api/v1/agents")
	require.NoError(t, err)
	defer resp2.Body.Close()

	body := decode[map[string][]core.AgentType](t, resp2)
	assert.ElementsMatch(t, core.BuiltinAgentTypes, body["agents"])
}

func TestServer_CreateRun(t *testing.T) {
	f := newFixture(t)
	f.model.Enqueue(model.Response{Text: "Routing you."})
	f.model.Enqueue(model.Response{Text: "A short robot script."})

	resp := postJSON(t, f.srv.URL+"/api/v1/runs", server.RunRequest{
		Input:   "write a script about a robot for 30 seconds",
		UserID:  "u1",
		GroupID: "g1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[server.RunResponse](t, resp)
	assert.Equal(t, core.AgentTypeScript, out.AgentType)
	assert.Equal(t, "A short robot script.", out.Response)
	assert.NotEmpty(t, out.RunID)
	require.Len(t, out.HandoffHistory, 1)
	assert.Equal(t, core.AgentTypeMain, out.HandoffHistory[0].From)
	assert.Equal(t, 5, out.CreditsRemaining)

	// The next request of the group sees the persisted history.
	postJSON(t, f.srv.URL+"/api/v1/runs", server.RunRequest{Input: "tell me more about it please", UserID: "u1", GroupID: "g1"})

	reqs := f.model.Requests()
	require.Len(t, reqs, 3)
	require.NotEmpty(t, reqs[2].History)
	assert.Equal(t, "write a script about a robot for 30 seconds", reqs[2].History[0].Content)
}

func TestServer_CreateRunValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body any
		want string
	}{
		{"missing user", server.RunRequest{Input: "hi", GroupID: "g1"}, "userId is required"},
		{"missing group", server.RunRequest{Input: "hi", UserID: "u1"}, "groupId is required"},
		{"unknown agent", server.RunRequest{Input: "hi", UserID: "u1", GroupID: "g1", AgentType: "director"}, "unknown agentType"},
		{"unknown instruction key", server.RunRequest{Input: "hi", UserID: "u1", GroupID: "g1", Instructions: map[string]string{"x": "y"}}, "unknown agent type"},
		{"not json", "not an object", "invalid request body"},
		{"negative credits", server.RunRequest{Input: "hi", UserID: "u1", GroupID: "g1", CreditsRemaining: ptr(-1)}, "creditsRemaining must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, f.srv.URL+"/api/v1/runs", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, decode[map[string]string](t, resp)["error"], tt.want)
		})
	}

	assert.Zero(t, f.model.Calls())
}

func TestServer_CreditsResolution(t *testing.T) {
	store := project.NewInMemoryStore()
	store.SetCredits("rich", 7)
	store.SetCredits("broke", 0)

	reg := registry.New()
	reg.Register(core.AgentTypeMain, func() core.Handler {
		return core.HandlerFunc{AgentType: core.AgentTypeMain, Fn: func(context.Context, string, *core.AgentContext) (core.AgentResult, error) {
			return core.NewResult(core.AgentTypeMain, "ok"), nil
		}}
	})

	ts := httptest.NewServer(server.New(reg, nil, func(o *server.Options) {
		o.Credits = store
		o.DefaultCredits = 5
	}).Handler())
	t.Cleanup(ts.Close)

	tests := []struct {
		name      string
		user      string
		requested *int
		want      int
	}{
		{"explicit zero wins", "rich", ptr(0), 0},
		{"positive store balance", "rich", nil, 7},
		{"zero balance falls back to default", "broke", nil, 5},
		{"unknown user falls back to default", "nobody", nil, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/api/v1/runs", server.RunRequest{Input: "hello there", UserID: tt.user, GroupID: tt.name, CreditsRemaining: tt.requested})
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.want, decode[server.RunResponse](t, resp).CreditsRemaining)
		})
	}
}

func TestServer_StartAgentAndInstructions(t *testing.T) {
	f := newFixture(t)

	postJSON(t, f.srv.URL+"/api/v1/runs", server.RunRequest{
		Input:        "a lighthouse at night in the rain",
		UserID:       "u1",
		GroupID:      "g2",
		AgentType:    "scene-creator",
		Instructions: map[string]string{"scene": "Describe {{.UserID}}'s scene."},
	})

	reqs := f.model.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, core.AgentTypeScene, reqs[0].AgentType)
	assert.Equal(t, "Describe u1's scene.", reqs[0].Instructions)
}

func TestServer_DuplicateMessage(t *testing.T) {
	f := newFixture(t)
	body := server.RunRequest{Input: "tell me a fun fact please", UserID: "u1", GroupID: "g1", MessageID: "m-1"}

	first := decode[server.RunResponse](t, postJSON(t, f.srv.URL+"/api/v1/runs", body))
	assert.NotEqual(t, runner.DuplicateMessage, first.Response)

	second := decode[server.RunResponse](t, postJSON(t, f.srv.URL+"/api/v1/runs", body))
	assert.Equal(t, runner.DuplicateMessage, second.Response)
	assert.Equal(t, 1, f.model.Calls())
}

func TestServer_BusyGroup(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})

	reg := registry.New()
	reg.Register(core.AgentTypeMain, func() core.Handler {
		return core.HandlerFunc{AgentType: core.AgentTypeMain, Fn: func(_ context.Context, input string, _ *core.AgentContext) (core.AgentResult, error) {
			if input == "one" {
				started <- struct{}{}
				<-release
			}

			return core.NewResult(core.AgentTypeMain, "done "+input), nil
		}}
	})

	ts := httptest.NewServer(server.New(reg, nil).Handler())
	t.Cleanup(ts.Close)

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		resp, err := http.Post(ts.URL+"/api/v1/runs", "application/json",
			bytes.NewReader([]byte(`{"input":"one","userId":"u1","groupId":"g1","messageId":"m1"}`)))
		if err == nil {
			_ = resp.Body.Close()
		}
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first run did not start")
	}

	body := server.RunRequest{Input: "two", UserID: "u1", GroupID: "g1", MessageID: "m2"}

	resp := postJSON(t, ts.URL+"/api/v1/runs", body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, runner.BusyMessage, decode[server.RunResponse](t, resp).Response)

	close(release)
	wg.Wait()

	// The rejected message id was not consumed.
	retry := postJSON(t, ts.URL+"/api/v1/runs", body)
	require.Equal(t, http.StatusOK, retry.StatusCode)
	assert.Equal(t, "done two", decode[server.RunResponse](t, retry).Response)
}

func TestServer_Commands(t *testing.T) {
	f := newFixture(t)

	type commandResponse struct {
		Result           tool.Result `json:"result"`
		CreditsRemaining int         `json:"creditsRemaining"`
	}

	zero := 0
	resp := postJSON(t, f.srv.URL+"/api/v1/commands", server.CommandRequest{
		Tool: tool.GenerateImageName, UserID: "u1", CreditsRemaining: &zero,
		Parameters: map[string]any{"prompt": "a robot"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[commandResponse](t, resp)
	assert.False(t, out.Result.Success)
	assert.Equal(t, tool.CodeInsufficientCredits, out.Result.Code)
	assert.Empty(t, f.store.ImageJobs("u1"))

	resp = postJSON(t, f.srv.URL+"/api/v1/commands", server.CommandRequest{
		ID: "cmd-1", Tool: tool.GenerateImageName, UserID: "u1",
		Parameters: map[string]any{"prompt": "a robot"},
	})
	out = decode[commandResponse](t, resp)
	assert.True(t, out.Result.Success)
	assert.Equal(t, 4, out.CreditsRemaining)
	assert.Len(t, f.store.ImageJobs("u1"), 1)

	st, err := http.Get(f.srv.URL + "/api/v1/commands/cmd-1")
	require.NoError(t, err)
	defer st.Body.Close()

	require.Equal(t, http.StatusOK, st.StatusCode)
	assert.Equal(t, tool.StatusCompleted, decode[tool.CommandState](t, st).Status)

	missing, err := http.Get(f.srv.URL + "/api/v1/commands/nope")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	unknown := postJSON(t, f.srv.URL+"/api/v1/commands", server.CommandRequest{Tool: "teleport", UserID: "u1"})
	assert.Equal(t, http.StatusNotFound, unknown.StatusCode)
}
