package runner_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/rvndrmann/mannmediaagency-sub000/agent"
	"github.com/rvndrmann/mannmediaagency-sub000/core"
	"github.com/rvndrmann/mannmediaagency-sub000/internal/testutil"
	"github.com/rvndrmann/mannmediaagency-sub000/model"
	"github.com/rvndrmann/mannmediaagency-sub000/project"
	"github.com/rvndrmann/mannmediaagency-sub000/registry"
	"github.com/rvndrmann/mannmediaagency-sub000/runner"
	"github.com/rvndrmann/mannmediaagency-sub000/session"
	"github.com/rvndrmann/mannmediaagency-sub000/tool"
)

func builtinRegistry(m model.Model, extra ...func(o *agent.Options)) *registry.Registry {
	fns := append([]func(o *agent.Options){func(o *agent.Options) { o.Model = m }}, extra...)

	r := registry.New(func(o *registry.Options) { o.HandlerOptions = fns })
	r.Initialize()

	return r
}

func register(r *registry.Registry, t core.AgentType, fn func(ctx context.Context, input string, actx *core.AgentContext) (core.AgentResult, error)) {
	r.Register(t, func() core.Handler { return core.HandlerFunc{AgentType: t, Fn: fn} })
}

func baseContext() *core.AgentContext {
	return testutil.NewContextBuilder("u1", "g1").Credits(10).Build()
}

func TestRunner_GreetingStaysWithMain(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.AddResponse("hi", "Hello!")

	r := runner.New(builtinRegistry(m), baseContext())
	res := r.ProcessInput(context.Background(), "hi")

	assert.Equal(t, "Hello!", res.Response)
	assert.Equal(t, core.AgentTypeMain, res.AgentType)
	assert.True(t, res.Terminal())
	assert.Empty(t, r.LastContext().Metadata.HandoffHistory)
	assert.Equal(t, 1, m.Calls())
}

func TestRunner_HandoffReprocessesSameInput(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.Enqueue(model.Response{Text: "Routing you to our script writer."})
	m.Enqueue(model.Response{Text: "Here is a short script idea about a robot."})

	input := "write a script about a robot for 30 seconds"
	r := runner.New(builtinRegistry(m), baseContext())

	var handoffs []core.HandoffRecord

	r.Callbacks().RegisterCallback(runner.NewFunctionCallback(runner.CallbackOnHandoff, func(_ context.Context, cc *runner.CallbackContext) error {
		handoffs = append(handoffs, *cc.Handoff)
		return nil
	}))

	res := r.ProcessInput(context.Background(), input)

	assert.Equal(t, core.AgentTypeScript, res.AgentType)
	assert.Equal(t, "Here is a short script idea about a robot.", res.Response)
	assert.Equal(t, core.AgentTypeScript, r.CurrentAgent())

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, input, reqs[1].Input)
	assert.Equal(t, core.AgentTypeScript, reqs[1].AgentType)
	assert.Equal(t, true, reqs[1].ContextData["isHandoffContinuation"])

	hist := r.LastContext().Metadata.HandoffHistory
	require.Len(t, hist, 1)
	assert.Equal(t, core.AgentTypeMain, hist[0].From)
	assert.Equal(t, core.AgentTypeScript, hist[0].To)
	assert.Equal(t, 1, hist[0].Turn)
	assert.Equal(t, hist, handoffs)
}

func TestRunner_VideoWorkflowEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := project.NewInMemoryStore()
	p, _ := store.SaveProject(ctx, core.Project{UserID: "u1", Title: "Robots"})

	m := model.NewMockModel("mock", "mock")
	m.Enqueue(model.Response{Text: "Let's make that video."})
	m.Enqueue(model.Response{Text: "SCENE 1: A robot wakes up.\n\nSCENE 2: The robot explores the city."})
	m.Enqueue(model.Response{Text: "Image Prompt for Scene 1: robot waking in a lab\n\nImage Prompt for Scene 2: robot in a neon city"})

	ex := tool.NewExecutor(tool.NewRegistry(tool.Builtins()...), func(o *tool.ExecutorOptions) { o.Projects = store })
	reg := builtinRegistry(m, func(o *agent.Options) {
		o.Projects = store
		o.Executor = ex
	})

	base := baseContext()
	base.ProjectID = p.ID

	r := runner.New(reg, base)
	res := r.ProcessInput(ctx, "Please create a video about a curious robot")

	assert.Equal(t, core.AgentTypeTool, res.AgentType)
	assert.Equal(t, "Started image generation for 2 of 2 scenes.", res.Response)
	assert.True(t, res.Terminal())

	last := r.LastContext()
	require.Len(t, last.Metadata.HandoffHistory, 3)

	var path []core.AgentType
	for _, h := range last.Metadata.HandoffHistory {
		path = append(path, h.To)
	}

	assert.Equal(t, []core.AgentType{core.AgentTypeScript, core.AgentTypeImage, core.AgentTypeTool}, path)
	assert.Equal(t, 8, last.CreditsRemaining)

	scenes, _ := store.ListScenes(ctx, p.ID)
	require.Len(t, scenes, 2)
	assert.Equal(t, "robot in a neon city", scenes[1].ImagePrompt)
	assert.Len(t, store.ImageJobs("u1"), 2)
	assert.Equal(t, 3, m.Calls())
}

func TestRunner_TurnCeiling(t *testing.T) {
	reg := registry.New()
	ping := testutil.NewStub("ping", "ping").HandsOffTo("pong", "")
	pong := testutil.NewStub("pong", "pong").HandsOffTo("ping", "")

	reg.Register("ping", ping.Factory())
	reg.Register("pong", pong.Factory())

	r := runner.New(reg, baseContext(), func(o *runner.Options) {
		o.StartAgent = "ping"
		o.MaxTurns = 3
	})

	res := r.ProcessInput(context.Background(), "loop forever")

	assert.True(t, res.Terminal())
	assert.Equal(t, core.AgentType("ping"), res.AgentType)
	assert.Equal(t, "ping\n\n(Maximum delegation depth reached after 3 turns.)", res.Response)
	assert.Equal(t, 2, ping.Calls())
	assert.Equal(t, 1, pong.Calls())

	hist := r.LastContext().Metadata.HandoffHistory
	require.Len(t, hist, 2)
	assert.Equal(t, "handoff requested by ping agent", hist[0].Reason)
}

func TestRunner_DefaultCeilingAppliesToEveryRun(t *testing.T) {
	reg := registry.New()
	calls := 0

	register(reg, core.AgentTypeMain, func(context.Context, string, *core.AgentContext) (core.AgentResult, error) {
		calls++
		return core.NewResult(core.AgentTypeMain, "again").WithHandoff(core.AgentTypeMain, "self", nil), nil
	})

	res := runner.New(reg, baseContext()).ProcessInput(context.Background(), "x")

	assert.Equal(t, core.DefaultMaxTurns, calls)
	assert.Contains(t, res.Response, fmt.Sprintf("after %d turns", core.DefaultMaxTurns))
}

func TestRunner_UnknownTargetDegrades(t *testing.T) {
	reg := registry.New()
	register(reg, core.AgentTypeMain, func(context.Context, string, *core.AgentContext) (core.AgentResult, error) {
		return core.NewResult(core.AgentTypeMain, "go").WithHandoff("ghost", "try ghost", nil), nil
	})

	res := runner.New(reg, baseContext()).ProcessInput(context.Background(), "x")

	assert.Contains(t, res.Response, "Agent not found")
	assert.True(t, res.Degraded)
	assert.True(t, res.Terminal())
}

func TestRunner_RejectsOverlappingCalls(t *testing.T) {
	reg := registry.New()
	started := make(chan struct{})
	release := make(chan struct{})

	register(reg, core.AgentTypeMain, func(context.Context, string, *core.AgentContext) (core.AgentResult, error) {
		close(started)
		<-release

		return core.NewResult(core.AgentTypeMain, "done"), nil
	})

	r := runner.New(reg, baseContext())

	var (
		wg    sync.WaitGroup
		first core.AgentResult
	)

	wg.Add(1)

	go func() {
		defer wg.Done()

		first = r.ProcessInput(context.Background(), "one")
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first run did not start")
	}

	second := r.ProcessInput(context.Background(), "two")
	assert.Equal(t, runner.BusyMessage, second.Response)

	close(release)
	wg.Wait()

	assert.Equal(t, "done", first.Response)
}

func TestRunner_CallbackFailures(t *testing.T) {
	newRunner := func() *runner.Runner {
		reg := registry.New()
		register(reg, core.AgentTypeMain, func(context.Context, string, *core.AgentContext) (core.AgentResult, error) {
			return core.NewResult(core.AgentTypeMain, "ok"), nil
		})

		return runner.New(reg, baseContext())
	}

	t.Run("before turn veto", func(t *testing.T) {
		r := newRunner()

		var onError error

		r.Callbacks().RegisterCallback(
			runner.NewFunctionCallback(runner.CallbackBeforeTurn, func(context.Context, *runner.CallbackContext) error {
				return errors.New("quota exceeded")
			}),
			runner.NewFunctionCallback(runner.CallbackOnError, func(_ context.Context, cc *runner.CallbackContext) error {
				onError = cc.Err
				return nil
			}),
		)

		res := r.ProcessInput(context.Background(), "x")
		assert.Equal(t, runner.ErrorMessage, res.Response)
		assert.True(t, res.Degraded)
		require.Error(t, onError)
		assert.Contains(t, onError.Error(), "quota exceeded")
	})

	t.Run("after turn error is ignored", func(t *testing.T) {
		r := newRunner()
		r.Callbacks().RegisterCallback(runner.NewFunctionCallback(runner.CallbackAfterTurn, func(context.Context, *runner.CallbackContext) error {
			return errors.New("metrics down")
		}))

		assert.Equal(t, "ok", r.ProcessInput(context.Background(), "x").Response)
	})

	t.Run("panic becomes generic error", func(t *testing.T) {
		r := newRunner()
		r.Callbacks().RegisterCallback(runner.NewFunctionCallback(runner.CallbackOnComplete, func(context.Context, *runner.CallbackContext) error {
			panic("boom")
		}))

		var res core.AgentResult

		require.NotPanics(t, func() { res = r.ProcessInput(context.Background(), "x") })
		assert.Equal(t, runner.ErrorMessage, res.Response)
		assert.True(t, res.Degraded)

		// The guard is released after a panic.
		assert.NotEqual(t, runner.BusyMessage, r.ProcessInput(context.Background(), "y").Response)
	})
}

func TestRunner_ProcessMessageDeduplicates(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	r := runner.New(builtinRegistry(m), baseContext())

	first := r.ProcessMessage(context.Background(), "msg-1", "tell me a fun fact please")
	assert.NotEqual(t, runner.DuplicateMessage, first.Response)

	again := r.ProcessMessage(context.Background(), "msg-1", "tell me a fun fact please")
	assert.Equal(t, runner.DuplicateMessage, again.Response)
	assert.Equal(t, 1, m.Calls())
}

func TestRunner_BusyMessageCanBeResent(t *testing.T) {
	reg := registry.New()
	started := make(chan struct{}, 1)
	release := make(chan struct{})

	var (
		mu    sync.Mutex
		calls int
	)

	register(reg, core.AgentTypeMain, func(_ context.Context, input string, _ *core.AgentContext) (core.AgentResult, error) {
		mu.Lock()
		calls++
		mu.Unlock()

		if input == "one" {
			started <- struct{}{}
			<-release
		}

		return core.NewResult(core.AgentTypeMain, "done "+input), nil
	})

	r := runner.New(reg, baseContext())

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		r.ProcessMessage(context.Background(), "m1", "one")
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first run did not start")
	}

	busy := r.ProcessMessage(context.Background(), "m2", "two")
	assert.Equal(t, runner.BusyMessage, busy.Response)

	close(release)
	wg.Wait()

	resent := r.ProcessMessage(context.Background(), "m2", "two")
	assert.Equal(t, "done two", resent.Response)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls)
}

func TestRunner_PersistsAndContinuesWithLastAgent(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore()

	m := model.NewMockModel("mock", "mock")
	m.Enqueue(model.Response{Text: "Sending you to the script writer."})
	m.Enqueue(model.Response{Text: "Draft one."})
	m.Enqueue(model.Response{Text: "Draft two, now shorter."})

	r := runner.New(builtinRegistry(m), baseContext(), func(o *runner.Options) {
		o.SessionStore = store
		o.ContinueWithLastAgent = true
	})

	first := r.ProcessInput(ctx, "write a script about a lighthouse keeper")
	require.Equal(t, core.AgentTypeScript, first.AgentType)

	second := r.ProcessInput(ctx, "make it shorter and punchier")
	assert.Equal(t, core.AgentTypeScript, second.AgentType)
	assert.Equal(t, "Draft two, now shorter.", second.Response)

	reqs := m.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, core.AgentTypeScript, reqs[2].AgentType)
	require.NotEmpty(t, reqs[2].History)
	assert.Equal(t, "write a script about a lighthouse keeper", reqs[2].History[0].Content)

	sess, err := store.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, core.AgentTypeScript, sess.LastAgent)
}

// fixedStore serves one prebuilt session and records appends.
type fixedStore struct {
	sess     *core.Session
	appended int
}

func (s *fixedStore) Create(context.Context, string) (*core.Session, error) { return s.sess, nil }

func (s *fixedStore) Get(context.Context, string) (*core.Session, error) { return s.sess.Clone(), nil }

func (s *fixedStore) AppendEvent(context.Context, string, core.Event) error {
	s.appended++
	return nil
}

func TestRunner_HistoryIsCapped(t *testing.T) {
	b := testutil.NewSessionBuilder("g1")
	for i := range 5 {
		run := fmt.Sprintf("r%d", i)
		b.User(run, fmt.Sprintf("question %d", i)).Answer(run, core.AgentTypeMain, fmt.Sprintf("answer %d", i))
	}

	store := &fixedStore{sess: b.Build()}

	var seen []core.Message

	reg := registry.New()
	register(reg, core.AgentTypeMain, func(_ context.Context, _ string, actx *core.AgentContext) (core.AgentResult, error) {
		seen = actx.History
		return core.NewResult(core.AgentTypeMain, "ok"), nil
	})

	r := runner.New(reg, baseContext(), func(o *runner.Options) {
		o.SessionStore = store
		o.MaxHistoryMessages = 4
	})
	r.ProcessInput(context.Background(), "next question")

	require.Len(t, seen, 4)
	assert.Equal(t, "question 3", seen[0].Content)
	assert.Equal(t, "answer 4", seen[3].Content)
	assert.Equal(t, 2, store.appended, "user input and final answer")
}

func TestRunner_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	m := model.NewMockModel("mock", "mock")
	m.Enqueue(model.Response{Text: "routing"})
	m.Enqueue(model.Response{Text: "script"})

	runner.New(builtinRegistry(m), baseContext()).ProcessInput(context.Background(), "write a script about a robot for 30 seconds")

	names := map[string]int{}
	for _, s := range sr.Ended() {
		names[s.Name()]++
	}

	assert.Equal(t, 1, names["run"])
	assert.Equal(t, 2, names["turn"])
}
