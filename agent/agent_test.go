package agent_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvndrmann/mannmediaagency-sub000/agent"
	"github.com/rvndrmann/mannmediaagency-sub000/core"
	"github.com/rvndrmann/mannmediaagency-sub000/model"
	"github.com/rvndrmann/mannmediaagency-sub000/project"
	"github.com/rvndrmann/mannmediaagency-sub000/tool"
)

const twoSceneScript = `SCENE 1: A robot wakes up in a quiet lab.
Narrator: It was the first morning of its life.

SCENE 2: The robot walks into a neon city.
Narrator: Everything was new.`

func newContext() *core.AgentContext {
	actx := core.NewAgentContext("u1", "g1")
	actx.CreditsRemaining = 10

	return actx
}

// inWorkflow simulates the handoff that entered the current stage.
func inWorkflow(actx *core.AgentContext, from, to core.AgentType, stage core.WorkflowStage, hc core.HandoffContext) {
	hc.WorkflowInfo = &core.WorkflowInfo{IsPartOfWorkflow: true, WorkflowType: agent.VideoWorkflowType, WorkflowStage: stage}
	actx.ApplyHandoff(from, core.HandoffRequest{TargetAgent: to, Reason: "workflow", AdditionalContext: hc}, 1)
}

func transferCall(target, reason string) model.ToolCall {
	return model.NewToolCall("call-1", model.TransferToolName, map[string]any{"agent": target, "reason": reason})
}

func withModel(m model.Model) func(o *agent.Options) {
	return func(o *agent.Options) { o.Model = m }
}

func TestMainHandler_GreetingSuppressesHandoff(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.AddResponse("hi", "Hello! How can I help?", transferCall("script", "eager"))

	res, err := agent.NewMainHandler(withModel(m)).Process(context.Background(), "hi", newContext())
	require.NoError(t, err)

	assert.Equal(t, "Hello! How can I help?", res.Response)
	assert.Equal(t, core.AgentTypeMain, res.AgentType)
	assert.True(t, res.Terminal())
}

func TestMainHandler_ClassifierForcesHandoff(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	input := "write a script about a robot for 30 seconds"

	res, err := agent.NewMainHandler(withModel(m)).Process(context.Background(), input, newContext())
	require.NoError(t, err)

	assert.Equal(t, core.AgentTypeScript, res.NextAgent)
	assert.Contains(t, res.HandoffReason, "script")
	assert.Nil(t, res.AdditionalContext.WorkflowInfo)
	assert.Equal(t, 1, m.Calls())
}

func TestMainHandler_VideoRequestStartsWorkflow(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	actx := newContext()
	actx.ProjectID = "p1"

	res, err := agent.NewMainHandler(withModel(m)).Process(context.Background(), "Please create a video about space exploration", actx)
	require.NoError(t, err)

	require.Equal(t, core.AgentTypeScript, res.NextAgent)
	require.NotNil(t, res.AdditionalContext)
	require.NotNil(t, res.AdditionalContext.WorkflowInfo)
	assert.True(t, res.AdditionalContext.WorkflowInfo.IsPartOfWorkflow)
	assert.Equal(t, core.StageScriptGeneration, res.AdditionalContext.WorkflowInfo.WorkflowStage)
	assert.Equal(t, "p1", res.AdditionalContext.ProjectID)
}

func TestMainHandler_ModelHandoffPassesThrough(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	input := "what is in my project right now please"
	m.AddResponse(input, "Let me check.", transferCall("data", "needs project data"))

	res, err := agent.NewMainHandler(withModel(m)).Process(context.Background(), input, newContext())
	require.NoError(t, err)

	assert.Equal(t, core.AgentTypeData, res.NextAgent)
	assert.Equal(t, "needs project data", res.HandoffReason)
	assert.Equal(t, "Let me check.", res.Response)

	req := m.Requests()[0]
	assert.Equal(t, core.AgentTypeMain, req.AgentType)
	assert.Equal(t, "u1", req.UserID)
	require.NotEmpty(t, req.Tools)
	assert.Equal(t, model.TransferToolName, req.Tools[len(req.Tools)-1].Function.Name)
}

func TestMainHandler_NoBounceBack(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	actx := newContext()
	actx.ApplyHandoff(core.AgentTypeData, core.HandoffRequest{TargetAgent: core.AgentTypeMain, Reason: "no project"}, 1)

	res, err := agent.NewMainHandler(withModel(m)).Process(context.Background(), "show my project details please", actx)
	require.NoError(t, err)
	assert.True(t, res.Terminal())
}

func TestBaseHandler_Preconditions(t *testing.T) {
	tests := []struct {
		name   string
		actx   *core.AgentContext
		input  string
		prefix string
	}{
		{"unauthenticated", core.NewAgentContext("", "g1"), "write a script about robots", agent.NotAuthenticatedMessage},
		{"nil context", nil, "write a script about robots", agent.NotAuthenticatedMessage},
		{"blank input", newContext(), "   ", agent.GuardrailBlockedMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := model.NewMockModel("mock", "mock")

			res, err := agent.NewScriptHandler(withModel(m)).Process(context.Background(), tt.input, tt.actx)
			require.NoError(t, err)

			assert.True(t, len(res.Response) >= len(tt.prefix))
			assert.Equal(t, tt.prefix, res.Response[:len(tt.prefix)])
			assert.True(t, res.Terminal())
			assert.Zero(t, m.Calls())
		})
	}
}

func TestHandlers_EmptyInputNeverReachesModel(t *testing.T) {
	store := project.NewInMemoryStore()
	ex := tool.NewExecutor(tool.NewRegistry(tool.Builtins()...), func(o *tool.ExecutorOptions) { o.Projects = store })

	tests := []struct {
		name string
		new  func(opts func(o *agent.Options)) core.Handler
	}{
		{"main", func(opts func(o *agent.Options)) core.Handler { return agent.NewMainHandler(opts) }},
		{"script", func(opts func(o *agent.Options)) core.Handler { return agent.NewScriptHandler(opts) }},
		{"image", func(opts func(o *agent.Options)) core.Handler { return agent.NewImageHandler(opts) }},
		{"tool", func(opts func(o *agent.Options)) core.Handler {
			return agent.NewToolHandler(opts, func(o *agent.Options) { o.Executor = ex })
		}},
		{"scene", func(opts func(o *agent.Options)) core.Handler { return agent.NewSceneHandler(opts) }},
		{"data", func(opts func(o *agent.Options)) core.Handler {
			return agent.NewDataHandler(opts, func(o *agent.Options) { o.Projects = store })
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := model.NewMockModel("mock", "mock")

			actx := newContext()
			actx.ProjectID = "p1"

			res, err := tt.new(withModel(m)).Process(context.Background(), "", actx)
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(res.Response, agent.GuardrailBlockedMessage), res.Response)
			assert.True(t, res.Terminal())
			assert.Zero(t, m.Calls())
		})
	}
}

func TestBaseHandler_CustomGuardrail(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	h := agent.NewMainHandler(withModel(m), func(o *agent.Options) {
		o.Guardrails = []agent.Guardrail{agent.BlocklistGuardrail{Terms: []string{"forbidden"}}}
	})

	res, err := h.Process(context.Background(), "tell me something FORBIDDEN", newContext())
	require.NoError(t, err)

	assert.Equal(t, agent.GuardrailBlockedMessage+"message contains blocked content", res.Response)
	assert.Equal(t, true, res.StructuredOutput["blocked"])
	assert.Zero(t, m.Calls())
}

func TestBaseHandler_UpstreamFailure(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.SetError(errors.New("edge function unavailable"))

	res, err := agent.NewMainHandler(withModel(m)).Process(context.Background(), "write a script about a robot", newContext())
	require.NoError(t, err)

	assert.Equal(t, agent.UpstreamFailureMessage, res.Response)
	assert.True(t, res.Degraded)
	assert.True(t, res.Terminal())
}

func TestBaseHandler_MalformedTransferKeepsAnswer(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.Enqueue(model.Response{Text: "Octopuses have three hearts.", ToolCalls: []model.ToolCall{
		{ID: "c1", Type: "function", Function: model.ToolCallFunction{Name: model.TransferToolName, Arguments: []byte(`{"agent":`)}},
	}})

	res, err := agent.NewMainHandler(withModel(m)).Process(context.Background(), "tell me something interesting today", newContext())
	require.NoError(t, err)

	assert.Equal(t, "Octopuses have three hearts.", res.Response)
	assert.False(t, res.Degraded)
	assert.True(t, res.Terminal())
}

func TestBaseHandler_NoModel(t *testing.T) {
	res, err := agent.NewSceneHandler().Process(context.Background(), "describe the opening shot", newContext())
	require.NoError(t, err)
	assert.True(t, res.Degraded)
}

func TestBaseHandler_OutputGuardrail(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	input := "tell me something interesting today"
	m.AddResponse(input, "")

	res, err := agent.NewMainHandler(withModel(m)).Process(context.Background(), input, newContext())
	require.NoError(t, err)
	assert.Equal(t, agent.OutputBlockedMessage+"response is empty", res.Response)
}

func TestScriptHandler_WorkflowHandsOffToImage(t *testing.T) {
	ctx := context.Background()
	store := project.NewInMemoryStore()
	p, _ := store.SaveProject(ctx, core.Project{UserID: "u1", Title: "Robots"})

	m := model.NewMockModel("mock", "mock")
	m.Enqueue(model.Response{Text: twoSceneScript})

	actx := newContext()
	actx.ProjectID = p.ID
	inWorkflow(actx, core.AgentTypeMain, core.AgentTypeScript, core.StageScriptGeneration, core.HandoffContext{})

	h := agent.NewScriptHandler(withModel(m), func(o *agent.Options) { o.Projects = store })
	res, err := h.Process(ctx, "create a video about a robot", actx)
	require.NoError(t, err)

	require.Equal(t, core.AgentTypeImage, res.NextAgent)
	require.NotNil(t, res.AdditionalContext.WorkflowInfo)
	assert.Equal(t, core.StageImagePromptGeneration, res.AdditionalContext.WorkflowInfo.WorkflowStage)
	assert.Equal(t, p.ID, res.AdditionalContext.ProjectID)
	assert.Equal(t, 2, res.StructuredOutput["sceneCount"])
	assert.NotContains(t, res.StructuredOutput, "saveError")

	got, _ := store.GetProject(ctx, p.ID)
	assert.Equal(t, twoSceneScript, got.FullScript)

	scenes, _ := store.ListScenes(ctx, p.ID)
	require.Len(t, scenes, 2)
	assert.Contains(t, scenes[1].Script, "neon city")
}

func TestScriptHandler_StandaloneStaysTerminal(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.Enqueue(model.Response{Text: twoSceneScript})

	res, err := agent.NewScriptHandler(withModel(m)).Process(context.Background(), "write a script about robots", newContext())
	require.NoError(t, err)

	assert.True(t, res.Terminal())
	assert.Equal(t, twoSceneScript, res.StructuredOutput["script"])
}

func TestScriptHandler_SaveFailureStillHandsOff(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.Enqueue(model.Response{Text: twoSceneScript})

	actx := newContext()
	actx.SceneID = "missing-scene"
	inWorkflow(actx, core.AgentTypeMain, core.AgentTypeScript, core.StageScriptGeneration, core.HandoffContext{})

	h := agent.NewScriptHandler(withModel(m), func(o *agent.Options) { o.Projects = project.NewInMemoryStore() })
	res, err := h.Process(context.Background(), "create a video about a robot", actx)
	require.NoError(t, err)

	assert.Equal(t, core.AgentTypeImage, res.NextAgent)
	assert.Contains(t, res.StructuredOutput["saveError"], "not found")
}

func TestExtractImagePrompts(t *testing.T) {
	text := `Here are your prompts.

**Image Prompt for Scene 1:** A small robot blinking awake,
soft morning light through lab windows.

Image Prompt for Scene 2: A robot in a neon-lit street, rain, cinematic.
Some closing remark.`

	got := agent.ExtractImagePrompts(text)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].SceneNumber)
	assert.Equal(t, "A small robot blinking awake, soft morning light through lab windows.", got[0].Prompt)
	assert.Equal(t, 2, got[1].SceneNumber)
	assert.Equal(t, "A robot in a neon-lit street, rain, cinematic. Some closing remark.", got[1].Prompt)

	assert.Empty(t, agent.ExtractImagePrompts("no prompts here"))
}

func TestImageHandler_WorkflowHandsOffToTool(t *testing.T) {
	ctx := context.Background()
	store := project.NewInMemoryStore()
	p, _ := store.SaveProject(ctx, core.Project{UserID: "u1"})
	s1, _ := store.SaveScene(ctx, core.Scene{ProjectID: p.ID, SceneOrder: 1})
	s2, _ := store.SaveScene(ctx, core.Scene{ProjectID: p.ID, SceneOrder: 2})

	m := model.NewMockModel("mock", "mock")
	m.Enqueue(model.Response{Text: "Image Prompt for Scene 1: robot in lab\n\nImage Prompt for Scene 2: robot in city"})

	actx := newContext()
	actx.ProjectID = p.ID
	inWorkflow(actx, core.AgentTypeScript, core.AgentTypeImage, core.StageImagePromptGeneration, core.HandoffContext{})

	h := agent.NewImageHandler(withModel(m), func(o *agent.Options) { o.Projects = store })
	res, err := h.Process(ctx, "create a video about a robot", actx)
	require.NoError(t, err)

	require.Equal(t, core.AgentTypeTool, res.NextAgent)
	assert.Equal(t, core.StageImageGeneration, res.AdditionalContext.WorkflowInfo.WorkflowStage)

	prompts, ok := res.AdditionalContext.ImageParameters["prompts"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, prompts, 2)
	assert.Equal(t, s1.ID, prompts[0]["sceneId"])
	assert.Equal(t, agent.DefaultAspectRatio, res.AdditionalContext.ImageParameters["aspectRatio"])

	got, _ := store.GetScene(ctx, s2.ID)
	assert.Equal(t, "robot in city", got.ImagePrompt)
}

func TestToolHandler_WorkflowGeneratesImages(t *testing.T) {
	ctx := context.Background()
	store := project.NewInMemoryStore()
	m := model.NewMockModel("mock", "mock")

	ex := tool.NewExecutor(tool.NewRegistry(tool.Builtins()...), func(o *tool.ExecutorOptions) { o.Projects = store })

	actx := newContext()
	actx.CreditsRemaining = 5
	inWorkflow(actx, core.AgentTypeImage, core.AgentTypeTool, core.StageImageGeneration, core.HandoffContext{
		ImageParameters: map[string]any{
			"aspectRatio": "9:16",
			"prompts": []any{
				map[string]any{"sceneNumber": float64(1), "sceneId": "s1", "prompt": "robot in lab"},
				map[string]any{"sceneNumber": float64(2), "sceneId": "s2", "prompt": "robot in city"},
			},
		},
	})

	h := agent.NewToolHandler(withModel(m), func(o *agent.Options) { o.Executor = ex })
	res, err := h.Process(ctx, "create a video about a robot", actx)
	require.NoError(t, err)

	assert.Equal(t, "Started image generation for 2 of 2 scenes.", res.Response)
	assert.Equal(t, string(core.StageCompleted), res.StructuredOutput["workflowStage"])
	assert.True(t, res.Terminal())
	assert.Equal(t, 3, actx.CreditsRemaining)
	assert.Zero(t, m.Calls())

	jobs := store.ImageJobs("u1")
	require.Len(t, jobs, 2)
	assert.Equal(t, "9:16", jobs[0].Parameters["aspect_ratio"])
}

func TestToolHandler_ExecutesModelToolCalls(t *testing.T) {
	ctx := context.Background()
	store := project.NewInMemoryStore()
	sc, _ := store.SaveScene(ctx, core.Scene{ProjectID: "p1", SceneOrder: 1})

	input := "set the scene script to INT. LAB"
	m := model.NewMockModel("mock", "mock")
	m.AddResponse(input, "", model.NewToolCall("cmd-1", tool.UpdateSceneScriptName, map[string]any{"script": "INT. LAB"}))

	ex := tool.NewExecutor(tool.NewRegistry(tool.Builtins()...), func(o *tool.ExecutorOptions) { o.Projects = store })

	actx := newContext()
	actx.SceneID = sc.ID

	res, err := agent.NewToolHandler(withModel(m), func(o *agent.Options) { o.Executor = ex }).Process(ctx, input, actx)
	require.NoError(t, err)

	assert.Contains(t, res.Response, "✓ update_scene_script")
	assert.True(t, res.Terminal())

	got, _ := store.GetScene(ctx, sc.ID)
	assert.Equal(t, "INT. LAB", got.Script)

	st, err := ex.Status(ctx, "cmd-1")
	require.NoError(t, err)
	assert.Equal(t, tool.StatusCompleted, st.Status)

	for _, d := range m.Requests()[0].Tools {
		assert.NotEqual(t, "", d.Function.Name)
	}
}

func TestToolHandler_NoExecutor(t *testing.T) {
	res, err := agent.NewToolHandler().Process(context.Background(), "generate an image of a cat", newContext())
	require.NoError(t, err)
	assert.Equal(t, agent.ToolsUnavailableMessage, res.Response)
}

func TestDataHandler_WithoutProjectHandsBackToMain(t *testing.T) {
	m := model.NewMockModel("mock", "mock")

	res, err := agent.NewDataHandler(withModel(m)).Process(context.Background(), "how many scenes do I have", newContext())
	require.NoError(t, err)

	assert.Equal(t, agent.NoProjectMessage, res.Response)
	assert.Equal(t, core.AgentTypeMain, res.NextAgent)
	assert.Zero(t, m.Calls())
}

func TestDataHandler_ExposesProjectData(t *testing.T) {
	ctx := context.Background()
	store := project.NewInMemoryStore()
	p, _ := store.SaveProject(ctx, core.Project{UserID: "u1", Title: "Robots"})
	_, _ = store.SaveScene(ctx, core.Scene{ProjectID: p.ID, SceneOrder: 1})

	m := model.NewMockModel("mock", "mock")
	actx := newContext()
	actx.ProjectID = p.ID

	res, err := agent.NewDataHandler(withModel(m), func(o *agent.Options) { o.Projects = store }).Process(ctx, "how many scenes do I have", actx)
	require.NoError(t, err)
	assert.True(t, res.Terminal())

	data := m.Requests()[0].ContextData
	assert.Equal(t, 1, data["sceneCount"])
	assert.Equal(t, p.ID, data["projectId"])

	proj, ok := data["project"].(core.Project)
	require.True(t, ok)
	assert.Equal(t, "Robots", proj.Title)
}

func TestSceneHandler_SavesDescriptionAndOverride(t *testing.T) {
	ctx := context.Background()
	store := project.NewInMemoryStore()
	sc, _ := store.SaveScene(ctx, core.Scene{ProjectID: "p1", SceneOrder: 1})

	m := model.NewMockModel("mock", "mock")
	m.Enqueue(model.Response{Text: "A dusty lab at dawn."})

	actx := newContext()
	actx.SceneID = sc.ID
	actx.SetInstruction(core.AgentTypeScene, "Describe scene {{.SceneID}} only")

	res, err := agent.NewSceneHandler(withModel(m), func(o *agent.Options) { o.Projects = store }).Process(ctx, "describe the opening shot", actx)
	require.NoError(t, err)
	assert.Equal(t, "A dusty lab at dawn.", res.Response)

	got, _ := store.GetScene(ctx, sc.ID)
	assert.Equal(t, "A dusty lab at dawn.", got.Description)
	assert.Equal(t, "Describe scene "+sc.ID+" only", m.Requests()[0].Instructions)
}

func TestClassifier(t *testing.T) {
	c := agent.NewKeywordClassifier()

	tests := []struct {
		input  string
		target core.AgentType
		intent agent.Intent
		ok     bool
	}{
		{"Create a video about the ocean with a script", core.AgentTypeScript, agent.IntentVideo, true},
		{"Can you write a script for my ad?", core.AgentTypeScript, agent.IntentScript, true},
		{"Describe the scene in the kitchen", core.AgentTypeScene, agent.IntentScene, true},
		{"I need an image prompt for the finale", core.AgentTypeImage, agent.IntentImage, true},
		{"What is the project status?", core.AgentTypeData, agent.IntentData, true},
		{"What's the weather like?", core.AgentTypeNone, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := c.Classify(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.target, got.Target)
			assert.Equal(t, tt.intent, got.Intent)
		})
	}

	assert.True(t, agent.IsSimpleGreeting("  hello there! "))
	assert.False(t, agent.IsSimpleGreeting("write a script about robots"))
}
