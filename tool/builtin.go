package tool

import (
	"fmt"
	"strings"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
	"github.com/rvndrmann/mannmediaagency-sub000/model"
)

// Built-in tool names.
const (
	TransferToAgentName   = model.TransferToolName
	UpdateSceneScriptName = "update_scene_script"
	UpdateImagePromptName = "update_image_prompt"
	GenerateImageName     = "generate_image"
)

// DefaultImageCredits is the cost of one generate_image execution.
const DefaultImageCredits = 1

// Builtins returns the built-in tool set.
func Builtins() []Tool {
	return []Tool{
		NewTransferToAgentTool(),
		NewUpdateSceneScriptTool(),
		NewUpdateImagePromptTool(),
		NewGenerateImageTool(DefaultImageCredits),
	}
}

// transferToAgentTool requests orchestration transfer to another agent.
type transferToAgentTool struct{}

// NewTransferToAgentTool constructs the transfer tool instance.
func NewTransferToAgentTool() Tool { return &transferToAgentTool{} }

func (t *transferToAgentTool) Name() string { return TransferToAgentName }

func (t *transferToAgentTool) Description() string {
	return "Request transfer of control to another agent by type. Use when another agent is better suited."
}

func (t *transferToAgentTool) Parameters() map[string]any {
	names := make([]any, 0, len(core.BuiltinAgentTypes))
	for _, at := range core.BuiltinAgentTypes {
		names = append(names, string(at))
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent":  map[string]any{"type": "string", "enum": names, "description": "Target agent type"},
			"reason": map[string]any{"type": "string", "description": "Why the target agent is better suited"},
		},
		"required": []string{"agent"},
	}
}

func (t *transferToAgentTool) RequiredCredits() int { return 0 }

func (t *transferToAgentTool) Execute(tc *core.ToolContext, params map[string]any) (Result, error) {
	raw, _ := params["agent"].(string)

	target, err := core.ParseAgentType(raw)
	if err != nil {
		return Failed(CodeValidation, fmt.Sprintf("field 'agent' must name a known agent: %q", raw)), nil
	}

	reason, _ := params["reason"].(string)
	if reason == "" {
		reason = fmt.Sprintf("transfer requested via %s", TransferToAgentName)
	}

	hc := core.HandoffContext{ProjectID: tc.ProjectID(), SceneID: tc.SceneID()}
	tc.TransferToAgent(target, reason, hc)

	return Succeeded(fmt.Sprintf("Transferring to the %s agent.", target), map[string]any{"transferred": true, "agent": string(target)}), nil
}

func sceneParam(tc *core.ToolContext, params map[string]any) string {
	if id, _ := params["scene_id"].(string); id != "" {
		return id
	}

	return tc.SceneID()
}

// NewUpdateSceneScriptTool saves a script onto a scene.
func NewUpdateSceneScriptTool() Tool {
	return NewFunctionTool(
		UpdateSceneScriptName,
		"Save a script onto a scene of the current project.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"scene_id": map[string]any{"type": "string", "description": "Scene to update; defaults to the current scene"},
				"script":   map[string]any{"type": "string", "description": "Script text"},
			},
			"required": []string{"script"},
		},
		0,
		func(tc *core.ToolContext, params map[string]any) (Result, error) {
			sceneID := sceneParam(tc, params)
			if sceneID == "" {
				return Failed(CodeValidation, "No scene selected. Please choose a scene first."), nil
			}

			store, err := tc.Projects()
			if err != nil {
				return Result{}, err
			}

			script, _ := params["script"].(string)
			if err := store.UpdateSceneScript(tc.Context(), sceneID, script); err != nil {
				return Result{}, fmt.Errorf("update scene %s: %w", sceneID, err)
			}

			return Succeeded("Scene script updated.", map[string]any{"sceneId": sceneID}), nil
		},
	)
}

// NewUpdateImagePromptTool saves an image prompt onto a scene.
func NewUpdateImagePromptTool() Tool {
	return NewFunctionTool(
		UpdateImagePromptName,
		"Save an image generation prompt onto a scene of the current project.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"scene_id":     map[string]any{"type": "string", "description": "Scene to update; defaults to the current scene"},
				"image_prompt": map[string]any{"type": "string", "description": "Detailed visual prompt"},
			},
			"required": []string{"image_prompt"},
		},
		0,
		func(tc *core.ToolContext, params map[string]any) (Result, error) {
			sceneID := sceneParam(tc, params)
			if sceneID == "" {
				return Failed(CodeValidation, "No scene selected. Please choose a scene first."), nil
			}

			store, err := tc.Projects()
			if err != nil {
				return Result{}, err
			}

			prompt, _ := params["image_prompt"].(string)
			if err := store.UpdateImagePrompt(tc.Context(), sceneID, prompt); err != nil {
				return Result{}, fmt.Errorf("update scene %s: %w", sceneID, err)
			}

			return Succeeded("Image prompt updated.", map[string]any{"sceneId": sceneID}), nil
		},
	)
}

// NewGenerateImageTool queues an image generation job costing credits.
// Provider integration happens outside this module; the job record is the
// hand-off point.
func NewGenerateImageTool(credits int) Tool {
	return NewFunctionTool(
		GenerateImageName,
		"Generate an image from a prompt, optionally attached to a scene.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"prompt":       map[string]any{"type": "string", "description": "Image prompt"},
				"scene_id":     map[string]any{"type": "string"},
				"aspect_ratio": map[string]any{"type": "string", "enum": []any{"16:9", "9:16", "1:1", "4:3"}},
				"style":        map[string]any{"type": "string"},
			},
			"required": []string{"prompt"},
		},
		credits,
		func(tc *core.ToolContext, params map[string]any) (Result, error) {
			prompt, _ := params["prompt"].(string)
			if strings.TrimSpace(prompt) == "" {
				return Failed(CodeValidation, "An image prompt is required."), nil
			}

			store, err := tc.Projects()
			if err != nil {
				return Result{}, err
			}

			job := core.ImageJob{
				UserID:    tc.UserID(),
				ProjectID: tc.ProjectID(),
				SceneID:   sceneParam(tc, params),
				Prompt:    prompt,
				Status:    core.ImageJobQueued,
			}

			extra := map[string]any{}
			for _, k := range []string{"aspect_ratio", "style"} {
				if v, ok := params[k]; ok {
					extra[k] = v
				}
			}

			if len(extra) > 0 {
				job.Parameters = extra
			}

			job, err = store.CreateImageJob(tc.Context(), job)
			if err != nil {
				return Result{}, fmt.Errorf("create image job: %w", err)
			}

			return Succeeded("Image generation started.", map[string]any{
				"jobId":   job.ID,
				"sceneId": job.SceneID,
				"status":  string(job.Status),
			}), nil
		},
	)
}
