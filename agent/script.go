package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
)

const scriptInstruction = `You are a professional video script writer.
Write engaging scripts split into numbered scenes ("SCENE 1:", "SCENE 2:", ...).
Each scene has a short visual direction and the narration or dialogue.
Respect the requested duration and tone.
{{if .ProjectID}}The script belongs to project {{.ProjectID}}.{{end}}
{{if .IsHandoffContinuation}}You were asked to help because: {{.HandoffReason}}{{end}}`

var (
	sceneHeaderRe  = regexp.MustCompile(`(?im)^[ \t]*(?:[#*_]+[ \t]*)?scene[ \t]+(\d+)\b`)
	scriptMarkerRe = regexp.MustCompile(`(?im)^[ \t]*(?:[#*_]+[ \t]*)?(?:scene[ \t]+\d+|int\.|ext\.|fade in)`)
)

// HasScriptMarkers reports whether text looks like a formatted script.
func HasScriptMarkers(text string) bool { return scriptMarkerRe.MatchString(text) }

// SplitScenes returns the body of every "Scene N" section in order.
func SplitScenes(text string) []string {
	locs := sceneHeaderRe.FindAllStringIndex(text, -1)
	out := make([]string, 0, len(locs))

	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}

		out = append(out, strings.TrimSpace(text[loc[0]:end]))
	}

	return out
}

// ScriptHandler writes scripts, stores them and, inside the video workflow,
// passes the result on to the image agent.
type ScriptHandler struct {
	BaseHandler
}

// NewScriptHandler constructs the script handler.
func NewScriptHandler(optFns ...func(o *Options)) *ScriptHandler {
	return &ScriptHandler{BaseHandler: NewBaseHandler(core.AgentTypeScript, scriptInstruction, optFns...)}
}

// Process implements core.Handler.
func (h *ScriptHandler) Process(ctx context.Context, input string, actx *core.AgentContext) (core.AgentResult, error) {
	if res, ok := h.Preflight(ctx, input, actx); !ok {
		return res, nil
	}

	c, err := h.Complete(ctx, input, actx, nil, nil)
	if err != nil {
		return h.UpstreamFailure(actx, err), nil
	}

	res := h.ResultFrom(c)

	if !HasScriptMarkers(c.Text) {
		return h.Finalize(ctx, h.PassThrough(res, c, actx), actx), nil
	}

	scenes := SplitScenes(c.Text)
	if res.StructuredOutput == nil {
		res.StructuredOutput = map[string]any{}
	}

	res.StructuredOutput["script"] = c.Text
	res.StructuredOutput["sceneCount"] = len(scenes)

	// Persist before handing off; a failed save never blocks the chain.
	if err := h.save(ctx, actx, c.Text, scenes); err != nil {
		h.RecordSaveError(&res, actx, "save_script", err)
	}

	if !actx.IsPartOfWorkflow() && c.Handoff == nil {
		return h.Finalize(ctx, res, actx), nil
	}

	hc := core.HandoffContext{
		WorkflowInfo:     nextStage(actx, core.StageImagePromptGeneration),
		StructuredOutput: map[string]any{"script": c.Text, "sceneCount": len(scenes)},
	}

	reason := fmt.Sprintf("Script complete with %d scenes; generating image prompts", len(scenes))

	return h.Finalize(ctx, h.Forward(res, core.AgentTypeImage, reason, actx, hc), actx), nil
}

// save writes the script to the current scene, or to the project and its
// scenes (creating missing ones) when no scene is selected.
func (h *ScriptHandler) save(ctx context.Context, actx *core.AgentContext, script string, scenes []string) error {
	store := h.opts.Projects
	if store == nil {
		return nil
	}

	if actx.SceneID != "" {
		return store.UpdateSceneScript(ctx, actx.SceneID, script)
	}

	projectID := actx.EffectiveProjectID()
	if projectID == "" {
		return nil
	}

	if err := store.UpdateProjectScript(ctx, projectID, script); err != nil {
		return err
	}

	existing, err := store.ListScenes(ctx, projectID)
	if err != nil {
		return err
	}

	byOrder := make(map[int]core.Scene, len(existing))
	for _, sc := range existing {
		byOrder[sc.SceneOrder] = sc
	}

	for i, body := range scenes {
		order := i + 1
		if sc, ok := byOrder[order]; ok {
			if err := store.UpdateSceneScript(ctx, sc.ID, body); err != nil {
				return err
			}

			continue
		}

		if _, err := store.SaveScene(ctx, core.Scene{
			ProjectID:  projectID,
			SceneOrder: order,
			Title:      fmt.Sprintf("Scene %d", order),
			Script:     body,
		}); err != nil {
			return err
		}
	}

	return nil
}
