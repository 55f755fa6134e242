package agent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
)

// DefaultAspectRatio is used for generated images unless the handoff says otherwise.
const DefaultAspectRatio = "16:9"

const imageInstruction = `You write prompts for an image generation model, one per scene.
Format every prompt as "Image Prompt for Scene N: <prompt>".
Describe subject, composition, lighting, color palette and style in one paragraph.
{{if .SceneID}}Focus on scene {{.SceneID}}.{{end}}
{{if .IsHandoffContinuation}}The {{.PreviousAgentType}} agent asked for help: {{.HandoffReason}}{{end}}`

var imagePromptRe = regexp.MustCompile(`(?i)^[ \t]*(?:[#*_]+[ \t]*)?image prompt for scene[ \t]+(\d+)[ \t]*(?:[*_]+)?[ \t]*:?[ \t]*(?:[*_]+)?[ \t]*(.*)$`)

// ScenePrompt is an image prompt extracted for one scene.
type ScenePrompt struct {
	SceneNumber int    `json:"sceneNumber"`
	SceneID     string `json:"sceneId,omitempty"`
	Prompt      string `json:"prompt"`
}

// ExtractImagePrompts parses "Image Prompt for Scene N:" sections. A prompt
// continues over following lines until a blank line or the next header.
func ExtractImagePrompts(text string) []ScenePrompt {
	var (
		out []ScenePrompt
		cur *ScenePrompt
	)

	flush := func() {
		if cur != nil && strings.TrimSpace(cur.Prompt) != "" {
			cur.Prompt = strings.TrimSpace(cur.Prompt)
			out = append(out, *cur)
		}

		cur = nil
	}

	for _, line := range strings.Split(text, "\n") {
		if m := imagePromptRe.FindStringSubmatch(line); m != nil {
			flush()

			n, _ := strconv.Atoi(m[1])
			cur = &ScenePrompt{SceneNumber: n, Prompt: m[2]}

			continue
		}

		if cur == nil {
			continue
		}

		if strings.TrimSpace(line) == "" {
			if cur.Prompt != "" {
				flush()
			}

			continue
		}

		cur.Prompt = strings.TrimSpace(cur.Prompt + " " + strings.TrimSpace(line))
	}

	flush()

	return out
}

// ImageHandler produces per-scene image prompts and, inside the video
// workflow, passes them to the tool agent for generation.
type ImageHandler struct {
	BaseHandler
}

// NewImageHandler constructs the image prompt handler.
func NewImageHandler(optFns ...func(o *Options)) *ImageHandler {
	return &ImageHandler{BaseHandler: NewBaseHandler(core.AgentTypeImage, imageInstruction, optFns...)}
}

// Process implements core.Handler.
func (h *ImageHandler) Process(ctx context.Context, input string, actx *core.AgentContext) (core.AgentResult, error) {
	if res, ok := h.Preflight(ctx, input, actx); !ok {
		return res, nil
	}

	c, err := h.Complete(ctx, input, actx, nil, nil)
	if err != nil {
		return h.UpstreamFailure(actx, err), nil
	}

	res := h.ResultFrom(c)

	prompts := ExtractImagePrompts(c.Text)
	if len(prompts) == 0 {
		return h.Finalize(ctx, h.PassThrough(res, c, actx), actx), nil
	}

	if err := h.save(ctx, actx, prompts); err != nil {
		h.RecordSaveError(&res, actx, "save_image_prompts", err)
	}

	if res.StructuredOutput == nil {
		res.StructuredOutput = map[string]any{}
	}

	res.StructuredOutput["imagePrompts"] = promptMaps(prompts)

	if !actx.IsPartOfWorkflow() && c.Handoff == nil {
		return h.Finalize(ctx, res, actx), nil
	}

	aspect := DefaultAspectRatio
	if v, ok := actx.HandoffContext().ImageParameters["aspectRatio"].(string); ok && v != "" {
		aspect = v
	}

	hc := core.HandoffContext{
		WorkflowInfo: nextStage(actx, core.StageImageGeneration),
		ImageParameters: map[string]any{
			"prompts":     promptMaps(prompts),
			"aspectRatio": aspect,
		},
	}

	reason := fmt.Sprintf("Image prompts ready for %d scenes; generating images", len(prompts))

	return h.Finalize(ctx, h.Forward(res, core.AgentTypeTool, reason, actx, hc), actx), nil
}

// save attaches each prompt to its scene, matched by scene order, and
// records the resolved scene ids on prompts.
func (h *ImageHandler) save(ctx context.Context, actx *core.AgentContext, prompts []ScenePrompt) error {
	store := h.opts.Projects
	if store == nil {
		return nil
	}

	ids := map[int]string{}

	if projectID := actx.EffectiveProjectID(); projectID != "" {
		scenes, err := store.ListScenes(ctx, projectID)
		if err != nil {
			return err
		}

		for _, sc := range scenes {
			ids[sc.SceneOrder] = sc.ID
		}
	} else if actx.SceneID != "" && len(prompts) == 1 {
		ids[prompts[0].SceneNumber] = actx.SceneID
	}

	var errs []error

	for i := range prompts {
		id, ok := ids[prompts[i].SceneNumber]
		if !ok {
			continue
		}

		prompts[i].SceneID = id

		if err := store.UpdateImagePrompt(ctx, id, prompts[i].Prompt); err != nil {
			errs = append(errs, fmt.Errorf("scene %d: %w", prompts[i].SceneNumber, err))
		}
	}

	return errors.Join(errs...)
}

func promptMaps(prompts []ScenePrompt) []map[string]any {
	out := make([]map[string]any, 0, len(prompts))
	for _, p := range prompts {
		m := map[string]any{"sceneNumber": p.SceneNumber, "prompt": p.Prompt}
		if p.SceneID != "" {
			m["sceneId"] = p.SceneID
		}

		out = append(out, m)
	}

	return out
}
