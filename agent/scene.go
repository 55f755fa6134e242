package agent

import (
	"context"
	"strings"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
)

const sceneInstruction = `You are a scene designer for short videos.
Write a vivid description of the requested scene: setting, characters, action,
camera movement, lighting and mood. Keep it under 200 words.
{{if .SceneID}}You are describing scene {{.SceneID}}{{if .ProjectID}} of project {{.ProjectID}}{{end}}.{{end}}`

// SceneHandler writes detailed scene descriptions.
type SceneHandler struct {
	BaseHandler
}

// NewSceneHandler constructs the scene description handler.
func NewSceneHandler(optFns ...func(o *Options)) *SceneHandler {
	return &SceneHandler{BaseHandler: NewBaseHandler(core.AgentTypeScene, sceneInstruction, optFns...)}
}

// Process implements core.Handler.
func (h *SceneHandler) Process(ctx context.Context, input string, actx *core.AgentContext) (core.AgentResult, error) {
	if res, ok := h.Preflight(ctx, input, actx); !ok {
		return res, nil
	}

	c, err := h.Complete(ctx, input, actx, nil, nil)
	if err != nil {
		return h.UpstreamFailure(actx, err), nil
	}

	res := h.ResultFrom(c)

	if sceneID := actx.SceneID; sceneID != "" && h.opts.Projects != nil && strings.TrimSpace(c.Text) != "" {
		if err := h.opts.Projects.UpdateSceneDescription(ctx, sceneID, c.Text); err != nil {
			h.RecordSaveError(&res, actx, "save_scene_description", err)
		}
	}

	return h.Finalize(ctx, h.PassThrough(res, c, actx), actx), nil
}
