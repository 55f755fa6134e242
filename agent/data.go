package agent

import (
	"context"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
)

const (
	dataInstruction = `You answer questions about the user's project using only the data in the context.
If something is not in the data, say so. Never invent scenes or scripts.
{{if .ProjectID}}Current project: {{.ProjectID}}.{{end}}`

	// NoProjectMessage is returned when the data agent runs without a project.
	NoProjectMessage = "I need a project to look up project data. Please select or create a project first."

	noProjectReason = "No project context available for the data agent"
)

// DataHandler answers questions about project and scene records.
type DataHandler struct {
	BaseHandler
}

// NewDataHandler constructs the data handler.
func NewDataHandler(optFns ...func(o *Options)) *DataHandler {
	return &DataHandler{BaseHandler: NewBaseHandler(core.AgentTypeData, dataInstruction, optFns...)}
}

// Process implements core.Handler. Without a project the turn is handed back
// to the main agent without calling the model.
func (h *DataHandler) Process(ctx context.Context, input string, actx *core.AgentContext) (core.AgentResult, error) {
	if res, ok := h.Preflight(ctx, input, actx); !ok {
		return res, nil
	}

	projectID := actx.EffectiveProjectID()
	if projectID == "" {
		res := core.NewResult(h.agentType, NoProjectMessage)
		return h.Finalize(ctx, h.Forward(res, core.AgentTypeMain, noProjectReason, actx, core.HandoffContext{}), actx), nil
	}

	extra := map[string]any{}

	if store := h.opts.Projects; store != nil {
		if p, err := store.GetProject(ctx, projectID); err == nil {
			extra["project"] = p
		} else {
			h.logger.WithRun(actx.RunID, actx.GroupID).Warn("agent.data.load_failed", "project_id", projectID, "error", err.Error())
		}

		if scenes, err := store.ListScenes(ctx, projectID); err == nil {
			extra["scenes"] = scenes
			extra["sceneCount"] = len(scenes)
		}
	}

	c, err := h.Complete(ctx, input, actx, extra, nil)
	if err != nil {
		return h.UpstreamFailure(actx, err), nil
	}

	return h.Finalize(ctx, h.PassThrough(h.ResultFrom(c), c, actx), actx), nil
}
