package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
	"github.com/rvndrmann/mannmediaagency-sub000/runner"
	"github.com/rvndrmann/mannmediaagency-sub000/tool"
)

// RunRequest is the body of POST /api/v1/runs.
type RunRequest struct {
	Input            string            `json:"input"`
	UserID           string            `json:"userId"`
	GroupID          string            `json:"groupId"`
	ProjectID        string            `json:"projectId,omitempty"`
	SceneID          string            `json:"sceneId,omitempty"`
	AgentType        string            `json:"agentType,omitempty"`
	CreditsRemaining *int              `json:"creditsRemaining,omitempty"`
	Instructions     map[string]string `json:"instructions,omitempty"`
	MessageID        string            `json:"messageId,omitempty"`
}

// RunResponse is the body answered by POST /api/v1/runs.
type RunResponse struct {
	RunID            string               `json:"runId"`
	GroupID          string               `json:"groupId"`
	Response         string               `json:"response"`
	AgentType        core.AgentType       `json:"agentType"`
	NextAgent        core.AgentType       `json:"nextAgent,omitempty"`
	HandoffReason    string               `json:"handoffReason,omitempty"`
	StructuredOutput map[string]any       `json:"structuredOutput,omitempty"`
	HandoffHistory   []core.HandoffRecord `json:"handoffHistory"`
	CreditsRemaining int                  `json:"creditsRemaining"`
	Degraded         bool                 `json:"degraded"`
}

// CommandRequest is the body of POST /api/v1/commands.
type CommandRequest struct {
	ID               string         `json:"id,omitempty"`
	Tool             string         `json:"tool"`
	Parameters       map[string]any `json:"parameters,omitempty"`
	UserID           string         `json:"userId"`
	ProjectID        string         `json:"projectId,omitempty"`
	SceneID          string         `json:"sceneId,omitempty"`
	CreditsRemaining *int           `json:"creditsRemaining,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "agents": len(s.registry.Types())})
}

func (s *Server) listAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"agents": s.registry.Types()})
}

func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[RunRequest](w, r, s.opts.BodyLimit)
	if !ok {
		return
	}

	if !requireField(w, req.UserID, "userId") || !requireField(w, req.GroupID, "groupId") ||
		!requireNonNegative(w, req.CreditsRemaining, "creditsRemaining") {
		return
	}

	start := s.opts.StartAgent

	if req.AgentType != "" {
		t, err := core.ParseAgentType(req.AgentType)
		if err != nil || !s.registry.Has(t) {
			writeError(w, http.StatusBadRequest, "unknown agentType: "+req.AgentType)
			return
		}

		start = t
	}

	base := core.NewAgentContext(req.UserID, req.GroupID)
	base.ProjectID = req.ProjectID
	base.SceneID = req.SceneID
	base.CreditsRemaining = s.credits(r, req.UserID, req.CreditsRemaining)

	for k, v := range req.Instructions {
		t, err := core.ParseAgentType(k)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown agent type in instructions: "+k)
			return
		}

		base.SetInstruction(t, v)
	}

	if !s.acquire(req.GroupID) {
		writeJSON(w, http.StatusConflict, RunResponse{GroupID: req.GroupID, Response: runner.BusyMessage, AgentType: start, HandoffHistory: []core.HandoffRecord{}})
		return
	}
	defer s.release(req.GroupID)

	// Busy rejections are not recorded, so a 409 can be retried with the same id.
	if !s.markSeen(req.GroupID, req.MessageID) {
		writeJSON(w, http.StatusOK, RunResponse{GroupID: req.GroupID, Response: runner.DuplicateMessage, AgentType: start, HandoffHistory: []core.HandoffRecord{}})
		return
	}

	run := runner.New(s.registry, base, s.runnerOptions(start)...)
	if s.opts.Bus != nil {
		s.opts.Bus.Attach(run)
	}

	res := run.ProcessInput(r.Context(), req.Input)

	out := RunResponse{
		GroupID:          req.GroupID,
		Response:         res.Response,
		AgentType:        res.AgentType,
		NextAgent:        res.NextAgent,
		HandoffReason:    res.HandoffReason,
		StructuredOutput: res.StructuredOutput,
		HandoffHistory:   []core.HandoffRecord{},
		CreditsRemaining: base.CreditsRemaining,
		Degraded:         res.Degraded,
	}

	if last := run.LastContext(); last != nil {
		out.RunID = last.RunID
		out.CreditsRemaining = last.CreditsRemaining

		if len(last.Metadata.HandoffHistory) > 0 {
			out.HandoffHistory = last.Metadata.HandoffHistory
		}
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) runnerOptions(start core.AgentType) []func(o *runner.Options) {
	fns := []func(o *runner.Options){func(o *runner.Options) { o.Logger = s.opts.Logger }}
	fns = append(fns, s.opts.RunnerOptions...)

	return append(fns, func(o *runner.Options) {
		o.StartAgent = start
		o.SessionStore = s.opts.Sessions

		if s.opts.Metrics != nil {
			o.Metrics = s.opts.Metrics
		}
	})
}

// credits resolves the balance of a run: the request, then a positive
// credit store balance, then the configured default.
func (s *Server) credits(r *http.Request, userID string, requested *int) int {
	if requested != nil {
		return *requested
	}

	if s.opts.Credits != nil {
		bal, err := s.opts.Credits.Balance(r.Context(), userID)
		if err == nil && bal > 0 {
			return bal
		}

		if err != nil {
			s.logger.Warn("server.credits.lookup_failed", "user_id", userID, "error", err.Error())
		}
	}

	return s.opts.DefaultCredits
}

func (s *Server) executeCommand(w http.ResponseWriter, r *http.Request) {
	if s.executor == nil {
		writeError(w, http.StatusServiceUnavailable, "tool execution is not configured")
		return
	}

	req, ok := readJSON[CommandRequest](w, r, s.opts.BodyLimit)
	if !ok {
		return
	}

	if !requireField(w, req.Tool, "tool") || !requireField(w, req.UserID, "userId") ||
		!requireNonNegative(w, req.CreditsRemaining, "creditsRemaining") {
		return
	}

	actx := core.NewAgentContext(req.UserID, "")
	actx.ProjectID = req.ProjectID
	actx.SceneID = req.SceneID
	actx.CreditsRemaining = s.credits(r, req.UserID, req.CreditsRemaining)

	res := s.executor.ExecuteCommand(r.Context(), tool.Command{ID: req.ID, ToolName: req.Tool, Parameters: req.Parameters}, actx)

	status := http.StatusOK
	if res.Code == tool.CodeNotFound {
		status = http.StatusNotFound
	}

	writeJSON(w, status, map[string]any{"result": res, "creditsRemaining": actx.CreditsRemaining})
}

func (s *Server) commandStatus(w http.ResponseWriter, r *http.Request) {
	if s.executor == nil {
		writeError(w, http.StatusServiceUnavailable, "tool execution is not configured")
		return
	}

	st, err := s.executor.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeError(w, http.StatusNotFound, "command not found")
			return
		}

		s.logger.Error("server.command.status_failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal server error")

		return
	}

	writeJSON(w, http.StatusOK, st)
}
