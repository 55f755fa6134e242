package core

import (
	"maps"
	"time"
)

// WorkflowStage names a step of the multi-stage "create a video" chain.
type WorkflowStage string

const (
	// StageScriptGeneration is the script writing step.
	StageScriptGeneration WorkflowStage = "script_generation"
	// StageImagePromptGeneration is the per-scene image prompt step.
	StageImagePromptGeneration WorkflowStage = "image_prompt_generation"
	// StageImageGeneration is the image job submission step.
	StageImageGeneration WorkflowStage = "image_generation"
	// StageCompleted marks a finished workflow.
	StageCompleted WorkflowStage = "completed"
)

// WorkflowInfo describes the position of a run inside a chained workflow.
type WorkflowInfo struct {
	IsPartOfWorkflow bool          `json:"isPartOfWorkflow"`
	WorkflowType     string        `json:"workflowType,omitempty"`
	WorkflowStage    WorkflowStage `json:"workflowStage,omitempty"`
}

// HandoffContext is the payload a target agent reads out of the continuity
// data. Extra is the single free-form extension point.
type HandoffContext struct {
	ProjectID        string         `json:"projectId,omitempty"`
	SceneID          string         `json:"sceneId,omitempty"`
	WorkflowInfo     *WorkflowInfo  `json:"workflowInfo,omitempty"`
	ImageParameters  map[string]any `json:"imageParameters,omitempty"`
	StructuredOutput map[string]any `json:"structuredOutput,omitempty"`
	Extra            map[string]any `json:"extra,omitempty"`
}

// Clone returns a deep copy of the handoff context.
func (hc HandoffContext) Clone() HandoffContext {
	c := hc
	if hc.WorkflowInfo != nil {
		w := *hc.WorkflowInfo
		c.WorkflowInfo = &w
	}

	c.ImageParameters = maps.Clone(hc.ImageParameters)
	c.StructuredOutput = maps.Clone(hc.StructuredOutput)
	c.Extra = maps.Clone(hc.Extra)

	return c
}

// Merge overlays the non-empty fields of other onto a copy of hc.
func (hc HandoffContext) Merge(other HandoffContext) HandoffContext {
	m := hc.Clone()
	if other.ProjectID != "" {
		m.ProjectID = other.ProjectID
	}

	if other.SceneID != "" {
		m.SceneID = other.SceneID
	}

	if other.WorkflowInfo != nil {
		w := *other.WorkflowInfo
		m.WorkflowInfo = &w
	}

	m.ImageParameters = mergeMaps(m.ImageParameters, other.ImageParameters)
	m.StructuredOutput = mergeMaps(m.StructuredOutput, other.StructuredOutput)
	m.Extra = mergeMaps(m.Extra, other.Extra)

	return m
}

// ContinuityData records the most recent handoff for the receiving agent.
type ContinuityData struct {
	FromAgent         AgentType      `json:"fromAgent"`
	ToAgent           AgentType      `json:"toAgent"`
	Reason            string         `json:"reason"`
	Timestamp         time.Time      `json:"timestamp"`
	AdditionalContext HandoffContext `json:"additionalContext"`
}

// HandoffRecord is one entry of the delegation audit trail.
type HandoffRecord struct {
	From      AgentType `json:"from"`
	To        AgentType `json:"to"`
	Reason    string    `json:"reason"`
	Turn      int       `json:"turn"`
	Timestamp time.Time `json:"timestamp"`
}

// Metadata holds every key handlers consume, as typed fields.
type Metadata struct {
	IsHandoffContinuation bool                 `json:"isHandoffContinuation,omitempty"`
	PreviousAgentType     AgentType            `json:"previousAgentType,omitempty"`
	HandoffReason         string               `json:"handoffReason,omitempty"`
	HandoffHistory        []HandoffRecord      `json:"handoffHistory,omitempty"`
	ContinuityData        *ContinuityData      `json:"continuityData,omitempty"`
	Instructions          map[AgentType]string `json:"instructions,omitempty"`
	Extra                 map[string]any       `json:"extra,omitempty"`
}

// AgentContext is the conversation state threaded through every hop of a run.
// It is created once per run and merged (never replaced) at each handoff.
type AgentContext struct {
	UserID           string    `json:"userId"`
	RunID            string    `json:"runId"`
	GroupID          string    `json:"groupId"`
	ProjectID        string    `json:"projectId,omitempty"`
	SceneID          string    `json:"sceneId,omitempty"`
	CreditsRemaining int       `json:"creditsRemaining"`
	History          []Message `json:"conversationHistory,omitempty"`
	Metadata         Metadata  `json:"metadata"`
}

// NewAgentContext constructs a context for a run of the given user and group.
func NewAgentContext(userID, groupID string) *AgentContext {
	return &AgentContext{
		UserID:  userID,
		RunID:   NewID(),
		GroupID: groupID,
		Metadata: Metadata{
			Instructions: map[AgentType]string{},
			Extra:        map[string]any{},
		},
	}
}

// Clone returns a deep copy safe for independent mutation.
func (ac *AgentContext) Clone() *AgentContext {
	c := *ac
	c.History = append([]Message(nil), ac.History...)
	c.Metadata.HandoffHistory = append([]HandoffRecord(nil), ac.Metadata.HandoffHistory...)
	c.Metadata.Instructions = maps.Clone(ac.Metadata.Instructions)
	c.Metadata.Extra = maps.Clone(ac.Metadata.Extra)

	if ac.Metadata.ContinuityData != nil {
		cd := *ac.Metadata.ContinuityData
		cd.AdditionalContext = cd.AdditionalContext.Clone()
		c.Metadata.ContinuityData = &cd
	}

	return &c
}

// ApplyHandoff merges a handoff from agent `from` into the context. Exactly one
// record is appended to the handoff history; earlier records are never touched.
func (ac *AgentContext) ApplyHandoff(from AgentType, req HandoffRequest, turn int) HandoffRecord {
	now := time.Now().UTC()
	rec := HandoffRecord{From: from, To: req.TargetAgent, Reason: req.Reason, Turn: turn, Timestamp: now}

	ac.Metadata.HandoffHistory = append(ac.Metadata.HandoffHistory, rec)
	ac.Metadata.IsHandoffContinuation = true
	ac.Metadata.PreviousAgentType = from
	ac.Metadata.HandoffReason = req.Reason

	carried := HandoffContext{}
	if ac.Metadata.ContinuityData != nil {
		carried = ac.Metadata.ContinuityData.AdditionalContext
	}

	ac.Metadata.ContinuityData = &ContinuityData{
		FromAgent:         from,
		ToAgent:           req.TargetAgent,
		Reason:            req.Reason,
		Timestamp:         now,
		AdditionalContext: carried.Merge(req.AdditionalContext),
	}

	if ac.ProjectID == "" && req.AdditionalContext.ProjectID != "" {
		ac.ProjectID = req.AdditionalContext.ProjectID
	}

	if ac.SceneID == "" && req.AdditionalContext.SceneID != "" {
		ac.SceneID = req.AdditionalContext.SceneID
	}

	return rec
}

// HandoffContext returns the additional context carried by the latest handoff.
func (ac *AgentContext) HandoffContext() HandoffContext {
	if ac.Metadata.ContinuityData == nil {
		return HandoffContext{}
	}

	return ac.Metadata.ContinuityData.AdditionalContext
}

// Workflow returns the workflow position carried forward by handoffs, if any.
func (ac *AgentContext) Workflow() *WorkflowInfo {
	return ac.HandoffContext().WorkflowInfo
}

// IsPartOfWorkflow reports whether the run is inside a chained workflow.
func (ac *AgentContext) IsPartOfWorkflow() bool {
	w := ac.Workflow()
	return w != nil && w.IsPartOfWorkflow
}

// EffectiveProjectID prefers the context's project, then the handoff payload.
func (ac *AgentContext) EffectiveProjectID() string {
	if ac.ProjectID != "" {
		return ac.ProjectID
	}

	return ac.HandoffContext().ProjectID
}

// InstructionFor returns a per-run instruction override for agent t.
func (ac *AgentContext) InstructionFor(t AgentType) (string, bool) {
	s, ok := ac.Metadata.Instructions[t]
	return s, ok && s != ""
}

// SetInstruction stores a per-run instruction override for agent t.
func (ac *AgentContext) SetInstruction(t AgentType, text string) {
	if ac.Metadata.Instructions == nil {
		ac.Metadata.Instructions = map[AgentType]string{}
	}

	ac.Metadata.Instructions[t] = text
}

// AddMessage appends a message to the conversation history.
func (ac *AgentContext) AddMessage(m Message) { ac.History = append(ac.History, m) }

// TemplateData exposes context values to instruction templates.
func (ac *AgentContext) TemplateData() map[string]any {
	return map[string]any{
		"UserID":                ac.UserID,
		"RunID":                 ac.RunID,
		"GroupID":               ac.GroupID,
		"ProjectID":             ac.EffectiveProjectID(),
		"SceneID":               ac.SceneID,
		"CreditsRemaining":      ac.CreditsRemaining,
		"PreviousAgentType":     string(ac.Metadata.PreviousAgentType),
		"HandoffReason":         ac.Metadata.HandoffReason,
		"IsHandoffContinuation": ac.Metadata.IsHandoffContinuation,
	}
}

func mergeMaps(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}

	if dst == nil {
		dst = make(map[string]any, len(src))
	}

	maps.Copy(dst, src)

	return dst
}
