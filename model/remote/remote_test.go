package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
	"github.com/rvndrmann/mannmediaagency-sub000/model"
)

func TestModel_CompleteWithHandoff(t *testing.T) {
	var got map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"completion": "Let me pass you to the script writer.",
			"handoffRequest": map[string]any{
				"targetAgent": "script",
				"reason":      "user wants a script",
				"additionalContext": map[string]any{
					"projectId": "p1",
				},
			},
			"structured_output": map[string]any{"title": "Robot"},
		})
	}))
	defer srv.Close()

	m := NewModel(srv.URL, func(o *Options) { o.APIKey = "secret" })

	c, err := model.Complete(context.Background(), m, model.Request{
		Input:     "write a script",
		AgentType: core.AgentTypeMain,
		UserID:    "u1",
		RunID:     "r1",
		GroupID:   "g1",
	})
	require.NoError(t, err)

	assert.Equal(t, "write a script", got["input"])
	assert.Equal(t, "main", got["agentType"])
	assert.Equal(t, "g1", got["groupId"])

	assert.Equal(t, "Let me pass you to the script writer.", c.Text)
	require.NotNil(t, c.Handoff)
	assert.Equal(t, core.AgentTypeScript, c.Handoff.TargetAgent)
	assert.Equal(t, "user wants a script", c.Handoff.Reason)
	assert.Equal(t, "p1", c.Handoff.AdditionalContext.ProjectID)
	assert.Equal(t, "Robot", c.StructuredOutput["title"])
	assert.Empty(t, c.ToolCalls)
}

func TestModel_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := model.Complete(context.Background(), NewModel(srv.URL), model.Request{Input: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
