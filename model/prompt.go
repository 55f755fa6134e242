package model

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
)

// SystemPrompt renders the instructions followed by the context data as a
// stable, sorted "Context:" block for providers that take a single system text.
func SystemPrompt(req Request) string {
	var b strings.Builder

	b.WriteString(req.Instructions)

	if len(req.ContextData) == 0 {
		return b.String()
	}

	keys := make([]string, 0, len(req.ContextData))
	for k := range req.ContextData {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	if b.Len() > 0 {
		b.WriteString("\n\n")
	}

	b.WriteString("Context:")

	for _, k := range keys {
		v, err := json.Marshal(req.ContextData[k])
		if err != nil {
			continue
		}

		b.WriteString("\n- ")
		b.WriteString(k)
		b.WriteString(": ")
		b.Write(v)
	}

	return b.String()
}

// Conversation returns the chat turns of a request: the history (user and
// assistant messages only) followed by the current input.
func Conversation(req Request) []core.Message {
	msgs := make([]core.Message, 0, len(req.History)+1)
	for _, m := range req.History {
		if m.Role != core.RoleUser && m.Role != core.RoleAssistant {
			continue
		}

		if m.Content == "" {
			continue
		}

		msgs = append(msgs, m)
	}

	if req.Input != "" {
		msgs = append(msgs, core.NewUserMessage(req.Input))
	}

	return msgs
}
