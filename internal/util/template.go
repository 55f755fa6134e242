package util

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

const noValue = "<no value>"

// parsed caches instruction templates by source text. Built-in and
// configured instructions are constant, so the cache stays small.
var parsed sync.Map // map[string]*template.Template

var instructionFuncs = template.FuncMap{
	"default": func(fallback, val any) any {
		if val == nil || val == "" {
			return fallback
		}

		return val
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	// truncate shortens long scripts quoted into an instruction.
	"truncate": func(n int, s string) string {
		r := []rune(s)
		if n <= 0 || len(r) <= n {
			return s
		}

		return string(r[:n]) + "..."
	},
	"join": func(sep string, items any) string {
		switch v := items.(type) {
		case []string:
			return strings.Join(v, sep)
		case []any:
			parts := make([]string, len(v))
			for i, item := range v {
				parts[i] = fmt.Sprint(item)
			}

			return strings.Join(parts, sep)
		default:
			return fmt.Sprint(items)
		}
	},
}

// RenderTemplate renders an agent instruction against the run's template
// data. Missing keys render as empty strings.
func RenderTemplate(text string, data map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := instructionTemplate(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return strings.ReplaceAll(buf.String(), noValue, ""), nil
}

func instructionTemplate(text string) (*template.Template, error) {
	if t, ok := parsed.Load(text); ok {
		return t.(*template.Template), nil
	}

	t, err := template.New("instruction").Funcs(instructionFuncs).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse instruction: %w", err)
	}

	parsed.Store(text, t)

	return t, nil
}
