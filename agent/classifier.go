package agent

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
)

// SimpleMessageMaxLength is the rune count below which a message is treated
// as a greeting or small talk and never delegated.
const SimpleMessageMaxLength = 20

// VideoWorkflowType names the script → image → tool chain.
const VideoWorkflowType = "video_creation"

// Intent is the kind of request detected in user input.
type Intent string

const (
	IntentVideo  Intent = "video"
	IntentScript Intent = "script"
	IntentScene  Intent = "scene"
	IntentImage  Intent = "image"
	IntentData   Intent = "data"
)

// WorkflowIntent is a classification outcome.
type WorkflowIntent struct {
	Intent Intent
	Target core.AgentType
	// Keyword is the phrase that matched.
	Keyword string
	// StartsWorkflow is set for requests that kick off the full video chain.
	StartsWorkflow bool
}

// Reason renders a human readable handoff reason.
func (w WorkflowIntent) Reason() string {
	return fmt.Sprintf("Detected %s request (matched %q)", w.Intent, w.Keyword)
}

// Classifier maps raw input to a routing intent.
type Classifier interface {
	Classify(input string) (WorkflowIntent, bool)
}

// KeywordRule routes inputs containing any keyword to Target.
type KeywordRule struct {
	Intent         Intent
	Target         core.AgentType
	Keywords       []string
	StartsWorkflow bool
}

// DefaultKeywordRules returns the built-in rules in priority order. The
// comprehensive video rule comes first so "create a video with a script"
// starts the whole chain instead of only the script step.
func DefaultKeywordRules() []KeywordRule {
	return []KeywordRule{
		{
			Intent:         IntentVideo,
			Target:         core.AgentTypeScript,
			StartsWorkflow: true,
			Keywords: []string{
				"create a video", "make a video", "produce a video", "full video",
				"complete video", "entire video", "video from scratch", "whole video",
			},
		},
		{
			Intent: IntentScript,
			Target: core.AgentTypeScript,
			Keywords: []string{
				"write a script", "write script", "create a script", "draft a script",
				"script for", "script about", "screenplay", "rewrite the script",
			},
		},
		{
			Intent: IntentScene,
			Target: core.AgentTypeScene,
			Keywords: []string{
				"describe the scene", "describe scene", "scene description",
				"create a scene", "new scene", "scene where", "detail the scene",
			},
		},
		{
			Intent: IntentImage,
			Target: core.AgentTypeImage,
			Keywords: []string{
				"image prompt", "generate an image", "generate image", "create an image",
				"picture of", "illustration", "visual for", "thumbnail",
			},
		},
		{
			Intent: IntentData,
			Target: core.AgentTypeData,
			Keywords: []string{
				"project details", "project data", "project status", "show my project",
				"list scenes", "list the scenes", "how many scenes",
			},
		},
	}
}

// KeywordClassifier matches lowercase substrings; the first matching rule wins.
type KeywordClassifier struct {
	rules []KeywordRule
}

// NewKeywordClassifier builds a classifier from rules, or the defaults when none are given.
func NewKeywordClassifier(rules ...KeywordRule) *KeywordClassifier {
	if len(rules) == 0 {
		rules = DefaultKeywordRules()
	}

	return &KeywordClassifier{rules: rules}
}

// Classify implements Classifier.
func (c *KeywordClassifier) Classify(input string) (WorkflowIntent, bool) {
	lower := strings.ToLower(input)

	for _, r := range c.rules {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return WorkflowIntent{
					Intent:         r.Intent,
					Target:         r.Target,
					Keyword:        kw,
					StartsWorkflow: r.StartsWorkflow,
				}, true
			}
		}
	}

	return WorkflowIntent{}, false
}

// IsSimpleGreeting reports whether input is too short to warrant delegation.
func IsSimpleGreeting(input string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(input)) < SimpleMessageMaxLength
}
