// Package extract turns loosely structured model output into frame specs.
package extract

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/raphaelgruber/designscan/internal/models"
)

var (
	// Matches ```json\n{...}\n``` and plain ``` fences anywhere in the text.
	codeFenceRegex     = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)\\n?```")
	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)
)

// Aliases accepted for list fields. The first match wins.
var (
	componentKeys   = []string{"components", "uiComponents", "ui_components"}
	ruleKeys        = []string{"businessRules", "business_rules", "rules"}
	stateKeys       = []string{"states", "uiStates", "ui_states"}
	interactionKeys = []string{"interactions", "userInteractions", "user_interactions"}
)

// Extract parses rawText into a FrameSpec.
// Strategies run in order: fenced code block, first '{' to last '}' span, the raw text.
// When nothing parses the result carries only fallbackName.
func Extract(rawText, fallbackName string) (spec models.FrameSpec) {
	spec = emptySpec(fallbackName)

	defer func() {
		if r := recover(); r != nil {
			slog.Warn("response extraction panicked", "panic", r, "frame_name", fallbackName)
			spec = emptySpec(fallbackName)
		}
	}()

	obj, ok := findObject(rawText)
	if !ok {
		slog.Debug("no JSON object in response", "frame_name", fallbackName, "preview", truncate(rawText, 100))
		return spec
	}
	return decode(obj, fallbackName)
}

// findObject returns the first candidate that is (or can be repaired into) a JSON object.
func findObject(text string) (gjson.Result, bool) {
	for _, candidate := range candidates(text) {
		if obj, ok := parseObject(candidate); ok {
			return obj, true
		}
	}
	return gjson.Result{}, false
}

// emptySpec has empty, non-nil lists so they encode as [] rather than null.
func emptySpec(name string) models.FrameSpec {
	return models.FrameSpec{
		FrameName:     name,
		Components:    []models.Component{},
		BusinessRules: []string{},
		States:        []models.UIState{},
		Interactions:  []models.Interaction{},
	}
}

// candidates lists every fenced block in order, then the brace span, then the raw text.
func candidates(text string) []string {
	var out []string
	for _, m := range codeFenceRegex.FindAllStringSubmatch(text, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		out = append(out, text[start:end+1])
	}
	return append(out, strings.TrimSpace(text))
}

func parseObject(candidate string) (gjson.Result, bool) {
	if candidate == "" {
		return gjson.Result{}, false
	}
	for _, s := range []string{candidate, cleanup(candidate)} {
		if gjson.Valid(s) {
			if r := gjson.Parse(s); r.IsObject() {
				return r, true
			}
		}
	}
	return gjson.Result{}, false
}

// cleanup removes trailing commas before closing braces and brackets.
func cleanup(text string) string {
	return trailingCommaRegex.ReplaceAllString(text, "$1")
}

func decode(obj gjson.Result, fallbackName string) models.FrameSpec {
	spec := emptySpec(firstString(obj, "frameName", "frame_name", "name"))
	spec.Description = firstString(obj, "description", "summary")
	if spec.FrameName == "" {
		spec.FrameName = fallbackName
	}

	for _, c := range firstArray(obj, componentKeys...) {
		if comp, ok := decodeComponent(c); ok {
			spec.Components = append(spec.Components, comp)
		}
	}
	for _, r := range firstArray(obj, ruleKeys...) {
		if s := textOf(r, "rule", "description"); s != "" {
			spec.BusinessRules = append(spec.BusinessRules, s)
		}
	}
	for _, s := range firstArray(obj, stateKeys...) {
		if st, ok := decodeState(s); ok {
			spec.States = append(spec.States, st)
		}
	}
	for _, i := range firstArray(obj, interactionKeys...) {
		if in, ok := decodeInteraction(i); ok {
			spec.Interactions = append(spec.Interactions, in)
		}
	}
	return spec
}

func decodeComponent(v gjson.Result) (models.Component, bool) {
	switch {
	case v.Type == gjson.String:
		name := strings.TrimSpace(v.String())
		return models.Component{Name: name}, name != ""
	case v.IsObject():
		c := models.Component{
			Name:        firstString(v, "name", "label"),
			Type:        firstString(v, "type", "kind"),
			Description: firstString(v, "description", "purpose"),
			Interactive: v.Get("interactive").Bool(),
		}
		return c, c.Name != "" || c.Type != ""
	}
	return models.Component{}, false
}

func decodeState(v gjson.Result) (models.UIState, bool) {
	switch {
	case v.Type == gjson.String:
		name := strings.TrimSpace(v.String())
		return models.UIState{Name: name}, name != ""
	case v.IsObject():
		s := models.UIState{
			Name:        firstString(v, "name", "state"),
			Description: firstString(v, "description"),
		}
		return s, s.Name != ""
	}
	return models.UIState{}, false
}

func decodeInteraction(v gjson.Result) (models.Interaction, bool) {
	switch {
	case v.Type == gjson.String:
		action := strings.TrimSpace(v.String())
		return models.Interaction{Action: action}, action != ""
	case v.IsObject():
		in := models.Interaction{
			Trigger: firstString(v, "trigger", "event"),
			Action:  firstString(v, "action", "result"),
			Target:  firstString(v, "target", "destination"),
		}
		return in, in.Trigger != "" || in.Action != ""
	}
	return models.Interaction{}, false
}

// firstString returns the first key holding a non-empty string. Non-string values are ignored.
func firstString(obj gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := obj.Get(k); v.Type == gjson.String {
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

// firstArray returns the elements of the first key holding an array.
func firstArray(obj gjson.Result, keys ...string) []gjson.Result {
	for _, k := range keys {
		if v := obj.Get(k); v.IsArray() {
			return v.Array()
		}
	}
	return nil
}

func textOf(v gjson.Result, objectKeys ...string) string {
	if v.Type == gjson.String {
		return strings.TrimSpace(v.String())
	}
	if v.IsObject() {
		return firstString(v, objectKeys...)
	}
	return ""
}

// truncate cuts s to at most n bytes, backing off to a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
