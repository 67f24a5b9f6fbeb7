package llm

import "strings"

const systemPrompt = `You are a senior product designer reviewing a single screen of a UI design.
Describe the screen as a JSON object with exactly these fields:

{
  "frameName": "short name of the screen",
  "description": "one or two sentences on the purpose of the screen",
  "components": [{"name": "...", "type": "button|input|text|image|list|card|nav|modal|other", "description": "...", "interactive": true}],
  "businessRules": ["validation rules, limits, conditions and constraints visible or implied"],
  "states": [{"name": "empty|loading|error|success|...", "description": "..."}],
  "interactions": [{"trigger": "what the user does", "action": "what happens", "target": "resulting screen or element"}]
}

Respond with the JSON object only. Use empty arrays for anything that does not apply.`

func userPrompt(contextHint string) string {
	var b strings.Builder
	b.WriteString("Analyze this design frame.")
	if hint := strings.TrimSpace(contextHint); hint != "" {
		b.WriteString("\n\nContext:\n")
		b.WriteString(hint)
	}
	return b.String()
}
