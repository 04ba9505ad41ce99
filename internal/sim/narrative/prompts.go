package narrative

import (
	"encoding/json"
	"fmt"
	"strings"
)

const systemPrompt = `You write short decision events for a game about running an academic research lab.
The player is the principal investigator. Each event is a dilemma with 2 or 3 options.

Reply with JSON only, no prose and no code fences. One event has this shape:
{
  "title": "short headline",
  "prompt": "one or two sentences describing the situation",
  "options": [
    {
      "label": "what the player does",
      "outcome": "one sentence describing what happens",
      "hint": "optional short trade-off note",
      "effects": {
        "mentor": {"morale": 0, "academia": 0, "admin": 0, "integrity": 0, "funding": 0, "reputation": 0},
        "student": {"diligence": 0, "talent": 0, "luck": 0, "stress": 0, "mental_state": 0, "contribution": 0}
      },
      "meta": {"score_delta": 0, "luck_delta": 0, "progress_delta": 0, "action": ""}
    }
  ]
}

Rules:
- Omit any effect or meta field you do not use. All numbers are small integers.
- score_delta and luck_delta only make sense for the "grant.review" tag.
- progress_delta only makes sense for the "grant.execution" tag.
- action "leave" only makes sense for the "quarter.leave" tag and means the student leaves the lab.
- Keep the tone light and grounded in real academic life.`

func userPrompt(s Situation) (string, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Write one event for tag %q.\n\nSituation:\n%s", s.Tag, b), nil
}

func batchPrompt(ss []Situation) (string, error) {
	b, err := json.MarshalIndent(ss, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Write %d events, one per situation, in the same order. Reply with a JSON array of events.\n\nSituations:\n%s", len(ss), b), nil
}

// stripFences removes a markdown code fence some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
