package match

import (
	"fmt"
	"strings"
)

const matchInstructions = `You are reviewing one chapter of a legal contract. Decide whether the chapter addresses exactly one of the listed subjects. Return a JSON object with these fields:

- "matched": true only if the chapter clearly addresses one listed subject (boolean)
- "matched_subject": the subject copied verbatim from the list, or null when matched is false (string or null)
- "explanation": one or two sentences justifying the decision (string, never empty)

Rules:
- Pick a subject ONLY from the list below. Never invent a subject.
- "matched_subject" must reproduce the list entry exactly, character for character.
- When no listed subject fits, set matched to false and matched_subject to null.
- Always fill "explanation", including for non-matches.

Respond with ONLY the JSON object, no other text.`

// BuildMatchPrompt assembles the prompt for one chapter. Only subject labels
// go in; annotation comments stay out of the model's sight. The body is
// truncated to bodyPrefixRunes so an oversized chapter cannot blow the
// context window.
func BuildMatchPrompt(title, body string, labels []string, bodyPrefixRunes int) string {
	var sb strings.Builder
	sb.WriteString(matchInstructions)
	sb.WriteString("\n\nSubjects:\n")
	for _, label := range labels {
		sb.WriteString("- ")
		sb.WriteString(label)
		sb.WriteString("\n")
	}
	sb.WriteString("\n---\n")
	sb.WriteString(fmt.Sprintf("Chapter: %q\n", title))
	sb.WriteString("---\n")
	sb.WriteString(truncateRunes(body, bodyPrefixRunes))
	return sb.String()
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
