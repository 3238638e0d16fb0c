package chat

import "github.com/elishakaranja/Mindset-coach/internal/ai"

// BuildTranscript converts stored turns, already in chronological order, into
// model turns. The order is preserved; an empty input gives an empty result.
func BuildTranscript(msgs []Message) []ai.Turn {
	out := make([]ai.Turn, 0, len(msgs))
	for _, m := range msgs {
		role := ai.RoleUser
		if m.Role == RoleAssistant {
			role = ai.RoleAssistant
		}
		out = append(out, ai.Turn{Role: role, Text: m.Content})
	}
	return out
}
