package conversation

import "github.com/HendryAvila/recordpilot/internal/llm"

// DefaultWindow is how many messages after the system prompt are retained.
const DefaultWindow = 16

// Truncate keeps history[0] (the system prompt) and the last keep messages.
// When the kept tail contains a tool result, the cut moves back to the
// assistant message that issued the tool calls, so a result is never kept
// without its call.
func Truncate(history []llm.Message, keep int) []llm.Message {
	if keep <= 0 {
		keep = DefaultWindow
	}
	if len(history) <= 1+keep {
		return history
	}

	system, msgs := history[0], history[1:]
	start := len(msgs) - keep

	for i := start; i < len(msgs); i++ {
		if !msgs[i].IsToolResult() {
			continue
		}
		// earliest tool result in the tail: walk back to its caller
		for j := i - 1; j >= 0; j-- {
			if msgs[j].Role == llm.RoleAssistant && len(msgs[j].ToolCalls) > 0 {
				start = min(start, j)
				break
			}
		}
		break
	}

	out := make([]llm.Message, 0, 1+len(msgs)-start)
	out = append(out, system)
	return append(out, msgs[start:]...)
}
