package assistant

import "github.com/ziadkadry99/clinrag/internal/llm"

// maxInitialContext caps how many opening messages survive trimming.
const maxInitialContext = 5

// OptimizeHistory bounds history to limit messages. It keeps the opening
// messages (a quarter of the limit, at most five) for grounding plus the
// most recent remainder. The input slice is not modified.
func OptimizeHistory(history []llm.Message, limit int) []llm.Message {
	if limit <= 0 || len(history) <= limit {
		return history
	}

	head := min(maxInitialContext, limit/4)
	tail := limit - head

	out := make([]llm.Message, 0, limit)
	out = append(out, history[:head]...)
	return append(out, history[len(history)-tail:]...)
}
