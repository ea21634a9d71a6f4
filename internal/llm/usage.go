package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator approximates token usage when the endpoint omits the usage
// block from its final chunk. cl100k_base is close enough across the
// OpenAI-compatible model family; when the encoding cannot be loaded a
// bytes/4 heuristic applies.
type Estimator struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewEstimator returns a lazy estimator; the encoding loads on first use.
func NewEstimator() *Estimator {
	return &Estimator{}
}

// perMessageOverhead is the rough per-message framing cost of the chat
// format.
const perMessageOverhead = 4

// Estimate derives usage from the request messages and the streamed
// completion text.
func (e *Estimator) Estimate(messages []ChatMessage, completion string) Usage {
	prompt := 0
	for _, m := range messages {
		prompt += e.Count(m.Content) + perMessageOverhead
		for _, tc := range m.ToolCalls {
			prompt += e.Count(tc.Function.Name) + e.Count(tc.Function.Arguments)
		}
	}
	done := e.Count(completion)
	return Usage{
		PromptTokens:     prompt,
		CompletionTokens: done,
		TotalTokens:      prompt + done,
		Estimated:        true,
	}
}

// Count returns the token count of one text.
func (e *Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	e.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			e.enc = enc
		}
	})
	if e.enc == nil {
		return (len(text) + 3) / 4
	}
	return len(e.enc.Encode(text, nil, nil))
}
