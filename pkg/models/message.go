package models

// Role indicates the message author type.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one ordered element of a conversation transcript.
// Messages are append-only once emitted.
type Message struct {
	Role Role `json:"role"`
	// Content is the assistant-visible text of the message.
	Content string `json:"content,omitempty"`
	// Reasoning is thinking-mode output. It is surfaced to the user but
	// never fed back to the model as context.
	Reasoning string `json:"reasoning,omitempty"`
	// ToolCalls is set on assistant messages that request tool execution.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID binds a tool message to the assistant tool call it answers.
	ToolCallID string        `json:"tool_call_id,omitempty"`
	Attrs      *MessageAttrs `json:"attrs,omitempty"`
}

// MessageAttrs is the side channel a message carries alongside its text:
// the tools selected for the turn, resources discovered up front, and the
// citations this message contributed.
type MessageAttrs struct {
	Tools            []ToolSelection `json:"tools,omitempty"`
	RelatedResources []ResourceInfo  `json:"related_resources,omitempty"`
	Citations        []Citation      `json:"citations,omitempty"`
}

// ToolSelection names a tool chosen by the caller for a turn together with
// the scope it operates in.
type ToolSelection struct {
	Name             string   `json:"name"`
	NamespaceID      string   `json:"namespace_id,omitempty"`
	VisibleResources []string `json:"visible_resources,omitempty"`
}

// ToolCall is the assistant's request to invoke a named function.
// The shape matches the OpenAI wire format.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the function name and its arguments as the raw JSON
// string the model produced.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// CitationCount returns the number of citations attached across all
// messages of a transcript. Search tools number new citations starting
// immediately after this count.
func CitationCount(transcript []Message) int {
	n := 0
	for _, msg := range transcript {
		if msg.Attrs != nil {
			n += len(msg.Attrs.Citations)
		}
	}
	return n
}

// LastMessage returns the final message of a transcript, or nil when the
// transcript is empty.
func LastMessage(transcript []Message) *Message {
	if len(transcript) == 0 {
		return nil
	}
	return &transcript[len(transcript)-1]
}
