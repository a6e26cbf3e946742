// Package llm defines the tool-calling decision oracle the conversation
// layer drives, and a Gemini implementation of it.
package llm

import "context"

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Message is one entry of a conversation transcript.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`
	// ToolCalls is set on assistant messages that invoke tools.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID and ToolName are set on tool result messages.
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
}

// IsToolResult reports whether m carries a tool result.
func (m Message) IsToolResult() bool { return m.Role == RoleTool }

// ToolSpec describes a tool the model may call.
type ToolSpec struct {
	Name        string
	Description string
	// Parameters is a JSON Schema object.
	Parameters map[string]any
}

// Decision is the model's next step: either final text or tool calls.
type Decision struct {
	Text      string
	ToolCalls []ToolCall
}

// Oracle decides the next step of a conversation.
type Oracle interface {
	Decide(ctx context.Context, history []Message, tools []ToolSpec) (Decision, error)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(ctx context.Context, history []Message, tools []ToolSpec) (Decision, error)

func (f OracleFunc) Decide(ctx context.Context, history []Message, tools []ToolSpec) (Decision, error) {
	return f(ctx, history, tools)
}
