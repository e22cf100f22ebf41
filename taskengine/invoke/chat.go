// Package invoke wraps chat-capable LLM providers as plain
// taskengine.Callback values, so a CALLFUNC-style "call this model, write
// its answer onto the token" step composes into a program like any other
// callback. The provider contract itself (ChatModel, Message, ToolSpec,
// ChatOut) mirrors llmclient's provider contract; invoke's adapters wrap
// llmclient/{anthropic,openai,google} rather than reimplementing the HTTP
// plumbing those packages already carry.
package invoke

import "context"

// ChatModel is the provider-agnostic chat contract a Callback built by
// CALLFUNC delegates to.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message is one turn of a chat conversation.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes a tool the model may call.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ChatOut is a model's response: text, tool calls, or both.
type ChatOut struct {
	Text      string
	ToolCalls []ToolCall
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	Name  string
	Input map[string]any
}
