package invoke

import (
	"context"

	"github.com/dshills/taskflow-go/llmclient"
	"github.com/dshills/taskflow-go/llmclient/anthropic"
)

// anthropicAdapter converts between invoke's provider-agnostic types and
// llmclient/anthropic's, so CALLFUNC can drive the Anthropic client without
// this package reimplementing its HTTP/retry logic.
type anthropicAdapter struct {
	inner *anthropic.ChatModel
}

// NewAnthropic wraps llmclient/anthropic.NewChatModel as an
// invoke.ChatModel.
func NewAnthropic(apiKey, modelName string) ChatModel {
	return &anthropicAdapter{inner: anthropic.NewChatModel(apiKey, modelName)}
}

func (a *anthropicAdapter) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	out, err := a.inner.Chat(ctx, toModelMessages(messages), toModelTools(tools))
	if err != nil {
		return ChatOut{}, err
	}
	return fromModelChatOut(out), nil
}

func toModelMessages(messages []Message) []model.Message {
	out := make([]model.Message, len(messages))
	for i, m := range messages {
		out[i] = model.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

func toModelTools(tools []ToolSpec) []model.ToolSpec {
	out := make([]model.ToolSpec, len(tools))
	for i, t := range tools {
		out[i] = model.ToolSpec{Name: t.Name, Description: t.Description, Schema: t.Schema}
	}
	return out
}

func fromModelChatOut(out model.ChatOut) ChatOut {
	calls := make([]ToolCall, len(out.ToolCalls))
	for i, c := range out.ToolCalls {
		calls[i] = ToolCall{Name: c.Name, Input: c.Input}
	}
	return ChatOut{Text: out.Text, ToolCalls: calls}
}
