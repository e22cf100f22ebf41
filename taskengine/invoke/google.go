package invoke

import (
	"context"

	"github.com/dshills/taskflow-go/llmclient/google"
)

// googleAdapter converts between invoke's provider-agnostic types and
// llmclient/google's, so CALLFUNC can drive the Gemini client (safety-filter
// handling included) without this package reimplementing that plumbing.
type googleAdapter struct {
	inner *google.ChatModel
}

// NewGoogle wraps llmclient/google.NewChatModel as an invoke.ChatModel.
func NewGoogle(apiKey, modelName string) ChatModel {
	return &googleAdapter{inner: google.NewChatModel(apiKey, modelName)}
}

func (a *googleAdapter) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	out, err := a.inner.Chat(ctx, toModelMessages(messages), toModelTools(tools))
	if err != nil {
		return ChatOut{}, err
	}
	return fromModelChatOut(out), nil
}
