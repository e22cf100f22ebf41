package invoke

import (
	"context"

	"github.com/dshills/taskflow-go/llmclient/openai"
)

// openaiAdapter converts between invoke's provider-agnostic types and
// llmclient/openai's, so CALLFUNC can drive the OpenAI client (retry/backoff
// included) without this package reimplementing that plumbing.
type openaiAdapter struct {
	inner *openai.ChatModel
}

// NewOpenAI wraps llmclient/openai.NewChatModel as an invoke.ChatModel.
func NewOpenAI(apiKey, modelName string) ChatModel {
	return &openaiAdapter{inner: openai.NewChatModel(apiKey, modelName)}
}

func (a *openaiAdapter) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	out, err := a.inner.Chat(ctx, toModelMessages(messages), toModelTools(tools))
	if err != nil {
		return ChatOut{}, err
	}
	return fromModelChatOut(out), nil
}
