package invoke

import (
	"context"

	"github.com/dshills/taskflow-go/taskengine"
)

// Transcript is the durable-object-adjacent contract a token must satisfy
// to be driven by CALLFUNC: it supplies the conversation so far and
// receives the model's reply. Distinct from store.Durable — a token can
// implement both, neither, or just this one.
type Transcript interface {
	History() []Message
	AppendReply(ChatOut)
}

// CALLFUNC builds a Callback that sends a token's Transcript history to
// model and appends the reply, raising a WorkflowError through the engine
// if the call fails. This is a deliberately reduced port of the original's
// CALLFUNC: that combinator resolved a dotted Python import path at
// program-install time and invoked arbitrary module-level callables,
// dynamic-import machinery with no Go equivalent worth emulating (§9); what
// survives is CALLFUNC's role in the combinator table as "invoke an
// external function as a program step," here narrowed to its dominant
// real use in the original call graph: an LLM chat call.
func CALLFUNC(model ChatModel, tools []ToolSpec) taskengine.Callback {
	return func(tok taskengine.Token, eng *taskengine.Engine) {
		transcript, ok := tok.(Transcript)
		if !ok {
			eng.RaiseWorkflowError("CALLFUNC: token does not implement invoke.Transcript", nil)
			return
		}
		out, err := model.Chat(context.Background(), transcript.History(), tools)
		if err != nil {
			eng.RaiseWorkflowError("CALLFUNC: chat call failed: "+err.Error(), err)
			return
		}
		transcript.AppendReply(out)
	}
}
