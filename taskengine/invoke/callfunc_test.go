package invoke

import (
	"errors"
	"testing"

	"github.com/dshills/taskflow-go/taskengine"
)

type transcriptToken struct {
	history []Message
	replies []ChatOut
}

func (t *transcriptToken) GetFeature(string) (string, bool) { return "", false }
func (t *transcriptToken) History() []Message                { return t.history }
func (t *transcriptToken) AppendReply(out ChatOut)            { t.replies = append(t.replies, out) }

type plainToken struct{}

func (plainToken) GetFeature(string) (string, bool) { return "", false }

func TestCallfuncAppendsReplyOnSuccess(t *testing.T) {
	model := &MockChatModel{Responses: []ChatOut{{Text: "hello"}}}
	cb := CALLFUNC(model, nil)

	tok := &transcriptToken{history: []Message{{Role: RoleUser, Content: "hi"}}}
	eng, _ := taskengine.New()
	cb(tok, eng)

	if len(tok.replies) != 1 || tok.replies[0].Text != "hello" {
		t.Errorf("replies = %+v", tok.replies)
	}
	if model.CallCount() != 1 {
		t.Errorf("model should have been called once, got %d", model.CallCount())
	}
}

func TestCallfuncRaisesWorkflowErrorWhenTokenLacksTranscript(t *testing.T) {
	cb := CALLFUNC(&MockChatModel{}, nil)
	prog := []taskengine.ProgramNode{taskengine.Callback(cb)}

	eng, _ := taskengine.New()
	eng.Callbacks.SetWorkflow(prog)
	err := eng.Process([]taskengine.Token{plainToken{}})
	if err == nil {
		t.Fatal("expected a WorkflowError for a token that doesn't implement Transcript")
	}
	if _, ok := err.(*taskengine.WorkflowError); !ok {
		t.Errorf("expected *taskengine.WorkflowError, got %#v", err)
	}
}

func TestCallfuncRaisesWorkflowErrorOnChatFailure(t *testing.T) {
	model := &MockChatModel{Err: errors.New("provider unavailable")}
	cb := CALLFUNC(model, nil)
	prog := []taskengine.ProgramNode{taskengine.Callback(cb)}

	eng, _ := taskengine.New()
	eng.Callbacks.SetWorkflow(prog)
	err := eng.Process([]taskengine.Token{&transcriptToken{}})
	if err == nil {
		t.Fatal("expected a WorkflowError when the chat call fails")
	}
	wfErr, ok := err.(*taskengine.WorkflowError)
	if !ok {
		t.Fatalf("expected *taskengine.WorkflowError, got %#v", err)
	}
	if wfErr.Cause == nil {
		t.Error("WorkflowError should wrap the underlying chat error as Cause")
	}
}

func TestCallfuncForwardsToolsToModel(t *testing.T) {
	model := &MockChatModel{Responses: []ChatOut{{Text: "ok"}}}
	tools := []ToolSpec{{Name: "lookup", Description: "look things up"}}
	cb := CALLFUNC(model, tools)

	tok := &transcriptToken{}
	eng, _ := taskengine.New()
	cb(tok, eng)

	if len(model.Calls) != 1 || len(model.Calls[0].Tools) != 1 || model.Calls[0].Tools[0].Name != "lookup" {
		t.Errorf("model.Calls = %+v", model.Calls)
	}
}
