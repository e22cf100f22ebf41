package taskengine

import "testing"

func TestDefaultTransitionActionsStopAndAbort(t *testing.T) {
	actions := DefaultTransitionActions()
	eng, _ := New()

	sig, err := actions[StopProcessing](eng, MapToken{}, Transfer{Kind: StopProcessing})
	if err != nil || sig != LoopBreak {
		t.Errorf("StopProcessing: sig=%v err=%v, want LoopBreak/nil", sig, err)
	}

	sig, err = actions[AbortProcessing](eng, MapToken{}, Transfer{Kind: AbortProcessing})
	if err != nil || sig != LoopBreak {
		t.Errorf("AbortProcessing: sig=%v err=%v, want LoopBreak/nil", sig, err)
	}
}

func TestDefaultTransitionActionsContinueResetsCallbackPos(t *testing.T) {
	actions := DefaultTransitionActions()
	eng, _ := New()
	eng.State.CallbackPos = []int{3, 2}

	sig, err := actions[ContinueNextToken](eng, MapToken{}, Transfer{Kind: ContinueNextToken})
	if err != nil || sig != LoopContinue {
		t.Fatalf("ContinueNextToken: sig=%v err=%v", sig, err)
	}
	if len(eng.State.CallbackPos) != 1 || eng.State.CallbackPos[0] != 0 {
		t.Errorf("CallbackPos should reset to [0], got %v", eng.State.CallbackPos)
	}
}

func TestDefaultTransitionActionsHaltReturnsHaltError(t *testing.T) {
	actions := DefaultTransitionActions()
	eng, _ := New()

	sig, err := actions[HaltProcessing](eng, MapToken{}, Transfer{Kind: HaltProcessing, Message: "paused"})
	if sig != LoopPropagate {
		t.Errorf("HaltProcessing should propagate, got %v", sig)
	}
	haltErr, ok := err.(*HaltError)
	if !ok {
		t.Fatalf("expected *HaltError, got %#v", err)
	}
	if haltErr.Message != "paused" {
		t.Errorf("HaltError.Message = %q", haltErr.Message)
	}
}

func TestDefaultTransitionActionsWorkflowErrorWrapsCause(t *testing.T) {
	actions := DefaultTransitionActions()
	eng, _ := New(WithID("wf-1"))
	cause := &EngineError{Code: "BOOM"}

	sig, err := actions[WorkflowError](eng, MapToken{}, Transfer{Kind: WorkflowError, Message: "bad", Cause: cause})
	if sig != LoopPropagate {
		t.Errorf("WorkflowError should propagate, got %v", sig)
	}
	wfErr, ok := err.(*WorkflowError)
	if !ok {
		t.Fatalf("expected *WorkflowError, got %#v", err)
	}
	if wfErr.WorkflowID != "wf-1" || wfErr.Cause != cause {
		t.Errorf("WorkflowError did not preserve WorkflowID/Cause: %+v", wfErr)
	}
}

func TestApplyJumpTokenClampsAtBounds(t *testing.T) {
	eng, _ := New()
	eng.tokenCount = 3
	eng.State.TokenPos = 0

	eng.applyJumpToken(-10)
	if eng.State.TokenPos != -1 {
		t.Errorf("backward overshoot should clamp at -1, got %d", eng.State.TokenPos)
	}

	eng.State.TokenPos = 0
	eng.applyJumpToken(10)
	if eng.State.TokenPos != 3 {
		t.Errorf("forward overshoot should clamp at tokenCount, got %d", eng.State.TokenPos)
	}
}

func TestHooksCloneIsIndependent(t *testing.T) {
	h := DefaultHooks()
	clone := h.Clone()

	clone.Transitions[StopProcessing] = func(eng *Engine, tok Token, tr Transfer) (LoopSignal, error) {
		return LoopPropagate, nil
	}

	sig, _ := h.Transitions[StopProcessing](nil, nil, Transfer{})
	if sig != LoopBreak {
		t.Error("mutating a cloned Hooks' Transitions map must not affect the original")
	}
}
