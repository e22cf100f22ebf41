package store

import (
	"context"

	"github.com/dshills/taskflow-go/taskengine"
)

// DbWorkflowEngine wraps a *taskengine.Engine with the persistence overlay
// described in §6: it replaces BeforeProcessing/AfterProcessing/
// BeforeObject/AfterObject, ActionMapper.AfterCallbacks and the
// HaltProcessing/WorkflowError/exception transition handlers, saving
// WorkflowStatus records through a Store and setting TokenStatus on each
// Durable token, then delegates to the engine's existing default behaviour.
// Errors returned by the Store are discarded; they do not surface from
// Process.
// Ported from the original implementation's engine_db.py overlay; the
// record layer itself (schema, migrations) is out of scope (§1) and lives
// in SQLiteStore/MySQLStore/MemoryStore instead.
type DbWorkflowEngine struct {
	*taskengine.Engine
	Store Store
	Name  string
}

// NewDbWorkflowEngine wraps eng, installing the persistence hooks on top
// of whatever hooks eng already carries. Call this once, immediately
// after constructing eng and before the first Process call.
func NewDbWorkflowEngine(eng *taskengine.Engine, backing Store, name string) *DbWorkflowEngine {
	d := &DbWorkflowEngine{Engine: eng, Store: backing, Name: name}
	d.installHooks()
	return d
}

func (d *DbWorkflowEngine) installHooks() {
	h := d.Hooks()
	prevBeforeProcessing := h.Processing.BeforeProcessing
	prevAfterProcessing := h.Processing.AfterProcessing
	prevBeforeObject := h.Processing.BeforeObject
	prevAfterObject := h.Processing.AfterObject

	h.Processing.BeforeProcessing = func(eng *taskengine.Engine, tokens []taskengine.Token) {
		_ = d.Store.SaveWorkflow(context.Background(), WorkflowRecord{
			UUID: eng.ID(), Name: d.Name, Status: WorkflowRunning, Objects: tokenIDs(tokens),
		})
		if prevBeforeProcessing != nil {
			prevBeforeProcessing(eng, tokens)
		}
	}

	h.Processing.BeforeObject = func(eng *taskengine.Engine, tokens []taskengine.Token, tok taskengine.Token) {
		if durable, ok := tok.(Durable); ok {
			durable.SetStatus(TokenRunning)
			durable.SetWorkflowID(eng.ID())
		}
		if prevBeforeObject != nil {
			prevBeforeObject(eng, tokens, tok)
		}
	}

	h.Processing.AfterObject = func(eng *taskengine.Engine, tokens []taskengine.Token, tok taskengine.Token) {
		if durable, ok := tok.(Durable); ok {
			durable.SetStatus(TokenCompleted)
		}
		if prevAfterObject != nil {
			prevAfterObject(eng, tokens, tok)
		}
	}

	prevAfterCallbacks := h.Action.AfterCallbacks
	h.Action.AfterCallbacks = func(eng *taskengine.Engine, tok taskengine.Token) {
		if durable, ok := tok.(Durable); ok {
			durable.SetStatus(TokenCompleted)
		}
		if prevAfterCallbacks != nil {
			prevAfterCallbacks(eng, tok)
		}
	}

	h.Processing.AfterProcessing = func(eng *taskengine.Engine, tokens []taskengine.Token) {
		status := WorkflowHalted
		if eng.HasCompleted() {
			status = WorkflowCompleted
		}
		_ = d.Store.SaveWorkflow(context.Background(), WorkflowRecord{
			UUID: eng.ID(), Name: d.Name, Status: status, Objects: tokenIDs(tokens),
		})
		if prevAfterProcessing != nil {
			prevAfterProcessing(eng, tokens)
		}
	}

	prevHalt := h.Transitions[taskengine.HaltProcessing]
	h.Transitions[taskengine.HaltProcessing] = func(eng *taskengine.Engine, tok taskengine.Token, tr taskengine.Transfer) (taskengine.LoopSignal, error) {
		if durable, ok := tok.(Durable); ok {
			durable.SetStatus(TokenHalted)
			durable.SetTaskCounter(eng.State.CallbackPos)
		}
		_ = d.Store.SaveWorkflow(context.Background(), WorkflowRecord{UUID: eng.ID(), Name: d.Name, Status: WorkflowHalted})
		return prevHalt(eng, tok, tr)
	}

	prevWorkflowError := h.Transitions[taskengine.WorkflowError]
	h.Transitions[taskengine.WorkflowError] = func(eng *taskengine.Engine, tok taskengine.Token, tr taskengine.Transfer) (taskengine.LoopSignal, error) {
		if durable, ok := tok.(Durable); ok {
			durable.SetStatus(TokenError)
			durable.SetErrorMessage(tr.Message)
		}
		_ = d.Store.SaveWorkflow(context.Background(), WorkflowRecord{UUID: eng.ID(), Name: d.Name, Status: WorkflowError})
		return prevWorkflowError(eng, tok, tr)
	}

	prevException := h.Transitions[taskengine.ExceptionKind()]
	h.Transitions[taskengine.ExceptionKind()] = func(eng *taskengine.Engine, tok taskengine.Token, tr taskengine.Transfer) (taskengine.LoopSignal, error) {
		if durable, ok := tok.(Durable); ok {
			durable.SetStatus(TokenError)
			durable.SetErrorMessage(tr.Message)
		}
		_ = d.Store.SaveWorkflow(context.Background(), WorkflowRecord{UUID: eng.ID(), Name: d.Name, Status: WorkflowError})
		return prevException(eng, tok, tr)
	}
}

func tokenIDs(tokens []taskengine.Token) []string {
	ids := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if durable, ok := tok.(interface{ ID() string }); ok {
			ids = append(ids, durable.ID())
		}
	}
	return ids
}
