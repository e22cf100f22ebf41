package taskengine

// ProcessingFactory supplies the per-run and per-token lifecycle seams.
// Overriding a field replaces that behaviour without touching the walker;
// the DB overlay (see taskengine/store) composes by replacing
// BeforeProcessing/AfterProcessing/BeforeObject/AfterObject rather than by
// subclassing the engine.
type ProcessingFactory struct {
	BeforeProcessing func(eng *Engine, tokens []Token)
	AfterProcessing  func(eng *Engine, tokens []Token)
	BeforeObject     func(eng *Engine, tokens []Token, tok Token)
	AfterObject      func(eng *Engine, tokens []Token, tok Token)
}

// DefaultProcessingFactory wires the signal bus: workflow_started before the
// run, workflow_finished after a run that ends without a halt or an error
// (AfterProcessing is not called otherwise). BeforeObject/AfterObject are no-ops at
// this layer (the core engine has no per-object bookkeeping of its own).
func DefaultProcessingFactory() *ProcessingFactory {
	return &ProcessingFactory{
		BeforeProcessing: func(eng *Engine, tokens []Token) { eng.emit(SignalWorkflowStarted, nil) },
		AfterProcessing:  func(eng *Engine, tokens []Token) { eng.emit(SignalWorkflowFinished, nil) },
		BeforeObject:     func(eng *Engine, tokens []Token, tok Token) {},
		AfterObject:      func(eng *Engine, tokens []Token, tok Token) {},
	}
}

// ActionMapper supplies instrumentation seams around each token's callback
// run and around each individual callback invocation. The DB overlay hooks
// AfterCallbacks to mark a durable token COMPLETED; taskengine/emit receives
// its events through the signal bus, not through these seams.
type ActionMapper struct {
	BeforeCallbacks    func(eng *Engine, tok Token)
	AfterCallbacks     func(eng *Engine, tok Token)
	BeforeEachCallback func(eng *Engine, cb Callback, tok Token)
	AfterEachCallback  func(eng *Engine, cb Callback, tok Token)
}

// DefaultActionMapper is a complete set of no-ops.
func DefaultActionMapper() *ActionMapper {
	return &ActionMapper{
		BeforeCallbacks:    func(eng *Engine, tok Token) {},
		AfterCallbacks:     func(eng *Engine, tok Token) {},
		BeforeEachCallback: func(eng *Engine, cb Callback, tok Token) {},
		AfterEachCallback:  func(eng *Engine, cb Callback, tok Token) {},
	}
}

// LoopSignal tells the outer token loop what to do once a transfer that
// escaped the recursive walker has been dispatched.
type LoopSignal int

const (
	LoopContinue LoopSignal = iota // move on to the next token
	LoopBreak                      // stop the outer token loop, no error
	LoopPropagate                  // stop entirely, returning the given error
)

// TransitionHandler reacts to one kind of transfer reaching the outer loop
// and reports what the outer loop should do next.
type TransitionHandler func(eng *Engine, tok Token, tr Transfer) (LoopSignal, error)

// TransitionActions is a typed dispatch table from transfer kind to
// handler, replacing the original implementation's "look up a method on the
// mapper by the raised exception's class name" idiom (§9). Overriding an
// entry replaces the behaviour for that signal only; the DB overlay
// replaces HaltProcessing, WorkflowError and exception (its "Exception"
// entry) to add
// persistence bookkeeping before delegating to the same default behaviour.
type TransitionActions map[TransferKind]TransitionHandler

// DefaultTransitionActions implements the mapping fixed by §4.4.
func DefaultTransitionActions() TransitionActions {
	return TransitionActions{
		StopProcessing: func(eng *Engine, tok Token, tr Transfer) (LoopSignal, error) {
			return LoopBreak, nil
		},
		AbortProcessing: func(eng *Engine, tok Token, tr Transfer) (LoopSignal, error) {
			return LoopBreak, nil
		},
		ContinueNextToken: func(eng *Engine, tok Token, tr Transfer) (LoopSignal, error) {
			eng.State.CallbackPos = []int{0}
			return LoopContinue, nil
		},
		SkipToken: func(eng *Engine, tok Token, tr Transfer) (LoopSignal, error) {
			return LoopContinue, nil
		},
		JumpToken: func(eng *Engine, tok Token, tr Transfer) (LoopSignal, error) {
			eng.applyJumpToken(tr.Delta)
			return LoopContinue, nil
		},
		HaltProcessing: func(eng *Engine, tok Token, tr Transfer) (LoopSignal, error) {
			eng.emit(SignalWorkflowHalted, map[string]any{"message": tr.Message})
			return LoopPropagate, &HaltError{Message: tr.Message, Action: tr.Action, Payload: tr.Payload}
		},
		WorkflowError: func(eng *Engine, tok Token, tr Transfer) (LoopSignal, error) {
			eng.emit(SignalWorkflowHalted, map[string]any{"message": tr.Message})
			return LoopPropagate, &WorkflowError{Message: tr.Message, WorkflowID: eng.id, ObjectID: eng.State.TokenPos, Cause: tr.Cause}
		},
		exception: func(eng *Engine, tok Token, tr Transfer) (LoopSignal, error) {
			eng.emit(SignalWorkflowHalted, map[string]any{"message": tr.Message})
			return LoopPropagate, &WorkflowError{Message: tr.Message, WorkflowID: eng.id, ObjectID: eng.State.TokenPos, Cause: tr.Cause}
		},
	}
}

// applyJumpToken implements §4.4's JumpToken(Δ) offset math: forward deltas
// clamp at len(tokens), backward deltas clamp at -1. The caller's loop does
// token_pos += 1 at the top of its next iteration, which is why Δ is
// applied against token_pos-1.
func (e *Engine) applyJumpToken(delta int) {
	e.State.TokenPos = clampInt(e.State.TokenPos-1+delta, -1, e.tokenCount)
	e.State.CallbackPos = []int{0}
}

// Hooks bundles the three composable hook tables. Engine.Duplicate copies
// them with Clone, so PARALLEL_SPLIT/SYNCHRONIZE branches inherit the
// parent's wiring; an overlay such as the DB overlay patches the tables of
// the one engine it is installed on.
type Hooks struct {
	Processing  *ProcessingFactory
	Action      *ActionMapper
	Transitions TransitionActions
}

// DefaultHooks returns the engine's baseline hook wiring.
func DefaultHooks() *Hooks {
	return &Hooks{
		Processing:  DefaultProcessingFactory(),
		Action:      DefaultActionMapper(),
		Transitions: DefaultTransitionActions(),
	}
}

// Clone returns a shallow copy of the hook tables (the function values are
// shared, the tables and structs are not), suitable for a duplicated engine
// that wants to add its own overrides without mutating the original.
func (h *Hooks) Clone() *Hooks {
	pf := *h.Processing
	am := *h.Action
	ta := make(TransitionActions, len(h.Transitions))
	for k, v := range h.Transitions {
		ta[k] = v
	}
	return &Hooks{Processing: &pf, Action: &am, Transitions: ta}
}
