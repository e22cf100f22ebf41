package taskengine

import (
	"fmt"
	"log/slog"
	"reflect"
	"runtime"
	"time"
)

// Engine drives a CallbackTree over a sequence of tokens, maintaining a
// two-dimensional, resumable instruction pointer (MachineState). It is the
// Go port of the "GenericWorkflowEngine" core: a single-threaded, cooperative
// outer token loop plus a recursive callback walker, with non-local control
// transfers modeled as a pending-transfer slot rather than exceptions (§9).
type Engine struct {
	// Callbacks holds the installed program(s), keyed by token type.
	Callbacks *CallbackTree
	// State is the instruction pointer; safe to serialize directly.
	State *MachineState
	// ExtraData is per-engine scratch space for combinators (FOR's
	// iterator state, PARALLEL_SPLIT's shared lock, RUN_WF's cached
	// sub-engines, and caller bookkeeping). It is not safe for concurrent
	// access; branches that share it must serialize through
	// ExtraData["lock"] themselves (§5).
	ExtraData map[string]any

	id          string
	hooks       *Hooks
	chooser     ChooserFunc
	logger      *slog.Logger
	metrics     *Metrics
	signals     *signalBus
	syncTimeout time.Duration

	tokens     []Token
	tokenCount int
	pending    *Transfer
}

// New constructs an Engine. Arguments may be an Options value, any number
// of Option functions, or both — Option values are applied after an Options
// value, in call order, mirroring App's WithFrontend/WithProvider/... and
// retryProvider's RetryOption constructors: a plain struct for bulk config
// plus functional options layered on top.
func New(options ...any) (*Engine, error) {
	cfg := &engineConfig{}
	for _, opt := range options {
		switch v := opt.(type) {
		case Options:
			cfg.opts = v
		case Option:
			if err := v(cfg); err != nil {
				return nil, err
			}
		default:
			return nil, &EngineError{Code: "BAD_OPTION", Message: fmt.Sprintf("unsupported option type %T", opt)}
		}
	}
	cfg.normalize()

	eng := &Engine{
		Callbacks:   NewCallbackTree(),
		State:       NewMachineState(),
		ExtraData:   make(map[string]any),
		id:          cfg.opts.ID,
		hooks:       cfg.opts.Hooks,
		chooser:     cfg.opts.Chooser,
		logger:      cfg.opts.Logger,
		metrics:     cfg.opts.Metrics,
		syncTimeout: cfg.opts.SynchronizeTimeout,
	}
	eng.signals = newSignalBus(eng.logger)
	return eng, nil
}

// ID returns the engine's persistence/error-reporting identifier.
func (e *Engine) ID() string { return e.id }

// Logger returns the engine's diagnostics sink.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// SynchronizeTimeout returns the default timeout SYNCHRONIZE uses when not
// given one explicitly.
func (e *Engine) SynchronizeTimeout() time.Duration { return e.syncTimeout }

// Tokens returns the slice most recently passed to Process/Restart, or nil
// before the first run.
func (e *Engine) Tokens() []Token { return e.tokens }

// Hooks returns the engine's live hook tables for overlays (taskengine/store's
// DbWorkflowEngine, taskengine/emit's Bridge-adjacent wiring) to extend in
// place. Mutating the returned Hooks affects this engine only, never a
// sibling produced by Duplicate (Duplicate clones the tables).
func (e *Engine) Hooks() *Hooks { return e.hooks }

// Subscribe registers a best-effort signal receiver (§6, §9).
func (e *Engine) Subscribe(r Receiver) { e.signals.subscribe(r) }

func (e *Engine) emit(signal string, payload map[string]any) {
	e.signals.emit(signal, e, payload)
}

// ---- Transfer requests (the public control-transfer API, §6) ----

func (e *Engine) setPending(t Transfer) { e.pending = &t }

// ContinueNextToken skips the remaining callbacks for the current token.
func (e *Engine) ContinueNextToken() { e.setPending(Transfer{Kind: ContinueNextToken}) }

// Stop ends the run cleanly at the current position.
func (e *Engine) Stop() { e.setPending(Transfer{Kind: StopProcessing}) }

// Halt ends the run but leaves it resumable.
func (e *Engine) Halt(message, action string, payload any) {
	e.setPending(Transfer{Kind: HaltProcessing, Message: message, Action: action, Payload: payload})
}

// Abort ends the run, tagged distinctly from Stop for the DB overlay.
func (e *Engine) Abort() { e.setPending(Transfer{Kind: AbortProcessing}) }

// SkipToken behaves like ContinueNextToken but is tagged distinctly for the
// DB overlay.
func (e *Engine) SkipToken() { e.setPending(Transfer{Kind: SkipToken}) }

// BreakLoop returns from the current nesting level of the callback walker.
func (e *Engine) BreakLoop() { e.setPending(Transfer{Kind: BreakFromThisLoop}) }

// JumpToken moves token_pos by delta (§4.1, §4.4).
func (e *Engine) JumpToken(delta int) { e.setPending(Transfer{Kind: JumpToken, Delta: delta}) }

// JumpCall moves callback_pos at the current nesting depth by delta (§4.5).
func (e *Engine) JumpCall(delta int) { e.setPending(Transfer{Kind: JumpCall, Delta: delta}) }

// RaiseWorkflowError signals a domain error from within a callback. An
// error payload also becomes the resulting WorkflowError's Cause.
func (e *Engine) RaiseWorkflowError(message string, payload any) {
	tr := Transfer{Kind: WorkflowError, Message: message, Payload: payload}
	if err, ok := payload.(error); ok {
		tr.Cause = err
	}
	e.setPending(tr)
}

// JumpTokenForward is the legacy alias for JumpToken that rejects a
// negative delta with a WorkflowError naming the violation.
func (e *Engine) JumpTokenForward(delta int) {
	if delta < 0 {
		e.RaiseWorkflowError(fmt.Sprintf("JumpTokenForward requires a non-negative delta, got %d", delta), nil)
		return
	}
	e.JumpToken(delta)
}

// JumpTokenBack is the legacy alias for JumpToken that rejects a positive
// delta with a WorkflowError naming the violation.
func (e *Engine) JumpTokenBack(delta int) {
	if delta > 0 {
		e.RaiseWorkflowError(fmt.Sprintf("JumpTokenBack requires a non-positive delta, got %d", delta), nil)
		return
	}
	e.JumpToken(delta)
}

// JumpCallForward is the legacy alias for JumpCall that rejects a negative
// delta with a WorkflowError naming the violation.
func (e *Engine) JumpCallForward(delta int) {
	if delta < 0 {
		e.RaiseWorkflowError(fmt.Sprintf("JumpCallForward requires a non-negative delta, got %d", delta), nil)
		return
	}
	e.JumpCall(delta)
}

// JumpCallBack is the legacy alias for JumpCall that rejects a positive
// delta with a WorkflowError naming the violation.
func (e *Engine) JumpCallBack(delta int) {
	if delta > 0 {
		e.RaiseWorkflowError(fmt.Sprintf("JumpCallBack requires a non-positive delta, got %d", delta), nil)
		return
	}
	e.JumpCall(delta)
}

func (e *Engine) takePending() *Transfer {
	tr := e.pending
	e.pending = nil
	return tr
}

// ---- Introspection (§6) ----

// CurrentObject returns the token currently (or most recently) addressed
// by TokenPos, or nil before the first token is picked up.
func (e *Engine) CurrentObject() Token {
	if e.tokens == nil || e.State.TokenPos < 0 || e.State.TokenPos >= len(e.tokens) {
		return nil
	}
	return e.tokens[e.State.TokenPos]
}

// HasCompleted reports whether the last token has been fully processed.
func (e *Engine) HasCompleted() bool {
	return e.tokens != nil && e.State.TokenPos == len(e.tokens)-1 && e.State.CurrentObjectProcessed
}

// CurrentTaskName names the callback (or branch-operator list) addressed
// by the current CallbackPos, for logging and the DB overlay's halt
// message. Per §9's open question, when the pointer's deepest element
// names a list (an interior branch node, as IF/IF_ELSE/WHILE install) the
// name is derived from that list rather than a leaf callback name,
// matching the original implementation's behaviour.
func (e *Engine) CurrentTaskName() string {
	tok := e.CurrentObject()
	if tok == nil {
		return ""
	}
	prog, err := e.Callbacks.Get(e.chooser(tok))
	if err != nil {
		return ""
	}
	var node []ProgramNode = prog
	for _, idx := range e.State.CallbackPos {
		if idx < 0 || idx >= len(node) {
			return ""
		}
		switch v := node[idx].(type) {
		case []ProgramNode:
			node = v
		case Callback:
			return callbackName(v)
		default:
			return fmt.Sprintf("%v", v)
		}
	}
	return fmt.Sprintf("%v", node)
}

func callbackName(cb Callback) string {
	pc := reflect.ValueOf(cb).Pointer()
	if fn := runtime.FuncForPC(pc); fn != nil {
		return fn.Name()
	}
	return "callback"
}

// Duplicate returns a fresh Engine with the same hook wiring, chooser,
// logger, metrics sink and SYNCHRONIZE timeout, but an empty CallbackTree,
// fresh MachineState, and fresh ExtraData. Hook wiring is duplicated at the
// table level, not shared by pointer, so a branch engine may layer its own
// overrides without mutating the parent (§9: "hook wiring is class-level,
// not instance-level"). Used by PARALLEL_SPLIT and SYNCHRONIZE.
func (e *Engine) Duplicate() *Engine {
	dup := &Engine{
		Callbacks:   NewCallbackTree(),
		State:       NewMachineState(),
		ExtraData:   make(map[string]any),
		id:          newEngineID(),
		hooks:       e.hooks.Clone(),
		chooser:     e.chooser,
		logger:      e.logger,
		metrics:     e.metrics,
		syncTimeout: e.syncTimeout,
	}
	dup.signals = newSignalBus(dup.logger)
	return dup
}

// ---- Process / Restart (§4.3, §4.7) ----

type processConfig struct {
	stopOnError bool
	stopOnHalt  bool
	resetState  bool
	initialRun  bool
}

func defaultProcessConfig() processConfig {
	return processConfig{stopOnError: true, stopOnHalt: true, resetState: true, initialRun: true}
}

// ProcessOption configures a single Process or Restart call.
type ProcessOption func(*processConfig)

// StopOnError controls whether a WorkflowError reaching the outer loop is
// returned to the caller (true, the default) or triggers an internal
// restart from ("next", "first").
func StopOnError(v bool) ProcessOption { return func(c *processConfig) { c.stopOnError = v } }

// StopOnHalt controls whether a HaltProcessing transfer reaching the outer
// loop is returned to the caller (true, the default) or triggers an
// internal restart from ("next", "first").
func StopOnHalt(v bool) ProcessOption { return func(c *processConfig) { c.stopOnHalt = v } }

// ResetState controls whether Process resets MachineState before running.
// Restart always forces this to false regardless of what's passed.
func ResetState(v bool) ProcessOption { return func(c *processConfig) { c.resetState = v } }

// InitialRun is accepted for contract completeness with §4.3's signature;
// it sets a flag that neither the engine nor its hooks read.
func InitialRun(v bool) ProcessOption { return func(c *processConfig) { c.initialRun = v } }

// Process runs tokens to completion, halt, or abort, per §4.3. It is safe
// to call again on the same Engine after a halt to resume with
// resetState=false (equivalent to what Restart does with a no-op anchor
// pair), but Restart is the intended resumption entry point since it also
// adjusts the pointer.
func (e *Engine) Process(tokens []Token, opts ...ProcessOption) error {
	cfg := defaultProcessConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return e.run(tokens, cfg)
}

// Restart adjusts the instruction pointer relative to its current value
// per §4.7's obj_anchor/task_anchor tables and re-enters the outer loop
// without resetting state. Passing nil tokens reuses the tokens from the
// most recent Process/Restart call.
func (e *Engine) Restart(objAnchor, taskAnchor string, tokens []Token, opts ...ProcessOption) error {
	cfg := defaultProcessConfig()
	cfg.resetState = false
	for _, o := range opts {
		o(&cfg)
	}
	cfg.resetState = false

	useTokens := tokens
	if useTokens == nil {
		useTokens = e.tokens
	}
	if useTokens == nil {
		return &EngineError{Code: "NO_TOKENS", Message: "restart called with no tokens and no prior run"}
	}
	e.tokens = useTokens
	e.tokenCount = len(useTokens)
	if err := e.applyRestartAnchor(objAnchor, taskAnchor); err != nil {
		return err
	}
	return e.run(useTokens, cfg)
}

// applyRestartAnchor implements §4.7's offset tables.
func (e *Engine) applyRestartAnchor(objAnchor, taskAnchor string) error {
	switch objAnchor {
	case "prev":
		e.State.TokenPos -= 2
	case "current":
		e.State.TokenPos -= 1
	case "next":
		// no adjustment: the outer loop's own += 1 lands on the next token
	case "first":
		e.State.TokenPos = -1
	default:
		return &EngineError{Code: "UNKNOWN_ANCHOR", Message: fmt.Sprintf("unknown restart object anchor %q", objAnchor)}
	}

	if len(e.State.CallbackPos) == 0 {
		e.State.CallbackPos = []int{0}
	}
	last := len(e.State.CallbackPos) - 1
	switch taskAnchor {
	case "prev":
		e.State.CallbackPos[last]--
	case "current":
		// no adjustment
	case "next":
		e.State.CallbackPos[last]++
	case "first":
		e.State.CallbackPos = []int{0}
	default:
		return &EngineError{Code: "UNKNOWN_ANCHOR", Message: fmt.Sprintf("unknown restart task anchor %q", taskAnchor)}
	}
	return nil
}

func (e *Engine) run(tokens []Token, cfg processConfig) error {
	if tokens == nil {
		if e.logger != nil {
			e.logger.Warn("taskengine: process called with nil tokens, returning without side effects")
		}
		return nil
	}
	if e.Callbacks.Empty() {
		return &EngineError{Code: "EMPTY_PROGRAM", Message: "callback tree has no installed program"}
	}

	e.tokens = tokens
	e.tokenCount = len(tokens)
	if cfg.resetState {
		e.State.Reset()
	}

	e.hooks.Processing.BeforeProcessing(e, tokens)
	if runErr := e.runWithInternalRestarts(tokens, cfg); runErr != nil {
		return runErr
	}
	e.State.CurrentObjectProcessed = true
	e.hooks.Processing.AfterProcessing(e, tokens)
	return nil
}

// runWithInternalRestarts loops the inner token walker, honouring
// stop_on_halt/stop_on_error by either returning the terminal error or
// restarting from ("next", "first") and looping again (§4.3 step 3).
func (e *Engine) runWithInternalRestarts(tokens []Token, cfg processConfig) error {
	for {
		err := e.runInner(tokens)
		if err == nil {
			return nil
		}
		switch terr := err.(type) {
		case *HaltError:
			e.metrics.recordHalt(e.id)
			if cfg.stopOnHalt {
				return terr
			}
		case *WorkflowError:
			e.metrics.recordError(e.id)
			if cfg.stopOnError {
				return terr
			}
		default:
			return err
		}
		if rerr := e.applyRestartAnchor("next", "first"); rerr != nil {
			return rerr
		}
	}
}

// runInner is the outer token loop of §4.4: advance TokenPos, pick the
// program for the current token, delegate to the recursive walker, and
// dispatch whatever transfer climbs out of it by kind.
func (e *Engine) runInner(tokens []Token) error {
	for e.State.TokenPos < len(tokens)-1 {
		e.State.TokenPos++
		tok := tokens[e.State.TokenPos]
		e.hooks.Processing.BeforeObject(e, tokens, tok)

		key := e.chooser(tok)
		program, err := e.Callbacks.Get(key)
		if err != nil {
			return err
		}

		if len(program) > 0 {
			e.hooks.Action.BeforeCallbacks(e, tok)
			walkErr := e.runCallbacks(program, tok, 0)
			e.hooks.Action.AfterCallbacks(e, tok)
			e.metrics.recordToken(e.id)

			if walkErr != nil {
				te, ok := walkErr.(*transferErr)
				if !ok {
					return walkErr
				}
				handler, ok := e.hooks.Transitions[te.t.Kind]
				if !ok {
					return walkErr
				}
				sig, herr := handler(e, tok, te.t)
				if herr != nil {
					return herr
				}
				if sig == LoopBreak {
					e.State.CallbackPos = []int{0}
					return nil
				}
			}
		} else {
			e.hooks.Processing.AfterObject(e, tokens, tok)
		}
		e.State.CallbackPos = []int{0}
	}
	return nil
}

// runCallbacks is the recursive callback walker of §4.5: it advances
// CallbackPos at depth, recursing into nested lists and fast-forwarding
// through any resume path captured at a prior halt. Only BreakFromThisLoop
// and JumpCall are consumed here; every other transfer bubbles out as a
// *transferErr for the outer loop to dispatch.
func (e *Engine) runCallbacks(program []ProgramNode, tok Token, depth int) error {
	for e.State.CallbackPos[depth] < len(program) {
		pos := e.State.CallbackPos
		if len(pos)-1 > depth {
			nested, ok := program[pos[depth]].([]ProgramNode)
			if !ok {
				return &EngineError{Code: "CORRUPT_RESUME_PATH", Message: "resume path depth exceeds program shape"}
			}
			if err := e.runCallbacks(nested, tok, depth+1); err != nil {
				return err
			}
			e.State.CallbackPos = e.State.CallbackPos[:len(e.State.CallbackPos)-1]
			e.State.CallbackPos[depth]++
			continue
		}

		node := program[pos[depth]]
		if nested, ok := node.([]ProgramNode); ok {
			e.State.CallbackPos = append(e.State.CallbackPos, 0)
			if err := e.runCallbacks(nested, tok, depth+1); err != nil {
				return err
			}
			e.State.CallbackPos = e.State.CallbackPos[:len(e.State.CallbackPos)-1]
			e.State.CallbackPos[depth]++
			continue
		}

		cb, ok := node.(Callback)
		if !ok {
			return &EngineError{Code: "BAD_PROGRAM_NODE", Message: fmt.Sprintf("program node is neither a Callback nor []ProgramNode: %T", node)}
		}

		e.metrics.recordDepth(len(e.State.CallbackPos))
		e.hooks.Action.BeforeEachCallback(e, cb, tok)
		e.executeCallback(cb, tok)
		e.hooks.Action.AfterEachCallback(e, cb, tok)

		if tr := e.takePending(); tr != nil {
			switch tr.Kind {
			case BreakFromThisLoop:
				return nil
			case JumpCall:
				cur := e.State.CallbackPos
				newPos := cur[depth] + tr.Delta - 1
				cur[depth] = clampInt(newPos, -1, len(program))
			default:
				return asTransferErr(*tr)
			}
		}
		e.State.CallbackPos[depth]++
	}
	e.State.CallbackPos[depth]--
	return nil
}

// executeCallback invokes a single leaf callback, recovering any panic into
// a pending exception transfer so that "programming error in user code"
// flows through the same dispatch path as every other transfer (§7).
func (e *Engine) executeCallback(cb Callback, tok Token) {
	start := time.Now()
	defer func() {
		status := "ok"
		if r := recover(); r != nil {
			if e.pending == nil {
				tr := exceptionTransfer(r)
				e.pending = &tr
			}
			status = "error"
		} else if e.pending != nil {
			status = "transfer"
		}
		e.metrics.recordCallback(e.id, status, time.Since(start))
	}()
	cb(tok, e)
}
