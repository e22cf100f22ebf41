package taskengine

import (
	"fmt"
	"sync"
)

// DefaultKey is the CallbackTree key used when a token's feature lookup
// names no program. A lookup that names a key with nothing installed under
// it makes Process fail with an "UNKNOWN_KEY" *EngineError.
const DefaultKey = "*"

// Callback is a single node in a program: a function invoked with the
// current token and the engine driving it. A callback changes control flow
// only by calling one of the engine's transfer methods (ContinueNextToken,
// Stop, Halt, Abort, SkipToken, BreakLoop, JumpToken, JumpCall) before
// returning; an ordinary return means "fall through to the next callback".
type Callback func(tok Token, eng *Engine)

// ProgramNode is either a Callback leaf or a nested, addressable
// []ProgramNode list. Programs are built with Seq (a list: stays nested,
// addressable by callback_pos) and Splice (a tuple: flattened into its
// parent at install time, never independently addressable). A plain
// func(Token, *Engine) leaf is converted to Callback by Flatten; any other
// dynamic type is kept by Flatten and rejected by the walker with a
// "BAD_PROGRAM_NODE" *EngineError when it is reached.
type ProgramNode any

// Seq marks a sub-sequence that remains nested after flattening — an
// addressable frame the callback_pos path can point into (loop bodies,
// branch arms, ...).
type Seq []ProgramNode

// Splice marks a sub-sequence that is spliced into its parent position at
// install time and never independently addressable. Combinators use Splice
// to assemble several fixed-size pieces (a gate callback plus a branch)
// without introducing an extra addressable nesting level.
type Splice []ProgramNode

// Flatten applies the program's load-bearing flattening rule: Splice nodes
// recursively splice their contents into the parent in place; Seq nodes
// (and bare []ProgramNode, treated identically) remain nested one level and
// are themselves flattened; nil leaves are dropped. The result is the
// canonical, addressable form described in §9: all remaining nesting is
// via plain []ProgramNode, and every element is either a Callback or such a
// nested list. Flatten must run once at install time; it is not reapplied
// by the walker.
func Flatten(nodes []ProgramNode) []ProgramNode {
	out := make([]ProgramNode, 0, len(nodes))
	for _, n := range nodes {
		switch v := n.(type) {
		case nil:
			continue
		case Splice:
			out = append(out, Flatten([]ProgramNode(v))...)
		case Seq:
			out = append(out, Flatten([]ProgramNode(v)))
		case []ProgramNode:
			out = append(out, Flatten(v))
		case Callback:
			out = append(out, v)
		case func(Token, *Engine):
			out = append(out, Callback(v))
		default:
			out = append(out, v)
		}
	}
	return out
}

// CallbackTree is a keyed collection of installed programs. The default key
// "*" is used when a token's feature lookup names nothing more specific.
type CallbackTree struct {
	mu       sync.RWMutex
	programs map[string][]ProgramNode
}

// NewCallbackTree returns an empty tree.
func NewCallbackTree() *CallbackTree {
	return &CallbackTree{programs: make(map[string][]ProgramNode)}
}

func normalizeKey(key string) string {
	if key == "" {
		return DefaultKey
	}
	return key
}

// Get returns the flattened program installed under key, or an *EngineError
// with code "UNKNOWN_KEY" naming the key if nothing was installed there.
func (t *CallbackTree) Get(key string) ([]ProgramNode, error) {
	key = normalizeKey(key)
	t.mu.RLock()
	defer t.mu.RUnlock()
	prog, ok := t.programs[key]
	if !ok {
		return nil, &EngineError{Code: "UNKNOWN_KEY", Message: fmt.Sprintf("unknown callback key %q", key)}
	}
	return prog, nil
}

// Add appends a single callback to the program installed under key.
func (t *CallbackTree) Add(cb Callback, key string) {
	key = normalizeKey(key)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.programs[key] = append(t.programs[key], cb)
}

// AddMany flattens seq and appends it to the program installed under key.
func (t *CallbackTree) AddMany(seq []ProgramNode, key string) {
	key = normalizeKey(key)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.programs[key] = append(t.programs[key], Flatten(seq)...)
}

// Replace flattens seq and installs it under key, discarding whatever was
// there before.
func (t *CallbackTree) Replace(seq []ProgramNode, key string) {
	key = normalizeKey(key)
	flat := Flatten(seq)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.programs[key] = flat
}

// SetWorkflow installs seq as the default ("*") program.
func (t *CallbackTree) SetWorkflow(seq []ProgramNode) {
	t.Replace(seq, DefaultKey)
}

// Clear removes the program installed under key.
func (t *CallbackTree) Clear(key string) {
	key = normalizeKey(key)
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.programs, key)
}

// ClearAll removes every installed program.
func (t *CallbackTree) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.programs = make(map[string][]ProgramNode)
}

// Empty reports whether the tree has no installed programs, or only
// installed programs with zero callbacks.
func (t *CallbackTree) Empty() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, prog := range t.programs {
		if len(prog) > 0 {
			return false
		}
	}
	return true
}
