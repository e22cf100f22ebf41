// Package emit provides pluggable observability sinks for the engine's
// best-effort signal bus, adapted from the observer package's
// Instruments/ObservedProvider wrapping pattern and retargeted from
// request/response vocabulary to token/callback vocabulary.
package emit

// Event is a single observability record derived from an engine signal
// (workflow_started, workflow_halted, workflow_error, workflow_finished) or
// from a combinator that chooses to report through an Emitter directly.
type Event struct {
	// WorkflowID identifies the engine run that produced this event.
	WorkflowID string

	// TokenIndex is the token_pos at the time of the event, or -1 for
	// run-level events that precede the first token.
	TokenIndex int

	// CallbackName names the callback active at the time of the event, or
	// empty for run-level events.
	CallbackName string

	// Signal is the event kind: one of the SignalWorkflow* constants, or a
	// combinator-specific name.
	Signal string

	// Meta carries event-specific structured data (e.g. {"message": ...}
	// for workflow_halted).
	Meta map[string]any
}
