package taskengine

// MachineState is the engine's two-dimensional, serializable instruction
// pointer: which token is current, and how deep and at which offsets the
// recursive callback walker has descended into that token's program.
//
// Invariants:
//   - TokenPos >= -1, with -1 meaning "no token processed yet".
//   - CallbackPos is never empty; element i is the index at nesting depth i.
//   - On a clean restart, CallbackPos == []int{0}.
//   - On a halt, CallbackPos addresses the callback that halted.
//   - On completion, TokenPos == len(tokens)-1 && CurrentObjectProcessed.
type MachineState struct {
	TokenPos               int    `json:"token_pos"`
	CallbackPos            []int  `json:"callback_pos"`
	CurrentObjectProcessed bool   `json:"current_object_processed"`
}

// NewMachineState returns a fresh instruction pointer at its initial value.
func NewMachineState() *MachineState {
	return &MachineState{TokenPos: -1, CallbackPos: []int{0}}
}

// Reset returns the state to its initial value, discarding any resume path.
func (s *MachineState) Reset() {
	s.TokenPos = -1
	s.CallbackPos = []int{0}
	s.CurrentObjectProcessed = false
}

// Clone deep-copies the state, for use by combinators that duplicate an
// engine (PARALLEL_SPLIT, SYNCHRONIZE, RUN_WF) without sharing a pointer
// path with the original.
func (s *MachineState) Clone() *MachineState {
	cp := make([]int, len(s.CallbackPos))
	copy(cp, s.CallbackPos)
	return &MachineState{
		TokenPos:               s.TokenPos,
		CallbackPos:            cp,
		CurrentObjectProcessed: s.CurrentObjectProcessed,
	}
}
