package taskengine

import "testing"

func TestNewMachineState(t *testing.T) {
	s := NewMachineState()
	if s.TokenPos != -1 {
		t.Errorf("TokenPos = %d, want -1", s.TokenPos)
	}
	if len(s.CallbackPos) != 1 || s.CallbackPos[0] != 0 {
		t.Errorf("CallbackPos = %v, want [0]", s.CallbackPos)
	}
	if s.CurrentObjectProcessed {
		t.Error("CurrentObjectProcessed should start false")
	}
}

func TestMachineStateReset(t *testing.T) {
	s := &MachineState{TokenPos: 4, CallbackPos: []int{1, 2, 3}, CurrentObjectProcessed: true}
	s.Reset()
	if s.TokenPos != -1 || len(s.CallbackPos) != 1 || s.CallbackPos[0] != 0 || s.CurrentObjectProcessed {
		t.Errorf("Reset did not restore initial value: %+v", s)
	}
}

func TestMachineStateCloneIsIndependent(t *testing.T) {
	s := &MachineState{TokenPos: 2, CallbackPos: []int{1, 2}, CurrentObjectProcessed: true}
	clone := s.Clone()

	clone.CallbackPos[0] = 99
	clone.TokenPos = 50

	if s.CallbackPos[0] == 99 {
		t.Error("Clone must deep-copy CallbackPos, not alias the original slice")
	}
	if s.TokenPos == 50 {
		t.Error("Clone must not alias the original state")
	}
	if clone.CurrentObjectProcessed != s.CurrentObjectProcessed {
		t.Error("Clone should start with identical scalar fields")
	}
}
