package model

import "testing"

func TestVMState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    VMState
		terminal bool
	}{
		{VMStateRequested, false},
		{VMStateRunning, false},
		{VMStateEnded, true},
	}
	for _, tt := range tests {
		if got := tt.state.IsTerminal(); got != tt.terminal {
			t.Errorf("VMState(%q).IsTerminal() = %v, want %v", tt.state, got, tt.terminal)
		}
	}
}

func TestVMState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from  VMState
		to    VMState
		valid bool
	}{
		{VMStateRequested, VMStateRunning, true},
		{VMStateRequested, VMStateEnded, true},
		{VMStateRunning, VMStateEnded, true},

		{VMStateRunning, VMStateRequested, false},
		{VMStateEnded, VMStateRunning, false},
		{VMStateEnded, VMStateRequested, false},
		{VMStateRequested, VMStateRequested, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.valid {
			t.Errorf("%s → %s: got %v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}

func TestVMState_Valid(t *testing.T) {
	for _, s := range []VMState{VMStateRequested, VMStateRunning, VMStateEnded} {
		if !s.Valid() {
			t.Errorf("VMState(%q).Valid() = false, want true", s)
		}
	}
	if VMState("BOOTING").Valid() {
		t.Errorf("VMState(%q).Valid() = true, want false", "BOOTING")
	}
}
