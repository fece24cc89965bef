package model

// VMState represents the lifecycle state of a VM.
type VMState string

const (
	VMStateRequested VMState = "REQUESTED"
	VMStateRunning   VMState = "RUNNING"
	VMStateEnded     VMState = "ENDED"
)

// String returns the string representation of the VM state.
func (s VMState) String() string {
	return string(s)
}

// IsTerminal returns true if the VM is in a final state.
func (s VMState) IsTerminal() bool {
	return s == VMStateEnded
}

// Valid reports whether s is a known VM state.
func (s VMState) Valid() bool {
	switch s {
	case VMStateRequested, VMStateRunning, VMStateEnded:
		return true
	}
	return false
}

// ValidVMTransitions defines the allowed state transitions for VMs.
// A requested VM may be ended before the gateway reports it running.
var ValidVMTransitions = map[VMState][]VMState{
	VMStateRequested: {VMStateRunning, VMStateEnded},
	VMStateRunning:   {VMStateEnded},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s VMState) CanTransitionTo(next VMState) bool {
	for _, allowed := range ValidVMTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
