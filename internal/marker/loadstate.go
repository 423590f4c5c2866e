package marker

import "fmt"

// LoadPhase is the coarse state of pending geocode requests.
type LoadPhase int

const (
	Idle LoadPhase = iota
	Loading
)

func (p LoadPhase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	default:
		return fmt.Sprintf("LoadPhase(%d)", int(p))
	}
}

// LoadState is the state machine {Idle, Loading(n)} that gates viewport
// recomputation. Start moves Idle to Loading(1) and Loading(n) to
// Loading(n+1); Settle moves Loading(1) to Idle and Loading(n) to
// Loading(n-1). The zero value is Idle.
type LoadState struct {
	pending int
}

// Phase returns Idle when no requests are in flight.
func (s LoadState) Phase() LoadPhase {
	if s.pending == 0 {
		return Idle
	}
	return Loading
}

// Pending returns n for Loading(n) and 0 for Idle.
func (s LoadState) Pending() int { return s.pending }

// Start records a newly issued request.
func (s LoadState) Start() LoadState {
	return LoadState{pending: s.pending + 1}
}

// Settle records a finished request. Settling while Idle is invalid: the
// state is returned unchanged with ok=false.
func (s LoadState) Settle() (next LoadState, ok bool) {
	if s.pending == 0 {
		return s, false
	}
	return LoadState{pending: s.pending - 1}, true
}

func (s LoadState) String() string {
	if s.pending == 0 {
		return Idle.String()
	}
	return fmt.Sprintf("%s(%d)", Loading, s.pending)
}
