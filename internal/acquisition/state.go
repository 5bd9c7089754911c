package acquisition

import (
	"fmt"
)

type State string

const (
	StateIdle       State = "idle"
	StateAttempting State = "attempting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateRetrying   State = "retrying"
	StateDone       State = "done"
)

var transitions = map[State][]State{
	StateIdle:       {StateAttempting},
	StateAttempting: {StateSucceeded, StateFailed, StateRetrying},
	StateRetrying:   {StateAttempting, StateFailed},
	StateSucceeded:  {StateDone},
	StateFailed:     {StateDone},
}

// machine: состояние одного вызова Pull. Каждый переход уходит в sink.
type machine struct {
	state    State
	sourceID string
	sink     Sink
}

func newMachine(sourceID string, sink Sink) *machine {
	return &machine{state: StateIdle, sourceID: sourceID, sink: sink}
}

func (m *machine) to(next State, attempt int, message string) error {
	if !canTransition(m.state, next) {
		return fmt.Errorf("illegal transition %s -> %s", m.state, next)
	}
	m.state = next
	m.sink.Emit(Event{
		Type:     EventState,
		SourceID: m.sourceID,
		Attempt:  attempt,
		State:    next,
		Message:  message,
	})
	return nil
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
