package bridge

import (
	"fmt"
	"sync"
)

// State is the position of a run in the submit/wait/fetch/materialize flow.
type State string

const (
	StateIdle          State = "idle"
	StateSubmitted     State = "submitted"
	StateWaiting       State = "waiting"
	StateFetching      State = "fetching"
	StateMaterializing State = "materializing"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

var nextState = map[State]State{
	StateIdle:          StateSubmitted,
	StateSubmitted:     StateWaiting,
	StateWaiting:       StateFetching,
	StateFetching:      StateMaterializing,
	StateMaterializing: StateDone,
}

func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition reports whether a run in s may move to next.
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	return nextState[s] == next
}

// Observer is notified after every state change of a run.
type Observer func(run *Run, from, to State)

// Run tracks one request through the bridge.
type Run struct {
	ClientID string

	mu       sync.Mutex
	promptID string
	state    State
	history  []State
	err      error
	observer Observer
}

func newRun(clientID string, observer Observer) *Run {
	return &Run{
		ClientID: clientID,
		state:    StateIdle,
		history:  []State{StateIdle},
		observer: observer,
	}
}

func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Run) PromptID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.promptID
}

// History returns every state the run has been in, oldest first.
func (r *Run) History() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.history...)
}

// Err returns the error that moved the run to StateFailed.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Run) setPromptID(id string) {
	r.mu.Lock()
	r.promptID = id
	r.mu.Unlock()
}

func (r *Run) advance(to State) error {
	r.mu.Lock()
	from := r.state
	if !from.CanTransition(to) {
		r.mu.Unlock()
		return newError(KindInternal, "transition", fmt.Errorf("invalid transition %s -> %s", from, to))
	}
	r.state = to
	r.history = append(r.history, to)
	observer := r.observer
	r.mu.Unlock()

	if observer != nil {
		observer(r, from, to)
	}
	return nil
}

func (r *Run) fail(err error) {
	r.mu.Lock()
	if r.state.Terminal() {
		r.mu.Unlock()
		return
	}
	r.err = err
	r.mu.Unlock()
	_ = r.advance(StateFailed)
}
