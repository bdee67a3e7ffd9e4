package intake

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// State is the caller-visible progress of a submission.
type State string

const (
	StateIdle       State = "idle"
	StateUploading  State = "uploading"
	StatePersisting State = "persisting"
	StateSuccess    State = "success"
	StateError      State = "error"
)

// Flow drives one submission at a time and exposes its state. State moves
// only when an awaited collaborator call completes:
//
//	idle -> uploading -> persisting -> success
//	          \______________\-------> error
//
// A second Submit while one is running fails with ErrSubmitInProgress.
// Reset returns a finished flow to idle; clearing the form afterwards is
// up to the caller.
type Flow struct {
	svc *Service

	mu      sync.Mutex
	busy    bool
	state   State
	lastID  uuid.UUID
	lastErr error
	onState func(State)
}

// NewFlow returns an idle flow. onState, if non-nil, is called on every
// transition, outside the flow's lock.
func NewFlow(svc *Service, onState func(State)) *Flow {
	return &Flow{svc: svc, state: StateIdle, onState: onState}
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Submitting reports whether a submission is in flight.
func (f *Flow) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

// Result returns the id and error of the last finished submission.
func (f *Flow) Result() (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastID, f.lastErr
}

// Submit runs the submission. A finished flow may be reused without Reset.
func (f *Flow) Submit(ctx context.Context, form Form, artifact *Artifact) (uuid.UUID, error) {
	f.mu.Lock()
	if f.busy {
		f.mu.Unlock()
		return uuid.Nil, ErrSubmitInProgress
	}
	f.busy = true
	f.mu.Unlock()

	sub, err := f.svc.submit(ctx, form, artifact, func(p Phase) {
		switch p {
		case PhaseUploading:
			f.transition(StateUploading)
		case PhasePersisting:
			f.transition(StatePersisting)
		}
	})

	if err != nil {
		f.finish(StateError, uuid.Nil, err)
		return uuid.Nil, err
	}
	f.finish(StateSuccess, sub.ID, nil)
	return sub.ID, nil
}

// Reset moves a finished flow back to idle. It reports false while a
// submission is in flight.
func (f *Flow) Reset() bool {
	f.mu.Lock()
	if f.busy {
		f.mu.Unlock()
		return false
	}
	changed := f.state != StateIdle
	f.state = StateIdle
	f.lastID, f.lastErr = uuid.Nil, nil
	f.mu.Unlock()

	if changed && f.onState != nil {
		f.onState(StateIdle)
	}
	return true
}

func (f *Flow) transition(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
	if f.onState != nil {
		f.onState(s)
	}
}

func (f *Flow) finish(s State, id uuid.UUID, err error) {
	f.mu.Lock()
	f.state = s
	f.lastID, f.lastErr = id, err
	f.busy = false
	f.mu.Unlock()
	if f.onState != nil {
		f.onState(s)
	}
}
