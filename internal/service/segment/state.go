// Package segment assembles recognition transcripts and issues analysis IDs.
package segment

import (
	"errors"
	"fmt"
	"sync"
)

// State is the lifecycle state of one recognition transcript.
type State int

const (
	// StateOpen accepts finalized segments.
	StateOpen State = iota
	// StateFinalEmitted means the engine's trailing hypothesis was recorded.
	StateFinalEmitted
	// StateClosed is the normal terminal state.
	StateClosed
	// StateDropped means the engine failed; the transcript must not be used.
	StateDropped
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateFinalEmitted:
		return "FINAL_EMITTED"
	case StateClosed:
		return "CLOSED"
	case StateDropped:
		return "DROPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true for CLOSED and DROPPED.
func (s State) IsTerminal() bool {
	return s == StateClosed || s == StateDropped
}

var (
	ErrTranscriptClosed    = errors.New("transcript is closed")
	ErrFinalAlreadyEmitted = errors.New("final already emitted for this transcript")
	ErrSegmentAfterFinal   = errors.New("cannot add segment after final")
)

// Lifecycle guards the order of engine callbacks for one analysis:
//
//	OPEN --AddSegment()*--> OPEN --EmitFinal()--> FINAL_EMITTED --Close()--> CLOSED
//	  \___________________ Drop() ____________________/
//
// Safe for concurrent use.
type Lifecycle struct {
	mu    sync.RWMutex
	id    string
	state State
}

// NewLifecycle creates a lifecycle in OPEN state.
func NewLifecycle(id string) *Lifecycle {
	return &Lifecycle{id: id, state: StateOpen}
}

// ID returns the analysis ID the lifecycle belongs to.
func (l *Lifecycle) ID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.id
}

func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func (l *Lifecycle) IsDropped() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateDropped
}

// AddSegment reports whether a finalized segment may still be recorded.
func (l *Lifecycle) AddSegment() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateOpen:
		return nil
	case StateFinalEmitted:
		return ErrSegmentAfterFinal
	case StateClosed, StateDropped:
		return ErrTranscriptClosed
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// EmitFinal moves OPEN to FINAL_EMITTED. It succeeds once.
func (l *Lifecycle) EmitFinal() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateOpen:
		l.state = StateFinalEmitted
		return nil
	case StateFinalEmitted:
		return ErrFinalAlreadyEmitted
	case StateClosed, StateDropped:
		return ErrTranscriptClosed
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// Close moves to CLOSED unless the transcript was dropped. Idempotent.
func (l *Lifecycle) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateDropped {
		l.state = StateClosed
	}
}

// Drop abandons the transcript after an engine error. It returns false if
// the lifecycle was already terminal.
func (l *Lifecycle) Drop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = StateDropped
	return true
}
