package segment

import (
	"strings"
	"sync"
)

// Assembler collects the fragments an engine finalizes and joins them into a
// single hypothesis. It implements stt.Callback.
type Assembler struct {
	lc *Lifecycle

	mu        sync.Mutex
	fragments []string
	err       error
}

// NewAssembler creates an assembler for one analysis.
func NewAssembler(analysisID string) *Assembler {
	return &Assembler{lc: NewLifecycle(analysisID)}
}

// OnSegment records a segment finalized mid-stream.
func (a *Assembler) OnSegment(text string) {
	if a.lc.AddSegment() != nil {
		return
	}
	a.add(text)
}

// OnFinal records the trailing hypothesis and closes the transcript.
func (a *Assembler) OnFinal(text string) {
	if a.lc.EmitFinal() != nil {
		return
	}
	a.add(text)
	a.lc.Close()
}

// OnError drops the transcript.
func (a *Assembler) OnError(err error) {
	a.mu.Lock()
	if a.err == nil {
		a.err = err
	}
	a.mu.Unlock()
	a.lc.Drop()
}

func (a *Assembler) add(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	a.mu.Lock()
	a.fragments = append(a.fragments, text)
	a.mu.Unlock()
}

// Text joins all recorded fragments with single spaces.
func (a *Assembler) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.Join(a.fragments, " ")
}

// Err returns the first engine error, if any.
func (a *Assembler) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// State returns the transcript lifecycle state.
func (a *Assembler) State() State {
	return a.lc.State()
}
