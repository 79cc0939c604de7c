// Package stttest provides a scripted stt.Engine for tests.
package stttest

import (
	"context"
	"sync"

	"speech-rehab-service/internal/service/stt"
)

// Engine replays Segments and Final on every Recognize call, or fails with Err.
type Engine struct {
	EngineName string
	Lang       string
	Segments   []string
	Final      string
	Err        error
	CloseErr   error

	mu     sync.Mutex
	calls  int
	chunks int
	closed int
}

var _ stt.Engine = (*Engine)(nil)

// New returns an engine for language named "fake".
func New(language string) *Engine {
	return &Engine{EngineName: "fake", Lang: language}
}

func (e *Engine) Name() string     { return e.EngineName }
func (e *Engine) Language() string { return e.Lang }

func (e *Engine) Recognize(ctx context.Context, pcm []byte, _ int, chunkSamples int, cb stt.Callback) error {
	e.mu.Lock()
	e.calls++
	if chunkSamples > 0 {
		e.chunks += (len(pcm) + chunkSamples*2 - 1) / (chunkSamples * 2)
	}
	e.mu.Unlock()

	if e.Err != nil {
		cb.OnError(e.Err)
		return e.Err
	}
	for _, s := range e.Segments {
		cb.OnSegment(s)
	}
	cb.OnFinal(e.Final)
	return nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed++
	return e.CloseErr
}

// Calls returns the number of Recognize calls.
func (e *Engine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Chunks returns the number of PCM chunks the engine would have consumed.
func (e *Engine) Chunks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chunks
}

// Closed returns the number of Close calls.
func (e *Engine) Closed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
