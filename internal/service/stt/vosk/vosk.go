// Package vosk provides an offline speech-to-text engine backed by Kaldi
// models through the Vosk library.
//
// The cgo binding is only compiled with the "vosk" build tag. Without it Load
// reports stt.ErrEngineUnavailable and the service runs in simulated mode.
package vosk

import (
	"encoding/json"
	"strings"
	"sync"

	"speech-rehab-service/internal/service/stt"
)

// Name is the engine tag reported in analysis results.
const Name = "vosk"

type voskResult struct {
	Text string `json:"text"`
}

// parseText extracts the hypothesis from a Vosk JSON result.
func parseText(raw string) string {
	var res voskResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return ""
	}
	return strings.TrimSpace(res.Text)
}

// modelRef guards a native model. Recognitions share it under a read lock;
// release waits for them before freeing.
type modelRef[M any] struct {
	mu     sync.RWMutex
	model  M
	loaded bool
}

func newModelRef[M any](model M) *modelRef[M] {
	return &modelRef[M]{model: model, loaded: true}
}

// with runs fn while the model cannot be freed.
func (r *modelRef[M]) with(fn func(M) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.loaded {
		return stt.ErrEngineUnavailable
	}
	return fn(r.model)
}

// release frees the model once no recognition holds it. Later calls are no-ops.
func (r *modelRef[M]) release(free func(M)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded {
		return
	}
	free(r.model)
	var zero M
	r.model, r.loaded = zero, false
}
