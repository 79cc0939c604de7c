// Package stt defines the interface for speech-to-text engines.
package stt

import (
	"context"
	"errors"
)

// ErrEngineUnavailable is returned when no engine can serve a language.
var ErrEngineUnavailable = errors.New("recognition engine unavailable")

// DefaultChunkSamples is the number of samples fed to an engine per call.
const DefaultChunkSamples = 4000

// Callback receives recognition results as the engine finalizes them.
type Callback interface {
	// OnSegment is called for every segment the engine finalizes mid-stream.
	OnSegment(text string)

	// OnFinal is called once with the engine's trailing hypothesis.
	OnFinal(text string)

	// OnError is called when the engine fails.
	OnError(err error)
}

// Engine is a loaded recognizer for one language (Vosk, Google, etc.).
type Engine interface {
	// Name identifies the engine family, e.g. "vosk".
	Name() string

	// Language is the tag the engine was loaded for.
	Language() string

	// Recognize streams mono 16-bit little-endian PCM through the engine in
	// chunks of chunkSamples samples and reports results on cb.
	Recognize(ctx context.Context, pcm []byte, sampleRate, chunkSamples int, cb Callback) error

	// Close releases the engine.
	Close() error
}

// Loader constructs an engine for a language from a model location.
type Loader func(ctx context.Context, language, path string) (Engine, error)

// Status describes how a recognition attempt ended.
type Status string

const (
	StatusOK              Status = "ok"
	StatusNoSpeech        Status = "no_speech"
	StatusFailed          Status = "failed"
	StatusAudioUnreadable Status = "audio_unreadable"
)

// EngineSimulated tags results produced without a real engine.
const EngineSimulated = "simulated"

// Result is the outcome of one recognition.
type Result struct {
	Text   string
	Status Status
	Engine string
}

// OK reports whether Text is a real hypothesis rather than a sentinel.
func (r Result) OK() bool {
	return r.Status == StatusOK
}
