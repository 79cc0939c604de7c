//go:build vosk

package vosk

import (
	"context"
	"fmt"
	"os"

	vosk "github.com/alphacep/vosk-api/go"

	"speech-rehab-service/internal/service/stt"
)

func init() {
	vosk.SetLogLevel(-1)
}

// Available reports whether the binary was built with Vosk support.
const Available = true

// Engine is a loaded Vosk model for one language. A recognizer is created per
// Recognize call so concurrent analyses do not share decoder state.
type Engine struct {
	model    *modelRef[*vosk.VoskModel]
	language string
	path     string
}

// Load reads the model at path. It matches the stt.Loader signature.
func Load(_ context.Context, language, path string) (stt.Engine, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("vosk model %s: %w", path, err)
	}
	model, err := vosk.NewModel(path)
	if err != nil {
		return nil, fmt.Errorf("load vosk model %s: %w", path, err)
	}
	return &Engine{model: newModelRef(model), language: language, path: path}, nil
}

func (e *Engine) Name() string     { return Name }
func (e *Engine) Language() string { return e.language }

// Recognize feeds pcm through a fresh recognizer. Every segment Vosk
// finalizes is reported through OnSegment, the trailing result through OnFinal.
func (e *Engine) Recognize(ctx context.Context, pcm []byte, sampleRate, chunkSamples int, cb stt.Callback) error {
	if chunkSamples <= 0 {
		chunkSamples = stt.DefaultChunkSamples
	}
	return e.model.with(func(model *vosk.VoskModel) error {
		rec, err := vosk.NewRecognizer(model, float64(sampleRate))
		if err != nil {
			cb.OnError(err)
			return fmt.Errorf("create vosk recognizer: %w", err)
		}
		defer rec.Free()

		chunk := chunkSamples * 2
		for off := 0; off < len(pcm); off += chunk {
			if err := ctx.Err(); err != nil {
				cb.OnError(err)
				return err
			}
			end := min(off+chunk, len(pcm))
			if rec.AcceptWaveform(pcm[off:end]) != 0 {
				if text := parseText(rec.Result()); text != "" {
					cb.OnSegment(text)
				}
			}
		}

		cb.OnFinal(parseText(rec.FinalResult()))
		return nil
	})
}

// Close frees the model after in-flight recognitions finish.
func (e *Engine) Close() error {
	e.model.release(func(m *vosk.VoskModel) { m.Free() })
	return nil
}
