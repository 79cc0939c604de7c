//go:build !vosk

package vosk

import (
	"context"
	"fmt"

	"speech-rehab-service/internal/service/stt"
)

// Available reports whether the binary was built with Vosk support.
const Available = false

// Load always fails: this binary was built without the vosk tag.
func Load(_ context.Context, language, path string) (stt.Engine, error) {
	return nil, fmt.Errorf("%w: built without vosk support (language %s, model %s)",
		stt.ErrEngineUnavailable, language, path)
}
