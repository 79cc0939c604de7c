// Package registry holds the recognition engines loaded at startup, keyed by
// language tag, and the active-language selector.
package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/hashicorp/go-multierror"

	"speech-rehab-service/internal/observability/logging"
	"speech-rehab-service/internal/observability/metrics"
	"speech-rehab-service/internal/service/stt"
)

// ErrUnsupportedLanguage is returned when switching to a language that has no
// loaded engine.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// DefaultPreference is the order used to pick the startup language.
var DefaultPreference = []string{"zh-CN", "en-US"}

// Registry maps language tags to engines. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]stt.Engine
	order   []string
	active  string
	metrics *metrics.Metrics
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		engines: make(map[string]stt.Engine),
		metrics: metrics.DefaultMetrics,
	}
}

// Load tries each candidate path in order and registers the first engine the
// loader builds. Missing paths and loader failures are logged and skipped.
// It reports whether an engine for language is loaded afterwards.
func (r *Registry) Load(ctx context.Context, language string, candidates []string, loader stt.Loader) bool {
	logger := logging.WithComponent("registry")

	if _, ok := r.Engine(language); ok {
		logger.Debug().Str("language", language).Msg("Engine already loaded, skipping")
		return true
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			logger.Debug().Str("language", language).Str("path", path).Msg("Model path not found")
			continue
		}

		engine, err := loader(ctx, language, path)
		if err != nil {
			logger.Warn().Err(err).Str("language", language).Str("path", path).Msg("Failed to load engine")
			r.metrics.RecordEngineLoad(language, false)
			continue
		}

		r.Register(engine)
		r.metrics.RecordEngineLoad(language, true)
		logger.Info().
			Str("language", language).
			Str("path", path).
			Str("engine", engine.Name()).
			Msg("Engine loaded")
		return true
	}

	logger.Warn().
		Str("language", language).
		Strs("candidates", candidates).
		Msg("No engine loaded, language will use simulated recognition")
	return false
}

// Register installs an engine under its language. An engine already loaded
// for that language is kept and the new one is closed.
func (r *Registry) Register(engine stt.Engine) {
	r.mu.Lock()
	lang := engine.Language()
	if _, exists := r.engines[lang]; exists {
		r.mu.Unlock()
		_ = engine.Close()
		return
	}
	r.engines[lang] = engine
	r.order = append(r.order, lang)
	n := len(r.engines)
	r.mu.Unlock()

	r.metrics.SetEnginesLoaded(n)
}

// SetActive switches the active language. It fails with
// ErrUnsupportedLanguage if no engine is loaded for language, leaving the
// previous selection unchanged.
func (r *Registry) SetActive(language string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.engines[language]; !ok {
		r.metrics.RecordLanguageSwitch(false)
		return fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}
	r.active = language
	r.metrics.RecordLanguageSwitch(true)
	return nil
}

// SelectDefault makes the first loaded language of preference active. With
// no match the registry stays without an active language.
func (r *Registry) SelectDefault(preference ...string) string {
	if len(preference) == 0 {
		preference = DefaultPreference
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, lang := range preference {
		if _, ok := r.engines[lang]; ok {
			r.active = lang
			return lang
		}
	}
	r.active = ""
	return ""
}

// Active returns a consistent snapshot of the active language and its engine.
func (r *Registry) Active() (string, stt.Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	engine, ok := r.engines[r.active]
	return r.active, engine, ok
}

// ActiveLanguage returns the active language tag, or "" in fallback mode.
func (r *Registry) ActiveLanguage() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Engine returns the engine loaded for language.
func (r *Registry) Engine(language string) (stt.Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	engine, ok := r.engines[language]
	return engine, ok
}

// AvailableLanguages returns the loaded language tags in load order.
func (r *Registry) AvailableLanguages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Close releases every engine and empties the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	engines := r.engines
	order := r.order
	r.engines = make(map[string]stt.Engine)
	r.order = nil
	r.active = ""
	r.mu.Unlock()

	var result *multierror.Error
	for _, lang := range order {
		if err := engines[lang].Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close %s engine: %w", lang, err))
		}
	}
	r.metrics.SetEnginesLoaded(0)
	return result.ErrorOrNil()
}
