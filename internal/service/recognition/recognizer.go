// Package recognition turns normalized audio into a hypothesis, using the
// engine loaded for the language or the simulator when there is none.
package recognition

import (
	"context"
	"time"

	"speech-rehab-service/internal/i18n"
	"speech-rehab-service/internal/observability/logging"
	"speech-rehab-service/internal/observability/metrics"
	"speech-rehab-service/internal/service/audio"
	"speech-rehab-service/internal/service/registry"
	"speech-rehab-service/internal/service/segment"
	"speech-rehab-service/internal/service/stt"
	"speech-rehab-service/internal/service/stt/simulated"
)

// Recognizer dispatches recognition to the registry's engines.
type Recognizer struct {
	registry     *registry.Registry
	simulator    *simulated.Simulator
	catalog      *i18n.Catalog
	chunkSamples int
	metrics      *metrics.Metrics
}

// New creates a recognizer. A nil catalog uses i18n.Default() and a
// non-positive chunk size uses stt.DefaultChunkSamples.
func New(reg *registry.Registry, sim *simulated.Simulator, catalog *i18n.Catalog, chunkSamples int) *Recognizer {
	if catalog == nil {
		catalog = i18n.Default()
	}
	if chunkSamples <= 0 {
		chunkSamples = stt.DefaultChunkSamples
	}
	if sim == nil {
		sim = simulated.New(simulated.DefaultAccuracy, 0)
	}
	return &Recognizer{
		registry:     reg,
		simulator:    sim,
		catalog:      catalog,
		chunkSamples: chunkSamples,
		metrics:      metrics.DefaultMetrics,
	}
}

// Recognize produces a hypothesis for audio in language. It never fails:
// problems are reported through Result.Status with a localized sentinel as
// the text.
func (r *Recognizer) Recognize(ctx context.Context, analysisID string, a audio.Normalized, language, reference string) stt.Result {
	start := time.Now()

	var res stt.Result
	if engine, ok := r.registry.Engine(language); ok {
		res = r.withEngine(ctx, analysisID, engine, a, language)
	} else {
		res = r.simulate(a, language, reference)
	}

	r.metrics.RecordRecognition(res.Engine, string(res.Status), time.Since(start).Seconds())
	return res
}

func (r *Recognizer) withEngine(ctx context.Context, analysisID string, engine stt.Engine, a audio.Normalized, language string) stt.Result {
	log := logging.WithEngine(analysisID, language, engine.Name())

	if !a.HasSamples() {
		log.Warn().Err(a.Err).Msg("No decodable audio for engine recognition")
		return r.sentinel(stt.StatusAudioUnreadable, engine.Name(), language)
	}

	asm := segment.NewAssembler(analysisID)
	err := engine.Recognize(ctx, a.PCM16LE(), a.SampleRate, r.chunkSamples, asm)
	if err == nil {
		err = asm.Err()
	}
	if err != nil {
		log.Error().Err(err).Msg("Engine recognition failed")
		r.metrics.RecordSTTError(engine.Name(), "recognize")
		return r.sentinel(stt.StatusFailed, engine.Name(), language)
	}

	text := asm.Text()
	if text == "" {
		log.Info().Msg("Engine returned no speech")
		return r.sentinel(stt.StatusNoSpeech, engine.Name(), language)
	}

	log.Info().Str("text", text).Msg("Engine recognition complete")
	return stt.Result{Text: text, Status: stt.StatusOK, Engine: engine.Name()}
}

func (r *Recognizer) simulate(a audio.Normalized, language, reference string) stt.Result {
	r.metrics.RecordFallback(language)
	if !a.HasBytes() {
		return r.sentinel(stt.StatusAudioUnreadable, stt.EngineSimulated, language)
	}
	return stt.Result{
		Text:   r.simulator.Recognize(reference, language),
		Status: stt.StatusOK,
		Engine: stt.EngineSimulated,
	}
}

var sentinelIDs = map[stt.Status]string{
	stt.StatusNoSpeech:        i18n.SentinelNoSpeech,
	stt.StatusFailed:          i18n.SentinelFailed,
	stt.StatusAudioUnreadable: i18n.SentinelAudioUnreadable,
}

func (r *Recognizer) sentinel(status stt.Status, engine, language string) stt.Result {
	return stt.Result{
		Text:   r.catalog.Message(language, sentinelIDs[status], nil),
		Status: status,
		Engine: engine,
	}
}
