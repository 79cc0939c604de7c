// Package app wires the analysis pipeline from configuration.
package app

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"speech-rehab-service/internal/config"
	"speech-rehab-service/internal/events"
	"speech-rehab-service/internal/observability/logging"
	"speech-rehab-service/internal/schema"
	"speech-rehab-service/internal/service/analysis"
	"speech-rehab-service/internal/service/audio"
	"speech-rehab-service/internal/service/recognition"
	"speech-rehab-service/internal/service/registry"
	"speech-rehab-service/internal/service/stt/google"
	"speech-rehab-service/internal/service/stt/simulated"
	"speech-rehab-service/internal/service/stt/vosk"
)

// STT providers accepted in STT_PROVIDER.
const (
	ProviderVosk      = "vosk"
	ProviderGoogle    = "google"
	ProviderSimulated = "simulated"
)

// Version is reported by the health endpoint.
const Version = "4.0"

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration

	Registry   *registry.Registry
	Normalizer *audio.Normalizer
	Publisher  *events.Publisher
	Analyzer   *analysis.Analyzer

	ready atomic.Bool
}

// New constructs the application from cfg. Engines are loaded by Start.
func New(cfg *config.Configuration) *Application {
	a := &Application{Cfg: cfg}
	a.setupLogger()

	validator := schema.New()
	a.Registry = registry.New()
	a.Normalizer = audio.NewNormalizer(
		audio.Limits{MaxBytes: cfg.Audio.MaxBytes, MaxDuration: cfg.Audio.MaxDuration},
		audio.FFmpeg{
			Path:    cfg.Audio.FFmpegPath,
			Timeout: cfg.Audio.TranscodeTimeout,
			TempDir: cfg.Audio.TempDir,
		},
	)
	a.Publisher = events.New(&events.Config{
		Enabled:       cfg.Kafka.Enabled,
		Brokers:       cfg.Kafka.Brokers,
		TopicReports:  cfg.Kafka.TopicReports,
		TopicFailures: cfg.Kafka.TopicFailures,
		Principal:     cfg.Kafka.Principal,
	}, validator)

	sim := simulated.New(cfg.STT.SimulatedAccuracy, cfg.STT.SimulatedSeed)
	a.Analyzer = analysis.New(analysis.Deps{
		Registry:   a.Registry,
		Normalizer: a.Normalizer,
		Recognizer: recognition.New(a.Registry, sim, nil, cfg.STT.ChunkSamples),
		Publisher:  a.Publisher,
		Validator:  validator,
	})

	a.Logger.Info().
		Str("sttProvider", cfg.STT.Provider).
		Strs("languages", cfg.STT.Languages).
		Msg("Speech rehab service application created")
	return a
}

// setupLogger configures zerolog for the service.
func (a *Application) setupLogger() {
	format := a.Cfg.Observability.LogFormat
	if os.Getenv("ENV") == "dev" {
		format = "console"
	}
	logging.Init(logging.Config{
		Level:      a.Cfg.Observability.LogLevel,
		Format:     format,
		TimeFormat: time.RFC3339,
	})
	a.Logger = logging.WithComponent("application")

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("environment", os.Getenv("ENV")).
		Msg("Logger setup completed")
}

// Start loads the recognition engines for the configured provider and picks
// the default language. Missing engines are not fatal: those languages use
// simulated recognition.
func (a *Application) Start(ctx context.Context) error {
	startLogger := a.Logger.With().Str("method", "Start").Logger()
	a.StartupTime = time.Now().UTC()

	switch a.Cfg.STT.Provider {
	case ProviderVosk:
		if !vosk.Available {
			startLogger.Warn().Msg("Binary built without vosk support, all languages use simulated recognition")
			break
		}
		for _, lang := range a.Cfg.STT.Languages {
			a.Registry.Load(ctx, lang, a.Cfg.STT.ModelPaths[lang], vosk.Load)
		}
	case ProviderGoogle:
		for _, lang := range a.Cfg.STT.Languages {
			engine, err := google.Load(ctx, lang, "")
			if err != nil {
				startLogger.Warn().Err(err).Str("language", lang).Msg("Failed to create Google engine")
				continue
			}
			a.Registry.Register(engine)
		}
	case ProviderSimulated:
	default:
		startLogger.Warn().Str("sttProvider", a.Cfg.STT.Provider).Msg("Unknown STT provider, using simulated recognition")
	}

	active := a.Registry.SelectDefault()
	a.ready.Store(true)

	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Strs("availableLanguages", a.Registry.AvailableLanguages()).
		Str("activeLanguage", active).
		Msg("Speech rehab service starting")
	return nil
}

// Ready reports whether Start has completed.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Shutdown releases engines and Kafka writers.
func (a *Application) Shutdown() error {
	a.ready.Store(false)
	a.Logger.Info().Str("method", "Shutdown").Msg("Speech rehab service shutting down")

	var result *multierror.Error
	if err := a.Registry.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := a.Publisher.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
