// Package analysis runs the pronunciation-assessment pipeline: normalize,
// then recognize and extract features concurrently, then score and diagnose.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"speech-rehab-service/internal/i18n"
	"speech-rehab-service/internal/models"
	"speech-rehab-service/internal/observability/logging"
	"speech-rehab-service/internal/observability/metrics"
	"speech-rehab-service/internal/service/audio"
	"speech-rehab-service/internal/service/diagnosis"
	"speech-rehab-service/internal/service/features"
	"speech-rehab-service/internal/service/recognition"
	"speech-rehab-service/internal/service/registry"
	"speech-rehab-service/internal/service/scoring"
	"speech-rehab-service/internal/service/segment"
	"speech-rehab-service/internal/service/stt"
)

// Stage names reported in AnalysisReport.DegradedStages.
const (
	StageAudio       = "audio"
	StageRecognition = "recognition"
	StageFeatures    = "features"
	StageSystem      = "system"
)

// Request is one analysis call.
type Request struct {
	Audio         []byte
	Format        string // container extension, sniffed when empty
	ReferenceText string
	Language      string // defaults to the active language
	UserID        string
}

// Health summarizes the recognition setup.
type Health struct {
	EnginesAvailable []string `json:"engines_available"` // languages with a loaded engine
	CurrentLanguage  string   `json:"current_language"`
}

// Publisher receives analysis outcomes.
type Publisher interface {
	PublishReport(ctx context.Context, event models.AnalysisCompleted) error
	PublishFailure(ctx context.Context, event models.AnalysisFailed) error
}

// Validator checks a finished report.
type Validator interface {
	Validate(value any) error
}

// Deps are the collaborators of an Analyzer. Nil fields get defaults;
// Publisher and Validator are optional.
type Deps struct {
	Registry   *registry.Registry
	Normalizer *audio.Normalizer
	Recognizer *recognition.Recognizer
	Diagnoser  *diagnosis.Generator
	Publisher  Publisher
	Validator  Validator
}

// Analyzer is the core-facing entry point of the service.
type Analyzer struct {
	registry   *registry.Registry
	normalizer *audio.Normalizer
	recognizer *recognition.Recognizer
	diagnoser  *diagnosis.Generator
	publisher  Publisher
	validator  Validator
	ids        *segment.Generator
	metrics    *metrics.Metrics
}

// New creates an analyzer.
func New(d Deps) *Analyzer {
	if d.Registry == nil {
		d.Registry = registry.New()
	}
	if d.Normalizer == nil {
		d.Normalizer = audio.NewNormalizer(audio.Limits{}, nil)
	}
	if d.Recognizer == nil {
		d.Recognizer = recognition.New(d.Registry, nil, nil, 0)
	}
	if d.Diagnoser == nil {
		d.Diagnoser = diagnosis.NewGenerator(nil)
	}
	return &Analyzer{
		registry:   d.Registry,
		normalizer: d.Normalizer,
		recognizer: d.Recognizer,
		diagnoser:  d.Diagnoser,
		publisher:  d.Publisher,
		validator:  d.Validator,
		ids:        segment.New(),
		metrics:    metrics.DefaultMetrics,
	}
}

// Analyze assesses one recording. It never fails: an unexpected error or
// panic anywhere in the pipeline yields the degraded system-error report.
func (a *Analyzer) Analyze(ctx context.Context, req Request) models.AnalysisReport {
	start := time.Now()
	id := a.ids.Next()
	lang := a.language(req.Language)
	log := logging.WithAnalysis(id, req.UserID, lang)

	a.metrics.RecordAnalysisStart(len(req.Audio))
	log.Info().Int("bytes", len(req.Audio)).Str("format", req.Format).Msg("Analysis started")

	report, err := a.safeRun(ctx, id, lang, req)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "system_error"
		log.Error().Err(err).Msg("Analysis failed, returning degraded report")
		report = a.degraded(id, req.UserID, lang, req.ReferenceText, err)
		a.publishFailure(ctx, id, req.UserID, lang, err)
	case len(report.DegradedStages) > 0:
		outcome = "degraded"
	}

	elapsed := time.Since(start)
	a.metrics.RecordAnalysisEnd(lang, report.RecognitionEngine, outcome, report.OverallScore, report.SimilarityScore, elapsed.Seconds())
	for _, is := range report.Issues {
		a.metrics.RecordIssue(string(is.Type), string(is.Severity))
	}

	log.Info().
		Str("outcome", outcome).
		Int("overallScore", report.OverallScore).
		Int("similarityScore", report.SimilarityScore).
		Str("engine", report.RecognitionEngine).
		Strs("degradedStages", report.DegradedStages).
		Dur("elapsed", elapsed).
		Msg("Analysis complete")

	a.publishReport(ctx, req.ReferenceText, report, elapsed)
	return report
}

// language resolves the tag for a request: explicit, else active, else the
// catalog default.
func (a *Analyzer) language(requested string) string {
	if requested != "" {
		return requested
	}
	if active := a.registry.ActiveLanguage(); active != "" {
		return active
	}
	return i18n.DefaultLanguage
}

func (a *Analyzer) safeRun(ctx context.Context, id, lang string, req Request) (report models.AnalysisReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return a.run(ctx, id, lang, req)
}

func (a *Analyzer) run(ctx context.Context, id, lang string, req Request) (models.AnalysisReport, error) {
	log := logging.WithAnalysis(id, req.UserID, lang)
	var degraded []string

	t := time.Now()
	norm := a.normalizer.Normalize(ctx, audio.Buffer{Data: req.Audio, Format: req.Format})
	a.metrics.RecordStage("normalize", time.Since(t).Seconds())
	if norm.Degraded {
		degraded = append(degraded, StageAudio)
	}

	var (
		res   stt.Result
		feats features.Features
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(guarded("recognize", func() error {
		t := time.Now()
		res = a.recognizer.Recognize(gctx, id, norm, lang, req.ReferenceText)
		a.metrics.RecordStage("recognize", time.Since(t).Seconds())
		return nil
	}))
	g.Go(guarded("features", func() error {
		t := time.Now()
		var err error
		feats, err = features.Extract(norm.Float64(), norm.SampleRate)
		if err != nil && norm.HasSamples() {
			log.Warn().Err(err).Strs("fallbacks", feats.Fallbacks).Msg("Feature extraction fell back to defaults")
		}
		for _, name := range feats.Fallbacks {
			a.metrics.RecordFeatureFallback(name)
		}
		a.metrics.RecordStage("features", time.Since(t).Seconds())
		return nil
	}))
	if err := g.Wait(); err != nil {
		return models.AnalysisReport{}, err
	}

	if !res.OK() {
		degraded = append(degraded, StageRecognition)
	}
	if len(feats.Fallbacks) > 0 {
		degraded = append(degraded, StageFeatures)
	}

	score := scoring.Score(req.ReferenceText, res.Text, feats)
	diag := a.diagnoser.Diagnose(diagnosis.Input{
		Reference:  req.ReferenceText,
		Hypothesis: res.Text,
		Language:   lang,
		Score:      score.Overall,
		Features:   feats,
	})

	issues := diag.Issues
	if issues == nil {
		issues = []models.Issue{}
	}
	report := models.AnalysisReport{
		AnalysisID:                 id,
		UserID:                     req.UserID,
		OverallScore:               score.Overall,
		SimilarityScore:            score.Similarity,
		RecognizedText:             scoring.Normalize(res.Text),
		Language:                   lang,
		Issues:                     issues,
		Suggestions:                diag.Suggestions,
		AudioFeatures:              feats.Summary(),
		ImprovementTip:             diag.Tip,
		PersonalizedAdvice:         diag.Advice,
		NextExerciseRecommendation: diag.NextExercise,
		RecognitionEngine:          res.Engine,
		DegradedStages:             degraded,
	}

	if a.validator != nil {
		if err := a.validator.Validate(report); err != nil {
			return models.AnalysisReport{}, fmt.Errorf("invalid report: %w", err)
		}
	}
	return report, nil
}

// guarded converts a panic in fn into an error for the errgroup.
func guarded(stage string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s stage panic: %v", stage, r)
			}
		}()
		return fn()
	}
}

// degraded builds the report returned when the pipeline could not finish.
func (a *Analyzer) degraded(id, userID, lang, reference string, err error) models.AnalysisReport {
	if err == nil {
		err = errors.New("unknown error")
	}
	diag := a.diagnoser.SystemError(err, lang)
	return models.AnalysisReport{
		AnalysisID:      id,
		UserID:          userID,
		OverallScore:    50,
		SimilarityScore: 50,
		RecognizedText:  scoring.Normalize(reference),
		Language:        lang,
		Issues:          diag.Issues,
		Suggestions:     diag.Suggestions,
		AudioFeatures: models.AudioFeaturesSummary{
			Duration:       features.DefaultDuration,
			PitchStability: 75,
			ClarityScore:   70,
		},
		ImprovementTip:             diag.Tip,
		PersonalizedAdvice:         diag.Advice,
		NextExerciseRecommendation: diag.NextExercise,
		DegradedStages:             []string{StageSystem},
	}
}

func (a *Analyzer) publishReport(ctx context.Context, reference string, r models.AnalysisReport, elapsed time.Duration) {
	if a.publisher == nil {
		return
	}
	types := make([]string, len(r.Issues))
	for i, is := range r.Issues {
		types[i] = string(is.Type)
	}
	// Publish failures are logged by the publisher and never affect the report.
	_ = a.publisher.PublishReport(ctx, models.AnalysisCompleted{
		EventType:         models.EventTypeAnalysisCompleted,
		AnalysisID:        r.AnalysisID,
		UserID:            r.UserID,
		Timestamp:         time.Now().UnixMilli(),
		Language:          r.Language,
		ReferenceText:     reference,
		RecognizedText:    r.RecognizedText,
		OverallScore:      r.OverallScore,
		SimilarityScore:   r.SimilarityScore,
		IssueTypes:        types,
		RecognitionEngine: r.RecognitionEngine,
		DurationMs:        elapsed.Milliseconds(),
		Degraded:          len(r.DegradedStages) > 0,
	})
}

func (a *Analyzer) publishFailure(ctx context.Context, id, userID, lang string, err error) {
	if a.publisher == nil {
		return
	}
	_ = a.publisher.PublishFailure(ctx, models.AnalysisFailed{
		EventType:  models.EventTypeAnalysisFailed,
		AnalysisID: id,
		UserID:     userID,
		Timestamp:  time.Now().UnixMilli(),
		Language:   lang,
		Reason:     err.Error(),
	})
}

// SetActiveLanguage switches the default language. It reports false, and
// keeps the previous language, when no engine is loaded for tag.
func (a *Analyzer) SetActiveLanguage(tag string) bool {
	log := logging.WithComponent("analysis")
	if err := a.registry.SetActive(tag); err != nil {
		log.Warn().Err(err).Str("language", tag).Msg("Language switch rejected")
		return false
	}
	log.Info().Str("language", tag).Msg("Active language switched")
	return true
}

// ListAvailableLanguages returns the languages with a loaded engine.
func (a *Analyzer) ListAvailableLanguages() []string {
	return a.registry.AvailableLanguages()
}

// Health reports engine availability and the active language.
func (a *Analyzer) Health() Health {
	return Health{
		EnginesAvailable: a.registry.AvailableLanguages(),
		CurrentLanguage:  a.registry.ActiveLanguage(),
	}
}
