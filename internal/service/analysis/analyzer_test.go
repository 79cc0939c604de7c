package analysis

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speech-rehab-service/internal/models"
	"speech-rehab-service/internal/schema"
	"speech-rehab-service/internal/service/audio"
	"speech-rehab-service/internal/service/recognition"
	"speech-rehab-service/internal/service/registry"
	"speech-rehab-service/internal/service/stt"
	"speech-rehab-service/internal/service/stt/simulated"
	"speech-rehab-service/internal/service/stt/stttest"
)

type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

type capturePublisher struct {
	mu       sync.Mutex
	reports  []models.AnalysisCompleted
	failures []models.AnalysisFailed
}

func (p *capturePublisher) PublishReport(_ context.Context, e models.AnalysisCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, e)
	return nil
}

func (p *capturePublisher) PublishFailure(_ context.Context, e models.AnalysisFailed) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = append(p.failures, e)
	return nil
}

// panicEngine blows up inside the recognition stage.
type panicEngine struct{ lang string }

func (p panicEngine) Name() string     { return "panic" }
func (p panicEngine) Language() string { return p.lang }
func (p panicEngine) Close() error     { return nil }
func (p panicEngine) Recognize(context.Context, []byte, int, int, stt.Callback) error {
	panic("engine exploded")
}

// toneWAV is a 200 Hz tone at a comfortable level.
func toneWAV(seconds float64) []byte {
	n := int(seconds * audio.TargetSampleRate)
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(0.2 * 32767 * math.Sin(2*math.Pi*200*float64(i)/audio.TargetSampleRate))
	}
	return audio.EncodeWAV(samples, audio.TargetSampleRate)
}

func newAnalyzer(rnd float64, pub Publisher, engines ...stt.Engine) *Analyzer {
	reg := registry.New()
	for _, e := range engines {
		reg.Register(e)
	}
	reg.SelectDefault()
	return New(Deps{
		Registry:   reg,
		Recognizer: recognition.New(reg, simulated.NewWithRand(0.8, fixedRand(rnd)), nil, 0),
		Publisher:  pub,
		Validator:  schema.New(),
	})
}

func TestAnalyze_EngineMatch(t *testing.T) {
	eng := stttest.New("en-US")
	eng.Final = "hello world"
	pub := &capturePublisher{}
	a := newAnalyzer(0, pub, eng)

	r := a.Analyze(context.Background(), Request{
		Audio:         toneWAV(1.0),
		ReferenceText: "Hello World",
		Language:      "en-US",
		UserID:        "patient-7",
	})

	assert.NotEmpty(t, r.AnalysisID)
	assert.Equal(t, "patient-7", r.UserID)
	assert.Equal(t, "hello world", r.RecognizedText)
	assert.Equal(t, 100, r.SimilarityScore)
	assert.Equal(t, "fake", r.RecognitionEngine)
	assert.Equal(t, "en-US", r.Language)
	assert.InDelta(t, 1.0, r.AudioFeatures.Duration, 1e-9)
	assert.Empty(t, r.DegradedStages)
	assert.True(t, r.HasIssue(models.IssueCapitalization))
	assert.False(t, r.HasIssue(models.IssuePronunciationAccuracy))
	assert.GreaterOrEqual(t, r.OverallScore, 70)
	assert.Equal(t, 1, eng.Calls())

	require.Len(t, pub.reports, 1)
	ev := pub.reports[0]
	assert.Equal(t, models.EventTypeAnalysisCompleted, ev.EventType)
	assert.Equal(t, r.AnalysisID, ev.AnalysisID)
	assert.Equal(t, "Hello World", ev.ReferenceText)
	assert.Contains(t, ev.IssueTypes, string(models.IssueCapitalization))
	assert.False(t, ev.Degraded)
	assert.Empty(t, pub.failures)
}

func TestAnalyze_DefaultsToActiveLanguage(t *testing.T) {
	zh := stttest.New("zh-CN")
	zh.Final = "你好"
	a := newAnalyzer(0, nil, zh, stttest.New("en-US"))

	r := a.Analyze(context.Background(), Request{Audio: toneWAV(0.5), ReferenceText: "你好"})

	assert.Equal(t, "zh-CN", r.Language)
	assert.Equal(t, "你好", r.RecognizedText)
	assert.Equal(t, 100, r.SimilarityScore)
	assert.False(t, r.HasIssue(models.IssueCapitalization))
}

func TestAnalyze_SimulatedFallback(t *testing.T) {
	a := newAnalyzer(0.95, nil)

	r := a.Analyze(context.Background(), Request{Audio: toneWAV(1.0), ReferenceText: "water", Language: "en-US"})

	assert.Equal(t, stt.EngineSimulated, r.RecognitionEngine)
	assert.Equal(t, "vater", r.RecognizedText)
	assert.Equal(t, 80, r.SimilarityScore)
	require.NotEmpty(t, r.Issues)
	assert.Equal(t, models.IssuePronunciationAccuracy, r.Issues[0].Type)
}

func TestAnalyze_EmptyReferenceStillFlagsFailedRecognition(t *testing.T) {
	a := newAnalyzer(0.5, nil)

	r := a.Analyze(context.Background(), Request{Audio: toneWAV(1.0), ReferenceText: "", Language: "en-US"})

	assert.Empty(t, r.RecognizedText)
	assert.Equal(t, 0, r.SimilarityScore)
	require.NotEmpty(t, r.Issues)
	assert.Equal(t, models.IssueRecognitionFailed, r.Issues[0].Type)
}

func TestAnalyze_NoAudio(t *testing.T) {
	eng := stttest.New("en-US")
	a := newAnalyzer(0, nil, eng)

	r := a.Analyze(context.Background(), Request{ReferenceText: "hello", Language: "en-US"})

	assert.Equal(t, "audio file not found", r.RecognizedText)
	assert.Equal(t, 0, r.SimilarityScore)
	require.NotEmpty(t, r.Issues)
	assert.Equal(t, models.IssueRecognitionFailed, r.Issues[0].Type)
	assert.Equal(t, models.SeverityHigh, r.Issues[0].Severity)
	assert.ElementsMatch(t, []string{StageAudio, StageRecognition, StageFeatures}, r.DegradedStages)
	assert.InDelta(t, 2.0, r.AudioFeatures.Duration, 1e-9)
	assert.Zero(t, eng.Calls())
}

func TestAnalyze_UndecodableAudioWithEngine(t *testing.T) {
	eng := stttest.New("zh-CN")
	a := newAnalyzer(0, nil, eng)

	r := a.Analyze(context.Background(), Request{Audio: []byte("not audio at all"), ReferenceText: "你好", Language: "zh-CN"})

	assert.Equal(t, "音频文件不存在", r.RecognizedText)
	assert.True(t, r.HasIssue(models.IssueRecognitionFailed))
	assert.Equal(t, "fake", r.RecognitionEngine)
}

func TestAnalyze_PanicYieldsDegradedReport(t *testing.T) {
	pub := &capturePublisher{}
	a := newAnalyzer(0, pub, panicEngine{lang: "en-US"})

	r := a.Analyze(context.Background(), Request{Audio: toneWAV(0.5), ReferenceText: "hello", Language: "en-US", UserID: "u"})

	assert.Equal(t, 50, r.OverallScore)
	assert.Equal(t, 50, r.SimilarityScore)
	assert.Equal(t, "hello", r.RecognizedText)
	require.Len(t, r.Issues, 1)
	assert.Equal(t, models.IssueSystemError, r.Issues[0].Type)
	assert.Equal(t, models.SeverityHigh, r.Issues[0].Severity)
	assert.Equal(t, []string{"Please retry or check the audio file"}, r.Suggestions)
	assert.Equal(t, models.AudioFeaturesSummary{Duration: 2.0, PitchStability: 75, ClarityScore: 70}, r.AudioFeatures)
	assert.Equal(t, []string{StageSystem}, r.DegradedStages)

	require.Len(t, pub.failures, 1)
	assert.Equal(t, r.AnalysisID, pub.failures[0].AnalysisID)
	assert.Contains(t, pub.failures[0].Reason, "engine exploded")
	require.Len(t, pub.reports, 1)
	assert.True(t, pub.reports[0].Degraded)
}

func TestAnalyze_ConcurrentRequests(t *testing.T) {
	eng := stttest.New("en-US")
	eng.Final = "hello"
	a := newAnalyzer(0, nil, eng)
	wav := toneWAV(0.3)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = a.Analyze(context.Background(), Request{Audio: wav, ReferenceText: "hello", Language: "en-US"}).AnalysisID
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate analysis id %s", id)
		seen[id] = true
	}
	assert.Equal(t, 8, eng.Calls())
}

func TestLanguageOperations(t *testing.T) {
	a := newAnalyzer(0, nil, stttest.New("zh-CN"), stttest.New("en-US"))

	assert.Equal(t, []string{"zh-CN", "en-US"}, a.ListAvailableLanguages())
	assert.Equal(t, Health{EnginesAvailable: []string{"zh-CN", "en-US"}, CurrentLanguage: "zh-CN"}, a.Health())

	assert.True(t, a.SetActiveLanguage("en-US"))
	assert.False(t, a.SetActiveLanguage("fr-FR"))
	assert.Equal(t, "en-US", a.Health().CurrentLanguage)
}

func TestHealth_NoEngines(t *testing.T) {
	h := newAnalyzer(0, nil).Health()

	assert.Empty(t, h.EnginesAvailable)
	assert.Empty(t, h.CurrentLanguage)
}
