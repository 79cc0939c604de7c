// Package diagnosis turns scores and features into localized issues,
// suggestions and practice recommendations.
package diagnosis

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/language"

	"speech-rehab-service/internal/i18n"
	"speech-rehab-service/internal/models"
	"speech-rehab-service/internal/service/features"
	"speech-rehab-service/internal/service/scoring"
)

// Thresholds for the acoustic checks.
const (
	MinRMS        = 0.05
	MaxPitchStd   = 15.0
	MinScore      = 70
	MinCentroid   = 800.0
	PracticeBelow = 80
	charRateFast  = 8.0
	charRateSlow  = 2.0
	wordRateFast  = 4.0
	wordRateSlow  = 1.5
)

// Input is everything the generator looks at.
type Input struct {
	Reference  string
	Hypothesis string // raw recognizer output or sentinel
	Language   string
	Score      int
	Features   features.Features
}

// Diagnosis is the localized feedback of one analysis.
type Diagnosis struct {
	Issues       []models.Issue
	Suggestions  []string
	Tip          string
	Advice       []string
	NextExercise string
}

// Generator produces diagnoses from a message catalog.
type Generator struct {
	catalog *i18n.Catalog
}

// NewGenerator creates a generator. A nil catalog uses i18n.Default().
func NewGenerator(catalog *i18n.Catalog) *Generator {
	if catalog == nil {
		catalog = i18n.Default()
	}
	return &Generator{catalog: catalog}
}

// Diagnose runs every check in order and builds the feedback around the
// issues found.
func (g *Generator) Diagnose(in Input) Diagnosis {
	issues := g.Issues(in)
	return Diagnosis{
		Issues:       issues,
		Suggestions:  g.Suggestions(issues, in.Score, in.Language),
		Tip:          g.Tip(in.Score, len(issues), in.Language),
		Advice:       g.Advice(in.Score, in.Language),
		NextExercise: g.NextExercise(in.Reference, in.Score, in.Language),
	}
}

// Issues detects problems in fixed order: text, volume, pitch, overall
// score, speaking rate, clarity.
func (g *Generator) Issues(in Input) []models.Issue {
	lang := in.Language
	msg := func(id string, data map[string]any) string {
		return g.catalog.Message(lang, id, data)
	}
	var issues []models.Issue
	add := func(t models.IssueType, sev models.Severity, desc string) {
		issues = append(issues, models.Issue{Type: t, Description: desc, Severity: sev})
	}

	ref := scoring.Normalize(in.Reference)
	hyp := scoring.Normalize(in.Hypothesis)
	rawRef := strings.TrimSpace(in.Reference)
	rawHyp := strings.TrimSpace(in.Hypothesis)
	switch {
	case hyp == "" || scoring.IsSentinel(hyp):
		add(models.IssueRecognitionFailed, models.SeverityHigh, msg("issue.recognition_failed", nil))
	case hyp != ref:
		add(models.IssuePronunciationAccuracy, models.SeverityHigh, msg("issue.pronunciation_accuracy",
			map[string]any{"Recognized": rawHyp, "Reference": rawRef}))
	case rawHyp != rawRef:
		add(models.IssueCapitalization, models.SeverityLow, msg("issue.capitalization",
			map[string]any{"Recognized": rawHyp, "Reference": rawRef}))
	}

	f := in.Features
	if f.RMS < MinRMS {
		add(models.IssueVolume, models.SeverityMedium, msg("issue.volume", nil))
	}
	if f.PitchStd > MaxPitchStd {
		add(models.IssuePitchStability, models.SeverityMedium, msg("issue.pitch_stability", nil))
	}
	if in.Score < MinScore {
		add(models.IssueGeneralPronunciation, models.SeverityMedium, msg("issue.general_pronunciation", nil))
	}
	if id := speakingRateIssue(ref, lang, f.Duration); id != "" {
		add(models.IssueSpeakingRate, models.SeverityLow, msg(id, nil))
	}
	if f.SpectralCentroid < MinCentroid {
		add(models.IssueClarity, models.SeverityMedium, msg("issue.clarity", nil))
	}
	return issues
}

// speakingRateIssue returns the message ID for a too fast or too slow
// delivery, or "" when the rate is fine.
func speakingRateIssue(reference, lang string, duration float64) string {
	if duration <= 0 {
		return ""
	}
	fast, slow := wordRateFast, wordRateSlow
	if countsCharacters(lang) {
		fast, slow = charRateFast, charRateSlow
	}
	units := textUnits(reference, lang)
	if units == 0 {
		return ""
	}

	rate := float64(units) / duration
	switch {
	case rate > fast:
		return "issue.speaking_rate_fast"
	case rate < slow:
		return "issue.speaking_rate_slow"
	}
	return ""
}

// countsCharacters reports whether text length in lang is measured in
// characters rather than words.
func countsCharacters(lang string) bool {
	base, _ := language.Make(lang).Base()
	switch base.String() {
	case "zh", "ja":
		return true
	}
	return false
}

// textUnits is the length of text in characters (excluding whitespace) or
// words, depending on lang.
func textUnits(text, lang string) int {
	if !countsCharacters(lang) {
		return len(strings.Fields(text))
	}
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

var suggestionOrder = []models.IssueType{
	models.IssueRecognitionFailed,
	models.IssuePronunciationAccuracy,
	models.IssueCapitalization,
	models.IssueVolume,
	models.IssuePitchStability,
	models.IssueGeneralPronunciation,
	models.IssueSpeakingRate,
	models.IssueClarity,
}

// Suggestions returns two positives when there are no issues, otherwise a
// pair per issue type present. Practice frequency is added below 80 and
// self-review is always last.
func (g *Generator) Suggestions(issues []models.Issue, score int, lang string) []string {
	var out []string
	if len(issues) == 0 {
		out = append(out,
			g.catalog.Message(lang, "suggestion.positive.primary", nil),
			g.catalog.Message(lang, "suggestion.positive.secondary", nil))
	} else {
		present := make(map[models.IssueType]bool, len(issues))
		for _, is := range issues {
			present[is.Type] = true
		}
		for _, t := range suggestionOrder {
			if !present[t] {
				continue
			}
			out = append(out,
				g.catalog.Message(lang, "suggestion."+string(t)+".primary", nil),
				g.catalog.Message(lang, "suggestion."+string(t)+".secondary", nil))
		}
	}

	if score < PracticeBelow {
		out = append(out, g.catalog.Message(lang, "suggestion.practice_frequency", nil))
	}
	return append(out, g.catalog.Message(lang, "suggestion.self_review", nil))
}

// Tip picks the improvement tip for score.
func (g *Generator) Tip(score, issueCount int, lang string) string {
	switch {
	case score >= 90:
		return g.catalog.Message(lang, "tip.excellent", nil)
	case score >= 80:
		return g.catalog.Message(lang, "tip.good", nil)
	case score >= 70:
		return g.catalog.Message(lang, "tip.focus", map[string]any{"Count": issueCount})
	case score >= 60:
		return g.catalog.Message(lang, "tip.practice", nil)
	default:
		return g.catalog.Message(lang, "tip.basics", nil)
	}
}

// Advice returns the two personalized advice lines for score.
func (g *Generator) Advice(score int, lang string) []string {
	band := "low"
	switch {
	case score >= 85:
		band = "high"
	case score >= 70:
		band = "mid"
	}
	return []string{
		g.catalog.Message(lang, "advice."+band+".primary", nil),
		g.catalog.Message(lang, "advice."+band+".secondary", nil),
	}
}

// NextExercise recommends what to practice next.
func (g *Generator) NextExercise(reference string, score int, lang string) string {
	id := "exercise.sentence"
	switch n := textUnits(scoring.Normalize(reference), lang); {
	case score < MinScore:
		id = "exercise.basic_vowel"
	case n == 1:
		id = "exercise.two_syllable"
	case n <= 2:
		id = "exercise.phrase"
	}
	return g.catalog.Message(lang, id, nil)
}

// SystemError builds the feedback for an analysis that could not complete.
func (g *Generator) SystemError(err error, lang string) Diagnosis {
	detail := "unknown error"
	if err != nil {
		detail = err.Error()
	}
	if !utf8.ValidString(detail) {
		detail = strings.ToValidUTF8(detail, "?")
	}
	return Diagnosis{
		Issues: []models.Issue{{
			Type:        models.IssueSystemError,
			Description: g.catalog.Message(lang, "issue.system_error", map[string]any{"Error": detail}),
			Severity:    models.SeverityHigh,
		}},
		Suggestions:  []string{g.catalog.Message(lang, "suggestion.retry", nil)},
		Tip:          g.catalog.Message(lang, "tip.system_error", nil),
		Advice:       []string{g.catalog.Message(lang, "advice.system_error", nil)},
		NextExercise: g.catalog.Message(lang, "exercise.basic", nil),
	}
}
