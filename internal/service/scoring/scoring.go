// Package scoring turns a hypothesis and acoustic features into the overall
// and similarity scores of a report.
package scoring

import (
	"math"
	"strings"
	"sync"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/cases"

	"speech-rehab-service/internal/i18n"
	"speech-rehab-service/internal/service/features"
)

// Result holds the scores of one analysis, all in [0, 100].
type Result struct {
	Overall    int
	Similarity int
	Quality    int
}

// Normalize trims s and applies Unicode case folding.
func Normalize(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

var (
	sentinelOnce sync.Once
	sentinels    map[string]struct{}
)

// IsSentinel reports whether text is a placeholder emitted instead of a real
// hypothesis, in any supported language.
func IsSentinel(text string) bool {
	sentinelOnce.Do(func() {
		sentinels = make(map[string]struct{})
		for _, s := range i18n.Default().Sentinels() {
			sentinels[Normalize(s)] = struct{}{}
		}
	})
	_, ok := sentinels[Normalize(text)]
	return ok
}

// Similarity compares the normalized hypothesis against the normalized
// reference and returns a ratio in [0, 1].
func Similarity(reference, hypothesis string) float64 {
	ref, hyp := Normalize(reference), Normalize(hypothesis)
	if hyp == "" || IsSentinel(hyp) {
		return 0
	}
	if hyp == ref {
		return 1
	}
	m := difflib.NewMatcher(runes(hyp), runes(ref))
	return m.Ratio()
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// AudioQuality rates the recording from its loudness, brightness and pitch
// steadiness. The base score is 70.
func AudioQuality(f features.Features) int {
	score := 70

	switch {
	case f.RMS >= 0.05 && f.RMS <= 0.2:
		score += 15
	case f.RMS < 0.05:
		score -= 10
	}

	switch {
	case f.SpectralCentroid > 1500:
		score += 10
	case f.SpectralCentroid < 800:
		score -= 10
	}

	switch {
	case f.PitchStd < 5:
		score += 10
	case f.PitchStd > 20:
		score -= 10
	}

	return clamp(score)
}

// Score combines text similarity (70%) and audio quality (30%).
func Score(reference, hypothesis string, f features.Features) Result {
	sim := clamp(int(math.Round(Similarity(reference, hypothesis) * 100)))
	quality := AudioQuality(f)
	overall := clamp(int(math.Round(float64(sim)*0.7 + float64(quality)*0.3)))
	return Result{Overall: overall, Similarity: sim, Quality: quality}
}

func clamp(v int) int {
	return max(0, min(100, v))
}
