package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"speech-rehab-service/internal/service/features"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Hello  ", "hello"},
		{"WATER", "water"},
		{"Straße", "strasse"},
		{"你好", "你好"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsSentinel(t *testing.T) {
	assert.True(t, IsSentinel("未识别到语音"))
	assert.True(t, IsSentinel("  no speech detected "))
	assert.True(t, IsSentinel("Vosk unavailable"))
	assert.False(t, IsSentinel("hello"))
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name       string
		reference  string
		hypothesis string
		want       float64
	}{
		{"identical", "hello", "hello", 1},
		{"case and space only", "Hello", "  HELLO ", 1},
		{"empty hypothesis", "hello", "", 0},
		{"sentinel", "hello", "Recognition failed", 0},
		{"zh sentinel", "你好", "识别失败", 0},
		{"one substitution", "hello", "hallo", 0.8},
		{"appended question mark", "water", "water?", 10.0 / 11.0},
		{"chinese per rune", "你好", "你号", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.reference, tt.hypothesis), 1e-9)
		})
	}
}

func TestAudioQuality(t *testing.T) {
	tests := []struct {
		name string
		f    features.Features
		want int
	}{
		{"defaults", features.Defaults(), 85},
		{"best case", features.Features{RMS: 0.1, SpectralCentroid: 2000, PitchStd: 2}, 100},
		{"worst case", features.Features{RMS: 0.01, SpectralCentroid: 500, PitchStd: 30}, 40},
		{"loud recording gets no bonus", features.Features{RMS: 0.5, SpectralCentroid: 1000, PitchStd: 10}, 70},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AudioQuality(tt.f); got != tt.want {
				t.Errorf("AudioQuality() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name           string
		reference      string
		hypothesis     string
		f              features.Features
		wantOverall    int
		wantSimilarity int
	}{
		{"perfect match", "hello", "hello", features.Defaults(), 96, 100},
		{"mismatch", "hello", "hallo", features.Defaults(), 82, 80},
		{"failed recognition", "hello", "Recognition failed", features.Defaults(), 26, 0},
		{"perfect everything", "你好", "你好", features.Features{RMS: 0.1, SpectralCentroid: 2000, PitchStd: 1}, 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.reference, tt.hypothesis, tt.f)
			assert.Equal(t, tt.wantOverall, got.Overall)
			assert.Equal(t, tt.wantSimilarity, got.Similarity)
			assert.GreaterOrEqual(t, got.Overall, 0)
			assert.LessOrEqual(t, got.Overall, 100)
		})
	}
}
