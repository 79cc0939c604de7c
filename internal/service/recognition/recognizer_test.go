package recognition

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"speech-rehab-service/internal/service/audio"
	"speech-rehab-service/internal/service/registry"
	"speech-rehab-service/internal/service/stt"
	"speech-rehab-service/internal/service/stt/simulated"
	"speech-rehab-service/internal/service/stt/stttest"
)

// fixedRand always returns v.
type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

func decoded(n int) audio.Normalized {
	return audio.Normalized{Samples: make([]int16, n), SampleRate: audio.TargetSampleRate}
}

func newRecognizer(engines ...stt.Engine) *Recognizer {
	reg := registry.New()
	for _, e := range engines {
		reg.Register(e)
	}
	return New(reg, simulated.NewWithRand(0.8, fixedRand(0)), nil, 4000)
}

func TestRecognize_EngineJoinsSegments(t *testing.T) {
	eng := stttest.New("en-US")
	eng.Segments = []string{"hello", " world "}
	eng.Final = "again"

	res := newRecognizer(eng).Recognize(context.Background(), "a1", decoded(10000), "en-US", "hello world")

	assert.Equal(t, stt.Result{Text: "hello world again", Status: stt.StatusOK, Engine: "fake"}, res)
	assert.Equal(t, 1, eng.Calls())
	assert.Equal(t, 3, eng.Chunks(), "10000 samples in 4000-sample chunks")
}

func TestRecognize_EngineStatuses(t *testing.T) {
	tests := []struct {
		name       string
		language   string
		engine     func() *stttest.Engine
		audio      audio.Normalized
		wantStatus stt.Status
		wantText   string
	}{
		{
			name:       "no speech",
			language:   "en-US",
			engine:     func() *stttest.Engine { return stttest.New("en-US") },
			audio:      decoded(1600),
			wantStatus: stt.StatusNoSpeech,
			wantText:   "No speech detected",
		},
		{
			name:     "engine failure",
			language: "zh-CN",
			engine: func() *stttest.Engine {
				e := stttest.New("zh-CN")
				e.Err = errors.New("decoder crashed")
				return e
			},
			audio:      decoded(1600),
			wantStatus: stt.StatusFailed,
			wantText:   "识别失败",
		},
		{
			name:       "undecodable audio",
			language:   "en-US",
			engine:     func() *stttest.Engine { return stttest.New("en-US") },
			audio:      audio.Normalized{Raw: []byte("junk"), Degraded: true},
			wantStatus: stt.StatusAudioUnreadable,
			wantText:   "Audio file not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newRecognizer(tt.engine()).Recognize(context.Background(), "a1", tt.audio, tt.language, "hello")
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.wantText, res.Text)
			assert.Equal(t, "fake", res.Engine)
			assert.False(t, res.OK())
		})
	}
}

func TestRecognize_SimulatedFallback(t *testing.T) {
	zh := stttest.New("zh-CN")
	r := newRecognizer(zh)

	res := r.Recognize(context.Background(), "a1", audio.Normalized{Raw: []byte("webm"), Degraded: true}, "en-US", "hello")

	assert.Equal(t, stt.Result{Text: "hello", Status: stt.StatusOK, Engine: stt.EngineSimulated}, res)
	assert.Zero(t, zh.Calls())
}

func TestRecognize_SimulatedMispronunciation(t *testing.T) {
	r := New(registry.New(), simulated.NewWithRand(0.8, fixedRand(0.95)), nil, 0)

	res := r.Recognize(context.Background(), "a1", decoded(100), "en-US", "hello")

	assert.Equal(t, "hallo", res.Text)
	assert.Equal(t, stt.EngineSimulated, res.Engine)
}

func TestRecognize_SimulatedWithoutBytes(t *testing.T) {
	res := newRecognizer().Recognize(context.Background(), "a1", audio.Normalized{}, "zh-CN", "你好")

	assert.Equal(t, stt.StatusAudioUnreadable, res.Status)
	assert.Equal(t, "音频文件不存在", res.Text)
	assert.Equal(t, stt.EngineSimulated, res.Engine)
}
