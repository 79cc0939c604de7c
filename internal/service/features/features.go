// Package features extracts the acoustic measurements used for scoring and
// diagnosis: loudness, zero-crossing rate, spectral centroid and pitch.
package features

import (
	"fmt"
	"math"

	"github.com/hashicorp/go-multierror"

	"speech-rehab-service/internal/models"
)

const (
	FrameLength = 2048
	HopLength   = 512

	DefaultDuration  = 2.0
	DefaultRMS       = 0.1
	DefaultZCR       = 0.0
	DefaultCentroid  = 1000.0
	DefaultPitchMean = 120.0
	DefaultPitchStd  = 10.0
)

// Feature names reported in Features.Fallbacks.
const (
	NameRMS      = "rms"
	NameZCR      = "zero_crossing_rate"
	NameCentroid = "spectral_centroid"
	NamePitch    = "pitch"
)

// Features are the acoustic measurements of one recording.
type Features struct {
	Duration         float64 // seconds
	RMS              float64
	ZeroCrossingRate float64
	SpectralCentroid float64 // Hz
	PitchMean        float64 // Hz
	PitchStd         float64 // Hz, population standard deviation

	// Fallbacks lists the features that were replaced by their defaults.
	Fallbacks []string
}

// Defaults returns the features used when no audio could be decoded.
func Defaults() Features {
	return Features{
		Duration:         DefaultDuration,
		RMS:              DefaultRMS,
		ZeroCrossingRate: DefaultZCR,
		SpectralCentroid: DefaultCentroid,
		PitchMean:        DefaultPitchMean,
		PitchStd:         DefaultPitchStd,
	}
}

// Summary converts features into the report view.
func (f Features) Summary() models.AudioFeaturesSummary {
	return models.AudioFeaturesSummary{
		Duration:       math.Round(f.Duration*100) / 100,
		PitchStability: clamp(100-f.PitchStd*3, 0, 100),
		ClarityScore:   clamp(f.SpectralCentroid/15, 0, 100),
	}
}

// Extract measures samples (mono, in [-1, 1]) recorded at sampleRate. The
// returned Features are always populated; err aggregates the features that
// failed and fell back to defaults.
func Extract(samples []float64, sampleRate int) (Features, error) {
	if len(samples) == 0 || sampleRate <= 0 {
		f := Defaults()
		f.Fallbacks = []string{NameRMS, NameZCR, NameCentroid, NamePitch}
		return f, fmt.Errorf("no samples to analyze")
	}

	frames := frame(samples, FrameLength, HopLength)
	f := Features{Duration: float64(len(samples)) / float64(sampleRate)}

	var errs *multierror.Error
	fallback := func(name string, err error) {
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", name, err))
		f.Fallbacks = append(f.Fallbacks, name)
	}

	if v, err := guard(func() (float64, error) { return meanRMS(frames), nil }); err != nil {
		fallback(NameRMS, err)
		f.RMS = DefaultRMS
	} else {
		f.RMS = v
	}

	if v, err := guard(func() (float64, error) { return meanZCR(frames), nil }); err != nil {
		fallback(NameZCR, err)
		f.ZeroCrossingRate = DefaultZCR
	} else {
		f.ZeroCrossingRate = v
	}

	if v, err := guard(func() (float64, error) { return spectralCentroid(frames, sampleRate) }); err != nil {
		fallback(NameCentroid, err)
		f.SpectralCentroid = DefaultCentroid
	} else {
		f.SpectralCentroid = v
	}

	mean, std, err := guardPitch(frames, sampleRate)
	if err != nil {
		fallback(NamePitch, err)
	}
	f.PitchMean, f.PitchStd = mean, std

	return f, errs.ErrorOrNil()
}

// guard runs fn and converts a panic into an error.
func guard(fn func() (float64, error)) (v float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	v, err = fn()
	if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
		err = fmt.Errorf("non-finite value %v", v)
	}
	return v, err
}

func guardPitch(frames [][]float64, sampleRate int) (mean, std float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			mean, std, err = DefaultPitchMean, DefaultPitchStd, fmt.Errorf("panic: %v", r)
		}
	}()
	return pitch(frames, sampleRate)
}

// frame splits samples into centered, zero-padded frames.
func frame(samples []float64, length, hop int) [][]float64 {
	pad := length / 2
	padded := make([]float64, len(samples)+2*pad)
	copy(padded[pad:], samples)

	n := 1 + (len(padded)-length)/hop
	frames := make([][]float64, n)
	for i := range frames {
		frames[i] = padded[i*hop : i*hop+length]
	}
	return frames
}

func meanRMS(frames [][]float64) float64 {
	var sum float64
	for _, fr := range frames {
		var sq float64
		for _, v := range fr {
			sq += v * v
		}
		sum += math.Sqrt(sq / float64(len(fr)))
	}
	return sum / float64(len(frames))
}

const zeroThreshold = 1e-10

func meanZCR(frames [][]float64) float64 {
	var sum float64
	for _, fr := range frames {
		crossings := 0
		prev := math.Signbit(squash(fr[0]))
		for _, v := range fr[1:] {
			cur := math.Signbit(squash(v))
			if cur != prev {
				crossings++
			}
			prev = cur
		}
		sum += float64(crossings) / float64(len(fr))
	}
	return sum / float64(len(frames))
}

func squash(v float64) float64 {
	if math.Abs(v) <= zeroThreshold {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
