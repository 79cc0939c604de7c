package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	minPitchHz     = 50
	maxPitchHz     = 300
	yinThreshold   = 0.1
	voicedMinLevel = 1e-3 // frame RMS below this is treated as unvoiced
)

// pitch estimates the fundamental frequency of every voiced frame with YIN and
// returns the mean and population standard deviation. Without voiced frames
// the defaults are returned and err is nil.
func pitch(frames [][]float64, sampleRate int) (mean, std float64, err error) {
	tauMin := sampleRate / maxPitchHz
	tauMax := sampleRate / minPitchHz

	var f0 []float64
	diff := make([]float64, tauMax+1)
	for _, fr := range frames {
		if len(fr) <= tauMax+1 || frameRMS(fr) < voicedMinLevel {
			continue
		}
		if hz, ok := yin(fr, sampleRate, tauMin, tauMax, diff); ok {
			f0 = append(f0, hz)
		}
	}

	if len(f0) == 0 {
		return DefaultPitchMean, DefaultPitchStd, nil
	}
	mean, variance := stat.PopMeanVariance(f0, nil)
	return mean, math.Sqrt(variance), nil
}

// yin returns the frame's fundamental frequency when a period between tauMin
// and tauMax clears the aperiodicity threshold.
func yin(fr []float64, sampleRate, tauMin, tauMax int, diff []float64) (float64, bool) {
	w := len(fr) - tauMax

	for tau := 1; tau <= tauMax; tau++ {
		var d float64
		for j := 0; j < w; j++ {
			delta := fr[j] - fr[j+tau]
			d += delta * delta
		}
		diff[tau] = d
	}

	// Cumulative mean normalized difference, in place.
	diff[0] = 1
	var running float64
	for tau := 1; tau <= tauMax; tau++ {
		running += diff[tau]
		if running == 0 {
			diff[tau] = 1
			continue
		}
		diff[tau] *= float64(tau) / running
	}

	for tau := max(tauMin, 1); tau <= tauMax; tau++ {
		if diff[tau] >= yinThreshold {
			continue
		}
		for tau+1 <= tauMax && diff[tau+1] < diff[tau] {
			tau++
		}
		period := refine(diff, tau, tauMax)
		if period <= 0 {
			return 0, false
		}
		return float64(sampleRate) / period, true
	}
	return 0, false
}

// refine applies parabolic interpolation around the local minimum at tau.
func refine(d []float64, tau, tauMax int) float64 {
	if tau <= 1 || tau >= tauMax {
		return float64(tau)
	}
	a, b, c := d[tau-1], d[tau], d[tau+1]
	denom := a - 2*b + c
	if denom == 0 {
		return float64(tau)
	}
	return float64(tau) + (a-c)/(2*denom)
}

func frameRMS(fr []float64) float64 {
	var sq float64
	for _, v := range fr {
		sq += v * v
	}
	return math.Sqrt(sq / float64(len(fr)))
}
