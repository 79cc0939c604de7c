package features

import (
	"errors"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// spectralCentroid is the mean over frames of the magnitude-weighted mean
// frequency of a Hann-windowed FFT. Silent frames contribute zero.
func spectralCentroid(frames [][]float64, sampleRate int) (float64, error) {
	if len(frames) == 0 {
		return 0, errors.New("no frames")
	}
	n := len(frames[0])
	fft := fourier.NewFFT(n)
	buf := make([]float64, n)
	var coeffs []complex128

	var sum float64
	for _, fr := range frames {
		copy(buf, fr)
		window.Hann(buf)
		coeffs = fft.Coefficients(coeffs, buf)

		var weighted, total float64
		for k, c := range coeffs {
			mag := cmplx.Abs(c)
			weighted += fft.Freq(k) * float64(sampleRate) * mag
			total += mag
		}
		if total > 1e-12 {
			sum += weighted / total
		}
	}
	return sum / float64(len(frames)), nil
}
