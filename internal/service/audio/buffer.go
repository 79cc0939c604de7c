// Package audio normalizes uploaded recordings to mono 16 kHz 16-bit PCM.
package audio

import (
	"encoding/binary"
	"errors"
)

// TargetSampleRate is the sample rate every decoder converges on.
const TargetSampleRate = 16000

// ErrDecodeFailure is wrapped by every decoder error.
var ErrDecodeFailure = errors.New("audio decode failure")

// DecodePath names the decoder that produced a Normalized value.
type DecodePath string

const (
	PathWAV         DecodePath = "wav"
	PathOggOpus     DecodePath = "ogg_opus"
	PathTranscode   DecodePath = "ffmpeg"
	PathPassthrough DecodePath = "passthrough"
)

// Buffer is a raw upload and its declared or sniffed container format.
type Buffer struct {
	Data   []byte
	Format string // file extension such as ".webm"; sniffed when empty
}

// Normalized is decoded mono PCM at TargetSampleRate. When Degraded is set no
// decoder succeeded: Samples is empty and Raw holds the original bytes.
type Normalized struct {
	Samples    []int16
	SampleRate int
	Duration   float64 // seconds
	Path       DecodePath
	Format     string
	Degraded   bool
	Raw        []byte
	Err        error
}

// HasSamples reports whether any audio was decoded.
func (n Normalized) HasSamples() bool {
	return len(n.Samples) > 0
}

// HasBytes reports whether the upload carried any data at all.
func (n Normalized) HasBytes() bool {
	return len(n.Raw) > 0 || len(n.Samples) > 0
}

// Float64 returns the samples scaled to [-1, 1).
func (n Normalized) Float64() []float64 {
	out := make([]float64, len(n.Samples))
	for i, s := range n.Samples {
		out[i] = float64(s) / 32768
	}
	return out
}

// PCM16LE returns the samples as little-endian bytes.
func (n Normalized) PCM16LE() []byte {
	out := make([]byte, len(n.Samples)*2)
	for i, s := range n.Samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func newNormalized(samples []float64, rate int, path DecodePath, format string) Normalized {
	if rate != TargetSampleRate {
		samples = resample(samples, rate, TargetSampleRate)
	}
	pcm := toInt16(samples)
	return Normalized{
		Samples:    pcm,
		SampleRate: TargetSampleRate,
		Duration:   float64(len(pcm)) / TargetSampleRate,
		Path:       path,
		Format:     format,
	}
}

// resample converts between rates by linear interpolation.
func resample(in []float64, from, to int) []float64 {
	if from == to || len(in) == 0 || from <= 0 {
		return in
	}
	n := int(int64(len(in)) * int64(to) / int64(from))
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	step := float64(from) / float64(to)
	last := len(in) - 1
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= last {
			out[i] = in[last]
			continue
		}
		frac := pos - float64(idx)
		out[i] = in[idx] + frac*(in[idx+1]-in[idx])
	}
	return out
}

func toInt16(in []float64) []int16 {
	out := make([]int16, len(in))
	for i, v := range in {
		v *= 32768
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}
