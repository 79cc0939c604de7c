package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE

	minWAVRate = 4000
	maxWAVRate = 192000
)

type wavFormat struct {
	audioFormat   uint16
	channels      int
	sampleRate    int
	bitsPerSample int
}

// decodeWAV parses a RIFF/WAVE container and returns mono samples in [-1, 1].
func decodeWAV(data []byte) ([]float64, int, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("%w: not a RIFF/WAVE container", ErrDecodeFailure)
	}

	var (
		format  *wavFormat
		payload []byte
	)
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := data[off+8:]
		if size > len(body) {
			// Streaming writers leave the size unset; take what is there.
			size = len(body)
		}
		body = body[:size]

		switch id {
		case "fmt ":
			f, err := parseWAVFormat(body)
			if err != nil {
				return nil, 0, err
			}
			format = f
		case "data":
			payload = body
		}

		off += 8 + size + size%2
		if format != nil && payload != nil {
			break
		}
	}

	if format == nil {
		return nil, 0, fmt.Errorf("%w: missing fmt chunk", ErrDecodeFailure)
	}
	if payload == nil {
		return nil, 0, fmt.Errorf("%w: missing data chunk", ErrDecodeFailure)
	}

	samples, err := decodeWAVSamples(payload, format)
	if err != nil {
		return nil, 0, err
	}
	return samples, format.sampleRate, nil
}

func parseWAVFormat(body []byte) (*wavFormat, error) {
	if len(body) < 16 {
		return nil, fmt.Errorf("%w: short fmt chunk", ErrDecodeFailure)
	}
	f := &wavFormat{
		audioFormat:   binary.LittleEndian.Uint16(body[0:2]),
		channels:      int(binary.LittleEndian.Uint16(body[2:4])),
		sampleRate:    int(binary.LittleEndian.Uint32(body[4:8])),
		bitsPerSample: int(binary.LittleEndian.Uint16(body[14:16])),
	}
	if f.audioFormat == wavFormatExtensible {
		// The sub-format GUID starts with the real format code.
		if len(body) < 26 {
			return nil, fmt.Errorf("%w: short extensible fmt chunk", ErrDecodeFailure)
		}
		f.audioFormat = binary.LittleEndian.Uint16(body[24:26])
	}
	if f.channels <= 0 || f.sampleRate < minWAVRate || f.sampleRate > maxWAVRate {
		return nil, fmt.Errorf("%w: invalid fmt (channels=%d rate=%d)", ErrDecodeFailure, f.channels, f.sampleRate)
	}
	return f, nil
}

func decodeWAVSamples(payload []byte, f *wavFormat) ([]float64, error) {
	width := f.bitsPerSample / 8
	switch {
	case f.audioFormat == wavFormatPCM && width >= 1 && width <= 4:
	case f.audioFormat == wavFormatFloat && width == 4:
	default:
		return nil, fmt.Errorf("%w: unsupported wav encoding format=%d bits=%d",
			ErrDecodeFailure, f.audioFormat, f.bitsPerSample)
	}

	frameSize := width * f.channels
	frames := len(payload) / frameSize
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < f.channels; ch++ {
			off := i*frameSize + ch*width
			sum += wavSample(payload[off:off+width], f.audioFormat)
		}
		out[i] = sum / float64(f.channels)
	}
	return out, nil
}

func wavSample(b []byte, format uint16) float64 {
	if format == wavFormatFloat {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	}
	switch len(b) {
	case 1:
		// 8-bit PCM is unsigned.
		return (float64(b[0]) - 128) / 128
	case 2:
		return float64(int16(binary.LittleEndian.Uint16(b))) / 32768
	case 3:
		v := int32(b[0]) | int32(b[1])<<8 | int32(int8(b[2]))<<16
		return float64(v) / 8388608
	default:
		return float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648
	}
}

// EncodeWAV wraps mono 16-bit samples in a canonical 44-byte-header WAV.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	dataSize := len(samples) * 2
	var buf bytes.Buffer
	buf.Grow(44 + dataSize)

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(wavFormatPCM))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	_ = binary.Write(&buf, binary.LittleEndian, samples)
	return buf.Bytes()
}
