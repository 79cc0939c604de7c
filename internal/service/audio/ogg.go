package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/pion/opus"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

const opusRate = 48000

// silkFrameMs is the frame duration for SILK-only TOC configs 0..11.
var silkFrameMs = [4]int{10, 20, 40, 60}

// decodeOggOpus decodes an Ogg/Opus stream with one packet per page. Streams
// the pure-Go decoder cannot handle (CELT or hybrid frames, multi-frame
// packets) return an error so the caller can fall back to a transcoder.
func decodeOggOpus(data []byte) ([]float64, int, error) {
	reader, _, err := oggreader.NewWith(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: ogg header: %v", ErrDecodeFailure, err)
	}

	dec := opus.NewDecoder()
	out := make([]byte, 60*opusRate/1000*2*2)
	var mono []float64

	for {
		page, _, err := reader.ParseNextPage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("%w: ogg page: %v", ErrDecodeFailure, err)
		}
		if len(page) == 0 || bytes.HasPrefix(page, []byte("OpusHead")) || bytes.HasPrefix(page, []byte("OpusTags")) {
			continue
		}

		samples, err := opusFrameSamples(page[0])
		if err != nil {
			return nil, 0, err
		}
		if _, _, err := dec.Decode(page, out); err != nil {
			return nil, 0, fmt.Errorf("%w: opus: %v", ErrDecodeFailure, err)
		}
		mono = appendOpusPCM(mono, out, samples, page[0]&0x04 != 0)
	}

	if len(mono) == 0 {
		return nil, 0, fmt.Errorf("%w: ogg stream has no audio packets", ErrDecodeFailure)
	}
	return decimate3(mono), TargetSampleRate, nil
}

// opusFrameSamples returns the number of 48 kHz samples per channel a
// single-frame SILK packet decodes to.
func opusFrameSamples(toc byte) (int, error) {
	config := int(toc >> 3)
	if config > 11 {
		return 0, fmt.Errorf("%w: opus config %d is not SILK", ErrDecodeFailure, config)
	}
	if toc&0x03 != 0 {
		return 0, fmt.Errorf("%w: multi-frame opus packets are unsupported", ErrDecodeFailure)
	}
	return silkFrameMs[config%4] * opusRate / 1000, nil
}

func appendOpusPCM(dst []float64, pcm []byte, samples int, stereo bool) []float64 {
	channels := 1
	if stereo {
		channels = 2
	}
	for i := 0; i < samples; i++ {
		off := i * channels * 2
		if off+2*channels > len(pcm) {
			break
		}
		v := float64(int16(binary.LittleEndian.Uint16(pcm[off:])))
		if stereo {
			v = (v + float64(int16(binary.LittleEndian.Uint16(pcm[off+2:])))) / 2
		}
		dst = append(dst, v/32768)
	}
	return dst
}

// decimate3 converts 48 kHz to 16 kHz by averaging each group of three samples.
func decimate3(in []float64) []float64 {
	out := make([]float64, len(in)/3)
	for i := range out {
		out[i] = (in[i*3] + in[i*3+1] + in[i*3+2]) / 3
	}
	return out
}
