package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/hashicorp/go-multierror"

	"speech-rehab-service/internal/observability/logging"
	"speech-rehab-service/internal/observability/metrics"
)

var (
	// ErrTooLarge is returned when an upload exceeds Limits.MaxBytes.
	ErrTooLarge = errors.New("audio upload too large")
	// ErrTooLong is returned when decoded audio exceeds Limits.MaxDuration.
	ErrTooLong = errors.New("audio too long")
)

// Limits bounds what the normalizer accepts. Zero values disable a check.
type Limits struct {
	MaxBytes    int64
	MaxDuration time.Duration
}

// Normalizer turns uploads of any supported container into Normalized PCM.
type Normalizer struct {
	limits     Limits
	transcoder Transcoder
}

// NewNormalizer creates a normalizer. A nil transcoder disables the ffmpeg path.
func NewNormalizer(limits Limits, transcoder Transcoder) *Normalizer {
	return &Normalizer{limits: limits, transcoder: transcoder}
}

// CheckSize rejects uploads larger than the configured limit.
func (n *Normalizer) CheckSize(size int64) error {
	if n.limits.MaxBytes > 0 && size > n.limits.MaxBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, size, n.limits.MaxBytes)
	}
	return nil
}

// Normalize decodes buf. It never fails: when every decoder rejects the input
// the result is Degraded with the raw bytes passed through and Err set.
func (n *Normalizer) Normalize(ctx context.Context, buf Buffer) Normalized {
	log := logging.WithComponent("audio")

	if len(buf.Data) == 0 {
		return Normalized{
			SampleRate: TargetSampleRate,
			Path:       PathPassthrough,
			Degraded:   true,
			Err:        fmt.Errorf("%w: empty upload", ErrDecodeFailure),
		}
	}

	if err := n.CheckSize(int64(len(buf.Data))); err != nil {
		log.Warn().Err(err).Msg("Audio upload rejected")
		return n.done(Normalized{
			SampleRate: TargetSampleRate,
			Path:       PathPassthrough,
			Degraded:   true,
			Err:        err,
		})
	}

	format := normalizeFormat(buf.Format)
	if format == "" {
		format = mimetype.Detect(buf.Data).Extension()
	}

	var errs *multierror.Error
	switch format {
	case ".wav":
		samples, rate, err := decodeWAV(buf.Data)
		if err == nil {
			return n.decoded(samples, rate, PathWAV, format)
		}
		errs = multierror.Append(errs, err)
	case ".ogg", ".oga", ".ogx", ".opus":
		samples, rate, err := decodeOggOpus(buf.Data)
		if err == nil {
			return n.decoded(samples, rate, PathOggOpus, format)
		}
		errs = multierror.Append(errs, err)
	}

	if n.transcoder != nil {
		wav, err := n.transcoder.Transcode(ctx, buf.Data, format)
		if err == nil {
			samples, rate, derr := decodeWAV(wav)
			if derr == nil {
				return n.decoded(samples, rate, PathTranscode, format)
			}
			err = derr
		}
		errs = multierror.Append(errs, err)
	}

	if errs == nil {
		errs = multierror.Append(errs, fmt.Errorf("%w: unsupported format %q", ErrDecodeFailure, format))
	}
	log.Warn().Err(errs).Str("format", format).Int("bytes", len(buf.Data)).
		Msg("Audio normalization failed, passing raw bytes through")

	return n.done(Normalized{
		SampleRate: TargetSampleRate,
		Path:       PathPassthrough,
		Format:     format,
		Degraded:   true,
		Raw:        buf.Data,
		Err:        errs.ErrorOrNil(),
	})
}

// decoded resamples to the target rate unless the clip is over the duration
// limit, which is checked before any allocation.
func (n *Normalizer) decoded(samples []float64, rate int, path DecodePath, format string) Normalized {
	if n.limits.MaxDuration > 0 && rate > 0 {
		d := time.Duration(float64(len(samples)) / float64(rate) * float64(time.Second))
		if d > n.limits.MaxDuration {
			err := fmt.Errorf("%w: %s exceeds %s", ErrTooLong, d.Round(time.Millisecond), n.limits.MaxDuration)
			log := logging.WithComponent("audio")
			log.Warn().Err(err).Str("format", format).Msg("Audio rejected")
			return n.done(Normalized{
				SampleRate: TargetSampleRate,
				Path:       PathPassthrough,
				Format:     format,
				Degraded:   true,
				Err:        err,
			})
		}
	}
	return n.done(newNormalized(samples, rate, path, format))
}

func (n *Normalizer) done(out Normalized) Normalized {
	metrics.DefaultMetrics.RecordDecodePath(string(out.Path))
	return out
}

func normalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		return ""
	}
	if !strings.HasPrefix(format, ".") {
		format = "." + format
	}
	return format
}
