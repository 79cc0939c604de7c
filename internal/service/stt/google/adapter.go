// Package google provides a Google Cloud Speech-to-Text engine.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"speech-rehab-service/internal/service/stt"
)

// Name is the engine tag reported in analysis results.
const Name = "google"

// Config holds recognition settings sent with every stream.
type Config struct {
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
	AudioEncoding  string
}

// DefaultConfig returns the settings used for normalized 16 kHz PCM.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "en-US",
		SampleRateHz:   16000,
		InterimResults: false,
		AudioEncoding:  "LINEAR16",
	}
}

// parseAudioEncoding maps an encoding name to the API enum. Unknown names
// fall back to LINEAR16.
func parseAudioEncoding(name string) speechpb.RecognitionConfig_AudioEncoding {
	switch name {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}

type streamOpener func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error)

// Engine implements stt.Engine using Google Cloud Speech-to-Text.
type Engine struct {
	client *speech.Client
	open   streamOpener
	cfg    Config
}

// New creates a Google engine.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return &Engine{
		client: c,
		open: func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error) {
			return c.StreamingRecognize(ctx)
		},
		cfg: cfg,
	}, nil
}

// Load creates an engine for language. Google engines have no model path.
func Load(ctx context.Context, language, _ string) (stt.Engine, error) {
	cfg := DefaultConfig()
	cfg.LanguageCode = language
	return New(ctx, cfg)
}

func (e *Engine) Name() string     { return Name }
func (e *Engine) Language() string { return e.cfg.LanguageCode }

// Recognize streams pcm in chunks and reports every final result as a
// segment. Google has no trailing hypothesis, so OnFinal receives "".
func (e *Engine) Recognize(ctx context.Context, pcm []byte, sampleRate, chunkSamples int, cb stt.Callback) error {
	if chunkSamples <= 0 {
		chunkSamples = stt.DefaultChunkSamples
	}
	if sampleRate <= 0 {
		sampleRate = e.cfg.SampleRateHz
	}

	stream, err := e.open(ctx)
	if err != nil {
		cb.OnError(err)
		return fmt.Errorf("open recognition stream: %w", err)
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        parseAudioEncoding(e.cfg.AudioEncoding),
					SampleRateHertz: int32(sampleRate),
					LanguageCode:    e.cfg.LanguageCode,
				},
				InterimResults: e.cfg.InterimResults,
			},
		},
	})
	if err != nil {
		cb.OnError(err)
		return fmt.Errorf("send streaming config: %w", err)
	}

	var g errgroup.Group
	g.Go(func() error {
		return e.listen(stream, cb)
	})

	var sendErr error
	chunk := chunkSamples * 2
	for off := 0; off < len(pcm); off += chunk {
		if err := ctx.Err(); err != nil {
			sendErr = err
			break
		}
		end := min(off+chunk, len(pcm))
		err := stream.Send(&speechpb.StreamingRecognizeRequest{
			StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
				AudioContent: pcm[off:end],
			},
		})
		if err != nil {
			sendErr = fmt.Errorf("send audio: %w", err)
			break
		}
	}

	var result *multierror.Error
	if sendErr != nil {
		result = multierror.Append(result, sendErr)
	}
	if err := stream.CloseSend(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close send: %w", err))
	}
	if err := g.Wait(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		cb.OnError(err)
		return err
	}

	cb.OnFinal("")
	return nil
}

// listen receives responses until the server closes the stream.
func (e *Engine) listen(stream speechpb.Speech_StreamingRecognizeClient, cb stt.Callback) error {
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("receive result: %w", err)
		}
		if st := resp.GetError(); st != nil {
			return fmt.Errorf("recognition error %d: %s", st.GetCode(), st.GetMessage())
		}

		for _, r := range resp.GetResults() {
			if !r.GetIsFinal() || len(r.GetAlternatives()) == 0 {
				continue
			}
			if text := r.GetAlternatives()[0].GetTranscript(); text != "" {
				cb.OnSegment(text)
			}
		}
	}
}

// Close releases the client connection.
func (e *Engine) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}
