package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrTranscoderUnavailable is returned when the external transcoder binary
// cannot be found.
var ErrTranscoderUnavailable = errors.New("audio transcoder unavailable")

// Transcoder converts an arbitrary container into a mono 16 kHz 16-bit WAV.
type Transcoder interface {
	Transcode(ctx context.Context, data []byte, format string) ([]byte, error)
}

// FFmpeg shells out to an ffmpeg binary. Every call runs in its own scratch
// directory which is removed before Transcode returns.
type FFmpeg struct {
	Path    string        // binary name or absolute path, default "ffmpeg"
	Timeout time.Duration // per-call limit, default 30s
	TempDir string        // parent of the scratch directory, default os.TempDir()
}

// Transcode writes data to a scratch file, runs ffmpeg and returns the WAV output.
func (f FFmpeg) Transcode(ctx context.Context, data []byte, format string) ([]byte, error) {
	bin := f.Path
	if bin == "" {
		bin = "ffmpeg"
	}
	resolved, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscoderUnavailable, err)
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dir, err := os.MkdirTemp(f.TempDir, "speech-rehab-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	ext := format
	if ext == "" {
		ext = ".bin"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	in := filepath.Join(dir, "input"+ext)
	out := filepath.Join(dir, "output.wav")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, fmt.Errorf("write scratch input: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, resolved,
		"-nostdin", "-hide_banner", "-loglevel", "error", "-y",
		"-i", in,
		"-ac", "1", "-ar", "16000", "-sample_fmt", "s16",
		"-f", "wav", out,
	)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	wav, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("read transcoded output: %w", err)
	}
	return wav, nil
}
