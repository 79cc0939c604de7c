package vosk

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"speech-rehab-service/internal/service/stt"
)

func TestParseText(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"final result", `{"text" : "你好 世界"}`, "你好 世界"},
		{"padded", `{"text": "  hello  "}`, "hello"},
		{"empty", `{"text": ""}`, ""},
		{"partial only", `{"partial": "hel"}`, ""},
		{"invalid json", `not json`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseText(tt.raw); got != tt.want {
				t.Errorf("parseText(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestLoad_MissingModel(t *testing.T) {
	_, err := Load(context.Background(), "zh-CN", t.TempDir()+"/does-not-exist")
	if err == nil {
		t.Fatal("expected error for missing model")
	}
	if !Available && !errors.Is(err, stt.ErrEngineUnavailable) {
		t.Errorf("expected ErrEngineUnavailable without vosk support, got %v", err)
	}
}

func TestModelRef_ReleaseWaitsForRecognition(t *testing.T) {
	model := 42
	ref := newModelRef(&model)

	entered := make(chan struct{})
	finish := make(chan struct{})
	var freed atomic.Bool

	done := make(chan error, 1)
	go func() {
		done <- ref.with(func(m *int) error {
			close(entered)
			<-finish
			if freed.Load() {
				return errors.New("model freed while in use")
			}
			return nil
		})
	}()
	<-entered

	released := make(chan struct{})
	go func() {
		ref.release(func(m *int) { freed.Store(true) })
		close(released)
	}()

	select {
	case <-released:
		t.Fatal("release returned while a recognition held the model")
	case <-time.After(50 * time.Millisecond):
	}

	close(finish)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	<-released
	if !freed.Load() {
		t.Fatal("model was not freed")
	}

	err := ref.with(func(*int) error { return nil })
	if !errors.Is(err, stt.ErrEngineUnavailable) {
		t.Errorf("with() after release = %v, want ErrEngineUnavailable", err)
	}
	ref.release(func(*int) { t.Error("model freed twice") })
}
