package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speech-rehab-service/internal/models"
)

type recordingWriter struct {
	mu       sync.Mutex
	msgs     []kafka.Message
	err      error
	closeErr error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return w.closeErr }

type rejectAll struct{}

func (rejectAll) Validate(any) error { return errors.New("invalid event") }

func completed() models.AnalysisCompleted {
	return models.AnalysisCompleted{
		EventType:      models.EventTypeAnalysisCompleted,
		AnalysisID:     "a-1",
		UserID:         "u-1",
		Timestamp:      1700000000000,
		Language:       "en-US",
		RecognizedText: "hello",
		OverallScore:   96,
	}
}

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg, nil)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.enabled {
				t.Error("expected publisher to be disabled")
			}
			if p.writerReports != nil || p.writerFailures != nil {
				t.Error("expected nil writers when disabled")
			}
		})
	}
}

func TestNew_ConfigValues(t *testing.T) {
	p := New(&Config{
		Enabled:       false,
		Brokers:       []string{"localhost:9092"},
		TopicReports:  "test.reports",
		TopicFailures: "test.failures",
		Principal:     "test-principal",
	}, nil)

	assert.Equal(t, "test-principal", p.principal)
	assert.Equal(t, "test.reports", p.topicReports)
	assert.Equal(t, "test.failures", p.topicFailures)
}

func TestNew_EnabledCreatesWriters(t *testing.T) {
	p := New(&Config{Enabled: true, Brokers: []string{"localhost:9092"}, TopicReports: "r", TopicFailures: "f"}, nil)

	assert.True(t, p.enabled)
	assert.NotNil(t, p.writerReports)
	assert.NotNil(t, p.writerFailures)
	assert.NoError(t, p.Close())
}

func TestPublisher_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false}, nil)

	assert.NoError(t, p.PublishReport(context.Background(), completed()))
	assert.NoError(t, p.PublishFailure(context.Background(), models.AnalysisFailed{
		EventType: models.EventTypeAnalysisFailed, AnalysisID: "a-2", Reason: "boom",
	}))
}

func TestPublisher_WritesToTopicWriters(t *testing.T) {
	reports, failures := &recordingWriter{}, &recordingWriter{}
	p := &Publisher{
		writerReports:  reports,
		writerFailures: failures,
		principal:      "svc",
		topicReports:   "reports",
		topicFailures:  "failures",
		enabled:        true,
		metrics:        New(nil, nil).metrics,
	}

	require.NoError(t, p.PublishReport(context.Background(), completed()))
	require.NoError(t, p.PublishFailure(context.Background(), models.AnalysisFailed{
		EventType: models.EventTypeAnalysisFailed, AnalysisID: "a-2", Reason: "boom",
	}))

	require.Len(t, reports.msgs, 1)
	msg := reports.msgs[0]
	assert.Equal(t, "u-1", string(msg.Key))
	assert.Contains(t, msg.Headers, kafka.Header{Key: "eventType", Value: []byte(models.EventTypeAnalysisCompleted)})
	assert.Contains(t, msg.Headers, kafka.Header{Key: "principal", Value: []byte("svc")})

	var got models.AnalysisCompleted
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, completed(), got)

	require.Len(t, failures.msgs, 1)
	assert.Equal(t, "a-2", string(failures.msgs[0].Key), "falls back to analysis ID without a user")
}

func TestPublisher_WriteError(t *testing.T) {
	p := &Publisher{
		writerReports: &recordingWriter{err: errors.New("broker down")},
		topicReports:  "reports",
		enabled:       true,
		metrics:       New(nil, nil).metrics,
	}

	assert.EqualError(t, p.PublishReport(context.Background(), completed()), "broker down")
}

func TestPublisher_ValidationFailureSkipsWrite(t *testing.T) {
	w := &recordingWriter{}
	p := &Publisher{
		writerReports: w,
		topicReports:  "reports",
		enabled:       true,
		validator:     rejectAll{},
		metrics:       New(nil, nil).metrics,
	}

	assert.Error(t, p.PublishReport(context.Background(), completed()))
	assert.Empty(t, w.msgs)
}

func TestPublisher_CloseAggregatesErrors(t *testing.T) {
	p := &Publisher{
		writerReports:  &recordingWriter{closeErr: errors.New("a")},
		writerFailures: &recordingWriter{closeErr: errors.New("b")},
	}

	err := p.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")
}
