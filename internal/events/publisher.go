// Package events publishes analysis outcomes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"speech-rehab-service/internal/models"
	"speech-rehab-service/internal/observability/metrics"
)

// Validator checks an event before it is published.
type Validator interface {
	Validate(event any) error
}

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher publishes completed and failed analyses to separate Kafka topics.
type Publisher struct {
	writerReports  messageWriter
	writerFailures messageWriter
	principal      string
	topicReports   string
	topicFailures  string
	enabled        bool
	validator      Validator
	metrics        *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers       []string
	TopicReports  string
	TopicFailures string
	Principal     string
	Enabled       bool
}

// New creates a Kafka event publisher. Without brokers, or when disabled, the
// publisher only logs events.
func New(cfg *Config, validator Validator) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{validator: validator, metrics: m}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:     cfg.Principal,
			topicReports:  cfg.TopicReports,
			topicFailures: cfg.TopicFailures,
			validator:     validator,
			metrics:       m,
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes.
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicReports", cfg.TopicReports).
		Str("topicFailures", cfg.TopicFailures).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerReports:  newWriter(cfg.TopicReports),
		writerFailures: newWriter(cfg.TopicFailures),
		principal:      cfg.Principal,
		topicReports:   cfg.TopicReports,
		topicFailures:  cfg.TopicFailures,
		enabled:        true,
		validator:      validator,
		metrics:        m,
	}
}

// PublishReport publishes a completed analysis keyed by user, so one user's
// attempts stay ordered on a partition.
func (p *Publisher) PublishReport(ctx context.Context, event models.AnalysisCompleted) error {
	return p.publish(ctx, p.writerReports, p.topicReports, event.EventType, partitionKey(event.UserID, event.AnalysisID), event)
}

// PublishFailure publishes an analysis that ended in a system error.
func (p *Publisher) PublishFailure(ctx context.Context, event models.AnalysisFailed) error {
	return p.publish(ctx, p.writerFailures, p.topicFailures, event.EventType, partitionKey(event.UserID, event.AnalysisID), event)
}

func partitionKey(userID, analysisID string) string {
	if userID != "" {
		return userID
	}
	return analysisID
}

func (p *Publisher) publish(ctx context.Context, writer messageWriter, topic, eventType, key string, event any) error {
	start := time.Now()

	if p.validator != nil {
		if err := p.validator.Validate(event); err != nil {
			log.Error().Err(err).Str("topic", topic).Str("key", key).Msg("Event failed validation")
			p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
			return err
		}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var result *multierror.Error
	if p.writerReports != nil {
		if err := p.writerReports.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if p.writerFailures != nil {
		if err := p.writerFailures.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
