package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"newsdroid/internal/domain"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MessageWriter is the subset of *kafka.Writer used here.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter keys messages by coin so one coin's signals stay ordered on a partition.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Gzip,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		BatchTimeout: 50 * time.Millisecond,
	}
}

type KafkaPublisher struct {
	tracer trace.Tracer
	writer MessageWriter
	topic  string
}

func NewKafkaPublisher(tracer trace.Tracer, writer MessageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{tracer: tracer, writer: writer, topic: topic}
}

func (k *KafkaPublisher) Name() string { return "kafka" }

func (k *KafkaPublisher) Publish(ctx context.Context, report domain.Report) error {
	ctx, span := k.tracer.Start(ctx, "kafka.publish")
	defer span.End()
	span.SetAttributes(attribute.String("messaging.destination", k.topic), attribute.String("signal.coin", report.Coin))

	value, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(strings.ToLower(report.Coin)),
		Value: value,
		Time:  report.GeneratedAt,
		Headers: []kafka.Header{
			{Key: "run_id", Value: []byte(report.RunID)},
			{Key: "signal_mode", Value: []byte(report.Signal.Mode)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		return fmt.Errorf("write to %s: %w", k.topic, err)
	}
	return nil
}

func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}
