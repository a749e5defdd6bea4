package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/adcontext-bridge/internal/config"
	"github.com/couchcryptid/adcontext-bridge/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the report writer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes delivery reports to a Kafka topic.
// It implements pipeline.ReportPublisher.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured report topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaReportTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishReport serializes one delivery report, keyed by registration id so
// all passes for a consumer land on the same partition.
func (w *Writer) PublishReport(ctx context.Context, report domain.DeliveryReport) error {
	msg, err := serializeToMessage(report)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write delivery report: %w", err)
	}
	w.logger.Debug("delivery report published", "registration_id", report.RegistrationID)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a DeliveryReport into a Kafka message.
func serializeToMessage(report domain.DeliveryReport) (kafkago.Message, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize delivery report: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(report.RegistrationID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "hook_invoked", Value: []byte(strconv.FormatBool(report.HookInvoked))},
			{Key: "delivered_at", Value: []byte(report.DeliveredAt.Format(time.RFC3339))},
		},
	}, nil
}
