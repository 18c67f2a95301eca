// Package kafka publishes finalized anomaly results to a sink topic for
// downstream consumers. The sink is optional and best-effort: a publish
// failure never disturbs the committed result set.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/weather-anomaly-service/internal/config"
	"github.com/couchcryptid/weather-anomaly-service/internal/domain"
)

// Writer produces result messages to a Kafka topic.
// It implements analysis.ResultSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured result topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaResultTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishResults serializes and publishes the finalized results of a run
// in a single WriteMessages call for efficiency.
func (w *Writer) PublishResults(ctx context.Context, p domain.Parameter, results []domain.AnomalyResult) error {
	if len(results) == 0 {
		return nil
	}
	now := time.Now().UTC()
	msgs := make([]kafkago.Message, len(results))
	for i := range results {
		msg, err := serializeToMessage(p, results[i], now)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an AnomalyResult into a Kafka message keyed
// by unit ID, so downstream compacted topics keep one row per district.
func serializeToMessage(p domain.Parameter, result domain.AnomalyResult, finalizedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize anomaly result: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(result.UnitID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "parameter", Value: []byte(p)},
			{Key: "finalized_at", Value: []byte(finalizedAt.Format(time.RFC3339))},
		},
	}, nil
}
