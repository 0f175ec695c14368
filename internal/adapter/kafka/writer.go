package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/region-health-etl/internal/config"
	"github.com/couchcryptid/region-health-etl/internal/domain"
)

// Publisher produces finished region records to a Kafka topic.
// It implements pipeline.RecordSink.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher creates a Kafka producer for the configured sink topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger, now: time.Now}
}

// Publish serializes and sends all records in a single WriteMessages call.
// Records are keyed by region code so a region always lands on the same
// partition.
func (p *Publisher) Publish(ctx context.Context, records []domain.RegionRecord) error {
	if len(records) == 0 {
		return nil
	}
	writtenAt := p.now().UTC()
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i], writtenAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d records: %w", len(msgs), err)
	}
	p.logger.Info("records published", "topic", p.writer.Topic, "count", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a RegionRecord into a Kafka message.
func serializeToMessage(rec domain.RegionRecord, writtenAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize region record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.Code),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "region_code", Value: []byte(rec.Code)},
			{Key: "written_at", Value: []byte(writtenAt.Format(time.RFC3339))},
		},
	}, nil
}
