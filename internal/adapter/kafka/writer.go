package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/vaccination-data-etl/internal/adapter/export"
	"github.com/couchcryptid/vaccination-data-etl/internal/config"
	"github.com/couchcryptid/vaccination-data-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes one message per country document to a Kafka topic.
// It implements pipeline.Loader.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Name implements pipeline.Loader.
func (w *Writer) Name() string { return "kafka" }

// Load serializes every country document of the dataset and publishes them
// in a single WriteMessages call.
func (w *Writer) Load(ctx context.Context, ds domain.Dataset) error {
	docs := export.CountryDocuments(ds.Records())
	if len(docs) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(docs))
	for i := range docs {
		msg, err := serializeToMessage(docs[i], ds.RunID, ds.GeneratedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d documents: %w", len(msgs), err)
	}
	w.logger.Info("country documents published", "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a CountryDocument into a Kafka message keyed by country.
func serializeToMessage(doc export.CountryDocument, runID string, generatedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s document: %w", doc.Country, err)
	}
	return kafkago.Message{
		Key:   []byte(doc.Country),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "iso_code", Value: []byte(doc.ISOCode)},
			{Key: "run_id", Value: []byte(runID)},
			{Key: "generated_at", Value: []byte(generatedAt.Format(time.RFC3339))},
		},
	}, nil
}
