package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/egrid-plants/internal/config"
	"github.com/couchcryptid/egrid-plants/internal/domain"
	"github.com/couchcryptid/egrid-plants/internal/observability"
)

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes plant records to a Kafka topic, one JSON message per record.
type Writer struct {
	writer    messageWriter
	batchSize int
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewWriter creates a Kafka producer for the configured publish topic.
func NewWriter(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, batchSize: cfg.BatchSize, logger: logger, metrics: metrics}
}

// Publish writes every record of ds in batches of the configured size. All
// messages of one call share a run ID header. It returns the number of
// records written before any error.
func (w *Writer) Publish(ctx context.Context, ds domain.Dataset) (int, error) {
	runID := uuid.NewString()
	publishedAt := domain.Now()

	size := max(w.batchSize, 1)
	written := 0
	for start := 0; start < len(ds.Records); start += size {
		end := min(start+size, len(ds.Records))
		msgs := make([]kafkago.Message, 0, end-start)
		for _, r := range ds.Records[start:end] {
			msg, err := serializeToMessage(r, runID, publishedAt)
			if err != nil {
				return written, err
			}
			msgs = append(msgs, msg)
		}
		if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
			return written, fmt.Errorf("publish batch at record %d: %w", start, err)
		}
		written += len(msgs)
		w.metrics.RecordsPublished.Add(float64(len(msgs)))
	}

	w.logger.Info("dataset published", "run_id", runID, "records", written)
	return written, nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// PlantMessage is the JSON wire form of a plant record. Null fields are omitted.
type PlantMessage struct {
	Year         int      `json:"year"`
	State        string   `json:"state"`
	PlantName    *string  `json:"plant_name,omitempty"`
	County       *string  `json:"county,omitempty"`
	Lat          *float64 `json:"lat,omitempty"`
	Lon          *float64 `json:"lon,omitempty"`
	PrimaryFuel  *string  `json:"primary_fuel,omitempty"`
	NetGenMWh    *float64 `json:"net_generation_mwh,omitempty"`
	NonrenewMWh  *float64 `json:"nonrenewable_mwh,omitempty"`
	RenewableMWh *float64 `json:"renewable_mwh,omitempty"`
}

// NewPlantMessage converts a record to its wire form.
func NewPlantMessage(r domain.PlantRecord) PlantMessage {
	m := PlantMessage{Year: r.Year, State: r.State}
	if r.PlantName.Valid {
		m.PlantName = &r.PlantName.String
	}
	if r.County.Valid {
		m.County = &r.County.String
	}
	if r.Lat.Valid {
		m.Lat = &r.Lat.Float64
	}
	if r.Lon.Valid {
		m.Lon = &r.Lon.Float64
	}
	if r.PrimaryFuel.Valid {
		m.PrimaryFuel = &r.PrimaryFuel.String
	}
	if r.NetGen.Valid {
		m.NetGenMWh = &r.NetGen.Float64
	}
	if r.Nonrenewable.Valid {
		m.NonrenewMWh = &r.Nonrenewable.Float64
	}
	if r.Renewable.Valid {
		m.RenewableMWh = &r.Renewable.Float64
	}
	return m
}

// serializeToMessage marshals a PlantRecord into a Kafka message keyed by
// year and state, so one state's plants for a year land on one partition.
func serializeToMessage(r domain.PlantRecord, runID string, publishedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(NewPlantMessage(r))
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize plant record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(fmt.Sprintf("%d/%s", r.Year, r.State)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "year", Value: []byte(strconv.Itoa(r.Year))},
			{Key: "published_at", Value: []byte(publishedAt.Format(time.RFC3339))},
		},
	}, nil
}
