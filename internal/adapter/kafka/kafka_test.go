package kafka

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/egrid-plants/internal/domain"
	"github.com/couchcryptid/egrid-plants/internal/observability"
)

type fakeWriter struct {
	batches [][]kafkago.Message
	failAt  int // 1-based batch number to fail, 0 never
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.failAt > 0 && len(f.batches)+1 == f.failAt {
		return errors.New("broker unavailable")
	}
	f.batches = append(f.batches, msgs)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func newTestWriter(fw *fakeWriter, batchSize int) *Writer {
	return &Writer{
		writer:    fw,
		batchSize: batchSize,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:   observability.NewMetricsForTesting(),
	}
}

func records(n int) domain.Dataset {
	ds := domain.Dataset{}
	for i := range n {
		ds.Records = append(ds.Records, domain.PlantRecord{Year: 2019, State: "TX", NetGen: sql.NullFloat64{Float64: float64(i), Valid: true}})
	}
	return ds
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	rec := domain.PlantRecord{
		Year:        2019,
		State:       "TX",
		PlantName:   sql.NullString{String: "Comanche Peak", Valid: true},
		Lat:         sql.NullFloat64{Float64: 32.2983, Valid: true},
		Lon:         sql.NullFloat64{Float64: -97.785, Valid: true},
		PrimaryFuel: sql.NullString{String: "NUC", Valid: true},
		NetGen:      sql.NullFloat64{Float64: 20000000, Valid: true},
	}

	msg, err := serializeToMessage(rec, "run-1", now)
	require.NoError(t, err)

	assert.Equal(t, []byte("2019/TX"), msg.Key)
	assert.JSONEq(t, `{"year":2019,"state":"TX","plant_name":"Comanche Peak","lat":32.2983,"lon":-97.785,"primary_fuel":"NUC","net_generation_mwh":20000000}`, string(msg.Value))
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "run_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("run-1"), msg.Headers[0].Value)
	assert.Equal(t, []byte("2019"), msg.Headers[1].Value)
	assert.Equal(t, "published_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[2].Value)
}

func TestWriter_PublishBatches(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	fw := &fakeWriter{}
	w := newTestWriter(fw, 4)

	n, err := w.Publish(context.Background(), records(10))
	require.NoError(t, err)

	assert.Equal(t, 10, n)
	require.Len(t, fw.batches, 3)
	assert.Len(t, fw.batches[0], 4)
	assert.Len(t, fw.batches[2], 2)

	runID := string(fw.batches[0][0].Headers[0].Value)
	assert.NotEmpty(t, runID)
	for _, batch := range fw.batches {
		for _, m := range batch {
			assert.Equal(t, runID, string(m.Headers[0].Value), "one run ID per publish")
			assert.Equal(t, "2024-05-01T12:00:00Z", string(m.Headers[2].Value))
		}
	}
}

func TestWriter_PublishStopsOnError(t *testing.T) {
	fw := &fakeWriter{failAt: 2}
	w := newTestWriter(fw, 3)

	n, err := w.Publish(context.Background(), records(7))

	require.Error(t, err)
	assert.Equal(t, 3, n)
	assert.Contains(t, err.Error(), "record 3")
}

func TestWriter_PublishEmpty(t *testing.T) {
	fw := &fakeWriter{}
	w := newTestWriter(fw, 50)

	n, err := w.Publish(context.Background(), domain.Dataset{})

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, fw.batches)
}
