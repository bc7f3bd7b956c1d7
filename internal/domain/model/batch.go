package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// batchWireType tags the data object on the wire.
const batchWireType = "telemetry_batch"

// Batch is a finite, ordered collection of records sent or persisted as one
// unit. A batch is immutable from assembly through delivery or persistence;
// the BatchID keys its slot in the durable spool.
type Batch struct {
	BatchID   string
	CreatedAt time.Time
	Records   []TelemetryRecord
}

// NewBatch assembles a batch from the given records. The records slice is
// owned by the batch after this call.
func NewBatch(records []TelemetryRecord) (*Batch, error) {
	if len(records) == 0 {
		return nil, ErrEmptyBatch
	}
	return &Batch{
		BatchID:   uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Records:   records,
	}, nil
}

// Size returns the record count.
func (b *Batch) Size() int {
	return len(b.Records)
}

// batchEnvelope is the top-level wire object.
type batchEnvelope struct {
	BatchID   string    `json:"batch_id"`
	Timestamp string    `json:"timestamp"`
	Data      batchData `json:"data"`
}

// batchData is the nested data object carrying the records.
type batchData struct {
	Type      string            `json:"type"`
	Events    []TelemetryRecord `json:"events"`
	BatchSize int               `json:"batch_size"`
	Timestamp string            `json:"timestamp"`
}

// MarshalJSON renders the batch in its wire shape.
func (b *Batch) MarshalJSON() ([]byte, error) {
	ts := b.CreatedAt.UTC().Format(time.RFC3339Nano)
	return json.Marshal(batchEnvelope{
		BatchID:   b.BatchID,
		Timestamp: ts,
		Data: batchData{
			Type:      batchWireType,
			Events:    b.Records,
			BatchSize: len(b.Records),
			Timestamp: ts,
		},
	})
}

// UnmarshalJSON parses the wire shape and checks the size invariant.
func (b *Batch) UnmarshalJSON(data []byte) error {
	var env batchEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	if env.BatchID == "" {
		return fmt.Errorf("%w: missing batch_id", ErrMalformedBatch)
	}
	if len(env.Data.Events) == 0 {
		return ErrEmptyBatch
	}
	if env.Data.BatchSize != len(env.Data.Events) {
		return fmt.Errorf("%w: batch_size %d does not match %d events",
			ErrMalformedBatch, env.Data.BatchSize, len(env.Data.Events))
	}
	ts, err := time.Parse(time.RFC3339Nano, env.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: timestamp: %v", ErrMalformedBatch, err)
	}
	b.BatchID = env.BatchID
	b.CreatedAt = ts
	b.Records = env.Data.Events
	return nil
}
