package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

var errNoPartitionKey = errors.New("partition key is required")

// SequenceRepository hands out gap-free, per-partition event sequence numbers.
type SequenceRepository interface {
	NextSequence(ctx context.Context, partitionKey string) (int64, error)
}

// PostgresSequence keeps the last issued number per partition in
// event_sequences. The upsert is a single statement, so concurrent callers
// never receive the same number.
type PostgresSequence struct {
	db *sql.DB
}

func NewSequenceRepository(db *sql.DB) *PostgresSequence {
	return &PostgresSequence{db: db}
}

const nextSequenceSQL = `
INSERT INTO event_sequences (partition_key, last_sequence, updated_at)
VALUES ($1, 1, NOW())
ON CONFLICT (partition_key) DO UPDATE
SET last_sequence = event_sequences.last_sequence + 1,
    updated_at = NOW()
RETURNING last_sequence`

func (r *PostgresSequence) NextSequence(ctx context.Context, partitionKey string) (int64, error) {
	if partitionKey == "" {
		return 0, errNoPartitionKey
	}

	var next int64
	if err := r.db.QueryRowContext(ctx, nextSequenceSQL, partitionKey).Scan(&next); err != nil {
		return 0, fmt.Errorf("increment sequence for %s: %w", partitionKey, err)
	}
	return next, nil
}

// MemorySequence numbers events in process for deployments without durable
// storage. Sequences restart with the process.
type MemorySequence struct {
	mu   sync.Mutex
	last map[string]int64
}

func NewMemorySequence() *MemorySequence {
	return &MemorySequence{last: make(map[string]int64)}
}

func (m *MemorySequence) NextSequence(_ context.Context, partitionKey string) (int64, error) {
	if partitionKey == "" {
		return 0, errNoPartitionKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last[partitionKey]++
	return m.last[partitionKey], nil
}
