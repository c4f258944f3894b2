// Package consumer serves simulated stream partitions through an
// offset-based batch fetch API.
package consumer

import (
	"fmt"
	"time"

	"github.com/Sheliakhin-Golang-portfolio/FakeStream/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/FakeStream/internal/fixture"
	"github.com/Sheliakhin-Golang-portfolio/FakeStream/internal/obs"
	"github.com/Sheliakhin-Golang-portfolio/FakeStream/internal/partition"
	"go.uber.org/zap"
)

// Option customizes how a partition is built
type Option func(*partition.Options)

// WithPartitioner replaces the default round-robin record assignment
func WithPartitioner(p partition.Partitioner) Option {
	return func(o *partition.Options) {
		o.Partitioner = p
	}
}

// PartitionConsumer serves one partition whose records were loaded eagerly
// at construction. It holds no cursor; callers thread Batch.NextOffset into
// the next fetch. Safe for concurrent use.
type PartitionConsumer struct {
	store            *partition.Store
	defaultBatchSize int
	logger           *zap.Logger
	metrics          *obs.Metrics
}

// NewPartitionConsumer loads partition partitionID from the dataset opened by
// opener. A dataset that cannot be opened or decoded yields an empty
// partition; the failure is logged and reported by LoadErr. An error is
// returned only when the arguments cannot describe a partition.
func NewPartitionConsumer(partitionID int, cfg *config.StreamConfig, opener fixture.Opener, logger *zap.Logger, metrics *obs.Metrics, opts ...Option) (*PartitionConsumer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("stream config cannot be nil")
	}
	if opener == nil {
		return nil, fmt.Errorf("opener cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if partitionID < 0 || partitionID >= cfg.NumPartitions {
		return nil, fmt.Errorf("%w: partition id %d outside [0, %d)", partition.ErrInvalidPartition, partitionID, cfg.NumPartitions)
	}

	popts := partition.Options{ID: partitionID, NumPartitions: cfg.NumPartitions}
	for _, opt := range opts {
		opt(&popts)
	}

	start := time.Now()
	store := loadStore(popts, opener, logger)

	if store.LoadErr() != nil {
		metrics.IncrementLoadFailures(partitionID)
	}
	metrics.SetPartitionRecords(partitionID, store.Size())

	logger.Info("Loaded partition",
		zap.Int("partition", partitionID),
		zap.Int("numPartitions", cfg.NumPartitions),
		zap.Int("records", store.Size()),
		zap.Bool("loadFailed", store.LoadErr() != nil),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &PartitionConsumer{
		store:            store,
		defaultBatchSize: cfg.BatchSize,
		logger:           logger,
		metrics:          metrics,
	}, nil
}

// loadStore opens the dataset, builds the store and always releases the dataset.
// Panics from decoders are converted into a load failure.
func loadStore(opts partition.Options, opener fixture.Opener, logger *zap.Logger) (store *partition.Store) {
	defer func() {
		if r := recover(); r != nil {
			err := &partition.LoadError{Partition: opts.ID, Position: -1, Err: fmt.Errorf("panic: %v", r)}
			logger.Error("Recovered from panic while loading partition",
				zap.Int("partition", opts.ID),
				zap.Any("panic", r),
			)
			store = partition.Empty(opts, err)
		}
	}()

	ds, err := opener.Open(opts.ID)
	if err != nil {
		logger.Error("Could not open dataset, serving partition empty",
			zap.Int("partition", opts.ID),
			zap.Error(err),
		)
		return partition.Empty(opts, &partition.LoadError{Partition: opts.ID, Position: -1, Err: err})
	}
	defer func() {
		if err := ds.Close(); err != nil {
			logger.Warn("Failed to release dataset",
				zap.Int("partition", opts.ID),
				zap.Error(err),
			)
		}
	}()

	return partition.Load(opts, ds.Source, ds.Serialize, logger)
}

// ID returns the partition id
func (c *PartitionConsumer) ID() int { return c.store.ID() }

// Size returns the number of records in the partition
func (c *PartitionConsumer) Size() int64 { return int64(c.store.Size()) }

// LoadErr returns why the partition was served empty, or nil if it loaded
func (c *PartitionConsumer) LoadErr() error { return c.store.LoadErr() }

// DefaultBatchSize returns the batch size FetchMessages uses
func (c *PartitionConsumer) DefaultBatchSize() int { return c.defaultBatchSize }

// Fetch returns the records at offsets [start, min(start+maxBatchSize, Size())).
// Starting at or beyond the end, before 0, or with a non-positive cap yields
// an empty batch whose NextOffset is start. The timeout is accepted for
// interface compatibility and ignored; Fetch never blocks.
func (c *PartitionConsumer) Fetch(start int64, maxBatchSize int, _ time.Duration) Batch {
	size := c.Size()
	if start < 0 || start >= size || maxBatchSize <= 0 {
		c.metrics.ObserveFetch(c.ID(), 0)
		return Batch{NextOffset: start}
	}

	end := size
	if int64(maxBatchSize) < size-start {
		end = start + int64(maxBatchSize)
	}

	offsets, payloads := c.store.Range(int(start), int(end))
	batch := Batch{
		Records:    make([][]byte, len(payloads)),
		Offsets:    append([]int64(nil), offsets...),
		NextOffset: end,
	}
	for i, p := range payloads {
		batch.Records[i] = append([]byte(nil), p...)
	}

	c.metrics.ObserveFetch(c.ID(), batch.Len())
	return batch
}

// FetchMessages fetches up to the configured default batch size from start
func (c *PartitionConsumer) FetchMessages(start int64, timeout time.Duration) Batch {
	return c.Fetch(start, c.defaultBatchSize, timeout)
}

// Close releases the consumer. Staging resources are already released at
// construction, so there is nothing left to free.
func (c *PartitionConsumer) Close() error {
	return nil
}
