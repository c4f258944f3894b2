package partition

import (
	"fmt"

	"go.uber.org/zap"
)

// Options identify the partition to build
type Options struct {
	// ID is the 0-based partition id.
	ID int
	// NumPartitions is how many partitions divide the global stream.
	NumPartitions int
	// Partitioner assigns global positions to partitions. Defaults to ModPartitioner.
	Partitioner Partitioner
}

func (o Options) validate() error {
	if o.NumPartitions < 1 {
		return fmt.Errorf("%w: partition count must be at least 1, got: %d", ErrInvalidPartition, o.NumPartitions)
	}
	if o.ID < 0 || o.ID >= o.NumPartitions {
		return fmt.Errorf("%w: partition id %d outside [0, %d)", ErrInvalidPartition, o.ID, o.NumPartitions)
	}
	return nil
}

func (o Options) partitioner() Partitioner {
	if o.Partitioner == nil {
		return ModPartitioner
	}
	return o.Partitioner
}

// Store holds the records of one partition with dense offsets 0..Size()-1.
// It is never mutated after construction, so concurrent readers need no locking.
type Store struct {
	id            int
	numPartitions int
	offsets       []int64
	payloads      [][]byte
	loadErr       error
}

// Build reads src to the end and keeps the records whose global position the
// partitioner assigns to opts.ID. Kept records are serialized and receive the
// next local offset; skipped records are neither serialized nor counted.
func Build(opts Options, src Source, serialize Serializer) (*Store, error) {
	if err := opts.validate(); err != nil {
		return nil, &LoadError{Partition: opts.ID, Position: -1, Err: err}
	}
	if src == nil || serialize == nil {
		return nil, &LoadError{Partition: opts.ID, Position: -1, Err: fmt.Errorf("source and serializer are required")}
	}

	assign := opts.partitioner()
	var (
		offsets  []int64
		payloads [][]byte
	)

	position := 0
	for ; src.Scan(); position++ {
		record, err := src.Read()
		if err != nil {
			return nil, &LoadError{Partition: opts.ID, Position: position, Err: err}
		}

		assigned := assign(position, opts.NumPartitions)
		if assigned < 0 || assigned >= opts.NumPartitions {
			return nil, &LoadError{
				Partition: opts.ID,
				Position:  position,
				Err:       fmt.Errorf("%w: partitioner returned %d for %d partitions", ErrInvalidPartition, assigned, opts.NumPartitions),
			}
		}
		if assigned != opts.ID {
			continue
		}

		payload, err := serialize(record)
		if err != nil {
			return nil, &LoadError{Partition: opts.ID, Position: position, Err: err}
		}

		// contiguous offsets
		offsets = append(offsets, int64(len(offsets)))
		payloads = append(payloads, payload)
	}
	if err := src.Err(); err != nil {
		return nil, &LoadError{Partition: opts.ID, Position: position, Err: err}
	}

	return &Store{
		id:            opts.ID,
		numPartitions: opts.NumPartitions,
		offsets:       offsets,
		payloads:      payloads,
	}, nil
}

// Load is Build that never fails: on error it logs and returns an empty
// store whose LoadErr reports what went wrong.
func Load(opts Options, src Source, serialize Serializer, logger *zap.Logger) *Store {
	store, err := Build(opts, src, serialize)
	if err != nil {
		if logger != nil {
			logger.Error("Could not load partition, serving it empty",
				zap.Int("partition", opts.ID),
				zap.Int("numPartitions", opts.NumPartitions),
				zap.Error(err),
			)
		}
		return Empty(opts, err)
	}
	return store
}

// Empty returns a store with no records. loadErr may be nil for a
// legitimately empty partition.
func Empty(opts Options, loadErr error) *Store {
	return &Store{
		id:            opts.ID,
		numPartitions: opts.NumPartitions,
		loadErr:       loadErr,
	}
}

// ID returns the partition id
func (s *Store) ID() int { return s.id }

// NumPartitions returns the partition count the store was built against
func (s *Store) NumPartitions() int { return s.numPartitions }

// Size returns the number of records held
func (s *Store) Size() int { return len(s.offsets) }

// LoadErr returns the error that left the store empty, or nil if the load succeeded
func (s *Store) LoadErr() error { return s.loadErr }

// Range returns the offsets and payloads in [start, end).
// The returned slices share memory with the store and must be treated as read-only.
// Callers must pass 0 <= start <= end <= Size().
func (s *Store) Range(start, end int) ([]int64, [][]byte) {
	return s.offsets[start:end:end], s.payloads[start:end:end]
}
