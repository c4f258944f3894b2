package partition

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPartition is returned for a partition id or count that cannot describe a partition.
	ErrInvalidPartition = errors.New("invalid partition")

	// ErrSourceExhausted is returned by Read when the source has no more records.
	ErrSourceExhausted = errors.New("source exhausted")
)

// LoadError reports why a partition could not be built.
// Position is the global stream position being processed, or -1 when the
// failure is not tied to a record.
type LoadError struct {
	Partition int
	Position  int
	Err       error
}

func (e *LoadError) Error() string {
	if e == nil || e.Err == nil {
		return "partition load failed"
	}
	if e.Position < 0 {
		return fmt.Sprintf("partition %d load failed: %v", e.Partition, e.Err)
	}
	return fmt.Sprintf("partition %d load failed at record %d: %v", e.Partition, e.Position, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error { return e.Err }

// UnsupportedRecordError is returned by BytesSerializer for non-byte records.
type UnsupportedRecordError struct {
	Record any
}

func (e *UnsupportedRecordError) Error() string {
	return fmt.Sprintf("unsupported record type %T", e.Record)
}
