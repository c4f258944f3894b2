// Package fixture opens the datasets that feed simulated partitions: Avro
// record files shipped as tar.gz archives, or in-memory payloads for tests.
package fixture

import (
	"errors"

	"github.com/Sheliakhin-Golang-portfolio/FakeStream/internal/partition"
)

// Opener opens the global record stream for one partition's load pass.
// Each call returns a fresh Dataset positioned at the start of the stream.
type Opener interface {
	Open(partitionID int) (*Dataset, error)
}

// OpenerFunc adapts a function to the Opener interface
type OpenerFunc func(partitionID int) (*Dataset, error)

func (f OpenerFunc) Open(partitionID int) (*Dataset, error) { return f(partitionID) }

// Dataset is an opened record stream plus the serializer matching its
// records. Close releases every resource acquired by Open, including staging
// directories, and must be called exactly once.
type Dataset struct {
	Source    partition.Source
	Serialize partition.Serializer

	closers []func() error
}

// NewDataset wraps a source and serializer. closers run in reverse order on Close.
func NewDataset(src partition.Source, serialize partition.Serializer, closers ...func() error) *Dataset {
	return &Dataset{Source: src, Serialize: serialize, closers: closers}
}

// Close runs the closers last-in first-out and joins their errors
func (d *Dataset) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// InMemory serves pre-serialized records. Every partition sees the same
// global stream.
type InMemory struct {
	Records [][]byte
}

// Open returns a Dataset over the in-memory records
func (m InMemory) Open(int) (*Dataset, error) {
	return NewDataset(partition.NewSliceSource(m.Records), partition.BytesSerializer), nil
}
