package consumer

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/Sheliakhin-Golang-portfolio/FakeStream/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/FakeStream/internal/fixture"
	"github.com/Sheliakhin-Golang-portfolio/FakeStream/internal/obs"
	"github.com/Sheliakhin-Golang-portfolio/FakeStream/internal/partition"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Topic is the full set of partitions that together cover a dataset
type Topic struct {
	name       string
	partitions []*PartitionConsumer
}

// LoadTopic builds every partition 0..NumPartitions-1 in parallel. Each
// partition runs its own load pass over the dataset.
func LoadTopic(ctx context.Context, cfg *config.StreamConfig, opener fixture.Opener, logger *zap.Logger, metrics *obs.Metrics, opts ...Option) (*Topic, error) {
	if cfg == nil {
		return nil, fmt.Errorf("stream config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	partitions := make([]*PartitionConsumer, cfg.NumPartitions)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for id := range cfg.NumPartitions {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pc, err := NewPartitionConsumer(id, cfg, opener, logger, metrics, opts...)
			if err != nil {
				return fmt.Errorf("partition %d: %w", id, err)
			}
			partitions[id] = pc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Topic{name: cfg.Topic, partitions: partitions}, nil
}

// Name returns the topic name
func (t *Topic) Name() string { return t.name }

// NumPartitions returns how many partitions the topic has
func (t *Topic) NumPartitions() int { return len(t.partitions) }

// Partition returns the consumer for partition id
func (t *Topic) Partition(id int) (*PartitionConsumer, error) {
	if id < 0 || id >= len(t.partitions) {
		return nil, fmt.Errorf("%w: partition id %d outside [0, %d)", partition.ErrInvalidPartition, id, len(t.partitions))
	}
	return t.partitions[id], nil
}

// Reader returns a new Reader over partition id
func (t *Topic) Reader(id int) (*Reader, error) {
	pc, err := t.Partition(id)
	if err != nil {
		return nil, err
	}
	return NewReader(pc, t.name), nil
}

// Close closes every partition
func (t *Topic) Close() error {
	var errs []error
	for _, pc := range t.partitions {
		if err := pc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LoadErr joins the load errors of every partition that is being served
// empty because its load failed. It is nil when all partitions loaded.
func (t *Topic) LoadErr() error {
	var errs []error
	for _, pc := range t.partitions {
		if err := pc.LoadErr(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
