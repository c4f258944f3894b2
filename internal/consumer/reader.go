package consumer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/segmentio/kafka-go"
)

// ErrReaderClosed is returned by Reader methods after Close
var ErrReaderClosed = errors.New("reader is closed")

// Reader walks one partition with the FetchMessage/CommitMessages shape of a
// kafka-go reader, so ingestion code written against a broker can run on a
// fixture. Unlike a broker reader it returns io.EOF once the partition is
// drained instead of waiting for new messages.
type Reader struct {
	consumer *PartitionConsumer
	topic    string

	mu        sync.Mutex
	pending   []kafka.Message
	next      int64
	committed int64
	closed    bool
}

// NewReader creates a Reader positioned at offset 0
func NewReader(pc *PartitionConsumer, topic string) *Reader {
	return &Reader{consumer: pc, topic: topic}
}

// FetchMessage returns the next message without committing it
func (r *Reader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return kafka.Message{}, ErrReaderClosed
	}

	if len(r.pending) == 0 {
		batch := r.consumer.FetchMessages(r.next, 0)
		if batch.Empty() {
			return kafka.Message{}, io.EOF
		}
		r.pending = batch.Messages(r.topic, r.consumer.ID(), r.consumer.Size())
		r.next = batch.NextOffset
	}

	msg := r.pending[0]
	r.pending = r.pending[1:]
	return msg, nil
}

// CommitMessages marks msgs as processed. The committed offset only moves forward.
func (r *Reader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrReaderClosed
	}
	for _, msg := range msgs {
		if msg.Topic != r.topic || msg.Partition != r.consumer.ID() {
			return fmt.Errorf("commit of %s/%d on reader for %s/%d", msg.Topic, msg.Partition, r.topic, r.consumer.ID())
		}
		r.committed = max(r.committed, msg.Offset+1)
	}
	return nil
}

// Offset returns the offset of the next message FetchMessage will return
func (r *Reader) Offset() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.pending) > 0 {
		return r.pending[0].Offset
	}
	return r.next
}

// Committed returns the offset after the highest committed message
func (r *Reader) Committed() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.committed
}

// Lag returns how many messages remain after Offset
func (r *Reader) Lag() int64 {
	return max(r.consumer.Size()-r.Offset(), 0)
}

// SetOffset moves the reader so the next FetchMessage starts at offset
func (r *Reader) SetOffset(offset int64) error {
	if offset < 0 {
		return fmt.Errorf("offset must be non-negative, got: %d", offset)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrReaderClosed
	}
	r.pending = nil
	r.next = offset
	return nil
}

// Close stops the reader. It does not close the underlying partition.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.pending = nil
	return nil
}
