package consumer

import (
	"github.com/segmentio/kafka-go"
)

// Batch is a contiguous run of records from one partition.
// Records[i] is stored at Offsets[i]. NextOffset is where the following
// fetch should start. The caller owns every slice in a Batch.
type Batch struct {
	Records    [][]byte
	Offsets    []int64
	NextOffset int64
}

// Len returns the number of records in the batch
func (b Batch) Len() int { return len(b.Records) }

// Empty reports whether the batch holds no records
func (b Batch) Empty() bool { return len(b.Records) == 0 }

// Messages converts the batch into kafka-go messages.
// highWaterMark is the partition size at the time of the fetch.
func (b Batch) Messages(topic string, partitionID int, highWaterMark int64) []kafka.Message {
	if b.Empty() {
		return nil
	}
	msgs := make([]kafka.Message, len(b.Records))
	for i := range b.Records {
		msgs[i] = kafka.Message{
			Topic:         topic,
			Partition:     partitionID,
			Offset:        b.Offsets[i],
			HighWaterMark: highWaterMark,
			Value:         b.Records[i],
		}
	}
	return msgs
}
