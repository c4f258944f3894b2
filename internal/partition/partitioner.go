// Package partition builds the immutable record store backing one partition
// of a simulated stream.
package partition

// Partitioner maps a record's 0-based position in the global stream onto a
// partition id in [0, numPartitions). It must be a pure function of its inputs.
type Partitioner func(position, numPartitions int) int

// ModPartitioner spreads records round-robin: position % numPartitions.
func ModPartitioner(position, numPartitions int) int {
	return position % numPartitions
}
