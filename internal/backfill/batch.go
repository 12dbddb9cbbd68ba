package backfill

import "fmt"

// SplitBatches partitions signatures into fixed-size batches, preserving
// order. Batch size bounds memory and the RPC burst between store writes.
func SplitBatches[T any](items []T, batchSize int) ([][]T, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}

	batches := make([][]T, 0, (len(items)+batchSize-1)/batchSize)
	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches, nil
}
