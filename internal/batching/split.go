package batching

import "github.com/sajinavi2006/julomvp-sub029/internal/domain"

// DefaultThreshold is the batch size used when a campaign carries no
// override.
const DefaultThreshold = 500

// Split chunks account ids into numbered batches of at most threshold ids.
// Input order is preserved: batch i (1-based) holds ids
// [(i-1)*threshold, i*threshold). The result depends on nothing but the
// input, so re-running construction for the same id set always rebuilds the
// exact same batches.
func Split(bucket domain.BucketName, accountIDs []int64, threshold int32) []domain.Batch {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	batches := []domain.Batch{}
	size := int(threshold)
	for start := 0; start < len(accountIDs); start += size {
		end := start + size
		if end > len(accountIDs) {
			end = len(accountIDs)
		}

		ids := make([]int64, end-start)
		copy(ids, accountIDs[start:end])
		batches = append(batches, domain.Batch{
			Bucket:     bucket,
			Number:     int32(len(batches) + 1),
			AccountIDs: ids,
		})
	}

	return batches
}
