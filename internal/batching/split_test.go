package batching

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sajinavi2006/julomvp-sub029/internal/domain"
)

func makeIDs(n int) []int64 {
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(1000 + i)
	}
	return ids
}

func TestSplit_SizesAndOrder(t *testing.T) {
	ids := makeIDs(1200)
	batches := Split(domain.BucketB1, ids, 500)

	assert.Len(t, batches, 3)
	assert.Equal(t, int32(500), batches[0].Size())
	assert.Equal(t, int32(500), batches[1].Size())
	assert.Equal(t, int32(200), batches[2].Size())

	// batch numbering starts at 1 and follows input order
	total := 0
	next := 0
	for i, b := range batches {
		assert.Equal(t, int32(i+1), b.Number)
		for _, id := range b.AccountIDs {
			assert.Equal(t, ids[next], id)
			next++
		}
		total += len(b.AccountIDs)
	}
	assert.Equal(t, len(ids), total)
}

func TestSplit_TotalPreservedForOddThresholds(t *testing.T) {
	cases := []struct {
		n         int
		threshold int32
		batches   int
	}{
		{0, 500, 0},
		{1, 500, 1},
		{499, 500, 1},
		{500, 500, 1},
		{501, 500, 2},
		{7, 3, 3},
	}

	for _, tc := range cases {
		batches := Split(domain.BucketB2, makeIDs(tc.n), tc.threshold)
		assert.Len(t, batches, tc.batches)

		total := 0
		for _, b := range batches {
			total += len(b.AccountIDs)
		}
		assert.Equal(t, tc.n, total)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	ids := makeIDs(1024)

	first := Split(domain.BucketB3, ids, 100)
	second := Split(domain.BucketB3, ids, 100)

	assert.Equal(t, first, second)
}

func TestSplit_NonPositiveThresholdUsesDefault(t *testing.T) {
	ids := makeIDs(DefaultThreshold + 1)

	batches := Split(domain.BucketT0, ids, 0)

	assert.Len(t, batches, 2)
	assert.Equal(t, int32(DefaultThreshold), batches[0].Size())
	assert.Equal(t, int32(1), batches[1].Size())
}

func TestSplit_DoesNotAliasInput(t *testing.T) {
	ids := makeIDs(10)
	batches := Split(domain.BucketT0, ids, 5)

	ids[0] = -1
	assert.Equal(t, int64(1000), batches[0].AccountIDs[0])
}
