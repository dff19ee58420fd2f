package eligibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sajinavi2006/julomvp-sub029/internal/domain"
)

var testNow = time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)

func record(accountID int64) *domain.EligibilityRecord {
	return &domain.EligibilityRecord{
		AccountID:     accountID,
		Bucket:        domain.BucketB1,
		CustomerName:  "Budi",
		PhoneNumber:   "081234567890",
		AccountStatus: 420,
	}
}

// The chain order is part of the contract: changing it changes which reason
// is reported for records failing several filters.
func TestDefaultFilters_OrderIsPinned(t *testing.T) {
	filters := DefaultFilters()

	ids := make([]string, 0, len(filters))
	for _, f := range filters {
		ids = append(ids, f.ID)
	}

	assert.Equal(t, []string{
		FilterAccountStatus410,
		FilterPTPGreaterTomorrow,
		FilterMissingPhone,
		FilterDoNotCall,
	}, ids)
}

func TestPartition_FirstFailingFilterWins(t *testing.T) {
	// fails ACCOUNT_STATUS_410 and PTP_GREATER_TOMORROW; only the first
	// may be reported
	ptp := testNow.AddDate(0, 0, 5)
	rec := record(11)
	rec.AccountStatus = 410
	rec.PTPDate = &ptp

	included, excluded := Partition([]*domain.EligibilityRecord{rec}, DefaultFilters(), testNow)

	assert.Empty(t, included)
	assert.Len(t, excluded, 1)
	assert.Equal(t, FilterAccountStatus410, excluded[0].Reason)
	assert.Equal(t, FilterAccountStatus410, excluded[0].Record.FilterID)
}

func TestPartition_SplitsIncludedAndExcluded(t *testing.T) {
	ok := record(1)
	noPhone := record(2)
	noPhone.PhoneNumber = ""
	dnc := record(3)
	dnc.DoNotCall = true
	ok2 := record(4)

	included, excluded := Partition(
		[]*domain.EligibilityRecord{ok, noPhone, dnc, ok2},
		DefaultFilters(), testNow,
	)

	assert.Len(t, included, 2)
	assert.Equal(t, int64(1), included[0].AccountID)
	assert.Equal(t, int64(4), included[1].AccountID)
	// survivors carry the last filter id they passed
	assert.Equal(t, FilterDoNotCall, included[0].FilterID)

	assert.Len(t, excluded, 2)
	assert.Equal(t, FilterMissingPhone, excluded[0].Reason)
	assert.Equal(t, FilterDoNotCall, excluded[1].Reason)
}

func TestPartition_PTPBoundaries(t *testing.T) {
	// a PTP for tomorrow keeps the record in the campaign; the day after
	// excludes it
	tomorrow := time.Date(2024, 3, 12, 15, 0, 0, 0, time.UTC)
	dayAfter := time.Date(2024, 3, 13, 0, 0, 1, 0, time.UTC)

	keep := record(21)
	keep.PTPDate = &tomorrow
	drop := record(22)
	drop.PTPDate = &dayAfter

	included, excluded := Partition([]*domain.EligibilityRecord{keep, drop}, DefaultFilters(), testNow)

	assert.Len(t, included, 1)
	assert.Equal(t, int64(21), included[0].AccountID)
	assert.Len(t, excluded, 1)
	assert.Equal(t, FilterPTPGreaterTomorrow, excluded[0].Reason)
}

func TestPartition_EmptyFilterChainIncludesAll(t *testing.T) {
	included, excluded := Partition([]*domain.EligibilityRecord{record(1), record(2)}, nil, testNow)

	assert.Len(t, included, 2)
	assert.Empty(t, excluded)
}
