package eligibility

import (
	"time"

	"github.com/sajinavi2006/julomvp-sub029/internal/domain"
)

// Filter is one exclusion rule. Exclude returns true when the record must be
// dropped from the campaign.
type Filter struct {
	ID      string
	Exclude func(rec *domain.EligibilityRecord, now time.Time) bool
}

// Filter ids double as audit reason codes, so renaming one changes reports.
const (
	FilterAccountStatus410   = "ACCOUNT_STATUS_410"
	FilterPTPGreaterTomorrow = "PTP_GREATER_TOMORROW"
	FilterMissingPhone       = "MISSING_PHONE"
	FilterDoNotCall          = "DNC"
)

// DefaultFilters returns the standard chain in its contractual order. The
// order decides which reason is reported for records failing several rules,
// so it is pinned by tests and must not be reshuffled casually.
func DefaultFilters() []Filter {
	return []Filter{
		{
			ID: FilterAccountStatus410,
			Exclude: func(rec *domain.EligibilityRecord, _ time.Time) bool {
				return rec.AccountStatus == 410
			},
		},
		{
			ID: FilterPTPGreaterTomorrow,
			Exclude: func(rec *domain.EligibilityRecord, now time.Time) bool {
				if rec.PTPDate == nil {
					return false
				}
				tomorrow := now.AddDate(0, 0, 1)
				endOfTomorrow := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 23, 59, 59, 0, now.Location())
				return rec.PTPDate.After(endOfTomorrow)
			},
		},
		{
			ID: FilterMissingPhone,
			Exclude: func(rec *domain.EligibilityRecord, _ time.Time) bool {
				return rec.PhoneNumber == ""
			},
		},
		{
			ID: FilterDoNotCall,
			Exclude: func(rec *domain.EligibilityRecord, _ time.Time) bool {
				return rec.DoNotCall
			},
		},
	}
}

// Exclusion pairs an excluded record with the reason code of the first
// filter it failed.
type Exclusion struct {
	Record *domain.EligibilityRecord
	Reason string
}

// Partition runs the chain over the candidates. Filters apply in slice
// order and short-circuit: a record is excluded by the first filter it
// fails, and only that filter's id is recorded as the reason. Records that
// pass every filter come back in input order with FilterID set to the last
// filter id.
func Partition(candidates []*domain.EligibilityRecord, filters []Filter, now time.Time) (included []*domain.EligibilityRecord, excluded []Exclusion) {
	included = []*domain.EligibilityRecord{}
	excluded = []Exclusion{}

	for _, rec := range candidates {
		reason := ""
		for _, f := range filters {
			if f.Exclude(rec, now) {
				reason = f.ID
				break
			}
		}

		if reason != "" {
			rec.FilterID = reason
			excluded = append(excluded, Exclusion{Record: rec, Reason: reason})
			continue
		}

		if len(filters) > 0 {
			rec.FilterID = filters[len(filters)-1].ID
		}
		included = append(included, rec)
	}

	return included, excluded
}
