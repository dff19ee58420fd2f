package schedule

import (
	"fmt"
	"time"

	"github.com/sajinavi2006/julomvp-sub029/internal/domain"
	"github.com/sajinavi2006/julomvp-sub029/internal/errval"
)

// Window is the computed set of instants for one bucket's cycle.
type Window struct {
	PrepareAt time.Time
	StartAt   time.Time
	EndAt     time.Time
	QueryAt   time.Time
}

// ComputeWindow resolves a campaign's clock fields against today's date.
// Defaults: prepare = start - 10m, end = start + 1h, query = end + 10m.
// Buckets flagged dynamic late-DPD query at start + lateDPDMinutes + 10m
// instead. All window arithmetic for the pipeline lives here so it stays
// testable apart from the queue.
func ComputeWindow(cfg *domain.CampaignConfiguration, today time.Time, lateDPDMinutes int32) (*Window, error) {
	startAt, err := atClock(today, cfg.TimeToStart)
	if err != nil {
		return nil, &errval.IntegrityError{
			Reason: fmt.Sprintf("campaign %s has no valid time_to_start %q", cfg.Bucket, cfg.TimeToStart),
			Err:    err,
		}
	}

	w := &Window{StartAt: startAt}

	w.PrepareAt = startAt.Add(-10 * time.Minute)
	if cfg.TimeToPrepare != "" {
		if w.PrepareAt, err = atClock(today, cfg.TimeToPrepare); err != nil {
			return nil, &errval.IntegrityError{
				Reason: fmt.Sprintf("campaign %s has invalid time_to_prepare %q", cfg.Bucket, cfg.TimeToPrepare),
				Err:    err,
			}
		}
	}

	w.EndAt = startAt.Add(time.Hour)
	if cfg.TimeToEnd != "" {
		if w.EndAt, err = atClock(today, cfg.TimeToEnd); err != nil {
			return nil, &errval.IntegrityError{
				Reason: fmt.Sprintf("campaign %s has invalid time_to_end %q", cfg.Bucket, cfg.TimeToEnd),
				Err:    err,
			}
		}
	}

	w.QueryAt = w.EndAt.Add(10 * time.Minute)
	if cfg.TimeToQueryResult != "" {
		if w.QueryAt, err = atClock(today, cfg.TimeToQueryResult); err != nil {
			return nil, &errval.IntegrityError{
				Reason: fmt.Sprintf("campaign %s has invalid time_to_query_result %q", cfg.Bucket, cfg.TimeToQueryResult),
				Err:    err,
			}
		}
	}

	if cfg.DynamicLateDPD {
		w.QueryAt = startAt.Add(time.Duration(lateDPDMinutes+10) * time.Minute)
	}

	return w, nil
}

// atClock resolves "HH:MM" onto today's date in today's location.
func atClock(today time.Time, clock string) (time.Time, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(
		today.Year(), today.Month(), today.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, today.Location(),
	), nil
}
