package results

import (
	"context"
	"log/slog"

	"github.com/sajinavi2006/julomvp-sub029/internal/domain"
	"github.com/sajinavi2006/julomvp-sub029/internal/errval"
	"github.com/sajinavi2006/julomvp-sub029/internal/metrics"
	"github.com/sajinavi2006/julomvp-sub029/internal/tracker"
	"github.com/sajinavi2006/julomvp-sub029/internal/vendor"
)

// HistoryStore is the slice of the record store the consumer writes.
type HistoryStore interface {
	UpsertContactHistory(ctx context.Context, history domain.ContactHistory) error
}

// TaskTransitioner is satisfied by tracker.Tracker.
type TaskTransitioner interface {
	Transition(ctx context.Context, task *domain.DialerTask, newStatus domain.TaskStatus, params tracker.TransitionParams) error
}

// Consumer reconciles downloaded vendor call outcomes against the task
// ledger and the contact-history table.
type Consumer struct {
	store HistoryStore
	tasks TaskTransitioner
}

func NewConsumer(store HistoryStore, tasks TaskTransitioner) *Consumer {
	return &Consumer{store: store, tasks: tasks}
}

// Store walks the task from SENT through the download/store phases for one
// poll result. A task interrupted mid-walk resumes from its current status:
// transitions already recorded are skipped, and the upsert makes re-storing
// the same records harmless. Unparsable records are never discarded: each is
// logged with its raw payload and the task finishes PARTIAL_STORED. STORED
// is reached only when every record in the batch parsed and upserted.
func (c *Consumer) Store(ctx context.Context, task *domain.DialerTask, poll *vendor.PollResult) error {
	if task.ExternalID == nil {
		return &errval.IntegrityError{
			Reason: "task has no external id to reconcile results against",
		}
	}

	if task.Status == domain.Sent {
		total := int32(len(poll.Records) + len(poll.Unparsed))
		if err := c.tasks.Transition(ctx, task, domain.Downloaded, tracker.TransitionParams{DataCount: &total}); err != nil {
			return err
		}
	}
	if task.Status == domain.Downloaded {
		if err := c.tasks.Transition(ctx, task, domain.StoreProcess, tracker.TransitionParams{}); err != nil {
			return err
		}
	}

	stored := int32(0)
	failed := int32(0)
	for _, rec := range poll.Records {
		history := domain.ContactHistory{
			AccountID:      rec.AccountID,
			ExternalTaskID: rec.ExternalTaskID,
			Vendor:         domain.Vendor(task.Vendor),
			Outcome:        rec.Outcome,
			CalledAt:       rec.CalledAt,
		}
		if err := c.store.UpsertContactHistory(ctx, history); err != nil {
			slog.Error("contact history upsert failed",
				"task_id", task.ID, "account_id", rec.AccountID, "error", err.Error())
			failed++
			continue
		}
		stored++
	}

	for _, perr := range poll.Unparsed {
		slog.Error("unparsable vendor call result",
			"task_id", task.ID, "vendor", task.Vendor,
			"raw_payload", perr.RawPayload, "error", perr.Error())
	}
	metrics.ResultRecordsUnparsed.Add(float64(len(poll.Unparsed)))
	metrics.ResultRecordsStored.Add(float64(stored))

	if len(poll.Unparsed) > 0 || failed > 0 {
		return c.tasks.Transition(ctx, task, domain.PartialStored, tracker.TransitionParams{DataCount: &stored})
	}
	return c.tasks.Transition(ctx, task, domain.Stored, tracker.TransitionParams{DataCount: &stored})
}
