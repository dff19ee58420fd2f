package tracker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sajinavi2006/julomvp-sub029/internal/domain"
	"github.com/sajinavi2006/julomvp-sub029/internal/errval"
)

// TaskStore is the slice of the record store the tracker writes. The
// implementation must update the task status and append the event in one
// transaction, and must return *errval.IntegrityError when task creation
// hits the (stage_type, creation date) uniqueness constraint.
type TaskStore interface {
	InsertTask(ctx context.Context, stageType string, vendor domain.Vendor, batchNo *int32) (*domain.DialerTask, error)
	GetTaskByID(ctx context.Context, id int64) (*domain.DialerTask, error)
	GetLatestTask(ctx context.Context, stageType string) (*domain.DialerTask, error)
	GetLatestBatchTask(ctx context.Context, stageType string, batchNo int32) (*domain.DialerTask, error)
	GetTaskEvents(ctx context.Context, taskID int64) ([]*domain.DialerTaskEvent, error)
	TransitionTask(ctx context.Context, taskID int64, newStatus domain.TaskStatus, dataCount *int32, taskErr *string, externalID *string) error
}

// TransitionParams carries the optional fields recorded with a transition.
type TransitionParams struct {
	DataCount  *int32
	Error      *string
	ExternalID *string
}

// Tracker owns the DialerTask ledger: it is the only writer of task statuses
// and events.
type Tracker struct {
	store TaskStore
}

func NewTracker(store TaskStore) *Tracker {
	return &Tracker{store: store}
}

// Create inserts a task at INITIATED together with its first event. A
// duplicate for the same stage type within the creation window is a fatal
// integrity condition: the error is surfaced, never resolved by silently
// picking one of the rows.
func (t *Tracker) Create(ctx context.Context, stageType string, vendor domain.Vendor, batchNo *int32) (*domain.DialerTask, error) {
	task, err := t.store.InsertTask(ctx, stageType, vendor, batchNo)
	if err != nil {
		if errval.IsIntegrity(err) {
			slog.Error("duplicate dialer task creation detected",
				"stage_type", stageType, "error", err.Error())
		}
		return nil, err
	}

	slog.Info("dialer task created", "task_id", task.ID, "stage_type", stageType, "vendor", vendor)
	return task, nil
}

// Transition moves the task to newStatus, appending the audit event in the
// same unit of work. Undeclared edges fail fast before any write.
func (t *Tracker) Transition(ctx context.Context, task *domain.DialerTask, newStatus domain.TaskStatus, params TransitionParams) error {
	if !newStatus.IsValid() {
		return &errval.IntegrityError{
			Reason: fmt.Sprintf("task %d: %q is not a declared dialer task status", task.ID, newStatus),
		}
	}
	if !domain.CanTransition(task.Status, newStatus) {
		return &errval.IntegrityError{
			Reason: fmt.Sprintf("task %d: transition %s -> %s is not a declared edge", task.ID, task.Status, newStatus),
		}
	}

	err := t.store.TransitionTask(ctx, task.ID, newStatus, params.DataCount, params.Error, params.ExternalID)
	if err != nil {
		return err
	}

	slog.Info("dialer task transitioned",
		"task_id", task.ID, "stage_type", task.StageType,
		"from", task.Status, "to", newStatus)

	task.Status = newStatus
	if params.ExternalID != nil {
		task.ExternalID = params.ExternalID
	}
	if params.Error != nil {
		task.Error = params.Error
	}
	return nil
}

// Fail is the terminal shortcut used by the retry controller: it records
// FAILURE with the causing error message.
func (t *Tracker) Fail(ctx context.Context, task *domain.DialerTask, cause error) error {
	msg := cause.Error()
	return t.Transition(ctx, task, domain.Failure, TransitionParams{Error: &msg})
}

// Latest returns the most recent task for a stage type.
func (t *Tracker) Latest(ctx context.Context, stageType string) (*domain.DialerTask, error) {
	return t.store.GetLatestTask(ctx, stageType)
}

// LatestBatch returns the most recent task for (stage type, batch number).
func (t *Tracker) LatestBatch(ctx context.Context, stageType string, batchNo int32) (*domain.DialerTask, error) {
	return t.store.GetLatestBatchTask(ctx, stageType, batchNo)
}

// History returns the append-only event trail of a task.
func (t *Tracker) History(ctx context.Context, taskID int64) ([]*domain.DialerTaskEvent, error) {
	return t.store.GetTaskEvents(ctx, taskID)
}
