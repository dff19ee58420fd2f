package retrier

import (
	"context"
	"log/slog"
	"time"

	"github.com/sajinavi2006/julomvp-sub029/internal/domain"
	"github.com/sajinavi2006/julomvp-sub029/internal/errval"
	"github.com/sajinavi2006/julomvp-sub029/internal/metrics"
)

const (
	// DefaultMaxRetries is the number of additional attempts after the
	// first.
	DefaultMaxRetries = 3
	// DefaultBackoff is the fixed delay between attempts, realized as a
	// re-enqueued delayed job rather than a sleep: one attempt may span
	// independent scheduler ticks and worker restarts.
	DefaultBackoff = 300 * time.Second
)

// TaskFailer records FAILURE on a task; satisfied by tracker.Tracker.
type TaskFailer interface {
	Fail(ctx context.Context, task *domain.DialerTask, cause error) error
}

// Retrier wraps every vendor call made by the pipeline with bounded retry
// and alert escalation.
type Retrier struct {
	queue      domain.DelayedQueue
	tasks      TaskFailer
	notifier   domain.Notifier
	channel    string
	maxRetries int32
	backoff    time.Duration
}

func NewRetrier(queue domain.DelayedQueue, tasks TaskFailer, notifier domain.Notifier, alertChannel string) *Retrier {
	return &Retrier{
		queue:      queue,
		tasks:      tasks,
		notifier:   notifier,
		channel:    alertChannel,
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultBackoff,
	}
}

// WithPolicy overrides the default retry policy.
func (r *Retrier) WithPolicy(maxRetries int32, backoff time.Duration) *Retrier {
	r.maxRetries = maxRetries
	r.backoff = backoff
	return r
}

// Execute runs one attempt of fn for the job. Transient failures with
// attempts left re-enqueue the job carrying attempt+1 and report success to
// the queue (the redelivered job is the retry). Permanent failures and
// exhausted retries mark the task FAILURE and alert exactly once.
func (r *Retrier) Execute(ctx context.Context, jobName string, job *domain.StageJob, task *domain.DialerTask, fn func() error) error {
	err := fn()

	logger := slog.With("task_id", task.ID, "stage_type", task.StageType, "attempt", job.Attempt)
	if err == nil {
		logger.Info("vendor call attempt succeeded")
		return nil
	}
	logger.Error("vendor call attempt failed", "error", err.Error())

	if errval.IsTransient(err) && job.Attempt < r.maxRetries {
		retry := *job
		retry.Attempt = job.Attempt + 1
		retry.TaskID = task.ID
		retry.EnqueuedAt = time.Now()

		payload, marshalErr := retry.Marshal()
		if marshalErr != nil {
			return r.exhaust(ctx, task, err)
		}

		delaySeconds := int64(r.backoff / time.Second)
		if _, enqueueErr := r.queue.Schedule(jobName, payload, delaySeconds); enqueueErr != nil {
			logger.Error("failed to re-enqueue retry", "error", enqueueErr.Error())
			return r.exhaust(ctx, task, err)
		}

		logger.Info("retry re-enqueued", "next_attempt", retry.Attempt, "delay_seconds", delaySeconds)
		return nil
	}

	return r.exhaust(ctx, task, err)
}

// exhaust finishes the task: FAILURE on the ledger and a single alert.
func (r *Retrier) exhaust(ctx context.Context, task *domain.DialerTask, cause error) error {
	if failErr := r.tasks.Fail(ctx, task, cause); failErr != nil {
		slog.Error("failed to record FAILURE", "task_id", task.ID, "error", failErr.Error())
	}
	metrics.TasksFailed.WithLabelValues(task.StageType).Inc()

	text := "dialer task failed: stage=" + task.StageType + " error=" + cause.Error()
	if notifyErr := r.notifier.Notify(r.channel, text); notifyErr != nil {
		slog.Error("failed to send failure alert", "task_id", task.ID, "error", notifyErr.Error())
	}

	return cause
}
