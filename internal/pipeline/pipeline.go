package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sajinavi2006/julomvp-sub029/internal/batching"
	"github.com/sajinavi2006/julomvp-sub029/internal/domain"
	"github.com/sajinavi2006/julomvp-sub029/internal/eligibility"
	"github.com/sajinavi2006/julomvp-sub029/internal/errval"
	"github.com/sajinavi2006/julomvp-sub029/internal/metrics"
	"github.com/sajinavi2006/julomvp-sub029/internal/results"
	"github.com/sajinavi2006/julomvp-sub029/internal/retrier"
	"github.com/sajinavi2006/julomvp-sub029/internal/tracker"
	"github.com/sajinavi2006/julomvp-sub029/internal/vendor"
)

// Pipeline executes the delayed stage jobs: populate, construct and upload
// on the upload tick, download and store on the query tick. Each (bucket,
// batch) is an independent unit of work; nothing thrown by one is allowed to
// take down another.
type Pipeline struct {
	storage  domain.Storage
	tasks    *tracker.Tracker
	registry *vendor.Registry
	retrier  *retrier.Retrier
	consumer *results.Consumer
	lock     domain.DistributedLock
	filters  []eligibility.Filter
	now      func() time.Time
}

func NewPipeline(
	storage domain.Storage,
	tasks *tracker.Tracker,
	registry *vendor.Registry,
	r *retrier.Retrier,
	consumer *results.Consumer,
	lock domain.DistributedLock,
) *Pipeline {
	return &Pipeline{
		storage:  storage,
		tasks:    tasks,
		registry: registry,
		retrier:  r,
		consumer: consumer,
		lock:     lock,
		filters:  eligibility.DefaultFilters(),
		now:      time.Now,
	}
}

// checkLiveness reloads the campaign and reports whether the stage may act.
// A campaign disabled mid-cycle makes in-flight jobs skip as a logged no-op.
func (p *Pipeline) checkLiveness(ctx context.Context, job *domain.StageJob) (*domain.CampaignConfiguration, bool, error) {
	cfg, err := p.storage.GetCampaignConfiguration(ctx, job.Bucket)
	if err != nil {
		return nil, false, err
	}
	if !cfg.IsActive {
		slog.Info("campaign disabled mid-cycle, skipping stage as no-op",
			"bucket", job.Bucket, "stage", job.Stage)
		return cfg, false, nil
	}
	return cfg, true, nil
}

// RunUploadStage handles one delivery of the upload stage job. The first
// delivery (no batch number) runs populate + construct and fans out per
// batch; a redelivered retry carries the batch number and task id and goes
// straight to its batch.
func (p *Pipeline) RunUploadStage(ctx context.Context, job *domain.StageJob) error {
	cfg, live, err := p.checkLiveness(ctx, job)
	if err != nil {
		return err
	}
	if !live {
		return nil
	}

	adapter, err := p.registry.Resolve(job.Vendor)
	if err != nil {
		return err
	}

	if job.BatchNo != nil {
		return p.retryBatchUpload(ctx, cfg, adapter, job)
	}

	lockKey := "dialer:upload:" + job.StageType() + ":" + p.now().Format("2006-01-02")
	acquired, err := p.lock.Lock(lockKey, 30*time.Minute)
	if err != nil {
		return err
	}
	if !acquired {
		slog.Info("upload stage already running elsewhere, skipping", "lock_key", lockKey)
		return nil
	}
	defer func() {
		if unlockErr := p.lock.Unlock(lockKey); unlockErr != nil {
			slog.Error("failed to unlock upload stage", "lock_key", lockKey, "error", unlockErr.Error())
		}
	}()

	cycleTask, included, err := p.populate(ctx, cfg)
	if err != nil {
		return err
	}

	batches, err := p.construct(ctx, cfg, cycleTask, included)
	if err != nil {
		return err
	}

	byAccount := map[int64]*domain.EligibilityRecord{}
	for _, rec := range included {
		byAccount[rec.AccountID] = rec
	}

	for _, batch := range batches {
		records := make([]*domain.EligibilityRecord, 0, len(batch.AccountIDs))
		for _, id := range batch.AccountIDs {
			if rec, ok := byAccount[id]; ok {
				records = append(records, rec)
			}
		}
		if err := p.UploadBatch(ctx, cfg, adapter, job, batch.Number, records); err != nil {
			slog.Error("batch upload failed, continuing with next batch",
				"bucket", job.Bucket, "batch_no", batch.Number, "error", err.Error())
		}
	}

	return nil
}

// populate is the eligibility phase: one cycle task walking INITIATED
// through CONSTRUCTING. It returns the cycle task and the included records
// in deterministic order; construct finishes the walk.
func (p *Pipeline) populate(ctx context.Context, cfg *domain.CampaignConfiguration) (*domain.DialerTask, []*domain.EligibilityRecord, error) {
	stageType := cfg.StageType(domain.StagePopulate)
	task, err := p.tasks.Create(ctx, stageType, cfg.Vendor, nil)
	if err != nil {
		return nil, nil, err
	}

	if err := p.tasks.Transition(ctx, task, domain.Querying, tracker.TransitionParams{}); err != nil {
		return nil, nil, err
	}
	candidates, err := p.storage.GetEligibilityCandidates(ctx, cfg.Bucket)
	if err != nil {
		if failErr := p.tasks.Fail(ctx, task, err); failErr != nil {
			slog.Error("failed to mark populate task failed", "task_id", task.ID, "error", failErr.Error())
		}
		return nil, nil, err
	}
	total := int32(len(candidates))
	if err := p.tasks.Transition(ctx, task, domain.Queried, tracker.TransitionParams{DataCount: &total}); err != nil {
		return nil, nil, err
	}

	if err := p.tasks.Transition(ctx, task, domain.Constructing, tracker.TransitionParams{}); err != nil {
		return nil, nil, err
	}
	included, excluded := eligibility.Partition(candidates, p.filters, p.now())
	for _, exc := range excluded {
		metrics.RecordsExcluded.WithLabelValues(string(cfg.Bucket), exc.Reason).Inc()
		if err := p.storage.MarkEligibilityFilter(ctx, exc.Record.AccountID, exc.Reason); err != nil {
			slog.Error("failed to persist exclusion reason",
				"account_id", exc.Record.AccountID, "reason", exc.Reason, "error", err.Error())
		}
	}
	slog.Info("bucket populated",
		"bucket", cfg.Bucket, "candidates", len(candidates),
		"included", len(included), "excluded", len(excluded))

	return task, included, nil
}

// construct persists the deterministic batch split and closes the cycle
// task: CONSTRUCTED once every batch is stored, then SUCCESS.
func (p *Pipeline) construct(ctx context.Context, cfg *domain.CampaignConfiguration, cycleTask *domain.DialerTask, included []*domain.EligibilityRecord) ([]domain.Batch, error) {
	ids := make([]int64, 0, len(included))
	for _, rec := range included {
		ids = append(ids, rec.AccountID)
	}

	batches := batching.Split(cfg.Bucket, ids, cfg.SplitThreshold)
	for _, batch := range batches {
		if err := p.storage.InsertBatch(ctx, batch); err != nil {
			if failErr := p.tasks.Fail(ctx, cycleTask, err); failErr != nil {
				slog.Error("failed to mark populate task failed", "task_id", cycleTask.ID, "error", failErr.Error())
			}
			return nil, err
		}
	}

	kept := int32(len(included))
	if err := p.tasks.Transition(ctx, cycleTask, domain.Constructed, tracker.TransitionParams{DataCount: &kept}); err != nil {
		return nil, err
	}
	if err := p.tasks.Transition(ctx, cycleTask, domain.Success, tracker.TransitionParams{}); err != nil {
		return nil, err
	}

	slog.Info("batches constructed", "bucket", cfg.Bucket, "batches", len(batches))
	return batches, nil
}

// UploadBatch uploads one batch through the retry controller. If the ledger
// already records the batch SENT, the stored external id is returned without
// touching the vendor: re-delivered jobs must never double-dial customers.
func (p *Pipeline) UploadBatch(
	ctx context.Context,
	cfg *domain.CampaignConfiguration,
	adapter vendor.Adapter,
	job *domain.StageJob,
	batchNo int32,
	records []*domain.EligibilityRecord,
) error {
	stageType := cfg.StageType(domain.StageUpload)

	existing, err := p.tasks.LatestBatch(ctx, stageType, batchNo)
	if err != nil && !errors.Is(err, errval.ErrNotFound) {
		return err
	}
	if existing != nil && existing.Status == domain.Sent {
		if existing.ExternalID == nil {
			return &errval.IntegrityError{
				Reason: fmt.Sprintf("task %d is SENT without an external id", existing.ID),
			}
		}
		slog.Info("batch already sent, returning stored external id",
			"stage_type", stageType, "batch_no", batchNo, "external_id", *existing.ExternalID)
		return nil
	}

	task := existing
	if task == nil || task.Status.IsTerminal() {
		if task, err = p.tasks.Create(ctx, stageType, cfg.Vendor, &batchNo); err != nil {
			return err
		}
	}
	if task.Status == domain.Initiated {
		if err := p.tasks.Transition(ctx, task, domain.Uploading, tracker.TransitionParams{}); err != nil {
			return err
		}
	}

	batchJob := *job
	batchJob.BatchNo = &batchNo
	taskName := fmt.Sprintf("%s-%s-%s-batch-%d",
		cfg.Bucket, cfg.Vendor, p.now().Format("20060102"), batchNo)

	return p.retrier.Execute(ctx, domain.JobUploadStage, &batchJob, task, func() error {
		result, uploadErr := adapter.UploadBatch(ctx, taskName, records)
		if uploadErr != nil {
			return uploadErr
		}

		count := result.Accepted
		if err := p.tasks.Transition(ctx, task, domain.Sent, tracker.TransitionParams{
			DataCount:  &count,
			ExternalID: &result.ExternalID,
		}); err != nil {
			return err
		}
		metrics.BatchesUploaded.WithLabelValues(string(cfg.Vendor), string(cfg.Bucket)).Inc()

		// vendors without a result-download phase close out here
		if !vendorHasStage(cfg.Vendor, domain.StageQuery) {
			return p.tasks.Transition(ctx, task, domain.Success, tracker.TransitionParams{})
		}
		return nil
	})
}

// retryBatchUpload handles a redelivered upload job for one batch.
func (p *Pipeline) retryBatchUpload(ctx context.Context, cfg *domain.CampaignConfiguration, adapter vendor.Adapter, job *domain.StageJob) error {
	batch, err := p.storage.GetBatch(ctx, job.Bucket, *job.BatchNo)
	if err != nil {
		return err
	}
	records, err := p.storage.GetEligibilityRecordsByAccountIDs(ctx, batch.AccountIDs)
	if err != nil {
		return err
	}
	return p.UploadBatch(ctx, cfg, adapter, job, batch.Number, records)
}

// RunQueryStage downloads and reconciles call results for every batch the
// ledger has recorded SENT for the bucket. A batch interrupted mid-store
// (DOWNLOADED or STORE_PROCESS) is re-polled and resumed, so recovered jobs
// carrying a task id pick up where the task stopped.
func (p *Pipeline) RunQueryStage(ctx context.Context, job *domain.StageJob) error {
	cfg, live, err := p.checkLiveness(ctx, job)
	if err != nil {
		return err
	}
	if !live {
		return nil
	}

	adapter, err := p.registry.Resolve(job.Vendor)
	if err != nil {
		return err
	}

	uploadStageType := cfg.StageType(domain.StageUpload)
	var tasks []*domain.DialerTask
	if job.TaskID != 0 {
		task, err := p.storage.GetTaskByID(ctx, job.TaskID)
		if err != nil {
			return err
		}
		tasks = []*domain.DialerTask{task}
	} else {
		if tasks, err = p.storage.GetTasksByStatus(ctx, uploadStageType, domain.Sent); err != nil {
			if errors.Is(err, errval.ErrNotFound) {
				slog.Info("no sent batches to query", "bucket", job.Bucket)
				return nil
			}
			return err
		}
	}

	for _, task := range tasks {
		switch task.Status {
		case domain.Sent, domain.Downloaded, domain.StoreProcess:
		default:
			slog.Info("skipping batch with no results to reconcile", "task_id", task.ID, "status", task.Status)
			continue
		}
		if task.ExternalID == nil {
			slog.Error("batch has no external id to poll results for, skipping",
				"task_id", task.ID, "status", task.Status)
			continue
		}

		queryJob := *job
		queryJob.TaskID = task.ID
		taskRef := task
		err := p.retrier.Execute(ctx, domain.JobQueryStage, &queryJob, taskRef, func() error {
			poll, pollErr := adapter.PollResults(ctx, *taskRef.ExternalID)
			if pollErr != nil {
				return pollErr
			}
			return p.consumer.Store(ctx, taskRef, poll)
		})
		if err != nil {
			slog.Error("result query failed for batch, continuing",
				"task_id", task.ID, "error", err.Error())
		}
	}

	return nil
}

func vendorHasStage(v domain.Vendor, stage domain.Stage) bool {
	for _, s := range domain.VendorStages[v] {
		if s == stage {
			return true
		}
	}
	return false
}
