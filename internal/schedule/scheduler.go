package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sajinavi2006/julomvp-sub029/internal/domain"
	"github.com/sajinavi2006/julomvp-sub029/internal/errval"
)

// ConfigStore is the slice of the record store the scheduler reads.
type ConfigStore interface {
	GetActiveCampaignConfigurations(ctx context.Context) ([]*domain.CampaignConfiguration, error)
}

// Scheduler turns campaign configurations into delayed stage jobs. One
// schedulable unit of work per bucket: an integrity problem in one bucket is
// alerted and skipped, never allowed to stop the other buckets.
type Scheduler struct {
	storage  ConfigStore
	queue    domain.DelayedQueue
	notifier domain.Notifier
	channel  string
	now      func() time.Time
}

func NewScheduler(storage ConfigStore, queue domain.DelayedQueue, notifier domain.Notifier, alertChannel string) *Scheduler {
	return &Scheduler{
		storage:  storage,
		queue:    queue,
		notifier: notifier,
		channel:  alertChannel,
		now:      time.Now,
	}
}

// ScheduleAll runs one scheduling cycle over every active campaign.
func (s *Scheduler) ScheduleAll(ctx context.Context, lateDPDMinutes int32) error {
	configs, err := s.storage.GetActiveCampaignConfigurations(ctx)
	if err != nil {
		return err
	}

	for _, cfg := range configs {
		if err := s.Schedule(ctx, cfg, lateDPDMinutes); err != nil {
			slog.Error("campaign scheduling failed, continuing with next bucket",
				"bucket", cfg.Bucket, "error", err.Error())
		}
	}

	return nil
}

// Schedule enqueues the upload stage at the window's prepare instant and the
// result-query stage at its query instant, both as delay-from-now. A
// computed instant already in the past still enqueues: the delay clamps to
// zero and the job fires immediately, which is the documented behavior for
// late cycles, not an error.
func (s *Scheduler) Schedule(ctx context.Context, cfg *domain.CampaignConfiguration, lateDPDMinutes int32) error {
	if !cfg.IsActive {
		slog.Info("campaign is inactive, skipping scheduling", "bucket", cfg.Bucket)
		return nil
	}

	now := s.now()
	window, err := ComputeWindow(cfg, now, lateDPDMinutes)
	if err != nil {
		if errval.IsIntegrity(err) {
			s.alert(cfg, err)
		}
		return err
	}

	uploadJob := domain.StageJob{
		JobID:      uuid.NewString(),
		Bucket:     cfg.Bucket,
		Vendor:     cfg.Vendor,
		Stage:      domain.StageUpload,
		Attempt:    0,
		EnqueuedAt: now,
	}
	if err := s.enqueue(uploadJob, domain.JobUploadStage, window.PrepareAt.Sub(now)); err != nil {
		return err
	}

	if !vendorHasQueryStage(cfg.Vendor) {
		slog.Info("vendor has no result-download phase, not scheduling query stage",
			"bucket", cfg.Bucket, "vendor", cfg.Vendor)
		return nil
	}

	queryJob := domain.StageJob{
		JobID:      uuid.NewString(),
		Bucket:     cfg.Bucket,
		Vendor:     cfg.Vendor,
		Stage:      domain.StageQuery,
		Attempt:    0,
		EnqueuedAt: now,
	}
	return s.enqueue(queryJob, domain.JobQueryStage, window.QueryAt.Sub(now))
}

func (s *Scheduler) enqueue(job domain.StageJob, jobName string, delay time.Duration) error {
	payload, err := job.Marshal()
	if err != nil {
		return err
	}

	delaySeconds := int64(delay / time.Second)
	jobID, err := s.queue.Schedule(jobName, payload, delaySeconds)
	if err != nil {
		return err
	}

	slog.Info("stage job scheduled",
		"job", jobName, "job_id", jobID, "bucket", job.Bucket,
		"stage", job.Stage, "delay_seconds", delaySeconds)
	return nil
}

func vendorHasQueryStage(v domain.Vendor) bool {
	for _, stage := range domain.VendorStages[v] {
		if stage == domain.StageQuery {
			return true
		}
	}
	return false
}

func (s *Scheduler) alert(cfg *domain.CampaignConfiguration, err error) {
	text := "dialer scheduler skipped bucket " + string(cfg.Bucket) + ": " + err.Error()
	if notifyErr := s.notifier.Notify(s.channel, text); notifyErr != nil {
		slog.Error("failed to send scheduling alert", "bucket", cfg.Bucket, "error", notifyErr.Error())
	}
}
