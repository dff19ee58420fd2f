package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sajinavi2006/julomvp-sub029/configs"
	"github.com/sajinavi2006/julomvp-sub029/internal/domain"
	"github.com/sajinavi2006/julomvp-sub029/internal/errval"
	"github.com/sajinavi2006/julomvp-sub029/internal/postgres"
	"github.com/sajinavi2006/julomvp-sub029/internal/rabbitmq"
	"github.com/sajinavi2006/julomvp-sub029/internal/tracker"
)

// Finds dialer tasks stuck in a non-terminal status for longer than the
// configured threshold and re-enqueues their stage job. Meant to run as a
// periodic cron job.
func main() {
	cfg := configs.InitConfig()

	ctx := context.Background()
	storage, err := postgres.NewStorage(ctx, cfg.Database.ToDbConnectionUri())
	if err != nil {
		log.Fatal(err)
	}
	slog.Info("Postgres connection has been initialized successfully")

	rabbitClient, err := rabbitmq.NewRabbitMQClient(ctx, cfg.RabbitMQ.ToRabbitConnectionUri())
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		err = rabbitClient.Close()
		if err != nil {
			slog.Error("An error occurred while closing RabbitMQ connection", "error", err.Error())
		}
	}()
	slog.Info("RabbitMQ has been initialized successfully")

	slog.Info("Fetching stuck dialer tasks",
		"stuck_after_seconds", cfg.Recovery.StuckAfterSeconds, "limit", cfg.Recovery.BatchLimit)
	stuckTasks, err := storage.GetStuckTasks(ctx, cfg.Recovery.StuckAfterSeconds, cfg.Recovery.BatchLimit)
	if err != nil {
		if errors.Is(err, errval.ErrNotFound) {
			slog.Info("No stuck tasks found, nothing to recover")
			return
		}
		slog.Error("Error occurred while fetching stuck tasks", "error", err.Error())
		return
	}
	slog.Info("Stuck tasks are fetched", "fetched_items_count", len(stuckTasks))

	tasks := tracker.NewTracker(storage)
	requeuedCount := requeueStuckTasks(ctx, tasks, rabbitClient, stuckTasks)

	slog.Info("Recovery run finished", "requeued_count", requeuedCount, "fetched_count", len(stuckTasks))
}

// requeueStuckTasks rebuilds and re-enqueues the stage job of each stuck
// task. A cycle task stuck before SENT cannot be resumed in place: its live
// row would collide with the fresh one the re-run creates, so it is marked
// FAILURE first and the upload stage starts over. Batch tasks and tasks at
// or past SENT are resumed under their existing row.
func requeueStuckTasks(ctx context.Context, tasks *tracker.Tracker, queue domain.DelayedQueue, stuckTasks []*domain.DialerTask) int {
	requeuedCount := 0
	for _, task := range stuckTasks {
		job, jobName, ok := stageJobFor(task)
		if !ok {
			slog.Error("Stuck task has an unrecognized stage type, skipping",
				"task_id", task.ID, "stage_type", task.StageType)
			continue
		}

		if jobName == domain.JobUploadStage && task.BatchNo == nil {
			cause := fmt.Errorf("stuck in %s beyond the recovery threshold", task.Status)
			if err := tasks.Fail(ctx, task, cause); err != nil {
				slog.Error("Error occurred while failing stuck cycle task, skipping",
					"task_id", task.ID, "status", task.Status, "error", err.Error())
				continue
			}
		}

		payload, err := job.Marshal()
		if err != nil {
			slog.Error("Error occurred while marshalling stage job for stuck task",
				"task_id", task.ID, "error", err.Error())
			continue
		}

		jobID, err := queue.Schedule(jobName, payload, 0)
		if err != nil {
			slog.Error("Error occurred while re-enqueueing stage job for stuck task",
				"task_id", task.ID, "error", err.Error())
			continue
		}

		requeuedCount++
		slog.Info("Stuck task has been re-enqueued",
			"task_id", task.ID, "stage_type", task.StageType, "status", task.Status, "job_id", jobID)
	}
	return requeuedCount
}

// stageJobFor rebuilds the queue job a stuck task was running under. A task
// at or past SENT belongs to the query stage; everything earlier belongs to
// the upload stage.
func stageJobFor(task *domain.DialerTask) (*domain.StageJob, string, bool) {
	bucket, _, ok := splitStageType(task.StageType)
	if !ok {
		return nil, "", false
	}

	job := &domain.StageJob{
		JobID:      uuid.NewString(),
		Bucket:     bucket,
		Vendor:     domain.Vendor(task.Vendor),
		BatchNo:    task.BatchNo,
		TaskID:     task.ID,
		EnqueuedAt: time.Now(),
	}

	switch task.Status {
	case domain.Sent, domain.Downloaded, domain.StoreProcess:
		job.Stage = domain.StageQuery
		return job, domain.JobQueryStage, true
	default:
		job.Stage = domain.StageUpload
		return job, domain.JobUploadStage, true
	}
}

func splitStageType(stageType string) (domain.BucketName, domain.Stage, bool) {
	for i := len(stageType) - 1; i >= 0; i-- {
		if stageType[i] == '.' {
			bucket := domain.BucketName(stageType[:i])
			stage := domain.Stage(stageType[i+1:])
			return bucket, stage, bucket.IsValid()
		}
	}
	return "", "", false
}
