package server

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sajinavi2006/julomvp-sub029/internal/domain"
	"github.com/sajinavi2006/julomvp-sub029/internal/errval"
	"github.com/sajinavi2006/julomvp-sub029/internal/schedule"
)

// Store is the slice of the record store the operator API reads.
type Store interface {
	Ping(ctx context.Context) error
	GetCampaignConfiguration(ctx context.Context, bucket domain.BucketName) (*domain.CampaignConfiguration, error)
	GetTaskByID(ctx context.Context, id int64) (*domain.DialerTask, error)
	GetTaskEvents(ctx context.Context, taskID int64) ([]*domain.DialerTaskEvent, error)
}

// ServerLogic backs the operator API: manual campaign triggers plus task
// ledger lookups.
type ServerLogic struct {
	storage        Store
	scheduler      *schedule.Scheduler
	lateDPDMinutes int32
}

func NewServerLogic(storage Store, scheduler *schedule.Scheduler, lateDPDMinutes int32) *ServerLogic {
	return &ServerLogic{
		storage:        storage,
		scheduler:      scheduler,
		lateDPDMinutes: lateDPDMinutes,
	}
}

// TriggerCampaign schedules one bucket's stage jobs on demand, outside the
// regular daily cycle. The bucket must have an active configuration. A
// non-empty expectedVendor must match the configured vendor.
func (s *ServerLogic) TriggerCampaign(ctx context.Context, bucket domain.BucketName, expectedVendor string) error {
	cfg, err := s.storage.GetCampaignConfiguration(ctx, bucket)
	if err != nil {
		if errors.Is(err, errval.ErrNotFound) {
			slog.Info("no campaign configuration found for bucket", "bucket", bucket)
			return err
		}

		slog.ErrorContext(ctx, "error occurred while calling storage.GetCampaignConfiguration", "error", err)
		return errval.ErrInternal
	}

	if !cfg.IsActive {
		return &errval.IntegrityError{
			Reason: "campaign for bucket " + string(bucket) + " is not active",
		}
	}
	if expectedVendor != "" && domain.Vendor(expectedVendor) != cfg.Vendor {
		return &errval.IntegrityError{
			Reason: "bucket " + string(bucket) + " is configured for vendor " + string(cfg.Vendor) +
				", not " + expectedVendor,
		}
	}

	return s.scheduler.Schedule(ctx, cfg, s.lateDPDMinutes)
}

func (s *ServerLogic) GetTaskStatus(ctx context.Context, taskID int64) (*domain.DialerTask, error) {
	task, err := s.storage.GetTaskByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, errval.ErrNotFound) {
			slog.Info("task not found with the given id", "id", taskID)
			return nil, err
		}

		slog.ErrorContext(ctx, "error occurred while calling storage.GetTaskByID", "error", err)
		return nil, errval.ErrInternal
	}

	return task, nil
}

func (s *ServerLogic) GetTaskHistory(ctx context.Context, taskID int64) ([]*domain.DialerTaskEvent, error) {
	events, err := s.storage.GetTaskEvents(ctx, taskID)
	if err != nil {
		if errors.Is(err, errval.ErrNotFound) {
			slog.Info("history not found for the given task id", "task_id", taskID)
			return nil, err
		}

		slog.ErrorContext(ctx, "error occurred while calling storage.GetTaskEvents", "error", err)
		return nil, errval.ErrInternal
	}

	return events, nil
}
