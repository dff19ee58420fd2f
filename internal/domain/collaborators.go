package domain

import (
	"context"
	"time"
)

// Storage is the persistent record store the pipeline runs against.
type Storage interface {
	Ping(ctx context.Context) error

	InsertTask(ctx context.Context, stageType string, vendor Vendor, batchNo *int32) (*DialerTask, error)
	GetTaskByID(ctx context.Context, id int64) (*DialerTask, error)
	GetLatestTask(ctx context.Context, stageType string) (*DialerTask, error)
	GetLatestBatchTask(ctx context.Context, stageType string, batchNo int32) (*DialerTask, error)
	GetStuckTasks(ctx context.Context, passedSeconds, limit int32) ([]*DialerTask, error)
	GetTasksByStatus(ctx context.Context, stageType string, status TaskStatus) ([]*DialerTask, error)
	GetTaskEvents(ctx context.Context, taskID int64) ([]*DialerTaskEvent, error)
	// TransitionTask updates the task status and appends the matching event
	// in a single transaction. ExternalID, when non-nil, is written on the
	// same row in the same transaction.
	TransitionTask(ctx context.Context, taskID int64, newStatus TaskStatus, dataCount *int32, taskErr *string, externalID *string) error

	GetCampaignConfiguration(ctx context.Context, bucket BucketName) (*CampaignConfiguration, error)
	GetActiveCampaignConfigurations(ctx context.Context) ([]*CampaignConfiguration, error)

	GetEligibilityCandidates(ctx context.Context, bucket BucketName) ([]*EligibilityRecord, error)
	GetEligibilityRecordsByAccountIDs(ctx context.Context, accountIDs []int64) ([]*EligibilityRecord, error)
	MarkEligibilityFilter(ctx context.Context, accountID int64, filterID string) error
	InsertBatch(ctx context.Context, batch Batch) error
	GetBatch(ctx context.Context, bucket BucketName, number int32) (*Batch, error)
	CountBatches(ctx context.Context, bucket BucketName, since time.Time) (int32, error)

	UpsertContactHistory(ctx context.Context, history ContactHistory) error
}

// DelayedQueue is the at-least-once delayed-job collaborator. Implementations
// must tolerate delaySeconds <= 0 by delivering immediately.
type DelayedQueue interface {
	IsHealthy() bool
	Schedule(jobName string, payload string, delaySeconds int64) (jobID string, err error)
	Consume(consumerName string, handler func(jobName, payload string)) error
	Close() error
}

// DistributedLock serializes duplicate deliveries of the same stage job
// across workers.
type DistributedLock interface {
	Ping(ctx context.Context) error
	Lock(lockKey string, ttl time.Duration) (acquired bool, err error)
	Unlock(lockKey string) error
	Close() error
}

// Notifier is the alerting channel collaborator.
type Notifier interface {
	Notify(channel, text string) error
}
