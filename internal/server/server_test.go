package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sajinavi2006/julomvp-sub029/internal/domain"
	"github.com/sajinavi2006/julomvp-sub029/internal/errval"
	"github.com/sajinavi2006/julomvp-sub029/internal/schedule"
)

type fakeStore struct {
	cfg    *domain.CampaignConfiguration
	task   *domain.DialerTask
	events []*domain.DialerTaskEvent
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) GetCampaignConfiguration(_ context.Context, bucket domain.BucketName) (*domain.CampaignConfiguration, error) {
	if f.cfg == nil || f.cfg.Bucket != bucket {
		return nil, errval.ErrNotFound
	}
	return f.cfg, nil
}

func (f *fakeStore) GetTaskByID(_ context.Context, id int64) (*domain.DialerTask, error) {
	if f.task == nil || f.task.ID != id {
		return nil, errval.ErrNotFound
	}
	return f.task, nil
}

func (f *fakeStore) GetTaskEvents(_ context.Context, taskID int64) ([]*domain.DialerTaskEvent, error) {
	if len(f.events) == 0 {
		return nil, errval.ErrNotFound
	}
	return f.events, nil
}

type fakeConfigStore struct{}

func (fakeConfigStore) GetActiveCampaignConfigurations(context.Context) ([]*domain.CampaignConfiguration, error) {
	return nil, nil
}

type fakeQueue struct {
	jobs []string
}

func (f *fakeQueue) IsHealthy() bool { return true }
func (f *fakeQueue) Close() error    { return nil }
func (f *fakeQueue) Consume(string, func(string, string)) error {
	return nil
}
func (f *fakeQueue) Schedule(jobName, payload string, _ int64) (string, error) {
	f.jobs = append(f.jobs, jobName)
	return "job-1", nil
}

type fakeNotifier struct{}

func (fakeNotifier) Notify(_, _ string) error { return nil }

func newLogic(store *fakeStore, queue *fakeQueue) *ServerLogic {
	scheduler := schedule.NewScheduler(fakeConfigStore{}, queue, fakeNotifier{}, "#collections-ops")
	return NewServerLogic(store, scheduler, 0)
}

func TestTriggerCampaignSchedulesStageJobs(t *testing.T) {
	store := &fakeStore{cfg: &domain.CampaignConfiguration{
		Bucket:      domain.BucketB1,
		Vendor:      domain.Predictive,
		IsActive:    true,
		TimeToStart: "09:00",
	}}
	queue := &fakeQueue{}

	err := newLogic(store, queue).TriggerCampaign(context.Background(), domain.BucketB1, "")

	require.NoError(t, err)
	assert.Equal(t, []string{domain.JobUploadStage, domain.JobQueryStage}, queue.jobs)
}

func TestTriggerCampaignUnknownBucketIsNotFound(t *testing.T) {
	err := newLogic(&fakeStore{}, &fakeQueue{}).TriggerCampaign(context.Background(), domain.BucketB2, "")
	assert.ErrorIs(t, err, errval.ErrNotFound)
}

func TestTriggerCampaignInactiveBucketIsRejected(t *testing.T) {
	store := &fakeStore{cfg: &domain.CampaignConfiguration{
		Bucket:      domain.BucketB1,
		Vendor:      domain.Predictive,
		IsActive:    false,
		TimeToStart: "09:00",
	}}
	queue := &fakeQueue{}

	err := newLogic(store, queue).TriggerCampaign(context.Background(), domain.BucketB1, "")

	assert.True(t, errval.IsIntegrity(err))
	assert.Empty(t, queue.jobs)
}

func TestTriggerCampaignVendorMismatchIsRejected(t *testing.T) {
	store := &fakeStore{cfg: &domain.CampaignConfiguration{
		Bucket:      domain.BucketB1,
		Vendor:      domain.Predictive,
		IsActive:    true,
		TimeToStart: "09:00",
	}}
	queue := &fakeQueue{}

	err := newLogic(store, queue).TriggerCampaign(context.Background(), domain.BucketB1, "robocall")

	assert.True(t, errval.IsIntegrity(err))
	assert.Empty(t, queue.jobs)
}

func TestGetTaskStatusAndHistory(t *testing.T) {
	now := time.Now()
	store := &fakeStore{
		task: &domain.DialerTask{ID: 7, StageType: "B1.upload", Status: domain.Sent, CreatedAt: now},
		events: []*domain.DialerTaskEvent{
			{TaskID: 7, Status: domain.Initiated, CreatedAt: now},
			{TaskID: 7, Status: domain.Uploading, CreatedAt: now},
			{TaskID: 7, Status: domain.Sent, CreatedAt: now},
		},
	}
	logic := newLogic(store, &fakeQueue{})

	task, err := logic.GetTaskStatus(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, domain.Sent, task.Status)

	history, err := logic.GetTaskHistory(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	_, err = logic.GetTaskStatus(context.Background(), 8)
	assert.ErrorIs(t, err, errval.ErrNotFound)
}
