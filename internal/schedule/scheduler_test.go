package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sajinavi2006/julomvp-sub029/internal/domain"
)

type fakeConfigStore struct {
	configs []*domain.CampaignConfiguration
}

func (f *fakeConfigStore) GetActiveCampaignConfigurations(_ context.Context) ([]*domain.CampaignConfiguration, error) {
	return f.configs, nil
}

type scheduledJob struct {
	jobName      string
	payload      string
	delaySeconds int64
}

type fakeQueue struct {
	jobs []scheduledJob
}

func (f *fakeQueue) IsHealthy() bool { return true }
func (f *fakeQueue) Close() error    { return nil }
func (f *fakeQueue) Consume(string, func(string, string)) error {
	return nil
}
func (f *fakeQueue) Schedule(jobName, payload string, delaySeconds int64) (string, error) {
	f.jobs = append(f.jobs, scheduledJob{jobName, payload, delaySeconds})
	return "job-1", nil
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Notify(_, text string) error {
	f.messages = append(f.messages, text)
	return nil
}

func newTestScheduler(store *fakeConfigStore, queue *fakeQueue, notifier *fakeNotifier, now time.Time) *Scheduler {
	s := NewScheduler(store, queue, notifier, "#collections-ops")
	s.now = func() time.Time { return now }
	return s
}

func TestSchedule_EnqueuesUploadAndQueryJobs(t *testing.T) {
	now := time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC)
	queue := &fakeQueue{}
	notifier := &fakeNotifier{}
	s := newTestScheduler(&fakeConfigStore{}, queue, notifier, now)

	err := s.Schedule(context.Background(), baseConfig(), 0)

	assert.NoError(t, err)
	assert.Len(t, queue.jobs, 2)

	upload := queue.jobs[0]
	assert.Equal(t, domain.JobUploadStage, upload.jobName)
	// prepare defaults to 08:50, 50 minutes from now
	assert.Equal(t, int64(50*60), upload.delaySeconds)

	query := queue.jobs[1]
	assert.Equal(t, domain.JobQueryStage, query.jobName)
	assert.Equal(t, int64(130*60), query.delaySeconds)

	job, err := domain.UnmarshalStageJob(upload.payload)
	assert.NoError(t, err)
	assert.Equal(t, domain.BucketB1, job.Bucket)
	assert.Equal(t, domain.StageUpload, job.Stage)
	assert.Equal(t, int32(0), job.Attempt)
	assert.NotEmpty(t, job.JobID)
}

func TestSchedule_PastPrepareStillEnqueues(t *testing.T) {
	// scheduler runs after the prepare instant: the job is enqueued with a
	// negative delay, which the queue client clamps to fire immediately
	now := time.Date(2024, 5, 20, 9, 30, 0, 0, time.UTC)
	queue := &fakeQueue{}
	s := newTestScheduler(&fakeConfigStore{}, queue, &fakeNotifier{}, now)

	err := s.Schedule(context.Background(), baseConfig(), 0)

	assert.NoError(t, err)
	assert.Len(t, queue.jobs, 2)
	assert.Equal(t, int64(-40*60), queue.jobs[0].delaySeconds)
}

func TestSchedule_InactiveCampaignIsSkipped(t *testing.T) {
	queue := &fakeQueue{}
	s := newTestScheduler(&fakeConfigStore{}, queue, &fakeNotifier{}, today)

	cfg := baseConfig()
	cfg.IsActive = false
	err := s.Schedule(context.Background(), cfg, 0)

	assert.NoError(t, err)
	assert.Empty(t, queue.jobs)
}

func TestSchedule_InvalidWindowAlertsAndSkips(t *testing.T) {
	queue := &fakeQueue{}
	notifier := &fakeNotifier{}
	s := newTestScheduler(&fakeConfigStore{}, queue, notifier, today)

	cfg := baseConfig()
	cfg.TimeToStart = "not-a-clock"
	err := s.Schedule(context.Background(), cfg, 0)

	assert.Error(t, err)
	assert.Empty(t, queue.jobs)
	assert.Len(t, notifier.messages, 1)
}

func TestScheduleAll_OneBadBucketDoesNotStopOthers(t *testing.T) {
	bad := baseConfig()
	bad.Bucket = domain.BucketB2
	bad.TimeToStart = ""
	good := baseConfig()

	queue := &fakeQueue{}
	notifier := &fakeNotifier{}
	store := &fakeConfigStore{configs: []*domain.CampaignConfiguration{bad, good}}
	s := newTestScheduler(store, queue, notifier, today)

	err := s.ScheduleAll(context.Background(), 0)

	assert.NoError(t, err)
	// the good bucket still got both jobs
	assert.Len(t, queue.jobs, 2)
	assert.Len(t, notifier.messages, 1)
}

func TestSchedule_RobocallGetsNoQueryJob(t *testing.T) {
	queue := &fakeQueue{}
	s := newTestScheduler(&fakeConfigStore{}, queue, &fakeNotifier{}, today)

	cfg := baseConfig()
	cfg.Vendor = domain.Robocall
	err := s.Schedule(context.Background(), cfg, 0)

	assert.NoError(t, err)
	assert.Len(t, queue.jobs, 1)
	assert.Equal(t, domain.JobUploadStage, queue.jobs[0].jobName)
}
