package results

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sajinavi2006/julomvp-sub029/internal/domain"
	"github.com/sajinavi2006/julomvp-sub029/internal/errval"
	"github.com/sajinavi2006/julomvp-sub029/internal/tracker"
	"github.com/sajinavi2006/julomvp-sub029/internal/vendor"
)

type fakeHistoryStore struct {
	histories []domain.ContactHistory
	failFor   map[int64]bool
}

func (f *fakeHistoryStore) UpsertContactHistory(_ context.Context, h domain.ContactHistory) error {
	if f.failFor[h.AccountID] {
		return errors.New("db unavailable")
	}
	f.histories = append(f.histories, h)
	return nil
}

// fakeTransitioner validates edges the way the real tracker does, and
// records the walk.
type fakeTransitioner struct {
	statuses []domain.TaskStatus
}

func (f *fakeTransitioner) Transition(_ context.Context, task *domain.DialerTask, newStatus domain.TaskStatus, _ tracker.TransitionParams) error {
	if !domain.CanTransition(task.Status, newStatus) {
		return &errval.IntegrityError{Reason: "undeclared edge"}
	}
	task.Status = newStatus
	f.statuses = append(f.statuses, newStatus)
	return nil
}

func sentTask() *domain.DialerTask {
	externalID := "ext-77"
	batchNo := int32(1)
	return &domain.DialerTask{
		ID:         10,
		StageType:  "B1.upload",
		Vendor:     string(domain.Predictive),
		Status:     domain.Sent,
		BatchNo:    &batchNo,
		ExternalID: &externalID,
	}
}

func record(accountID int64, outcome domain.CallOutcome) domain.VendorCallResult {
	return domain.VendorCallResult{
		ExternalTaskID: "ext-77",
		AccountID:      accountID,
		PhoneNumber:    "+628123",
		Outcome:        outcome,
		CalledAt:       time.Date(2024, 5, 20, 10, 30, 0, 0, time.UTC),
	}
}

func TestStore_AllParsedEndsStored(t *testing.T) {
	store := &fakeHistoryStore{}
	transitions := &fakeTransitioner{}
	c := NewConsumer(store, transitions)
	task := sentTask()

	poll := &vendor.PollResult{Records: []domain.VendorCallResult{
		record(1, domain.OutcomeRPCPTP),
		record(2, domain.OutcomeNotConnected),
	}}

	err := c.Store(context.Background(), task, poll)

	assert.NoError(t, err)
	assert.Equal(t, domain.Stored, task.Status)
	assert.Equal(t, []domain.TaskStatus{
		domain.Downloaded, domain.StoreProcess, domain.Stored,
	}, transitions.statuses)
	assert.Len(t, store.histories, 2)
	assert.Equal(t, domain.Predictive, store.histories[0].Vendor)
}

func TestStore_UnparsableRecordEndsPartialStored(t *testing.T) {
	// 9 parsable + 1 unparsable: the task must land PARTIAL_STORED and the
	// raw payload must not be discarded
	store := &fakeHistoryStore{}
	c := NewConsumer(store, &fakeTransitioner{})
	task := sentTask()

	poll := &vendor.PollResult{Unparsed: []*errval.ParsingError{
		{RawPayload: `{"mangled": true`, Err: errors.New("unexpected end of JSON input")},
	}}
	for i := int64(1); i <= 9; i++ {
		poll.Records = append(poll.Records, record(i, domain.OutcomeRPCRegular))
	}

	err := c.Store(context.Background(), task, poll)

	assert.NoError(t, err)
	assert.Equal(t, domain.PartialStored, task.Status)
	assert.Len(t, store.histories, 9)
}

func TestStore_UpsertFailureEndsPartialStored(t *testing.T) {
	store := &fakeHistoryStore{failFor: map[int64]bool{2: true}}
	c := NewConsumer(store, &fakeTransitioner{})
	task := sentTask()

	poll := &vendor.PollResult{Records: []domain.VendorCallResult{
		record(1, domain.OutcomeRPCRegular),
		record(2, domain.OutcomeRPCRegular),
		record(3, domain.OutcomeRPCRegular),
	}}

	err := c.Store(context.Background(), task, poll)

	assert.NoError(t, err)
	assert.Equal(t, domain.PartialStored, task.Status)
	assert.Len(t, store.histories, 2)
}

func TestStore_MissingExternalIDIsIntegrityError(t *testing.T) {
	c := NewConsumer(&fakeHistoryStore{}, &fakeTransitioner{})
	task := sentTask()
	task.ExternalID = nil

	err := c.Store(context.Background(), task, &vendor.PollResult{})

	assert.True(t, errval.IsIntegrity(err))
	assert.Equal(t, domain.Sent, task.Status)
}

func TestStore_ResumesFromDownloaded(t *testing.T) {
	// a task interrupted after the download transition must not replay it
	store := &fakeHistoryStore{}
	transitions := &fakeTransitioner{}
	c := NewConsumer(store, transitions)
	task := sentTask()
	task.Status = domain.Downloaded

	poll := &vendor.PollResult{Records: []domain.VendorCallResult{
		record(1, domain.OutcomeRPCPTP),
	}}

	err := c.Store(context.Background(), task, poll)

	assert.NoError(t, err)
	assert.Equal(t, domain.Stored, task.Status)
	assert.Equal(t, []domain.TaskStatus{domain.StoreProcess, domain.Stored}, transitions.statuses)
	assert.Len(t, store.histories, 1)
}

func TestStore_ResumesFromStoreProcess(t *testing.T) {
	store := &fakeHistoryStore{}
	transitions := &fakeTransitioner{}
	c := NewConsumer(store, transitions)
	task := sentTask()
	task.Status = domain.StoreProcess

	poll := &vendor.PollResult{Records: []domain.VendorCallResult{
		record(1, domain.OutcomeRPCPTP),
	}}

	err := c.Store(context.Background(), task, poll)

	assert.NoError(t, err)
	assert.Equal(t, domain.Stored, task.Status)
	assert.Equal(t, []domain.TaskStatus{domain.Stored}, transitions.statuses)
}

func TestStore_TaskNotSentFailsFast(t *testing.T) {
	c := NewConsumer(&fakeHistoryStore{}, &fakeTransitioner{})
	task := sentTask()
	task.Status = domain.Initiated

	err := c.Store(context.Background(), task, &vendor.PollResult{})

	assert.True(t, errval.IsIntegrity(err))
}
