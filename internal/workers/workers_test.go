package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/castline-dev/castline/internal/campaigns"
	"github.com/castline-dev/castline/internal/database"
	"github.com/castline-dev/castline/internal/models"
	"github.com/castline-dev/castline/internal/tasks"
)

// fakeEnqueuer keeps task ids like asynq does, so a second enqueue of the
// same run conflicts until the task is deleted
type fakeEnqueuer struct {
	payloads []tasks.CampaignPayload
	existing map[string]bool
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	payload, err := tasks.ParseCampaignPayload(task)
	if err != nil {
		return nil, err
	}
	id := tasks.CampaignTaskID(payload.CampaignID, payload.RunAt)
	if f.existing[id] {
		return nil, asynq.ErrTaskIDConflict
	}
	if f.existing == nil {
		f.existing = make(map[string]bool)
	}
	f.existing[id] = true
	f.payloads = append(f.payloads, payload)
	return &asynq.TaskInfo{ID: id}, nil
}

type fakeInspector struct {
	enq    *fakeEnqueuer
	states map[string]asynq.TaskState
}

func (f *fakeInspector) GetTaskInfo(queue, id string) (*asynq.TaskInfo, error) {
	if !f.enq.existing[id] {
		return nil, asynq.ErrTaskNotFound
	}
	state, ok := f.states[id]
	if !ok {
		state = asynq.TaskStatePending
	}
	return &asynq.TaskInfo{ID: id, Queue: queue, State: state}, nil
}

func (f *fakeInspector) DeleteTask(queue, id string) error {
	delete(f.enq.existing, id)
	delete(f.states, id)
	return nil
}

func setup(t *testing.T) (*campaigns.Service, *fakeEnqueuer, *gorm.DB) {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)

	enq := &fakeEnqueuer{}
	return campaigns.NewService(db, enq, zerolog.Nop()), enq, db
}

func TestHandleCampaignSend(t *testing.T) {
	svc, enq, db := setup(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.Contact{Email: "a@example.com", Status: models.ContactStatusSubscribed}).Error)
	require.NoError(t, db.Create(&models.Contact{Email: "b@example.com", Status: models.ContactStatusBounced}).Error)

	c, err := svc.Create(ctx, campaigns.Input{Name: "Launch", Channel: models.ChannelSMS, Body: "We're live"}, "user-1")
	require.NoError(t, err)

	_, err = svc.Schedule(ctx, c.ID, campaigns.ScheduleInput{})
	require.NoError(t, err)
	require.Len(t, enq.payloads, 1)

	task, err := tasks.NewCampaignSendTask(c.ID, enq.payloads[0].RunAt)
	require.NoError(t, err)
	require.NoError(t, HandleCampaignSend(ctx, task, svc, zerolog.Nop()))

	sent, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusSent, sent.Status)
	assert.Equal(t, 1, sent.DeliveredCount)

	// redelivery of the same task is a no-op
	require.NoError(t, HandleCampaignSend(ctx, task, svc, zerolog.Nop()))
	sent, err = svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sent.DeliveredCount)
}

func TestHandleCampaignSend_BadPayload(t *testing.T) {
	svc, _, _ := setup(t)

	err := HandleCampaignSend(context.Background(), asynq.NewTask(tasks.TypeCampaignSend, []byte("{")), svc, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestCheckMissedRuns(t *testing.T) {
	svc, enq, db := setup(t)
	ctx := context.Background()

	overdue := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	upcoming := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, db.Create(&models.Campaign{
		Name: "Overdue", Channel: models.ChannelEmail, Status: models.CampaignStatusScheduled, Body: "b", NextRunAt: &overdue,
	}).Error)
	require.NoError(t, db.Create(&models.Campaign{
		Name: "Upcoming", Channel: models.ChannelEmail, Status: models.CampaignStatusScheduled, Body: "b", NextRunAt: &upcoming,
	}).Error)

	assert.Equal(t, 1, checkMissedRuns(ctx, svc, zerolog.Nop()))
	require.Len(t, enq.payloads, 1)
	assert.True(t, enq.payloads[0].RunAt.Equal(overdue))
}

func TestCheckMissedRuns_ArchivedTask(t *testing.T) {
	svc, enq, db := setup(t)
	ctx := context.Background()
	insp := &fakeInspector{enq: enq, states: map[string]asynq.TaskState{}}
	svc.SetInspector(insp)

	overdue := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	c := &models.Campaign{
		Name: "Weekly", Channel: models.ChannelEmail, Status: models.CampaignStatusScheduled, Body: "b",
		Recurrence: "0 9 * * 1", NextRunAt: &overdue,
	}
	require.NoError(t, db.Create(c).Error)

	assert.Equal(t, 1, checkMissedRuns(ctx, svc, zerolog.Nop()))

	// the task is still waiting in the queue, nothing to do
	assert.Equal(t, 0, checkMissedRuns(ctx, svc, zerolog.Nop()))
	require.Len(t, enq.payloads, 1)

	// retries ran out and asynq archived it
	insp.states[tasks.CampaignTaskID(c.ID, overdue)] = asynq.TaskStateArchived
	assert.Equal(t, 1, checkMissedRuns(ctx, svc, zerolog.Nop()))
	require.Len(t, enq.payloads, 2)
	assert.True(t, enq.payloads[1].RunAt.Equal(overdue))
}

func TestStartCampaignScheduler_StopsOnCancel(t *testing.T) {
	svc, _, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		StartCampaignScheduler(ctx, svc, time.Hour, zerolog.Nop())
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
