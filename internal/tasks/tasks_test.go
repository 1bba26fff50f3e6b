package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopsquad/internal/metrics"
	"shopsquad/internal/models"
	"shopsquad/internal/services"
	"shopsquad/internal/squads"
	"shopsquad/internal/store/memory"
	"shopsquad/internal/store/storetest"
	"shopsquad/internal/timestamp"
)

type fakeTaskStore struct {
	mu      sync.Mutex
	nextID  uint
	tasks   map[uint]*models.ScheduledTask
	history []models.ScheduledTaskHistory
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: map[uint]*models.ScheduledTask{}}
}

func (s *fakeTaskStore) Due(_ context.Context, now time.Time) ([]models.ScheduledTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []models.ScheduledTask
	for id := uint(1); id <= s.nextID; id++ {
		if task, ok := s.tasks[id]; ok && task.Status == models.ScheduledTaskStatusActive && !task.Due.After(now) {
			due = append(due, *task)
		}
	}
	return due, nil
}

func (s *fakeTaskStore) Create(_ context.Context, task *models.ScheduledTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	task.ID = s.nextID
	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

func (s *fakeTaskStore) Update(_ context.Context, task models.ScheduledTask, updates map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.tasks[task.ID]
	if v, ok := updates["status"]; ok {
		stored.Status = v.(models.ScheduledTaskStatus)
	}
	if v, ok := updates["due"]; ok {
		stored.Due = v.(time.Time)
	}
	if v, ok := updates["last_run"]; ok {
		stored.LastRun = v.(*time.Time)
	}
	return nil
}

func (s *fakeTaskStore) RecordRun(_ context.Context, h *models.ScheduledTaskHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, *h)
	return nil
}

func (s *fakeTaskStore) get(id uint) models.ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.tasks[id]
}

type fakePrefs map[string]models.UserNotifPreference

func (p fakePrefs) Preference(_ context.Context, userID string) (models.UserNotifPreference, bool, error) {
	pref, ok := p[userID]
	return pref, ok, nil
}

type sentMessage struct {
	userID, subject, body string
}

type fakeSender struct {
	mu   sync.Mutex
	fail map[string]bool
	sent []sentMessage
}

func (s *fakeSender) Send(_ context.Context, pref models.UserNotifPreference, subject, body string) error {
	if pref.Channel == models.NotificationChannelNone {
		return services.ErrChannelDisabled
	}
	if s.fail[pref.UserID] {
		return errors.New("smtp unreachable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{userID: pref.UserID, subject: subject, body: body})
	return nil
}

func newRedisCache(t *testing.T) (*miniredis.Miniredis, *services.RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, services.NewRedisCacheFromClient(client)
}

func TestDefineTasks(t *testing.T) {
	r := DefineTasks(NewRegistry())
	assert.Equal(t, []string{"log_squad_summary", "send_notification", "send_squad_reminder"}, r.Names())
}

func newWorkerFixture(t *testing.T, handler TaskHandler) (*Worker, *fakeTaskStore, *metrics.Metrics) {
	t.Helper()
	ts := newFakeTaskStore()
	r := NewRegistry()
	r.Register("job", handler)
	m := metrics.New()
	return NewWorker(r, Deps{Tasks: ts}, time.Minute, m, nil), ts, m
}

func addTask(t *testing.T, ts *fakeTaskStore, name string, maxAttempt int) *models.ScheduledTask {
	t.Helper()
	task, err := BuildScheduledTask(name, map[string]string{"k": "v"}, time.Now().Add(-time.Minute), nil, models.ScheduledTaskTypeOneTime, maxAttempt)
	require.NoError(t, err)
	require.NoError(t, ts.Create(context.Background(), task))
	return task
}

func TestWorkerRunsDueTask(t *testing.T) {
	var got map[string]interface{}
	w, ts, m := newWorkerFixture(t, func(_ context.Context, _ Deps, task models.ScheduledTask) (map[string]interface{}, error) {
		got = task.Arguments
		return map[string]interface{}{"ok": true}, nil
	})
	task := addTask(t, ts, "job", 3)

	assert.Equal(t, 1, w.ProcessDue(context.Background()))
	assert.Equal(t, "v", got["k"])
	assert.Equal(t, models.ScheduledTaskStatusDone, ts.get(task.ID).Status)
	require.Len(t, ts.history, 1)
	assert.Equal(t, "success", ts.history[0].Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaskRuns.WithLabelValues("job", "success")))

	// done tasks are not picked up again
	assert.Equal(t, 0, w.ProcessDue(context.Background()))
}

func TestWorkerRetriesUntilSuccess(t *testing.T) {
	calls := 0
	w, ts, _ := newWorkerFixture(t, func(context.Context, Deps, models.ScheduledTask) (map[string]interface{}, error) {
		calls++
		if calls < 2 {
			return nil, errors.New("flaky")
		}
		return nil, nil
	})
	task := addTask(t, ts, "job", 3)

	w.ProcessDue(context.Background())
	assert.Equal(t, 2, calls)
	assert.Equal(t, models.ScheduledTaskStatusDone, ts.get(task.ID).Status)
	require.Len(t, ts.history, 2)
	assert.Equal(t, []int{1, 2}, []int{ts.history[0].AttemptNumber, ts.history[1].AttemptNumber})
}

func TestWorkerGivesUpAfterMaxAttempt(t *testing.T) {
	calls := 0
	w, ts, m := newWorkerFixture(t, func(context.Context, Deps, models.ScheduledTask) (map[string]interface{}, error) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		return nil, errors.New("still broken")
	})
	task := addTask(t, ts, "job", 3)

	w.ProcessDue(context.Background())
	assert.Equal(t, 3, calls)
	assert.Equal(t, models.ScheduledTaskStatusFailure, ts.get(task.ID).Status)
	require.Len(t, ts.history, 3)
	assert.Equal(t, "task panicked: boom", ts.history[0].Result["error"])
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TaskRuns.WithLabelValues("job", "failure")))
}

func TestWorkerUnknownTask(t *testing.T) {
	w, ts, _ := newWorkerFixture(t, nil)
	task := addTask(t, ts, "missing", 3)

	w.ProcessDue(context.Background())
	assert.Equal(t, models.ScheduledTaskStatusFailure, ts.get(task.ID).Status)
	require.Len(t, ts.history, 1)
	assert.Equal(t, "handler_not_found", ts.history[0].Status)
}

func TestWorkerAdvancesRecurringTask(t *testing.T) {
	w, ts, _ := newWorkerFixture(t, func(context.Context, Deps, models.ScheduledTask) (map[string]interface{}, error) {
		return nil, nil
	})
	now := time.Date(2025, 6, 7, 10, 30, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	rule := "FREQ=DAILY"
	task, err := BuildScheduledTask("job", nil, now.Add(-30*time.Minute), &rule, models.ScheduledTaskTypeRecurring, 1)
	require.NoError(t, err)
	require.NoError(t, ts.Create(context.Background(), task))

	w.ProcessDue(context.Background())
	stored := ts.get(task.ID)
	assert.Equal(t, models.ScheduledTaskStatusActive, stored.Status)
	assert.True(t, time.Date(2025, 6, 8, 10, 0, 0, 0, time.UTC).Equal(stored.Due), stored.Due)
}

func TestWorkerLockPreventsDoubleRun(t *testing.T) {
	_, cache := newRedisCache(t)
	ts := newFakeTaskStore()
	r := NewRegistry()
	var mu sync.Mutex
	calls := 0
	r.Register("job", func(context.Context, Deps, models.ScheduledTask) (map[string]interface{}, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil, nil
	})
	addTask(t, ts, "job", 1)

	// a second worker that already saw the task before the first finished
	first := NewWorker(r, Deps{Tasks: ts}, time.Minute, nil, cache)
	second := NewWorker(r, Deps{Tasks: ts}, time.Minute, nil, cache)
	pending, err := ts.Due(context.Background(), time.Now())
	require.NoError(t, err)

	first.ProcessDue(context.Background())
	for _, task := range pending {
		assert.False(t, second.claim(context.Background(), task))
	}
	assert.Equal(t, 1, calls)
}

func newReminderFixture(t *testing.T) (Deps, *models.Squad, *fakeSender) {
	t.Helper()
	backend := memory.New()
	t.Cleanup(func() { _ = backend.Close() })
	ctx := context.Background()

	uma := models.Participant{ID: "U1", Name: "Uma"}
	squad := storetest.NewSquad("Weekend Trip", uma)
	require.NoError(t, backend.CreateSquad(ctx, squad))
	_, _, err := backend.AddParticipant(ctx, squad.ID, models.Participant{ID: "U2", Name: "Bo"})
	require.NoError(t, err)
	_, _, err = backend.AddParticipant(ctx, squad.ID, models.Participant{ID: "U3", Name: "Cy"})
	require.NoError(t, err)

	p := storetest.NewProduct("p1", 49.99, "U1")
	p.AssignedTo = &uma.ID
	require.NoError(t, backend.AppendProduct(ctx, squad.ID, p))

	sender := &fakeSender{fail: map[string]bool{}}
	deps := Deps{
		Tasks: newFakeTaskStore(),
		Preferences: fakePrefs{
			"U1": {UserID: "U1", Channel: models.NotificationChannelEmail, Email: "uma@example.com"},
			"U2": {UserID: "U2", Channel: models.NotificationChannelNone},
		},
		Sender:   sender,
		Squads:   backend,
		Location: time.UTC,
		AppURL:   "https://squad.example.com",
	}
	return deps, squad, sender
}

func reminderTask(t *testing.T, squadID string) models.ScheduledTask {
	t.Helper()
	task, err := SquadReminderTask.CreateTask(squadID, time.Now())
	require.NoError(t, err)
	return *task
}

func TestSquadReminder(t *testing.T) {
	deps, squad, sender := newReminderFixture(t)

	result, err := SquadReminderTask.HandleExecution(context.Background(), deps, reminderTask(t, squad.ID))
	require.NoError(t, err)
	assert.Equal(t, 1, result["sent"])
	// U2 opted out, U3 never saved a preference
	assert.Equal(t, 2, result["skipped"])

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "Reminder: Weekend Trip", msg.subject)
	assert.Contains(t, msg.body, "Hi Uma,")
	assert.Contains(t, msg.body, "June 1, 2025")
	assert.Contains(t, msg.body, "Mall Plaza")
	assert.Contains(t, msg.body, "$49.99 (100%)")
	assert.Contains(t, msg.body, "https://squad.example.com/join/"+squad.ID)
}

func TestSquadReminderDedupe(t *testing.T) {
	deps, squad, sender := newReminderFixture(t)
	mr, cache := newRedisCache(t)
	deps.Cache = cache

	sender.fail["U1"] = true
	_, err := SquadReminderTask.HandleExecution(context.Background(), deps, reminderTask(t, squad.ID))
	require.Error(t, err)
	assert.False(t, mr.Exists("shopsquad:reminder:"+squad.ID+":U1"), "failed sends must not block a retry")

	sender.fail["U1"] = false
	for i := 0; i < 2; i++ {
		_, err = SquadReminderTask.HandleExecution(context.Background(), deps, reminderTask(t, squad.ID))
		require.NoError(t, err)
	}
	assert.Len(t, sender.sent, 1)
}

func TestSquadReminderMissingSquad(t *testing.T) {
	deps, _, sender := newReminderFixture(t)

	result, err := SquadReminderTask.HandleExecution(context.Background(), deps, reminderTask(t, "gone"))
	require.NoError(t, err)
	assert.Equal(t, "squad_not_found", result["status"])
	assert.Empty(t, sender.sent)
}

func TestSquadSummary(t *testing.T) {
	deps, squad, _ := newReminderFixture(t)
	ctx := context.Background()
	require.NoError(t, deps.Squads.AppendProduct(ctx, squad.ID, storetest.NewProduct("p2", 10.01, "U2")))

	task, err := SquadSummaryTask.CreateTask(squad.ID, time.Now(), "FREQ=WEEKLY")
	require.NoError(t, err)
	assert.Equal(t, models.ScheduledTaskTypeRecurring, task.TaskType)
	require.NoError(t, task.Validate())

	result, err := SquadSummaryTask.HandleExecution(ctx, deps, *task)
	require.NoError(t, err)
	assert.Equal(t, "success", result["status"])
	assert.Equal(t, 3, result["participants"])
	assert.Equal(t, 2, result["products"])
	assert.InDelta(t, 60.0, result["total"], 0.001)
	assert.InDelta(t, 10.01, result["unassigned"], 0.001)

	missing, err := SquadSummaryTask.CreateTask("gone", time.Now(), "")
	require.NoError(t, err)
	assert.Equal(t, models.ScheduledTaskTypeOneTime, missing.TaskType)
	result, err = SquadSummaryTask.HandleExecution(ctx, deps, *missing)
	require.NoError(t, err)
	assert.Equal(t, "squad_not_found", result["status"])

	_, err = SquadSummaryTask.HandleExecution(ctx, deps, models.ScheduledTask{Arguments: map[string]interface{}{}})
	assert.Error(t, err)
}

func TestSendNotificationReschedulesFailures(t *testing.T) {
	ts := newFakeTaskStore()
	sender := &fakeSender{fail: map[string]bool{"U2": true}}
	deps := Deps{
		Tasks: ts,
		Preferences: fakePrefs{
			"U1": {UserID: "U1", Channel: models.NotificationChannelEmail},
			"U2": {UserID: "U2", Channel: models.NotificationChannelEmail},
		},
		Sender: sender,
	}
	task, err := SendNotificationTask.CreateTask(SendNotificationArgs{
		Users: []NotificationUser{
			{UserID: "U1", Name: "Uma", Email: "uma@example.com"},
			{UserID: "U2", Name: "Bo", Email: "bo@example.com"},
			{UserID: "U3", Name: "Cy"},
		},
		NotifTemplate: "Hi $name, $squad_title moved.",
		Subject:       "Update",
		SquadTitle:    "Weekend Trip",
	}, time.Now())
	require.NoError(t, err)

	result, err := SendNotificationTask.HandleExecution(context.Background(), deps, *task)
	require.NoError(t, err)
	assert.Equal(t, 1, result["success"])
	assert.Equal(t, 1, result["skipped"])
	assert.Equal(t, 1, result["failure"])

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Hi Uma, Weekend Trip moved.", sender.sent[0].body)

	retry := ts.get(result["retry_task_id"].(uint))
	args, err := decodeArgs[SendNotificationArgs](retry)
	require.NoError(t, err)
	assert.Equal(t, 1, args.AttemptCount)
	require.Len(t, args.Users, 1)
	assert.Equal(t, "U2", args.Users[0].UserID)

	// the last attempt reports the failure instead of rescheduling
	retry.Arguments["attempt_count"] = 2
	_, err = SendNotificationTask.HandleExecution(context.Background(), deps, retry)
	assert.Error(t, err)
}

func TestSchedulerReminderDue(t *testing.T) {
	ts := newFakeTaskStore()
	s := NewScheduler(ts, 24*time.Hour, nil)
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	squad := models.Squad{ID: "s1", Date: timestamp.MustToBackend(now.Add(72 * time.Hour))}
	task, err := s.ScheduleReminder(context.Background(), squad)
	require.NoError(t, err)
	assert.True(t, now.Add(48*time.Hour).Equal(task.Due), task.Due)
	assert.Equal(t, "send_squad_reminder", task.TaskName)
	assert.Equal(t, "s1", task.Arguments["squad_id"])

	soon := models.Squad{ID: "s2", Date: timestamp.MustToBackend(now.Add(time.Hour))}
	task, err = s.ScheduleReminder(context.Background(), soon)
	require.NoError(t, err)
	assert.True(t, now.Equal(task.Due), task.Due)

	past := models.Squad{ID: "s3", Date: timestamp.MustToBackend(now.Add(-time.Hour))}
	task, err = s.ScheduleReminder(context.Background(), past)
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestSchedulerHooks(t *testing.T) {
	ts := newFakeTaskStore()
	s := NewScheduler(ts, time.Hour, nil)

	var nextCalled bool
	hooks := s.Hooks(squads.Hooks{Created: func(context.Context, models.Squad) { nextCalled = true }})
	hooks.Created(context.Background(), models.Squad{ID: "s1", Date: timestamp.MustToBackend(time.Now().Add(48 * time.Hour))})

	assert.True(t, nextCalled)
	assert.Len(t, ts.tasks, 1)
}
