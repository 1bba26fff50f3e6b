package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"shopsquad/internal/metrics"
	"shopsquad/internal/models"
	"shopsquad/internal/services"
)

// taskLockTTL bounds how long a crashed worker can hold a task.
const taskLockTTL = 10 * time.Minute

// Worker polls the task store and executes due tasks.
type Worker struct {
	registry *Registry
	deps     Deps
	interval time.Duration
	metrics  *metrics.Metrics
	lock     *services.RedisCache
	logger   *slog.Logger
	now      func() time.Time
}

// NewWorker creates a worker. m and lock may be nil; with a lock, workers
// sharing one Redis never run the same task concurrently.
func NewWorker(registry *Registry, deps Deps, interval time.Duration, m *metrics.Metrics, lock *services.RedisCache) *Worker {
	return &Worker{
		registry: registry,
		deps:     deps,
		interval: interval,
		metrics:  m,
		lock:     lock,
		logger:   deps.logger(),
		now:      time.Now,
	}
}

// Run processes due tasks once right away and then every interval until ctx ends.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.ProcessDue(ctx)
	for {
		select {
		case <-ticker.C:
			w.ProcessDue(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// ProcessDue runs every active task whose due time has passed and returns
// how many were executed.
func (w *Worker) ProcessDue(ctx context.Context) int {
	pendingTasks, err := w.deps.Tasks.Due(ctx, w.now())
	if err != nil {
		w.logger.Error("fetching pending tasks failed", "error", err)
		return 0
	}
	if len(pendingTasks) == 0 {
		w.logger.Debug("no pending tasks")
		return 0
	}
	w.logger.Info("found pending tasks", "count", len(pendingTasks))

	ran := 0
	for _, task := range pendingTasks {
		if ctx.Err() != nil {
			break
		}
		if !w.claim(ctx, task) {
			continue
		}
		w.executeTask(ctx, task)
		ran++
	}
	return ran
}

func (w *Worker) claim(ctx context.Context, task models.ScheduledTask) bool {
	if w.lock == nil {
		return true
	}
	key := fmt.Sprintf("task-lock:%d:%d", task.ID, task.Due.Unix())
	ok, err := w.lock.Claim(ctx, key, taskLockTTL)
	if err != nil {
		w.logger.Warn("task lock unavailable, running anyway", "task_id", task.ID, "error", err)
		return true
	}
	return ok
}

// executeTask runs task up to MaxAttempt times, recording every attempt, and
// then moves the task to its next state.
func (w *Worker) executeTask(ctx context.Context, task models.ScheduledTask) {
	logger := w.logger.With("task", task.TaskName, "task_id", task.ID)
	logger.Info("processing task")

	if task.Arguments == nil {
		task.Arguments = make(map[string]interface{})
	}

	handler, found := w.registry.Get(task.TaskName)
	if !found {
		logger.Warn("task handler not found, marking as failure")
		now := w.now()
		w.update(ctx, task, map[string]interface{}{
			"status":   models.ScheduledTaskStatusFailure,
			"last_run": &now,
		})
		w.record(ctx, &models.ScheduledTaskHistory{
			ScheduledTaskID: task.ID,
			TaskName:        task.TaskName,
			RunAt:           now,
			Status:          "handler_not_found",
			AttemptNumber:   1,
			Arguments:       task.Arguments,
			Result:          map[string]interface{}{"error": "Handler not found"},
		})
		w.count(task.TaskName, "handler_not_found")
		return
	}

	maxAttempt := task.MaxAttempt
	if maxAttempt < 1 {
		maxAttempt = 1
	}

	var (
		startTime time.Time
		err       error
	)
	for curAttempt := 1; curAttempt <= maxAttempt; curAttempt++ {
		if ctx.Err() != nil {
			return
		}

		startTime = w.now()
		var result map[string]interface{}
		result, err = w.safeRun(ctx, handler, task)
		runtimeMs := int(time.Since(startTime).Milliseconds())

		status := "success"
		resultData := result
		if err != nil {
			status = "failure"
			resultData = map[string]interface{}{"error": err.Error()}
			logger.Warn("task attempt failed", "attempt", curAttempt, "error", err)
		} else {
			logger.Info("task completed", "attempt", curAttempt)
		}

		w.record(ctx, &models.ScheduledTaskHistory{
			ScheduledTaskID: task.ID,
			TaskName:        task.TaskName,
			RunAt:           startTime,
			Runtime:         runtimeMs,
			Status:          status,
			AttemptNumber:   curAttempt,
			Arguments:       task.Arguments,
			Result:          resultData,
		})
		w.count(task.TaskName, status)

		if err == nil {
			break
		}
	}

	taskUpdates := map[string]interface{}{
		"last_run": &startTime,
	}
	switch {
	case err != nil:
		taskUpdates["status"] = models.ScheduledTaskStatusFailure
	case task.TaskType == models.ScheduledTaskTypeRecurring:
		// only a future due date keeps the task from running again on the next tick
		if nextDue := task.NextDue(w.now()); nextDue.After(task.Due) {
			taskUpdates["status"] = models.ScheduledTaskStatusActive
			taskUpdates["due"] = nextDue
		} else {
			taskUpdates["status"] = models.ScheduledTaskStatusDone
		}
	default:
		taskUpdates["status"] = models.ScheduledTaskStatusDone
	}
	w.update(ctx, task, taskUpdates)
}

// safeRun turns a panicking handler into a failed attempt.
func (w *Worker) safeRun(ctx context.Context, handler TaskHandler, task models.ScheduledTask) (result map[string]interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return handler(ctx, w.deps, task)
}

func (w *Worker) update(ctx context.Context, task models.ScheduledTask, updates map[string]interface{}) {
	if err := w.deps.Tasks.Update(ctx, task, updates); err != nil {
		w.logger.Error("updating task failed", "task_id", task.ID, "error", err)
	}
}

func (w *Worker) record(ctx context.Context, history *models.ScheduledTaskHistory) {
	if err := w.deps.Tasks.RecordRun(ctx, history); err != nil {
		w.logger.Error("recording task history failed", "task_id", history.ScheduledTaskID, "error", err)
	}
}

func (w *Worker) count(taskName, status string) {
	if w.metrics != nil {
		w.metrics.TaskRuns.WithLabelValues(taskName, status).Inc()
	}
}
