package tasks

import (
	"context"
	"log/slog"
	"time"

	"shopsquad/internal/models"
	"shopsquad/internal/squads"
)

// Scheduler queues reminder tasks for new squads.
type Scheduler struct {
	tasks  TaskStore
	lead   time.Duration
	logger *slog.Logger
	now    func() time.Time
}

func NewScheduler(tasks TaskStore, lead time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{tasks: tasks, lead: lead, logger: logger, now: time.Now}
}

// ScheduleReminder queues send_squad_reminder for lead before the meetup, or
// right away when that moment has passed. Meetups already over get nothing
// and a nil task.
func (s *Scheduler) ScheduleReminder(ctx context.Context, squad models.Squad) (*models.ScheduledTask, error) {
	now := s.now()
	meetup := squad.Date.Time()
	if !meetup.After(now) {
		return nil, nil
	}

	due := meetup.Add(-s.lead)
	if due.Before(now) {
		due = now
	}

	task, err := SquadReminderTask.CreateTask(squad.ID, due)
	if err != nil {
		return nil, err
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	s.logger.Info("reminder scheduled", "squad_id", squad.ID, "task_id", task.ID, "due", due)
	return task, nil
}

// Hooks schedules a reminder whenever a squad is created. next, when set, is
// called afterwards.
func (s *Scheduler) Hooks(next squads.Hooks) squads.Hooks {
	hooks := next
	hooks.Created = func(ctx context.Context, squad models.Squad) {
		if _, err := s.ScheduleReminder(ctx, squad); err != nil {
			s.logger.Error("scheduling reminder failed", "squad_id", squad.ID, "error", err)
		}
		if next.Created != nil {
			next.Created(ctx, squad)
		}
	}
	return hooks
}
