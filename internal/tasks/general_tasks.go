package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopsquad/internal/apperrors"
	"shopsquad/internal/cost"
	"shopsquad/internal/format"
	"shopsquad/internal/models"
)

type SquadSummaryArgs struct {
	SquadID string `json:"squad_id"`
}

// SquadSummaryTaskDef logs a snapshot of a squad's list: who is in, how many
// products there are, the total and how much nobody has picked up yet.
// Scheduled with an RRULE it gives organizers a periodic audit trail.
type SquadSummaryTaskDef struct{}

func (t *SquadSummaryTaskDef) TaskID() string {
	return "log_squad_summary"
}

// CreateTask builds a summary task; a non-empty rule makes it recurring.
func (t *SquadSummaryTaskDef) CreateTask(squadID string, due time.Time, rule string) (*models.ScheduledTask, error) {
	if rule == "" {
		return BuildScheduledTask(t.TaskID(), SquadSummaryArgs{SquadID: squadID}, due, nil, models.ScheduledTaskTypeOneTime, 1)
	}
	return BuildScheduledTask(t.TaskID(), SquadSummaryArgs{SquadID: squadID}, due, &rule, models.ScheduledTaskTypeRecurring, 1)
}

func (t *SquadSummaryTaskDef) HandleExecution(ctx context.Context, deps Deps, task models.ScheduledTask) (map[string]interface{}, error) {
	args, err := decodeArgs[SquadSummaryArgs](task)
	if err != nil {
		return nil, err
	}
	if args.SquadID == "" {
		return nil, fmt.Errorf("squad_id is missing")
	}

	squad, err := deps.Squads.GetSquad(ctx, args.SquadID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return map[string]interface{}{"status": "squad_not_found"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load squad %s: %w", args.SquadID, err)
	}

	total := cost.Total(squad.Products)
	unassigned := cost.Unassigned(squad.Products)
	deps.logger().InfoContext(ctx, "squad summary",
		"task_id", task.ID,
		"squad_id", squad.ID,
		"title", squad.Title,
		"participants", len(squad.Participants),
		"products", len(squad.Products),
		"total", format.Currency(total),
		"unassigned", format.Currency(unassigned),
	)

	return map[string]interface{}{
		"status":       "success",
		"squad_id":     squad.ID,
		"participants": len(squad.Participants),
		"products":     len(squad.Products),
		"total":        total,
		"unassigned":   unassigned,
	}, nil
}

var SquadSummaryTask = &SquadSummaryTaskDef{}
