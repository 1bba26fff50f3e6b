package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shopsquad/internal/apperrors"
	"shopsquad/internal/cost"
	"shopsquad/internal/format"
	"shopsquad/internal/models"
	"shopsquad/internal/services"
	"shopsquad/internal/squads"
	"shopsquad/internal/timestamp"
)

// reminderSentTTL bounds how long a delivered reminder blocks a resend.
const reminderSentTTL = 7 * 24 * time.Hour

type SquadReminderArgs struct {
	SquadID string `json:"squad_id"`
}

// SquadReminderTaskDef tells every participant of a squad when and where the
// meetup is and what their share of the list costs.
type SquadReminderTaskDef struct{}

func (t *SquadReminderTaskDef) TaskID() string {
	return "send_squad_reminder"
}

func (t *SquadReminderTaskDef) CreateTask(squadID string, due time.Time) (*models.ScheduledTask, error) {
	return BuildScheduledTask(t.TaskID(), SquadReminderArgs{SquadID: squadID}, due, nil, models.ScheduledTaskTypeOneTime, 3)
}

func (t *SquadReminderTaskDef) HandleExecution(ctx context.Context, deps Deps, task models.ScheduledTask) (map[string]interface{}, error) {
	logger := deps.logger()
	args, err := decodeArgs[SquadReminderArgs](task)
	if err != nil {
		return nil, err
	}
	if args.SquadID == "" {
		return nil, fmt.Errorf("squad_id is missing")
	}

	squad, err := deps.Squads.GetSquad(ctx, args.SquadID)
	if errors.Is(err, apperrors.ErrNotFound) {
		// deleted squads have nobody left to remind
		return map[string]interface{}{"status": "squad_not_found"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load squad %s: %w", args.SquadID, err)
	}

	dist := cost.ForSquad(*squad)
	subject := "Reminder: " + squad.Title
	sent, skipped, failed := 0, 0, 0
	var failures []string

	for _, p := range squad.Participants {
		pref, found, err := deps.Preferences.Preference(ctx, p.ID)
		if err != nil {
			failed++
			failures = append(failures, fmt.Sprintf("%s: %v", p.ID, err))
			continue
		}
		if !found {
			skipped++
			continue
		}

		key := fmt.Sprintf("reminder:%s:%s", squad.ID, p.ID)
		if deps.Cache != nil {
			fresh, err := deps.Cache.Claim(ctx, key, reminderSentTTL)
			if err != nil {
				logger.Warn("reminder dedupe unavailable", "key", key, "error", err)
			} else if !fresh {
				skipped++
				continue
			}
		}

		line, _ := dist.LineFor(p.ID)
		err = deps.Sender.Send(ctx, pref, subject, ReminderBody(*squad, line, deps.AppURL, deps.location()))
		switch {
		case errors.Is(err, services.ErrChannelDisabled):
			skipped++
		case err != nil:
			if deps.Cache != nil {
				_ = deps.Cache.Release(ctx, key)
			}
			logger.Warn("sending reminder failed", "squad_id", squad.ID, "user_id", p.ID, "channel", pref.Channel, "error", err)
			failed++
			failures = append(failures, fmt.Sprintf("%s: %v", p.ID, err))
		default:
			sent++
		}
	}

	result := map[string]interface{}{
		"squad_id": squad.ID,
		"sent":     sent,
		"skipped":  skipped,
		"failure":  failed,
	}
	if failed > 0 {
		result["errors"] = failures
		return result, fmt.Errorf("failed to remind %d participants", failed)
	}
	return result, nil
}

// SquadReminderTask is the singleton instance of SquadReminderTaskDef
var SquadReminderTask = &SquadReminderTaskDef{}

// ReminderBody is the text a participant receives before the meetup.
func ReminderBody(squad models.Squad, line cost.Line, appURL string, loc *time.Location) string {
	var b strings.Builder
	name := line.Participant.Name
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "%s is on %s at %s, %s.\n",
		squad.Title,
		timestamp.FormatDateIn(squad.Date, loc),
		timestamp.FormatTimeIn(squad.Date, loc),
		squad.Location)
	if line.Total > 0 {
		fmt.Fprintf(&b, "Your share of the list is %s (%s).\n", format.Currency(line.Total), format.Percent(line.Share))
	} else {
		b.WriteString("Nothing on the list is assigned to you yet.\n")
	}
	if appURL != "" {
		fmt.Fprintf(&b, "\n%s\n", squads.InviteLink(appURL, squad.ID))
	}
	return b.String()
}
