package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shopsquad/internal/models"
	"shopsquad/internal/services"
)

const notificationRetryDelay = 5 * time.Minute

// NotificationUser is one recipient of a templated notification
type NotificationUser struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// SendNotificationArgs defines the arguments for a notification task
type SendNotificationArgs struct {
	Users         []NotificationUser `json:"users"`
	NotifTemplate string             `json:"notiftemplate"`
	Subject       string             `json:"subject"`
	SquadTitle    string             `json:"squad_title"`
	AttemptCount  int                `json:"attempt_count"`
}

// SendNotificationTaskDef encapsulates the notification task logic
type SendNotificationTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *SendNotificationTaskDef) TaskID() string {
	return "send_notification"
}

// CreateTask builds a ScheduledTask record for this task
func (t *SendNotificationTaskDef) CreateTask(args SendNotificationArgs, due time.Time) (*models.ScheduledTask, error) {
	return BuildScheduledTask(t.TaskID(), args, due, nil, models.ScheduledTaskTypeOneTime, 3)
}

// HandleExecution sends the template to every user according to their
// preference. Users that failed are rescheduled as a new task until the
// attempt budget is spent.
func (t *SendNotificationTaskDef) HandleExecution(ctx context.Context, deps Deps, task models.ScheduledTask) (map[string]interface{}, error) {
	logger := deps.logger()
	parsedArgs, err := decodeArgs[SendNotificationArgs](task)
	if err != nil {
		return nil, err
	}
	if parsedArgs.NotifTemplate == "" {
		return nil, fmt.Errorf("notiftemplate is missing")
	}

	subject := "Notification"
	if parsedArgs.Subject != "" {
		subject = parsedArgs.Subject
	}

	total := len(parsedArgs.Users)
	successCount := 0
	skippedCount := 0
	failureCount := 0
	var failures []string
	var failedUsers []NotificationUser

	for _, user := range parsedArgs.Users {
		pref, found, err := deps.Preferences.Preference(ctx, user.UserID)
		if err != nil {
			logger.Error("fetching preference failed", "user_id", user.UserID, "error", err)
			failureCount++
			failures = append(failures, fmt.Sprintf("%s: db error", user.Name))
			failedUsers = append(failedUsers, user)
			continue
		}
		if !found {
			logger.Info("skipping notification, no preference found", "user_id", user.UserID)
			skippedCount++
			continue
		}
		if pref.Email == "" {
			pref.Email = user.Email
		}

		msg := replacePlaceholders(parsedArgs.NotifTemplate, user, parsedArgs)
		sendErr := deps.Sender.Send(ctx, pref, subject, msg)
		switch {
		case errors.Is(sendErr, services.ErrChannelDisabled):
			skippedCount++
		case sendErr != nil:
			logger.Warn("sending notification failed", "user_id", user.UserID, "channel", pref.Channel, "error", sendErr)
			failureCount++
			failures = append(failures, fmt.Sprintf("%s: %v", user.Name, sendErr))
			failedUsers = append(failedUsers, user)
		default:
			successCount++
		}
	}

	result := map[string]interface{}{
		"total":   total,
		"success": successCount,
		"skipped": skippedCount,
		"failure": failureCount,
	}
	if failureCount == 0 {
		return result, nil
	}

	result["errors"] = failures
	attempt := parsedArgs.AttemptCount
	if attempt+1 >= task.MaxAttempt {
		return result, fmt.Errorf("max attempts reached, failed to deliver to %d users", len(failedUsers))
	}

	newArgs := parsedArgs
	newArgs.Users = failedUsers
	newArgs.AttemptCount = attempt + 1

	newTask, err := BuildScheduledTask(t.TaskID(), newArgs, time.Now().Add(notificationRetryDelay), nil, models.ScheduledTaskTypeOneTime, task.MaxAttempt)
	if err != nil {
		return result, fmt.Errorf("failed to build retry task: %w", err)
	}
	if err := deps.Tasks.Create(ctx, newTask); err != nil {
		return result, fmt.Errorf("failed to create retry task: %w", err)
	}
	logger.Info("partial failure, rescheduled", "failed_users", len(failedUsers), "attempt", newArgs.AttemptCount+1, "retry_task_id", newTask.ID)
	result["retry_task_id"] = newTask.ID
	return result, nil
}

// SendNotificationTask is the singleton instance of SendNotificationTaskDef
var SendNotificationTask = &SendNotificationTaskDef{}

func replacePlaceholders(template string, user NotificationUser, args SendNotificationArgs) string {
	return strings.NewReplacer(
		"$name", user.Name,
		"$email", user.Email,
		"$subject", args.Subject,
		"$squad_title", args.SquadTitle,
	).Replace(template)
}
