package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"shopsquad/internal/config"
	"shopsquad/internal/models"
	"shopsquad/internal/services"
	"shopsquad/internal/tasks"
	"shopsquad/pkg/logging"
)

func main() {
	// defined flags
	taskName := flag.String("task_name", "", "Name of the task (mandatory)")
	argsStr := flag.String("arguments", "", "JSON arguments for the task (mandatory)")
	dueStr := flag.String("due", "", "Due date (mandatory, format: 2006-01-02 15:04 in DISPLAY_TIMEZONE, or RFC3339)")
	taskType := flag.String("tasktype", "onetime", "Task type: onetime or recurring")
	recurring := flag.String("recurring", "", "Recurring interval RRULE, e.g. FREQ=WEEKLY;BYDAY=SA (optional)")
	maxAttempt := flag.Int("max_attempt", 3, "Max attempts")
	flag.Parse()

	registry := tasks.DefineTasks(tasks.NewRegistry())

	// Validation
	if *taskName == "" || *argsStr == "" || *dueStr == "" {
		fmt.Println("Usage: schedule_task -task_name <name> -arguments <json_args> -due <YYYY-MM-DD HH:MM> [options]")
		fmt.Println("Tasks:", registry.Names())
		flag.PrintDefaults()
		os.Exit(1)
	}
	if _, ok := registry.Get(*taskName); !ok {
		fmt.Printf("Unknown task %q. Tasks: %v\n", *taskName, registry.Names())
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.SetupWithLevel(logging.ParseLevel(cfg.LogLevel))
	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is not set")
		os.Exit(1)
	}

	// Parse arguments JSON
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(*argsStr), &args); err != nil {
		logger.Error("invalid JSON arguments", "error", err)
		os.Exit(1)
	}

	due, err := parseDue(*dueStr, cfg.DisplayTimezone)
	if err != nil {
		logger.Error("invalid due date", "error", err)
		os.Exit(1)
	}

	var recurringPtr *string
	if *recurring != "" {
		recurringPtr = recurring
	}

	task := models.ScheduledTask{
		TaskName:          *taskName,
		Arguments:         args,
		Due:               due,
		TaskType:          models.ScheduledTaskType(*taskType),
		RecurringInterval: recurringPtr,
		MaxAttempt:        *maxAttempt,
		Status:            models.ScheduledTaskStatusActive,
	}
	if err := task.Validate(); err != nil {
		logger.Error("invalid task", "error", err)
		os.Exit(1)
	}

	db, err := services.InitDB(cfg.DatabaseURL, false)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := tasks.NewGormStore(db).Create(context.Background(), &task); err != nil {
		logger.Error("failed to create task", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully created task ID: %d\n", task.ID)
	fmt.Printf("Task: %s\nDue: %s\nType: %s\n", task.TaskName, task.Due, task.TaskType)
}

func parseDue(s string, loc *time.Location) (time.Time, error) {
	if due, err := time.Parse(time.RFC3339, s); err == nil {
		return due, nil
	}
	due, err := time.ParseInLocation("2006-01-02 15:04", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("use '2006-01-02 15:04' or RFC3339: %w", err)
	}
	return due, nil
}
