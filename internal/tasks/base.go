package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"shopsquad/internal/models"
	"shopsquad/internal/services"
	"shopsquad/internal/store"
)

// TaskStore persists scheduled tasks and their run history.
type TaskStore interface {
	Due(ctx context.Context, now time.Time) ([]models.ScheduledTask, error)
	Create(ctx context.Context, task *models.ScheduledTask) error
	Update(ctx context.Context, task models.ScheduledTask, updates map[string]interface{}) error
	RecordRun(ctx context.Context, history *models.ScheduledTaskHistory) error
}

// Preferences looks up how a user wants to be notified. found is false for
// users who never saved a preference.
type Preferences interface {
	Preference(ctx context.Context, userID string) (pref models.UserNotifPreference, found bool, err error)
}

// Sender delivers one message according to a preference. *services.Notifications satisfies it.
type Sender interface {
	Send(ctx context.Context, pref models.UserNotifPreference, subject, body string) error
}

// Deps is what task handlers may use. Cache may be nil.
type Deps struct {
	Tasks       TaskStore
	Preferences Preferences
	Sender      Sender
	Squads      store.Backend
	Cache       *services.RedisCache
	Location    *time.Location
	AppURL      string
	Logger      *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d Deps) location() *time.Location {
	if d.Location == nil {
		return time.Local
	}
	return d.Location
}

// BuildScheduledTask is a helper to build ScheduledTask records generically
func BuildScheduledTask(taskName string, args interface{}, due time.Time, recurringInterval *string, taskType models.ScheduledTaskType, maxAttempt int) (*models.ScheduledTask, error) {
	argsBytes, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal args: %w", err)
	}

	var mapArgs map[string]interface{}
	if err := json.Unmarshal(argsBytes, &mapArgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into map: %w", err)
	}

	return &models.ScheduledTask{
		TaskName:          taskName,
		Arguments:         mapArgs,
		Due:               due,
		RecurringInterval: recurringInterval,
		Status:            models.ScheduledTaskStatusActive,
		TaskType:          taskType,
		MaxAttempt:        maxAttempt,
	}, nil
}

// decodeArgs reads a task's argument map into T.
func decodeArgs[T any](task models.ScheduledTask) (T, error) {
	var out T
	argsBytes, err := json.Marshal(task.Arguments)
	if err != nil {
		return out, fmt.Errorf("failed to marshal args: %w", err)
	}
	if err := json.Unmarshal(argsBytes, &out); err != nil {
		return out, fmt.Errorf("failed to unmarshal args: %w", err)
	}
	return out, nil
}

// GormStore keeps tasks, history and preferences in the relational database.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) Due(ctx context.Context, now time.Time) ([]models.ScheduledTask, error) {
	var pending []models.ScheduledTask
	err := s.DB.WithContext(ctx).
		Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, now).
		Order("due").
		Find(&pending).Error
	return pending, err
}

func (s *GormStore) Create(ctx context.Context, task *models.ScheduledTask) error {
	return s.DB.WithContext(ctx).Create(task).Error
}

func (s *GormStore) Update(ctx context.Context, task models.ScheduledTask, updates map[string]interface{}) error {
	return s.DB.WithContext(ctx).Model(&task).Updates(updates).Error
}

func (s *GormStore) RecordRun(ctx context.Context, history *models.ScheduledTaskHistory) error {
	return s.DB.WithContext(ctx).Create(history).Error
}

func (s *GormStore) Preference(ctx context.Context, userID string) (models.UserNotifPreference, bool, error) {
	var pref models.UserNotifPreference
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pref, false, nil
	}
	if err != nil {
		return pref, false, err
	}
	return pref, true, nil
}

// SavePreference inserts or updates the user's preference row.
func (s *GormStore) SavePreference(ctx context.Context, pref *models.UserNotifPreference) error {
	return s.DB.WithContext(ctx).Save(pref).Error
}
