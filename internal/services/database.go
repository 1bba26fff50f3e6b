package services

import (
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shopsquad/internal/models"
	"shopsquad/internal/store/sqlstore"
)

// InitDB initializes the database connection with connection pooling
func InitDB(dsn string, debug bool) (*gorm.DB, error) {
	level := logger.Warn
	if debug {
		level = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	slog.Info("database connection established")
	return db, nil
}

// AutoMigrate creates the scheduler and preference tables, plus the squad
// tables when withSquads is set.
func AutoMigrate(db *gorm.DB, withSquads bool) error {
	slog.Info("running database migrations", "squad_tables", withSquads)

	tables := []interface{}{
		&models.ScheduledTask{},
		&models.ScheduledTaskHistory{},
		&models.UserNotifPreference{},
	}
	if withSquads {
		tables = append(tables, sqlstore.Models()...)
	}

	if err := db.AutoMigrate(tables...); err != nil {
		return err
	}

	slog.Info("database migrations completed")
	return nil
}
