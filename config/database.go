package config

import (
	"fmt"
	"time"

	"cheerful-reminder-backend/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func ConnectDB(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DB_URL is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// Migrate creates the tables owned by this service. Profiles belong to the
// identity provider and are only migrated when asked for local development.
func Migrate(db *gorm.DB, withProfiles bool) error {
	tables := []interface{}{&models.Reminder{}, &models.NotificationLog{}}
	if withProfiles {
		tables = append(tables, &models.Profile{})
	}
	return db.AutoMigrate(tables...)
}
