package database

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/velora-health/privacy-engine/internal/config"
	"github.com/velora-health/privacy-engine/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Connect(cfg *config.Config) error {
	var err error
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	slog.Info("database connected")
	return nil
}

// Migrate runs AutoMigrate for every table across the three tiers plus the
// cross-cutting stores.
func Migrate() error {
	return DB.AutoMigrate(
		// Tier 1
		&models.User{},
		&models.Chat{},
		&models.ChatMessage{},
		&models.BloodworkReport{},
		&models.UserActivity{},
		&models.Credential{},
		// Consent and privacy requests
		&models.ConsentRecord{},
		&models.ProcessingRestriction{},
		&models.ErasureRequest{},
		&models.LegalHold{},
		// Tier 2
		&models.AnonymizedQAPair{},
		&models.AnonymizedBloodwork{},
		&models.TrainingFeedback{},
		// Tier 3
		&models.AnalyticsAggregate{},
		// Cross-cutting
		&models.AuditLogEntry{},
		&models.VectorDocument{},
		&models.SystemLog{},
	)
}

func Ping() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
