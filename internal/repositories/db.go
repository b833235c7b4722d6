// Package repositories provides data access layer implementations.
// It persists normalized provider records and reads them back by merchant
// and time window.
package repositories

import (
	"fmt"
	"log"
	"os"
	"time"

	"revattest/internal/config"
	"revattest/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens the Postgres connection, applies the pool settings, and
// migrates the record tables.
func InitDB(cfg config.DBConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{Logger: newLogger()})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Println("PostgreSQL connected & migrations applied")
	return db, nil
}

// Migrate creates or updates the normalized record tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.NormalizedOrder{},
		&models.NormalizedRefund{},
		&models.NormalizedCustomer{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// DropAll removes the record tables. Used by the backfill --reset flag.
func DropAll(db *gorm.DB) error {
	return db.Migrator().DropTable(
		&models.NormalizedOrder{},
		&models.NormalizedRefund{},
		&models.NormalizedCustomer{},
	)
}

// newLogger logs slow queries and errors, ignoring "record not found".
func newLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
