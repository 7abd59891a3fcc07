// Package gormstore persists cached records in a SQL database through gorm.
//
// Latest rates and market listings are migrated additively. Chart series are
// disposable: when their schema version changes the tables are dropped and
// recreated.
package gormstore

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// chartSchemaVersion is bumped whenever the chart tables change shape.
const chartSchemaVersion = 2

type schemaVersion struct {
	Name    string `gorm:"primaryKey;size:64"`
	Version int
}

func (schemaVersion) TableName() string { return "schema_versions" }

// Open connects to driver ("sqlite" or "postgres") and runs migrations.
func Open(driver, dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite allows one writer; a single connection also keeps
		// shared in-memory databases alive and consistent.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate brings all cache tables up to date.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&schemaVersion{}, &rateRow{}, &marketListingRow{}, &marketRow{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	var v schemaVersion
	err := db.Where("name = ?", "chart").First(&v).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("read chart schema version: %w", err)
	}
	if v.Version != chartSchemaVersion {
		if err := db.Migrator().DropTable(&chartPointRow{}, &chartSeriesRow{}); err != nil {
			return fmt.Errorf("drop chart tables: %w", err)
		}
	}
	if err := db.AutoMigrate(&chartSeriesRow{}, &chartPointRow{}); err != nil {
		return fmt.Errorf("migrate chart tables: %w", err)
	}
	if v.Version != chartSchemaVersion {
		if err := db.Save(&schemaVersion{Name: "chart", Version: chartSchemaVersion}).Error; err != nil {
			return fmt.Errorf("save chart schema version: %w", err)
		}
	}
	return nil
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
