package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"motorpool/paddock/internal/config"
	"motorpool/paddock/internal/logging"
	gormModels "motorpool/paddock/internal/models/gorm"
)

var ORM *gorm.DB

// InitORM opens the configured backend with GORM and runs the forward-only
// schema migration. AutoMigrate only ever adds missing tables, columns and
// indexes; existing data is untouched.
func InitORM(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.Database.DSN)
	default:
		dialector = sqlite.Open(cfg.DatabasePath())
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Database.Driver, err)
	}

	if err := gdb.AutoMigrate(&gormModels.Reading{}, &gormModels.Trip{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	ORM = gdb
	logging.Info("Database connected via GORM", "driver", cfg.Database.Driver)
	return gdb, nil
}
