package database

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewGorm opens a gorm session on top of the pgx pool so both layers share connections
func NewGorm(db *PostgresDB, debug bool) (*gorm.DB, error) {
	sqlDB := stdlib.OpenDBFromPool(db.Pool())

	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(level),
		SkipDefaultTransaction: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}

	return gdb, nil
}
