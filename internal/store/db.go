package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"faceattend/internal/models"
)

// DB wraps a gorm handle and the pool beneath it.
type DB struct {
	Gorm *gorm.DB
	SQL  *sql.DB
}

// Open connects to Postgres (through the pgx stdlib driver) or SQLite.
func Open(driver, dsn string) (*DB, error) {
	gcfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	}

	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		sqlDB, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)
		dialector = postgres.New(postgres.Config{Conn: sqlDB})
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	gdb, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// one connection keeps ":memory:" databases alive and avoids SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
		if err := gdb.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	db := &DB{Gorm: gdb, SQL: sqlDB}
	return db, db.Ping(context.Background())
}

// Migrate creates or updates the schema.
func (d *DB) Migrate() error {
	if err := d.Gorm.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (d *DB) Ping(ctx context.Context) error {
	if d == nil || d.SQL == nil {
		return fmt.Errorf("database not connected")
	}
	return d.SQL.PingContext(ctx)
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.SQL == nil {
		return nil
	}
	return d.SQL.Close()
}
