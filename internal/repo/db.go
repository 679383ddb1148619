// Package repo implements the data persistence layer for brokers, catalog
// items, media, sessions, and the inbound dedup ledger, backed by GORM. This
// file contains database bootstrapping helpers for SQLite (pure Go driver)
// and schema migrations.
package repo

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-catalog-bot/internal/domain"
)

// Pragmas applied to every connection opened by OpenSQLite. They travel in
// the DSN so the driver runs them on each new pooled connection. WAL lets
// webhook reads proceed while a flush writes media rows.
var Pragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// MaxOpenConns bounds the pool. SQLite serializes writers anyway.
const MaxOpenConns = 10

// OpenSQLite opens (or creates) a SQLite database with Pragmas, tunes the
// pool, and installs the OpenTelemetry GORM plugin so every query becomes a
// child span of the inbound request. DSNs starting with "file:" skip the
// directory check.
func OpenSQLite(path string) (*gorm.DB, error) {
	// A missing parent directory surfaces as "out of memory (14)" from
	// SQLite on some platforms; report it plainly.
	if !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			if _, err := os.Stat(dir); err != nil {
				return nil, err
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(withPragmas(path)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin()); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(MaxOpenConns)
	sqlDB.SetMaxIdleConns(MaxOpenConns)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// withPragmas appends Pragmas to path as _pragma query parameters.
func withPragmas(path string) string {
	params := make([]string, len(Pragmas))
	for i, p := range Pragmas {
		params[i] = "_pragma=" + p
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(params, "&")
}

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Broker{},
		&domain.Item{},
		&domain.MediaAsset{},
		&domain.DedupRecord{},
		&domain.SessionRow{},
		&domain.Sequence{},
	)
}
