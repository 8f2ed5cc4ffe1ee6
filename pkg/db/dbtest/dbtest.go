// Package dbtest opens throwaway in-memory SQLite databases with the full schema.
package dbtest

import (
	"io"
	"log"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/tourbook-backend/pkg/db"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
)

// Open returns a migrated database unique to t. A single connection keeps the shared
// in-memory database alive and serializes access.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:tb_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.New(log.New(io.Discard, "", 0), gormlogger.Config{LogLevel: gormlogger.Silent}),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := models.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

// OpenClient is Open wrapped in a db.Client for services that need WithTx.
func OpenClient(t testing.TB) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.Wrap(conn), conn
}
