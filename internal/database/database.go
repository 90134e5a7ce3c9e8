// Package database opens throwaway sqlite databases for tests and local runs.
package database

import (
	"fmt"

	infrarepo "github.com/amirasaad/chipload/infra/repository"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite" // Sqlite driver based on CGO
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to an in-memory sqlite database private to the caller and
// migrates every model. The pool is pinned to one connection so concurrent
// callers are serialized like row locks would serialize them.
func Open() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	connection, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("could not connect to the database: %w", err)
	}
	sqlDB, err := connection.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := connection.AutoMigrate(infrarepo.Models()...); err != nil {
		return nil, err
	}
	return connection, nil
}

// MustOpen is Open for tests.
func MustOpen(t interface {
	Fatalf(format string, args ...any)
	Cleanup(func())
}) *gorm.DB {
	db, err := Open()
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
