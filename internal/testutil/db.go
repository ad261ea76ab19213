// Package testutil holds helpers shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/pkg/database"
)

var dbSeq atomic.Int64

// NewDB opens a private in-memory SQLite database migrated with the
// production models. It is closed when the test ends.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))

	db, err := database.Open(database.Config{
		Driver:       "sqlite",
		FilePath:     dsn,
		MaxOpenConns: 1,
		LogLevel:     "error",
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := db.AutoMigrate(domain.Models()...); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// SeedUsers inserts users named after their ids.
func SeedUsers(t testing.TB, db *gorm.DB, ids ...string) {
	t.Helper()
	for _, id := range ids {
		model := domain.UserToModel(&domain.User{ID: id, Name: "name-" + id, Email: id + "@example.com"})
		if err := db.Create(model).Error; err != nil {
			t.Fatalf("seed user %s: %v", id, err)
		}
	}
}
