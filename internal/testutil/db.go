// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/okian/whovapes/internal/adapters/repository"
	"github.com/okian/whovapes/internal/domain/model"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenTestStore opens a private in-memory SQLite store with the schema migrated.
func OpenTestStore(t testing.TB, opts ...repository.Option) *repository.GormStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	store, err := repository.New(context.Background(), db, repository.DriverSQLite, opts...)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// SeedCelebrities inserts one celebrity per name, each at rating, and returns them in order.
func SeedCelebrities(t testing.TB, store repository.Store, rating int, names ...string) []model.Celebrity {
	t.Helper()

	out := make([]model.Celebrity, 0, len(names))
	for _, name := range names {
		c, err := model.NewCelebrity(name, name, time.Now())
		if err != nil {
			t.Fatalf("new celebrity %q: %v", name, err)
		}
		c.Rating = rating
		if err := store.CreateCelebrity(context.Background(), c); err != nil {
			t.Fatalf("seed celebrity %q: %v", name, err)
		}
		out = append(out, c)
	}
	return out
}
