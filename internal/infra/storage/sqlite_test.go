package storage

import (
	"context"
	"path/filepath"
	"testing"

	"dca_ladder/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *Storage {
	dbName := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	if err := db.AutoMigrate(&domain.StateEntry{}); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	s := &Storage{db: db}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestSetAndGet(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	// 1. Create
	if err := s.Set(ctx, map[string]string{"sellOrders": `["a","b"]`, "unrecoverable": "false"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// 2. Get
	value, found, err := s.Get(ctx, "sellOrders")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("expected sellOrders to be found")
	}
	if value != `["a","b"]` {
		t.Errorf("expected [\"a\",\"b\"], got %s", value)
	}
}

func TestUpdateValue(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	s.Set(ctx, map[string]string{"buyOrder": `"before"`})

	// Update
	if err := s.Set(ctx, map[string]string{"buyOrder": `"after"`}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	value, _, _ := s.Get(ctx, "buyOrder")
	if value != `"after"` {
		t.Errorf("expected '\"after\"', got '%s'", value)
	}

	all, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected a single row after update, got %d", len(all))
	}
}

func TestGetMissingKey(t *testing.T) {
	s := setupTestDB(t)

	value, found, err := s.Get(context.Background(), "firstSellPrice")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found || value != "" {
		t.Errorf("expected missing key, got %q (found=%t)", value, found)
	}
}

func TestNewStorage_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "ladder.db")

	s, err := NewStorage(path)
	if err != nil {
		t.Fatalf("NewStorage failed: %v", err)
	}
	defer s.Close()

	if err := s.Set(context.Background(), map[string]string{"unrecoverable": "true"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
}
