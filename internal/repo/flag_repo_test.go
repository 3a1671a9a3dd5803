package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/callwise/go-failover-backend/internal/domain"
)

func newFlagRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("flag_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func strptr(s string) *string { return &s }

func TestGetFlag_NotFound(t *testing.T) {
	db := newFlagRepoDB(t, &domain.Flag{})

	if _, err := GetFlag(context.Background(), db, "nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSeedFlag_InsertsOnceAndKeepsExisting(t *testing.T) {
	db := newFlagRepoDB(t, &domain.Flag{})
	ctx := context.Background()

	if err := SeedFlag(ctx, db, domain.Flag{Key: "ai_enabled", Enabled: true}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Operator flips the flag off; a re-seed must not flip it back.
	if err := UpdateFlag(ctx, db, "ai_enabled", false, nil, "kill switch", "oncall"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := SeedFlag(ctx, db, domain.Flag{Key: "ai_enabled", Enabled: true}); err != nil {
		t.Fatalf("re-seed: %v", err)
	}

	f, err := GetFlag(ctx, db, "ai_enabled")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if f.Enabled {
		t.Fatalf("re-seed overwrote operator change: %+v", f)
	}
	if f.Notes != "kill switch" || f.UpdatedBy != "oncall" {
		t.Fatalf("update fields lost: %+v", f)
	}
}

func TestSeedFlag_DefaultsScope(t *testing.T) {
	db := newFlagRepoDB(t, &domain.Flag{})

	if err := SeedFlag(context.Background(), db, domain.Flag{Key: "voice_enabled"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	f, err := GetFlag(context.Background(), db, "voice_enabled")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if f.Scope != domain.FlagScopeGlobal {
		t.Fatalf("expected global scope default, got %q", f.Scope)
	}
}

func TestUpdateFlag_UnknownKeyReturnsNotFound(t *testing.T) {
	db := newFlagRepoDB(t, &domain.Flag{})

	err := UpdateFlag(context.Background(), db, "ghost", true, nil, "", "op")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateFlag_NilValueLeavesValueUntouched(t *testing.T) {
	db := newFlagRepoDB(t, &domain.Flag{})
	ctx := context.Background()

	seed := domain.Flag{Key: "ai_preferred_provider", Enabled: true, Value: strptr("openai")}
	if err := SeedFlag(ctx, db, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// nil value: only the enabled bit moves.
	if err := UpdateFlag(ctx, db, "ai_preferred_provider", false, nil, "", "op"); err != nil {
		t.Fatalf("update nil value: %v", err)
	}
	f, err := GetFlag(ctx, db, "ai_preferred_provider")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if f.Enabled || f.Value == nil || *f.Value != "openai" {
		t.Fatalf("nil value update clobbered Value: %+v", f)
	}

	// explicit value: replaced.
	if err := UpdateFlag(ctx, db, "ai_preferred_provider", true, strptr("anthropic"), "", "op"); err != nil {
		t.Fatalf("update with value: %v", err)
	}
	f, err = GetFlag(ctx, db, "ai_preferred_provider")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if f.Value == nil || *f.Value != "anthropic" {
		t.Fatalf("value not replaced: %+v", f)
	}
}

func TestListFlags_OrderedByKey(t *testing.T) {
	db := newFlagRepoDB(t, &domain.Flag{})
	ctx := context.Background()

	for _, k := range []string{"voice_enabled", "ai_enabled", "calls_enabled"} {
		if err := SeedFlag(ctx, db, domain.Flag{Key: k, Enabled: true}); err != nil {
			t.Fatalf("seed %s: %v", k, err)
		}
	}

	flags, err := ListFlags(ctx, db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(flags) != 3 {
		t.Fatalf("expected 3 flags, got %d", len(flags))
	}
	want := []string{"ai_enabled", "calls_enabled", "voice_enabled"}
	for i, k := range want {
		if flags[i].Key != k {
			t.Fatalf("order mismatch at %d: got %q want %q", i, flags[i].Key, k)
		}
	}
}
