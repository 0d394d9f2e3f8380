package audit

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/rbac-core/internal/infrastructure/database"
	_ "github.com/nerrad567/rbac-core/migrations" // registers the schema
)

func testRepo(t *testing.T) (*SQLiteRepository, *sql.DB) {
	t.Helper()

	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "audit.db"), BusyTimeout: 5})
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return NewSQLiteRepository(db.DB), db.DB
}

func TestCreate_FillsDefaults(t *testing.T) {
	repo, db := testRepo(t)

	e := &Entry{Action: "signup", EntityType: "user", EntityID: "u1", Source: "api"}
	if err := repo.Create(context.Background(), e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Errorf("Create() did not fill ID/CreatedAt: %+v", e)
	}

	var userID, details sql.NullString
	if err := db.QueryRow("SELECT user_id, details FROM audit_logs WHERE id = ?", e.ID).Scan(&userID, &details); err != nil {
		t.Fatalf("reading row: %v", err)
	}
	if userID.Valid || details.Valid {
		t.Errorf("empty user_id/details should be NULL, got %v / %v", userID, details)
	}
}

func TestList_FiltersAndOrder(t *testing.T) {
	repo, _ := testRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, e := range []Entry{
		{Action: "signup", UserID: "u1", EntityID: "u1"},
		{Action: "signin_failed", EntityID: "u1", Details: map[string]any{"reason": "bad_password"}},
		{Action: "signin_succeeded", UserID: "u2", EntityID: "u2"},
		{Action: "signin_failed", UserID: "u2", EntityID: "u2"},
	} {
		e.EntityType = "user"
		e.Source = "api"
		e.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(ctx, &e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	all, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if all.Total != 4 || len(all.Entries) != 4 || all.Limit != defaultLimit {
		t.Fatalf("List() = total %d, len %d, limit %d", all.Total, len(all.Entries), all.Limit)
	}
	if all.Entries[0].Action != "signin_failed" || all.Entries[0].UserID != "u2" {
		t.Errorf("newest entry = %+v", all.Entries[0])
	}

	failed, err := repo.List(ctx, Filter{Action: "signin_failed", UserID: "u1"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if failed.Total != 1 {
		t.Fatalf("filtered total = %d, want 1", failed.Total)
	}
	if got := failed.Entries[0].Details["reason"]; got != "bad_password" {
		t.Errorf("details reason = %v", got)
	}

	recent, err := repo.List(ctx, Filter{Since: base.Add(2 * time.Minute), Limit: 1})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if recent.Total != 2 || len(recent.Entries) != 1 {
		t.Errorf("since filter = total %d, len %d, want 2 and 1", recent.Total, len(recent.Entries))
	}
}

func TestClampLimit(t *testing.T) {
	for in, want := range map[int]int{-1: defaultLimit, 0: defaultLimit, 10: 10, 500: maxLimit} {
		if got := clampLimit(in); got != want {
			t.Errorf("clampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
