package audit

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-fetcher/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-fetcher/migrations"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(t.Context(), database.Config{
		Path:    filepath.Join(t.TempDir(), "audit.db"),
		WALMode: true,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(t.Context(), migrations.FS); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db.DB
}

func TestCreate(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := t.Context()

	log := &AuditLog{
		Action:    ActionCycle,
		Source:    "eufy",
		Outcome:   OutcomeError,
		ErrorKind: "network",
		Details:   map[string]any{"devices": 3, "error": "dial tcp: refused"},
	}
	if err := repo.Create(ctx, log); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !strings.HasPrefix(log.ID, "aud-") {
		t.Errorf("ID = %q, want aud- prefix", log.ID)
	}
	if log.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 || len(result.Logs) != 1 {
		t.Fatalf("List() = %+v", result)
	}
	got := result.Logs[0]
	if got.ErrorKind != "network" || got.Details["devices"] != float64(3) {
		t.Errorf("round trip = %+v", got)
	}
}

func TestCreate_RequiresFields(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	if err := repo.Create(t.Context(), &AuditLog{Action: ActionCycle}); err == nil {
		t.Error("Create() without source/outcome succeeded")
	}
}

func TestList_FilterAndPaging(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := t.Context()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	entries := []AuditLog{
		{Action: ActionCycle, Source: "eufy", Outcome: OutcomeOK},
		{Action: ActionSessionReset, Source: "eufy", Outcome: OutcomeOK, ErrorKind: "decrypt"},
		{Action: ActionCycle, Source: "eufy", Outcome: OutcomeError, ErrorKind: "auth"},
		{Action: ActionCycle, Source: "eufy", Outcome: OutcomePartial},
	}
	for i := range entries {
		entries[i].CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(ctx, &entries[i]); err != nil {
			t.Fatalf("Create(%d) error = %v", i, err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantLen   int
		wantFirst string // outcome of the first (newest) row
	}{
		{"all", Filter{}, 4, 4, OutcomePartial},
		{"cycles only", Filter{Action: ActionCycle}, 3, 3, OutcomePartial},
		{"errors", Filter{Outcome: OutcomeError}, 1, 1, OutcomeError},
		{"paged", Filter{Limit: 2, Offset: 2}, 4, 2, OutcomeOK},
		{"no match", Filter{Source: "other"}, 0, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if result.Total != tt.wantTotal || len(result.Logs) != tt.wantLen {
				t.Fatalf("Total=%d len=%d, want %d/%d", result.Total, len(result.Logs), tt.wantTotal, tt.wantLen)
			}
			if tt.wantLen > 0 && result.Logs[0].Outcome != tt.wantFirst {
				t.Errorf("first outcome = %q, want %q", result.Logs[0].Outcome, tt.wantFirst)
			}
		})
	}
}

func TestList_ClampsLimit(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	result, err := repo.List(t.Context(), Filter{Limit: 10_000, Offset: -5})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Limit != maxLimit || result.Offset != 0 {
		t.Errorf("Limit=%d Offset=%d, want %d/0", result.Limit, result.Offset, maxLimit)
	}
	if result.Logs == nil {
		t.Error("Logs is nil, want empty slice")
	}
}

func TestPrune(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := t.Context()

	old := &AuditLog{Action: ActionCycle, Source: "eufy", Outcome: OutcomeOK, CreatedAt: time.Now().Add(-60 * 24 * time.Hour)}
	fresh := &AuditLog{Action: ActionCycle, Source: "eufy", Outcome: OutcomeOK}
	for _, l := range []*AuditLog{old, fresh} {
		if err := repo.Create(ctx, l); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	n, err := repo.Prune(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Prune() = %d, want 1", n)
	}
	if _, err := repo.Prune(ctx, 0); err == nil {
		t.Error("Prune(0) succeeded")
	}
}
