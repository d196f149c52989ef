package device

import (
	"errors"
	"testing"
	"time"
)

func TestStateHistory_RecordAndGet(t *testing.T) {
	repo := NewSQLiteStateHistoryRepository(setupTestDB(t))
	ctx := t.Context()

	for i := range 3 {
		state := State{"battery": int64(90 - i)}
		if err := repo.RecordState(ctx, "eufy", "T1", state, t0.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("RecordState(%d) error = %v", i, err)
		}
	}
	if err := repo.RecordState(ctx, "eufy", "T2", nil, t0); err != nil {
		t.Fatalf("RecordState(T2) error = %v", err)
	}

	entries, err := repo.GetHistory(ctx, "eufy", "T1", 2)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("GetHistory() = %d entries, want 2", len(entries))
	}
	if entries[0].State["battery"] != float64(88) {
		t.Errorf("newest battery = %v, want 88", entries[0].State["battery"])
	}
	if !entries[0].CreatedAt.Equal(t0.Add(2 * time.Minute)) {
		t.Errorf("newest CreatedAt = %v", entries[0].CreatedAt)
	}

	empty, err := repo.GetHistory(ctx, "eufy", "T2", 0)
	if err != nil {
		t.Fatalf("GetHistory(T2) error = %v", err)
	}
	if len(empty) != 1 || len(empty[0].State) != 0 {
		t.Errorf("GetHistory(T2) = %+v, want one empty snapshot", empty)
	}
}

func TestStateHistory_Validation(t *testing.T) {
	repo := NewSQLiteStateHistoryRepository(setupTestDB(t))

	if err := repo.RecordState(t.Context(), "", "T1", nil, t0); !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("RecordState(no source) error = %v, want ErrInvalidDevice", err)
	}
	if _, err := repo.PruneHistory(t.Context(), 0); err == nil {
		t.Error("PruneHistory(0) succeeded")
	}
}

func TestStateHistory_Prune(t *testing.T) {
	repo := NewSQLiteStateHistoryRepository(setupTestDB(t))
	ctx := t.Context()

	old := time.Now().Add(-48 * time.Hour)
	if err := repo.RecordState(ctx, "eufy", "T1", State{"a": 1}, old); err != nil {
		t.Fatalf("RecordState(old) error = %v", err)
	}
	if err := repo.RecordState(ctx, "eufy", "T1", State{"a": 2}, time.Now()); err != nil {
		t.Fatalf("RecordState(new) error = %v", err)
	}

	n, err := repo.PruneHistory(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PruneHistory() error = %v", err)
	}
	if n != 1 {
		t.Errorf("PruneHistory() = %d, want 1", n)
	}
}
