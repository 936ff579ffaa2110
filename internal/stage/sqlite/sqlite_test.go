package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/patchwork-labs/stratum/internal/memory"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory(memory.StageEpisodic)
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newEntry(t *testing.T, content string, importance float64) *memory.Entry {
	t.Helper()
	e := memory.NewEntry(content, map[string]any{"source": "test"}, importance, time.Now())
	e.Stage = memory.StageEpisodic
	return e
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stage", "episodic.db")
	s, err := Open(path, memory.StageEpisodic)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	v, err := s.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 1 {
		t.Errorf("schema version = %d, want 1", v)
	}
}

func TestStoreAndGet(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	e := newEntry(t, "incident review for cluster outage", 0.7)
	if err := s.Store(ctx, e); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, err := s.GetByID(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Text() != "incident review for cluster outage" {
		t.Errorf("content = %q", got.Text())
	}
	if got.Stage != memory.StageEpisodic {
		t.Errorf("stage = %v", got.Stage)
	}
	if got.Metadata["source"] != "test" {
		t.Errorf("metadata = %v", got.Metadata)
	}
	if got.Importance != 0.7 {
		t.Errorf("importance = %f", got.Importance)
	}
}

func TestGetMissing(t *testing.T) {
	s := openTest(t)
	if _, err := s.GetByID(context.Background(), "absent"); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStoreIdempotent(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	e := newEntry(t, "same record twice", 0.4)
	s.Store(ctx, e)
	e.Importance = 0.9
	if err := s.Store(ctx, e); err != nil {
		t.Fatalf("second Store: %v", err)
	}

	got, _ := s.GetByID(ctx, e.ID)
	if got.Importance != 0.9 {
		t.Errorf("replace did not take: %f", got.Importance)
	}
	st, _ := s.Stats(ctx)
	if st.Count != 1 {
		t.Errorf("count = %d after duplicate store", st.Count)
	}
}

func TestSearchCaseInsensitive(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	s.Store(ctx, newEntry(t, "Database migration completed", 0.8))
	s.Store(ctx, newEntry(t, "database backup scheduled", 0.3))
	s.Store(ctx, newEntry(t, "unrelated note", 0.9))

	hits, err := s.Search(ctx, "DATABASE", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(hits))
	}
	if hits[0].Importance < hits[1].Importance {
		t.Error("results not ordered by importance desc")
	}

	hits, _ = s.Search(ctx, "database", 1)
	if len(hits) != 1 {
		t.Errorf("limit not applied: %d", len(hits))
	}
}

func TestGetForConsolidation(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	low := newEntry(t, "minor detail", 0.2)
	first := newEntry(t, "important fact one", 0.7)
	first.CreatedAt = time.Now().Add(-2 * time.Hour)
	second := newEntry(t, "important fact two", 0.8)
	second.CreatedAt = time.Now().Add(-1 * time.Hour)
	promoted := newEntry(t, "already moved up", 0.9)
	promoted.MarkConsolidated(time.Now())

	for _, e := range []*memory.Entry{low, first, second, promoted} {
		if err := s.Store(ctx, e); err != nil {
			t.Fatalf("Store: %v", err)
		}
	}

	out, err := s.GetForConsolidation(ctx, 0.6, 10)
	if err != nil {
		t.Fatalf("GetForConsolidation: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("candidates = %d, want 2", len(out))
	}
	if out[0].ID != first.ID || out[1].ID != second.ID {
		t.Error("candidates not ordered oldest first")
	}

	out, _ = s.GetForConsolidation(ctx, 0.6, 1)
	if len(out) != 1 {
		t.Errorf("limit not applied: %d", len(out))
	}
}

func TestMarkConsolidatedExcludesFromScan(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	e := newEntry(t, "fact that gets promoted", 0.8)
	s.Store(ctx, e)

	e.MarkConsolidated(time.Now())
	if err := s.Store(ctx, e); err != nil {
		t.Fatalf("re-store: %v", err)
	}

	out, _ := s.GetForConsolidation(ctx, 0.6, 10)
	if len(out) != 0 {
		t.Errorf("consolidated entry still a candidate: %d", len(out))
	}

	got, _ := s.GetByID(ctx, e.ID)
	if !got.Consolidated() {
		t.Error("consolidated link lost on round trip")
	}
}

func TestRemove(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	e := newEntry(t, "to be deleted", 0.5)
	s.Store(ctx, e)
	if err := s.Remove(ctx, e.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove(ctx, e.ID); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("second Remove err = %v, want ErrNotFound", err)
	}
}

func TestTouchBumpsAccess(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	e := newEntry(t, "frequently read", 0.5)
	s.Store(ctx, e)

	for i := 0; i < 3; i++ {
		if err := s.Touch(ctx, e.ID); err != nil {
			t.Fatalf("Touch: %v", err)
		}
	}
	got, _ := s.GetByID(ctx, e.ID)
	if got.AccessCount != 3 {
		t.Errorf("access_count = %d, want 3", got.AccessCount)
	}

	if err := s.Touch(ctx, "absent"); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("Touch missing err = %v, want ErrNotFound", err)
	}
}

func TestStats(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s.Store(ctx, newEntry(t, fmt.Sprintf("record %d", i), 0.5))
	}
	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Count != 5 || st.Stage != memory.StageEpisodic {
		t.Errorf("stats = %+v", st)
	}
}
