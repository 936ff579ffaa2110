package semantic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/patchwork-labs/stratum/internal/embed"
	"github.com/patchwork-labs/stratum/internal/memory"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(embed.NewHashEmbedder(64))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func newEntry(t *testing.T, content string, importance float64) *memory.Entry {
	t.Helper()
	e := memory.NewEntry(content, nil, importance, time.Now())
	e.Stage = memory.StageSemantic
	return e
}

func openAt(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(dir, embed.NewHashEmbedder(64))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestOpenRestoresEntries(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openAt(t, dir)
	kept := newEntry(t, "schema migrations run at startup", 0.8)
	s.Store(ctx, kept)
	s.Store(ctx, newEntry(t, "retries use exponential backoff", 0.7))
	s.Close()

	s = openAt(t, dir)
	got, err := s.GetByID(ctx, kept.ID)
	if err != nil {
		t.Fatalf("GetByID after reopen: %v", err)
	}
	if got.Text() != kept.Text() || got.Importance != 0.8 {
		t.Errorf("restored entry = %+v", got)
	}
	st, _ := s.Stats(ctx)
	if st.Count != 2 {
		t.Errorf("count = %d, want 2", st.Count)
	}

	hits, err := s.Search(ctx, "schema migrations run at startup", 2)
	if err != nil {
		t.Fatalf("Search after reopen: %v", err)
	}
	found := false
	for _, h := range hits {
		if h.ID == kept.ID {
			found = true
		}
	}
	if !found {
		t.Error("restored entry not searchable")
	}
}

func TestRemovePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openAt(t, dir)
	gone := newEntry(t, "temporary scratch note", 0.6)
	kept := newEntry(t, "durable design note", 0.6)
	s.Store(ctx, gone)
	s.Store(ctx, kept)
	if err := s.Remove(ctx, gone.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	s.Close()

	s = openAt(t, dir)
	if _, err := s.GetByID(ctx, gone.ID); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("removed entry came back: err = %v", err)
	}
	if _, err := s.GetByID(ctx, kept.ID); err != nil {
		t.Errorf("kept entry missing: %v", err)
	}
}

func TestTouchPersistsAccessStats(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openAt(t, dir)
	e := newEntry(t, "frequently consulted fact", 0.6)
	s.Store(ctx, e)
	if err := s.Touch(ctx, e.ID); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	s.Close()

	s = openAt(t, dir)
	got, err := s.GetByID(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetByID after reopen: %v", err)
	}
	if got.AccessCount != 1 {
		t.Errorf("access count = %d, want 1", got.AccessCount)
	}
}

func TestStoreAndGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	e := newEntry(t, "users prefer dark mode by default", 0.8)
	if err := s.Store(ctx, e); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, err := s.GetByID(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Text() != e.Text() {
		t.Errorf("content = %q", got.Text())
	}

	got.Importance = 0.1
	again, _ := s.GetByID(ctx, e.ID)
	if again.Importance != 0.8 {
		t.Error("store mutated through returned copy")
	}
}

func TestGetMissing(t *testing.T) {
	s := newStore(t)
	if _, err := s.GetByID(context.Background(), "absent"); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSearchEmptyStore(t *testing.T) {
	s := newStore(t)
	hits, err := s.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("hits = %d on empty store", len(hits))
	}
}

func TestSearchFindsExactContent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	target := newEntry(t, "the deploy pipeline requires manual approval", 0.9)
	s.Store(ctx, target)
	s.Store(ctx, newEntry(t, "coffee machine is on the third floor", 0.5))
	s.Store(ctx, newEntry(t, "rotate credentials every ninety days", 0.7))

	hits, err := s.Search(ctx, "the deploy pipeline requires manual approval", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("no hits for exact content")
	}
	found := false
	for _, h := range hits {
		if h.ID == target.ID {
			found = true
		}
	}
	if !found {
		t.Error("exact content not in results")
	}
}

func TestSearchExcludesRemoved(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	e := newEntry(t, "obsolete fact about the old cluster", 0.8)
	s.Store(ctx, e)
	keep := newEntry(t, "current fact about the new cluster", 0.8)
	s.Store(ctx, keep)

	if err := s.Remove(ctx, e.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	hits, err := s.Search(ctx, "obsolete fact about the old cluster", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, h := range hits {
		if h.ID == e.ID {
			t.Error("removed entry returned from search")
		}
	}
}

func TestRemoveMissing(t *testing.T) {
	s := newStore(t)
	if err := s.Remove(context.Background(), "absent"); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetForConsolidation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	low := newEntry(t, "routine observation", 0.3)
	high := newEntry(t, "core architectural decision", 0.9)
	done := newEntry(t, "already archived knowledge", 0.95)
	done.MarkConsolidated(time.Now())

	s.Store(ctx, low)
	s.Store(ctx, high)
	s.Store(ctx, done)

	out, err := s.GetForConsolidation(ctx, 0.8, 10)
	if err != nil {
		t.Fatalf("GetForConsolidation: %v", err)
	}
	if len(out) != 1 || out[0].ID != high.ID {
		t.Errorf("candidates = %+v", out)
	}
}

func TestTouchAndStats(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	e := newEntry(t, "frequently consulted fact", 0.6)
	s.Store(ctx, e)

	if err := s.Touch(ctx, e.ID); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	got, _ := s.GetByID(ctx, e.ID)
	if got.AccessCount != 1 {
		t.Errorf("access count = %d, want 1", got.AccessCount)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Count != 1 || st.Stage != memory.StageSemantic {
		t.Errorf("stats = %+v", st)
	}
}
