// Package semantic implements the vector-indexed tier on chromem-go.
// Entries are embedded at store time; search is nearest-neighbor over
// the query embedding. The store keeps a side index of live entries as
// the source of truth for lookup, enumeration, and stats, and carries
// the full entry record in each document's metadata so the index can be
// rebuilt when a persistent collection is reopened.
package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/patchwork-labs/stratum/internal/embed"
	"github.com/patchwork-labs/stratum/internal/memory"
)

// metaEntry is the document metadata key holding the serialized entry.
const metaEntry = "entry"

// Store is the semantic-tier backend.
type Store struct {
	col      *chromem.Collection
	embedder embed.Embedder

	mu      sync.RWMutex
	entries map[string]*memory.Entry
}

// New creates a semantic store that lasts only for the process lifetime.
func New(embedder embed.Embedder) (*Store, error) {
	return fromDB(chromem.NewDB(), embedder)
}

// Open creates a semantic store persisted under dir. Vectors and entry
// records written by earlier runs are reloaded, so the tier survives
// restarts.
func Open(dir string, embedder embed.Embedder) (*Store, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open vector db: %w", err)
	}
	s, err := fromDB(db, embedder)
	if err != nil {
		return nil, err
	}
	if err := s.restore(); err != nil {
		return nil, fmt.Errorf("restore entries: %w", err)
	}
	return s, nil
}

func fromDB(db *chromem.DB, embedder embed.Embedder) (*Store, error) {
	col, err := db.GetOrCreateCollection("semantic", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &Store{
		col:      col,
		embedder: embedder,
		entries:  make(map[string]*memory.Entry),
	}, nil
}

// restore rebuilds the live-entry index from a reopened collection.
// chromem offers no document enumeration, so a full-size query against
// a unit basis vector visits every stored document.
func (s *Store) restore() error {
	n := s.col.Count()
	if n == 0 {
		return nil
	}

	q := make([]float32, s.embedder.Dimensions())
	q[0] = 1
	results, err := s.col.QueryEmbedding(context.Background(), q, n, nil, nil)
	if err != nil {
		return err
	}

	for _, r := range results {
		raw, ok := r.Metadata[metaEntry]
		if !ok {
			continue
		}
		var e memory.Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return fmt.Errorf("decode entry %s: %w", r.ID, err)
		}
		s.entries[e.ID] = &e
	}
	return nil
}

// Store embeds the entry content and indexes it. Re-storing an entry
// with the same ID replaces the vector, the persisted record, and the
// live copy.
func (s *Store) Store(ctx context.Context, e *memory.Entry) error {
	vec, err := s.embedder.Embed(ctx, e.Text())
	if err != nil {
		return fmt.Errorf("embed entry: %w", err)
	}
	record, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}

	doc := chromem.Document{
		ID:        e.ID,
		Content:   e.Text(),
		Embedding: vec,
		Metadata: map[string]string{
			"stage":   e.Stage.String(),
			metaEntry: string(record),
		},
	}
	if err := s.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	s.mu.Lock()
	s.entries[e.ID] = e.Clone()
	s.mu.Unlock()
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (*memory.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, memory.ErrNotFound
	}
	return e.Clone(), nil
}

// Search embeds the query and returns the nearest live entries. Results
// are overfetched and filtered through the live set so stray vectors
// without a record never surface.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]*memory.Entry, error) {
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	live := len(s.entries)
	s.mu.RUnlock()
	if live == 0 {
		return nil, nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// nResults must not exceed the collection size.
	n := limit * 2
	if count := s.col.Count(); n > count {
		n = count
	}

	results, err := s.col.QueryEmbedding(ctx, vec, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	s.mu.RLock()
	var out []*memory.Entry
	for _, r := range results {
		e, ok := s.entries[r.ID]
		if !ok {
			continue
		}
		out = append(out, e.Clone())
		if len(out) >= limit {
			break
		}
	}
	s.mu.RUnlock()

	// A lexical fallback keeps exact-substring matches findable even
	// when the embedding space puts them outside the top results.
	if len(out) < limit {
		out = s.appendLexical(out, query, limit)
	}
	return out, nil
}

func (s *Store) appendLexical(out []*memory.Entry, query string, limit int) []*memory.Entry {
	seen := make(map[string]bool, len(out))
	for _, e := range out {
		seen[e.ID] = true
	}
	q := strings.ToLower(query)

	s.mu.RLock()
	var extra []*memory.Entry
	for _, e := range s.entries {
		if seen[e.ID] {
			continue
		}
		if strings.Contains(strings.ToLower(e.Text()), q) {
			extra = append(extra, e.Clone())
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(extra, func(i, j int) bool {
		return extra[i].Importance > extra[j].Importance
	})
	for _, e := range extra {
		if len(out) >= limit {
			break
		}
		out = append(out, e)
	}
	return out
}

func (s *Store) GetForConsolidation(_ context.Context, threshold float64, limit int) ([]*memory.Entry, error) {
	s.mu.RLock()
	var out []*memory.Entry
	for _, e := range s.entries {
		if e.Importance >= threshold && !e.Consolidated() {
			out = append(out, e.Clone())
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Remove drops the entry from the live set and deletes its document,
// including the persisted copy.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return memory.ErrNotFound
	}
	if err := s.col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	delete(s.entries, id)
	return nil
}

// Touch records the access on the live copy and re-persists the entry
// record so access statistics survive a restart.
func (s *Store) Touch(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return memory.ErrNotFound
	}
	e.Touch(time.Now())

	doc, err := s.col.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	record, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	doc.Metadata[metaEntry] = string(record)
	if err := s.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

func (s *Store) Stats(_ context.Context) (memory.StageStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return memory.StageStats{
		Stage: memory.StageSemantic,
		Count: len(s.entries),
	}, nil
}

func (s *Store) Close() error { return nil }
