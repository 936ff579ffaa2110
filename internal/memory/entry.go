package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Stage identifies one of the four storage tiers, ordered by increasing
// durability: Working < Episodic < Semantic < Persistent.
type Stage int

const (
	StageWorking Stage = iota
	StageEpisodic
	StageSemantic
	StagePersistent
)

var stageNames = [...]string{"working", "episodic", "semantic", "persistent"}

func (s Stage) String() string {
	if s < StageWorking || s > StagePersistent {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// ParseStage converts a stage name back to its Stage value.
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

// Stages returns all stages in tier order, lowest first.
func Stages() []Stage {
	return []Stage{StageWorking, StageEpisodic, StageSemantic, StagePersistent}
}

// MarshalJSON encodes stages by name so wire formats and stored rows
// stay readable.
func (s Stage) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Stage) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseStage(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Next returns the tier directly above s, or false for Persistent.
func (s Stage) Next() (Stage, bool) {
	if s >= StagePersistent {
		return s, false
	}
	return s + 1, true
}

// Metadata keys owned by the memory subsystem. Consolidation writes
// these onto the lower-tier copy when an entry is promoted without
// being removed from its source tier.
const (
	MetaConsolidatedTo = "consolidated_to"
	MetaConsolidatedAt = "consolidated_at"
)

// Entry is a single memory record. Content, Importance, and CreatedAt
// are immutable after creation; Stage is updated only by consolidation,
// and the access fields on every successful read.
type Entry struct {
	ID           string         `json:"id"`
	Content      any            `json:"content"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Importance   float64        `json:"importance"`
	Stage        Stage          `json:"stage"`
	CreatedAt    time.Time      `json:"created_at"`
	LastAccessed time.Time      `json:"last_accessed"`
	AccessCount  int            `json:"access_count"`
}

// NewEntry builds an entry with a deterministic id derived from the
// content hash and the creation timestamp. Importance is clamped to
// [0, 1].
func NewEntry(content any, metadata map[string]any, importance float64, now time.Time) *Entry {
	if importance < 0 {
		importance = 0
	}
	if importance > 1 {
		importance = 1
	}
	if metadata == nil {
		metadata = make(map[string]any)
	}
	return &Entry{
		ID:           entryID(content, now),
		Content:      content,
		Metadata:     metadata,
		Importance:   importance,
		Stage:        StageWorking,
		CreatedAt:    now,
		LastAccessed: now,
	}
}

// entryID hashes the canonical JSON form of the content and appends the
// creation timestamp, so identical content stored at different times
// yields distinct ids while re-stores of the same write are stable.
func entryID(content any, now time.Time) string {
	raw, err := json.Marshal(content)
	if err != nil {
		raw = []byte(fmt.Sprintf("%v", content))
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:8]) + "-" + fmt.Sprintf("%x", now.UnixMilli())
}

// ContentText renders content for substring matching and embedding.
// Strings pass through; everything else is serialized to JSON.
func ContentText(content any) string {
	if s, ok := content.(string); ok {
		return s
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return fmt.Sprintf("%v", content)
	}
	return string(raw)
}

// Text is shorthand for ContentText on the entry's own content.
func (e *Entry) Text() string {
	return ContentText(e.Content)
}

// Consolidated reports whether this copy has already been promoted to a
// higher tier.
func (e *Entry) Consolidated() bool {
	_, ok := e.Metadata[MetaConsolidatedTo]
	return ok
}

// MarkConsolidated records the promotion link on this copy.
func (e *Entry) MarkConsolidated(now time.Time) {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[MetaConsolidatedTo] = e.ID
	e.Metadata[MetaConsolidatedAt] = now.UnixMilli()
}

// Touch updates the access statistics.
func (e *Entry) Touch(now time.Time) {
	e.LastAccessed = now
	e.AccessCount++
}

// AgeDays returns the entry's age in fractional days.
func (e *Entry) AgeDays(now time.Time) float64 {
	age := now.Sub(e.CreatedAt)
	if age < 0 {
		return 0
	}
	return age.Hours() / 24
}

// Clone returns a copy safe to hand across backend boundaries. The
// metadata map is copied; content is shared (immutable by contract).
func (e *Entry) Clone() *Entry {
	c := *e
	if e.Metadata != nil {
		c.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
