package memory

import (
	"strings"
	"testing"
)

func TestEstimateImportanceDeterministic(t *testing.T) {
	meta := map[string]any{"priority": "high"}
	a := EstimateImportance("critical system memory", meta)
	b := EstimateImportance("critical system memory", meta)
	if a != b {
		t.Errorf("estimator not deterministic: %f vs %f", a, b)
	}
}

func TestEstimateImportanceBounds(t *testing.T) {
	cases := []struct {
		content any
		meta    map[string]any
	}{
		{"", nil},
		{"hello", nil},
		{strings.Repeat("critical error failure success important ", 20), map[string]any{
			"priority":  "critical",
			"important": true,
			"success":   true,
		}},
	}
	for _, c := range cases {
		score := EstimateImportance(c.content, c.meta)
		if score < 0.0 || score > 1.0 {
			t.Errorf("score %f out of [0,1] for %v", score, c.content)
		}
	}
}

func TestEstimateImportancePriorityExample(t *testing.T) {
	// base 0.5 + keyword "critical" 0.1 + priority high 0.2
	score := EstimateImportance("critical system memory", map[string]any{"priority": "high"})
	if score < 0.8 {
		t.Errorf("score = %f, want >= 0.8", score)
	}
}

func TestEstimateImportanceKeywordCap(t *testing.T) {
	// Four keywords present, but the keyword contribution caps at 0.2.
	score := EstimateImportance("critical error failure success", nil)
	if score < 0.699 || score > 0.701 {
		t.Errorf("score = %f, want ~0.7 (base + capped keywords)", score)
	}
}

func TestEstimateImportanceLengthBonus(t *testing.T) {
	short := EstimateImportance("short note", nil)
	long := EstimateImportance(strings.Repeat("plain filler text ", 10), nil)
	if long <= short {
		t.Errorf("long content (%f) should outscore short (%f)", long, short)
	}
}

func TestEstimateImportanceStringFlags(t *testing.T) {
	// Metadata decoded from JSON may carry "true" as a string.
	a := EstimateImportance("note", map[string]any{"important": "true"})
	b := EstimateImportance("note", map[string]any{"important": true})
	if a != b {
		t.Errorf("string flag %f != bool flag %f", a, b)
	}
}
