package memory

import "strings"

// Importance estimation constants. The score starts at a neutral base
// and accumulates bounded bonuses from content and metadata signals.
const (
	importanceBase  = 0.5
	lengthThreshold = 100 // bytes of rendered content
	lengthBonus     = 0.1
	keywordBonus    = 0.1
	keywordCap      = 0.2
	priorityBonus   = 0.2
	importantBonus  = 0.2
	successBonus    = 0.1
)

// significantKeywords mark content worth keeping around longer. Matched
// case-insensitively as substrings; total contribution capped.
var significantKeywords = []string{
	"critical",
	"error",
	"failure",
	"success",
	"important",
	"security",
	"decision",
}

// EstimateImportance scores new content into [0, 1]. Pure and
// deterministic: the same content and metadata always yield the same
// score.
func EstimateImportance(content any, metadata map[string]any) float64 {
	score := importanceBase
	text := strings.ToLower(ContentText(content))

	if len(text) > lengthThreshold {
		score += lengthBonus
	}

	kw := 0.0
	for _, k := range significantKeywords {
		if strings.Contains(text, k) {
			kw += keywordBonus
		}
	}
	if kw > keywordCap {
		kw = keywordCap
	}
	score += kw

	if p, ok := metadata["priority"].(string); ok {
		switch strings.ToLower(p) {
		case "high", "critical":
			score += priorityBonus
		}
	}
	if flagSet(metadata, "important") {
		score += importantBonus
	}
	if flagSet(metadata, "success") {
		score += successBonus
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// flagSet accepts both bool true and the string "true", since metadata
// arrives from JSON as well as Go callers.
func flagSet(metadata map[string]any, key string) bool {
	switch v := metadata[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}
