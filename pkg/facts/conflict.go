package facts

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/ravenloom/backend/internal/util"
)

type ConflictType string

const (
	ConflictDuplicate ConflictType = "duplicate"
	ConflictUpdate    ConflictType = "update"
	ConflictNone      ConflictType = "none"
)

const (
	DefaultDuplicateThreshold = 0.85
	DefaultUpdateThreshold    = 0.5

	minOverlapWordLen = 3
)

// Detector classifies a new fact against an existing one. A fact is a
// duplicate when the edit distance similarity exceeds DuplicateThreshold,
// and an update of the existing fact when enough significant words are
// shared.
type Detector struct {
	DuplicateThreshold float64
	UpdateThreshold    float64
}

// NewDetector returns a Detector; non-positive thresholds use the defaults.
func NewDetector(duplicateThreshold, updateThreshold float64) Detector {
	if duplicateThreshold <= 0 {
		duplicateThreshold = DefaultDuplicateThreshold
	}
	if updateThreshold <= 0 {
		updateThreshold = DefaultUpdateThreshold
	}
	return Detector{
		DuplicateThreshold: duplicateThreshold,
		UpdateThreshold:    updateThreshold,
	}
}

// DetectorFromEnv reads FACT_DUPLICATE_THRESHOLD and FACT_UPDATE_THRESHOLD.
func DetectorFromEnv() Detector {
	return NewDetector(
		util.GetEnvFloat("FACT_DUPLICATE_THRESHOLD", DefaultDuplicateThreshold),
		util.GetEnvFloat("FACT_UPDATE_THRESHOLD", DefaultUpdateThreshold),
	)
}

func (d Detector) Classify(newContent, existingContent string) ConflictType {
	if Similarity(newContent, existingContent) > d.DuplicateThreshold {
		return ConflictDuplicate
	}
	if WordOverlap(newContent, existingContent) > d.UpdateThreshold {
		return ConflictUpdate
	}
	return ConflictNone
}

// Similarity is 1 - levenshtein(a, b) / max(len(a), len(b)) over the
// lowercased, trimmed strings, measured in runes.
func Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// WordOverlap is |A ∩ B| / max(|A|, |B|) over the distinct words of at
// least three characters.
func WordOverlap(a, b string) float64 {
	wa, wb := significantWords(a), significantWords(b)
	longest := max(len(wa), len(wb))
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	shared := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(longest)
}

func significantWords(s string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) >= minOverlapWordLen {
			out[w] = struct{}{}
		}
	}
	return out
}
