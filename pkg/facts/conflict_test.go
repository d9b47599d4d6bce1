package facts

import (
	"math"
	"testing"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"Identical", "Alice owns Falcon", "alice owns falcon ", 1},
		{"OneEdit", "abc", "abd", 1 - 1.0/3},
		{"BothEmpty", "", "  ", 1},
		{"OneEmpty", "abc", "", 0},
		{"Runes", "über", "uber", 0.75},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Similarity(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestWordOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"Half", "billing team lunch", "billing team meeting dinner", 0.5},
		{"ShortWordsIgnored", "a is to", "a is to", 0},
		{"Punctuation", "Falcon, billing!", "falcon billing", 1},
		{"Disjoint", "lunch noon", "deploy nightly", 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := WordOverlap(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestDetectorClassify(t *testing.T) {
	d := NewDetector(0, 0)

	tests := []struct {
		name     string
		newFact  string
		existing string
		want     ConflictType
	}{
		{"Duplicate", "alice owns the billing service.", "Alice owns the billing service", ConflictDuplicate},
		{"Update", "Bob Johnson leads the billing team now", "Alice leads the billing team", ConflictUpdate},
		{"None", "Lunch is at noon", "The deploy runs nightly", ConflictNone},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := d.Classify(tc.newFact, tc.existing); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestDetectorThresholds(t *testing.T) {
	d := NewDetector(-1, 0)
	if d.DuplicateThreshold != DefaultDuplicateThreshold || d.UpdateThreshold != DefaultUpdateThreshold {
		t.Fatalf("expected default thresholds, got %+v", d)
	}

	strict := NewDetector(0.99, 0.9)
	if got := strict.Classify("Bob Johnson leads the billing team now", "Alice leads the billing team"); got != ConflictNone {
		t.Fatalf("expected none with strict thresholds, got %s", got)
	}

	t.Setenv("FACT_DUPLICATE_THRESHOLD", "0.95")
	t.Setenv("FACT_UPDATE_THRESHOLD", "0.4")
	env := DetectorFromEnv()
	if env.DuplicateThreshold != 0.95 || env.UpdateThreshold != 0.4 {
		t.Fatalf("expected thresholds from env, got %+v", env)
	}
}

func TestIsLikelyQuestion(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"What is our refund policy?", true},
		{"how do we deploy", true},
		{"Does, anyone know", true},
		{"Our refund window is 30 days", false},
		{"Whatever happens, deploy on Friday", false},
		{"  ", false},
		{"Refunds take 30 days?", true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			if got := IsLikelyQuestion(tc.in); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
