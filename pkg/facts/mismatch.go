package facts

import (
	"fmt"
	"strings"

	"github.com/ravenloom/backend/pkg/ai"
)

var questionWords = map[string]struct{}{
	"what": {}, "who": {}, "where": {}, "when": {}, "why": {}, "how": {}, "which": {},
	"is": {}, "are": {}, "do": {}, "does": {}, "did": {},
	"can": {}, "could": {}, "should": {}, "would": {}, "will": {},
}

// IsLikelyQuestion reports whether a remember statement reads like a
// question: it ends with '?' or starts with a question word.
func IsLikelyQuestion(statement string) bool {
	s := strings.TrimSpace(statement)
	if s == "" {
		return false
	}
	if strings.HasSuffix(s, "?") {
		return true
	}
	first := strings.ToLower(strings.Fields(s)[0])
	first = strings.TrimRight(first, ",.:;!")
	_, ok := questionWords[first]
	return ok
}

func mismatchSuggestion(statement string) *string {
	s := fmt.Sprintf(ai.MismatchSuggestion, strings.TrimSpace(statement))
	return &s
}
