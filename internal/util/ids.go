package util

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	reBoldDouble = regexp.MustCompile(`\*\*\s*\[\[([^][]+)\]\]\s*\*\*`)
	reBoldSingle = regexp.MustCompile(`\*\*\s*\[([^][]+)\]\s*\*\*`)
	reToken      = regexp.MustCompile(`\[\[([^][]+)\]\]`)
	reTokenSep   = regexp.MustCompile(`\]\][\t ]+\[\[`)
	reCitationID = regexp.MustCompile(`^[fnc][0-9]+$`)
)

// Citation prefixes used in answer context blocks.
const (
	CitationFact  = 'f'
	CitationNode  = 'n'
	CitationChunk = 'c'
)

// CitationID formats the tag of a fact, node or chunk, e.g. "f12".
func CitationID(prefix byte, id int64) string {
	return string(prefix) + strconv.FormatInt(id, 10)
}

func IsCitationID(s string) bool {
	return reCitationID.MatchString(s)
}

// ExtractCitationIDs returns the valid [[...]] ids of text, first occurrence
// first.
func ExtractCitationIDs(text string) []string {
	matches := reToken.FindAllStringSubmatch(text, -1)
	ids := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, match := range matches {
		id := match[1]
		if !IsCitationID(id) {
			continue
		}
		if _, exists := seen[id]; exists {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// citationFields returns the citation ids hidden in a token like
// "FACT:f12" or "f1, c3".
func citationFields(inner string) []string {
	fields := strings.FieldsFunc(inner, func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == ':' || unicode.IsSpace(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if IsCitationID(f) {
			out = append(out, f)
		}
	}
	return out
}

// NormalizeIDs rewrites the citation markup a model produces into plain
// [[id]] tokens: bold markers are dropped, single brackets are upgraded,
// prefixed or grouped ids are split and adjacent repeats collapse.
func NormalizeIDs(s string) string {
	s = reBoldDouble.ReplaceAllString(s, "[[$1]]")
	s = reBoldSingle.ReplaceAllString(s, "[$1]")

	s = upgradeSingleBracketsSkippingLinks(s)
	s = repairMalformedIDs(s)
	s = dedupeAdjacentIDs(s)

	s = reTokenSep.ReplaceAllString(s, "]] [[")

	return s
}

func upgradeSingleBracketsSkippingLinks(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] != '[' {
			b.WriteByte(s[i])
			i++
			continue
		}
		if i+1 < len(s) && s[i+1] == '[' {
			b.WriteString("[[")
			i += 2
			continue
		}
		j := i + 1
		hasInnerBracket := false
		for j < len(s) && s[j] != ']' {
			if s[j] == '[' {
				hasInnerBracket = true
			}
			j++
		}
		if j >= len(s) {
			b.WriteByte(s[i])
			i++
			continue
		}

		if j+1 < len(s) && s[j+1] == '(' {
			b.WriteString(s[i : j+1])
			i = j + 1
			continue
		}
		if hasInnerBracket || len(citationFields(s[i+1:j])) == 0 {
			b.WriteString(s[i : j+1])
			i = j + 1
			continue
		}
		b.WriteString("[[")
		b.WriteString(s[i+1 : j])
		b.WriteString("]]")
		i = j + 1
	}
	return b.String()
}

func repairMalformedIDs(s string) string {
	return reToken.ReplaceAllStringFunc(s, func(tok string) string {
		inner := tok[2 : len(tok)-2]
		if IsCitationID(inner) {
			return tok
		}
		ids := citationFields(inner)
		if len(ids) == 0 {
			return tok
		}
		return "[[" + strings.Join(ids, "]] [[") + "]]"
	})
}

func dedupeAdjacentIDs(s string) string {
	matches := reToken.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	cursor := 0

	for mi := 0; mi < len(matches); mi++ {
		m := matches[mi]
		start, end := m[0], m[1]
		id := s[m[2]:m[3]]

		b.WriteString(s[cursor:start])

		dupEnd := end
		next := mi + 1
		initialAtLineStart := isLineStart(s, start)

		for next < len(matches) {
			nextStart := matches[next][0]
			sep := s[dupEnd:nextStart]

			if !onlyWhitespace(sep) {
				break
			}
			if containsLineBreak(sep) && !initialAtLineStart {
				break
			}

			nextID := s[matches[next][2]:matches[next][3]]
			if nextID != id {
				break
			}
			dupEnd = matches[next][1]
			next++
		}

		b.WriteString(s[start:end])

		cursor = dupEnd
		mi = next - 1
	}

	if cursor < len(s) {
		b.WriteString(s[cursor:])
	}
	return b.String()
}

func onlyWhitespace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func containsLineBreak(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\n', '\r':
			return true
		}
	}
	return false
}

func isLineStart(s string, idx int) bool {
	if idx <= 0 {
		return true
	}
	prev := s[idx-1]
	return prev == '\n' || prev == '\r'
}
