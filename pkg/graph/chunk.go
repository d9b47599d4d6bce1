package graph

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ChunkOptions controls ChunkText. Zero values fall back to the defaults,
// a negative OverlapChars disables the overlap.
type ChunkOptions struct {
	TargetSize   int
	MaxSize      int
	OverlapChars int
}

const (
	DefaultChunkTargetSize = 500
	DefaultChunkMaxSize    = 800
	DefaultChunkOverlap    = 50
)

const (
	paragraphSep = "\n\n"
	sentenceSep  = " "
)

var (
	reSectionGap   = regexp.MustCompile(`\n(?:[ \t]*\n){3,}`)
	reParagraphGap = regexp.MustCompile(`\n[ \t]*\n`)
)

func (o ChunkOptions) withDefaults() ChunkOptions {
	if o.TargetSize <= 0 {
		o.TargetSize = DefaultChunkTargetSize
	}
	if o.MaxSize <= 0 {
		o.MaxSize = DefaultChunkMaxSize
	}
	if o.MaxSize < o.TargetSize {
		o.MaxSize = o.TargetSize
	}
	switch {
	case o.OverlapChars == 0:
		o.OverlapChars = DefaultChunkOverlap
	case o.OverlapChars < 0:
		o.OverlapChars = 0
	}
	if o.OverlapChars >= o.TargetSize {
		o.OverlapChars = o.TargetSize / 2
	}
	return o
}

// ChunkText splits text into overlapping segments that respect section,
// paragraph and sentence boundaries. Every returned chunk is at most
// MaxSize characters long.
//
// Text that already fits into TargetSize is returned as a single chunk,
// blank text yields nil.
func ChunkText(text string, opts ChunkOptions) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	opts = opts.withDefaults()
	if runeLen(text) <= opts.TargetSize {
		return []string{text}
	}

	b := &chunkBuilder{opts: opts}
	for _, section := range splitSections(text) {
		for _, para := range splitParagraphs(section) {
			if runeLen(para) <= opts.MaxSize {
				b.add(para, paragraphSep)
				continue
			}
			sep := paragraphSep
			for _, sentence := range splitSentences(para) {
				for _, piece := range forceSplit(sentence, b.pieceLimit()) {
					b.add(piece, sep)
					sep = sentenceSep
				}
			}
		}
	}
	b.flush()

	return dedupeChunks(b.chunks)
}

type chunkBuilder struct {
	opts   ChunkOptions
	chunks []string
	cur    string
	body   bool
}

// pieceLimit leaves room for an overlap prefix and its separator.
func (b *chunkBuilder) pieceLimit() int {
	limit := b.opts.MaxSize - b.opts.OverlapChars - len(paragraphSep)
	if limit < 1 {
		limit = b.opts.MaxSize
	}
	return limit
}

func (b *chunkBuilder) add(piece, sep string) {
	if b.body {
		candidate := b.cur + sep + piece
		if runeLen(candidate) <= b.opts.TargetSize {
			b.cur = candidate
			return
		}
		b.flush()
	}

	candidate := piece
	if b.cur != "" {
		candidate = b.cur + sep + piece
	}
	if runeLen(candidate) > b.opts.MaxSize {
		candidate = piece
	}
	b.cur = candidate
	b.body = true
}

func (b *chunkBuilder) flush() {
	if !b.body {
		return
	}
	b.chunks = append(b.chunks, b.cur)
	b.cur = overlapSuffix(b.cur, b.opts.OverlapChars)
	b.body = false
}

// overlapSuffix returns the last n characters of s, moved forward to the
// next word boundary so the prefix never starts inside a word.
func overlapSuffix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return strings.TrimSpace(s)
	}
	start := len(runes) - n
	if !unicode.IsSpace(runes[start-1]) {
		for start < len(runes) && !unicode.IsSpace(runes[start]) {
			start++
		}
	}
	return strings.TrimSpace(string(runes[start:]))
}

// splitSections cuts text at heading lines and at runs of three or more
// blank lines.
func splitSections(text string) []string {
	var sections []string
	for _, part := range reSectionGap.Split(text, -1) {
		var cur []string
		for _, line := range strings.Split(part, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "#") && len(cur) > 0 {
				sections = append(sections, strings.Join(cur, "\n"))
				cur = nil
			}
			cur = append(cur, line)
		}
		if len(cur) > 0 {
			sections = append(sections, strings.Join(cur, "\n"))
		}
	}
	return sections
}

func splitParagraphs(section string) []string {
	var paragraphs []string
	for _, p := range reParagraphGap.Split(section, -1) {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// splitSentences breaks after '.', '!' or '?' when followed by whitespace.
func splitSentences(para string) []string {
	var sentences []string
	runes := []rune(para)
	start := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// forceSplit cuts s into pieces of at most limit characters, preferring the
// last whitespace before the limit.
func forceSplit(s string, limit int) []string {
	runes := []rune(s)
	var pieces []string
	for len(runes) > limit {
		cut := -1
		for i := limit; i > 0; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
		var piece []rune
		if cut > 0 {
			piece, runes = runes[:cut], runes[cut+1:]
		} else {
			piece, runes = runes[:limit], runes[limit:]
		}
		if p := strings.TrimSpace(string(piece)); p != "" {
			pieces = append(pieces, p)
		}
		runes = []rune(strings.TrimLeftFunc(string(runes), unicode.IsSpace))
	}
	if p := strings.TrimSpace(string(runes)); p != "" {
		pieces = append(pieces, p)
	}
	return pieces
}

func dedupeChunks(chunks []string) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if len(out) > 0 && strings.Contains(out[len(out)-1], c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
