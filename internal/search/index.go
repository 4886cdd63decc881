// Package search provides a simple, deterministic, concurrency-safe in-memory
// lexical index over chunk texts. It backs degraded-mode retrieval: when the
// embedding service is unreachable, keyword overlap still surfaces relevant
// chunks. It is intentionally small and dependency-free, but engineered with
// production-grade ergonomics:
//
//   - No logging in the library (callers decide how/what to log)
//   - Clear, documented types and functional options (Option pattern)
//   - Unicode-aware tokenization with optional stop-word removal
//   - Immutable, read-only index after construction (safe for concurrent use)
//   - Deterministic scoring and sorting (stable order for ties)
//
// Scoring uses Jaccard similarity between the query token set and each
// chunk's token set: score = |Q ∩ C| / |Q ∪ C|.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Result is a ranked chunk with its similarity score.
type Result struct {
	Content string
	Score   float64
}

// Index is the minimal interface implemented by all lexical indices.
type Index interface {
	TopK(query string, k int) []Result
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	minChunkRunes int
	stopwords     map[string]struct{}
	maxChunks     int
}

func defaultConfig() config {
	return config{
		minChunkRunes: 0,
		stopwords:     nil,
		maxChunks:     0,
	}
}

// WithMinChunkRunes skips chunks shorter than n runes. Segmented chunks are
// already size-bounded, so the default keeps everything.
func WithMinChunkRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minChunkRunes = n
		}
	}
}

// WithStopwords removes the given words from both chunk and query token sets.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithMaxChunks caps how many chunks the index will hold.
func WithMaxChunks(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxChunks = n
		}
	}
}

// ----------------------------------------------------------------------------
// Implementation

type entry struct {
	text   string
	tokens map[string]struct{}
	tLen   int
}

type index struct {
	cfg     config
	entries []entry
}

// New builds an immutable Index over the given chunk texts.
func New(chunks []string, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	entries := make([]entry, 0, len(chunks))
	for _, raw := range chunks {
		t := strings.TrimSpace(normalizeWhitespace(raw))
		if t == "" {
			continue
		}
		if cfg.minChunkRunes > 0 && utf8.RuneCountInString(t) < cfg.minChunkRunes {
			continue
		}
		toks := tokenize(t, cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		entries = append(entries, entry{text: t, tokens: toks, tLen: len(toks)})
		if cfg.maxChunks > 0 && len(entries) >= cfg.maxChunks {
			break
		}
	}
	return &index{cfg: cfg, entries: entries}
}

// TopK returns up to k best-matching chunks by Jaccard similarity.
func (i *index) TopK(q string, k int) []Result {
	if len(i.entries) == 0 {
		return nil
	}
	if strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}
	qLen := len(qTokens)

	type scored struct {
		content  string
		score    float64
		lenRunes int
	}

	buf := make([]scored, 0, min(k*4, len(i.entries)))
	for _, e := range i.entries {
		over := overlap(qTokens, e.tokens)
		if over == 0 {
			continue
		}
		union := float64(qLen + e.tLen - over)
		if union <= 0 {
			continue
		}
		score := float64(over) / union
		if score <= 0 {
			continue
		}
		buf = append(buf, scored{
			content:  e.text,
			score:    score,
			lenRunes: utf8.RuneCountInString(e.text),
		})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].score != buf[b].score {
			return buf[a].score > buf[b].score
		}
		if buf[a].lenRunes != buf[b].lenRunes {
			return buf[a].lenRunes < buf[b].lenRunes
		}
		return buf[a].content < buf[b].content
	})

	if k > len(buf) {
		k = len(buf)
	}
	out := make([]Result, k)
	for i := 0; i < k; i++ {
		out[i] = Result{Content: buf[i].content, Score: buf[i].score}
	}
	return out
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	s = strings.ToLower(s)
	words := wordRE.FindAllString(s, -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		if stop != nil {
			if _, skip := stop[w]; skip {
				continue
			}
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := 0
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func normalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
