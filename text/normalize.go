package text

import (
	"regexp"
	"strings"
)

var (
	urlRegex   = regexp.MustCompile(`http\S+|www\.\S+`)
	sepRegex   = regexp.MustCompile(`[-_/]`)
	spaceRegex = regexp.MustCompile(`\s+`)
	wordRegex  = regexp.MustCompile(`[A-Za-z0-9']+`)
)

// Clean strips URL-like substrings, splits compound separators into spaces
// and collapses runs of whitespace. Safe on empty input.
func Clean(s string) string {
	if s == "" {
		return ""
	}
	s = urlRegex.ReplaceAllString(s, " ")
	s = sepRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(spaceRegex.ReplaceAllString(s, " "))
}

// Tokenize lowercases the input and returns maximal runs of ASCII letters,
// digits and apostrophes, in original order.
func Tokenize(s string) []string {
	return wordRegex.FindAllString(strings.ToLower(s), -1)
}

// Normalize is the full cleaning + tokenization pipeline.
func Normalize(raw string) []string {
	return Tokenize(Clean(raw))
}

// Bigrams returns every adjacent ordered token pair. A sequence of N tokens
// yields exactly max(N-1, 0) pairs.
func Bigrams(tokens []string) [][2]string {
	if len(tokens) < 2 {
		return nil
	}
	pairs := make([][2]string, 0, len(tokens)-1)
	for i := 0; i < len(tokens)-1; i++ {
		pairs = append(pairs, [2]string{tokens[i], tokens[i+1]})
	}
	return pairs
}

// Filter decides which tokens are admitted into the frequency tables.
// Stop-word sets are fixed at construction so runs are reproducible.
type Filter struct {
	stop   map[string]struct{}
	domain map[string]struct{}
}

// NewFilter builds a Filter from the base English stop-word set plus any
// domain-specific stop words supplied by the caller.
func NewFilter(domainStop []string) *Filter {
	f := &Filter{
		stop:   make(map[string]struct{}, len(baseStopwords)),
		domain: make(map[string]struct{}, len(domainStop)),
	}
	for _, w := range baseStopwords {
		f.stop[w] = struct{}{}
	}
	for _, w := range domainStop {
		f.domain[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return f
}

func (f *Filter) isStop(tok string) bool {
	if _, ok := f.stop[tok]; ok {
		return true
	}
	_, ok := f.domain[tok]
	return ok
}

// ValidUnigram reports whether a token counts on its own: not a stop word,
// at least 3 characters, not purely numeric.
func (f *Filter) ValidUnigram(tok string) bool {
	if f.isStop(tok) {
		return false
	}
	if len(tok) < 3 {
		return false
	}
	return !isNumeric(tok)
}

// ValidBigram reports whether an adjacent pair counts as a phrase. The
// length bound is 2, looser than the unigram bound: short words can still
// be informative next to another token ("va form").
func (f *Filter) ValidBigram(t1, t2 string) bool {
	if f.isStop(t1) || f.isStop(t2) {
		return false
	}
	return len(t1) >= 2 && len(t2) >= 2
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
