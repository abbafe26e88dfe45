package stats

import (
	"sort"
	"sync"
	"time"
)

// TermCount is one row of a ranked frequency view
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// table is an insertion-ordered frequency table for one forum. The slice
// preserves first-observed order so equal counts rank deterministically.
type table struct {
	index   map[string]int
	entries []TermCount
}

func newTable() *table {
	return &table{index: make(map[string]int)}
}

func (t *table) add(key string) {
	if i, ok := t.index[key]; ok {
		t.entries[i].Count++
		return
	}
	t.index[key] = len(t.entries)
	t.entries = append(t.entries, TermCount{Term: key, Count: 1})
}

func (t *table) top(n int) []TermCount {
	ranked := make([]TermCount, len(t.entries))
	copy(ranked, t.entries)
	// stable sort over insertion order: ties keep first-observed ranking
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if n >= 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

func (t *table) total() int {
	sum := 0
	for _, e := range t.entries {
		sum += e.Count
	}
	return sum
}

// Collector accumulates per-forum unigram and bigram frequencies. Counts
// only increase during a run. The harvester is the sole writer; the mutex
// exists so the dashboard can read live tables while a run is in progress.
type Collector struct {
	mutex     sync.RWMutex
	unigrams  map[string]*table
	bigrams   map[string]*table
	startTime time.Time
}

// NewCollector creates an empty frequency collector
func NewCollector() *Collector {
	return &Collector{
		unigrams:  make(map[string]*table),
		bigrams:   make(map[string]*table),
		startTime: time.Now(),
	}
}

// AddUnigram records one occurrence of a token in a forum's unigram table
func (c *Collector) AddUnigram(forum, token string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.tableFor(c.unigrams, forum).add(token)
}

// AddBigram records one occurrence of a two-token phrase in a forum's
// bigram table
func (c *Collector) AddBigram(forum, phrase string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.tableFor(c.bigrams, forum).add(phrase)
}

func (c *Collector) tableFor(m map[string]*table, forum string) *table {
	t, ok := m[forum]
	if !ok {
		t = newTable()
		m[forum] = t
	}
	return t
}

// TopUnigrams returns up to n unigrams for a forum, descending by count,
// ties broken by first-observed order. n < 0 returns the full ranking.
func (c *Collector) TopUnigrams(forum string, n int) []TermCount {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if t, ok := c.unigrams[forum]; ok {
		return t.top(n)
	}
	return nil
}

// TopBigrams is the bigram counterpart of TopUnigrams
func (c *Collector) TopBigrams(forum string, n int) []TermCount {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if t, ok := c.bigrams[forum]; ok {
		return t.top(n)
	}
	return nil
}

// Totals returns the summed unigram and bigram occurrence counts for a
// forum; used for progress logging
func (c *Collector) Totals(forum string) (unigrams, bigrams int) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if t, ok := c.unigrams[forum]; ok {
		unigrams = t.total()
	}
	if t, ok := c.bigrams[forum]; ok {
		bigrams = t.total()
	}
	return unigrams, bigrams
}

// StartTime reports when the collector was created
func (c *Collector) StartTime() time.Time {
	return c.startTime
}
