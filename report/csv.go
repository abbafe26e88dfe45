package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"probesampler/stats"
)

// TopFunc is a ranked view over one forum's table, e.g.
// (*stats.Collector).TopUnigrams.
type TopFunc func(forum string, n int) []stats.TermCount

// WriteTopN writes one CSV of ranked terms with rows
// (subreddit, <keyHeader>, count), in configured subreddit order.
func WriteTopN(path, keyHeader string, subreddits []string, top TopFunc, n int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"subreddit", keyHeader, "count"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, sub := range subreddits {
		for _, tc := range top(sub, n) {
			if err := w.Write([]string{sub, tc.Term, strconv.Itoa(tc.Count)}); err != nil {
				return fmt.Errorf("failed to write row for %s: %w", sub, err)
			}
		}
	}

	w.Flush()
	return w.Error()
}
