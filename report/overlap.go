package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"probesampler/stats"
)

// LoadKeywordLibrary reads a lowercased keyword set from a .txt file (one
// keyword per line) or a .csv file (first column whose header contains
// "keyword", else the first column). A missing path yields an empty set.
func LoadKeywordLibrary(path string) (map[string]struct{}, error) {
	if path == "" {
		return nil, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return loadKeywordTxt(path)
	case ".csv":
		return loadKeywordCSV(path)
	default:
		return nil, fmt.Errorf("unsupported keyword library format %q (want .txt or .csv)", filepath.Ext(path))
	}
}

func loadKeywordTxt(path string) (map[string]struct{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyword library: %w", err)
	}

	out := make(map[string]struct{})
	for _, line := range strings.Split(string(data), "\n") {
		k := strings.ToLower(strings.TrimSpace(line))
		if k != "" {
			out[k] = struct{}{}
		}
	}
	return out, nil
}

func loadKeywordCSV(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyword library: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse keyword library: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	col := 0
	for i, name := range records[0] {
		if strings.Contains(strings.ToLower(name), "keyword") {
			col = i
			break
		}
	}

	out := make(map[string]struct{})
	for _, rec := range records[1:] {
		if col >= len(rec) {
			continue
		}
		k := strings.ToLower(strings.TrimSpace(rec[col]))
		if k != "" {
			out[k] = struct{}{}
		}
	}
	return out, nil
}

// WriteOverlap writes overlap_report-style rows comparing each subreddit's
// top-N unigrams and bigrams against a keyword library. No library means
// nothing to compare; the report is skipped.
func WriteOverlap(path string, subreddits []string, c *stats.Collector, library map[string]struct{}, topN int) error {
	if len(library) == 0 {
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"subreddit", "hits_in_top_unigrams", "hits_in_top_bigrams", "which_unigrams", "which_bigrams"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, sub := range subreddits {
		uniHits := hits(c.TopUnigrams(sub, topN), library)
		biHits := hits(c.TopBigrams(sub, topN), library)

		row := []string{
			sub,
			strconv.Itoa(len(uniHits)),
			strconv.Itoa(len(biHits)),
			strings.Join(uniHits, "; "),
			strings.Join(biHits, "; "),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", sub, err)
		}
	}

	w.Flush()
	return w.Error()
}

// hits returns ranked terms present in the library, preserving rank order
func hits(ranked []stats.TermCount, library map[string]struct{}) []string {
	var out []string
	for _, tc := range ranked {
		if _, ok := library[tc.Term]; ok {
			out = append(out, tc.Term)
		}
	}
	return out
}
