package harvest

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"probesampler/models"
	"probesampler/stats"
	"probesampler/text"
)

// SearchClient is the content-search collaborator the harvester drives.
//
// SearchPosts must return results newest first; the harvester's too-old
// cutoff depends on that ordering and will silently under-sample if the
// upstream ever changes it. An empty next-page token ends the stream.
type SearchClient interface {
	SearchPosts(ctx context.Context, subreddit, query, after string) ([]models.Post, string, error)
	FetchComments(ctx context.Context, subreddit, postID string, limit int) ([]models.Comment, error)
}

// Options configures a single harvesting run
type Options struct {
	Subreddits         []string
	Probes             []string
	Window             Window
	TimeBudget         time.Duration
	MaxPerProbe        int
	IncludeComments    bool
	MaxCommentsPerPost int
}

// probeOutcome is the reason a single probe's stream stopped
type probeOutcome int

const (
	probeExhausted probeOutcome = iota
	probeCapped
	probeWindowExited
	probeBudgetExpired
	probeFailed
)

func (o probeOutcome) String() string {
	switch o {
	case probeExhausted:
		return "exhausted"
	case probeCapped:
		return "capped"
	case probeWindowExited:
		return "window_exited"
	case probeBudgetExpired:
		return "budget_expired"
	case probeFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// Harvester runs probe queries against each subreddit sequentially,
// accumulating token frequencies under a global wall-clock budget.
type Harvester struct {
	client    SearchClient
	governor  *Governor
	filter    *text.Filter
	collector *stats.Collector
	opts      Options
	log       *logrus.Logger

	// now is swappable so budget expiry is testable without real time
	now func() time.Time
}

// NewHarvester creates a harvester. The collector is mutated in place and
// remains readable (top-N views) after the run.
func NewHarvester(client SearchClient, governor *Governor, filter *text.Filter, collector *stats.Collector, opts Options, log *logrus.Logger) *Harvester {
	return &Harvester{
		client:    client,
		governor:  governor,
		filter:    filter,
		collector: collector,
		opts:      opts,
		log:       log,
		now:       time.Now,
	}
}

// Run executes the full sampling run. Budget expiry is not an error: the
// run returns nil with whatever was accumulated before the deadline. A
// failed probe is logged and skipped; only context cancellation aborts.
func (h *Harvester) Run(ctx context.Context) error {
	deadline := h.now().Add(h.opts.TimeBudget)

	for _, sub := range h.opts.Subreddits {
		h.log.WithFields(logrus.Fields{
			"subreddit": sub,
			"probes":    len(h.opts.Probes),
		}).Info("Sampling subreddit")

		for _, probe := range h.opts.Probes {
			if err := ctx.Err(); err != nil {
				return err
			}

			outcome := h.runProbe(ctx, sub, probe, deadline)

			h.log.WithFields(logrus.Fields{
				"subreddit": sub,
				"probe":     probe,
				"outcome":   outcome.String(),
			}).Debug("Probe finished")

			if outcome == probeBudgetExpired {
				h.log.Info("Time budget reached; finishing with partial results")
				return nil
			}
		}

		unigrams, bigrams := h.collector.Totals(sub)
		h.log.WithFields(logrus.Fields{
			"subreddit": sub,
			"unigrams":  unigrams,
			"bigrams":   bigrams,
		}).Info("Subreddit sampling complete")
	}

	return nil
}

// runProbe consumes one probe's newest-first result stream until the stream
// ends, the per-probe cap is hit, an item falls below the window, or the
// global budget expires.
func (h *Harvester) runProbe(ctx context.Context, sub, probe string, deadline time.Time) probeOutcome {
	after := ""
	taken := 0

	for {
		// an expired budget must never issue another request
		if h.now().After(deadline) {
			return probeBudgetExpired
		}
		if ctx.Err() != nil {
			return probeFailed
		}

		var posts []models.Post
		var next string
		err := h.governor.WithBackoff(func() error {
			var searchErr error
			posts, next, searchErr = h.client.SearchPosts(ctx, sub, probe, after)
			return searchErr
		})
		if err != nil {
			// contained: the run continues with the next probe
			h.log.WithError(err).WithFields(logrus.Fields{
				"subreddit": sub,
				"probe":     probe,
			}).Error("Probe search failed; skipping probe")
			return probeFailed
		}

		for _, post := range posts {
			if h.now().After(deadline) {
				return probeBudgetExpired
			}

			switch h.opts.Window.Classify(int64(post.CreatedUTC)) {
			case Unknown, TooNew:
				continue
			case TooOld:
				return probeWindowExited
			}

			taken++
			if taken > h.opts.MaxPerProbe {
				return probeCapped
			}

			h.countText(sub, post.Title+" "+post.SelfText)
			h.governor.Pace()

			if h.opts.IncludeComments && h.opts.MaxCommentsPerPost > 0 {
				h.sampleComments(ctx, sub, post)
			}
		}

		if next == "" {
			return probeExhausted
		}
		after = next
	}
}

// countText normalizes a blob and feeds admitted unigrams and bigrams into
// the forum's tables. One accepted item updates both tables together.
func (h *Harvester) countText(sub, blob string) {
	tokens := text.Normalize(blob)

	for _, tok := range tokens {
		if h.filter.ValidUnigram(tok) {
			h.collector.AddUnigram(sub, tok)
		}
	}
	for _, pair := range text.Bigrams(tokens) {
		if h.filter.ValidBigram(pair[0], pair[1]) {
			h.collector.AddBigram(sub, pair[0]+" "+pair[1])
		}
	}
}

// sampleComments counts up to the configured number of comment bodies for a
// post. Comment fetching is best-effort: any failure yields zero comments
// and must never abort the post or the run.
func (h *Harvester) sampleComments(ctx context.Context, sub string, post models.Post) {
	comments, err := h.client.FetchComments(ctx, sub, post.ID, h.opts.MaxCommentsPerPost)
	if err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{
			"subreddit": sub,
			"post_id":   post.ID,
		}).Debug("Comment fetch failed; continuing without comments")
		return
	}

	for _, comment := range comments {
		h.countText(sub, comment.Body)
	}
}
