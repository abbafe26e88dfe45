package harvest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"probesampler/api"
	"probesampler/models"
	"probesampler/stats"
	"probesampler/text"
)

// fakeClient scripts search and comment responses per test
type fakeClient struct {
	searchFn  func(sub, query, after string) ([]models.Post, string, error)
	commentFn func(sub, postID string, limit int) ([]models.Comment, error)

	searchAfters []string
	searchCalls  int
	commentCalls int
}

func (f *fakeClient) SearchPosts(_ context.Context, sub, query, after string) ([]models.Post, string, error) {
	f.searchCalls++
	f.searchAfters = append(f.searchAfters, after)
	if f.searchFn == nil {
		return nil, "", nil
	}
	return f.searchFn(sub, query, after)
}

func (f *fakeClient) FetchComments(_ context.Context, sub, postID string, limit int) ([]models.Comment, error) {
	f.commentCalls++
	if f.commentFn == nil {
		return nil, nil
	}
	return f.commentFn(sub, postID, limit)
}

func post(title string, created int64) models.Post {
	return models.Post{ID: "id_" + title, Title: title, CreatedUTC: float64(created)}
}

// testWindow accepts [1000, 2000]
var testWindow = Window{Earliest: 1000, Latest: 2000}

func newTestHarvester(client SearchClient, opts Options) (*Harvester, *stats.Collector, *sleepRecorder) {
	gov, rec := newTestGovernor(0, 0, 0)
	collector := stats.NewCollector()
	h := NewHarvester(client, gov, text.NewFilter(nil), collector, opts, silentLogger())
	return h, collector, rec
}

func unigramCount(c *stats.Collector, forum, term string) int {
	for _, tc := range c.TopUnigrams(forum, -1) {
		if tc.Term == term {
			return tc.Count
		}
	}
	return 0
}

func TestPerProbeCapRespected(t *testing.T) {
	client := &fakeClient{
		searchFn: func(sub, query, after string) ([]models.Post, string, error) {
			return []models.Post{
				post("claim denied", 1500),
				post("claim denied", 1500),
				post("claim denied", 1500),
				post("claim denied", 1500),
				post("claim denied", 1500),
			}, "", nil
		},
	}
	h, collector, _ := newTestHarvester(client, Options{
		Subreddits:  []string{"subs"},
		Probes:      []string{"probe"},
		Window:      testWindow,
		TimeBudget:  time.Hour,
		MaxPerProbe: 2,
	})

	require.NoError(t, h.Run(context.Background()))

	assert.Equal(t, 2, unigramCount(collector, "subs", "claim"), "exactly cap items counted")
	assert.Equal(t, 1, client.searchCalls)
}

func TestTooOldShortCircuitsProbe(t *testing.T) {
	client := &fakeClient{
		searchFn: func(sub, query, after string) ([]models.Post, string, error) {
			// fourth item is in window but must never be reached
			return []models.Post{
				post("claim denied", 1500),
				post("claim denied", 1400),
				post("claim denied", 500),
				post("claim denied", 1600),
			}, "t3_more", nil
		},
	}
	h, collector, _ := newTestHarvester(client, Options{
		Subreddits:  []string{"subs"},
		Probes:      []string{"probe"},
		Window:      testWindow,
		TimeBudget:  time.Hour,
		MaxPerProbe: 100,
	})

	require.NoError(t, h.Run(context.Background()))

	assert.Equal(t, 2, unigramCount(collector, "subs", "claim"))
	assert.Equal(t, 1, client.searchCalls, "no further page after window exit")
}

func TestTooNewAndUnknownSkipped(t *testing.T) {
	client := &fakeClient{
		searchFn: func(sub, query, after string) ([]models.Post, string, error) {
			return []models.Post{
				post("claim denied", 2500), // too new: skip, keep scanning
				post("claim denied", 0),    // unknown timestamp: skip
				post("claim denied", 1500),
			}, "", nil
		},
	}
	h, collector, _ := newTestHarvester(client, Options{
		Subreddits:  []string{"subs"},
		Probes:      []string{"probe"},
		Window:      testWindow,
		TimeBudget:  time.Hour,
		MaxPerProbe: 100,
	})

	require.NoError(t, h.Run(context.Background()))

	assert.Equal(t, 1, unigramCount(collector, "subs", "claim"))
}

func TestBudgetExpiryReturnsPartialResults(t *testing.T) {
	client := &fakeClient{
		searchFn: func(sub, query, after string) ([]models.Post, string, error) {
			return []models.Post{
				post("claim denied", 1500),
				post("claim denied", 1500),
				post("claim denied", 1500),
				post("claim denied", 1500),
				post("claim denied", 1500),
			}, "", nil
		},
	}

	gov, rec := newTestGovernor(time.Minute, 0, 0)
	collector := stats.NewCollector()
	h := NewHarvester(client, gov, text.NewFilter(nil), collector, Options{
		Subreddits:  []string{"subs"},
		Probes:      []string{"probe", "never-reached"},
		Window:      testWindow,
		TimeBudget:  150 * time.Second,
		MaxPerProbe: 100,
	}, silentLogger())

	// fake clock: each paced item advances simulated time by its pause
	current := time.Unix(1700000000, 0)
	h.now = func() time.Time { return current }
	gov.sleep = func(d time.Duration) {
		rec.sleep(d)
		current = current.Add(d)
	}

	require.NoError(t, h.Run(context.Background()), "budget expiry is graceful, not an error")

	// three items fit inside the 150s budget at one simulated minute each
	assert.Equal(t, 3, unigramCount(collector, "subs", "claim"))
	assert.Equal(t, 1, client.searchCalls, "no request after expiry, second probe never runs")
}

func TestRateLimitFatalToProbeOnly(t *testing.T) {
	client := &fakeClient{
		searchFn: func(sub, query, after string) ([]models.Post, string, error) {
			if query == "bad" {
				return nil, "", fmt.Errorf("search: %w", api.ErrRateLimited)
			}
			return []models.Post{post("claim denied", 1500)}, "", nil
		},
	}
	h, collector, rec := newTestHarvester(client, Options{
		Subreddits:  []string{"subs"},
		Probes:      []string{"bad", "good"},
		Window:      testWindow,
		TimeBudget:  time.Hour,
		MaxPerProbe: 100,
	})

	require.NoError(t, h.Run(context.Background()), "a dead probe must not abort the run")

	assert.Equal(t, 3, client.searchCalls, "failed probe searched twice (retry), good probe once")
	assert.Equal(t, []time.Duration{rateLimitCooldown}, rec.pauses)
	assert.Equal(t, 1, unigramCount(collector, "subs", "claim"))
}

func TestUnexpectedSearchErrorContained(t *testing.T) {
	client := &fakeClient{
		searchFn: func(sub, query, after string) ([]models.Post, string, error) {
			if query == "bad" {
				return nil, "", errors.New("boom")
			}
			return []models.Post{post("claim denied", 1500)}, "", nil
		},
	}
	h, collector, rec := newTestHarvester(client, Options{
		Subreddits:  []string{"subs"},
		Probes:      []string{"bad", "good"},
		Window:      testWindow,
		TimeBudget:  time.Hour,
		MaxPerProbe: 100,
	})

	require.NoError(t, h.Run(context.Background()))

	assert.Equal(t, 2, client.searchCalls, "non-rate-limit errors are not retried")
	assert.Empty(t, rec.pauses)
	assert.Equal(t, 1, unigramCount(collector, "subs", "claim"))
}

func TestCommentFetchFailureSwallowed(t *testing.T) {
	client := &fakeClient{
		searchFn: func(sub, query, after string) ([]models.Post, string, error) {
			return []models.Post{post("claim denied", 1500)}, "", nil
		},
		commentFn: func(sub, postID string, limit int) ([]models.Comment, error) {
			return nil, errors.New("comment fetch blew up")
		},
	}
	h, collector, _ := newTestHarvester(client, Options{
		Subreddits:         []string{"subs"},
		Probes:             []string{"probe"},
		Window:             testWindow,
		TimeBudget:         time.Hour,
		MaxPerProbe:        100,
		IncludeComments:    true,
		MaxCommentsPerPost: 5,
	})

	require.NoError(t, h.Run(context.Background()))

	assert.Equal(t, 1, client.commentCalls)
	assert.Equal(t, 1, unigramCount(collector, "subs", "claim"), "post still counted")
}

func TestCommentsSampledIntoSameTables(t *testing.T) {
	client := &fakeClient{
		searchFn: func(sub, query, after string) ([]models.Post, string, error) {
			return []models.Post{post("claim denied", 1500)}, "", nil
		},
		commentFn: func(sub, postID string, limit int) ([]models.Comment, error) {
			return []models.Comment{
				{ID: "c1", Body: "nexus letter required"},
				{ID: "c2", Body: "nexus letter helped"},
			}, nil
		},
	}
	h, collector, _ := newTestHarvester(client, Options{
		Subreddits:         []string{"subs"},
		Probes:             []string{"probe"},
		Window:             testWindow,
		TimeBudget:         time.Hour,
		MaxPerProbe:        100,
		IncludeComments:    true,
		MaxCommentsPerPost: 5,
	})

	require.NoError(t, h.Run(context.Background()))

	assert.Equal(t, 2, unigramCount(collector, "subs", "nexus"))

	bigrams := collector.TopBigrams("subs", -1)
	require.NotEmpty(t, bigrams)
	assert.Equal(t, stats.TermCount{Term: "nexus letter", Count: 2}, bigrams[0])
}

func TestCommentsNotFetchedWhenDisabled(t *testing.T) {
	searchFn := func(sub, query, after string) ([]models.Post, string, error) {
		return []models.Post{post("claim denied", 1500)}, "", nil
	}

	for name, opts := range map[string]Options{
		"toggle off": {IncludeComments: false, MaxCommentsPerPost: 5},
		"zero cap":   {IncludeComments: true, MaxCommentsPerPost: 0},
	} {
		t.Run(name, func(t *testing.T) {
			client := &fakeClient{searchFn: searchFn}
			opts.Subreddits = []string{"subs"}
			opts.Probes = []string{"probe"}
			opts.Window = testWindow
			opts.TimeBudget = time.Hour
			opts.MaxPerProbe = 100

			h, _, _ := newTestHarvester(client, opts)
			require.NoError(t, h.Run(context.Background()))
			assert.Zero(t, client.commentCalls)
		})
	}
}

func TestPaginationFollowsAfterTokens(t *testing.T) {
	client := &fakeClient{}
	client.searchFn = func(sub, query, after string) ([]models.Post, string, error) {
		if after == "" {
			return []models.Post{
				post("claim denied", 1600),
				post("claim denied", 1500),
			}, "t3_abc", nil
		}
		return []models.Post{post("claim denied", 1400)}, "", nil
	}

	h, collector, _ := newTestHarvester(client, Options{
		Subreddits:  []string{"subs"},
		Probes:      []string{"probe"},
		Window:      testWindow,
		TimeBudget:  time.Hour,
		MaxPerProbe: 100,
	})

	require.NoError(t, h.Run(context.Background()))

	assert.Equal(t, []string{"", "t3_abc"}, client.searchAfters)
	assert.Equal(t, 3, unigramCount(collector, "subs", "claim"))
}

func TestContextCancellationAborts(t *testing.T) {
	client := &fakeClient{}
	h, _, _ := newTestHarvester(client, Options{
		Subreddits:  []string{"subs"},
		Probes:      []string{"probe"},
		Window:      testWindow,
		TimeBudget:  time.Hour,
		MaxPerProbe: 100,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, h.Run(ctx), context.Canceled)
	assert.Zero(t, client.searchCalls)
}
