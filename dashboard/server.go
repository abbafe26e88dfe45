package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"probesampler/stats"
)

// TermTables is the JSON view of one subreddit's current rankings
type TermTables struct {
	Unigrams []stats.TermCount `json:"unigrams"`
	Bigrams  []stats.TermCount `json:"bigrams"`
}

// Server exposes live frequency tables while a run is in progress and
// after it finishes
type Server struct {
	collector  *stats.Collector
	subreddits []string
	topN       int
	log        *logrus.Logger
}

// NewServer creates a dashboard over a collector. The collector may still
// be receiving writes from the harvester.
func NewServer(collector *stats.Collector, subreddits []string, topN int, log *logrus.Logger) *Server {
	return &Server{
		collector:  collector,
		subreddits: subreddits,
		topN:       topN,
		log:        log,
	}
}

// Start serves until the context is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, port int) {
	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	rateLimiterConfig := middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(10),
				Burst:     5,
				ExpiresIn: 3 * time.Minute,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(ctx echo.Context, err error) error {
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded, please try again later",
			})
		},
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded, please try again later",
			})
		},
	}
	e.Use(middleware.RateLimiterWithConfig(rateLimiterConfig))

	e.GET("/api/terms", s.handleAllTerms)
	e.GET("/api/terms/:subreddit", s.handleSubredditTerms)
	e.GET("/", s.handleCharts)

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	go func() {
		serverAddr := fmt.Sprintf(":%d", port)
		s.log.WithField("port", port).Info("Starting dashboard server")
		if err := e.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("Dashboard server failed")
		}
	}()

	<-ctx.Done()
	s.log.Info("Shutting down dashboard server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		s.log.WithError(err).Error("Dashboard server shutdown failed")
	}
}

func (s *Server) tablesFor(sub string) TermTables {
	return TermTables{
		Unigrams: s.collector.TopUnigrams(sub, s.topN),
		Bigrams:  s.collector.TopBigrams(sub, s.topN),
	}
}

func (s *Server) handleAllTerms(c echo.Context) error {
	out := make(map[string]TermTables, len(s.subreddits))
	for _, sub := range s.subreddits {
		out[sub] = s.tablesFor(sub)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleSubredditTerms(c echo.Context) error {
	sub := c.Param("subreddit")

	tables := s.tablesFor(sub)
	if len(tables.Unigrams) == 0 && len(tables.Bigrams) == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": fmt.Sprintf("No terms sampled yet for subreddit %s", sub),
		})
	}

	return c.JSON(http.StatusOK, tables)
}

// handleCharts renders one bar chart of top unigrams per subreddit
func (s *Server) handleCharts(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)

	for _, sub := range s.subreddits {
		top := s.collector.TopUnigrams(sub, s.topN)
		if len(top) == 0 {
			continue
		}

		bar := charts.NewBar()
		bar.SetGlobalOptions(
			charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("r/%s top terms", sub)}),
		)

		var xAxis []string
		var values []opts.BarData
		for _, tc := range top {
			xAxis = append(xAxis, tc.Term)
			values = append(values, opts.BarData{Value: tc.Count})
		}
		bar.SetXAxis(xAxis).AddSeries("count", values)

		if err := bar.Render(c.Response()); err != nil {
			return err
		}
	}

	return nil
}
