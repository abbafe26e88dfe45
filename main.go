package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"probesampler/api"
	"probesampler/dashboard"
	"probesampler/harvest"
	"probesampler/report"
	"probesampler/stats"
	"probesampler/text"
	"probesampler/utils"
)

func main() {
	envPath := flag.String("env", ".env", "Path to .env file")
	logLevel := flag.String("log-level", "info", "Logging level (debug, info, warn, error)")
	flag.Parse()

	log := setupLogger(*logLevel)
	log.Info("Starting probe sampler")

	config, err := utils.LoadConfig(*envPath, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	log.WithFields(logrus.Fields{
		"subreddits":     config.Sample.Subreddits,
		"probes":         len(config.Sample.Probes),
		"earliest":       config.Sample.EarliestISO,
		"latest":         config.Sample.LatestISO,
		"budget_minutes": config.Sample.TimeBudgetMinutes,
		"max_per_probe":  config.Sample.MaxPerProbe,
	}).Info("Configuration loaded")

	// validated at load time, so this cannot fail here
	window, err := harvest.ParseWindow(config.Sample.EarliestISO, config.Sample.LatestISO)
	if err != nil {
		log.WithError(err).Fatal("Invalid time window")
	}

	redditAPI := api.NewRedditAPI(
		config.Reddit.ClientID,
		config.Reddit.ClientSecret,
		config.Reddit.UserAgent,
		config.Reddit.MaxRequestsPerMinute,
		log,
	)

	governor := harvest.NewGovernor(
		time.Duration(config.Sample.PerPostPauseSec*float64(time.Second)),
		config.Sample.SleepEvery,
		time.Duration(config.Sample.SleepSeconds*float64(time.Second)),
		log,
	)

	collector := stats.NewCollector()
	harvester := harvest.NewHarvester(
		redditAPI,
		governor,
		text.NewFilter(config.Sample.DomainStopwords),
		collector,
		harvest.Options{
			Subreddits:         config.Sample.Subreddits,
			Probes:             config.Sample.Probes,
			Window:             window,
			TimeBudget:         time.Duration(config.Sample.TimeBudgetMinutes) * time.Minute,
			MaxPerProbe:        config.Sample.MaxPerProbe,
			IncludeComments:    config.Sample.IncludeComments,
			MaxCommentsPerPost: config.Sample.MaxCommentsPerPost,
		},
		log,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.WithField("signal", sig.String()).Info("Shutdown signal received")
		cancel()
	}()

	if config.Server.Enabled {
		srv := dashboard.NewServer(collector, config.Sample.Subreddits, config.Report.TopN, log)
		go srv.Start(ctx, config.Server.Port)
	}

	if err := harvester.Run(ctx); err != nil {
		// interrupted runs still report whatever was accumulated
		log.WithError(err).Warn("Harvest interrupted; writing partial results")
	}

	writeReports(config, collector, log)

	if config.Server.Enabled {
		log.Info("Harvest complete; dashboard still serving (Ctrl-C to exit)")
		<-ctx.Done()
		time.Sleep(1 * time.Second)
	}

	log.Info("Probe sampler stopped")
}

func writeReports(config *utils.Config, collector *stats.Collector, log *logrus.Logger) {
	subs := config.Sample.Subreddits
	topN := config.Report.TopN

	if err := report.WriteTopN(config.Report.UnigramsPath, "word", subs, collector.TopUnigrams, topN); err != nil {
		log.WithError(err).Error("Failed to write unigram report")
	} else {
		log.WithField("path", config.Report.UnigramsPath).Info("Wrote unigram report")
	}

	if err := report.WriteTopN(config.Report.BigramsPath, "phrase", subs, collector.TopBigrams, topN); err != nil {
		log.WithError(err).Error("Failed to write bigram report")
	} else {
		log.WithField("path", config.Report.BigramsPath).Info("Wrote bigram report")
	}

	library, err := report.LoadKeywordLibrary(config.Report.KeywordLibraryPath)
	if err != nil {
		log.WithError(err).Error("Failed to load keyword library; skipping overlap report")
		return
	}
	if len(library) == 0 {
		return
	}

	if err := report.WriteOverlap(config.Report.OverlapPath, subs, collector, library, topN); err != nil {
		log.WithError(err).Error("Failed to write overlap report")
	} else {
		log.WithField("path", config.Report.OverlapPath).Info("Wrote overlap report")
	}
}

// setupLogger sets up the logger with the specified log level
func setupLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}
