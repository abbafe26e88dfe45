package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"probesampler/harvest"
)

// defaultProbes stratifies sampling across broad benefit-related queries
// instead of a fixed keyword library
var defaultProbes = []string{
	"va", "benefits", "disability", "claim", "appeal", "denied", "rating",
	"compensation", "form", "cfr", "service connected", "evidence", "nexus",
	"pact act", "dbq", "board appeal", "supplemental", "pending",
	"effective date",
}

// Config holds all configuration for the application
type Config struct {
	App    AppConfig
	Reddit RedditConfig
	Sample SampleConfig
	Report ReportConfig
	Server ServerConfig
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Name    string
	Version string
}

// RedditConfig holds Reddit API configuration
type RedditConfig struct {
	ClientID             string
	ClientSecret         string
	UserAgent            string
	MaxRequestsPerMinute int
}

// SampleConfig holds the harvesting run parameters
type SampleConfig struct {
	Subreddits         []string
	Probes             []string
	EarliestISO        string // optional, ISO UTC
	LatestISO          string // required, ISO UTC
	TimeBudgetMinutes  int
	MaxPerProbe        int
	IncludeComments    bool
	MaxCommentsPerPost int
	PerPostPauseSec    float64
	SleepEvery         int
	SleepSeconds       float64
	DomainStopwords    []string
}

// ReportConfig holds output configuration
type ReportConfig struct {
	TopN               int
	UnigramsPath       string
	BigramsPath        string
	OverlapPath        string
	KeywordLibraryPath string
}

// ServerConfig holds the optional live dashboard configuration
type ServerConfig struct {
	Enabled bool
	Port    int
}

// LoadConfig loads configuration from a .env file plus the process
// environment. A missing .env file is not fatal; missing required values
// are.
func LoadConfig(envPath string, log *logrus.Logger) (*Config, error) {
	if envPath == "" {
		envPath = ".env"
	}

	if err := godotenv.Load(envPath); err != nil {
		log.WithField("file", envPath).Warn("No .env file loaded; using process environment only")
	}

	config := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "Probe Sampler"),
			Version: getEnv("APP_VERSION", "1.0.0"),
		},
		Reddit: RedditConfig{
			ClientID:             getEnv("REDDIT_CLIENT_ID", ""),
			ClientSecret:         getEnv("REDDIT_CLIENT_SECRET", ""),
			UserAgent:            getEnv("REDDIT_USER_AGENT", ""),
			MaxRequestsPerMinute: getEnvAsInt("REDDIT_MAX_REQUESTS_PER_MINUTE", 100),
		},
		Sample: SampleConfig{
			Subreddits:         parseList(getEnv("SAMPLE_SUBREDDITS", "VeteransBenefits,Veterans,VAClaims")),
			Probes:             parseListWithDefault(getEnv("SAMPLE_PROBES", ""), defaultProbes),
			EarliestISO:        getEnv("SAMPLE_EARLIEST", ""),
			LatestISO:          getEnv("SAMPLE_LATEST", ""),
			TimeBudgetMinutes:  getEnvAsInt("SAMPLE_TIME_BUDGET_MINUTES", 40),
			MaxPerProbe:        getEnvAsInt("SAMPLE_MAX_PER_PROBE", 80),
			IncludeComments:    getEnvAsBool("SAMPLE_INCLUDE_COMMENTS", false),
			MaxCommentsPerPost: getEnvAsInt("SAMPLE_MAX_COMMENTS_PER_POST", 0),
			PerPostPauseSec:    getEnvAsFloat("SAMPLE_PER_POST_PAUSE_SECONDS", 0.3),
			SleepEvery:         getEnvAsInt("SAMPLE_SLEEP_EVERY", 10),
			SleepSeconds:       getEnvAsFloat("SAMPLE_SLEEP_SECONDS", 1.5),
			DomainStopwords:    parseList(getEnv("SAMPLE_DOMAIN_STOPWORDS", "")),
		},
		Report: ReportConfig{
			TopN:               getEnvAsInt("REPORT_TOP_N", 20),
			UnigramsPath:       getEnv("REPORT_UNIGRAMS_PATH", "top20_unigrams_by_sub.csv"),
			BigramsPath:        getEnv("REPORT_BIGRAMS_PATH", "top20_bigrams_by_sub.csv"),
			OverlapPath:        getEnv("REPORT_OVERLAP_PATH", "overlap_report.csv"),
			KeywordLibraryPath: getEnv("REPORT_KEYWORD_LIBRARY", ""),
		},
		Server: ServerConfig{
			Enabled: getEnvAsBool("DASHBOARD_ENABLED", false),
			Port:    getEnvAsInt("SERVER_PORT", 8080),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	log.WithField("file", envPath).Info("Config loaded successfully")
	return config, nil
}

// parseList parses a comma-separated list, trimming blanks
func parseList(s string) []string {
	parts := strings.Split(s, ",")

	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseListWithDefault(s string, fallback []string) []string {
	out := parseList(s)
	if len(out) == 0 {
		return fallback
	}
	return out
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsFloat gets an environment variable as a float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as a bool or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// validateConfig enforces the startup preconditions the harvester assumes
func validateConfig(config *Config) error {
	if config.Reddit.ClientID == "" {
		return fmt.Errorf("REDDIT_CLIENT_ID environment variable is required")
	}
	if config.Reddit.ClientSecret == "" {
		return fmt.Errorf("REDDIT_CLIENT_SECRET environment variable is required")
	}

	// User-Agent required per Reddit API rules; it has strict format requirements
	if config.Reddit.UserAgent == "" {
		return fmt.Errorf("REDDIT_USER_AGENT environment variable is required")
	}
	if len(config.Sample.Subreddits) == 0 {
		return fmt.Errorf("SAMPLE_SUBREDDITS environment variable is required")
	}
	if len(config.Sample.Probes) == 0 {
		return fmt.Errorf("SAMPLE_PROBES must contain at least one probe query")
	}
	if config.Sample.TimeBudgetMinutes < 1 {
		return fmt.Errorf("SAMPLE_TIME_BUDGET_MINUTES must be positive")
	}
	if config.Sample.MaxPerProbe < 1 {
		return fmt.Errorf("SAMPLE_MAX_PER_PROBE must be positive")
	}
	if config.Report.TopN < 1 {
		return fmt.Errorf("REPORT_TOP_N must be positive")
	}

	// the window must resolve before any harvesting begins
	if _, err := harvest.ParseWindow(config.Sample.EarliestISO, config.Sample.LatestISO); err != nil {
		return fmt.Errorf("SAMPLE_LATEST/SAMPLE_EARLIEST: %w", err)
	}

	return nil
}
