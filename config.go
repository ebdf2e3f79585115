package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds process-level settings read from the environment.
type Config struct {
	LogLevel string

	DatabaseURL string

	GeneratorProvider     string // "gemini" or "openai"
	GeneratorModel        string
	GeminiAPIKey          string
	OpenAIAPIKey          string
	GenerationTimeout     time.Duration
	GenerationsPerMinute  int
	AdapterTimeout        time.Duration
	BreakerFailureTrigger uint32
	BreakerCooldown       time.Duration

	TwitterBearerToken  string
	UnsplashAccessKey   string
	GoogleAPIKey        string
	GoogleSearchEngine  string
	BrowserTrends       bool
	BrowserTimeout      time.Duration
	WebshareAPIKey      string
	TrendsPerSource     int
	MediaResultsPerType int

	ListenAddr     string
	SiteBaseURL    string
	ContentEvery   time.Duration
	ReportHour     int
	AuthorName     string
	FeaturedImage  string
	WorkflowPerMin int
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("[Config] No .env file found, using OS environment")
	}

	return Config{
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		GeneratorProvider:     strings.ToLower(getEnv("GENERATOR_PROVIDER", "gemini")),
		GeneratorModel:        os.Getenv("GENERATOR_MODEL"),
		GeminiAPIKey:          os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		GenerationTimeout:     getEnvDuration("GENERATION_TIMEOUT", 2*time.Minute),
		GenerationsPerMinute:  getEnvInt("GENERATIONS_PER_MINUTE", 10),
		AdapterTimeout:        getEnvDuration("ADAPTER_TIMEOUT", 15*time.Second),
		BreakerFailureTrigger: uint32(getEnvInt("BREAKER_FAILURES", 3)),
		BreakerCooldown:       getEnvDuration("BREAKER_COOLDOWN", 5*time.Minute),
		TwitterBearerToken:    os.Getenv("TWITTER_BEARER_TOKEN"),
		UnsplashAccessKey:     os.Getenv("UNSPLASH_ACCESS_KEY"),
		GoogleAPIKey:          os.Getenv("GOOGLE_API_KEY"),
		GoogleSearchEngine:    os.Getenv("GOOGLE_SEARCH_ENGINE_ID"),
		BrowserTrends:         getEnvBool("TRENDS_BROWSER", false),
		BrowserTimeout:        getEnvDuration("TRENDS_BROWSER_TIMEOUT", defaultBrowserBudget),
		WebshareAPIKey:        os.Getenv("WEBSHARE_API_KEY"),
		TrendsPerSource:       getEnvInt("TRENDS_PER_SOURCE", 10),
		MediaResultsPerType:   getEnvInt("MEDIA_RESULTS_PER_TYPE", 5),
		ListenAddr:            getEnv("LISTEN_ADDR", ":8080"),
		SiteBaseURL:           strings.TrimRight(getEnv("SITE_BASE_URL", "https://trendwise.com"), "/"),
		ContentEvery:          getEnvDuration("CONTENT_INTERVAL", 6*time.Hour),
		ReportHour:            getEnvInt("REPORT_HOUR", 9),
		AuthorName:            getEnv("ARTICLE_AUTHOR", "TrendWise AI"),
		FeaturedImage:         getEnv("DEFAULT_FEATURED_IMAGE", "https://images.pexels.com/photos/8386440/pexels-photo-8386440.jpeg"),
		WorkflowPerMin:        getEnvInt("WORKFLOW_REQUESTS_PER_MINUTE", 2),
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("[Config] Invalid integer, using default", slog.String("key", key), slog.String("value", v))
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("[Config] Invalid boolean, using default", slog.String("key", key), slog.String("value", v))
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("[Config] Invalid duration, using default", slog.String("key", key), slog.String("value", v))
		return fallback
	}
	return d
}

// WorkflowConfig is the option record accepted by one workflow invocation.
type WorkflowConfig struct {
	MaxTopicsPerRun int      `json:"maxTopicsPerRun" validate:"min=1,max=20"`
	TargetWordCount int      `json:"targetWordCount" validate:"min=200,max=5000"`
	IncludeImages   bool     `json:"includeImages"`
	IncludeTweets   bool     `json:"includeTweets"`
	IncludeVideos   bool     `json:"includeVideos"`
	AutoPublish     bool     `json:"autoPublish"`
	Regions         []string `json:"regions" validate:"required,min=1,max=10,dive,len=2,alpha"`
}

func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		MaxTopicsPerRun: 3,
		TargetWordCount: 1500,
		IncludeImages:   true,
		IncludeTweets:   true,
		IncludeVideos:   true,
		AutoPublish:     true,
		Regions:         []string{"US"},
	}
}

// ScheduledWorkflowConfig is the conservative record used by the recurring trigger.
func ScheduledWorkflowConfig() WorkflowConfig {
	cfg := DefaultWorkflowConfig()
	cfg.TargetWordCount = 1200
	cfg.IncludeVideos = false
	return cfg
}

func (c WorkflowConfig) Toggles() FeatureToggles {
	return FeatureToggles{Images: c.IncludeImages, Tweets: c.IncludeTweets, Videos: c.IncludeVideos}
}

var validate = validator.New()

// Validate normalises region codes to upper case and checks the record.
func (c *WorkflowConfig) Validate() error {
	regions := make([]string, len(c.Regions))
	for i, r := range c.Regions {
		regions[i] = strings.ToUpper(strings.TrimSpace(r))
	}
	c.Regions = regions
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid workflow config: %w", err)
	}
	return nil
}

// parseRegions splits a comma-separated list such as "US,GB".
func parseRegions(s string) []string {
	var regions []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			regions = append(regions, strings.ToUpper(r))
		}
	}
	return regions
}
