package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./lumifeed.db" description:"Path to SQLite database file"`

	// Application configuration
	ContentDir        string `long:"content-dir" env:"CONTENT_DIR" default:"./content" description:"Directory containing content pack files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl           string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://feed.example.com)"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"3" description:"Number of background workers for task processing"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"300" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for curator endpoints (optional)"`
	RedisAddr         string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for balance caching (optional, e.g., localhost:6379)"`

	// Feed viewing behavior
	VisibilityThreshold float64 `long:"visibility-threshold" env:"VISIBILITY_THRESHOLD" default:"0.5" description:"Minimum visible fraction for an item to count as active"`
	SettleDebounceMs    int     `long:"settle-debounce" env:"SETTLE_DEBOUNCE_MS" default:"300" description:"Scroll settle debounce in milliseconds"`
	QuizDwellMs         int     `long:"quiz-dwell" env:"QUIZ_DWELL_MS" default:"1500" description:"Dwell on an item before its quiz is presented, in milliseconds (0 = immediate)"`
	SessionTTLMinutes   int     `long:"session-ttl" env:"SESSION_TTL_MINUTES" default:"60" description:"Idle feed session lifetime in minutes"`
	RepetitionCutoffH   int     `long:"repetition-cutoff" env:"REPETITION_CUTOFF_HOURS" default:"24" description:"Hours after which a learned quiz becomes due for repetition"`

	// Content ingestion
	ImportFeeds []string `long:"import-feed" env:"IMPORT_FEEDS" env-delim:"," description:"Media RSS feeds to import items from, as category=url pairs"`
	AnalyzerURL string   `long:"analyzer-url" env:"ANALYZER_URL" description:"Content analysis endpoint for quiz generation (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"LumiFeed/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:              raw.DBPath,
		ContentDir:          raw.ContentDir,
		Port:                raw.Port,
		BaseUrl:             raw.BaseUrl,
		WorkerCount:         raw.WorkerCount,
		SchedulerInterval:   raw.SchedulerInterval,
		APIAccessKey:        raw.APIAccessKey,
		RedisAddr:           raw.RedisAddr,
		VisibilityThreshold: raw.VisibilityThreshold,
		SettleDebounceMs:    raw.SettleDebounceMs,
		QuizDwellMs:         raw.QuizDwellMs,
		SessionTTLMinutes:   raw.SessionTTLMinutes,
		RepetitionCutoffH:   raw.RepetitionCutoffH,
		ImportFeeds:         raw.ImportFeeds,
		AnalyzerURL:         raw.AnalyzerURL,
		UserAgent:           raw.UserAgent,
		Timezone:            raw.Timezone,
		Debug:               raw.Debug,
		Version:             GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
