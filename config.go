package scrapequeue

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends accepted by Config.Store.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config holds configuration shared by the worker, the enqueue client and
// the HTTP API.
type Config struct {
	// Store selects the job store backend: "memory", "postgres" or "redis".
	// League data always lives in Postgres unless Store is "memory".
	Store string

	// DatabaseURL is the Postgres connection string.
	DatabaseURL string

	// RedisURL is the Redis connection URL used when Store is "redis".
	RedisURL string

	// Season and LeagueID are the defaults applied to enqueued jobs.
	Season   int
	LeagueID int

	// Positions are scraped for NFL players, CollegePositions for college
	// players. HistoricalSeasons is the default for player stat pulls.
	Positions         []string
	CollegePositions  []string
	HistoricalSeasons []int

	// Poll keeps the worker running after the queue drains, sleeping
	// PollInterval between empty cycles.
	Poll         bool
	PollInterval time.Duration

	// Concurrency is the number of jobs executed at once.
	Concurrency int

	// JobTimeout is the default per-job deadline.
	JobTimeout time.Duration

	// MaxAttempts is the default attempt budget for new jobs.
	MaxAttempts int

	// Backoff selects the retry delay strategy, e.g. "none",
	// "constant:10s", "exponential:1s:1m" or "jitter:1s:1m".
	Backoff string

	// HeartbeatInterval is how often running jobs are heartbeated.
	HeartbeatInterval time.Duration

	// StaleJobThreshold is how long a running job may go without a
	// heartbeat before it is reaped. Zero disables reaping.
	StaleJobThreshold time.Duration

	// BrowserHeadless, BrowserUserAgent and BrowserRate (navigations per
	// second, zero for unlimited) configure the shared browser session.
	BrowserHeadless  bool
	BrowserUserAgent string
	BrowserRate      float64

	// TaskLimits are per-task-type limits in throttle.ParseConfigs form,
	// e.g. "scrape_player_card=0.5,scrape_roster=0/1".
	TaskLimits string

	// StatsBaseURL is the root of the nflverse release downloads.
	StatsBaseURL string

	// HTTPAddr is the listen address of the API server.
	HTTPAddr string

	// BatchSchedule is a cron expression; when set the worker enqueues a
	// full batch on that schedule.
	BatchSchedule string

	// LogLevel is one of debug, info, warn, error. LogFormat is text or json.
	LogLevel  string
	LogFormat string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Store:             StoreMemory,
		Season:            2025,
		LeagueID:          309,
		Positions:         []string{"QB", "RB", "WR", "TE", "K"},
		CollegePositions:  []string{"QB", "RB", "WR", "TE"},
		HistoricalSeasons: []int{2022, 2023, 2024},
		PollInterval:      30 * time.Second,
		Concurrency:       1,
		JobTimeout:        5 * time.Minute,
		MaxAttempts:       3,
		Backoff:           "none",
		HeartbeatInterval: 10 * time.Second,
		BrowserHeadless:   true,
		BrowserUserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
			"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		StatsBaseURL: "https://github.com/nflverse/nflverse-data/releases/download",
		HTTPAddr:     ":8080",
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

// LoadConfig returns DefaultConfig overlaid with SCRAPER_* environment
// variables. DATABASE_URL and REDIS_URL are read without the prefix.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.str("SCRAPER_STORE", &c.Store)
	e.str("DATABASE_URL", &c.DatabaseURL)
	e.str("REDIS_URL", &c.RedisURL)
	e.integer("SCRAPER_SEASON", &c.Season)
	e.integer("SCRAPER_LEAGUE_ID", &c.LeagueID)
	e.list("SCRAPER_POSITIONS", &c.Positions)
	e.list("SCRAPER_COLLEGE_POSITIONS", &c.CollegePositions)
	e.ints("SCRAPER_HISTORICAL_SEASONS", &c.HistoricalSeasons)
	e.boolean("SCRAPER_POLL", &c.Poll)
	e.duration("SCRAPER_POLL_INTERVAL", &c.PollInterval)
	e.integer("SCRAPER_CONCURRENCY", &c.Concurrency)
	e.duration("SCRAPER_JOB_TIMEOUT", &c.JobTimeout)
	e.integer("SCRAPER_MAX_ATTEMPTS", &c.MaxAttempts)
	e.str("SCRAPER_BACKOFF", &c.Backoff)
	e.duration("SCRAPER_HEARTBEAT_INTERVAL", &c.HeartbeatInterval)
	e.duration("SCRAPER_STALE_JOB_THRESHOLD", &c.StaleJobThreshold)
	e.boolean("SCRAPER_BROWSER_HEADLESS", &c.BrowserHeadless)
	e.str("SCRAPER_BROWSER_USER_AGENT", &c.BrowserUserAgent)
	e.float("SCRAPER_BROWSER_RATE", &c.BrowserRate)
	e.str("SCRAPER_TASK_LIMITS", &c.TaskLimits)
	e.str("SCRAPER_STATS_BASE_URL", &c.StatsBaseURL)
	e.str("SCRAPER_HTTP_ADDR", &c.HTTPAddr)
	e.str("SCRAPER_BATCH_SCHEDULE", &c.BatchSchedule)
	e.str("SCRAPER_LOG_LEVEL", &c.LogLevel)
	e.str("SCRAPER_LOG_FORMAT", &c.LogFormat)

	if e.err != nil {
		return e.err
	}
	return c.Validate()
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StorePostgres, StoreRedis:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStore, c.Store)
	}
	if c.Store == StorePostgres && c.DatabaseURL == "" {
		return fmt.Errorf("scrapequeue: DATABASE_URL is required for the postgres store")
	}
	if c.Store == StoreRedis && (c.RedisURL == "" || c.DatabaseURL == "") {
		return fmt.Errorf("scrapequeue: REDIS_URL and DATABASE_URL are required for the redis store")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("scrapequeue: concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("scrapequeue: max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("scrapequeue: poll interval must be positive, got %s", c.PollInterval)
	}
	return nil
}

// envReader accumulates the first parse error so applyEnv stays linear.
type envReader struct {
	lookup lookupFunc
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v, ok := e.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) fail(key, v string, err error) {
	e.err = fmt.Errorf("scrapequeue: invalid %s=%q: %w", key, v, err)
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = n
}

func (e *envReader) float(key string, dst *float64) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = f
}

func (e *envReader) boolean(key string, dst *bool) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = b
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = d
}

func (e *envReader) list(key string, dst *[]string) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	*dst = SplitList(v)
}

func (e *envReader) ints(key string, dst *[]int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	var out []int
	for _, part := range SplitList(v) {
		n, err := strconv.Atoi(part)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		out = append(out, n)
	}
	*dst = out
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
