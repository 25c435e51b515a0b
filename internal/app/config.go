package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/text/language"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"60s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"45s"`
	AppRateLimit      int           `envconfig:"APP_RATE_LIMIT" default:"120"`

	LogFormat     string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile       string `envconfig:"LOG_FILE"`
	LogFileMaxMB  int    `envconfig:"LOG_FILE_MAX_MB" default:"50"`
	LogFileMaxAge int    `envconfig:"LOG_FILE_MAX_AGE_DAYS" default:"14"`

	APIBaseURL   string        `envconfig:"API_BASE_URL" default:"http://127.0.0.1:8000/api"`
	APITimeout   time.Duration `envconfig:"API_TIMEOUT" default:"15s"`
	APIUserAgent string        `envconfig:"API_USER_AGENT" default:"worksla-web"`

	JournalResource string `envconfig:"JOURNAL_RESOURCE" default:"journals"`
	JournalPageSize int    `envconfig:"JOURNAL_PAGE_SIZE" default:"50"`
	JournalMaxPages int    `envconfig:"JOURNAL_MAX_PAGES" default:"20"`

	WPListFetchSize int           `envconfig:"WP_LIST_FETCH_SIZE" default:"200"`
	WPListPageSize  int           `envconfig:"WP_LIST_PAGE_SIZE" default:"12"`
	WPListCacheTTL  time.Duration `envconfig:"WP_LIST_CACHE_TTL" default:"2m"`

	DisplayTimezone string `envconfig:"DISPLAY_TIMEZONE" default:"Asia/Bangkok"`
	DisplayLanguage string `envconfig:"DISPLAY_LANGUAGE" default:"th"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"8h"`
	SessionCookie string        `envconfig:"SESSION_COOKIE" default:"worksla_session"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	GotenbergURL string `envconfig:"GOTENBERG_URL"`

	WorkerAPIUsername  string `envconfig:"WORKER_API_USERNAME"`
	WorkerAPIPassword  string `envconfig:"WORKER_API_PASSWORD"`
	WorkerRefreshCron  string `envconfig:"WORKER_REFRESH_CRON" default:"*/15 * * * *"`
	WorkerConcurrency  int    `envconfig:"WORKER_CONCURRENCY" default:"2"`
	WorkerMetricsAddr  string `envconfig:"WORKER_METRICS_ADDR" default:":9091"`
}

// LoadConfig reads configuration from environment variables. A .env file in
// the working directory, or the file named by WORKSLA_ENV_FILE, is loaded
// first without overriding variables already set.
func LoadConfig() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret must be provided")
	}
	if cfg.CSRFSecret == "" {
		return nil, errors.New("csrf secret must be provided")
	}
	if cfg.JournalPageSize <= 0 || cfg.JournalMaxPages <= 0 {
		return nil, errors.New("journal page size and max pages must be positive")
	}
	if _, err := time.LoadLocation(cfg.DisplayTimezone); err != nil {
		return nil, fmt.Errorf("display timezone: %w", err)
	}
	if _, err := language.Parse(cfg.DisplayLanguage); err != nil {
		return nil, fmt.Errorf("display language: %w", err)
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	return &cfg, nil
}

func loadDotEnv() error {
	path := os.Getenv("WORKSLA_ENV_FILE")
	if path == "" {
		path = ".env"
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// Location returns the display time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Language returns the display language tag.
func (c *Config) Language() language.Tag {
	tag, err := language.Parse(c.DisplayLanguage)
	if err != nil {
		return language.Thai
	}
	return tag
}
