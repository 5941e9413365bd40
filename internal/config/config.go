package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/deidaraiorek/siteindex/internal/fetcher"
	"github.com/deidaraiorek/siteindex/internal/frontier"
)

const envPrefix = "SITEINDEX_"

type Config struct {
	Sites      []SiteConfig     `yaml:"sites"`
	Crawl      CrawlConfig      `yaml:"crawl"`
	Lemmatizer LemmatizerConfig `yaml:"lemmatizer"`
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type SiteConfig struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type CrawlConfig struct {
	MaxDepth          int           `yaml:"max_depth"`
	MaxConcurrency    int           `yaml:"max_concurrency"`
	ParallelSites     int           `yaml:"parallel_sites"`
	MinDelay          time.Duration `yaml:"min_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	Timeout           time.Duration `yaml:"timeout"`
	UserAgent         string        `yaml:"user_agent"`
	Referrer          string        `yaml:"referrer"`
	RespectRobots     bool          `yaml:"respect_robots"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	DisallowedDomains []string      `yaml:"disallowed_domains"`
	IgnoreExtensions  []string      `yaml:"ignore_extensions"`
	BrowserFallback   bool          `yaml:"browser_fallback"`
}

type LemmatizerConfig struct {
	// Normalizer is "script", "exact" or a snowball language name.
	Normalizer     string   `yaml:"normalizer"`
	ExtraStopWords []string `yaml:"extra_stop_words"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads the YAML file at path over the defaults and then applies
// SITEINDEX_* environment overrides, including those from a .env file in
// the working directory. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var problems []string

	c.Database.Driver = getEnv("DATABASE_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DATABASE_DSN", c.Database.DSN)
	c.Server.Addr = getEnv("SERVER_ADDR", c.Server.Addr)
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.File = getEnv("LOG_FILE", c.Logging.File)
	c.Crawl.UserAgent = getEnv("USER_AGENT", c.Crawl.UserAgent)

	intVars := map[string]*int{
		"MAX_DEPTH":       &c.Crawl.MaxDepth,
		"MAX_CONCURRENCY": &c.Crawl.MaxConcurrency,
		"PARALLEL_SITES":  &c.Crawl.ParallelSites,
	}
	for key, dst := range intVars {
		raw := getEnv(key, "")
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s%s: %v", envPrefix, key, err))
			continue
		}
		*dst = n
	}

	if raw := getEnv("SITES", ""); raw != "" {
		c.Sites = nil
		for _, u := range strings.Split(raw, ",") {
			if u = strings.TrimSpace(u); u != "" {
				c.Sites = append(c.Sites, SiteConfig{URL: u})
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(envPrefix + key); exists {
		return value
	}
	return defaultVal
}

// Validate checks the whole configuration and reports every problem at once.
// Sites without a name are named after their host.
func (c *Config) Validate() error {
	var problems []string

	if len(c.Sites) == 0 {
		problems = append(problems, "no sites configured")
	}
	seen := make(map[string]bool)
	for i := range c.Sites {
		site := &c.Sites[i]
		site.URL = strings.TrimRight(strings.TrimSpace(site.URL), "/")
		u, err := url.Parse(site.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			problems = append(problems, fmt.Sprintf("sites[%d]: invalid url %q", i, site.URL))
			continue
		}
		if seen[site.URL] {
			problems = append(problems, fmt.Sprintf("sites[%d]: duplicate url %q", i, site.URL))
		}
		seen[site.URL] = true
		if site.Name == "" {
			site.Name = u.Host
		}
	}

	if c.Crawl.MaxDepth < 1 {
		problems = append(problems, "crawl.max_depth must be at least 1")
	}
	if c.Crawl.MaxConcurrency < 1 {
		problems = append(problems, "crawl.max_concurrency must be at least 1")
	}
	if c.Crawl.ParallelSites < 1 {
		problems = append(problems, "crawl.parallel_sites must be at least 1")
	}
	if c.Crawl.MinDelay < 0 || c.Crawl.MaxDelay < c.Crawl.MinDelay {
		problems = append(problems, "crawl delays must satisfy 0 <= min_delay <= max_delay")
	}
	if c.Crawl.Timeout <= 0 {
		problems = append(problems, "crawl.timeout must be positive")
	}
	if c.Crawl.RequestsPerSecond < 0 {
		problems = append(problems, "crawl.requests_per_second must not be negative")
	}

	switch c.Database.Driver {
	case "sqlite3", "pgx":
	default:
		problems = append(problems, fmt.Sprintf("database.driver %q is not one of sqlite3, pgx", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		problems = append(problems, "database.dsn is required")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) FetcherConfig() fetcher.Config {
	return fetcher.Config{
		UserAgent:         c.Crawl.UserAgent,
		Referrer:          c.Crawl.Referrer,
		Timeout:           c.Crawl.Timeout,
		MinDelay:          c.Crawl.MinDelay,
		MaxDelay:          c.Crawl.MaxDelay,
		RespectRobots:     c.Crawl.RespectRobots,
		RequestsPerSecond: c.Crawl.RequestsPerSecond,
		BrowserFallback:   c.Crawl.BrowserFallback,
	}
}

func (c *Config) FrontierConfig() frontier.Config {
	return frontier.Config{
		MaxDepth:          c.Crawl.MaxDepth,
		MaxConcurrency:    c.Crawl.MaxConcurrency,
		DisallowedDomains: c.Crawl.DisallowedDomains,
		IgnoreExtensions:  c.Crawl.IgnoreExtensions,
	}
}
