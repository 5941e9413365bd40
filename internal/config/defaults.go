package config

import "time"

func DefaultConfig() *Config {
	return &Config{
		Sites: []SiteConfig{},
		Crawl: CrawlConfig{
			MaxDepth:          5,
			MaxConcurrency:    8,
			ParallelSites:     4,
			MinDelay:          500 * time.Millisecond,
			MaxDelay:          5 * time.Second,
			Timeout:           10 * time.Second,
			UserAgent:         "SiteIndexBot/1.0",
			Referrer:          "http://www.google.com",
			RespectRobots:     false,
			RequestsPerSecond: 0,
			DisallowedDomains: []string{},
			IgnoreExtensions:  nil,
			BrowserFallback:   false,
		},
		Lemmatizer: LemmatizerConfig{
			Normalizer:     "script",
			ExtraStopWords: []string{},
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "siteindex.db",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "logs/siteindex.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		},
	}
}
