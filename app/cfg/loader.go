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
	// Storage configuration
	DBPath      string `long:"db-path" env:"DB_PATH" default:"./data/newssift.db" description:"Path to the SQLite database file"`
	MaxArticles int    `long:"max-articles" env:"MAX_ARTICLES" default:"1000" description:"Maximum number of retained articles (0 disables pruning)"`

	// Source configuration
	SourcesDir string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	ExportsDir string `long:"exports-dir" env:"EXPORTS_DIR" description:"Directory containing channel export files (optional)"`
	BotToken   string `long:"bot-token" env:"BOT_TOKEN" description:"Bot token for the channel client (optional)"`

	// Pipeline configuration
	MaxConcurrency int `long:"max-concurrency" env:"MAX_CONCURRENCY" default:"3" description:"Number of parallel source fetches"`
	FetchTimeout   int `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"300" description:"Per-source fetch timeout in seconds"`
	ScrapeInterval int `long:"scrape-interval" env:"SCRAPE_INTERVAL" default:"30" description:"Ingestion cycle interval in minutes"`

	// HTTP server configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"News Sift/1.0" description:"User agent string for HTTP requests"`
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
		DBPath:         raw.DBPath,
		MaxArticles:    raw.MaxArticles,
		SourcesDir:     raw.SourcesDir,
		ExportsDir:     raw.ExportsDir,
		BotToken:       raw.BotToken,
		MaxConcurrency: raw.MaxConcurrency,
		FetchTimeout:   raw.FetchTimeout,
		ScrapeInterval: raw.ScrapeInterval,
		Port:           raw.Port,
		APIAccessKey:   raw.APIAccessKey,
		UserAgent:      raw.UserAgent,
		Timezone:       raw.Timezone,
		Debug:          raw.Debug,
		Version:        GetVersion(),
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
