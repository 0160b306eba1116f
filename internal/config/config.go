// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	DB        DBConfig        `mapstructure:"db"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Hardcover HardcoverConfig `mapstructure:"hardcover"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Search    SearchConfig    `mapstructure:"search"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls the read-API HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs the dispatch loop and fetcher behavior.
type CrawlerConfig struct {
	DomainKeyword        string   `mapstructure:"domain_keyword"`
	MirrorExtensions     []string `mapstructure:"mirror_extensions"`
	ListingPath          string   `mapstructure:"listing_path"`
	UserAgent            string   `mapstructure:"user_agent"`
	FetchIntervalSeconds int      `mapstructure:"fetch_interval_seconds"`
	IdleIntervalSeconds  int      `mapstructure:"idle_interval_seconds"`
}

// DBConfig controls access to the relational store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// QueueConfig names the durable queues.
type QueueConfig struct {
	LiveQueue          string `mapstructure:"live_queue"`
	BackfillQueue      string `mapstructure:"backfill_queue"`
	NotificationsQueue string `mapstructure:"notifications_queue"`
}

// GeminiConfig selects the generation and embedding models.
type GeminiConfig struct {
	APIKey         string `mapstructure:"api_key"`
	ExtractModel   string `mapstructure:"extract_model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	EmbeddingSize  int    `mapstructure:"embedding_size"`
}

// HardcoverConfig holds credentials for the metadata resolver.
type HardcoverConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// ArchiveConfig selects where raw fetched pages are kept.
type ArchiveConfig struct {
	Provider    string `mapstructure:"provider"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	LocalDir    string `mapstructure:"local_dir"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// CacheConfig sizes the read-path cache.
type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds"`
	Capacity   int `mapstructure:"capacity"`
}

// NotifyConfig paces the fan-out worker.
type NotifyConfig struct {
	PollSeconds int `mapstructure:"poll_seconds"`
}

// SearchConfig bounds hybrid retrieval.
type SearchConfig struct {
	MaxResults int `mapstructure:"max_results"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SOUNDLEAF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.domain_keyword", "audiobookbay")
	v.SetDefault("crawler.mirror_extensions", []string{"lu", "is", "fi"})
	v.SetDefault("crawler.listing_path", "member/index?pid=%d")
	v.SetDefault("crawler.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("crawler.fetch_interval_seconds", 30)
	v.SetDefault("crawler.idle_interval_seconds", 1800)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("queue.live_queue", "scrape_latest")
	v.SetDefault("queue.backfill_queue", "scrape_backfill")
	v.SetDefault("queue.notifications_queue", "notifications")
	v.SetDefault("gemini.extract_model", "gemini-2.0-flash")
	v.SetDefault("gemini.embedding_model", "gemini-embedding-001")
	v.SetDefault("gemini.embedding_size", 768)
	v.SetDefault("archive.provider", "none")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("archive.content_type", "text/html; charset=utf-8")
	v.SetDefault("cache.ttl_seconds", 4*60*60)
	v.SetDefault("cache.capacity", 2048)
	v.SetDefault("notify.poll_seconds", 60)
	v.SetDefault("search.max_results", 50)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.DomainKeyword == "" {
		return fmt.Errorf("crawler.domain_keyword is required")
	}
	if len(c.Crawler.MirrorExtensions) == 0 {
		return fmt.Errorf("crawler.mirror_extensions must not be empty")
	}
	if c.Crawler.FetchIntervalSeconds < 0 {
		return fmt.Errorf("crawler.fetch_interval_seconds must be >= 0")
	}
	if c.Gemini.EmbeddingSize <= 0 {
		return fmt.Errorf("gemini.embedding_size must be > 0")
	}
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be > 0")
	}
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be > 0")
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be > 0")
	}
	return nil
}

// FetchInterval is the politeness pause after any task that hit the network.
func (c CrawlerConfig) FetchInterval() time.Duration {
	return time.Duration(c.FetchIntervalSeconds) * time.Second
}

// IdleInterval is the live-mode sleep once the queue is drained.
func (c CrawlerConfig) IdleInterval() time.Duration {
	return time.Duration(c.IdleIntervalSeconds) * time.Second
}

// TTL converts the configured cache TTL into a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// PollInterval is the sleep between empty notification-queue polls.
func (c NotifyConfig) PollInterval() time.Duration {
	return time.Duration(c.PollSeconds) * time.Second
}
