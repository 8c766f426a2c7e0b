package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/deidaraiorek/docgraph/internal/scope"
)

// Config stores all configuration for the application.
type Config struct {
	DBPath string `mapstructure:"DB_PATH"`

	// Crawl
	SeedURL             string        `mapstructure:"SEED_URL"`
	AllowedHosts        []string      `mapstructure:"ALLOWED_HOSTS"`
	AllowedPathPrefixes []string      `mapstructure:"ALLOWED_PATH_PREFIXES"`
	RequireStableID     bool          `mapstructure:"REQUIRE_STABLE_ID"`
	StableIDParam       string        `mapstructure:"STABLE_ID_PARAM"`
	StableIDPathMarker  string        `mapstructure:"STABLE_ID_PATH_MARKER"`
	ExcludeLinkText     string        `mapstructure:"EXCLUDE_LINK_TEXT"`
	MaxPages            int           `mapstructure:"MAX_PAGES"`
	MaxDepth            int           `mapstructure:"MAX_DEPTH"`
	MaxDuration         time.Duration `mapstructure:"MAX_DURATION"`
	Delay               time.Duration `mapstructure:"DELAY"`
	FetchTimeout        time.Duration `mapstructure:"FETCH_TIMEOUT"`
	MaxRetries          int           `mapstructure:"MAX_RETRIES"`
	RetryBackoff        time.Duration `mapstructure:"RETRY_BACKOFF"`
	Recrawl             bool          `mapstructure:"RECRAWL"`
	RefetchErrors       bool          `mapstructure:"REFETCH_ERRORS"`
	UserAgent           string        `mapstructure:"USER_AGENT"`
	BrowserEnabled      bool          `mapstructure:"BROWSER_ENABLED"`
	BrowserSettle       time.Duration `mapstructure:"BROWSER_SETTLE"`

	// Query
	TopN          int           `mapstructure:"TOP_N"`
	ExcerptWindow int           `mapstructure:"EXCERPT_WINDOW"`
	LeadOffset    int           `mapstructure:"LEAD_OFFSET"`
	Acronyms      string        `mapstructure:"ACRONYMS"`
	CacheTTL      time.Duration `mapstructure:"CACHE_TTL"`
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`

	OpenAIAPIKey    string `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `mapstructure:"OPENAI_BASE_URL"`
	OpenAIModel     string `mapstructure:"OPENAI_MODEL"`
	OpenAIMaxTokens int    `mapstructure:"OPENAI_MAX_TOKENS"`

	ServerPort     string `mapstructure:"SERVER_PORT"`
	CrawlOnStart   bool   `mapstructure:"CRAWL_ON_START"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	LogDevelopment bool   `mapstructure:"LOG_DEVELOPMENT"`
}

// Load reads configuration from the given env file and the environment.
// The file is optional; environment variables win over it.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	if envFile == "" {
		envFile = ".env"
	}
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.AutomaticEnv()

	// A missing file is fine; configuration can come from the environment alone.
	_ = v.ReadInConfig()

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.AllowedHosts = compact(cfg.AllowedHosts)
	cfg.AllowedPathPrefixes = compact(cfg.AllowedPathPrefixes)

	if _, err := cfg.AcronymMap(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_PATH", "docgraph.db")

	v.SetDefault("SEED_URL", "")
	v.SetDefault("ALLOWED_HOSTS", "")
	v.SetDefault("ALLOWED_PATH_PREFIXES", "")
	v.SetDefault("REQUIRE_STABLE_ID", true)
	v.SetDefault("STABLE_ID_PARAM", "guid")
	v.SetDefault("STABLE_ID_PATH_MARKER", "document")
	v.SetDefault("EXCLUDE_LINK_TEXT", scope.DefaultExcludeText)
	v.SetDefault("MAX_PAGES", 2000)
	v.SetDefault("MAX_DEPTH", 6)
	v.SetDefault("MAX_DURATION", "1h")
	v.SetDefault("DELAY", "300ms")
	v.SetDefault("FETCH_TIMEOUT", "30s")
	v.SetDefault("MAX_RETRIES", 2)
	v.SetDefault("RETRY_BACKOFF", "2s")
	v.SetDefault("RECRAWL", false)
	v.SetDefault("REFETCH_ERRORS", false)
	v.SetDefault("USER_AGENT", "docgraph/1.0 (+https://github.com/deidaraiorek/docgraph)")
	v.SetDefault("BROWSER_ENABLED", true)
	v.SetDefault("BROWSER_SETTLE", "2s")

	v.SetDefault("TOP_N", 6)
	v.SetDefault("EXCERPT_WINDOW", 8000)
	v.SetDefault("LEAD_OFFSET", 200)
	v.SetDefault("ACRONYMS", "")
	v.SetDefault("CACHE_TTL", "10m")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_BASE_URL", "")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("OPENAI_MAX_TOKENS", 1024)

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("CRAWL_ON_START", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DEVELOPMENT", false)
}

// AcronymMap parses ACRONYMS, written as "key=expansion;key=expansion".
// Keys are lowercased.
func (c *Config) AcronymMap() (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(c.Acronyms, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, expansion, ok := strings.Cut(pair, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		expansion = strings.TrimSpace(expansion)
		if !ok || key == "" || expansion == "" {
			return nil, fmt.Errorf("invalid ACRONYMS entry %q: want key=expansion", pair)
		}
		out[key] = expansion
	}
	return out, nil
}

// Identity is the stable-id rule configured for the crawl.
func (c *Config) Identity() scope.Identity {
	return scope.Identity{QueryParam: c.StableIDParam, PathMarker: c.StableIDPathMarker}
}

// AllowedHostsOrSeed returns the configured hosts, or the seed's host when
// none are set.
func (c *Config) AllowedHostsOrSeed() []string {
	if len(c.AllowedHosts) > 0 {
		return c.AllowedHosts
	}
	if host := scope.Host(c.SeedURL); host != "" {
		return []string{host}
	}
	return nil
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// FilterConfig is the scope filter configured for the crawl.
func (c *Config) FilterConfig() scope.FilterConfig {
	return scope.FilterConfig{
		AllowedHosts:        c.AllowedHostsOrSeed(),
		AllowedPathPrefixes: c.AllowedPathPrefixes,
		RequireStableID:     c.RequireStableID,
		ExcludeLinkText:     c.ExcludeLinkText,
	}
}
