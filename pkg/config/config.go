package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/user/listing-radar/internal/entity"
)

// Config holds the application configuration. Tuning knobs and the search
// list come from config.yaml; credentials and infrastructure addresses are
// resolved from the environment first, then the config file.
type Config struct {
	MaxAgeHours        float64
	TopNPerSearch      int
	PerLinkDelay       time.Duration
	PerFetchDelay      time.Duration
	Mode               string // "soft" or "strict-today"
	Warmup             bool
	Force              bool
	MaxNotifyPerSearch int
	PollInterval       time.Duration // zero means one-shot
	ListingPattern     string
	Searches           []entity.SearchSpec

	SeenStore string // "file" or "redis"
	SeenFile  string
	SeenTTL   time.Duration // redis only; zero means keep forever

	BotToken string
	ChatID   int64

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PostgresURL string

	ServerPort      string
	LogLevel        string
	PageLoadTimeout time.Duration
}

// defaultListingPattern matches the path shapes of listing detail pages:
// "/propiedades/...-51234567.html" plus the older "/propiedad", "inmueble"
// and "/p/<digits>" forms.
const defaultListingPattern = `/propiedades/.+-\d+\.html|/propiedad|inmueble|/p/\d+`

// Load reads configuration from config.yaml (optional) and environment
// variables. Environment wins for credentials.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	// A missing config file is fine (configuration purely through
	// environment variables); a present but unparseable one is not.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetDefault("max_age_hours", 24.0)
	v.SetDefault("top_n_per_search", 12)
	v.SetDefault("per_link_delay_sec", 0.8)
	v.SetDefault("per_fetch_delay_sec", 0.0)
	v.SetDefault("mode", "soft")
	v.SetDefault("warmup", false)
	v.SetDefault("force", false)
	v.SetDefault("max_notify_per_search", 12)
	v.SetDefault("poll_interval", "")
	v.SetDefault("listing_pattern", defaultListingPattern)
	v.SetDefault("seen_store", "file")
	v.SetDefault("seen_file", "seen_urls.json")
	v.SetDefault("seen_ttl_days", 0)
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("postgres_url", "")
	v.SetDefault("server_port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("page_load_timeout_seconds", 45)

	// Secrets are environment-first; the config file keys act as a fallback
	// for local development only.
	for env, key := range map[string]string{
		"BOT_TOKEN":    "bot_token",
		"CHAT_ID":      "chat_id",
		"REDIS_ADDR":   "redis_addr",
		"POSTGRES_URL": "postgres_url",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	cfg := &Config{
		MaxAgeHours:        v.GetFloat64("max_age_hours"),
		TopNPerSearch:      v.GetInt("top_n_per_search"),
		PerLinkDelay:       secondsToDuration(v.GetFloat64("per_link_delay_sec")),
		PerFetchDelay:      secondsToDuration(v.GetFloat64("per_fetch_delay_sec")),
		Mode:               v.GetString("mode"),
		Warmup:             v.GetBool("warmup"),
		Force:              v.GetBool("force"),
		MaxNotifyPerSearch: v.GetInt("max_notify_per_search"),
		ListingPattern:     v.GetString("listing_pattern"),
		SeenStore:          v.GetString("seen_store"),
		SeenFile:           v.GetString("seen_file"),
		SeenTTL:            time.Duration(v.GetInt("seen_ttl_days")) * 24 * time.Hour,
		BotToken:           v.GetString("bot_token"),
		RedisAddr:          v.GetString("redis_addr"),
		RedisPassword:      v.GetString("redis_password"),
		RedisDB:            v.GetInt("redis_db"),
		PostgresURL:        v.GetString("postgres_url"),
		ServerPort:         v.GetString("server_port"),
		LogLevel:           v.GetString("log_level"),
		PageLoadTimeout:    time.Duration(v.GetInt("page_load_timeout_seconds")) * time.Second,
	}

	if raw := v.GetString("poll_interval"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("parse poll_interval %q: %w", raw, err)
		}
		cfg.PollInterval = d
	}

	if raw := v.GetString("chat_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse chat_id %q: %w", raw, err)
		}
		cfg.ChatID = id
	}

	searches, err := parseSearches(v.Get("searches"))
	if err != nil {
		return nil, err
	}
	cfg.Searches = searches

	if cfg.Mode != "soft" && cfg.Mode != "strict-today" {
		return nil, fmt.Errorf("unknown mode %q (want soft or strict-today)", cfg.Mode)
	}
	if cfg.SeenStore != "file" && cfg.SeenStore != "redis" {
		return nil, fmt.Errorf("unknown seen_store %q (want file or redis)", cfg.SeenStore)
	}

	return cfg, nil
}

// Validate checks the invariants that must hold before any browsing begins.
func (c *Config) Validate() error {
	if len(c.Searches) == 0 {
		return fmt.Errorf("no searches configured")
	}
	if !c.Warmup {
		if c.BotToken == "" {
			return fmt.Errorf("BOT_TOKEN is required")
		}
		if c.ChatID == 0 {
			return fmt.Errorf("CHAT_ID is required")
		}
	}
	return nil
}

// parseSearches accepts the two config shapes: a bare URL string, or a
// {name, url} record.
func parseSearches(raw interface{}) ([]entity.SearchSpec, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("searches must be a list")
	}

	specs := make([]entity.SearchSpec, 0, len(items))
	for i, item := range items {
		switch val := item.(type) {
		case string:
			specs = append(specs, entity.SearchSpec{URL: val})
		case map[string]interface{}:
			spec := entity.SearchSpec{}
			if name, ok := val["name"].(string); ok {
				spec.Name = name
			}
			if u, ok := val["url"].(string); ok {
				spec.URL = u
			}
			if spec.URL == "" {
				return nil, fmt.Errorf("searches[%d]: missing url", i)
			}
			specs = append(specs, spec)
		case map[interface{}]interface{}:
			spec := entity.SearchSpec{}
			if name, ok := val["name"].(string); ok {
				spec.Name = name
			}
			if u, ok := val["url"].(string); ok {
				spec.URL = u
			}
			if spec.URL == "" {
				return nil, fmt.Errorf("searches[%d]: missing url", i)
			}
			specs = append(specs, spec)
		default:
			return nil, fmt.Errorf("searches[%d]: expected string or {name, url}", i)
		}
	}
	return specs, nil
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}
