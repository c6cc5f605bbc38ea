// Package config loads the application settings from defaults, an optional
// YAML file, CURIO_ environment variables and command line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/curio/internal/parser"
)

// EnvPrefix prefixes every environment variable. A double underscore nests:
// CURIO_CONTENT__MIN_POOL sets content.min_pool.
const EnvPrefix = "CURIO_"

// ErrHelp is returned when the user asked for usage.
var ErrHelp = pflag.ErrHelp

// keys holding lists; their environment values are comma separated.
var listKeys = map[string]bool{
	"seed.dirs":      true,
	"seed.repos":     true,
	"content.topics": true,
}

type Config struct {
	DB        string          `koanf:"db" validate:"required"`
	Addr      string          `koanf:"addr" validate:"required"`
	Profile   string          `koanf:"profile"`
	LogLevel  string          `koanf:"log_level" validate:"oneof=debug info warn error"`
	Seed      SeedConfig      `koanf:"seed"`
	Selection SelectionConfig `koanf:"selection"`
	Content   ContentConfig   `koanf:"content"`
	Generator GeneratorConfig `koanf:"generator"`
}

type SeedConfig struct {
	Dirs           []string `koanf:"dirs"`
	Repos          []string `koanf:"repos"`
	ReposDir       string   `koanf:"repos_dir" validate:"required_with=Repos"`
	IncludeDefault bool     `koanf:"include_default"`
}

type SelectionConfig struct {
	TargetCount int           `koanf:"target_count" validate:"gte=1,lte=20"`
	Cooldown    time.Duration `koanf:"cooldown" validate:"gte=0"`
}

type ContentConfig struct {
	Topics          []string      `koanf:"topics"`
	MinPool         int           `koanf:"min_pool" validate:"gte=1"`
	GenerateCount   int           `koanf:"generate_count" validate:"gte=1"`
	PrefillPerTopic int           `koanf:"prefill_per_topic" validate:"gte=1"`
	CacheTTL        time.Duration `koanf:"cache_ttl" validate:"gt=0"`
	BatchSize       int           `koanf:"batch_size" validate:"gte=1"`
	BatchPause      time.Duration `koanf:"batch_pause" validate:"gte=0"`
	RequestTimeout  time.Duration `koanf:"request_timeout" validate:"gt=0"`
	PrewarmInterval time.Duration `koanf:"prewarm_interval" validate:"gte=0"`
}

type GeneratorConfig struct {
	Enabled           bool    `koanf:"enabled"`
	BaseURL           string  `koanf:"base_url" validate:"omitempty,url"`
	APIKey            string  `koanf:"api_key" validate:"required_if=Enabled true"`
	Model             string  `koanf:"model" validate:"required_if=Enabled true"`
	Temperature       float64 `koanf:"temperature" validate:"gte=0,lte=2"`
	MaxTokens         int     `koanf:"max_tokens" validate:"gte=1"`
	MaxRetries        int     `koanf:"max_retries" validate:"gte=1,lte=10"`
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gte=0"`
}

func flagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("curio", pflag.ContinueOnError)
	fs.String("config", "", "Path to a YAML configuration file")
	fs.String("db", "curio.db", "Path to the SQLite database file")
	fs.String("addr", ":8080", "HTTP listen address")
	fs.String("profile", "", "Profile whose progress, profile and bookmarks are used")
	fs.String("log_level", "info", "Log level: debug, info, warn or error")

	fs.StringSlice("seed.dirs", nil, "Directories holding fact decks (.md, .xlsx, .csv)")
	fs.StringSlice("seed.repos", nil, "Git repositories holding fact decks")
	fs.String("seed.repos_dir", "repos", "Where deck repositories are checked out")
	fs.Bool("seed.include_default", true, "Include the built-in deck")

	fs.Int("selection.target_count", 3, "Facts per deck")
	fs.Duration("selection.cooldown", 30*24*time.Hour, "How long a seen fact stays out of decks")

	fs.StringSlice("content.topics", nil, "Topic catalogue (defaults to the built-in list)")
	fs.Int("content.min_pool", 10, "Candidate count below which new facts are generated")
	fs.Int("content.generate_count", 20, "Facts generated when the pool runs short")
	fs.Int("content.prefill_per_topic", 20, "Facts kept per topic by prewarming")
	fs.Duration("content.cache_ttl", 30*time.Minute, "Freshness of generated facts")
	fs.Int("content.batch_size", 5, "Topics generated concurrently")
	fs.Duration("content.batch_pause", time.Second, "Pause between generation batches")
	fs.Duration("content.request_timeout", 30*time.Second, "Bound on one generation request")
	fs.Duration("content.prewarm_interval", time.Hour, "How often the cache is prewarmed, 0 disables")

	fs.Bool("generator.enabled", false, "Generate facts with a chat model")
	fs.String("generator.base_url", "https://api.deepseek.com/v1", "OpenAI-compatible API base URL")
	fs.String("generator.api_key", "", "API key of the chat model")
	fs.String("generator.model", "deepseek-chat", "Chat model name")
	fs.Float64("generator.temperature", 0.8, "Sampling temperature")
	fs.Int("generator.max_tokens", 2000, "Completion token limit")
	fs.Int("generator.max_retries", 3, "Attempts per generation request")
	fs.Float64("generator.requests_per_second", 1, "Request rate limit, 0 for none")
	return fs
}

// Load parses args and merges every configuration layer.
func Load(args []string) (*Config, error) {
	fs := flagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if path, _ := fs.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		key = strings.ReplaceAll(key, "__", ".")
		if listKeys[key] {
			return key, parser.SplitList(value, ",")
		}
		return key, value
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Unchanged flags only fill keys no other layer set.
	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return nil, fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Usage returns the flag help text.
func Usage() string {
	return flagSet().FlagUsages()
}
