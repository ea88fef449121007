// Package config loads settings from defaults, an optional YAML file, and
// CHATGRAPH_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

var (
	ErrInvalidVectorBackend = errors.New("vector.backend must be sqlite or chromem")
	ErrInvalidProvider      = errors.New("embed.provider must be static, openai, or ollama")
	ErrInvalidDimensions    = errors.New("vector.dimensions must be positive")
	ErrMissingAPIKey        = errors.New("embed.api_key is required for the openai provider")
	ErrInvalidCommitEvery   = errors.New("ingest.commit_every must be at least 1")
)

// Config is the full runtime configuration.
type Config struct {
	DB     DBConfig     `mapstructure:"db"`
	Vector VectorConfig `mapstructure:"vector"`
	Embed  EmbedConfig  `mapstructure:"embed"`
	Ingest IngestConfig `mapstructure:"ingest"`
	Search SearchConfig `mapstructure:"search"`
	Log    LogConfig    `mapstructure:"log"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type VectorConfig struct {
	Backend    string `mapstructure:"backend"`
	Path       string `mapstructure:"path"`
	Dimensions int    `mapstructure:"dimensions"`
}

type EmbedConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

type IngestConfig struct {
	CommitEvery int `mapstructure:"commit_every"`
}

type SearchConfig struct {
	PageSize int `mapstructure:"page_size"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration. path names an explicit config file; when empty,
// chatgraph.yaml is looked for in the working directory and under
// ~/.config/chatgraph, and its absence is fine.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("db.path", "chatgraph.db")
	v.SetDefault("vector.backend", "sqlite")
	v.SetDefault("vector.path", "chatgraph-vectors.db")
	v.SetDefault("vector.dimensions", 128)
	v.SetDefault("embed.provider", "static")
	v.SetDefault("ingest.commit_every", 100)
	v.SetDefault("search.page_size", 50)
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("CHATGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("chatgraph")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/chatgraph")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the closed-set and dependent fields.
func (c *Config) Validate() error {
	switch c.Vector.Backend {
	case "", "sqlite", "chromem":
	default:
		return ErrInvalidVectorBackend
	}
	switch c.Embed.Provider {
	case "", "none", "static", "openai", "ollama":
	default:
		return ErrInvalidProvider
	}
	if c.Vector.Dimensions <= 0 {
		return ErrInvalidDimensions
	}
	if c.Embed.Provider == "openai" && c.Embed.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Ingest.CommitEvery < 1 {
		return ErrInvalidCommitEvery
	}
	return nil
}
