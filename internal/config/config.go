// Package config loads the worker configuration from an optional YAML
// file plus LITERA_-prefixed environment variables. A missing file is
// fine; every knob has a default.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Database struct {
	Path string `mapstructure:"path"`
}

type Provider struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type Baseline struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	Email   string `mapstructure:"email"`
}

type Pipeline struct {
	Version            string  `mapstructure:"version"`
	SourceLang         string  `mapstructure:"source_lang"`
	TargetLang         string  `mapstructure:"target_lang"`
	Temperature        float64 `mapstructure:"temperature"`
	TemperatureDelta   float64 `mapstructure:"temperature_delta"`
	TemperatureFloor   float64 `mapstructure:"temperature_floor"`
	MaxOutputTokens    int     `mapstructure:"max_output_tokens"`
	MaxOutputTokensCap int     `mapstructure:"max_output_tokens_cap"`
	Verbosity          string  `mapstructure:"verbosity"`
	ReasoningEffort    string  `mapstructure:"reasoning_effort"`
	CreativeAutonomy   string  `mapstructure:"creative_autonomy"`
	WorkerConcurrency  int     `mapstructure:"worker_concurrency"`
}

type Proofread struct {
	TokenBudget        int `mapstructure:"token_budget"`
	OverlapTokenBudget int `mapstructure:"overlap_token_budget"`
	MaxOutputTokens    int `mapstructure:"max_output_tokens"`
	PageSize           int `mapstructure:"page_size"`
	LimiterSize        int `mapstructure:"limiter_size"`
}

type Output struct {
	Dir string `mapstructure:"dir"`
}

type Config struct {
	Database  Database  `mapstructure:"database"`
	Provider  Provider  `mapstructure:"provider"`
	Baseline  Baseline  `mapstructure:"baseline"`
	Pipeline  Pipeline  `mapstructure:"pipeline"`
	Proofread Proofread `mapstructure:"proofread"`
	Output    Output    `mapstructure:"output"`
}

// Load reads path (optional; empty skips the file), layers LITERA_*
// environment variables over it, and fills defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LITERA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "litera.db")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.model", "google/gemini-2.0-flash-exp:free")
	v.SetDefault("provider.embedding_model", "")
	v.SetDefault("provider.timeout_seconds", 120)
	v.SetDefault("baseline.enabled", true)
	v.SetDefault("pipeline.version", "legacy")
	v.SetDefault("pipeline.source_lang", "auto")
	v.SetDefault("pipeline.target_lang", "en")
	v.SetDefault("pipeline.temperature", 0.7)
	v.SetDefault("pipeline.temperature_delta", 0.3)
	v.SetDefault("pipeline.temperature_floor", 0.1)
	v.SetDefault("pipeline.max_output_tokens", 1024)
	v.SetDefault("pipeline.max_output_tokens_cap", 8192)
	v.SetDefault("pipeline.creative_autonomy", "low")
	v.SetDefault("pipeline.worker_concurrency", 2)
	v.SetDefault("proofread.token_budget", 1200)
	v.SetDefault("proofread.overlap_token_budget", 150)
	v.SetDefault("proofread.max_output_tokens", 1024)
	v.SetDefault("proofread.page_size", 40)
	v.SetDefault("proofread.limiter_size", 4)
	v.SetDefault("output.dir", "out")
}
