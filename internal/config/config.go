// Package config holds runtime configuration for the memory hierarchy.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all stratum configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Working       WorkingConfig       `yaml:"working"`
	Thresholds    ThresholdsConfig    `yaml:"thresholds"`
	Consolidation ConsolidationConfig `yaml:"consolidation"`
	Decay         DecayConfig         `yaml:"decay"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type StorageConfig struct {
	// DataDir holds the per-stage databases: SQLite files plus the
	// semantic vector store. Empty means in-memory stores, which last
	// only for the process lifetime.
	DataDir string `yaml:"data_dir"`
}

type WorkingConfig struct {
	Capacity   int `yaml:"capacity"`
	TTLSeconds int `yaml:"ttl_seconds"`
}

// ThresholdsConfig sets the minimum importance for an entry to be
// routed or promoted into each durable stage.
type ThresholdsConfig struct {
	Episodic   float64 `yaml:"episodic"`
	Semantic   float64 `yaml:"semantic"`
	Persistent float64 `yaml:"persistent"`
}

type ConsolidationConfig struct {
	Auto            bool `yaml:"auto"`
	IntervalSeconds int  `yaml:"interval_seconds"`
	BatchSize       int  `yaml:"batch_size"`
}

type DecayConfig struct {
	SweepIntervalSeconds int     `yaml:"sweep_interval_seconds"`
	Floor                float64 `yaml:"floor"`
	MinRetention         float64 `yaml:"min_retention"`
	// RatesPerDay maps stage name to linear decay rate per day.
	RatesPerDay map[string]float64 `yaml:"rates_per_day"`
}

type RetrievalConfig struct {
	// Overfetch multiplies the requested limit for per-stage queries
	// before fusion dedupes and re-ranks.
	Overfetch            int `yaml:"overfetch"`
	BackendTimeoutMillis int `yaml:"backend_timeout_millis"`
	DefaultLimit         int `yaml:"default_limit"`
}

type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // "hash" or "ollama"
	OllamaURL  string `yaml:"ollama_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 38700,
		},
		Working: WorkingConfig{
			Capacity:   1000,
			TTLSeconds: 3600,
		},
		Thresholds: ThresholdsConfig{
			Episodic:   0.3,
			Semantic:   0.6,
			Persistent: 0.8,
		},
		Consolidation: ConsolidationConfig{
			Auto:            true,
			IntervalSeconds: 300,
			BatchSize:       50,
		},
		Decay: DecayConfig{
			SweepIntervalSeconds: 3600,
			Floor:                0.1,
			MinRetention:         0.2,
			RatesPerDay: map[string]float64{
				"working":    0.1,
				"episodic":   0.05,
				"semantic":   0.02,
				"persistent": 0,
			},
		},
		Retrieval: RetrievalConfig{
			Overfetch:            3,
			BackendTimeoutMillis: 2000,
			DefaultLimit:         10,
		},
		Embedding: EmbeddingConfig{
			Provider:   "hash",
			Model:      "nomic-embed-text",
			OllamaURL:  "http://localhost:11434",
			Dimensions: 256,
		},
	}
}

// Load reads a YAML config file over the defaults. A missing file is
// not an error; defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

func (c *Config) WorkingTTL() time.Duration {
	return time.Duration(c.Working.TTLSeconds) * time.Second
}

func (c *Config) ConsolidationInterval() time.Duration {
	return time.Duration(c.Consolidation.IntervalSeconds) * time.Second
}

func (c *Config) DecayInterval() time.Duration {
	return time.Duration(c.Decay.SweepIntervalSeconds) * time.Second
}

func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Retrieval.BackendTimeoutMillis) * time.Millisecond
}

// DecayRate returns the per-day decay rate for a stage name, zero when
// unset.
func (c *Config) DecayRate(stage string) float64 {
	return c.Decay.RatesPerDay[stage]
}
