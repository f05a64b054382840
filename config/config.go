// Package config provides configuration management for the Recall
// memory engine: defaults, layered loading, validation, and optional
// hot-reload of the on-disk config file.
package config

import (
	"fmt"
	"time"

	"github.com/haneul-ai/recall/internal/model"
)

// Config is the root configuration for a recalld process.
type Config struct {
	// DataDir is the root directory for the Record Store, Vector Index,
	// and Lexical Index snapshots.
	DataDir string `mapstructure:"data_dir" validate:"required"`

	// Engine configures the Engine Facade and the algorithms it owns.
	Engine EngineConfig `mapstructure:"engine" validate:"required"`

	// Server is the REST transport configuration.
	Server ServerConfig `mapstructure:"server" validate:"required"`

	// Log is the logging configuration.
	Log LogConfig `mapstructure:"log" validate:"required"`

	// Metrics is the observability configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Watch configures the filesystem observer. An empty Dirs list
	// disables it.
	Watch WatchConfig `mapstructure:"watch"`
}

// EngineConfig holds settings for the Engine Facade: index parameters,
// fusion weights, and the janitor's reconciliation schedule.
type EngineConfig struct {
	// VectorDimension is the dimensionality every embedding must have.
	VectorDimension int `mapstructure:"vector_dimension" validate:"required,min=1"`

	// Weights are the hybrid fusion coefficients.
	Weights WeightsConfig `mapstructure:"weights"`

	// HalfLifeDays controls how fast the recency score decays.
	HalfLifeDays float64 `mapstructure:"half_life_days" validate:"min=0"`

	// HNSW configures the Vector Index's graph parameters.
	HNSW HNSWConfig `mapstructure:"hnsw"`

	// BM25 configures the Lexical Index's ranking parameters.
	BM25 BM25Config `mapstructure:"bm25"`

	// JanitorInterval is how often the reconciliation sweep runs.
	JanitorInterval time.Duration `mapstructure:"janitor_interval" validate:"min=0"`

	// TombstoneTTL is how long a delete marker is kept to guard racing
	// in-flight searches before the janitor forgets it.
	TombstoneTTL time.Duration `mapstructure:"tombstone_ttl" validate:"min=0"`

	// BusyQueueDepth bounds the number of in-flight Store calls before
	// the facade starts returning Busy.
	BusyQueueDepth int `mapstructure:"busy_queue_depth" validate:"required,min=1"`
}

// WeightsConfig holds the hybrid fusion coefficients. They need not sum
// to 1; Validate only rejects negative weights.
type WeightsConfig struct {
	Semantic   float64 `mapstructure:"semantic" validate:"min=0"`
	Keyword    float64 `mapstructure:"keyword" validate:"min=0"`
	Recency    float64 `mapstructure:"recency" validate:"min=0"`
	Importance float64 `mapstructure:"importance" validate:"min=0"`
}

// toModel converts a WeightsConfig to the model.Weights the hybrid
// Searcher actually consumes.
func (w WeightsConfig) toModel() model.Weights {
	return model.Weights{
		Semantic:   w.Semantic,
		Keyword:    w.Keyword,
		Recency:    w.Recency,
		Importance: w.Importance,
	}
}

// HNSWConfig holds the Vector Index's graph construction parameters.
type HNSWConfig struct {
	M              int `mapstructure:"m" validate:"min=1"`
	EfConstruction int `mapstructure:"ef_construction" validate:"min=1"`
	EfSearch       int `mapstructure:"ef_search" validate:"min=1"`
}

// BM25Config holds the Lexical Index's ranking parameters.
type BM25Config struct {
	K1 float64 `mapstructure:"k1" validate:"min=0"`
	B  float64 `mapstructure:"b" validate:"min=0,max=1"`
}

// ServerConfig holds the REST transport's bind settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `mapstructure:"host"`

	// Port is the REST API port.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`

	// RateLimit is the sustained requests-per-second admission rate.
	RateLimit float64 `mapstructure:"rate_limit" validate:"min=0"`

	// Burst is the maximum request burst above RateLimit.
	Burst int `mapstructure:"burst" validate:"min=0"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`

	// Format is the output format (json, text).
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// MetricsConfig holds observability settings.
type MetricsConfig struct {
	// Enabled enables the Prometheus metrics endpoint.
	Enabled bool `mapstructure:"enabled"`

	// Port is the metrics server port.
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
}

// WatchConfig holds the filesystem observer's settings.
type WatchConfig struct {
	// Dirs are the directories to watch for markdown files. Empty
	// disables the observer entirely.
	Dirs []string `mapstructure:"dirs"`

	// Extensions are the file extensions that trigger ingestion.
	Extensions []string `mapstructure:"extensions"`

	// Debounce is the per-file quiet period before a changed file is
	// ingested.
	Debounce time.Duration `mapstructure:"debounce" validate:"min=0"`
}

// EngineWeights returns the Engine's fusion weights as model.Weights,
// ready to hand to an engine.Config.
func (c *Config) EngineWeights() model.Weights {
	return c.Engine.Weights.toModel()
}

// Validate performs struct-tag validation on the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// String returns a string representation of the configuration.
func (c *Config) String() string {
	return fmt.Sprintf("Config{DataDir: %s, Server: :%d, VectorDimension: %d}",
		c.DataDir, c.Server.Port, c.Engine.VectorDimension)
}
