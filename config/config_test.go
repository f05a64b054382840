package config

import (
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DataDir != "./data/recall" {
		t.Errorf("expected data_dir './data/recall', got %s", cfg.DataDir)
	}
	if cfg.Engine.VectorDimension != 1024 {
		t.Errorf("expected vector_dimension 1024, got %d", cfg.Engine.VectorDimension)
	}
	if cfg.Engine.HNSW.M != 16 {
		t.Errorf("expected hnsw.m 16, got %d", cfg.Engine.HNSW.M)
	}
	if cfg.Engine.BM25.K1 != 1.2 {
		t.Errorf("expected bm25.k1 1.2, got %v", cfg.Engine.BM25.K1)
	}
	if cfg.Engine.BusyQueueDepth != 1024 {
		t.Errorf("expected busy_queue_depth 1024, got %d", cfg.Engine.BusyQueueDepth)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected server port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected log format 'json', got %s", cfg.Log.Format)
	}
	if !cfg.Metrics.Enabled {
		t.Error("expected metrics.enabled to be true")
	}
	if len(cfg.Watch.Dirs) != 0 {
		t.Errorf("expected watch.dirs to default empty, got %v", cfg.Watch.Dirs)
	}
	if len(cfg.Watch.Extensions) != 1 || cfg.Watch.Extensions[0] != ".md" {
		t.Errorf("expected watch.extensions [.md], got %v", cfg.Watch.Extensions)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     DefaultConfig(),
			wantErr: false,
		},
		{
			name: "missing data dir",
			cfg: func() *Config {
				cfg := DefaultConfig()
				cfg.DataDir = ""
				return cfg
			}(),
			wantErr: true,
		},
		{
			name: "zero vector dimension",
			cfg: func() *Config {
				cfg := DefaultConfig()
				cfg.Engine.VectorDimension = 0
				return cfg
			}(),
			wantErr: true,
		},
		{
			name: "bad log level",
			cfg: func() *Config {
				cfg := DefaultConfig()
				cfg.Log.Level = "verbose"
				return cfg
			}(),
			wantErr: true,
		},
		{
			name: "bad log format",
			cfg: func() *Config {
				cfg := DefaultConfig()
				cfg.Log.Format = "yaml"
				return cfg
			}(),
			wantErr: true,
		},
		{
			name: "port out of range",
			cfg: func() *Config {
				cfg := DefaultConfig()
				cfg.Server.Port = 99999
				return cfg
			}(),
			wantErr: true,
		},
		{
			name: "negative bm25 b",
			cfg: func() *Config {
				cfg := DefaultConfig()
				cfg.Engine.BM25.B = -0.1
				return cfg
			}(),
			wantErr: true,
		},
		{
			name: "zero busy queue depth",
			cfg: func() *Config {
				cfg := DefaultConfig()
				cfg.Engine.BusyQueueDepth = 0
				return cfg
			}(),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_EngineWeights(t *testing.T) {
	cfg := DefaultConfig()
	w := cfg.EngineWeights()
	if w.Semantic != 0.60 || w.Keyword != 0.15 || w.Recency != 0.15 || w.Importance != 0.10 {
		t.Errorf("unexpected weights: %+v", w)
	}
}

func TestConfig_String(t *testing.T) {
	cfg := DefaultConfig()
	s := cfg.String()
	if s == "" {
		t.Error("expected non-empty string representation")
	}
}
