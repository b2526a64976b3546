// Package config loads and validates reverie configuration from defaults,
// an optional YAML file, and REVERIE_-prefixed environment variables.
package config

import "fmt"

// Config holds all reverie configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Search    SearchConfig    `koanf:"search"`
	Decay     DecayConfig     `koanf:"decay"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Rerank    RerankConfig    `koanf:"rerank"`
	Log       LogConfig       `koanf:"log"`
}

type ServerConfig struct {
	Bind string `koanf:"bind" validate:"required"`
	Port int    `koanf:"port" validate:"gte=1,lte=65535"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"` // empty = resolved at runtime via store.DefaultDBPath()
}

// SearchConfig holds the hybrid search parameters.
type SearchConfig struct {
	K1                     float64 `koanf:"k1" validate:"gt=0"`
	B                      float64 `koanf:"b" validate:"gte=0,lte=1"`
	BM25Weight             float64 `koanf:"bm25_weight" validate:"gte=0,lte=1"`
	SemanticWeight         float64 `koanf:"semantic_weight" validate:"gte=0,lte=1"`
	RRFK                   float64 `koanf:"rrf_k" validate:"gt=0"`
	CandidateWindow        int     `koanf:"candidate_window" validate:"gte=0"`
	ProviderTimeoutSeconds int     `koanf:"provider_timeout_seconds" validate:"gte=1"`
}

// DecayConfig holds the temporal retention parameters.
type DecayConfig struct {
	WorkerIntervalHours int                `koanf:"worker_interval_hours" validate:"gte=1"`
	BaseStrength        float64            `koanf:"base_strength" validate:"gt=0"`
	PerTypeStrength     map[string]float64 `koanf:"per_type_strength" validate:"dive,gt=0"`
	PruneThreshold      float64            `koanf:"prune_threshold" validate:"gte=0,lte=1"`
	AutoPrune           bool               `koanf:"auto_prune"`
}

type EmbeddingConfig struct {
	OllamaURL  string `koanf:"ollama_url"`
	Model      string `koanf:"model"`
	Dimensions int    `koanf:"dimensions" validate:"gte=0"`
}

type RerankConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`   // empty = heuristic reranker only
	Model   string `koanf:"model"` // cross-encoder model name
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=trace debug info warn error"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 38800,
		},
		Database: DatabaseConfig{
			Path: "",
		},
		Search: SearchConfig{
			K1:                     1.5,
			B:                      0.75,
			BM25Weight:             0.5,
			SemanticWeight:         0.5,
			RRFK:                   60,
			CandidateWindow:        0, // derived from top_k per query
			ProviderTimeoutSeconds: 5,
		},
		Decay: DecayConfig{
			WorkerIntervalHours: 24,
			BaseStrength:        0.05,
			PerTypeStrength: map[string]float64{
				"episodic":   0.08,
				"semantic":   0.03,
				"procedural": 0.02,
			},
			PruneThreshold: 0.05,
			AutoPrune:      false,
		},
		Embedding: EmbeddingConfig{
			OllamaURL:  "http://localhost:11434",
			Model:      "nomic-embed-text",
			Dimensions: 768,
		},
		Rerank: RerankConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
