package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is the prefix for environment variables. Double underscores
	// separate nesting levels so key names may themselves contain
	// underscores, e.g. REVERIE_SEARCH__BM25_WEIGHT overrides
	// search.bm25_weight.
	EnvPrefix = "REVERIE_"
	// Delimiter is the key delimiter for nested config.
	Delimiter = "."
)

// Load builds a Config by layering, lowest priority first: defaults, the
// YAML file at configPath (optional, "" skips it), then environment
// variables. The result is validated before being returned.
func Load(configPath string) (*Config, error) {
	k := koanf.New(Delimiter)

	defaults := Default()
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"server":    defaults.Server,
		"database":  defaults.Database,
		"search":    defaults.Search,
		"decay":     defaults.Decay,
		"embedding": defaults.Embedding,
		"rerank":    defaults.Rerank,
		"log":       defaults.Log,
	}, Delimiter), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, Delimiter, func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", Delimiter)
	}), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
