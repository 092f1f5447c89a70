package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/vellum/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the VELLUM_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (VELLUM_API_LISTEN, VELLUM_VECTOR_STORE_TARGET, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: VELLUM_API_LISTEN, VELLUM_INDEX_COLLECTION, etc.
	v.SetEnvPrefix("VELLUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper decodes the effective configuration out of v.
func FromViper(v *viper.Viper) *Config {
	cfg := NewDefaultConfig()

	cfg.Version = v.GetInt("version")

	cfg.VectorStore.Provider = v.GetString("vector_store.provider")
	cfg.VectorStore.Target = v.GetString("vector_store.target")
	cfg.VectorStore.APIKey = v.GetString("vector_store.api_key")

	cfg.Embedding.Provider = v.GetString("embedding.provider")
	cfg.Embedding.Target = v.GetString("embedding.target")
	cfg.Embedding.Model = v.GetString("embedding.model")
	cfg.Embedding.Dimensions = v.GetUint("embedding.dimensions")
	cfg.Embedding.APIKeyEnv = v.GetString("embedding.api_key_env")
	cfg.Embedding.BatchSize = v.GetInt("embedding.batch_size")

	cfg.Chunking.Strategy = v.GetString("chunking.strategy")
	cfg.Chunking.Size = v.GetInt("chunking.size")
	cfg.Chunking.Overlap = v.GetInt("chunking.overlap")
	cfg.Chunking.Provider = v.GetString("chunking.provider")
	cfg.Chunking.Model = v.GetString("chunking.model")

	cfg.Index.Collection = v.GetString("index.collection")
	cfg.Index.BatchSize = v.GetInt("index.batch_size")

	cfg.Retrieval.TopK = v.GetInt("retrieval.top_k")
	cfg.Retrieval.Oversample = v.GetInt("retrieval.oversample")

	cfg.Authority.Default = v.GetInt("authority.default")
	for st := range cfg.Authority.Tiers {
		cfg.Authority.Tiers[st] = v.GetInt("authority.tiers." + st)
	}
	for st, tier := range v.GetStringMap("authority.tiers") {
		if _, ok := cfg.Authority.Tiers[st]; !ok {
			switch n := tier.(type) {
			case int:
				cfg.Authority.Tiers[st] = n
			case int64:
				cfg.Authority.Tiers[st] = int(n)
			}
		}
	}

	cfg.API.Listen = v.GetString("api.listen")
	cfg.Client.APITarget = v.GetString("client.api_target")

	cfg.Events.Provider = v.GetString("events.provider")
	if brokers := v.GetStringSlice("events.brokers"); len(brokers) > 0 {
		cfg.Events.Brokers = brokers
	}
	cfg.Events.Topic = v.GetString("events.topic")

	return cfg
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Vector store
	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)
	v.SetDefault("vector_store.api_key", d.VectorStore.APIKey)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.api_key_env", d.Embedding.APIKeyEnv)
	v.SetDefault("embedding.batch_size", d.Embedding.BatchSize)

	// Chunking
	v.SetDefault("chunking.strategy", d.Chunking.Strategy)
	v.SetDefault("chunking.size", d.Chunking.Size)
	v.SetDefault("chunking.overlap", d.Chunking.Overlap)
	v.SetDefault("chunking.provider", d.Chunking.Provider)
	v.SetDefault("chunking.model", d.Chunking.Model)

	// Index
	v.SetDefault("index.collection", d.Index.Collection)
	v.SetDefault("index.batch_size", d.Index.BatchSize)

	// Retrieval
	v.SetDefault("retrieval.top_k", d.Retrieval.TopK)
	v.SetDefault("retrieval.oversample", d.Retrieval.Oversample)

	// Authority
	v.SetDefault("authority.default", d.Authority.Default)
	for st, tier := range d.Authority.Tiers {
		v.SetDefault("authority.tiers."+st, tier)
	}

	// API and client
	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("client.api_target", d.Client.APITarget)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
}
