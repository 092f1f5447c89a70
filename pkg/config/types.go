package config

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/papercomputeco/vellum/pkg/authority"
	"github.com/papercomputeco/vellum/pkg/document"
)

// Config represents the persistent vellum configuration stored as config.toml
// in the .vellum/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Chunking    ChunkingConfig    `toml:"chunking"`
	Index       IndexConfig       `toml:"index"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
	Authority   AuthorityConfig   `toml:"authority"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	Events      EventsConfig      `toml:"events"`
}

// VectorStoreConfig selects the vector backend. Target is a URL, a DSN or a
// file path depending on the provider; an empty sqlite target resolves to
// vectors.db inside the .vellum/ directory.
type VectorStoreConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	APIKey   string `toml:"api_key,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
	APIKeyEnv  string `toml:"api_key_env,omitempty"`
	BatchSize  int    `toml:"batch_size,omitempty"`
}

// ChunkingConfig holds chunker settings. Strategy is "sliding" or "semantic";
// the semantic strategy calls the completion Provider/Model.
type ChunkingConfig struct {
	Strategy string `toml:"strategy,omitempty"`
	Size     int    `toml:"size,omitempty"`
	Overlap  int    `toml:"overlap,omitempty"`
	Provider string `toml:"provider,omitempty"`
	Model    string `toml:"model,omitempty"`
}

// IndexConfig holds collection settings.
type IndexConfig struct {
	Collection string `toml:"collection,omitempty"`
	BatchSize  int    `toml:"batch_size,omitempty"`
}

// RetrievalConfig holds search settings.
type RetrievalConfig struct {
	TopK       int `toml:"top_k,omitempty"`
	Oversample int `toml:"oversample,omitempty"`
}

// AuthorityConfig overrides the source type taxonomy.
type AuthorityConfig struct {
	Default int            `toml:"default,omitempty"`
	Tiers   map[string]int `toml:"tiers,omitempty"`
}

// Policy converts the section into an authority policy, layering configured
// tiers over the stock taxonomy.
func (a AuthorityConfig) Policy() authority.Policy {
	p := authority.DefaultPolicy()
	maps.Copy(p.Tiers, a.Tiers)
	if a.Default != 0 {
		p.Default = a.Default
	}
	return p
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to the running
// API server (e.g. vellum search). Values are full URLs.
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// EventsConfig selects where ingestion events are published.
type EventsConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.Itoa(*field(c))
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = n
			return nil
		},
	}
}

func tierKey(st string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			return strconv.Itoa(c.Authority.Policy().For(document.SourceType(st)))
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for authority.tiers.%s: %w", st, err)
			}
			if c.Authority.Tiers == nil {
				c.Authority.Tiers = map[string]int{}
			}
			c.Authority.Tiers[st] = n
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"vector_store.provider": stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":   stringKey(func(c *Config) *string { return &c.VectorStore.Target }),
	"vector_store.api_key":  stringKey(func(c *Config) *string { return &c.VectorStore.APIKey }),

	"embedding.provider":    stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":      stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":       stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.api_key_env": stringKey(func(c *Config) *string { return &c.Embedding.APIKeyEnv }),
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"embedding.batch_size": intKey("embedding.batch_size", func(c *Config) *int { return &c.Embedding.BatchSize }),

	"chunking.strategy": stringKey(func(c *Config) *string { return &c.Chunking.Strategy }),
	"chunking.size":     intKey("chunking.size", func(c *Config) *int { return &c.Chunking.Size }),
	"chunking.overlap":  intKey("chunking.overlap", func(c *Config) *int { return &c.Chunking.Overlap }),
	"chunking.provider": stringKey(func(c *Config) *string { return &c.Chunking.Provider }),
	"chunking.model":    stringKey(func(c *Config) *string { return &c.Chunking.Model }),

	"index.collection": stringKey(func(c *Config) *string { return &c.Index.Collection }),
	"index.batch_size": intKey("index.batch_size", func(c *Config) *int { return &c.Index.BatchSize }),

	"retrieval.top_k":      intKey("retrieval.top_k", func(c *Config) *int { return &c.Retrieval.TopK }),
	"retrieval.oversample": intKey("retrieval.oversample", func(c *Config) *int { return &c.Retrieval.Oversample }),

	"authority.default":       intKey("authority.default", func(c *Config) *int { return &c.Authority.Default }),
	"authority.tiers.github":  tierKey(string(document.SourceTypeGitHub)),
	"authority.tiers.pdf":     tierKey(string(document.SourceTypePDF)),
	"authority.tiers.web":     tierKey(string(document.SourceTypeWeb)),
	"authority.tiers.youtube": tierKey(string(document.SourceTypeYouTube)),
	"authority.tiers.test":    tierKey(string(document.SourceTypeTest)),
	"authority.tiers.other":   tierKey(string(document.SourceTypeOther)),

	"api.listen":        stringKey(func(c *Config) *string { return &c.API.Listen }),
	"client.api_target": stringKey(func(c *Config) *string { return &c.Client.APITarget }),

	"events.provider": stringKey(func(c *Config) *string { return &c.Events.Provider }),
	"events.topic":    stringKey(func(c *Config) *string { return &c.Events.Topic }),
	"events.brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.Brokers, ",") },
		set: func(c *Config, v string) error {
			var brokers []string
			for b := range strings.SplitSeq(v, ",") {
				if b = strings.TrimSpace(b); b != "" {
					brokers = append(brokers, b)
				}
			}
			c.Events.Brokers = brokers
			return nil
		},
	},
}

// orderedKeys lists configKeys in TOML section order.
var orderedKeys = []string{
	"vector_store.provider",
	"vector_store.target",
	"vector_store.api_key",
	"embedding.provider",
	"embedding.target",
	"embedding.model",
	"embedding.dimensions",
	"embedding.api_key_env",
	"embedding.batch_size",
	"chunking.strategy",
	"chunking.size",
	"chunking.overlap",
	"chunking.provider",
	"chunking.model",
	"index.collection",
	"index.batch_size",
	"retrieval.top_k",
	"retrieval.oversample",
	"authority.default",
	"authority.tiers.github",
	"authority.tiers.pdf",
	"authority.tiers.web",
	"authority.tiers.youtube",
	"authority.tiers.test",
	"authority.tiers.other",
	"api.listen",
	"client.api_target",
	"events.provider",
	"events.brokers",
	"events.topic",
}

func sortedKeys() []string {
	return slices.Sorted(maps.Keys(configKeys))
}
