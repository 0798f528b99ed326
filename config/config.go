package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"hybridrag/internal/domain"
)

// Config holds all configuration for the hybrid search service.
type Config struct {
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
	Import    ImportConfig    `yaml:"import"`
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// RetrieveConfig holds ranking configuration.
type RetrieveConfig struct {
	TopK            int     `yaml:"top_k"`
	Alpha           float64 `yaml:"alpha"`       // weight of the sparse score, dense gets 1-alpha
	BoostBonus      float64 `yaml:"boost_bonus"` // added when the first query word appears in the text
	DenseEpsilon    float64 `yaml:"dense_epsilon"`
	DegradeToSparse bool    `yaml:"degrade_to_sparse"`
	Concurrent      bool    `yaml:"concurrent"`
}

// IndexConfig holds tokenizer and BM25 configuration.
type IndexConfig struct {
	Tokenizer   string  `yaml:"tokenizer"` // "whitespace", "words"
	MinTokenLen int     `yaml:"min_token_len"`
	K1          float64 `yaml:"k1"`
	B           float64 `yaml:"b"`
	IDF         string  `yaml:"idf"` // "okapi", "lucene"
	Epsilon     float64 `yaml:"epsilon"`
	CacheSize   int     `yaml:"cache_size"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider            string `yaml:"provider"` // "gemini", "openai", "ollama", "hash"
	Model               string `yaml:"model"`
	APIKeyEnv           string `yaml:"api_key_env"` // Environment variable for API key
	BaseURL             string `yaml:"base_url"`    // provider preset if empty
	Dimension           int    `yaml:"dimension"`
	QueryInstruction    string `yaml:"query_instruction"`
	DocumentInstruction string `yaml:"document_instruction"`
	MaxRetries          int    `yaml:"max_retries"`
	RetryBackoffMs      int    `yaml:"retry_backoff_ms"`
	TimeoutSec          int    `yaml:"timeout_sec"`
	CacheSize           int    `yaml:"cache_size"`
}

// StoreConfig holds corpus store configuration.
type StoreConfig struct {
	Driver     string `yaml:"driver"` // "bolt", "memory", "qdrant"
	Path       string `yaml:"path"`
	Metric     string `yaml:"metric"` // "cosine", "l2"
	QdrantURL  string `yaml:"qdrant_url"`
	QdrantKey  string `yaml:"qdrant_api_key"`
	Collection string `yaml:"collection"`
}

// ImportConfig holds corpus file import configuration.
type ImportConfig struct {
	Includes     []string `yaml:"includes"`
	Excludes     []string `yaml:"excludes"`
	EmbedMissing bool     `yaml:"embed_missing"` // embed records without an embedding in document mode
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Addr               string `yaml:"addr"`
	ReadTimeoutSec     int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec    int    `yaml:"write_timeout_sec"`
	ShutdownTimeoutSec int    `yaml:"shutdown_timeout_sec"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console", "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Retrieve: RetrieveConfig{
			TopK:         7,
			Alpha:        0.6,
			BoostBonus:   0.1,
			DenseEpsilon: 1e-4,
			Concurrent:   true,
		},
		Index: IndexConfig{
			Tokenizer:   "whitespace",
			MinTokenLen: 1,
			K1:          1.5,
			B:           0.75,
			IDF:         "okapi",
			Epsilon:     0.25,
			CacheSize:   8,
		},
		Embedding: EmbeddingConfig{
			Provider:       "gemini",
			Model:          "text-embedding-004",
			APIKeyEnv:      "GEMINI_API_KEY",
			Dimension:      768,
			MaxRetries:     2,
			RetryBackoffMs: 200,
			TimeoutSec:     30,
			CacheSize:      256,
		},
		Store: StoreConfig{
			Driver:     "bolt",
			Path:       filepath.Join(".hybridrag", "corpus.db"),
			Metric:     "cosine",
			QdrantURL:  "http://localhost:6333",
			Collection: "txt_collection",
		},
		Import: ImportConfig{
			Includes: []string{"**/*.jsonl"},
			Excludes: []string{"**/.git/**", "**/node_modules/**", "**/.hybridrag/**"},
		},
		HTTP: HTTPConfig{
			Addr:               ":8000",
			ReadTimeoutSec:     10,
			WriteTimeoutSec:    30,
			ShutdownTimeoutSec: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. ${VAR} and ${VAR:-default} are
// expanded from the environment before parsing.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	data = expandEnvVars(data)

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for hybridrag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "hybridrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".hybridrag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyDefaults fills zero values left by a partial config file.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()

	if c.Retrieve.TopK <= 0 {
		c.Retrieve.TopK = def.Retrieve.TopK
	}
	if c.Retrieve.DenseEpsilon <= 0 {
		c.Retrieve.DenseEpsilon = def.Retrieve.DenseEpsilon
	}
	if c.Index.Tokenizer == "" {
		c.Index.Tokenizer = def.Index.Tokenizer
	}
	if c.Index.MinTokenLen <= 0 {
		c.Index.MinTokenLen = def.Index.MinTokenLen
	}
	if c.Index.IDF == "" {
		c.Index.IDF = def.Index.IDF
	}
	if c.Index.CacheSize <= 0 {
		c.Index.CacheSize = def.Index.CacheSize
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = def.Embedding.Provider
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = def.Embedding.TimeoutSec
	}
	if c.Embedding.CacheSize < 0 {
		c.Embedding.CacheSize = 0
	}
	if c.Embedding.MaxRetries < 0 {
		c.Embedding.MaxRetries = 0
	}
	if c.Store.Driver == "" {
		c.Store.Driver = def.Store.Driver
	}
	if c.Store.Path == "" {
		c.Store.Path = def.Store.Path
	}
	if c.Store.Metric == "" {
		c.Store.Metric = def.Store.Metric
	}
	if c.Store.Collection == "" {
		c.Store.Collection = def.Store.Collection
	}
	if len(c.Import.Includes) == 0 {
		c.Import.Includes = def.Import.Includes
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = def.HTTP.Addr
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = def.HTTP.ReadTimeoutSec
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = def.HTTP.WriteTimeoutSec
	}
	if c.HTTP.ShutdownTimeoutSec <= 0 {
		c.HTTP.ShutdownTimeoutSec = def.HTTP.ShutdownTimeoutSec
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
}

// Validate checks the configuration for correctness. Errors wrap domain.ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.Retrieve.Alpha < 0 || c.Retrieve.Alpha > 1 {
		return invalid("retrieve.alpha must be between 0 and 1, got %v", c.Retrieve.Alpha)
	}
	if c.Retrieve.BoostBonus < 0 {
		return invalid("retrieve.boost_bonus must not be negative, got %v", c.Retrieve.BoostBonus)
	}
	if c.Index.K1 < 0 {
		return invalid("index.k1 must not be negative, got %v", c.Index.K1)
	}
	if c.Index.B < 0 || c.Index.B > 1 {
		return invalid("index.b must be between 0 and 1, got %v", c.Index.B)
	}
	switch c.Index.Tokenizer {
	case "whitespace", "words":
	default:
		return invalid("index.tokenizer must be \"whitespace\" or \"words\", got %q", c.Index.Tokenizer)
	}
	switch c.Index.IDF {
	case "okapi", "lucene":
	default:
		return invalid("index.idf must be \"okapi\" or \"lucene\", got %q", c.Index.IDF)
	}
	switch c.Embedding.Provider {
	case "gemini", "openai", "ollama", "hash":
	default:
		return invalid("embedding.provider %q is not supported", c.Embedding.Provider)
	}
	if c.Embedding.Provider == "hash" && c.Embedding.Dimension <= 0 {
		return invalid("embedding.dimension is required for the hash provider")
	}
	switch c.Store.Driver {
	case "bolt", "memory", "qdrant":
	default:
		return invalid("store.driver %q is not supported", c.Store.Driver)
	}
	switch c.Store.Metric {
	case "cosine", "l2":
	default:
		return invalid("store.metric must be \"cosine\" or \"l2\", got %q", c.Store.Metric)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return invalid("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// StorePath resolves the store path against the project directory.
func (c *Config) StorePath(dir string) string {
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(dir, c.Store.Path)
}

// EnsureDataDir ensures the directory holding the store file exists.
func (c *Config) EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Dir(c.StorePath(dir)), 0755)
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		name, fallback, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(name)
		if val == "" && hasDefault {
			val = fallback
		}
		return []byte(val)
	})
}
