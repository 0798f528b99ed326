package cli

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"hybridrag/config"
	"hybridrag/internal/adapter/analyzer"
	"hybridrag/internal/adapter/cache"
	"hybridrag/internal/adapter/embedding"
	"hybridrag/internal/adapter/memstore"
	"hybridrag/internal/adapter/retriever"
	"hybridrag/internal/adapter/store"
	"hybridrag/internal/adapter/vector"
	"hybridrag/internal/metrics"
	"hybridrag/internal/port"
	"hybridrag/internal/usecase"
)

// OpenStore opens the configured corpus store. For bolt it runs pending schema
// migrations and warns when the stored embeddings were made under different
// embedding settings.
func OpenStore(cfg *config.Config, dir string, logger *zap.Logger) (port.CorpusRepository, error) {
	metric, err := vector.ParseMetric(cfg.Store.Metric)
	if err != nil {
		return nil, err
	}

	switch cfg.Store.Driver {
	case "memory":
		return memstore.NewMemoryStore(metric), nil

	case "qdrant":
		st, err := store.NewQdrantStore(cfg.Store.QdrantURL, cfg.Store.QdrantKey,
			cfg.Store.Collection, metric, cfg.Embedding.Dimension)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
		}
		return st, nil

	default:
		if err := cfg.EnsureDataDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		st, err := store.NewBoltStore(cfg.StorePath(dir), metric)
		if err != nil {
			return nil, fmt.Errorf("failed to open corpus store: %w", err)
		}

		check, err := st.CheckMigration(cfg)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to check migration: %w", err)
		}
		switch {
		case check.NeedsRebuild:
			logger.Warn("corpus needs to be re-imported", zap.String("reason", check.Reason))
		case check.NeedsMigration:
			logger.Info("running schema migration", zap.String("reason", check.Reason))
			if err := st.Migrate(cfg); err != nil {
				st.Close()
				return nil, fmt.Errorf("migration failed: %w", err)
			}
		}
		return st, nil
	}
}

// NewEmbedder builds the query embedder: the provider client, wrapped with
// retries and an LRU cache when configured.
func NewEmbedder(cfg *config.Config, logger *zap.Logger) (port.Embedder, error) {
	var base port.Embedder
	if cfg.Embedding.Provider == "hash" {
		base = embedding.NewHashEmbedder(cfg.Embedding.Dimension)
	} else {
		e, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			Provider:            cfg.Embedding.Provider,
			APIKeyEnv:           cfg.Embedding.APIKeyEnv,
			BaseURL:             cfg.Embedding.BaseURL,
			Model:               cfg.Embedding.Model,
			Dimension:           cfg.Embedding.Dimension,
			QueryInstruction:    cfg.Embedding.QueryInstruction,
			DocumentInstruction: cfg.Embedding.DocumentInstruction,
			Timeout:             time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
			Logger:              logger,
		})
		if err != nil {
			return nil, err
		}
		base = e
	}

	if cfg.Embedding.MaxRetries > 0 {
		backoff := time.Duration(cfg.Embedding.RetryBackoffMs) * time.Millisecond
		base = embedding.NewRetryingEmbedder(base, cfg.Embedding.MaxRetries, backoff, logger)
	}
	if cfg.Embedding.CacheSize > 0 {
		cached, err := embedding.NewCachedEmbedder(base, cfg.Embedding.CacheSize)
		if err != nil {
			return nil, err
		}
		base = cached
	}
	return base, nil
}

// SearchConfigFrom maps the retrieve and index sections onto ranking parameters.
func SearchConfigFrom(cfg *config.Config) usecase.SearchConfig {
	return usecase.SearchConfig{
		TopK: cfg.Retrieve.TopK,
		Fusion: retriever.FusionParams{
			Alpha: cfg.Retrieve.Alpha,
			Boost: cfg.Retrieve.BoostBonus,
		},
		BM25: retriever.BM25Params{
			K1:      cfg.Index.K1,
			B:       cfg.Index.B,
			IDF:     cfg.Index.IDF,
			Epsilon: cfg.Index.Epsilon,
		},
		DenseEpsilon:    cfg.Retrieve.DenseEpsilon,
		DegradeToSparse: cfg.Retrieve.DegradeToSparse,
		Concurrent:      cfg.Retrieve.Concurrent,
	}
}

// NewSearcher assembles the search use case over an open store.
func NewSearcher(cfg *config.Config, st port.CorpusStore, embedder port.Embedder, logger *zap.Logger) (*usecase.SearchUseCase, error) {
	tokenizer, err := analyzer.NewTokenizer(cfg.Index.Tokenizer, cfg.Index.MinTokenLen)
	if err != nil {
		return nil, err
	}
	indexes, err := cache.NewIndexCache(cfg.Index.CacheSize, metrics.IndexCacheTotal)
	if err != nil {
		return nil, err
	}
	return usecase.NewSearchUseCase(st, embedder, tokenizer, indexes, SearchConfigFrom(cfg), logger), nil
}
