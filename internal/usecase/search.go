package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hybridrag/internal/adapter/cache"
	"hybridrag/internal/adapter/retriever"
	"hybridrag/internal/domain"
	"hybridrag/internal/metrics"
	"hybridrag/internal/port"
)

// SearchConfig holds ranking parameters for SearchUseCase.
type SearchConfig struct {
	TopK            int
	Fusion          retriever.FusionParams
	BM25            retriever.BM25Params
	DenseEpsilon    float64
	DegradeToSparse bool
	Concurrent      bool
}

// DefaultSearchConfig returns top-7, alpha 0.6, boost 0.1 and Okapi BM25.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		TopK:         7,
		Fusion:       retriever.DefaultFusionParams(),
		BM25:         retriever.DefaultBM25Params(),
		DenseEpsilon: retriever.DefaultDenseEpsilon,
		Concurrent:   true,
	}
}

// SearchUseCase ranks the current corpus snapshot against a query by fusing
// BM25 and embedding distance scores.
type SearchUseCase struct {
	store     port.CorpusStore
	embedder  port.Embedder
	tokenizer port.Tokenizer
	indexes   *cache.IndexCache // nil builds the index on every search
	cfg       SearchConfig
	logger    *zap.Logger
}

// NewSearchUseCase creates a new search use case.
func NewSearchUseCase(
	store port.CorpusStore,
	embedder port.Embedder,
	tokenizer port.Tokenizer,
	indexes *cache.IndexCache,
	cfg SearchConfig,
	logger *zap.Logger,
) *SearchUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchUseCase{
		store:     store,
		embedder:  embedder,
		tokenizer: tokenizer,
		indexes:   indexes,
		cfg:       cfg,
		logger:    logger,
	}
}

// WithAlpha returns a copy that weighs the sparse score by alpha. The index cache is shared.
func (u *SearchUseCase) WithAlpha(alpha float64) *SearchUseCase {
	c := *u
	c.cfg.Fusion.Alpha = alpha
	return &c
}

// Search ranks every document of the current snapshot and returns the top k.
// k <= 0 uses the configured TopK; k larger than the corpus returns all documents.
//
// An empty corpus is a successful OutcomeEmptyCorpus result. A missing dense
// signal fails with domain.ErrEmbeddingUnavailable unless DegradeToSparse is set.
// A canceled or expired ctx fails the search with the context error in either mode.
func (u *SearchUseCase) Search(ctx context.Context, query string, k int) (domain.Result, error) {
	start := time.Now()
	if k <= 0 {
		k = u.cfg.TopK
	}

	snap, err := u.store.Snapshot(ctx)
	if err != nil {
		u.record("error", start)
		return domain.Result{}, fmt.Errorf("load corpus snapshot: %w", err)
	}
	if err := snap.Validate(); err != nil {
		u.record("error", start)
		return domain.Result{}, fmt.Errorf("corpus snapshot %s: %w", snap.ID, err)
	}

	log := u.logger.With(
		zap.String("snapshot_id", snap.ID),
		zap.Int("corpus_size", snap.Len()),
		zap.Int("k", k))

	if snap.Len() == 0 {
		u.record(string(domain.OutcomeEmptyCorpus), start)
		log.Info("empty corpus, nothing to rank")
		return domain.Result{Outcome: domain.OutcomeEmptyCorpus, SnapshotID: snap.ID}, nil
	}

	var (
		sparse   map[string]float64
		dense    map[string]float64
		denseErr error
	)
	sparseFn := func() error {
		var err error
		sparse, err = u.sparseScores(snap, query)
		return err
	}
	denseFn := func(ctx context.Context) error {
		dense, denseErr = u.denseScores(ctx, snap, query)
		return nil
	}

	if u.cfg.Concurrent {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(sparseFn)
		g.Go(func() error { return denseFn(gctx) })
		err = g.Wait()
	} else {
		if err = sparseFn(); err == nil {
			err = denseFn(ctx)
		}
	}
	if err != nil {
		u.record("error", start)
		return domain.Result{}, err
	}

	outcome := domain.OutcomeRanked
	params := u.cfg.Fusion
	if denseErr != nil {
		switch {
		case isContextErr(denseErr):
			log.Info("search canceled", zap.Error(denseErr))
			u.record("canceled", start)
			return domain.Result{}, denseErr
		case errors.Is(denseErr, domain.ErrEmbeddingUnavailable) && u.cfg.DegradeToSparse:
			log.Warn("dense signal unavailable, ranking on sparse scores only", zap.Error(denseErr))
			params.SparseOnly = true
			outcome = domain.OutcomeSparseOnly
		case errors.Is(denseErr, domain.ErrEmbeddingUnavailable):
			log.Warn("dense signal unavailable", zap.Error(denseErr))
			u.record("embedding_unavailable", start)
			return domain.Result{}, denseErr
		default:
			log.Error("dense scoring failed", zap.Error(denseErr))
			u.record("error", start)
			return domain.Result{}, denseErr
		}
	}

	ranked, err := retriever.Fuse(query, snap.Documents, sparse, dense, params, k)
	if err != nil {
		log.Error("score fusion failed", zap.Error(err))
		u.record("error", start)
		return domain.Result{}, err
	}

	u.record(string(outcome), start)
	if !anyRelevant(ranked) {
		log.Info("no relevant documents", zap.Float64("top_score", ranked[0].Score))
	}
	log.Info("search completed",
		zap.String("outcome", string(outcome)),
		zap.Int("results", len(ranked)),
		zap.Duration("duration", time.Since(start)))

	return domain.Result{Outcome: outcome, SnapshotID: snap.ID, Documents: ranked}, nil
}

// sparseScores returns raw BM25 scores keyed by document id.
func (u *SearchUseCase) sparseScores(snap domain.Snapshot, query string) (map[string]float64, error) {
	build := func() (*retriever.BM25Index, error) {
		tokenized := make([][]string, len(snap.Documents))
		for i, doc := range snap.Documents {
			tokenized[i] = u.tokenizer.Tokenize(doc.Text)
		}
		return retriever.BuildBM25(tokenized, u.cfg.BM25)
	}

	var idx *retriever.BM25Index
	var err error
	if u.indexes != nil {
		var hit bool
		idx, hit, err = u.indexes.GetOrBuild(snap.ID, build)
		u.logger.Debug("sparse index",
			zap.String("snapshot_id", snap.ID),
			zap.Bool("cache_hit", hit),
			zap.Int("cached_indexes", u.indexes.Size()))
	} else {
		idx, err = build()
	}
	if err != nil {
		return nil, fmt.Errorf("build sparse index: %w", err)
	}

	return retriever.KeyByID(snap.Documents, idx.Score(u.tokenizer.Tokenize(query)))
}

// denseScores embeds the query and scores the whole snapshot by distance.
// Embedding and similarity query failures wrap domain.ErrEmbeddingUnavailable
// unless ctx itself is done, in which case the context error is returned.
func (u *SearchUseCase) denseScores(ctx context.Context, snap domain.Snapshot, query string) (map[string]float64, error) {
	vec, err := u.embedder.Embed(ctx, query, domain.EmbedQuery)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("embed query: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: embed query with %s: %w", domain.ErrEmbeddingUnavailable, u.embedder.ModelName(), err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding from %s", domain.ErrEmbeddingUnavailable, u.embedder.ModelName())
	}

	neighbors, err := u.store.SimilarityQuery(ctx, vec, snap.Len())
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("similarity query: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: similarity query: %w", domain.ErrEmbeddingUnavailable, err)
	}

	return retriever.DenseScores(neighbors, u.cfg.DenseEpsilon)
}

func (u *SearchUseCase) record(outcome string, start time.Time) {
	metrics.SearchTotal.WithLabelValues(outcome).Inc()
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
}

// isContextErr reports whether err comes from a canceled or expired context.
func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// anyRelevant reports whether any document matched a query term or the boost token.
func anyRelevant(ranked []domain.ScoredDocument) bool {
	for _, d := range ranked {
		if d.Sparse > 0 || d.Boosted {
			return true
		}
	}
	return false
}
