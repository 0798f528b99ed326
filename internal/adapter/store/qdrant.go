package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"hybridrag/internal/adapter/vector"
	"hybridrag/internal/domain"
	"hybridrag/internal/logger"
)

const (
	payloadDocID    = "doc_id"
	payloadText     = "text"
	payloadPosition = "position"

	qdrantPageSize = 256
)

// QdrantStore serves the corpus from a Qdrant collection. The configured
// collection name is used as an alias; Publish fills a fresh backing
// collection and repoints the alias in one alias update.
type QdrantStore struct {
	client    *qdrant.Client
	alias     string
	metric    vector.Metric
	dimension int
}

// NewQdrantStore connects to Qdrant. urlStr is the HTTP address
// (e.g. "http://localhost:6333"); the gRPC port is the HTTP port + 1.
func NewQdrantStore(urlStr, apiKey, collection string, metric vector.Metric, dimension int) (*QdrantStore, error) {
	host, port, useTLS, err := parseQdrantURL(urlStr)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantStore{
		client:    client,
		alias:     collection,
		metric:    metric,
		dimension: dimension,
	}, nil
}

func parseQdrantURL(urlStr string) (string, int, bool, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", 0, false, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}

	port := 6334
	if parsed.Port() != "" {
		if httpPort, err := strconv.Atoi(parsed.Port()); err == nil {
			port = httpPort + 1
		}
	}
	return host, port, parsed.Scheme == "https", nil
}

// pointID maps a document id to a stable Qdrant point id.
func pointID(docID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(docID)).String()
}

func (s *QdrantStore) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	exists, err := s.client.CollectionExists(ctx, s.alias)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		return domain.Snapshot{ID: contentID(nil)}, nil
	}

	var points []*qdrant.RetrievedPoint
	var offset *qdrant.PointId
	limit := uint32(qdrantPageSize)
	for {
		page, next, err := s.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: s.alias,
			Offset:         offset,
			Limit:          &limit,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("failed to scroll points: %w", err)
		}
		points = append(points, page...)
		if next == nil {
			break
		}
		offset = next
	}

	docs, err := documentsFromPoints(points)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return domain.Snapshot{ID: contentID(docs), Documents: docs}, nil
}

// documentsFromPoints decodes scrolled points and restores publish order.
func documentsFromPoints(points []*qdrant.RetrievedPoint) ([]domain.Document, error) {
	type positioned struct {
		pos int64
		doc domain.Document
	}

	items := make([]positioned, 0, len(points))
	for _, p := range points {
		docID := p.GetPayload()[payloadDocID].GetStringValue()
		if docID == "" {
			return nil, fmt.Errorf("point %s has no %s payload", p.GetId().GetUuid(), payloadDocID)
		}

		vec := p.GetVectors().GetVector()
		emb := vec.GetDense().GetData()
		if emb == nil {
			emb = vec.GetData()
		}

		items = append(items, positioned{
			pos: p.GetPayload()[payloadPosition].GetIntegerValue(),
			doc: domain.Document{
				ID:        docID,
				Text:      p.GetPayload()[payloadText].GetStringValue(),
				Embedding: emb,
			},
		})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].pos < items[j].pos })

	docs := make([]domain.Document, len(items))
	for i, it := range items {
		docs[i] = it.doc
	}
	return docs, nil
}

// contentID hashes ordered ids and texts so any content change yields a new id.
func contentID(docs []domain.Document) string {
	h := sha256.New()
	for _, d := range docs {
		h.Write([]byte(d.ID))
		h.Write([]byte{0})
		h.Write([]byte(d.Text))
		h.Write([]byte{0})
	}
	return "qd-" + hex.EncodeToString(h.Sum(nil)[:12])
}

func (s *QdrantStore) SimilarityQuery(ctx context.Context, query []float32, n int) ([]domain.Neighbor, error) {
	if n <= 0 {
		return nil, nil
	}

	scored, err := s.client.Query(ctx, similarityRequest(s.alias, query, n))
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}

	neighbors := make([]domain.Neighbor, 0, len(scored))
	for _, p := range scored {
		neighbors = append(neighbors, domain.Neighbor{
			ID:       p.GetPayload()[payloadDocID].GetStringValue(),
			Distance: scoreToDistance(s.metric, p.GetScore()),
		})
	}
	return neighbors, nil
}

// similarityRequest scores every point exactly. The HNSW index may return
// fewer than n points, which would leave documents without a dense score.
func similarityRequest(collection string, query []float32, n int) *qdrant.QueryPoints {
	limit := uint64(n)
	return &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		Params:         &qdrant.SearchParams{Exact: qdrant.PtrOf(true)},
		WithPayload:    qdrant.NewWithPayload(true),
	}
}

// scoreToDistance converts a Qdrant score: cosine scores are similarities,
// euclid scores are already distances.
func scoreToDistance(m vector.Metric, score float32) float64 {
	if m == vector.L2 {
		return float64(score)
	}
	return 1 - float64(score)
}

func qdrantDistance(m vector.Metric) qdrant.Distance {
	if m == vector.L2 {
		return qdrant.Distance_Euclid
	}
	return qdrant.Distance_Cosine
}

// Publish writes docs to a new backing collection, then swaps the alias.
func (s *QdrantStore) Publish(ctx context.Context, docs []domain.Document) (string, error) {
	log := logger.FromContext(ctx)

	if err := domain.ValidateDocuments(docs); err != nil {
		return "", err
	}

	dim := domain.Snapshot{Documents: docs}.Dimension()
	if dim == 0 {
		dim = s.dimension
	}
	if dim <= 0 {
		dim = 1
	}

	backing := fmt.Sprintf("%s_%d", s.alias, time.Now().UnixNano())
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: backing,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrantDistance(s.metric),
		}),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create collection: %w", err)
	}

	wait := true
	for start := 0; start < len(docs); start += qdrantPageSize {
		end := min(start+qdrantPageSize, len(docs))
		points := make([]*qdrant.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewID(pointID(docs[i].ID)),
				Vectors: qdrant.NewVectors(docs[i].Embedding...),
				Payload: qdrant.NewValueMap(map[string]any{
					payloadDocID:    docs[i].ID,
					payloadText:     docs[i].Text,
					payloadPosition: i,
				}),
			})
		}
		if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: backing,
			Wait:           &wait,
			Points:         points,
		}); err != nil {
			_ = s.client.DeleteCollection(ctx, backing)
			return "", fmt.Errorf("failed to upsert points: %w", err)
		}
	}

	previous, err := s.aliasTarget(ctx)
	if err != nil {
		return "", err
	}

	actions := []*qdrant.AliasOperations{}
	if previous != "" {
		actions = append(actions, qdrant.NewAliasDelete(s.alias))
	} else if exists, err := s.client.CollectionExists(ctx, s.alias); err == nil && exists {
		// A plain collection holds the name; it has to go before the alias can take it.
		log.Warn("replacing plain collection with alias", zap.String("collection", s.alias))
		if err := s.client.DeleteCollection(ctx, s.alias); err != nil {
			return "", fmt.Errorf("failed to delete collection %s: %w", s.alias, err)
		}
	}
	actions = append(actions, qdrant.NewAliasCreate(s.alias, backing))

	if err := s.client.UpdateAliases(ctx, actions); err != nil {
		return "", fmt.Errorf("failed to switch alias: %w", err)
	}

	if previous != "" {
		if err := s.client.DeleteCollection(ctx, previous); err != nil {
			log.Warn("failed to delete old collection", zap.String("collection", previous), zap.Error(err))
		}
	}

	log.Info("published corpus",
		zap.String("alias", s.alias),
		zap.String("collection", backing),
		zap.Int("documents", len(docs)))

	return contentID(docs), nil
}

func (s *QdrantStore) aliasTarget(ctx context.Context) (string, error) {
	aliases, err := s.client.ListAliases(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list aliases: %w", err)
	}
	for _, a := range aliases {
		if a.GetAliasName() == s.alias {
			return a.GetCollectionName(), nil
		}
	}
	return "", nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}
