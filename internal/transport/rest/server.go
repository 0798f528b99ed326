// Package rest exposes the search facade over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"hybridrag/internal/domain"
	"hybridrag/internal/logger"
	"hybridrag/internal/metrics"
	"hybridrag/internal/port"
)

const maxBodyBytes = 1 << 20

// statusClientClosedRequest is the nginx convention for a request the client abandoned.
const statusClientClosedRequest = 499

// Server serves search requests.
type Server struct {
	search port.Searcher
	logger *zap.Logger
}

func NewServer(search port.Searcher, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{search: search, logger: logger}
}

// Router builds the chi router with request id, panic recovery, metrics and
// a request-scoped logger.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())
	r.Use(s.requestLogger)

	r.Get("/", s.Root)
	r.Get("/healthz", s.Health)
	r.Post("/search", s.Search)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := s.logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))
		next.ServeHTTP(w, r.WithContext(logger.ContextWithLogger(r.Context(), l)))
	})
}

type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type searchResultItem struct {
	ID      string  `json:"id"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
	Sparse  float64 `json:"sparse"`
	Dense   float64 `json:"dense"`
	Boosted bool    `json:"boosted"`
}

type searchResponse struct {
	Outcome    string             `json:"outcome"`
	SnapshotID string             `json:"snapshot_id"`
	Results    []searchResultItem `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Root handles GET /.
func (s *Server) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "hybrid search API running"})
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req searchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query is required"})
		return
	}
	if req.K < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "k must not be negative"})
		return
	}

	start := time.Now()
	res, err := s.search.Search(r.Context(), req.Query, req.K)
	if err != nil {
		s.handleError(w, log, err)
		return
	}

	items := make([]searchResultItem, len(res.Documents))
	for i, d := range res.Documents {
		items[i] = searchResultItem{
			ID:      d.Document.ID,
			Text:    d.Document.Text,
			Score:   d.Score,
			Sparse:  d.Sparse,
			Dense:   d.Dense,
			Boosted: d.Boosted,
		}
	}

	log.Debug("search served",
		zap.String("outcome", string(res.Outcome)),
		zap.Int("results", len(items)),
		zap.Duration("duration", time.Since(start)))

	writeJSON(w, http.StatusOK, searchResponse{
		Outcome:    string(res.Outcome),
		SnapshotID: res.SnapshotID,
		Results:    items,
	})
}

func (s *Server) handleError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		log.Info("search canceled by client", zap.Error(err))
		writeJSON(w, statusClientClosedRequest, errorResponse{Error: "request canceled"})
		return
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("search timed out", zap.Error(err))
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "search timed out"})
		return
	}
	if errors.Is(err, domain.ErrEmbeddingUnavailable) {
		log.Warn("search failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: domain.ErrEmbeddingUnavailable.Error()})
		return
	}
	log.Error("internal error", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
