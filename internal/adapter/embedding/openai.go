package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"hybridrag/internal/domain"
	"hybridrag/internal/metrics"
)

// Provider base URLs. Gemini and Ollama both serve the OpenAI embeddings API.
const (
	OpenAIBaseURL = "https://api.openai.com/v1"
	GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	OllamaBaseURL = "http://localhost:11434/v1"
)

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client              *openai.Client
	provider            string
	model               openai.EmbeddingModel
	dimension           int
	queryInstruction    string
	documentInstruction string
	logger              *zap.Logger
}

// OpenAIConfig holds the embedding provider settings.
type OpenAIConfig struct {
	Provider            string // "openai", "gemini", "ollama"
	APIKeyEnv           string
	BaseURL             string // preset for Provider if empty
	Model               string
	Dimension           int // sent as the dimensions parameter for openai only
	QueryInstruction    string
	DocumentInstruction string
	Timeout             time.Duration
	Logger              *zap.Logger
}

// NewOpenAIEmbedder creates an embedder for the configured provider. The API
// key is read from APIKeyEnv; Ollama needs none.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		switch cfg.Provider {
		case "openai":
			baseURL = OpenAIBaseURL
		case "gemini":
			baseURL = GeminiBaseURL
		case "ollama":
			baseURL = OllamaBaseURL
		default:
			return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
		}
	}

	apiKey := ""
	if cfg.Provider != "ollama" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("API key not found in environment variable: %s", cfg.APIKeyEnv)
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = baseURL
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &OpenAIEmbedder{
		client:              openai.NewClientWithConfig(clientCfg),
		provider:            cfg.Provider,
		model:               openai.EmbeddingModel(cfg.Model),
		dimension:           cfg.Dimension,
		queryInstruction:    cfg.QueryInstruction,
		documentInstruction: cfg.DocumentInstruction,
		logger:              log,
	}, nil
}

// Embed returns the embedding of text. The mode's instruction, if any, is prepended.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string, mode domain.EmbedMode) ([]float32, error) {
	input := text
	if instr := e.instruction(mode); instr != "" {
		input = instr + text
	}

	req := openai.EmbeddingRequest{
		Input:          []string{input},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.provider == "openai" && e.dimension > 0 {
		req.Dimensions = e.dimension
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	model := string(e.model)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "error").Inc()
		e.logger.Debug("embedding request failed",
			zap.String("provider", e.provider),
			zap.Duration("duration", duration),
			zap.Error(err))
		return nil, parseAPIError(err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "error").Inc()
		return nil, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProviderError)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, model).Observe(duration.Seconds())

	return resp.Data[0].Embedding, nil
}

func (e *OpenAIEmbedder) instruction(mode domain.EmbedMode) string {
	if mode == domain.EmbedDocument {
		return e.documentInstruction
	}
	return e.queryInstruction
}

func (e *OpenAIEmbedder) ModelName() string {
	return string(e.model)
}

// parseAPIError wraps every provider failure with domain.ErrEmbeddingProviderError.
func parseAPIError(err error) error {
	wrap := domain.ErrEmbeddingProviderError

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("embedding API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("embedding API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	return fmt.Errorf("embedding request failed: %v: %w", err, wrap)
}

// extractDetail reads a "detail" or "error.message" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
		Error  struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	if parsed.Detail != "" {
		return parsed.Detail
	}
	return parsed.Error.Message
}
