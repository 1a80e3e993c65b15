package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"medsim-server/internal/config"
	"medsim-server/internal/model"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// ollamaClient implements Client against a local Ollama server. It serves
// text tasks only; image generation and search grounding are not available
// locally and report NoContent / plain text respectively.
type ollamaClient struct {
	logger *zap.Logger
	client *api.Client
}

func newOllamaClient(cfg *config.Config, log *zap.Logger) (*ollamaClient, error) {
	baseURL := cfg.Backend.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	baseURL = strings.TrimSuffix(strings.TrimSuffix(baseURL, "/v1"), "/")

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.Backend.BackendTimeout()}
	return &ollamaClient{
		logger: log.Named("ollama_client"),
		client: api.NewClient(parsedURL, httpClient),
	}, nil
}

func (c *ollamaClient) Generate(ctx context.Context, req CallRequest) (*CallResponse, error) {
	if req.WantImage {
		return nil, model.NewGenerationError(model.FailureNoContent, "local backend cannot produce images")
	}

	var prompt strings.Builder
	var images []api.ImageData
	for _, p := range req.Parts {
		if p.Text != "" {
			prompt.WriteString(p.Text)
		}
		if p.InlineData != nil {
			images = append(images, api.ImageData(p.InlineData.Data))
		}
	}

	chatReq := &api.ChatRequest{
		Model: req.Model,
		Messages: []api.Message{
			{Role: "user", Content: prompt.String(), Images: images},
		},
		Stream: func(b bool) *bool { return &b }(false),
	}
	if req.ResponseMIMEType == "application/json" {
		chatReq.Format = []byte(`"json"`)
	}

	var resp api.ChatResponse
	err := c.client.Chat(ctx, chatReq, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, model.WrapGenerationError(model.FailureFatal, err, "request cancelled")
		}
		// A local server failure is transient by nature: it recovers on restart.
		return nil, model.WrapGenerationError(model.FailureTransient, err, "ollama request failed")
	}
	if resp.Message.Content == "" {
		return nil, model.NewGenerationError(model.FailureNoContent, "empty completion")
	}

	return &CallResponse{
		Text: resp.Message.Content,
		Usage: Usage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
	}, nil
}
