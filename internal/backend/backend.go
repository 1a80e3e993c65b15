package backend

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"medsim-server/internal/config"
)

// Part is one piece of request content: text or inline binary data.
type Part struct {
	Text       string
	InlineData *Blob
}

// Blob is inline binary content with its MIME type.
type Blob struct {
	MIMEType string
	Data     []byte
}

// CallRequest describes one request to the generative backend for a given
// model identifier.
type CallRequest struct {
	Model string
	Parts []Part
	// ResponseMIMEType hints the expected output format, e.g. "application/json".
	ResponseMIMEType string
	// WantImage asks the backend to produce image content.
	WantImage bool
	// UseSearch enables the backend's search grounding tool.
	UseSearch bool
}

// Usage reports token accounting for one call, when available.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Citation is one grounding source attached to a search-enabled response.
type Citation struct {
	Title string
	URI   string
}

// CallResponse is the parsed backend response: textual content, inline
// images, grounding citations and usage metadata.
type CallResponse struct {
	Text      string
	Images    []Blob
	Citations []Citation
	Usage     Usage
}

// DataURL renders an image blob as a self-contained displayable data URL so
// downstream consumers never perform additional network fetches.
func (b Blob) DataURL() string {
	mime := b.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(b.Data))
}

// Client issues a single request to the generative backend. Implementations
// translate raw responses into CallResponse values and classify failures
// into model.GenerationError variants.
type Client interface {
	Generate(ctx context.Context, req CallRequest) (*CallResponse, error)
}

// NewClient builds the backend client selected by configuration.
func NewClient(cfg *config.Config, log *zap.Logger) (Client, error) {
	switch strings.ToLower(cfg.Backend.Kind) {
	case "gemini":
		log.Info("Using Gemini backend client", zap.String("base_url", cfg.Backend.BaseURL))
		return newGeminiClient(cfg, log), nil
	case "openai":
		log.Info("Using OpenAI-compatible backend client", zap.String("base_url", cfg.Backend.BaseURL))
		return newOpenAIClient(cfg, log), nil
	case "ollama":
		log.Info("Using Ollama backend client", zap.String("base_url", cfg.Backend.BaseURL))
		return newOllamaClient(cfg, log)
	default:
		return nil, fmt.Errorf("unknown backend client kind: '%s'", cfg.Backend.Kind)
	}
}
