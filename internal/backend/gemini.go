package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"medsim-server/internal/config"
	"medsim-server/internal/model"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// geminiClient implements Client against the Gemini generateContent API.
type geminiClient struct {
	logger  *zap.Logger
	baseURL string
	apiKey  string
	http    *http.Client
}

func newGeminiClient(cfg *config.Config, log *zap.Logger) *geminiClient {
	baseURL := strings.TrimSuffix(cfg.Backend.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &geminiClient{
		logger:  log.Named("gemini_client"),
		baseURL: baseURL,
		apiKey:  cfg.Backend.APIKey,
		http: &http.Client{
			Timeout: cfg.Backend.BackendTimeout(),
		},
	}
}

// Wire format of the generateContent endpoint.

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
	Tools            []geminiTool            `json:"tools,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *geminiBlobPart `json:"inlineData,omitempty"`
}

type geminiBlobPart struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	ResponseMIMEType   string   `json:"responseMimeType,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiTool struct {
	GoogleSearch *struct{} `json:"google_search,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		GroundingMetadata *struct {
			GroundingChunks []struct {
				Web *struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *geminiAPIError `json:"error"`
}

type geminiAPIError struct {
	Code    int    `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Generate performs one generateContent call and translates the result.
func (c *geminiClient) Generate(ctx context.Context, req CallRequest) (*CallResponse, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: toGeminiParts(req.Parts)}},
	}
	genCfg := &geminiGenerationConfig{}
	if req.ResponseMIMEType != "" && !req.UseSearch {
		// The API rejects a response MIME type combined with search tools.
		genCfg.ResponseMIMEType = req.ResponseMIMEType
	}
	if req.WantImage {
		genCfg.ResponseModalities = []string{"IMAGE", "TEXT"}
		genCfg.ResponseMIMEType = ""
	}
	if genCfg.ResponseMIMEType != "" || len(genCfg.ResponseModalities) > 0 {
		payload.GenerationConfig = genCfg
	}
	if req.UseSearch {
		payload.Tools = []geminiTool{{GoogleSearch: &struct{}{}}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, model.WrapGenerationError(model.FailureFatal, err, "failed to marshal request")
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.baseURL, req.Model, url.QueryEscape(c.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, model.WrapGenerationError(model.FailureFatal, err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, model.WrapGenerationError(model.FailureFatal, err, "request cancelled")
		}
		// Transport failures (timeouts included) are retryable.
		return nil, model.WrapGenerationError(model.FailureTransient, err, "http request failed")
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	c.logger.Debug("Gemini API call finished",
		zap.String("model", req.Model),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, classifyGeminiStatus(resp.StatusCode, respBody)
	}
	if readErr != nil {
		return nil, model.WrapGenerationError(model.FailureTransient, readErr, "failed to read response body")
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, model.WrapGenerationError(model.FailureParse, err, "malformed response body")
	}
	if parsed.Error != nil {
		return nil, classifyGeminiStatus(parsed.Error.Code, respBody)
	}
	if len(parsed.Candidates) == 0 {
		return nil, model.NewGenerationError(model.FailureNoContent, "response contained no candidates")
	}

	out := &CallResponse{}
	cand := parsed.Candidates[0]
	var text strings.Builder
	for _, part := range cand.Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.InlineData != nil && part.InlineData.Data != "" {
			data, decErr := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if decErr != nil {
				return nil, model.WrapGenerationError(model.FailureParse, decErr, "invalid inline image data")
			}
			out.Images = append(out.Images, Blob{MIMEType: part.InlineData.MIMEType, Data: data})
		}
	}
	out.Text = text.String()

	if cand.GroundingMetadata != nil {
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk.Web != nil && chunk.Web.URI != "" {
				out.Citations = append(out.Citations, Citation{Title: chunk.Web.Title, URI: chunk.Web.URI})
			}
		}
	}
	if parsed.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:     parsed.UsageMetadata.PromptTokenCount,
			CompletionTokens: parsed.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      parsed.UsageMetadata.TotalTokenCount,
		}
	}

	if req.WantImage && len(out.Images) == 0 {
		// Not retried as a quota error unless the backend reported one above.
		return nil, model.NewGenerationError(model.FailureNoContent, "no image produced")
	}

	return out, nil
}

// classifyGeminiStatus maps an HTTP/API status to a classified error.
func classifyGeminiStatus(code int, body []byte) error {
	message := extractGeminiErrorMessage(body)
	switch {
	case code == http.StatusTooManyRequests:
		return model.NewGenerationError(model.FailureRateLimited, "backend rate limited: %s", message)
	case code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout:
		return model.NewGenerationError(model.FailureTransient, "backend unavailable (%d): %s", code, message)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return model.NewGenerationError(model.FailureMissingCredential, "backend rejected credential (%d): %s", code, message)
	default:
		return model.NewGenerationError(model.FailureFatal, "backend returned status %d: %s", code, message)
	}
}

func extractGeminiErrorMessage(body []byte) string {
	var wrapper struct {
		Error *geminiAPIError `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Error != nil {
		// RESOURCE_EXHAUSTED shows up with code 429 already; the status string
		// is still useful in the message.
		if wrapper.Error.Status != "" {
			return fmt.Sprintf("%s: %s", wrapper.Error.Status, wrapper.Error.Message)
		}
		return wrapper.Error.Message
	}
	const maxBody = 256
	s := string(body)
	if len(s) > maxBody {
		s = s[:maxBody]
	}
	return s
}

func toGeminiParts(parts []Part) []geminiPart {
	out := make([]geminiPart, 0, len(parts))
	for _, p := range parts {
		gp := geminiPart{Text: p.Text}
		if p.InlineData != nil {
			gp.InlineData = &geminiBlobPart{
				MIMEType: p.InlineData.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(p.InlineData.Data),
			}
		}
		out = append(out, gp)
	}
	return out
}
