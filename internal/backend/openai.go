package backend

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"medsim-server/internal/config"
	"medsim-server/internal/model"
)

// openAIClient implements Client against an OpenAI-compatible API.
// Text tasks go through chat completions; image tasks go through the
// Images API with a b64 response. Search grounding is not available on
// this backend, so UseSearch degrades to a plain text call with no
// citations.
type openAIClient struct {
	logger *zap.Logger
	client *openaigo.Client
}

func newOpenAIClient(cfg *config.Config, log *zap.Logger) *openAIClient {
	openaiConfig := openaigo.DefaultConfig(cfg.Backend.APIKey)
	if cfg.Backend.BaseURL != "" {
		openaiConfig.BaseURL = cfg.Backend.BaseURL
	}
	openaiConfig.HTTPClient = &http.Client{
		Timeout: cfg.Backend.BackendTimeout(),
	}
	return &openAIClient{
		logger: log.Named("openai_client"),
		client: openaigo.NewClientWithConfig(openaiConfig),
	}
}

func (c *openAIClient) Generate(ctx context.Context, req CallRequest) (*CallResponse, error) {
	if req.WantImage {
		return c.generateImage(ctx, req)
	}
	return c.generateText(ctx, req)
}

func (c *openAIClient) generateText(ctx context.Context, req CallRequest) (*CallResponse, error) {
	messages := make([]openaigo.ChatCompletionMessage, 0, 1)
	var promptText strings.Builder
	var multiParts []openaigo.ChatMessagePart
	for _, p := range req.Parts {
		if p.Text != "" {
			promptText.WriteString(p.Text)
		}
		if p.InlineData != nil {
			multiParts = append(multiParts, openaigo.ChatMessagePart{
				Type: openaigo.ChatMessagePartTypeImageURL,
				ImageURL: &openaigo.ChatMessageImageURL{
					URL: Blob{MIMEType: p.InlineData.MIMEType, Data: p.InlineData.Data}.DataURL(),
				},
			})
		}
	}
	if len(multiParts) > 0 {
		multiParts = append([]openaigo.ChatMessagePart{{
			Type: openaigo.ChatMessagePartTypeText,
			Text: promptText.String(),
		}}, multiParts...)
		messages = append(messages, openaigo.ChatCompletionMessage{
			Role:         openaigo.ChatMessageRoleUser,
			MultiContent: multiParts,
		})
	} else {
		messages = append(messages, openaigo.ChatCompletionMessage{
			Role:    openaigo.ChatMessageRoleUser,
			Content: promptText.String(),
		})
	}

	chatReq := openaigo.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
	}
	if req.ResponseMIMEType == "application/json" {
		chatReq.ResponseFormat = &openaigo.ChatCompletionResponseFormat{
			Type: openaigo.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, model.NewGenerationError(model.FailureNoContent, "empty completion")
	}

	out := &CallResponse{Text: resp.Choices[0].Message.Content}
	if resp.Usage.TotalTokens > 0 {
		out.Usage = Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	} else {
		out.Usage = estimateUsage(req.Model, promptText.String(), out.Text)
	}
	return out, nil
}

func (c *openAIClient) generateImage(ctx context.Context, req CallRequest) (*CallResponse, error) {
	var prompt strings.Builder
	for _, p := range req.Parts {
		prompt.WriteString(p.Text)
	}

	resp, err := c.client.CreateImage(ctx, openaigo.ImageRequest{
		Prompt:         prompt.String(),
		Model:          req.Model,
		N:              1,
		Size:           openaigo.CreateImageSize1024x1024,
		ResponseFormat: openaigo.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, model.NewGenerationError(model.FailureNoContent, "no image produced")
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, model.WrapGenerationError(model.FailureParse, err, "invalid image payload")
	}
	return &CallResponse{Images: []Blob{{MIMEType: "image/png", Data: data}}}, nil
}

// estimateUsage approximates token accounting with tiktoken when the API
// omitted usage data.
func estimateUsage(modelName, prompt, completion string) Usage {
	tke, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		tke, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return Usage{}
		}
	}
	promptTokens := len(tke.Encode(prompt, nil, nil))
	completionTokens := len(tke.Encode(completion, nil, nil))
	return Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

// classifyOpenAIError maps go-openai errors onto the closed failure set.
func classifyOpenAIError(err error) error {
	var apiErr *openaigo.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return model.WrapGenerationError(model.FailureRateLimited, err, "backend rate limited")
		case apiErr.HTTPStatusCode == http.StatusServiceUnavailable,
			apiErr.HTTPStatusCode == http.StatusGatewayTimeout:
			return model.WrapGenerationError(model.FailureTransient, err, "backend unavailable")
		case apiErr.HTTPStatusCode == http.StatusUnauthorized,
			apiErr.HTTPStatusCode == http.StatusForbidden:
			return model.WrapGenerationError(model.FailureMissingCredential, err, "backend rejected credential")
		default:
			return model.WrapGenerationError(model.FailureFatal, err, "backend error")
		}
	}
	if errors.Is(err, context.Canceled) {
		return model.WrapGenerationError(model.FailureFatal, err, "request cancelled")
	}
	// Anything without an API status is a transport problem.
	return model.WrapGenerationError(model.FailureTransient, err, "http request failed")
}
