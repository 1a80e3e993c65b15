package generation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"medsim-server/internal/backend"
	"medsim-server/internal/config"
	"medsim-server/internal/model"
)

// Pipeline composes the model fallback orchestrator, the retry policy and
// the backend call adapter into the six generation tasks.
type Pipeline struct {
	logger            *zap.Logger
	client            backend.Client
	cfg               config.GenerationConfig
	credentialPresent bool
	sleep             SleepFunc
}

// Params collects the pipeline dependencies.
type Params struct {
	Logger            *zap.Logger
	Client            backend.Client
	Config            config.GenerationConfig
	CredentialPresent bool
	// Sleep overrides the wait implementation; tests inject a fake.
	Sleep SleepFunc
}

// NewPipeline builds a Pipeline.
func NewPipeline(p Params) *Pipeline {
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepWithContext
	}
	return &Pipeline{
		logger:            p.Logger.Named("generation"),
		client:            p.Client,
		cfg:               p.Config,
		credentialPresent: p.CredentialPresent,
		sleep:             sleep,
	}
}

func (p *Pipeline) retryPolicy(maxAttempts int, allowQuotaRetry bool) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     maxAttempts,
		AllowQuotaRetry: allowQuotaRetry,
		RateLimitBase:   p.cfg.RateLimitBackoff(),
		TransientBase:   p.cfg.TransientBackoff(),
		Jitter:          p.cfg.BackoffJitter(),
		Sleep:           p.sleep,
	}
}

func (p *Pipeline) fallbackPolicy() FallbackPolicy {
	return FallbackPolicy{
		CredentialPresent: p.credentialPresent,
		QuotaCooldown:     p.cfg.QuotaCooldown(),
		Cooldown:          p.cfg.FallbackCooldown(),
		Sleep:             p.sleep,
	}
}

// run executes one backend request through fallback and retry, recording
// metrics per adapter call.
func (p *Pipeline) run(ctx context.Context, task string, candidates []string, maxAttempts int, allowQuotaRetry bool, req backend.CallRequest) (*backend.CallResponse, error) {
	retry := p.retryPolicy(maxAttempts, allowQuotaRetry)

	resp, err := WithFallback(ctx, p.fallbackPolicy(), candidates,
		func(ctx context.Context, modelID string) (*backend.CallResponse, error) {
			return WithRetry(ctx, retry, func(ctx context.Context) (*backend.CallResponse, error) {
				callReq := req
				callReq.Model = modelID

				start := time.Now()
				resp, callErr := p.client.Generate(ctx, callReq)
				duration := time.Since(start)

				if callErr != nil {
					kind := model.ClassifyError(callErr)
					recordAIRequest(modelID, task, "error", duration)
					recordAIFailure(task, string(kind))
					p.logger.Warn("Backend call failed",
						zap.String("task", task),
						zap.String("model", modelID),
						zap.String("classification", string(kind)),
						zap.Duration("duration", duration),
						zap.Error(callErr),
					)
					return nil, callErr
				}

				recordAIRequest(modelID, task, "success", duration)
				recordAITokens(modelID, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
				p.logger.Debug("Backend call succeeded",
					zap.String("task", task),
					zap.String("model", modelID),
					zap.Duration("duration", duration),
				)
				return resp, nil
			})
		})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// runJSONTask runs a text task and decodes the structured payload.
func runJSONTask[T any](p *Pipeline, ctx context.Context, task string, req backend.CallRequest) (*T, error) {
	resp, err := p.run(ctx, task, p.cfg.TextModels, p.cfg.MaxAttempts, true, req)
	if err != nil {
		return nil, err
	}
	var out T
	if err := UnmarshalResponse(resp.Text, &out); err != nil {
		recordAIFailure(task, string(model.FailureParse))
		return nil, err
	}
	return &out, nil
}
