package generation

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"medsim-server/internal/backend"
	"medsim-server/internal/model"
)

const jsonMIME = "application/json"

// Simulation generates a structured clinical case scenario with three image
// prompts, one per image subtype.
func (p *Pipeline) Simulation(ctx context.Context, req model.GenerationRequest) (*model.SimulationScenario, error) {
	scenario, err := runJSONTask[model.SimulationScenario](p, ctx, "simulation", backend.CallRequest{
		Parts:            []backend.Part{{Text: simulationPrompt(req.Topic, req.Language)}},
		ResponseMIMEType: jsonMIME,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(scenario.Summary) == "" {
		return nil, model.NewGenerationError(model.FailureParse, "scenario has no summary")
	}
	return scenario, nil
}

// Protocol generates an ordered sequence of practical protocol steps.
func (p *Pipeline) Protocol(ctx context.Context, req model.GenerationRequest) (*model.ProtocolPlan, error) {
	plan, err := runJSONTask[model.ProtocolPlan](p, ctx, "protocol", backend.CallRequest{
		Parts:            []backend.Part{{Text: protocolPrompt(req.Topic, req.Language)}},
		ResponseMIMEType: jsonMIME,
	})
	if err != nil {
		return nil, err
	}
	if len(plan.Steps) == 0 {
		return nil, model.NewGenerationError(model.FailureParse, "protocol has no steps")
	}
	return plan, nil
}

// Quiz generates the three question collections sized by the requested
// count and difficulty.
func (p *Pipeline) Quiz(ctx context.Context, req model.GenerationRequest) (*model.QuizSet, error) {
	count := req.Count
	if count <= 0 {
		count = 5
	}
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = "intermediate"
	}
	return runJSONTask[model.QuizSet](p, ctx, "quiz", backend.CallRequest{
		Parts:            []backend.Part{{Text: quizPrompt(req.Topic, req.Language, count, difficulty)}},
		ResponseMIMEType: jsonMIME,
	})
}

// Gallery generates up to three image prompts plus source citations from a
// search-grounded call. A structured-parse failure degrades to synthesized
// prompts derived from the topic: this path never returns zero prompts.
func (p *Pipeline) Gallery(ctx context.Context, req model.GenerationRequest) (*model.GalleryResult, error) {
	resp, err := p.run(ctx, "gallery", p.cfg.TextModels, p.cfg.MaxAttempts, true, backend.CallRequest{
		Parts:     []backend.Part{{Text: galleryPrompt(req.Topic, req.Language)}},
		UseSearch: true,
	})
	if err != nil {
		return nil, err
	}

	result := &model.GalleryResult{}
	for _, c := range resp.Citations {
		result.Citations = append(result.Citations, model.Citation{Title: c.Title, URI: c.URI})
	}

	var parsed struct {
		Prompts []string `json:"prompts"`
	}
	if parseErr := UnmarshalResponse(resp.Text, &parsed); parseErr != nil || len(nonEmpty(parsed.Prompts)) == 0 {
		p.logger.Warn("Gallery response not parseable, synthesizing prompts",
			zap.String("topic", req.Topic), zap.Error(parseErr))
		recordAIFailure("gallery", string(model.FailureParse))
		result.Prompts = synthesizedGalleryPrompts(req.Topic)
		result.Synthesized = true
		return result, nil
	}

	prompts := nonEmpty(parsed.Prompts)
	if len(prompts) > 3 {
		prompts = prompts[:3]
	}
	result.Prompts = prompts
	return result, nil
}

// Image generates one displayable image for a prompt and subtype. Image
// failures are cheaper to abandon, so the retry budget is shorter and quota
// failures are not retried here; the batch runner above this call spaces
// requests out instead.
func (p *Pipeline) Image(ctx context.Context, prompt string, subtype model.ImageSubtype) (string, error) {
	resp, err := p.run(ctx, "image", p.cfg.ImageModels, p.cfg.ImageMaxAttempts, false, backend.CallRequest{
		Parts:     []backend.Part{{Text: imagePrompt(prompt, subtype)}},
		WantImage: true,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Images) == 0 {
		return "", model.NewGenerationError(model.FailureNoContent, "no image produced")
	}
	return resp.Images[0].DataURL(), nil
}

// Analyze runs the image-analysis task on one input image. A low-quality
// rejection comes back as domain data (IsHighQuality=false with a reason),
// not as an error.
func (p *Pipeline) Analyze(ctx context.Context, data []byte, mimeType, language string) (*model.AnalysisResult, error) {
	if len(data) == 0 {
		return nil, model.ErrInvalidInput
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	if language == "" {
		language = "en"
	}
	return runJSONTask[model.AnalysisResult](p, ctx, "analysis", backend.CallRequest{
		Parts: []backend.Part{
			{Text: analysisPrompt(language)},
			{InlineData: &backend.Blob{MIMEType: mimeType, Data: data}},
		},
		ResponseMIMEType: jsonMIME,
	})
}

func nonEmpty(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
