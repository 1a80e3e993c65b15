package generation_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medsim-server/internal/backend"
	"medsim-server/internal/config"
	"medsim-server/internal/generation"
	"medsim-server/internal/mocks"
	"medsim-server/internal/model"
)

func testGenerationConfig() config.GenerationConfig {
	return config.GenerationConfig{
		TextModels:         []string{"model-a"},
		ImageModels:        []string{"image-a"},
		MaxAttempts:        3,
		ImageMaxAttempts:   2,
		RateLimitBackoffMs: 8000,
		TransientBackoffMs: 2000,
		BackoffJitterMs:    1000,
		QuotaCooldownMs:    8000,
		FallbackCooldownMs: 1000,
		BatchCooldownMs:    6000,
	}
}

func newTestPipeline(t *testing.T, client backend.Client) *generation.Pipeline {
	t.Helper()
	sleep := &fakeSleep{}
	return generation.NewPipeline(generation.Params{
		Logger:            zap.NewNop(),
		Client:            client,
		Config:            testGenerationConfig(),
		CredentialPresent: true,
		Sleep:             sleep.sleep,
	})
}

func TestPipeline_Simulation(t *testing.T) {
	t.Run("Decodes a fenced scenario", func(t *testing.T) {
		client := mocks.NewMockBackendClient(t)
		text := "```json\n{\"summary\": \"Acute pulpitis in tooth 36\", \"imagePrompts\": {\"clinical\": \"a\", \"radiological\": \"b\", \"explodedDiagram\": \"c\"}}\n```"
		client.On("Generate", mock.Anything, mock.Anything).
			Return(&backend.CallResponse{Text: text}, nil).Once()

		scenario, err := newTestPipeline(t, client).Simulation(context.Background(), model.GenerationRequest{Topic: "pulpitis"})
		require.NoError(t, err)
		assert.Equal(t, "Acute pulpitis in tooth 36", scenario.Summary)
		assert.Equal(t, "a", scenario.ImagePrompts.Clinical)
		client.AssertExpectations(t)
	})

	t.Run("Missing summary is a parse failure", func(t *testing.T) {
		client := mocks.NewMockBackendClient(t)
		client.On("Generate", mock.Anything, mock.Anything).
			Return(&backend.CallResponse{Text: `{"imagePrompts": {}}`}, nil).Once()

		_, err := newTestPipeline(t, client).Simulation(context.Background(), model.GenerationRequest{Topic: "pulpitis"})
		require.Error(t, err)
		assert.Equal(t, model.FailureParse, model.ClassifyError(err))
	})
}

func TestPipeline_Protocol(t *testing.T) {
	t.Run("Decodes steps with all facets", func(t *testing.T) {
		client := mocks.NewMockBackendClient(t)
		text := `{
			"title": "Root canal treatment protocol",
			"steps": [{
				"title": "Isolation",
				"sourceExcerpt": "The operative field shall be isolated with a rubber dam.",
				"translation": "Place a rubber dam before opening the tooth.",
				"explanation": "Isolation keeps saliva and bacteria out of the canal system.",
				"mnemonic": "Dam first, drill second.",
				"imagePrompt": "rubber dam placement on a lower molar"
			}]
		}`
		client.On("Generate", mock.Anything, mock.Anything).
			Return(&backend.CallResponse{Text: text}, nil).Once()

		plan, err := newTestPipeline(t, client).Protocol(context.Background(), model.GenerationRequest{Topic: "root canal"})
		require.NoError(t, err)
		require.Len(t, plan.Steps, 1)
		step := plan.Steps[0]
		assert.Equal(t, "Isolation", step.Title)
		assert.NotEmpty(t, step.SourceExcerpt)
		assert.NotEmpty(t, step.Translation)
		assert.NotEmpty(t, step.Explanation)
		assert.NotEmpty(t, step.Mnemonic)
		assert.NotEmpty(t, step.ImagePrompt)
	})

	t.Run("Empty step list is a parse failure", func(t *testing.T) {
		client := mocks.NewMockBackendClient(t)
		client.On("Generate", mock.Anything, mock.Anything).
			Return(&backend.CallResponse{Text: `{"title": "Empty", "steps": []}`}, nil).Once()

		_, err := newTestPipeline(t, client).Protocol(context.Background(), model.GenerationRequest{Topic: "root canal"})
		require.Error(t, err)
		assert.Equal(t, model.FailureParse, model.ClassifyError(err))
	})
}

func TestPipeline_Quiz(t *testing.T) {
	quizJSON := `{"essayQuestions": [{"question": "Describe caries staging."}], "shortAnswerQuestions": [], "multipleChoiceQuestions": []}`

	t.Run("Count and difficulty default when absent", func(t *testing.T) {
		client := mocks.NewMockBackendClient(t)
		client.On("Generate", mock.Anything, mock.MatchedBy(func(req backend.CallRequest) bool {
			prompt := req.Parts[0].Text
			return strings.Contains(prompt, "Produce 5 questions") &&
				strings.Contains(prompt, `"intermediate"`)
		})).Return(&backend.CallResponse{Text: quizJSON}, nil).Once()

		quiz, err := newTestPipeline(t, client).Quiz(context.Background(), model.GenerationRequest{Topic: "caries"})
		require.NoError(t, err)
		require.Len(t, quiz.Essay, 1)
		client.AssertExpectations(t)
	})

	t.Run("Requested count and difficulty are honored", func(t *testing.T) {
		client := mocks.NewMockBackendClient(t)
		client.On("Generate", mock.Anything, mock.MatchedBy(func(req backend.CallRequest) bool {
			prompt := req.Parts[0].Text
			return strings.Contains(prompt, "Produce 10 questions") &&
				strings.Contains(prompt, `"advanced"`)
		})).Return(&backend.CallResponse{Text: quizJSON}, nil).Once()

		_, err := newTestPipeline(t, client).Quiz(context.Background(), model.GenerationRequest{
			Topic: "caries", Count: 10, Difficulty: "advanced",
		})
		require.NoError(t, err)
		client.AssertExpectations(t)
	})
}

func TestPipeline_Gallery(t *testing.T) {
	t.Run("Parseable response keeps model prompts and citations", func(t *testing.T) {
		client := mocks.NewMockBackendClient(t)
		client.On("Generate", mock.Anything, mock.MatchedBy(func(req backend.CallRequest) bool {
			return req.UseSearch
		})).Return(&backend.CallResponse{
			Text:      `{"prompts": ["view one", "view two"]}`,
			Citations: []backend.Citation{{Title: "Atlas", URI: "https://example.org/atlas"}},
		}, nil).Once()

		result, err := newTestPipeline(t, client).Gallery(context.Background(), model.GenerationRequest{Topic: "molar anatomy"})
		require.NoError(t, err)
		assert.False(t, result.Synthesized)
		assert.Equal(t, []string{"view one", "view two"}, result.Prompts)
		require.Len(t, result.Citations, 1)
		assert.Equal(t, "Atlas", result.Citations[0].Title)
	})

	t.Run("Unparseable response degrades to synthesized prompts", func(t *testing.T) {
		client := mocks.NewMockBackendClient(t)
		client.On("Generate", mock.Anything, mock.Anything).
			Return(&backend.CallResponse{Text: "I found several interesting sources about molar anatomy."}, nil).Once()

		result, err := newTestPipeline(t, client).Gallery(context.Background(), model.GenerationRequest{Topic: "molar anatomy"})
		require.NoError(t, err)
		assert.True(t, result.Synthesized)
		require.Len(t, result.Prompts, 3)
		for _, prompt := range result.Prompts {
			assert.NotEmpty(t, prompt)
			assert.Contains(t, strings.ToLower(prompt), "molar anatomy")
		}
	})

	t.Run("Prompts are capped at three", func(t *testing.T) {
		client := mocks.NewMockBackendClient(t)
		client.On("Generate", mock.Anything, mock.Anything).
			Return(&backend.CallResponse{Text: `{"prompts": ["a", "b", "c", "d", "e"]}`}, nil).Once()

		result, err := newTestPipeline(t, client).Gallery(context.Background(), model.GenerationRequest{Topic: "molar anatomy"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, result.Prompts)
	})
}

func TestPipeline_Image(t *testing.T) {
	t.Run("Returns a displayable data URL", func(t *testing.T) {
		client := mocks.NewMockBackendClient(t)
		client.On("Generate", mock.Anything, mock.MatchedBy(func(req backend.CallRequest) bool {
			return req.WantImage && req.Model == "image-a"
		})).Return(&backend.CallResponse{
			Images: []backend.Blob{{MIMEType: "image/png", Data: []byte{1, 2, 3}}},
		}, nil).Once()

		url, err := newTestPipeline(t, client).Image(context.Background(), "occlusal view", model.ImageSubtypeClinical)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
	})

	t.Run("Quota failure is not retried on the same model", func(t *testing.T) {
		client := mocks.NewMockBackendClient(t)
		client.On("Generate", mock.Anything, mock.Anything).
			Return(nil, model.NewGenerationError(model.FailureRateLimited, "quota exhausted")).Once()

		_, err := newTestPipeline(t, client).Image(context.Background(), "occlusal view", model.ImageSubtypeClinical)
		require.Error(t, err)
		assert.Equal(t, model.FailureRateLimited, model.ClassifyError(err))
		client.AssertNumberOfCalls(t, "Generate", 1)
	})
}

func TestPipeline_Analyze(t *testing.T) {
	t.Run("Low quality comes back as data, not an error", func(t *testing.T) {
		client := mocks.NewMockBackendClient(t)
		client.On("Generate", mock.Anything, mock.Anything).
			Return(&backend.CallResponse{Text: `{"isHighQuality": false, "reason": "image is blurred"}`}, nil).Once()

		result, err := newTestPipeline(t, client).Analyze(context.Background(), []byte{0xFF, 0xD8}, "image/jpeg", "en")
		require.NoError(t, err)
		assert.False(t, result.IsHighQuality)
		assert.Equal(t, "image is blurred", result.Reason)
	})

	t.Run("Empty payload is rejected", func(t *testing.T) {
		client := mocks.NewMockBackendClient(t)
		_, err := newTestPipeline(t, client).Analyze(context.Background(), nil, "image/jpeg", "en")
		require.ErrorIs(t, err, model.ErrInvalidInput)
	})
}
