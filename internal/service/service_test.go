package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medsim-server/internal/batch"
	"medsim-server/internal/mocks"
	"medsim-server/internal/model"
	"medsim-server/internal/service"
	"medsim-server/internal/workspace"
)

const batchCooldown = 6 * time.Second

type fixture struct {
	svc   *service.Service
	store *workspace.Store
	gen   *mocks.MockGenerator
	waits *[]time.Duration
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	waits := &[]time.Duration{}
	sleep := func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}

	gen := mocks.NewMockGenerator(t)
	notifier := mocks.NewMockNotifier(t)
	notifier.On("Publish", mock.Anything).Return().Maybe()

	store := workspace.NewStore(zap.NewNop())
	runner := batch.NewRunner(zap.NewNop(), batchCooldown, sleep)
	svc := service.New(zap.NewNop(), store, gen, runner, notifier)

	return &fixture{svc: svc, store: store, gen: gen, waits: waits}
}

func testScenario() *model.SimulationScenario {
	return &model.SimulationScenario{
		Summary: "Acute pulpitis in tooth 36",
		ImagePrompts: model.ScenarioImagePrompts{
			Clinical:     "clinical view",
			Radiological: "periapical radiograph",
			Exploded:     "exploded diagram of tooth 36",
		},
	}
}

func TestService_GenerateSimulation(t *testing.T) {
	t.Run("Primary then three sequential image items", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()

		f.gen.On("Simulation", mock.Anything, mock.Anything).Return(testScenario(), nil).Once()
		f.gen.On("Image", mock.Anything, "clinical view", model.ImageSubtypeClinical).
			Return("data:image/png;base64,a", nil).Once()
		f.gen.On("Image", mock.Anything, "periapical radiograph", model.ImageSubtypeRadiological).
			Return("data:image/png;base64,b", nil).Once()
		f.gen.On("Image", mock.Anything, "exploded diagram of tooth 36", model.ImageSubtypeExploded).
			Return("data:image/png;base64,c", nil).Once()

		record, err := f.svc.GenerateSimulation(ctx, model.GenerationRequest{Topic: "pulpitis"})
		require.NoError(t, err)
		require.Len(t, record.Items, 3)

		f.svc.Wait()

		snap, err := f.store.Snapshot(model.WorkspaceSimulation)
		require.NoError(t, err)
		assert.False(t, snap.InFlight)
		for i, item := range snap.Items {
			assert.Equal(t, model.ItemCompleted, item.Status, "item %d", i)
			assert.NotEmpty(t, item.ImageURL)
		}

		// Cooldown between successful items, none after the last.
		require.Len(t, *f.waits, 2)
		assert.Equal(t, batchCooldown, (*f.waits)[0])
		assert.Equal(t, batchCooldown, (*f.waits)[1])

		f.gen.AssertExpectations(t)
	})

	t.Run("One failed image never isolates the rest", func(t *testing.T) {
		f := newFixture(t)

		f.gen.On("Simulation", mock.Anything, mock.Anything).Return(testScenario(), nil).Once()
		f.gen.On("Image", mock.Anything, "clinical view", model.ImageSubtypeClinical).
			Return("data:image/png;base64,a", nil).Once()
		f.gen.On("Image", mock.Anything, "periapical radiograph", model.ImageSubtypeRadiological).
			Return("", model.NewGenerationError(model.FailureNoContent, "no image produced")).Once()
		f.gen.On("Image", mock.Anything, "exploded diagram of tooth 36", model.ImageSubtypeExploded).
			Return("data:image/png;base64,c", nil).Once()

		_, err := f.svc.GenerateSimulation(context.Background(), model.GenerationRequest{Topic: "pulpitis"})
		require.NoError(t, err)
		f.svc.Wait()

		snap, err := f.store.Snapshot(model.WorkspaceSimulation)
		require.NoError(t, err)
		assert.Equal(t, model.ItemCompleted, snap.Items[0].Status)
		assert.Equal(t, model.ItemFailed, snap.Items[1].Status)
		assert.NotEmpty(t, snap.Items[1].Error)
		assert.Equal(t, model.ItemCompleted, snap.Items[2].Status)
	})

	t.Run("Primary failure leaves no partial content", func(t *testing.T) {
		f := newFixture(t)

		f.gen.On("Simulation", mock.Anything, mock.Anything).
			Return(nil, model.NewGenerationError(model.FailureRateLimited, "quota exhausted")).Once()

		_, err := f.svc.GenerateSimulation(context.Background(), model.GenerationRequest{Topic: "pulpitis"})
		require.Error(t, err)

		snap, snapErr := f.store.Snapshot(model.WorkspaceSimulation)
		require.NoError(t, snapErr)
		assert.False(t, snap.InFlight)
		assert.Nil(t, snap.Primary)
		assert.Empty(t, snap.Items)
		assert.Contains(t, snap.Status, "quota")

		log := f.svc.ChatLog()
		require.Len(t, log, 2)
		assert.Equal(t, model.ChatRoleUser, log[0].Role)
		assert.True(t, log[1].IsError)
	})
}

func TestService_GenerateProtocol(t *testing.T) {
	t.Run("Steps without image prompts are not seeded", func(t *testing.T) {
		f := newFixture(t)

		plan := &model.ProtocolPlan{
			Title: "Root canal treatment protocol",
			Steps: []model.ProtocolStep{
				{Title: "Isolation", ImagePrompt: "rubber dam placement on tooth 36"},
				{Title: "Access cavity", ImagePrompt: "   "},
				{Title: "Working length", ImagePrompt: ""},
				{Title: "Irrigation", ImagePrompt: "sodium hypochlorite irrigation"},
			},
		}
		f.gen.On("Protocol", mock.Anything, mock.Anything).Return(plan, nil).Once()
		f.gen.On("Image", mock.Anything, "rubber dam placement on tooth 36", model.ImageSubtypeClinical).
			Return("data:image/png;base64,a", nil).Once()
		f.gen.On("Image", mock.Anything, "sodium hypochlorite irrigation", model.ImageSubtypeClinical).
			Return("data:image/png;base64,b", nil).Once()

		record, err := f.svc.GenerateProtocol(context.Background(), model.GenerationRequest{Topic: "root canal"})
		require.NoError(t, err)

		// In-flight is released with the primary result, before the batch ends.
		assert.False(t, record.InFlight)
		require.Len(t, record.Items, 2)
		assert.Equal(t, "Isolation", record.Items[0].Label)
		assert.Equal(t, "Irrigation", record.Items[1].Label)

		f.svc.Wait()

		snap, err := f.store.Snapshot(model.WorkspaceProtocol)
		require.NoError(t, err)
		for _, item := range snap.Items {
			assert.Equal(t, model.ItemCompleted, item.Status)
		}

		log := f.svc.ChatLog()
		require.Len(t, log, 2)
		assert.Equal(t, model.ChatRoleAssistant, log[1].Role)
		assert.Contains(t, log[1].Text, plan.Title)

		f.gen.AssertExpectations(t)
	})

	t.Run("Plan without any image prompts skips the batch", func(t *testing.T) {
		f := newFixture(t)

		plan := &model.ProtocolPlan{
			Title: "Hand hygiene protocol",
			Steps: []model.ProtocolStep{{Title: "Wash"}, {Title: "Dry"}},
		}
		f.gen.On("Protocol", mock.Anything, mock.Anything).Return(plan, nil).Once()

		record, err := f.svc.GenerateProtocol(context.Background(), model.GenerationRequest{Topic: "hand hygiene"})
		require.NoError(t, err)
		assert.Empty(t, record.Items)

		f.svc.Wait()
		f.gen.AssertNotCalled(t, "Image")
	})
}

func TestService_GenerateQuiz(t *testing.T) {
	t.Run("Busy workspace is refused without touching the pipeline", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.store.Begin(model.WorkspaceQuiz)
		require.NoError(t, err)

		_, err = f.svc.GenerateQuiz(context.Background(), model.GenerationRequest{Topic: "caries"})
		assert.ErrorIs(t, err, model.ErrWorkspaceBusy)
		f.gen.AssertNotCalled(t, "Quiz")
	})

	t.Run("Quiz publishes without batch items", func(t *testing.T) {
		f := newFixture(t)

		quiz := &model.QuizSet{Essay: []model.QuizQuestion{{Question: "Describe caries staging."}}}
		f.gen.On("Quiz", mock.Anything, mock.Anything).Return(quiz, nil).Once()

		record, err := f.svc.GenerateQuiz(context.Background(), model.GenerationRequest{Topic: "caries", Count: 1})
		require.NoError(t, err)
		assert.False(t, record.InFlight)
		assert.Empty(t, record.Items)
		assert.Equal(t, quiz, record.Primary)
		assert.Empty(t, *f.waits)

		// One user entry plus one assistant summary.
		log := f.svc.ChatLog()
		require.Len(t, log, 2)
		assert.Equal(t, model.ChatRoleUser, log[0].Role)
		assert.Equal(t, model.ChatRoleAssistant, log[1].Role)
		assert.False(t, log[1].IsError)
		assert.Contains(t, log[1].Text, "1 essay")
	})

	t.Run("Blank topic is rejected", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.GenerateQuiz(context.Background(), model.GenerationRequest{Topic: "   "})
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})
}

func TestService_GenerateGallery(t *testing.T) {
	t.Run("Synthesized prompts still drive the image batch", func(t *testing.T) {
		f := newFixture(t)

		result := &model.GalleryResult{
			Prompts:     []string{"p1", "p2", "p3"},
			Synthesized: true,
		}
		f.gen.On("Gallery", mock.Anything, mock.Anything).Return(result, nil).Once()
		f.gen.On("Image", mock.Anything, mock.Anything, model.ImageSubtypeClinical).
			Return("data:image/png;base64,x", nil).Times(3)

		record, err := f.svc.GenerateGallery(context.Background(), model.GenerationRequest{Topic: "molar anatomy"})
		require.NoError(t, err)
		require.Len(t, record.Items, 3)

		log := f.svc.ChatLog()
		require.Len(t, log, 2)
		assert.Equal(t, model.ChatRoleAssistant, log[1].Role)
		assert.Contains(t, log[1].Text, "molar anatomy")

		f.svc.Wait()

		snap, err := f.store.Snapshot(model.WorkspaceGallery)
		require.NoError(t, err)
		for _, item := range snap.Items {
			assert.Equal(t, model.ItemCompleted, item.Status)
		}
	})
}

func TestStatusMessage(t *testing.T) {
	t.Run("Quota message is localized", func(t *testing.T) {
		err := model.NewGenerationError(model.FailureRateLimited, "429 from upstream")
		assert.Contains(t, service.StatusMessage(err, "en"), "quota")
		assert.Contains(t, service.StatusMessage(err, "ru"), "Лимит")
	})

	t.Run("Raw payloads are truncated", func(t *testing.T) {
		long := make([]byte, 2000)
		for i := range long {
			long[i] = 'x'
		}
		err := model.NewGenerationError(model.FailureFatal, "%s", string(long))
		msg := service.StatusMessage(err, "en")
		assert.Less(t, len([]rune(msg)), 250)
	})
}
