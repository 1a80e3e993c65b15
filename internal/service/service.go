// Package service orchestrates the generation pipeline against the
// workspace state: it runs the primary task, publishes the result, then
// drives the dependent image sub-requests in a detached background batch
// so a slow or failing image never blocks the rest of the system.
package service

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"medsim-server/internal/batch"
	"medsim-server/internal/model"
	"medsim-server/internal/workspace"
)

// Generator is the generation pipeline as the service consumes it.
type Generator interface {
	Simulation(ctx context.Context, req model.GenerationRequest) (*model.SimulationScenario, error)
	Protocol(ctx context.Context, req model.GenerationRequest) (*model.ProtocolPlan, error)
	Quiz(ctx context.Context, req model.GenerationRequest) (*model.QuizSet, error)
	Gallery(ctx context.Context, req model.GenerationRequest) (*model.GalleryResult, error)
	Image(ctx context.Context, prompt string, subtype model.ImageSubtype) (string, error)
	Analyze(ctx context.Context, data []byte, mimeType, language string) (*model.AnalysisResult, error)
}

// Notifier receives every workspace update for fan-out to subscribers.
type Notifier interface {
	Publish(event model.UpdateEvent)
}

// Service coordinates workspaces, pipeline and notifier.
type Service struct {
	logger   *zap.Logger
	store    *workspace.Store
	gen      Generator
	runner   *batch.Runner
	notifier Notifier

	// background tracks detached batch runners for graceful shutdown.
	background sync.WaitGroup
}

// New builds a Service.
func New(logger *zap.Logger, store *workspace.Store, gen Generator, runner *batch.Runner, notifier Notifier) *Service {
	return &Service{
		logger:   logger.Named("service"),
		store:    store,
		gen:      gen,
		runner:   runner,
		notifier: notifier,
	}
}

// Wait blocks until all detached background batches have finished.
func (s *Service) Wait() {
	s.background.Wait()
}

// notify broadcasts the current snapshot of a workspace.
func (s *Service) notify(kind model.WorkspaceKind) {
	snapshot, err := s.store.Snapshot(kind)
	if err != nil {
		return
	}
	s.notifier.Publish(model.UpdateEvent{Workspace: kind, Record: snapshot})
}

// GenerateSimulation runs the clinical simulation workspace: primary
// scenario first, then three sequential image sub-requests (clinical,
// radiological, exploded diagram). The in-flight flag is released only
// after the image batch has been scheduled.
func (s *Service) GenerateSimulation(ctx context.Context, req model.GenerationRequest) (model.WorkspaceRecord, error) {
	kind := model.WorkspaceSimulation
	gen, err := s.begin(ctx, kind, req)
	if err != nil {
		return model.WorkspaceRecord{}, err
	}

	scenario, err := s.gen.Simulation(ctx, req)
	if err != nil {
		return model.WorkspaceRecord{}, s.failPrimary(kind, gen, req, err)
	}

	seeds := []workspace.ItemSeed{
		{Prompt: scenario.ImagePrompts.Clinical, Subtype: model.ImageSubtypeClinical, Label: "Clinical view"},
		{Prompt: scenario.ImagePrompts.Radiological, Subtype: model.ImageSubtypeRadiological, Label: "Radiograph"},
		{Prompt: scenario.ImagePrompts.Exploded, Subtype: model.ImageSubtypeExploded, Label: "Exploded diagram"},
	}
	if err := s.store.PublishPrimary(kind, gen, scenario, seeds); err != nil {
		return model.WorkspaceRecord{}, err
	}
	s.notify(kind)
	s.store.AppendChat(model.ChatRoleAssistant, kind, truncate(scenario.Summary, maxChatSummaryLen), false)

	s.startBatch(kind, gen, seeds)
	s.store.Release(kind, gen)
	s.notify(kind)

	return s.store.Snapshot(kind)
}

// GenerateProtocol runs the practical protocol workspace. The in-flight
// flag is released right after the primary result so the user gets
// immediate feedback while step illustrations keep arriving.
func (s *Service) GenerateProtocol(ctx context.Context, req model.GenerationRequest) (model.WorkspaceRecord, error) {
	kind := model.WorkspaceProtocol
	gen, err := s.begin(ctx, kind, req)
	if err != nil {
		return model.WorkspaceRecord{}, err
	}

	plan, err := s.gen.Protocol(ctx, req)
	if err != nil {
		return model.WorkspaceRecord{}, s.failPrimary(kind, gen, req, err)
	}

	var seeds []workspace.ItemSeed
	for _, step := range plan.Steps {
		if strings.TrimSpace(step.ImagePrompt) == "" {
			continue
		}
		seeds = append(seeds, workspace.ItemSeed{
			Prompt:  step.ImagePrompt,
			Subtype: model.ImageSubtypeClinical,
			Label:   step.Title,
		})
	}
	if err := s.store.PublishPrimary(kind, gen, plan, seeds); err != nil {
		return model.WorkspaceRecord{}, err
	}
	s.store.Release(kind, gen)
	s.notify(kind)
	s.store.AppendChat(model.ChatRoleAssistant, kind, truncate(plan.Title, maxChatSummaryLen), false)

	s.startBatch(kind, gen, seeds)

	return s.store.Snapshot(kind)
}

// GenerateGallery runs the visual research workspace. Parse degradation
// inside the task guarantees at least three prompts, so the image batch
// always has work.
func (s *Service) GenerateGallery(ctx context.Context, req model.GenerationRequest) (model.WorkspaceRecord, error) {
	kind := model.WorkspaceGallery
	gen, err := s.begin(ctx, kind, req)
	if err != nil {
		return model.WorkspaceRecord{}, err
	}

	result, err := s.gen.Gallery(ctx, req)
	if err != nil {
		return model.WorkspaceRecord{}, s.failPrimary(kind, gen, req, err)
	}

	subtype := req.Subtype
	if subtype == "" {
		subtype = model.ImageSubtypeClinical
	}
	seeds := make([]workspace.ItemSeed, 0, len(result.Prompts))
	for _, prompt := range result.Prompts {
		seeds = append(seeds, workspace.ItemSeed{Prompt: prompt, Subtype: subtype})
	}
	if err := s.store.PublishPrimary(kind, gen, result, seeds); err != nil {
		return model.WorkspaceRecord{}, err
	}
	s.store.Release(kind, gen)
	s.notify(kind)
	s.store.AppendChat(model.ChatRoleAssistant, kind, gallerySummary(result, req.Topic), false)

	s.startBatch(kind, gen, seeds)

	return s.store.Snapshot(kind)
}

// GenerateQuiz runs the quiz workspace. No dependent sub-requests.
func (s *Service) GenerateQuiz(ctx context.Context, req model.GenerationRequest) (model.WorkspaceRecord, error) {
	kind := model.WorkspaceQuiz
	gen, err := s.begin(ctx, kind, req)
	if err != nil {
		return model.WorkspaceRecord{}, err
	}

	quiz, err := s.gen.Quiz(ctx, req)
	if err != nil {
		return model.WorkspaceRecord{}, s.failPrimary(kind, gen, req, err)
	}

	if err := s.store.PublishPrimary(kind, gen, quiz, nil); err != nil {
		return model.WorkspaceRecord{}, err
	}
	s.store.Release(kind, gen)
	s.notify(kind)
	s.store.AppendChat(model.ChatRoleAssistant, kind, quizSummary(quiz), false)

	return s.store.Snapshot(kind)
}

// Analyze runs the image-analysis task. It touches no workspace state.
func (s *Service) Analyze(ctx context.Context, data []byte, mimeType, language string) (*model.AnalysisResult, error) {
	return s.gen.Analyze(ctx, data, mimeType, language)
}

// Snapshot returns the current state of one workspace.
func (s *Service) Snapshot(kind model.WorkspaceKind) (model.WorkspaceRecord, error) {
	return s.store.Snapshot(kind)
}

// ChatLog returns the shared interaction history.
func (s *Service) ChatLog() []model.ChatEntry {
	return s.store.ChatLog()
}

// begin claims the workspace and logs the user submission.
func (s *Service) begin(ctx context.Context, kind model.WorkspaceKind, req model.GenerationRequest) (uint64, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return 0, model.ErrInvalidInput
	}
	gen, err := s.store.Begin(kind)
	if err != nil {
		return 0, err
	}
	s.store.AppendChat(model.ChatRoleUser, kind, req.Topic, false)
	s.notify(kind)
	s.logger.Info("Primary request started",
		zap.String("workspace", string(kind)),
		zap.Uint64("generation", gen),
		zap.String("topic", req.Topic),
	)
	return gen, nil
}

// failPrimary records a primary failure, leaving no partial content behind.
func (s *Service) failPrimary(kind model.WorkspaceKind, gen uint64, req model.GenerationRequest, err error) error {
	status := StatusMessage(err, req.Language)
	s.store.FailPrimary(kind, gen, status)
	s.store.AppendChat(model.ChatRoleAssistant, kind, status, true)
	s.notify(kind)
	s.logger.Warn("Primary request failed",
		zap.String("workspace", string(kind)),
		zap.Uint64("generation", gen),
		zap.String("classification", string(model.ClassifyError(err))),
		zap.Error(err),
	)
	return err
}

// startBatch launches the sequential image batch detached from the caller.
// The batch outlives the HTTP request, so it runs on a fresh context; the
// generation token guards every write against a superseding request.
func (s *Service) startBatch(kind model.WorkspaceKind, gen uint64, seeds []workspace.ItemSeed) {
	if len(seeds) == 0 {
		return
	}
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx := context.Background()
		s.runner.Run(ctx, string(kind), len(seeds), func(ctx context.Context, i int) batch.ItemResult {
			if !s.store.SetItemLoading(kind, gen, i) {
				return batch.ItemStale
			}
			s.notify(kind)

			url, err := s.gen.Image(ctx, seeds[i].Prompt, seeds[i].Subtype)
			if err != nil || url == "" {
				reason := "no image this time"
				if err != nil {
					reason = truncate(err.Error(), maxStatusLen)
				}
				if !s.store.SetItemFailed(kind, gen, i, reason) {
					return batch.ItemStale
				}
				s.notify(kind)
				return batch.ItemFailed
			}

			if !s.store.SetItemCompleted(kind, gen, i, url) {
				return batch.ItemStale
			}
			s.notify(kind)
			return batch.ItemSucceeded
		})
	}()
}
