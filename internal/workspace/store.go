// Package workspace holds the in-memory state of the four content
// workspaces. Each record has an independent lifecycle: an operation in one
// workspace never blocks or corrupts another. Nothing here survives the
// process; persistence is deliberately absent.
package workspace

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"medsim-server/internal/model"
)

// ItemSeed describes one batch item to create alongside a primary result.
type ItemSeed struct {
	Prompt  string
	Subtype model.ImageSubtype
	Label   string
}

type record struct {
	inFlight   bool
	generation uint64
	primary    interface{}
	items      []model.WorkspaceItem
	status     string
	updatedAt  time.Time
}

// Store owns the four workspace records and the shared chat log.
// Every background write is guarded by the generation captured when its
// request began, so sub-requests of a superseded batch can never resurrect
// replaced items.
type Store struct {
	logger *zap.Logger

	mu      sync.RWMutex
	records map[model.WorkspaceKind]*record
	chat    []model.ChatEntry
	now     func() time.Time
}

// NewStore builds a Store with one empty record per workspace kind.
func NewStore(logger *zap.Logger) *Store {
	records := make(map[model.WorkspaceKind]*record, len(model.WorkspaceKinds))
	for _, kind := range model.WorkspaceKinds {
		records[kind] = &record{}
	}
	return &Store{
		logger:  logger.Named("workspace"),
		records: records,
		now:     time.Now,
	}
}

// Begin starts a new primary request for a workspace. It refuses a second
// request while one is already in flight, bumps the generation counter and
// clears the previous request's content.
func (s *Store) Begin(kind model.WorkspaceKind) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[kind]
	if !ok {
		return 0, model.ErrWorkspaceNotFound
	}
	if rec.inFlight {
		return 0, model.ErrWorkspaceBusy
	}

	rec.inFlight = true
	rec.generation++
	rec.primary = nil
	rec.items = nil
	rec.status = ""
	rec.updatedAt = s.now()

	s.logger.Debug("Workspace request started",
		zap.String("workspace", string(kind)),
		zap.Uint64("generation", rec.generation),
	)
	return rec.generation, nil
}

// PublishPrimary records the primary result of the given generation and
// creates its batch items in Pending state. A stale generation is discarded.
func (s *Store) PublishPrimary(kind model.WorkspaceKind, generation uint64, primary interface{}, seeds []ItemSeed) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.current(kind, generation)
	if err != nil {
		return err
	}

	rec.primary = primary
	rec.items = make([]model.WorkspaceItem, 0, len(seeds))
	for i, seed := range seeds {
		rec.items = append(rec.items, model.WorkspaceItem{
			Index:   i,
			Status:  model.ItemPending,
			Prompt:  seed.Prompt,
			Subtype: seed.Subtype,
			Label:   seed.Label,
		})
	}
	rec.updatedAt = s.now()
	return nil
}

// Release clears the in-flight flag for the given generation.
func (s *Store) Release(kind model.WorkspaceKind, generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.current(kind, generation)
	if err != nil {
		return
	}
	rec.inFlight = false
	rec.updatedAt = s.now()
}

// FailPrimary records a primary-task failure: the in-flight flag is cleared
// and a user-facing status is set. No partial content is written.
func (s *Store) FailPrimary(kind model.WorkspaceKind, generation uint64, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.current(kind, generation)
	if err != nil {
		return
	}
	rec.inFlight = false
	rec.status = status
	rec.updatedAt = s.now()
}

// SetItemLoading marks an item as in progress. It reports false when the
// write belongs to a superseded generation or the item already reached a
// terminal state.
func (s *Store) SetItemLoading(kind model.WorkspaceKind, generation uint64, index int) bool {
	return s.setItem(kind, generation, index, func(item *model.WorkspaceItem) {
		item.Status = model.ItemLoading
	})
}

// SetItemCompleted records an item's produced image. Terminal.
func (s *Store) SetItemCompleted(kind model.WorkspaceKind, generation uint64, index int, imageURL string) bool {
	return s.setItem(kind, generation, index, func(item *model.WorkspaceItem) {
		item.Status = model.ItemCompleted
		item.ImageURL = imageURL
	})
}

// SetItemFailed records an item failure. Terminal.
func (s *Store) SetItemFailed(kind model.WorkspaceKind, generation uint64, index int, reason string) bool {
	return s.setItem(kind, generation, index, func(item *model.WorkspaceItem) {
		item.Status = model.ItemFailed
		item.Error = reason
	})
}

func (s *Store) setItem(kind model.WorkspaceKind, generation uint64, index int, apply func(*model.WorkspaceItem)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.current(kind, generation)
	if err != nil {
		s.logger.Debug("Discarding stale item write",
			zap.String("workspace", string(kind)),
			zap.Uint64("generation", generation),
			zap.Int("index", index),
		)
		return false
	}
	if index < 0 || index >= len(rec.items) {
		return false
	}
	if rec.items[index].Status.Terminal() {
		// Item transitions are monotonic; never revisit a settled item.
		return false
	}
	apply(&rec.items[index])
	rec.updatedAt = s.now()
	return true
}

// current returns the record when the generation is still live.
func (s *Store) current(kind model.WorkspaceKind, generation uint64) (*record, error) {
	rec, ok := s.records[kind]
	if !ok {
		return nil, model.ErrWorkspaceNotFound
	}
	if rec.generation != generation {
		return nil, model.ErrStaleGeneration
	}
	return rec, nil
}

// Snapshot returns a point-in-time copy of one workspace record.
func (s *Store) Snapshot(kind model.WorkspaceKind) (model.WorkspaceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[kind]
	if !ok {
		return model.WorkspaceRecord{}, model.ErrWorkspaceNotFound
	}
	items := make([]model.WorkspaceItem, len(rec.items))
	copy(items, rec.items)
	return model.WorkspaceRecord{
		Kind:       kind,
		InFlight:   rec.inFlight,
		Generation: rec.generation,
		Primary:    rec.primary,
		Items:      items,
		Status:     rec.status,
		UpdatedAt:  rec.updatedAt,
	}, nil
}

// AppendChat appends one entry to the shared interaction log.
func (s *Store) AppendChat(role model.ChatRole, kind model.WorkspaceKind, text string, isError bool) model.ChatEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := model.ChatEntry{
		ID:        uuid.NewString(),
		Role:      role,
		Workspace: kind,
		Text:      text,
		IsError:   isError,
		CreatedAt: s.now(),
	}
	s.chat = append(s.chat, entry)
	return entry
}

// ChatLog returns a copy of the append-only interaction log.
func (s *Store) ChatLog() []model.ChatEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ChatEntry, len(s.chat))
	copy(out, s.chat)
	return out
}
