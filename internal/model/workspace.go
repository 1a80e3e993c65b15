package model

import "time"

// WorkspaceKind identifies one of the four independent content workspaces.
type WorkspaceKind string

const (
	WorkspaceSimulation WorkspaceKind = "simulation"
	WorkspaceProtocol   WorkspaceKind = "protocol"
	WorkspaceGallery    WorkspaceKind = "gallery"
	WorkspaceQuiz       WorkspaceKind = "quiz"
)

// WorkspaceKinds lists every workspace in a stable order.
var WorkspaceKinds = []WorkspaceKind{
	WorkspaceSimulation,
	WorkspaceProtocol,
	WorkspaceGallery,
	WorkspaceQuiz,
}

// ParseWorkspaceKind validates a workspace name from the API surface.
func ParseWorkspaceKind(s string) (WorkspaceKind, error) {
	for _, k := range WorkspaceKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", ErrWorkspaceNotFound
}

// ItemStatus is the lifecycle state of one batch item. Transitions are
// monotonic per item: Pending/Loading move to Completed or Failed, both
// terminal within one generation.
type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemLoading   ItemStatus = "loading"
	ItemCompleted ItemStatus = "completed"
	ItemFailed    ItemStatus = "failed"
)

// Terminal reports whether the status may not change anymore.
func (s ItemStatus) Terminal() bool {
	return s == ItemCompleted || s == ItemFailed
}

// WorkspaceItem is one dependent sub-request (typically an image) derived
// from a primary result. ImageURL holds a self-contained data URL once the
// item completes.
type WorkspaceItem struct {
	Index    int          `json:"index"`
	Status   ItemStatus   `json:"status"`
	Prompt   string       `json:"prompt,omitempty"`
	Subtype  ImageSubtype `json:"subtype,omitempty"`
	Label    string       `json:"label,omitempty"`
	ImageURL string       `json:"imageUrl,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// WorkspaceRecord is a point-in-time snapshot of one workspace's state.
type WorkspaceRecord struct {
	Kind       WorkspaceKind   `json:"kind"`
	InFlight   bool            `json:"inFlight"`
	Generation uint64          `json:"generation"`
	Primary    interface{}     `json:"primary,omitempty"`
	Items      []WorkspaceItem `json:"items,omitempty"`
	Status     string          `json:"status,omitempty"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// ChatRole distinguishes user submissions from assistant summaries.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatEntry is one append-only interaction log record, shared across all
// workspaces.
type ChatEntry struct {
	ID        string        `json:"id"`
	Role      ChatRole      `json:"role"`
	Workspace WorkspaceKind `json:"workspace"`
	Text      string        `json:"text"`
	IsError   bool          `json:"isError,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// UpdateEvent is broadcast to subscribed clients whenever a workspace record
// changes.
type UpdateEvent struct {
	Workspace WorkspaceKind   `json:"workspace"`
	Record    WorkspaceRecord `json:"record"`
}
