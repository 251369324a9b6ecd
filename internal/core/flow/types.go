package flow

import (
	"context"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/google/uuid"
)

// Channel identifies where the triggering message came from. MessageID is
// empty for executions not anchored to an inbound message (queue resumes,
// new_contact triggers), which makes react nodes fail with a logged error.
type Channel struct {
	Instance  string
	MessageID string
}

// ListPayload is an interactive list message.
type ListPayload struct {
	Title      string
	Body       string
	ButtonText string
	Sections   []ListSection
}

type ListSection struct {
	Title string
	Rows  []ListRow
}

type ListRow struct {
	ID          string
	Title       string
	Description string
}

// Gateway sends outbound messages on a channel instance.
type Gateway interface {
	SendText(ctx context.Context, instance, address, text string) error
	SendReaction(ctx context.Context, instance, address, messageID, emoji string) error
	SendList(ctx context.Context, instance, address string, list ListPayload) error
}

// ContactWriter mutates contact ownership and pipeline position. MoveStage
// implementations own the side effects of a stage change (history entry,
// stage-automation enqueue).
type ContactWriter interface {
	AssignOwner(ctx context.Context, contact *models.Contact, owner string) error
	MoveStage(ctx context.Context, contact *models.Contact, stage *models.Stage) error
}

// TagStore resolves tag references from node config and applies them.
// Resolve accepts a tag id or a name and must match case-insensitively.
type TagStore interface {
	Resolve(ctx context.Context, workspaceID uuid.UUID, ref string) (*models.Tag, error)
	Apply(ctx context.Context, contact *models.Contact, tag *models.Tag) error
	AssignedIDs(ctx context.Context, contactID uuid.UUID) ([]uuid.UUID, error)
}

// StageStore resolves stage references from node config.
type StageStore interface {
	Resolve(ctx context.Context, workspaceID uuid.UUID, ref string) (*models.Stage, error)
}

// ExecutionLogStore appends audit entries. Append failures must not stop a
// walk, so implementations log and swallow.
type ExecutionLogStore interface {
	Append(ctx context.Context, entry *models.ExecutionLog) error
}

// HistoryStore appends contact activity entries.
type HistoryStore interface {
	Append(ctx context.Context, entry *models.ContactHistory) error
}

// CursorStore advances a round_robin rotation. Advance returns the candidate
// index for this execution and moves the cursor forward in the same atomic
// operation, so concurrent executions get distinct candidates.
type CursorStore interface {
	Advance(ctx context.Context, botID uuid.UUID, nodeID string, candidateCount int) (int, error)
}

// ResumeQueue persists a suspended walk created by a wait node.
type ResumeQueue interface {
	Enqueue(ctx context.Context, resume *models.FlowResume) error
}
