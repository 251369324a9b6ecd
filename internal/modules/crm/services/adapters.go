package services

import (
	"context"
	"time"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/flow"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/whatsapp"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/repositories"
	"github.com/google/uuid"
)

// The core packages speak in narrow context-aware interfaces; the adapters
// below wire them onto the gorm repositories and the WhatsApp service.

// GatewayAdapter exposes the WhatsApp service as the flow executor's gateway
// and the agent engine's sender.
type GatewayAdapter struct {
	wa *whatsapp.Service
}

func NewGatewayAdapter(wa *whatsapp.Service) *GatewayAdapter {
	return &GatewayAdapter{wa: wa}
}

func (g *GatewayAdapter) SendText(ctx context.Context, instance, address, text string) error {
	return g.wa.SendText(ctx, instance, address, text)
}

func (g *GatewayAdapter) SendReaction(ctx context.Context, instance, address, messageID, emoji string) error {
	return g.wa.SendReaction(ctx, instance, address, messageID, emoji)
}

func (g *GatewayAdapter) SendList(ctx context.Context, instance, address string, list flow.ListPayload) error {
	out := whatsapp.ListPayload{
		Title:      list.Title,
		Body:       list.Body,
		ButtonText: list.ButtonText,
	}
	for _, s := range list.Sections {
		section := whatsapp.ListSection{Title: s.Title}
		for _, r := range s.Rows {
			section.Rows = append(section.Rows, whatsapp.ListRow{
				ID:          r.ID,
				Title:       r.Title,
				Description: r.Description,
			})
		}
		out.Sections = append(out.Sections, section)
	}
	return g.wa.SendList(ctx, instance, address, out)
}

func (g *GatewayAdapter) StartTyping(instance, phoneNumber string) error {
	return g.wa.StartTyping(instance, phoneNumber)
}

func (g *GatewayAdapter) StopTyping(instance, phoneNumber string) error {
	return g.wa.StopTyping(instance, phoneNumber)
}

// TagStoreAdapter satisfies flow.TagStore.
type TagStoreAdapter struct {
	tags repositories.TagRepo
}

func NewTagStoreAdapter(tags repositories.TagRepo) *TagStoreAdapter {
	return &TagStoreAdapter{tags: tags}
}

func (a *TagStoreAdapter) Resolve(_ context.Context, workspaceID uuid.UUID, ref string) (*models.Tag, error) {
	return a.tags.Resolve(workspaceID, ref)
}

func (a *TagStoreAdapter) Apply(_ context.Context, contact *models.Contact, tag *models.Tag) error {
	return a.tags.Apply(contact, tag)
}

func (a *TagStoreAdapter) AssignedIDs(_ context.Context, contactID uuid.UUID) ([]uuid.UUID, error) {
	return a.tags.AssignedIDs(contactID)
}

// StageStoreAdapter satisfies flow.StageStore.
type StageStoreAdapter struct {
	stages repositories.StageRepo
}

func NewStageStoreAdapter(stages repositories.StageRepo) *StageStoreAdapter {
	return &StageStoreAdapter{stages: stages}
}

func (a *StageStoreAdapter) Resolve(_ context.Context, workspaceID uuid.UUID, ref string) (*models.Stage, error) {
	return a.stages.Resolve(workspaceID, ref)
}

// LogStoreAdapter satisfies flow.ExecutionLogStore and trigger.DedupStore.
type LogStoreAdapter struct {
	logs repositories.ExecutionLogRepo
}

func NewLogStoreAdapter(logs repositories.ExecutionLogRepo) *LogStoreAdapter {
	return &LogStoreAdapter{logs: logs}
}

func (a *LogStoreAdapter) Append(_ context.Context, entry *models.ExecutionLog) error {
	return a.logs.Append(entry)
}

func (a *LogStoreAdapter) HasRecentExecution(_ context.Context, botID, contactID uuid.UUID, since time.Time) (bool, error) {
	return a.logs.HasRecentExecution(botID, contactID, since)
}

// HistoryStoreAdapter satisfies flow.HistoryStore.
type HistoryStoreAdapter struct {
	history repositories.HistoryRepo
}

func NewHistoryStoreAdapter(history repositories.HistoryRepo) *HistoryStoreAdapter {
	return &HistoryStoreAdapter{history: history}
}

func (a *HistoryStoreAdapter) Append(_ context.Context, entry *models.ContactHistory) error {
	return a.history.Append(entry)
}

// CursorStoreAdapter satisfies flow.CursorStore.
type CursorStoreAdapter struct {
	cursors repositories.CursorRepo
}

func NewCursorStoreAdapter(cursors repositories.CursorRepo) *CursorStoreAdapter {
	return &CursorStoreAdapter{cursors: cursors}
}

func (a *CursorStoreAdapter) Advance(_ context.Context, botID uuid.UUID, nodeID string, candidateCount int) (int, error) {
	return a.cursors.Advance(botID, nodeID, candidateCount)
}

// ResumeQueueAdapter satisfies flow.ResumeQueue.
type ResumeQueueAdapter struct {
	queue repositories.QueueRepo
}

func NewResumeQueueAdapter(queue repositories.QueueRepo) *ResumeQueueAdapter {
	return &ResumeQueueAdapter{queue: queue}
}

func (a *ResumeQueueAdapter) Enqueue(_ context.Context, resume *models.FlowResume) error {
	return a.queue.EnqueueResume(resume)
}

// MemoryStoreAdapter satisfies agent.MemoryStore.
type MemoryStoreAdapter struct {
	memories repositories.MemoryRepo
}

func NewMemoryStoreAdapter(memories repositories.MemoryRepo) *MemoryStoreAdapter {
	return &MemoryStoreAdapter{memories: memories}
}

func (a *MemoryStoreAdapter) Get(_ context.Context, agentID uuid.UUID, sessionID string) (*models.ConversationMemory, error) {
	return a.memories.Get(agentID, sessionID)
}

func (a *MemoryStoreAdapter) Save(_ context.Context, memory *models.ConversationMemory) error {
	return a.memories.Save(memory)
}
