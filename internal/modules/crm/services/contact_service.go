package services

import (
	"context"
	"fmt"
	"log"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/repositories"
	"github.com/google/uuid"
)

// ContactService applies contact mutations on behalf of the flow executor
// and the agent engine's tool calls. Stage moves delegate to StageService so
// the enqueue/cancel side effects happen no matter who moved the contact.
type ContactService struct {
	contacts    repositories.ContactRepo
	tags        repositories.TagRepo
	stages      repositories.StageRepo
	history     repositories.HistoryRepo
	transitions *StageService
}

// NewContactService creates a new contact mutation service
func NewContactService(
	contacts repositories.ContactRepo,
	tags repositories.TagRepo,
	stages repositories.StageRepo,
	history repositories.HistoryRepo,
	transitions *StageService,
) *ContactService {
	return &ContactService{
		contacts:    contacts,
		tags:        tags,
		stages:      stages,
		history:     history,
		transitions: transitions,
	}
}

// AssignOwner hands the contact to a salesperson and records the handoff.
func (s *ContactService) AssignOwner(ctx context.Context, contact *models.Contact, owner string) error {
	contact.Owner = owner
	if err := s.contacts.Update(contact); err != nil {
		return fmt.Errorf("failed to assign owner: %w", err)
	}
	if err := s.history.Append(&models.ContactHistory{
		ContactID:   contact.ID,
		WorkspaceID: contact.WorkspaceID,
		Kind:        models.HistoryReassigned,
		Detail:      fmt.Sprintf("assigned to %s", owner),
	}); err != nil {
		log.Printf("⚠️ Failed to record reassignment for contact %s: %v", contact.ID, err)
	}
	return nil
}

func (s *ContactService) MoveStage(ctx context.Context, contact *models.Contact, stage *models.Stage) error {
	return s.transitions.ChangeStage(ctx, contact, stage)
}

func (s *ContactService) SetAttribute(ctx context.Context, contact *models.Contact, key, value string) error {
	return s.contacts.SetAttribute(contact, key, value)
}

func (s *ContactService) ApplyTagByName(ctx context.Context, workspaceID uuid.UUID, contact *models.Contact, name string) error {
	tag, err := s.tags.Resolve(workspaceID, name)
	if err != nil {
		return fmt.Errorf("tag %q not found: %w", name, err)
	}
	return s.tags.Apply(contact, tag)
}

func (s *ContactService) MoveStageByName(ctx context.Context, workspaceID uuid.UUID, contact *models.Contact, name string) error {
	stage, err := s.stages.Resolve(workspaceID, name)
	if err != nil {
		return fmt.Errorf("stage %q not found: %w", name, err)
	}
	return s.transitions.ChangeStage(ctx, contact, stage)
}
