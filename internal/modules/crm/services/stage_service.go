package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/repositories"
	"github.com/google/uuid"
)

// StageService owns the side effects of moving a contact between funnel
// stages: the history entry, canceling queued work from the stage being
// left, and enqueueing the new stage's automations. Every stage move in the
// engine goes through ChangeStage, whatever triggered it.
type StageService struct {
	contacts    repositories.ContactRepo
	stages      repositories.StageRepo
	automations repositories.AutomationRepo
	queue       repositories.QueueRepo
	history     repositories.HistoryRepo

	now func() time.Time
}

// NewStageService creates a new stage transition service
func NewStageService(
	contacts repositories.ContactRepo,
	stages repositories.StageRepo,
	automations repositories.AutomationRepo,
	queue repositories.QueueRepo,
	history repositories.HistoryRepo,
) *StageService {
	return &StageService{
		contacts:    contacts,
		stages:      stages,
		automations: automations,
		queue:       queue,
		history:     history,
		now:         time.Now,
	}
}

// ChangeStage moves the contact to the given stage. Moving to the stage the
// contact is already in is a no-op.
func (s *StageService) ChangeStage(ctx context.Context, contact *models.Contact, stage *models.Stage) error {
	if contact.StageID != nil && *contact.StageID == stage.ID {
		return nil
	}

	oldStageID := contact.StageID
	if oldStageID != nil {
		s.cancelQueuedWork(contact, *oldStageID)
		if err := s.enqueueStageAutomations(contact, *oldStageID, models.StageTriggerOnExit); err != nil {
			return err
		}
	}

	contact.StageID = &stage.ID
	if err := s.contacts.Update(contact); err != nil {
		return fmt.Errorf("failed to move contact to stage %s: %w", stage.Name, err)
	}

	detail := fmt.Sprintf("moved to stage %s", stage.Name)
	if oldStageID != nil {
		if old, err := s.stages.FindByID(*oldStageID); err == nil {
			detail = fmt.Sprintf("moved from stage %s to %s", old.Name, stage.Name)
		}
	}
	if err := s.history.Append(&models.ContactHistory{
		ContactID:   contact.ID,
		WorkspaceID: contact.WorkspaceID,
		Kind:        models.HistoryStageChange,
		Detail:      detail,
	}); err != nil {
		log.Printf("⚠️ Failed to record stage change for contact %s: %v", contact.ID, err)
	}

	if err := s.enqueueStageAutomations(contact, stage.ID, models.StageTriggerOnEnter); err != nil {
		return err
	}
	if err := s.enqueueStageAutomations(contact, stage.ID, models.StageTriggerAfterTime); err != nil {
		return err
	}

	log.Printf("✅ Contact %s moved to stage %s", contact.ID, stage.Name)
	return nil
}

// cancelQueuedWork voids pending queue items from the stage the contact is
// leaving. Conditions are re-checked at execution time anyway, but an
// on_enter/after_time item for a stage the contact already left should never
// fire at all.
func (s *StageService) cancelQueuedWork(contact *models.Contact, stageID uuid.UUID) {
	for _, trig := range []string{models.StageTriggerOnEnter, models.StageTriggerAfterTime} {
		automations, err := s.automations.FindActiveByStage(stageID, trig)
		if err != nil {
			log.Printf("⚠️ Failed to load %s automations for stage %s: %v", trig, stageID, err)
			continue
		}
		for _, a := range automations {
			if err := s.queue.CancelPendingAutomations(contact.ID, a.ID); err != nil {
				log.Printf("⚠️ Failed to cancel queued automation %s for contact %s: %v", a.ID, contact.ID, err)
			}
		}
	}
}

func (s *StageService) enqueueStageAutomations(contact *models.Contact, stageID uuid.UUID, trig string) error {
	automations, err := s.automations.FindActiveByStage(stageID, trig)
	if err != nil {
		return fmt.Errorf("failed to load %s automations: %w", trig, err)
	}

	for _, a := range automations {
		item := &models.AutomationQueueItem{
			AutomationID: a.ID,
			ContactID:    contact.ID,
			WorkspaceID:  contact.WorkspaceID,
			ExecuteAt:    s.now().Add(time.Duration(a.DelayHours) * time.Hour),
			Status:       models.QueueStatusPending,
		}
		if err := s.queue.EnqueueAutomation(item); err != nil {
			return fmt.Errorf("failed to enqueue automation %s: %w", a.ID, err)
		}
		log.Printf("🔄 Enqueued %s automation %s for contact %s (execute at %s)",
			trig, a.ID, contact.ID, item.ExecuteAt.Format(time.RFC3339))
	}
	return nil
}
