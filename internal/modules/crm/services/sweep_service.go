package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/agent"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/condition"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/flow"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/repositories"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// actionExecutor performs deferred flow work. *flow.Executor satisfies this.
type actionExecutor interface {
	ExecuteAction(ctx context.Context, workspaceID uuid.UUID, actionType string, config map[string]interface{}, contact *models.Contact, ch flow.Channel) error
	Resume(ctx context.Context, bot *models.Bot, contact *models.Contact, ch flow.Channel, fromNodeID string) error
}

// followUpProcessor executes one claimed follow-up step. *agent.FollowUpRunner
// satisfies this.
type followUpProcessor interface {
	Process(ctx context.Context, item *models.FollowUpQueueItem, ag *models.Agent, contact *models.Contact, instance string) (*agent.FollowUpOutcome, error)
}

// stageMover moves a contact between stages. *StageService satisfies this.
type stageMover interface {
	ChangeStage(ctx context.Context, contact *models.Contact, stage *models.Stage) error
}

// SweepSummary reports how many items each queue executed in one pass.
type SweepSummary struct {
	Automations int `json:"automations"`
	FollowUps   int `json:"followups"`
	Resumes     int `json:"resumes"`
}

// SweepService drains the three due-work queues: stage automations, flow
// resumes and follow-ups. Each item is claimed pending→in_progress before
// any side effect, so concurrent sweeps never double-dispatch. Per-item
// failures are recorded on the item and never abort the pass.
type SweepService struct {
	queue       repositories.QueueRepo
	followups   repositories.FollowUpRepo
	automations repositories.AutomationRepo
	bots        repositories.BotRepo
	agents      repositories.AgentRepo
	contacts    repositories.ContactRepo
	workspaces  repositories.WorkspaceRepo
	stages      repositories.StageRepo
	tags        repositories.TagRepo

	executor    actionExecutor
	runner      followUpProcessor
	transitions stageMover

	batchSize int
	now       func() time.Time
}

// NewSweepService creates a new queue sweep service
func NewSweepService(
	queue repositories.QueueRepo,
	followups repositories.FollowUpRepo,
	automations repositories.AutomationRepo,
	bots repositories.BotRepo,
	agents repositories.AgentRepo,
	contacts repositories.ContactRepo,
	workspaces repositories.WorkspaceRepo,
	stages repositories.StageRepo,
	tags repositories.TagRepo,
	executor actionExecutor,
	runner followUpProcessor,
	transitions stageMover,
	batchSize int,
) *SweepService {
	return &SweepService{
		queue:       queue,
		followups:   followups,
		automations: automations,
		bots:        bots,
		agents:      agents,
		contacts:    contacts,
		workspaces:  workspaces,
		stages:      stages,
		tags:        tags,
		executor:    executor,
		runner:      runner,
		transitions: transitions,
		batchSize:   batchSize,
		now:         time.Now,
	}
}

// Sweep runs one pass over all three queues.
func (s *SweepService) Sweep(ctx context.Context) (SweepSummary, error) {
	now := s.now()
	summary := SweepSummary{
		Automations: s.sweepAutomations(ctx, now),
		Resumes:     s.sweepResumes(ctx, now),
		FollowUps:   s.sweepFollowUps(ctx, now),
	}
	log.Printf("🔄 Sweep done: %d automations, %d resumes, %d follow-ups",
		summary.Automations, summary.Resumes, summary.FollowUps)
	return summary, nil
}

func (s *SweepService) sweepAutomations(ctx context.Context, now time.Time) int {
	items, err := s.queue.DueAutomations(now, s.batchSize)
	if err != nil {
		log.Printf("❌ Failed to load due automations: %v", err)
		return 0
	}

	executed := 0
	for i := range items {
		item := &items[i]
		claimed, err := s.queue.ClaimAutomation(item.ID)
		if err != nil || !claimed {
			continue
		}

		status, runErr := s.runAutomation(ctx, item)
		errMsg := ""
		if runErr != nil {
			errMsg = runErr.Error()
			log.Printf("❌ Automation item %s failed: %v", item.ID, runErr)
		}
		if err := s.queue.FinishAutomation(item.ID, status, errMsg); err != nil {
			log.Printf("⚠️ Failed to finish automation item %s: %v", item.ID, err)
		}
		if status == models.QueueStatusExecuted {
			executed++
		}
	}
	return executed
}

// runAutomation re-evaluates the automation's conditions against the
// contact's current state before acting. A condition that stopped matching
// since enqueue time completes the item as a no-op instead of firing a
// stale action.
func (s *SweepService) runAutomation(ctx context.Context, item *models.AutomationQueueItem) (string, error) {
	automation, err := s.automations.FindByID(item.AutomationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.QueueStatusCanceled, nil
		}
		return models.QueueStatusError, err
	}
	if !automation.IsActive {
		return models.QueueStatusCanceled, nil
	}

	contact, err := s.contacts.FindByID(item.ContactID)
	if err != nil {
		return models.QueueStatusError, fmt.Errorf("failed to load contact: %w", err)
	}

	var conditions []condition.Condition
	if len(automation.Conditions) > 0 {
		if err := json.Unmarshal(automation.Conditions, &conditions); err != nil {
			return models.QueueStatusError, fmt.Errorf("malformed conditions: %w", err)
		}
	}
	tagIDs, err := s.tags.AssignedIDs(contact.ID)
	if err != nil {
		return models.QueueStatusError, fmt.Errorf("failed to load contact tags: %w", err)
	}

	switch condition.Evaluate(conditions, contact, tagIDs) {
	case condition.Unsupported:
		return models.QueueStatusError, fmt.Errorf("automation %s has an unsupported condition", automation.ID)
	case condition.Unmatched:
		log.Printf("ℹ️ Automation item %s completed without action, conditions no longer match", item.ID)
		return models.QueueStatusExecuted, nil
	}

	ws, err := s.workspaces.FindByID(item.WorkspaceID)
	if err != nil {
		return models.QueueStatusError, fmt.Errorf("failed to load workspace: %w", err)
	}

	var cfg map[string]interface{}
	if len(automation.ActionConfig) > 0 {
		if err := json.Unmarshal(automation.ActionConfig, &cfg); err != nil {
			return models.QueueStatusError, fmt.Errorf("malformed action config: %w", err)
		}
	}

	ch := flow.Channel{Instance: ws.InstanceID}
	if err := s.executor.ExecuteAction(ctx, item.WorkspaceID, automation.ActionType, cfg, contact, ch); err != nil {
		return models.QueueStatusError, err
	}
	return models.QueueStatusExecuted, nil
}

func (s *SweepService) sweepResumes(ctx context.Context, now time.Time) int {
	resumes, err := s.queue.DueResumes(now, s.batchSize)
	if err != nil {
		log.Printf("❌ Failed to load due resumes: %v", err)
		return 0
	}

	executed := 0
	for i := range resumes {
		resume := &resumes[i]
		claimed, err := s.queue.ClaimResume(resume.ID)
		if err != nil || !claimed {
			continue
		}

		status, runErr := s.runResume(ctx, resume)
		errMsg := ""
		if runErr != nil {
			errMsg = runErr.Error()
			log.Printf("❌ Flow resume %s failed: %v", resume.ID, runErr)
		}
		if err := s.queue.FinishResume(resume.ID, status, errMsg); err != nil {
			log.Printf("⚠️ Failed to finish resume %s: %v", resume.ID, err)
		}
		if status == models.QueueStatusExecuted {
			executed++
		}
	}
	return executed
}

func (s *SweepService) runResume(ctx context.Context, resume *models.FlowResume) (string, error) {
	bot, err := s.bots.FindByID(resume.BotID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.QueueStatusCanceled, nil
		}
		return models.QueueStatusError, err
	}
	if !bot.IsActive {
		log.Printf("ℹ️ Resume %s canceled, bot %s was deactivated while waiting", resume.ID, bot.ID)
		return models.QueueStatusCanceled, nil
	}

	contact, err := s.contacts.FindByID(resume.ContactID)
	if err != nil {
		return models.QueueStatusError, fmt.Errorf("failed to load contact: %w", err)
	}

	// Resumes are not anchored to an inbound message, so MessageID stays
	// empty and react nodes past the wait fail with a logged error.
	ch := flow.Channel{Instance: resume.Instance}
	if err := s.executor.Resume(ctx, bot, contact, ch, resume.NodeID); err != nil {
		return models.QueueStatusError, err
	}
	return models.QueueStatusExecuted, nil
}

func (s *SweepService) sweepFollowUps(ctx context.Context, now time.Time) int {
	items, err := s.followups.Due(now, s.batchSize)
	if err != nil {
		log.Printf("❌ Failed to load due follow-ups: %v", err)
		return 0
	}

	executed := 0
	for i := range items {
		item := &items[i]
		claimed, err := s.followups.Claim(item.ID)
		if err != nil || !claimed {
			continue
		}
		if s.runFollowUp(ctx, item) {
			executed++
		}
	}
	return executed
}

func (s *SweepService) runFollowUp(ctx context.Context, item *models.FollowUpQueueItem) bool {
	ag, err := s.agents.FindByID(item.AgentID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.finishFollowUp(item.ID, models.QueueStatusError, "", err)
		return false
	}

	contact, err := s.contacts.FindByID(item.ContactID)
	if err != nil {
		s.finishFollowUp(item.ID, models.QueueStatusError, "", fmt.Errorf("failed to load contact: %w", err))
		return false
	}

	instance := ""
	if ws, err := s.workspaces.FindByID(item.WorkspaceID); err == nil {
		instance = ws.InstanceID
	}

	outcome, err := s.runner.Process(ctx, item, ag, contact, instance)
	if err != nil {
		s.finishFollowUp(item.ID, models.QueueStatusError, "", err)
		return false
	}

	s.finishFollowUp(item.ID, outcome.Status, outcome.CanceledReason, nil)

	if outcome.NextStep != nil {
		if err := s.followups.Enqueue(outcome.NextStep); err != nil {
			log.Printf("⚠️ Failed to enqueue next follow-up for session %s: %v", item.SessionID, err)
		}
	}

	if outcome.SequenceFinished && ag != nil && ag.FollowUpStageID != nil {
		s.moveToEndStage(ctx, contact, *ag.FollowUpStageID)
	}

	return outcome.Status == models.QueueStatusExecuted
}

func (s *SweepService) finishFollowUp(id uuid.UUID, status, canceledReason string, runErr error) {
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
		log.Printf("❌ Follow-up %s failed: %v", id, runErr)
	}
	if err := s.followups.Finish(id, status, canceledReason, errMsg); err != nil {
		log.Printf("⚠️ Failed to finish follow-up %s: %v", id, err)
	}
}

func (s *SweepService) moveToEndStage(ctx context.Context, contact *models.Contact, stageID uuid.UUID) {
	stage, err := s.stages.FindByID(stageID)
	if err != nil {
		log.Printf("⚠️ End-of-sequence stage %s not found: %v", stageID, err)
		return
	}
	if err := s.transitions.ChangeStage(ctx, contact, stage); err != nil {
		log.Printf("⚠️ Failed to move contact %s to end-of-sequence stage: %v", contact.ID, err)
	}
}
