package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/llm"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
)

// followUpFallback is the deterministic nudge used when generation fails.
// Re-engagement must not silently stall on a provider hiccup.
const followUpFallback = "Hi! Just checking in — is this still something you're interested in?"

// FollowUpOutcome tells the sweep what happened to a claimed queue item.
type FollowUpOutcome struct {
	Status         string // executed or canceled
	CanceledReason string
	Sent           string // message text, empty when canceled

	// NextStep is the follow-up to enqueue after this one, nil at sequence end.
	NextStep *models.FollowUpQueueItem

	// SequenceFinished is set after the last step so the caller can move the
	// contact to the agent's end-of-sequence stage, if one is configured.
	SequenceFinished bool
}

// FollowUpRunner executes one due follow-up step. Claiming, persistence and
// stage movement stay with the caller; the runner decides and sends.
type FollowUpRunner struct {
	sender    Sender
	generator Generator
	memories  MemoryStore

	now func() time.Time
}

func NewFollowUpRunner(sender Sender, generator Generator, memories MemoryStore) *FollowUpRunner {
	return &FollowUpRunner{
		sender:    sender,
		generator: generator,
		memories:  memories,
		now:       time.Now,
	}
}

// Process runs one claimed follow-up item. Cancellation rules, in order:
// the agent was disabled, or the lead responded since the step was enqueued
// (their turn is the newest in memory, meaning no agent reply followed it).
func (r *FollowUpRunner) Process(ctx context.Context, item *models.FollowUpQueueItem, ag *models.Agent, contact *models.Contact, instance string) (*FollowUpOutcome, error) {
	if ag == nil || !ag.IsActive {
		log.Printf("🚫 Follow-up %s canceled: agent disabled", item.ID)
		return &FollowUpOutcome{
			Status:         models.QueueStatusCanceled,
			CanceledReason: models.CancelReasonAgentDisabled,
		}, nil
	}

	memory, err := r.memories.Get(ctx, item.AgentID, item.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation memory: %w", err)
	}

	var turns []Turn
	if memory != nil {
		turns, err = DecodeTurns(memory)
		if err != nil {
			return nil, err
		}
	}
	if last := lastTurn(turns); last != nil && last.Role == RoleContact {
		log.Printf("🚫 Follow-up %s canceled: lead responded", item.ID)
		return &FollowUpOutcome{
			Status:         models.QueueStatusCanceled,
			CanceledReason: models.CancelReasonLeadResponded,
		}, nil
	}

	steps, err := FollowUpSequence(ag)
	if err != nil {
		return nil, err
	}
	if item.StepIndex < 0 || item.StepIndex >= len(steps) {
		return nil, fmt.Errorf("follow-up step %d out of range (%d steps)", item.StepIndex, len(steps))
	}
	step := steps[item.StepIndex]

	text := r.generateNudge(ctx, ag, contact, turns, step)
	if err := r.sender.SendText(ctx, instance, contact.Phone, text); err != nil {
		return nil, fmt.Errorf("failed to send follow-up: %w", err)
	}

	if memory == nil {
		memory = &models.ConversationMemory{
			AgentID:     item.AgentID,
			SessionID:   item.SessionID,
			ContactID:   item.ContactID,
			WorkspaceID: item.WorkspaceID,
		}
	}
	if err := AppendTurn(memory, Turn{Role: RoleAgent, Content: text, At: r.now()}); err != nil {
		return nil, err
	}
	if err := r.memories.Save(ctx, memory); err != nil {
		return nil, fmt.Errorf("failed to save conversation memory: %w", err)
	}

	outcome := &FollowUpOutcome{Status: models.QueueStatusExecuted, Sent: text}

	nextIndex := item.StepIndex + 1
	if nextIndex < len(steps) {
		outcome.NextStep = &models.FollowUpQueueItem{
			AgentID:     item.AgentID,
			ContactID:   item.ContactID,
			SessionID:   item.SessionID,
			WorkspaceID: item.WorkspaceID,
			StepIndex:   nextIndex,
			ExecuteAt:   r.now().Add(steps[nextIndex].Delay()),
			Status:      models.QueueStatusPending,
		}
	} else {
		outcome.SequenceFinished = true
	}
	return outcome, nil
}

// generateNudge asks the model to phrase the step prompt against the
// conversation so far, falling back to a canned line on any failure.
func (r *FollowUpRunner) generateNudge(ctx context.Context, ag *models.Agent, contact *models.Contact, turns []Turn, step FollowUpStep) string {
	if r.generator == nil {
		return followUpFallback
	}

	req := llm.Request{
		Model:       ag.Model,
		Temperature: ag.Temperature,
		MaxTokens:   ag.MaxTokens,
		Messages:    []llm.Message{{Role: llm.RoleSystem, Content: BuildSystemPrompt(ag, contact)}},
	}

	window := ag.ContextWindow
	if window <= 0 {
		window = 20
	}
	if len(turns) > window {
		turns = turns[len(turns)-window:]
	}
	for _, t := range turns {
		req.Messages = append(req.Messages, llm.Message{Role: t.Role, Content: t.Content})
	}
	req.Messages = append(req.Messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: "The lead went quiet. Write the next outreach message following this instruction: " + step.Prompt,
	})

	llmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	result, err := r.generator.Generate(llmCtx, req)
	if err != nil {
		log.Printf("⚠️ Follow-up generation failed, using fallback: %v", err)
		return followUpFallback
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return followUpFallback
	}
	return text
}
