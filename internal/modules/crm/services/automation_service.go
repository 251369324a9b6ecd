package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/agent"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/flow"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/trigger"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/whatsapp"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/repositories"
)

// flowRunner starts a flow walk. *flow.Executor satisfies this.
type flowRunner interface {
	Run(ctx context.Context, bot *models.Bot, contact *models.Contact, ch flow.Channel) error
}

// chatEngine handles one inbound turn of the AI conversation. *agent.Engine
// satisfies this.
type chatEngine interface {
	HandleInbound(ctx context.Context, ag *models.Agent, contact *models.Contact, instance, text string) (bool, error)
}

// AutomationService routes every inbound message: resolve the tenant, find
// or create the contact, try flow triggers first, and fall back to the AI
// agent. Flows always win over the agent for the same message.
type AutomationService struct {
	workspaces repositories.WorkspaceRepo
	contacts   repositories.ContactRepo
	bots       repositories.BotRepo
	agents     repositories.AgentRepo
	followups  repositories.FollowUpRepo
	history    repositories.HistoryRepo

	matcher *trigger.Matcher
	runner  flowRunner
	engine  chatEngine

	now func() time.Time
}

// NewAutomationService creates a new inbound automation service
func NewAutomationService(
	workspaces repositories.WorkspaceRepo,
	contacts repositories.ContactRepo,
	bots repositories.BotRepo,
	agents repositories.AgentRepo,
	followups repositories.FollowUpRepo,
	history repositories.HistoryRepo,
	matcher *trigger.Matcher,
	runner flowRunner,
	engine chatEngine,
) *AutomationService {
	return &AutomationService{
		workspaces: workspaces,
		contacts:   contacts,
		bots:       bots,
		agents:     agents,
		followups:  followups,
		history:    history,
		matcher:    matcher,
		runner:     runner,
		engine:     engine,
		now:        time.Now,
	}
}

// HandleInbound processes one normalized inbound message. Errors from
// routing lookups are logged and swallowed so a bad message never breaks
// the listener loop; only downstream execution errors propagate.
func (s *AutomationService) HandleInbound(ctx context.Context, msg whatsapp.InboundMessage) error {
	if msg.IsGroup {
		log.Printf("ℹ️ Skipping group message from %s", msg.Sender)
		return nil
	}

	ws, err := s.workspaces.FindByInstanceID(msg.Instance)
	if err != nil {
		log.Printf("⚠️ No workspace for instance %s, dropping message: %v", msg.Instance, err)
		return nil
	}
	if !ws.IsActive {
		log.Printf("ℹ️ Workspace %s is inactive, dropping message", ws.ID)
		return nil
	}

	contact, isNew, err := s.resolveContact(ws, msg)
	if err != nil {
		return err
	}
	if contact == nil {
		return nil
	}

	bots, err := s.bots.FindActiveByWorkspace(ws.ID)
	if err != nil {
		return fmt.Errorf("failed to load bots: %w", err)
	}

	event := trigger.Event{
		Instance:     msg.Instance,
		Sender:       msg.Sender,
		Text:         msg.Text,
		MessageID:    msg.MessageID,
		IsSelfSent:   msg.IsFromMe,
		IsNewContact: isNew,
	}
	bot, err := s.matcher.Match(ctx, bots, event, contact.ID)
	if err != nil {
		return err
	}
	if bot != nil {
		log.Printf("🤖 Bot %s triggered for contact %s", bot.Name, contact.ID)
		return s.runner.Run(ctx, bot, contact, flow.Channel{Instance: msg.Instance, MessageID: msg.MessageID})
	}

	// Nothing matched; hand the turn to the AI agent. Self-sent messages
	// never reach the agent, they would make it talk to the operator.
	if msg.IsFromMe {
		return nil
	}
	ag, err := s.agents.FindActiveByWorkspace(ws.ID)
	if err != nil {
		return fmt.Errorf("failed to load agent: %w", err)
	}
	if ag == nil {
		return nil
	}

	replied, err := s.engine.HandleInbound(ctx, ag, contact, msg.Instance, msg.Text)
	if err != nil {
		return err
	}

	s.rearmFollowUps(ag, contact, replied)
	return nil
}

// resolveContact looks up the sender, auto-creating a contact on first
// inbound message. Self-sent messages never create contacts.
func (s *AutomationService) resolveContact(ws *models.Workspace, msg whatsapp.InboundMessage) (*models.Contact, bool, error) {
	contact, err := s.contacts.FindByPhone(ws.ID, msg.Sender)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up contact: %w", err)
	}
	if contact != nil {
		return contact, false, nil
	}
	if msg.IsFromMe {
		return nil, false, nil
	}

	contact = &models.Contact{
		WorkspaceID: ws.ID,
		Name:        msg.Sender,
		Phone:       msg.Sender,
		Source:      "whatsapp",
	}
	if err := s.contacts.Create(contact); err != nil {
		return nil, false, fmt.Errorf("failed to create contact: %w", err)
	}
	if err := s.history.Append(&models.ContactHistory{
		ContactID:   contact.ID,
		WorkspaceID: ws.ID,
		Kind:        models.HistoryCreated,
		Detail:      "created from inbound WhatsApp message",
	}); err != nil {
		log.Printf("⚠️ Failed to record contact creation for %s: %v", contact.ID, err)
	}
	log.Printf("✅ New contact %s created for workspace %s", contact.ID, ws.ID)
	return contact, true, nil
}

// rearmFollowUps cancels the queued sequence now that the lead has spoken,
// and arms step 0 again counting from the agent's latest reply.
func (s *AutomationService) rearmFollowUps(ag *models.Agent, contact *models.Contact, replied bool) {
	if err := s.followups.CancelPendingForSession(ag.ID, contact.Phone, models.CancelReasonLeadResponded); err != nil {
		log.Printf("⚠️ Failed to cancel follow-ups for session %s: %v", contact.Phone, err)
	}
	if !replied {
		return
	}

	steps, err := agent.FollowUpSequence(ag)
	if err != nil {
		log.Printf("⚠️ Agent %s has a malformed follow-up sequence: %v", ag.ID, err)
		return
	}
	if len(steps) == 0 {
		return
	}

	item := &models.FollowUpQueueItem{
		AgentID:     ag.ID,
		ContactID:   contact.ID,
		SessionID:   contact.Phone,
		WorkspaceID: contact.WorkspaceID,
		StepIndex:   0,
		ExecuteAt:   s.now().Add(steps[0].Delay()),
		Status:      models.QueueStatusPending,
	}
	if err := s.followups.Enqueue(item); err != nil {
		log.Printf("⚠️ Failed to enqueue follow-up for session %s: %v", contact.Phone, err)
		return
	}
	log.Printf("⏸️ Follow-up armed for %s (step 0 at %s)", contact.Phone, item.ExecuteAt.Format(time.RFC3339))
}
