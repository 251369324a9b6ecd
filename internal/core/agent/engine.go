package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/llm"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/google/uuid"
)

// fallbackReply is sent when generation fails for a reason that is not a
// rate-limit or quota problem. Billing problems get silence instead: the
// lead should not receive an apology every few seconds.
const fallbackReply = "Sorry, I can't respond right now. A teammate will get back to you shortly."

// pauseAck is the visible note sent when the lead triggers the pause code.
const pauseAck = "Got it — a human teammate will take over from here."

// MemoryStore loads and persists conversation memories. Get returns
// (nil, nil) when no memory exists for the session yet.
type MemoryStore interface {
	Get(ctx context.Context, agentID uuid.UUID, sessionID string) (*models.ConversationMemory, error)
	Save(ctx context.Context, memory *models.ConversationMemory) error
}

// ContactMutator applies tool-call effects to the CRM record. Name-based
// lookups resolve within the workspace, case-insensitively.
type ContactMutator interface {
	SetAttribute(ctx context.Context, contact *models.Contact, key, value string) error
	ApplyTagByName(ctx context.Context, workspaceID uuid.UUID, contact *models.Contact, name string) error
	MoveStageByName(ctx context.Context, workspaceID uuid.UUID, contact *models.Contact, name string) error
}

// Sender delivers outbound messages and drives the typing indicator.
type Sender interface {
	SendText(ctx context.Context, instance, phoneNumber, text string) error
	StartTyping(instance, phoneNumber string) error
	StopTyping(instance, phoneNumber string) error
}

// Generator produces completions. *llm.Service satisfies this.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (*llm.Result, error)
}

// Engine drives one conversational turn: pause handling, the qualification
// stepper, then free conversation with tool calls.
type Engine struct {
	sender    Sender
	generator Generator
	memories  MemoryStore
	contacts  ContactMutator

	sleep   func(d time.Duration)
	randInt func(n int) int
	now     func() time.Time
}

func NewEngine(sender Sender, generator Generator, memories MemoryStore, contacts ContactMutator) *Engine {
	return &Engine{
		sender:    sender,
		generator: generator,
		memories:  memories,
		contacts:  contacts,
		sleep:     time.Sleep,
		randInt:   defaultRandInt,
		now:       time.Now,
	}
}

// HandleInbound processes one lead message. It returns true when the agent
// produced a reply (including the pause acknowledgement).
func (e *Engine) HandleInbound(ctx context.Context, ag *models.Agent, contact *models.Contact, instance, text string) (bool, error) {
	sessionID := contact.Phone

	memory, err := e.memories.Get(ctx, ag.ID, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to load conversation memory: %w", err)
	}
	isNewSession := memory == nil
	if isNewSession {
		memory = &models.ConversationMemory{
			AgentID:     ag.ID,
			SessionID:   sessionID,
			ContactID:   contact.ID,
			WorkspaceID: ag.WorkspaceID,
		}
	}

	// Paused sessions still record the lead's turns, they just get no reply
	// until the resume keyword shows up.
	if memory.IsPaused {
		if ag.ResumeKeyword != "" && containsFold(text, ag.ResumeKeyword) {
			memory.IsPaused = false
			log.Printf("▶️ Agent %s resumed for session %s", ag.ID, sessionID)
		} else {
			if err := AppendTurn(memory, Turn{Role: RoleContact, Content: text, At: e.now()}); err != nil {
				return false, err
			}
			return false, e.memories.Save(ctx, memory)
		}
	}

	if ag.PauseCode != "" && containsFold(text, ag.PauseCode) {
		memory.IsPaused = true
		if err := AppendTurn(memory, Turn{Role: RoleContact, Content: text, At: e.now()}); err != nil {
			return false, err
		}
		if err := e.sender.SendText(ctx, instance, contact.Phone, pauseAck); err != nil {
			log.Printf("❌ Failed to send pause acknowledgement: %v", err)
		}
		if err := AppendTurn(memory, Turn{Role: RoleAgent, Content: pauseAck, At: e.now()}); err != nil {
			return false, err
		}
		log.Printf("⏸️ Agent %s paused for session %s", ag.ID, sessionID)
		return true, e.memories.Save(ctx, memory)
	}

	if err := AppendTurn(memory, Turn{Role: RoleContact, Content: text, At: e.now()}); err != nil {
		return false, err
	}

	if ag.QualificationEnabled && !memory.QualificationDone {
		handled, err := e.stepQualification(ctx, ag, contact, memory, instance, text, isNewSession)
		if err != nil {
			return false, err
		}
		if handled {
			return true, nil
		}
		// Qualification just completed: the same message flows into free
		// conversation below.
	}

	return e.freeConversation(ctx, ag, contact, memory, instance)
}

// stepQualification advances the scripted intake. Returns true when it sent
// the next question (the turn is consumed); false when the script is done and
// free conversation should take over.
func (e *Engine) stepQualification(ctx context.Context, ag *models.Agent, contact *models.Contact, memory *models.ConversationMemory, instance, text string, isNewSession bool) (bool, error) {
	fields, err := ActiveQualificationFields(ag)
	if err != nil {
		return false, err
	}
	if len(fields) == 0 {
		memory.QualificationDone = true
		return false, nil
	}

	if isNewSession {
		// First contact: open with question zero, answer comes next turn.
		memory.QualificationStep = 0
		return true, e.askQuestion(ctx, contact, memory, instance, fields[0].Question)
	}

	step := memory.QualificationStep
	if step >= len(fields) {
		memory.QualificationDone = true
		return false, nil
	}

	if err := e.recordAnswer(ctx, contact, memory, fields[step], text); err != nil {
		return false, err
	}

	memory.QualificationStep = step + 1
	if memory.QualificationStep >= len(fields) {
		memory.QualificationDone = true
		log.Printf("✅ Qualification complete for session %s", memory.SessionID)
		return false, nil
	}

	return true, e.askQuestion(ctx, contact, memory, instance, fields[memory.QualificationStep].Question)
}

func (e *Engine) askQuestion(ctx context.Context, contact *models.Contact, memory *models.ConversationMemory, instance, question string) error {
	if err := e.sender.SendText(ctx, instance, contact.Phone, question); err != nil {
		return fmt.Errorf("failed to send qualification question: %w", err)
	}
	if err := AppendTurn(memory, Turn{Role: RoleAgent, Content: question, At: e.now()}); err != nil {
		return err
	}
	return e.memories.Save(ctx, memory)
}

func (e *Engine) recordAnswer(ctx context.Context, contact *models.Contact, memory *models.ConversationMemory, field QualificationField, answer string) error {
	data := map[string]string{}
	if len(memory.QualificationData) > 0 {
		if err := json.Unmarshal(memory.QualificationData, &data); err != nil {
			log.Printf("⚠️ Resetting unreadable qualification data for session %s: %v", memory.SessionID, err)
			data = map[string]string{}
		}
	}
	data[field.Field] = answer

	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode qualification data: %w", err)
	}
	memory.QualificationData = encoded

	if field.ContactAttribute != "" {
		if err := e.contacts.SetAttribute(ctx, contact, field.ContactAttribute, answer); err != nil {
			log.Printf("⚠️ Failed to mirror %s onto contact %s: %v", field.ContactAttribute, contact.ID, err)
		}
	}
	return nil
}

func (e *Engine) freeConversation(ctx context.Context, ag *models.Agent, contact *models.Contact, memory *models.ConversationMemory, instance string) (bool, error) {
	turns, err := DecodeTurns(memory)
	if err != nil {
		return false, err
	}

	window := ag.ContextWindow
	if window <= 0 {
		window = 20
	}
	if len(turns) > window {
		turns = turns[len(turns)-window:]
	}

	req := llm.Request{
		Model:       ag.Model,
		Temperature: ag.Temperature,
		MaxTokens:   ag.MaxTokens,
		Tools:       conversationTools(),
		Messages:    []llm.Message{{Role: llm.RoleSystem, Content: BuildSystemPrompt(ag, contact)}},
	}
	for _, t := range turns {
		req.Messages = append(req.Messages, llm.Message{Role: t.Role, Content: t.Content})
	}

	llmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	result, err := e.generator.Generate(llmCtx, req)
	if err != nil {
		if errors.Is(err, llm.ErrRateLimited) || errors.Is(err, llm.ErrQuotaExhausted) {
			log.Printf("🚫 LLM unavailable (%v), staying silent for session %s", err, memory.SessionID)
			return false, e.memories.Save(ctx, memory)
		}
		log.Printf("❌ AI error: %v", err)
		result = &llm.Result{Text: fallbackReply}
	}

	// Tool effects land before the reply so the lead's next message already
	// sees the updated CRM state.
	e.applyToolCalls(ctx, ag, contact, memory, result.ToolCalls)

	reply := strings.TrimSpace(result.Text)
	if reply == "" {
		// Tool-only responses are valid; nothing to send.
		return false, e.memories.Save(ctx, memory)
	}

	if delay := ResponseDelay(ag, e.randInt); delay > 0 {
		if err := e.sender.StartTyping(instance, contact.Phone); err != nil {
			log.Printf("⚠️ Failed to start typing indicator: %v", err)
		}
		e.sleep(delay)
		if err := e.sender.StopTyping(instance, contact.Phone); err != nil {
			log.Printf("⚠️ Failed to stop typing indicator: %v", err)
		}
	}

	if err := e.sender.SendText(ctx, instance, contact.Phone, reply); err != nil {
		return false, fmt.Errorf("failed to send reply: %w", err)
	}

	if err := AppendTurn(memory, Turn{Role: RoleAgent, Content: reply, At: e.now()}); err != nil {
		return false, err
	}
	return true, e.memories.Save(ctx, memory)
}

func (e *Engine) applyToolCalls(ctx context.Context, ag *models.Agent, contact *models.Contact, memory *models.ConversationMemory, calls []llm.ToolCall) {
	for _, call := range calls {
		var err error
		switch call.Name {
		case ToolUpdateContact:
			field, _ := call.Arguments["field"].(string)
			value, _ := call.Arguments["value"].(string)
			if field == "" {
				err = fmt.Errorf("update_contact without a field")
			} else {
				err = e.contacts.SetAttribute(ctx, contact, field, value)
			}
		case ToolApplyTag:
			tag, _ := call.Arguments["tag"].(string)
			err = e.contacts.ApplyTagByName(ctx, ag.WorkspaceID, contact, tag)
		case ToolMoveStage:
			stage, _ := call.Arguments["stage"].(string)
			err = e.contacts.MoveStageByName(ctx, ag.WorkspaceID, contact, stage)
		case ToolPauseConversation:
			memory.IsPaused = true
			log.Printf("⏸️ Agent %s paused itself for session %s", ag.ID, memory.SessionID)
		default:
			err = fmt.Errorf("unknown tool: %s", call.Name)
		}
		if err != nil {
			// A bad tool call must not cost the lead their reply.
			log.Printf("⚠️ Tool call %s failed: %v", call.Name, err)
		}
	}
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func defaultRandInt(n int) int {
	return rand.Intn(n)
}
