package agent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
)

// Turn roles follow the chat-completion convention so history maps straight
// onto LLM messages.
const (
	RoleContact = "user"
	RoleAgent   = "assistant"
)

// Turn is one utterance in a conversation memory.
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// QualificationField is one question of the scripted intake stepper.
// ContactAttribute, when set, mirrors the captured answer onto the contact
// record under that key.
type QualificationField struct {
	Field            string `json:"field"`
	Question         string `json:"question"`
	Active           bool   `json:"active"`
	ContactAttribute string `json:"contact_attribute,omitempty"`
}

// FollowUpStep is one step of the re-engagement sequence.
type FollowUpStep struct {
	DelayValue int    `json:"delay_value"`
	DelayUnit  string `json:"delay_unit"` // minutes, hours, days
	Prompt     string `json:"prompt"`
}

// Delay converts the step's delay config into a duration. Unknown units fall
// back to hours.
func (s FollowUpStep) Delay() time.Duration {
	switch s.DelayUnit {
	case "minutes":
		return time.Duration(s.DelayValue) * time.Minute
	case "days":
		return time.Duration(s.DelayValue) * 24 * time.Hour
	default:
		return time.Duration(s.DelayValue) * time.Hour
	}
}

// DecodeTurns parses the memory's message JSONB.
func DecodeTurns(memory *models.ConversationMemory) ([]Turn, error) {
	if memory == nil || len(memory.Messages) == 0 {
		return nil, nil
	}
	var turns []Turn
	if err := json.Unmarshal(memory.Messages, &turns); err != nil {
		return nil, fmt.Errorf("failed to parse conversation turns: %w", err)
	}
	return turns, nil
}

// AppendTurn appends one turn to the memory's message JSONB.
func AppendTurn(memory *models.ConversationMemory, turn Turn) error {
	turns, err := DecodeTurns(memory)
	if err != nil {
		return err
	}
	turns = append(turns, turn)
	encoded, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("failed to encode conversation turns: %w", err)
	}
	memory.Messages = encoded
	return nil
}

// ActiveQualificationFields decodes and filters the agent's intake script.
func ActiveQualificationFields(agent *models.Agent) ([]QualificationField, error) {
	if len(agent.QualificationFields) == 0 {
		return nil, nil
	}
	var fields []QualificationField
	if err := json.Unmarshal(agent.QualificationFields, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse qualification fields: %w", err)
	}
	active := fields[:0]
	for _, f := range fields {
		if f.Active {
			active = append(active, f)
		}
	}
	return active, nil
}

// FollowUpSequence decodes the agent's follow-up steps.
func FollowUpSequence(agent *models.Agent) ([]FollowUpStep, error) {
	if len(agent.FollowUpSteps) == 0 {
		return nil, nil
	}
	var steps []FollowUpStep
	if err := json.Unmarshal(agent.FollowUpSteps, &steps); err != nil {
		return nil, fmt.Errorf("failed to parse follow-up steps: %w", err)
	}
	return steps, nil
}

func lastTurn(turns []Turn) *Turn {
	if len(turns) == 0 {
		return nil
	}
	return &turns[len(turns)-1]
}
