package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/llm"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
)

// guardrail is appended to every system prompt regardless of how the agent is
// configured. Operators control persona and objective, not the safety floor.
const guardrail = "Never invent prices, discounts, or commitments that were not provided to you. " +
	"If you do not know something, say so and offer to connect the lead with a human teammate. " +
	"Stay on the topic of the business you represent."

// BuildSystemPrompt assembles the system block from the agent configuration
// and what is known about the contact so far.
func BuildSystemPrompt(agent *models.Agent, contact *models.Contact) string {
	var b strings.Builder

	if agent.Persona != "" {
		b.WriteString(agent.Persona)
		b.WriteString("\n\n")
	}
	if agent.Tone != "" {
		fmt.Fprintf(&b, "Tone: %s\n", agent.Tone)
	}
	if agent.Objective != "" {
		fmt.Fprintf(&b, "Objective: %s\n", agent.Objective)
	}
	switch agent.ResponseLength {
	case "short":
		b.WriteString("Keep replies to one or two sentences.\n")
	case "long":
		b.WriteString("Replies may be detailed, up to a few paragraphs.\n")
	default:
		b.WriteString("Keep replies concise, a short paragraph at most.\n")
	}

	if contact != nil {
		b.WriteString("\nLead profile:\n")
		if contact.Name != "" {
			fmt.Fprintf(&b, "- name: %s\n", contact.Name)
		}
		if contact.Source != "" {
			fmt.Fprintf(&b, "- source: %s\n", contact.Source)
		}
		if len(contact.Attributes) > 2 { // more than "{}"
			var attrs map[string]interface{}
			if err := json.Unmarshal(contact.Attributes, &attrs); err == nil {
				for k, v := range attrs {
					fmt.Fprintf(&b, "- %s: %v\n", k, v)
				}
			}
		}
	}

	b.WriteString("\n")
	b.WriteString(guardrail)
	return b.String()
}

// Tool names the model may call during free conversation.
const (
	ToolUpdateContact     = "update_contact"
	ToolApplyTag          = "apply_tag"
	ToolMoveStage         = "move_stage"
	ToolPauseConversation = "pause_conversation"
)

// conversationTools is the fixed toolset offered on every generation.
func conversationTools() []llm.Tool {
	return []llm.Tool{
		{
			Name:        ToolUpdateContact,
			Description: "Record a fact the lead shared (budget, company, timeline) on their CRM profile.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"field": map[string]interface{}{"type": "string", "description": "Attribute name, snake_case"},
					"value": map[string]interface{}{"type": "string"},
				},
				"required": []string{"field", "value"},
			},
		},
		{
			Name:        ToolApplyTag,
			Description: "Label the lead with an existing CRM tag, e.g. after they show strong intent.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"tag": map[string]interface{}{"type": "string", "description": "Tag name"},
				},
				"required": []string{"tag"},
			},
		},
		{
			Name:        ToolMoveStage,
			Description: "Move the lead to another pipeline stage when the conversation clearly progressed.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"stage": map[string]interface{}{"type": "string", "description": "Stage name"},
				},
				"required": []string{"stage"},
			},
		},
		{
			Name:        ToolPauseConversation,
			Description: "Stop replying and hand the conversation to a human teammate.",
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}
