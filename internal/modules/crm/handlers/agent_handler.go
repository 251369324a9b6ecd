package handlers

import (
	"log"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/agent"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/repositories"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// AgentHandler handles AI agent configuration and memory inspection.
type AgentHandler struct {
	agents   repositories.AgentRepo
	memories repositories.MemoryRepo
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(agents repositories.AgentRepo, memories repositories.MemoryRepo) *AgentHandler {
	return &AgentHandler{agents: agents, memories: memories}
}

func (h *AgentHandler) CreateAgent(c *fiber.Ctx) error {
	workspaceID, err := uuid.Parse(c.Query("workspace_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "valid workspace_id is required",
		})
	}

	var ag models.Agent
	if err := c.BodyParser(&ag); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if ag.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name is required",
		})
	}
	if problem := validateAgentConfig(&ag); problem != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": problem,
		})
	}

	ag.ID = uuid.New()
	ag.WorkspaceID = workspaceID

	if err := h.agents.Create(&ag); err != nil {
		log.Printf("❌ Failed to create agent: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create agent",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status": "success",
		"data":   ag,
	})
}

func (h *AgentHandler) ListAgents(c *fiber.Ctx) error {
	workspaceID, err := uuid.Parse(c.Query("workspace_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "valid workspace_id is required",
		})
	}

	agents, err := h.agents.FindByWorkspace(workspaceID)
	if err != nil {
		log.Printf("❌ Failed to list agents: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to retrieve agents",
		})
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"count":  len(agents),
		"data":   agents,
	})
}

func (h *AgentHandler) GetAgent(c *fiber.Ctx) error {
	agentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid agent id format",
		})
	}

	ag, err := h.agents.FindByID(agentID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "agent not found",
		})
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"data":   ag,
	})
}

func (h *AgentHandler) UpdateAgent(c *fiber.Ctx) error {
	agentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid agent id format",
		})
	}

	existing, err := h.agents.FindByID(agentID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "agent not found",
		})
	}

	var ag models.Agent
	if err := c.BodyParser(&ag); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if problem := validateAgentConfig(&ag); problem != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": problem,
		})
	}

	// Identity and tenancy are immutable.
	ag.ID = existing.ID
	ag.WorkspaceID = existing.WorkspaceID
	ag.CreatedAt = existing.CreatedAt

	if err := h.agents.Update(&ag); err != nil {
		log.Printf("❌ Failed to update agent: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to update agent",
		})
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"data":   ag,
	})
}

// GetAgentMemory returns the stored conversation for one session, decoded
// into turns so the dashboard can render a transcript.
func (h *AgentHandler) GetAgentMemory(c *fiber.Ctx) error {
	agentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid agent id format",
		})
	}

	sessionID := c.Query("session_id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}

	memory, err := h.memories.Get(agentID, sessionID)
	if err != nil {
		log.Printf("❌ Failed to get memory: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to retrieve memory",
		})
	}
	if memory == nil {
		return c.JSON(fiber.Map{
			"status": "success",
			"data":   nil,
		})
	}

	turns, err := agent.DecodeTurns(memory)
	if err != nil {
		log.Printf("⚠️ Memory %s has malformed turns: %v", memory.ID, err)
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"data": fiber.Map{
			"session_id":         memory.SessionID,
			"is_paused":          memory.IsPaused,
			"qualification_step": memory.QualificationStep,
			"qualification_data": memory.QualificationData,
			"turns":              turns,
		},
	})
}

// validateAgentConfig rejects configs the engine would choke on at runtime.
func validateAgentConfig(ag *models.Agent) string {
	switch ag.DelayMode {
	case "", models.DelayModeNone, models.DelayModeFixed, models.DelayModeNatural:
	default:
		return "delay_mode must be none, fixed or natural"
	}
	if _, err := agent.ActiveQualificationFields(ag); err != nil {
		return "qualification_fields is malformed"
	}
	if _, err := agent.FollowUpSequence(ag); err != nil {
		return "followup_steps is malformed"
	}
	return ""
}
