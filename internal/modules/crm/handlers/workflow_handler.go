package handlers

import (
	"encoding/json"
	"log"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/flow"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/repositories"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// WorkflowHandler handles flow-bot CRUD. Definitions are validated at save
// time; a graph that fails validation is never stored, so the executor only
// ever sees structurally sound flows.
type WorkflowHandler struct {
	bots repositories.BotRepo
	logs repositories.ExecutionLogRepo
}

// NewWorkflowHandler creates a new workflow handler
func NewWorkflowHandler(bots repositories.BotRepo, logs repositories.ExecutionLogRepo) *WorkflowHandler {
	return &WorkflowHandler{bots: bots, logs: logs}
}

// SaveWorkflowRequest carries a bot definition for create and update.
type SaveWorkflowRequest struct {
	Name           string          `json:"name"`
	TriggerType    string          `json:"trigger_type"`
	TriggerKeyword string          `json:"trigger_keyword"`
	InstanceID     string          `json:"instance_id"`
	Nodes          json.RawMessage `json:"nodes"`
	Edges          json.RawMessage `json:"edges"`
	IsActive       *bool           `json:"is_active"`
	Position       *int            `json:"position"`
}

var validTriggers = map[string]bool{
	models.TriggerMessageReceived: true,
	models.TriggerKeyword:         true,
	models.TriggerNewContact:      true,
}

// validate checks the request and returns cycle warnings on success.
func (r *SaveWorkflowRequest) validate() ([]string, string) {
	if r.Name == "" {
		return nil, "name is required"
	}
	if !validTriggers[r.TriggerType] {
		return nil, "trigger_type must be message_received, keyword or new_contact"
	}
	if r.TriggerType == models.TriggerKeyword && r.TriggerKeyword == "" {
		return nil, "trigger_keyword is required for keyword triggers"
	}

	nodes, edges, err := flow.ParseDefinition(r.Nodes, r.Edges)
	if err != nil {
		return nil, err.Error()
	}
	warnings, err := flow.ValidateDefinition(nodes, edges)
	if err != nil {
		return nil, err.Error()
	}
	return warnings, ""
}

func (h *WorkflowHandler) CreateWorkflow(c *fiber.Ctx) error {
	workspaceID, err := uuid.Parse(c.Query("workspace_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "valid workspace_id is required",
		})
	}

	var req SaveWorkflowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	warnings, problem := req.validate()
	if problem != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": problem,
		})
	}

	bot := &models.Bot{
		ID:             uuid.New(),
		WorkspaceID:    workspaceID,
		Name:           req.Name,
		TriggerType:    req.TriggerType,
		TriggerKeyword: req.TriggerKeyword,
		InstanceID:     req.InstanceID,
		Nodes:          datatypesJSON(req.Nodes),
		Edges:          datatypesJSON(req.Edges),
		IsActive:       true,
	}
	if req.IsActive != nil {
		bot.IsActive = *req.IsActive
	}
	if req.Position != nil {
		bot.Position = *req.Position
	}

	if err := h.bots.Create(bot); err != nil {
		log.Printf("❌ Failed to create workflow: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create workflow",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":   "success",
		"data":     bot,
		"warnings": warnings,
	})
}

func (h *WorkflowHandler) ListWorkflows(c *fiber.Ctx) error {
	workspaceID, err := uuid.Parse(c.Query("workspace_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "valid workspace_id is required",
		})
	}

	bots, err := h.bots.FindByWorkspace(workspaceID)
	if err != nil {
		log.Printf("❌ Failed to list workflows: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to retrieve workflows",
		})
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"count":  len(bots),
		"data":   bots,
	})
}

func (h *WorkflowHandler) GetWorkflow(c *fiber.Ctx) error {
	botID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid workflow id format",
		})
	}

	bot, err := h.bots.FindByID(botID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "workflow not found",
		})
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"data":   bot,
	})
}

func (h *WorkflowHandler) UpdateWorkflow(c *fiber.Ctx) error {
	botID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid workflow id format",
		})
	}

	bot, err := h.bots.FindByID(botID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "workflow not found",
		})
	}

	var req SaveWorkflowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	warnings, problem := req.validate()
	if problem != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": problem,
		})
	}

	bot.Name = req.Name
	bot.TriggerType = req.TriggerType
	bot.TriggerKeyword = req.TriggerKeyword
	bot.InstanceID = req.InstanceID
	bot.Nodes = datatypesJSON(req.Nodes)
	bot.Edges = datatypesJSON(req.Edges)
	if req.IsActive != nil {
		bot.IsActive = *req.IsActive
	}
	if req.Position != nil {
		bot.Position = *req.Position
	}

	if err := h.bots.Update(bot); err != nil {
		log.Printf("❌ Failed to update workflow: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to update workflow",
		})
	}

	return c.JSON(fiber.Map{
		"status":   "success",
		"data":     bot,
		"warnings": warnings,
	})
}

func (h *WorkflowHandler) DeleteWorkflow(c *fiber.Ctx) error {
	botID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid workflow id format",
		})
	}

	if err := h.bots.Delete(botID); err != nil {
		log.Printf("❌ Failed to delete workflow: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete workflow",
		})
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Workflow deleted successfully",
	})
}

func (h *WorkflowHandler) GetWorkflowExecutions(c *fiber.Ctx) error {
	botID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid workflow id format",
		})
	}

	limit := c.QueryInt("limit", 50)

	executions, err := h.logs.FindByBot(botID, limit)
	if err != nil {
		log.Printf("❌ Failed to get executions: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to retrieve executions",
		})
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"count":  len(executions),
		"data":   executions,
	})
}

func datatypesJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("[]")
	}
	return raw
}
