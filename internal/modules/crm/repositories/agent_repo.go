package repositories

import (
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AgentRepo interface for AI agent database operations
type AgentRepo interface {
	Create(agent *models.Agent) error
	Update(agent *models.Agent) error
	Delete(id uuid.UUID) error
	FindByID(id uuid.UUID) (*models.Agent, error)
	FindByWorkspace(workspaceID uuid.UUID) ([]models.Agent, error)
	FindActiveByWorkspace(workspaceID uuid.UUID) (*models.Agent, error)
}

type agentRepo struct {
	db *gorm.DB
}

// NewAgentRepo creates a new agent repository
func NewAgentRepo(db *gorm.DB) AgentRepo {
	return &agentRepo{db: db}
}

func (r *agentRepo) Create(agent *models.Agent) error {
	return r.db.Create(agent).Error
}

func (r *agentRepo) Update(agent *models.Agent) error {
	return r.db.Save(agent).Error
}

func (r *agentRepo) Delete(id uuid.UUID) error {
	return r.db.Where("id = ?", id).Delete(&models.Agent{}).Error
}

func (r *agentRepo) FindByID(id uuid.UUID) (*models.Agent, error) {
	var agent models.Agent
	err := r.db.Where("id = ?", id).First(&agent).Error
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func (r *agentRepo) FindByWorkspace(workspaceID uuid.UUID) ([]models.Agent, error) {
	var agents []models.Agent
	err := r.db.Where("workspace_id = ?", workspaceID).Order("created_at").Find(&agents).Error
	return agents, err
}

// FindActiveByWorkspace returns the workspace's active agent, or (nil, nil)
// when none is enabled. One active agent per workspace handles inbound chat.
func (r *agentRepo) FindActiveByWorkspace(workspaceID uuid.UUID) (*models.Agent, error) {
	var agent models.Agent
	err := r.db.Where("workspace_id = ? AND is_active = ?", workspaceID, true).
		Order("created_at").First(&agent).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}
