package repositories

import (
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AutomationRepo interface for stage automation database operations
type AutomationRepo interface {
	Create(automation *models.StageAutomation) error
	Update(automation *models.StageAutomation) error
	Delete(id uuid.UUID) error
	FindByID(id uuid.UUID) (*models.StageAutomation, error)
	FindByWorkspace(workspaceID uuid.UUID) ([]models.StageAutomation, error)
	FindActiveByStage(stageID uuid.UUID, trigger string) ([]models.StageAutomation, error)
}

type automationRepo struct {
	db *gorm.DB
}

// NewAutomationRepo creates a new stage automation repository
func NewAutomationRepo(db *gorm.DB) AutomationRepo {
	return &automationRepo{db: db}
}

func (r *automationRepo) Create(automation *models.StageAutomation) error {
	return r.db.Create(automation).Error
}

func (r *automationRepo) Update(automation *models.StageAutomation) error {
	return r.db.Save(automation).Error
}

func (r *automationRepo) Delete(id uuid.UUID) error {
	return r.db.Where("id = ?", id).Delete(&models.StageAutomation{}).Error
}

func (r *automationRepo) FindByID(id uuid.UUID) (*models.StageAutomation, error) {
	var automation models.StageAutomation
	err := r.db.Where("id = ?", id).First(&automation).Error
	if err != nil {
		return nil, err
	}
	return &automation, nil
}

func (r *automationRepo) FindByWorkspace(workspaceID uuid.UUID) ([]models.StageAutomation, error) {
	var automations []models.StageAutomation
	err := r.db.Where("workspace_id = ?", workspaceID).Order("created_at").Find(&automations).Error
	return automations, err
}

func (r *automationRepo) FindActiveByStage(stageID uuid.UUID, trigger string) ([]models.StageAutomation, error) {
	var automations []models.StageAutomation
	err := r.db.Where("stage_id = ? AND trigger = ? AND is_active = ?", stageID, trigger, true).
		Order("created_at").Find(&automations).Error
	return automations, err
}
