package repositories

import (
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StageRepo interface for pipeline stage database operations
type StageRepo interface {
	Create(stage *models.Stage) error
	FindByID(id uuid.UUID) (*models.Stage, error)
	FindByWorkspace(workspaceID uuid.UUID) ([]models.Stage, error)
	Resolve(workspaceID uuid.UUID, ref string) (*models.Stage, error)
}

type stageRepo struct {
	db *gorm.DB
}

// NewStageRepo creates a new stage repository
func NewStageRepo(db *gorm.DB) StageRepo {
	return &stageRepo{db: db}
}

func (r *stageRepo) Create(stage *models.Stage) error {
	return r.db.Create(stage).Error
}

func (r *stageRepo) FindByID(id uuid.UUID) (*models.Stage, error) {
	var stage models.Stage
	err := r.db.Where("id = ?", id).First(&stage).Error
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

func (r *stageRepo) FindByWorkspace(workspaceID uuid.UUID) ([]models.Stage, error) {
	var stages []models.Stage
	err := r.db.Where("workspace_id = ?", workspaceID).Order("position").Find(&stages).Error
	return stages, err
}

// Resolve accepts either a stage id or a stage name (case-insensitive).
func (r *stageRepo) Resolve(workspaceID uuid.UUID, ref string) (*models.Stage, error) {
	var stage models.Stage
	if id, err := uuid.Parse(ref); err == nil {
		if err := r.db.Where("workspace_id = ? AND id = ?", workspaceID, id).First(&stage).Error; err == nil {
			return &stage, nil
		}
	}
	err := r.db.Where("workspace_id = ? AND LOWER(name) = LOWER(?)", workspaceID, ref).First(&stage).Error
	if err != nil {
		return nil, err
	}
	return &stage, nil
}
