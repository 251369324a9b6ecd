package repositories

import (
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WorkspaceRepo interface for workspace database operations
type WorkspaceRepo interface {
	Create(workspace *models.Workspace) error
	FindByID(id uuid.UUID) (*models.Workspace, error)
	FindByInstanceID(instanceID string) (*models.Workspace, error)
}

type workspaceRepo struct {
	db *gorm.DB
}

// NewWorkspaceRepo creates a new workspace repository
func NewWorkspaceRepo(db *gorm.DB) WorkspaceRepo {
	return &workspaceRepo{db: db}
}

func (r *workspaceRepo) Create(workspace *models.Workspace) error {
	return r.db.Create(workspace).Error
}

func (r *workspaceRepo) FindByID(id uuid.UUID) (*models.Workspace, error) {
	var workspace models.Workspace
	err := r.db.Where("id = ?", id).First(&workspace).Error
	if err != nil {
		return nil, err
	}
	return &workspace, nil
}

func (r *workspaceRepo) FindByInstanceID(instanceID string) (*models.Workspace, error) {
	var workspace models.Workspace
	err := r.db.Where("instance_id = ?", instanceID).First(&workspace).Error
	if err != nil {
		return nil, err
	}
	return &workspace, nil
}
