package repositories

import (
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BotRepo interface for bot flow database operations
type BotRepo interface {
	Create(bot *models.Bot) error
	Update(bot *models.Bot) error
	Delete(id uuid.UUID) error
	FindByID(id uuid.UUID) (*models.Bot, error)
	FindByWorkspace(workspaceID uuid.UUID) ([]models.Bot, error)
	FindActiveByWorkspace(workspaceID uuid.UUID) ([]models.Bot, error)
}

type botRepo struct {
	db *gorm.DB
}

// NewBotRepo creates a new bot repository
func NewBotRepo(db *gorm.DB) BotRepo {
	return &botRepo{db: db}
}

func (r *botRepo) Create(bot *models.Bot) error {
	return r.db.Create(bot).Error
}

func (r *botRepo) Update(bot *models.Bot) error {
	return r.db.Save(bot).Error
}

func (r *botRepo) Delete(id uuid.UUID) error {
	return r.db.Where("id = ?", id).Delete(&models.Bot{}).Error
}

func (r *botRepo) FindByID(id uuid.UUID) (*models.Bot, error) {
	var bot models.Bot
	err := r.db.Where("id = ?", id).First(&bot).Error
	if err != nil {
		return nil, err
	}
	return &bot, nil
}

func (r *botRepo) FindByWorkspace(workspaceID uuid.UUID) ([]models.Bot, error) {
	var bots []models.Bot
	err := r.db.Where("workspace_id = ?", workspaceID).Order("position").Find(&bots).Error
	return bots, err
}

// FindActiveByWorkspace returns active bots in position order, which is the
// trigger-matching priority.
func (r *botRepo) FindActiveByWorkspace(workspaceID uuid.UUID) ([]models.Bot, error) {
	var bots []models.Bot
	err := r.db.Where("workspace_id = ? AND is_active = ?", workspaceID, true).Order("position").Find(&bots).Error
	return bots, err
}
