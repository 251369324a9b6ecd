package repositories

import (
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TagRepo interface for tag database operations
type TagRepo interface {
	Create(tag *models.Tag) error
	FindByWorkspace(workspaceID uuid.UUID) ([]models.Tag, error)
	Resolve(workspaceID uuid.UUID, ref string) (*models.Tag, error)
	Apply(contact *models.Contact, tag *models.Tag) error
	AssignedIDs(contactID uuid.UUID) ([]uuid.UUID, error)
}

type tagRepo struct {
	db *gorm.DB
}

// NewTagRepo creates a new tag repository
func NewTagRepo(db *gorm.DB) TagRepo {
	return &tagRepo{db: db}
}

func (r *tagRepo) Create(tag *models.Tag) error {
	return r.db.Create(tag).Error
}

func (r *tagRepo) FindByWorkspace(workspaceID uuid.UUID) ([]models.Tag, error) {
	var tags []models.Tag
	err := r.db.Where("workspace_id = ?", workspaceID).Order("name").Find(&tags).Error
	return tags, err
}

// Resolve accepts either a tag id or a tag name; names match
// case-insensitively.
func (r *tagRepo) Resolve(workspaceID uuid.UUID, ref string) (*models.Tag, error) {
	var tag models.Tag
	if id, err := uuid.Parse(ref); err == nil {
		if err := r.db.Where("workspace_id = ? AND id = ?", workspaceID, id).First(&tag).Error; err == nil {
			return &tag, nil
		}
	}
	err := r.db.Where("workspace_id = ? AND LOWER(name) = LOWER(?)", workspaceID, ref).First(&tag).Error
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// Apply is idempotent: re-applying an assigned tag is a no-op.
func (r *tagRepo) Apply(contact *models.Contact, tag *models.Tag) error {
	assignment := models.ContactTag{
		ContactID:   contact.ID,
		TagID:       tag.ID,
		WorkspaceID: tag.WorkspaceID,
	}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&assignment).Error
}

func (r *tagRepo) AssignedIDs(contactID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.Model(&models.ContactTag{}).
		Where("contact_id = ?", contactID).
		Pluck("tag_id", &ids).Error
	return ids, err
}
