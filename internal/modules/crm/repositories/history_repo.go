package repositories

import (
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HistoryRepo interface for the contact activity trail
type HistoryRepo interface {
	Append(entry *models.ContactHistory) error
	FindByContact(contactID uuid.UUID, limit int) ([]models.ContactHistory, error)
}

type historyRepo struct {
	db *gorm.DB
}

// NewHistoryRepo creates a new contact history repository
func NewHistoryRepo(db *gorm.DB) HistoryRepo {
	return &historyRepo{db: db}
}

func (r *historyRepo) Append(entry *models.ContactHistory) error {
	return r.db.Create(entry).Error
}

func (r *historyRepo) FindByContact(contactID uuid.UUID, limit int) ([]models.ContactHistory, error) {
	var entries []models.ContactHistory
	query := r.db.Where("contact_id = ?", contactID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&entries).Error
	return entries, err
}
