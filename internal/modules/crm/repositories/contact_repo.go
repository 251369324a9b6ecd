package repositories

import (
	"encoding/json"
	"errors"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContactRepo interface for contact database operations
type ContactRepo interface {
	Create(contact *models.Contact) error
	Update(contact *models.Contact) error
	FindByID(id uuid.UUID) (*models.Contact, error)
	FindByPhone(workspaceID uuid.UUID, phone string) (*models.Contact, error)
	FindByWorkspace(workspaceID uuid.UUID) ([]models.Contact, error)
	SetAttribute(contact *models.Contact, key, value string) error
}

type contactRepo struct {
	db *gorm.DB
}

// NewContactRepo creates a new contact repository
func NewContactRepo(db *gorm.DB) ContactRepo {
	return &contactRepo{db: db}
}

func (r *contactRepo) Create(contact *models.Contact) error {
	return r.db.Create(contact).Error
}

func (r *contactRepo) Update(contact *models.Contact) error {
	return r.db.Save(contact).Error
}

func (r *contactRepo) FindByID(id uuid.UUID) (*models.Contact, error) {
	var contact models.Contact
	err := r.db.Where("id = ?", id).First(&contact).Error
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// FindByPhone returns (nil, nil) when no contact exists yet; callers use
// that to auto-create on first inbound message.
func (r *contactRepo) FindByPhone(workspaceID uuid.UUID, phone string) (*models.Contact, error) {
	var contact models.Contact
	err := r.db.Where("workspace_id = ? AND phone = ?", workspaceID, phone).First(&contact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

func (r *contactRepo) FindByWorkspace(workspaceID uuid.UUID) ([]models.Contact, error) {
	var contacts []models.Contact
	err := r.db.Where("workspace_id = ?", workspaceID).Order("created_at DESC").Find(&contacts).Error
	return contacts, err
}

// SetAttribute merges one key into the contact's attributes JSONB and
// persists only that column.
func (r *contactRepo) SetAttribute(contact *models.Contact, key, value string) error {
	attrs := map[string]interface{}{}
	if len(contact.Attributes) > 0 {
		if err := json.Unmarshal(contact.Attributes, &attrs); err != nil {
			attrs = map[string]interface{}{}
		}
	}
	attrs[key] = value

	encoded, err := json.Marshal(attrs)
	if err != nil {
		return err
	}
	contact.Attributes = encoded

	return r.db.Model(&models.Contact{}).
		Where("id = ?", contact.ID).
		Update("attributes", contact.Attributes).Error
}
