package repositories

import (
	"errors"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MemoryRepo interface for conversation memory database operations
type MemoryRepo interface {
	Get(agentID uuid.UUID, sessionID string) (*models.ConversationMemory, error)
	Save(memory *models.ConversationMemory) error
}

type memoryRepo struct {
	db *gorm.DB
}

// NewMemoryRepo creates a new conversation memory repository
func NewMemoryRepo(db *gorm.DB) MemoryRepo {
	return &memoryRepo{db: db}
}

// Get returns (nil, nil) when the session has no memory yet.
func (r *memoryRepo) Get(agentID uuid.UUID, sessionID string) (*models.ConversationMemory, error) {
	var memory models.ConversationMemory
	err := r.db.Where("agent_id = ? AND session_id = ?", agentID, sessionID).First(&memory).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &memory, nil
}

func (r *memoryRepo) Save(memory *models.ConversationMemory) error {
	return r.db.Save(memory).Error
}
