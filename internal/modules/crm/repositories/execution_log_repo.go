package repositories

import (
	"time"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ExecutionLogRepo interface for execution audit log operations
type ExecutionLogRepo interface {
	Append(entry *models.ExecutionLog) error
	HasRecentExecution(botID, contactID uuid.UUID, since time.Time) (bool, error)
	FindByBot(botID uuid.UUID, limit int) ([]models.ExecutionLog, error)
}

type executionLogRepo struct {
	db *gorm.DB
}

// NewExecutionLogRepo creates a new execution log repository
func NewExecutionLogRepo(db *gorm.DB) ExecutionLogRepo {
	return &executionLogRepo{db: db}
}

func (r *executionLogRepo) Append(entry *models.ExecutionLog) error {
	return r.db.Create(entry).Error
}

// HasRecentExecution checks for a trigger sentinel (empty node_id) newer
// than the window start. This is the trigger dedup query.
func (r *executionLogRepo) HasRecentExecution(botID, contactID uuid.UUID, since time.Time) (bool, error) {
	var count int64
	err := r.db.Model(&models.ExecutionLog{}).
		Where("bot_id = ? AND contact_id = ? AND node_id = '' AND created_at > ?", botID, contactID, since).
		Count(&count).Error
	return count > 0, err
}

func (r *executionLogRepo) FindByBot(botID uuid.UUID, limit int) ([]models.ExecutionLog, error) {
	var entries []models.ExecutionLog
	query := r.db.Where("bot_id = ?", botID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&entries).Error
	return entries, err
}
