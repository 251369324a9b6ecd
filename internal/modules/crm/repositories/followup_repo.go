package repositories

import (
	"time"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FollowUpRepo interface for the follow-up sequence queue
type FollowUpRepo interface {
	Enqueue(item *models.FollowUpQueueItem) error
	Due(now time.Time, limit int) ([]models.FollowUpQueueItem, error)
	Claim(id uuid.UUID) (bool, error)
	Finish(id uuid.UUID, status, canceledReason, errMsg string) error
	CancelPendingForSession(agentID uuid.UUID, sessionID, reason string) error
}

type followUpRepo struct {
	db *gorm.DB
}

// NewFollowUpRepo creates a new follow-up queue repository
func NewFollowUpRepo(db *gorm.DB) FollowUpRepo {
	return &followUpRepo{db: db}
}

func (r *followUpRepo) Enqueue(item *models.FollowUpQueueItem) error {
	return r.db.Create(item).Error
}

func (r *followUpRepo) Due(now time.Time, limit int) ([]models.FollowUpQueueItem, error) {
	var items []models.FollowUpQueueItem
	query := r.db.Where("status = ? AND execute_at <= ?", models.QueueStatusPending, now).Order("execute_at")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&items).Error
	return items, err
}

// Claim flips pending→in_progress atomically before any send happens.
func (r *followUpRepo) Claim(id uuid.UUID) (bool, error) {
	result := r.db.Model(&models.FollowUpQueueItem{}).
		Where("id = ? AND status = ?", id, models.QueueStatusPending).
		Update("status", models.QueueStatusInProgress)
	return result.RowsAffected > 0, result.Error
}

func (r *followUpRepo) Finish(id uuid.UUID, status, canceledReason, errMsg string) error {
	return r.db.Model(&models.FollowUpQueueItem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          status,
			"canceled_reason": canceledReason,
			"error":           errMsg,
		}).Error
}

// CancelPendingForSession voids the whole queued sequence for one session,
// used when the lead responds or the agent is disabled.
func (r *followUpRepo) CancelPendingForSession(agentID uuid.UUID, sessionID, reason string) error {
	return r.db.Model(&models.FollowUpQueueItem{}).
		Where("agent_id = ? AND session_id = ? AND status = ?", agentID, sessionID, models.QueueStatusPending).
		Updates(map[string]interface{}{
			"status":          models.QueueStatusCanceled,
			"canceled_reason": reason,
		}).Error
}
