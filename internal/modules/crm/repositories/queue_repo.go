package repositories

import (
	"time"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QueueRepo interface for the stage-automation queue and flow resumes
type QueueRepo interface {
	EnqueueAutomation(item *models.AutomationQueueItem) error
	DueAutomations(now time.Time, limit int) ([]models.AutomationQueueItem, error)
	ClaimAutomation(id uuid.UUID) (bool, error)
	FinishAutomation(id uuid.UUID, status, errMsg string) error
	CancelPendingAutomations(contactID, automationID uuid.UUID) error

	EnqueueResume(resume *models.FlowResume) error
	DueResumes(now time.Time, limit int) ([]models.FlowResume, error)
	ClaimResume(id uuid.UUID) (bool, error)
	FinishResume(id uuid.UUID, status, errMsg string) error
}

type queueRepo struct {
	db *gorm.DB
}

// NewQueueRepo creates a new queue repository
func NewQueueRepo(db *gorm.DB) QueueRepo {
	return &queueRepo{db: db}
}

func (r *queueRepo) EnqueueAutomation(item *models.AutomationQueueItem) error {
	return r.db.Create(item).Error
}

func (r *queueRepo) DueAutomations(now time.Time, limit int) ([]models.AutomationQueueItem, error) {
	var items []models.AutomationQueueItem
	query := r.db.Where("status = ? AND execute_at <= ?", models.QueueStatusPending, now).Order("execute_at")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&items).Error
	return items, err
}

// ClaimAutomation flips pending→in_progress with a conditional update. A
// false return means another sweep got there first.
func (r *queueRepo) ClaimAutomation(id uuid.UUID) (bool, error) {
	result := r.db.Model(&models.AutomationQueueItem{}).
		Where("id = ? AND status = ?", id, models.QueueStatusPending).
		Update("status", models.QueueStatusInProgress)
	return result.RowsAffected > 0, result.Error
}

func (r *queueRepo) FinishAutomation(id uuid.UUID, status, errMsg string) error {
	return r.db.Model(&models.AutomationQueueItem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "error": errMsg}).Error
}

// CancelPendingAutomations voids queued work that no longer applies, e.g.
// after the contact left the stage that enqueued it.
func (r *queueRepo) CancelPendingAutomations(contactID, automationID uuid.UUID) error {
	return r.db.Model(&models.AutomationQueueItem{}).
		Where("contact_id = ? AND automation_id = ? AND status = ?", contactID, automationID, models.QueueStatusPending).
		Update("status", models.QueueStatusCanceled).Error
}

func (r *queueRepo) EnqueueResume(resume *models.FlowResume) error {
	return r.db.Create(resume).Error
}

func (r *queueRepo) DueResumes(now time.Time, limit int) ([]models.FlowResume, error) {
	var resumes []models.FlowResume
	query := r.db.Where("status = ? AND execute_at <= ?", models.QueueStatusPending, now).Order("execute_at")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&resumes).Error
	return resumes, err
}

func (r *queueRepo) ClaimResume(id uuid.UUID) (bool, error) {
	result := r.db.Model(&models.FlowResume{}).
		Where("id = ? AND status = ?", id, models.QueueStatusPending).
		Update("status", models.QueueStatusInProgress)
	return result.RowsAffected > 0, result.Error
}

func (r *queueRepo) FinishResume(id uuid.UUID, status, errMsg string) error {
	return r.db.Model(&models.FlowResume{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "error": errMsg}).Error
}
