package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Queue item statuses. InProgress is a short-lived claim state: a sweep
// transitions pending→in_progress atomically before performing the side
// effect, so a racing sweep skips the item instead of double-dispatching.
const (
	QueueStatusPending    = "pending"
	QueueStatusInProgress = "in_progress"
	QueueStatusExecuted   = "executed"
	QueueStatusCanceled   = "canceled"
	QueueStatusError      = "error"
)

// Follow-up cancellation reasons
const (
	CancelReasonLeadResponded = "lead_responded"
	CancelReasonAgentDisabled = "agent_disabled"
)

// AutomationQueueItem is a pending stage automation, created at stage
// entry/exit time and consumed by the sweep. At most one terminal status
// transition per item; never updated after a terminal status.
type AutomationQueueItem struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	AutomationID uuid.UUID `json:"automation_id" gorm:"type:uuid;not null;index"`
	ContactID    uuid.UUID `json:"contact_id" gorm:"type:uuid;not null;index"`
	WorkspaceID  uuid.UUID `json:"workspace_id" gorm:"type:uuid;not null;index"`
	ExecuteAt    time.Time `json:"execute_at" gorm:"not null;index"`
	Status       string    `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Error        string    `json:"error,omitempty" gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (AutomationQueueItem) TableName() string {
	return "crm_automation_queue"
}

func (i *AutomationQueueItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// FlowResume is a suspended flow walk: a wait node enqueues one of these
// pointing at the node after the wait, and the sweep resumes the walk from
// there instead of sleeping inside the original invocation.
type FlowResume struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BotID       uuid.UUID `json:"bot_id" gorm:"type:uuid;not null;index"`
	ContactID   uuid.UUID `json:"contact_id" gorm:"type:uuid;not null;index"`
	WorkspaceID uuid.UUID `json:"workspace_id" gorm:"type:uuid;not null;index"`
	NodeID      string    `json:"node_id" gorm:"type:varchar(100);not null"`
	Instance    string    `json:"instance" gorm:"type:varchar(100)"`
	ExecuteAt   time.Time `json:"execute_at" gorm:"not null;index"`
	Status      string    `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Error       string    `json:"error,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (FlowResume) TableName() string {
	return "crm_flow_resumes"
}

func (r *FlowResume) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// FollowUpQueueItem is one pending step of an AI re-engagement sequence.
type FollowUpQueueItem struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	AgentID        uuid.UUID `json:"agent_id" gorm:"type:uuid;not null;index"`
	ContactID      uuid.UUID `json:"contact_id" gorm:"type:uuid;not null;index"`
	SessionID      string    `json:"session_id" gorm:"type:varchar(255);not null;index"`
	WorkspaceID    uuid.UUID `json:"workspace_id" gorm:"type:uuid;not null;index"`
	StepIndex      int       `json:"step_index" gorm:"not null;default:0"`
	ExecuteAt      time.Time `json:"execute_at" gorm:"not null;index"`
	Status         string    `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	CanceledReason string    `json:"canceled_reason,omitempty" gorm:"type:varchar(50)"`
	Error          string    `json:"error,omitempty" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (FollowUpQueueItem) TableName() string {
	return "crm_followup_queue"
}

func (i *FollowUpQueueItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
