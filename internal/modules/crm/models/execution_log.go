package models

import (
	"time"

	"github.com/google/uuid"
)

// Execution log statuses
const (
	ExecStatusSuccess = "success"
	ExecStatusError   = "error"
	ExecStatusSkipped = "skipped"
)

// ExecutionLog is an append-only audit entry for one node execution.
// The entry with an empty NodeID is the trigger sentinel: it is written
// before the walk starts and doubles as the dedup substrate ("this bot ran
// for this contact recently").
type ExecutionLog struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BotID       uuid.UUID `json:"bot_id" gorm:"type:uuid;not null;index:idx_crm_exec_bot_contact"`
	ContactID   uuid.UUID `json:"contact_id" gorm:"type:uuid;not null;index:idx_crm_exec_bot_contact"`
	WorkspaceID uuid.UUID `json:"workspace_id" gorm:"type:uuid;not null;index"`
	NodeID      string    `json:"node_id" gorm:"type:varchar(100)"`
	Status      string    `json:"status" gorm:"type:varchar(20);not null"` // success, error, skipped
	Message     string    `json:"message" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime;index:,sort:desc"`
}

func (ExecutionLog) TableName() string {
	return "crm_execution_logs"
}
