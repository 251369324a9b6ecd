package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Stage automation triggers
const (
	StageTriggerOnEnter   = "on_enter"
	StageTriggerOnExit    = "on_exit"
	StageTriggerAfterTime = "after_time"
)

// StageAutomation is a single condition-gated, time-delayed action attached
// to a funnel stage. Conditions are a conjunctive list re-evaluated at
// execution time, not at enqueue time.
type StageAutomation struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	WorkspaceID  uuid.UUID      `json:"workspace_id" gorm:"type:uuid;not null;index"`
	StageID      uuid.UUID      `json:"stage_id" gorm:"type:uuid;not null;index"`
	Trigger      string         `json:"trigger" gorm:"type:varchar(20);not null"` // on_enter, on_exit, after_time
	DelayHours   int            `json:"delay_hours" gorm:"not null;default:0"`
	ActionType   string         `json:"action_type" gorm:"type:varchar(50);not null"`
	ActionConfig datatypes.JSON `json:"action_config" gorm:"type:jsonb;not null;default:'{}'"`
	Conditions   datatypes.JSON `json:"conditions" gorm:"type:jsonb;default:'[]'"`
	IsActive     bool           `json:"is_active" gorm:"default:true;index"`
	CreatedAt    time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

func (StageAutomation) TableName() string {
	return "crm_stage_automations"
}
