package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Response delay modes for free conversation
const (
	DelayModeNone    = "none"
	DelayModeFixed   = "fixed"
	DelayModeNatural = "natural"
)

// Agent is the configuration for a conversational AI agent: persona,
// qualification script, follow-up sequence, pause controls and generation
// parameters. QualificationFields and FollowUpSteps are JSONB arrays
// decoded by the agent engine.
type Agent struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	WorkspaceID uuid.UUID `json:"workspace_id" gorm:"type:uuid;not null;index"`
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	IsActive    bool      `json:"is_active" gorm:"default:true;index"`

	Persona        string `json:"persona" gorm:"type:text"`
	Tone           string `json:"tone" gorm:"type:varchar(100)"`
	Objective      string `json:"objective" gorm:"type:text"`
	ResponseLength string `json:"response_length" gorm:"type:varchar(20)"` // short, medium, long

	PauseCode     string `json:"pause_code" gorm:"type:varchar(50)"`
	ResumeKeyword string `json:"resume_keyword" gorm:"type:varchar(50)"`

	DelayMode     string `json:"delay_mode" gorm:"type:varchar(20);default:'none'"` // none, fixed, natural
	DelaySeconds  int    `json:"delay_seconds" gorm:"default:0"`
	ContextWindow int    `json:"context_window" gorm:"default:20"`

	QualificationEnabled bool           `json:"qualification_enabled" gorm:"default:false"`
	QualificationFields  datatypes.JSON `json:"qualification_fields" gorm:"type:jsonb;default:'[]'"`

	FollowUpSteps   datatypes.JSON `json:"followup_steps" gorm:"type:jsonb;default:'[]'"`
	FollowUpStageID *uuid.UUID     `json:"followup_stage_id" gorm:"type:uuid"`

	Model       string  `json:"model" gorm:"type:varchar(100)"`
	Temperature float32 `json:"temperature" gorm:"default:0.7"`
	MaxTokens   int     `json:"max_tokens" gorm:"default:300"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Agent) TableName() string {
	return "crm_agents"
}
