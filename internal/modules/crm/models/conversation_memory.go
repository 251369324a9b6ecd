package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ConversationMemory is one row per (agent, session). Messages is the
// append-only ordered sequence of role-tagged turns; it is truncated to the
// agent's context window only when assembled for generation, never in
// storage.
type ConversationMemory struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	AgentID     uuid.UUID `json:"agent_id" gorm:"type:uuid;not null;uniqueIndex:idx_crm_memory_agent_session"`
	SessionID   string    `json:"session_id" gorm:"type:varchar(255);not null;uniqueIndex:idx_crm_memory_agent_session"`
	ContactID   uuid.UUID `json:"contact_id" gorm:"type:uuid;not null;index"`
	WorkspaceID uuid.UUID `json:"workspace_id" gorm:"type:uuid;not null;index"`

	Messages          datatypes.JSON `json:"messages" gorm:"type:jsonb;not null;default:'[]'"`
	IsPaused          bool           `json:"is_paused" gorm:"default:false"`
	QualificationStep int            `json:"qualification_step" gorm:"default:0"`
	QualificationDone bool           `json:"qualification_done" gorm:"default:false"`
	QualificationData datatypes.JSON `json:"qualification_data" gorm:"type:jsonb;default:'{}'"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (ConversationMemory) TableName() string {
	return "crm_conversation_memories"
}

func (m *ConversationMemory) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
