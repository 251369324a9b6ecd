package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Bot trigger types
const (
	TriggerMessageReceived = "message_received"
	TriggerKeyword         = "keyword"
	TriggerNewContact      = "new_contact"
)

// Bot is an operator-authored node/edge graph defining an automated sequence
// of actions. Nodes and Edges hold the immutable flow snapshot as JSONB.
// Position is the declaration order: matching walks bots position-ascending
// and stops at the first eligible one, so order is an implicit priority.
type Bot struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	WorkspaceID    uuid.UUID      `json:"workspace_id" gorm:"type:uuid;not null;index"`
	Name           string         `json:"name" gorm:"type:varchar(255);not null"`
	TriggerType    string         `json:"trigger_type" gorm:"type:varchar(50);not null;index"` // message_received, keyword, new_contact
	TriggerKeyword string         `json:"trigger_keyword" gorm:"type:varchar(255)"`
	InstanceID     string         `json:"instance_id" gorm:"type:varchar(100)"` // optional channel-instance filter
	Nodes          datatypes.JSON `json:"nodes" gorm:"type:jsonb;not null;default:'[]'"`
	Edges          datatypes.JSON `json:"edges" gorm:"type:jsonb;not null;default:'[]'"`
	IsActive       bool           `json:"is_active" gorm:"default:true;index"`
	Position       int            `json:"position" gorm:"not null;default:0"`
	CreatedAt      time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Bot) TableName() string {
	return "crm_bots"
}
