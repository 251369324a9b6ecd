package models

import (
	"time"

	"github.com/google/uuid"
)

// RoundRobinCursor is the rotation position for one round_robin node of one
// bot. It is advanced atomically so concurrent executions never hand the
// same candidate to two contacts.
type RoundRobinCursor struct {
	BotID     uuid.UUID `json:"bot_id" gorm:"type:uuid;primaryKey"`
	NodeID    string    `json:"node_id" gorm:"type:varchar(100);primaryKey"`
	Position  int       `json:"position" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (RoundRobinCursor) TableName() string {
	return "crm_round_robin_cursors"
}
