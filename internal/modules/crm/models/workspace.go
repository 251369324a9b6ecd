package models

import (
	"time"

	"github.com/google/uuid"
)

// Workspace represents a tenant account. Every engine row is scoped to one
// workspace; the engine never reads across workspaces.
type Workspace struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name       string    `json:"name" gorm:"type:varchar(255);not null"`
	InstanceID string    `json:"instance_id" gorm:"type:varchar(100);not null;uniqueIndex"` // WhatsApp channel identity
	IsActive   bool      `json:"is_active" gorm:"default:true;index"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Workspace) TableName() string {
	return "crm_workspaces"
}
