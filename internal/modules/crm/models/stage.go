package models

import (
	"time"

	"github.com/google/uuid"
)

// Stage is a funnel position a contact occupies.
type Stage struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	WorkspaceID uuid.UUID `json:"workspace_id" gorm:"type:uuid;not null;index"`
	Name        string    `json:"name" gorm:"type:varchar(100);not null"`
	Position    int       `json:"position" gorm:"not null;default:0"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (Stage) TableName() string {
	return "crm_stages"
}
