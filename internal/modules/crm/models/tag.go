package models

import (
	"time"

	"github.com/google/uuid"
)

// Tag is a workspace-scoped label applied to contacts.
type Tag struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	WorkspaceID uuid.UUID `json:"workspace_id" gorm:"type:uuid;not null;index"`
	Name        string    `json:"name" gorm:"type:varchar(100);not null"`
	Color       string    `json:"color" gorm:"type:varchar(20)"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (Tag) TableName() string {
	return "crm_tags"
}

// ContactTag is the tag-assignment join row.
type ContactTag struct {
	ContactID   uuid.UUID `json:"contact_id" gorm:"type:uuid;primaryKey"`
	TagID       uuid.UUID `json:"tag_id" gorm:"type:uuid;primaryKey"`
	WorkspaceID uuid.UUID `json:"workspace_id" gorm:"type:uuid;not null;index"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (ContactTag) TableName() string {
	return "crm_contact_tags"
}
