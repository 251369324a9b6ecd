package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Contact is the person-level CRM record automations read and mutate.
// Value is stored as text on purpose: operators paste anything in there and
// numeric comparisons coerce it at evaluation time.
type Contact struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	WorkspaceID uuid.UUID      `json:"workspace_id" gorm:"type:uuid;not null;index"`
	Name        string         `json:"name" gorm:"type:varchar(255)"`
	Phone       string         `json:"phone" gorm:"type:varchar(50);not null;index:idx_crm_contacts_ws_phone"`
	Source      string         `json:"source" gorm:"type:varchar(100)"`
	Value       string         `json:"value" gorm:"type:varchar(100)"`
	StageID     *uuid.UUID     `json:"stage_id" gorm:"type:uuid;index"`
	Owner       string         `json:"owner" gorm:"type:varchar(255)"`
	Attributes  datatypes.JSON `json:"attributes" gorm:"type:jsonb;default:'{}'"`
	CreatedAt   time.Time      `json:"created_at" gorm:"autoCreateTime;index:,sort:desc"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Contact) TableName() string {
	return "crm_contacts"
}

// BeforeCreate sets UUID before creating
func (c *Contact) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
