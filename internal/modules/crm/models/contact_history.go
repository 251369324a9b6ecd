package models

import (
	"time"

	"github.com/google/uuid"
)

// History entry kinds
const (
	HistoryStageChange = "stage_change"
	HistoryComment     = "comment"
	HistoryNote        = "note"
	HistoryCreated     = "created"
	HistoryReassigned  = "reassigned"
)

// ContactHistory is the append-only activity trail shown on a contact card.
type ContactHistory struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ContactID   uuid.UUID `json:"contact_id" gorm:"type:uuid;not null;index"`
	WorkspaceID uuid.UUID `json:"workspace_id" gorm:"type:uuid;not null;index"`
	Kind        string    `json:"kind" gorm:"type:varchar(50);not null"`
	Detail      string    `json:"detail" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime;index:,sort:desc"`
}

func (ContactHistory) TableName() string {
	return "crm_contact_history"
}
