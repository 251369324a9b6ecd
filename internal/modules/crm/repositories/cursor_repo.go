package repositories

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CursorRepo interface for round-robin rotation state
type CursorRepo interface {
	Advance(botID uuid.UUID, nodeID string, candidateCount int) (int, error)
}

type cursorRepo struct {
	db *gorm.DB
}

// NewCursorRepo creates a new round-robin cursor repository
func NewCursorRepo(db *gorm.DB) CursorRepo {
	return &cursorRepo{db: db}
}

// Advance returns the candidate index to hand out and moves the cursor in
// one atomic upsert, so two concurrent executions can never pick the same
// position. The modulo keeps stored positions valid when the operator edits
// the candidate list.
func (r *cursorRepo) Advance(botID uuid.UUID, nodeID string, candidateCount int) (int, error) {
	var position int
	err := r.db.Raw(`
		INSERT INTO crm_round_robin_cursors (bot_id, node_id, position, updated_at)
		VALUES (?, ?, 1 % ?, NOW())
		ON CONFLICT (bot_id, node_id)
		DO UPDATE SET position = (crm_round_robin_cursors.position + 1) % ?, updated_at = NOW()
		RETURNING (position + ? - 1) % ?`,
		botID, nodeID, candidateCount, candidateCount, candidateCount, candidateCount,
	).Scan(&position).Error
	return position, err
}
