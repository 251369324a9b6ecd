package trigger

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/google/uuid"
)

// Dedup windows per trigger type. A bot that fired for a contact within its
// window is not eligible again, so a chatty lead gets one greeting, not one
// per message.
const (
	DedupWindowMessage    = 5 * time.Minute
	DedupWindowKeyword    = 60 * time.Minute
	DedupWindowNewContact = 24 * time.Hour
)

// Event is one inbound occurrence the matcher evaluates bots against.
type Event struct {
	Instance     string
	Sender       string
	Text         string
	MessageID    string
	IsSelfSent   bool
	IsNewContact bool
}

// DedupStore answers whether a bot already ran for a contact recently. The
// trigger sentinel written by the executor is the substrate.
type DedupStore interface {
	HasRecentExecution(ctx context.Context, botID, contactID uuid.UUID, since time.Time) (bool, error)
}

// Matcher selects which bot, if any, an event should fire. Bots are checked
// in position order and the first eligible one wins.
type Matcher struct {
	dedup DedupStore
	now   func() time.Time
}

func NewMatcher(dedup DedupStore) *Matcher {
	return &Matcher{dedup: dedup, now: time.Now}
}

// DedupWindow returns the suppression window for a trigger type.
func DedupWindow(triggerType string) time.Duration {
	switch triggerType {
	case models.TriggerKeyword:
		return DedupWindowKeyword
	case models.TriggerNewContact:
		return DedupWindowNewContact
	default:
		return DedupWindowMessage
	}
}

// Match walks the candidate bots in the order given and returns the first one
// the event fires. Self-sent events never match. Dedup lookup failures count
// as "recently executed" so a flaky store cannot cause double sends.
func (m *Matcher) Match(ctx context.Context, bots []models.Bot, event Event, contactID uuid.UUID) (*models.Bot, error) {
	if event.IsSelfSent {
		return nil, nil
	}

	for i := range bots {
		bot := &bots[i]
		if !bot.IsActive {
			continue
		}
		if bot.InstanceID != "" && bot.InstanceID != event.Instance {
			continue
		}
		if !m.triggerApplies(bot, event) {
			continue
		}

		since := m.now().Add(-DedupWindow(bot.TriggerType))
		ran, err := m.dedup.HasRecentExecution(ctx, bot.ID, contactID, since)
		if err != nil {
			log.Printf("⚠️ Dedup lookup failed for bot %s: %v, suppressing trigger", bot.ID, err)
			continue
		}
		if ran {
			continue
		}

		return bot, nil
	}
	return nil, nil
}

func (m *Matcher) triggerApplies(bot *models.Bot, event Event) bool {
	switch bot.TriggerType {
	case models.TriggerMessageReceived:
		return event.Text != ""
	case models.TriggerKeyword:
		if bot.TriggerKeyword == "" {
			return false
		}
		return strings.Contains(strings.ToLower(event.Text), strings.ToLower(bot.TriggerKeyword))
	case models.TriggerNewContact:
		return event.IsNewContact
	default:
		return false
	}
}
