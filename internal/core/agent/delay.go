package agent

import (
	"time"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
)

// Natural-mode bounds. A reply landing 30-120s after the lead's message
// reads like a human agent picking up their phone.
const (
	naturalDelayMin = 30
	naturalDelayMax = 120
)

// ResponseDelay computes how long to hold a reply before sending. randInt
// must return a value in [0, n); the engine injects it so tests are
// deterministic.
func ResponseDelay(agent *models.Agent, randInt func(n int) int) time.Duration {
	switch agent.DelayMode {
	case models.DelayModeFixed:
		if agent.DelaySeconds <= 0 {
			return 0
		}
		return time.Duration(agent.DelaySeconds) * time.Second
	case models.DelayModeNatural:
		spread := naturalDelayMax - naturalDelayMin + 1
		return time.Duration(naturalDelayMin+randInt(spread)) * time.Second
	default:
		return 0
	}
}
