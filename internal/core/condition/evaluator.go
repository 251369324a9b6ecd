package condition

import (
	"strconv"
	"strings"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/google/uuid"
)

// Result is the typed outcome of evaluating a condition list. Unsupported
// means the operator/field combination is not something the evaluator knows
// about; callers must treat it as a configuration error instead of a pass.
type Result int

const (
	Matched Result = iota
	Unmatched
	Unsupported
)

func (r Result) String() string {
	switch r {
	case Matched:
		return "matched"
	case Unmatched:
		return "unmatched"
	default:
		return "unsupported"
	}
}

// Condition is a single predicate over a contact.
type Condition struct {
	Field    string `json:"field"`    // source, value, tag
	Operator string `json:"operator"` // equals, not_equals, greater_than, less_than, contains, not_contains
	Value    string `json:"value"`
}

// Evaluate resolves a conjunctive condition list against a contact and its
// current tag-id set. An empty list always matches. Unsupported dominates:
// one unknown predicate makes the whole list unsupported, so a misconfigured
// automation surfaces to the operator instead of silently firing.
func Evaluate(conditions []Condition, contact *models.Contact, tagIDs []uuid.UUID) Result {
	result := Matched
	for _, c := range conditions {
		switch evaluateSingle(c, contact, tagIDs) {
		case Unsupported:
			return Unsupported
		case Unmatched:
			result = Unmatched
		}
	}
	return result
}

func evaluateSingle(c Condition, contact *models.Contact, tagIDs []uuid.UUID) Result {
	switch c.Field {
	case "source":
		return evalSource(c, contact.Source)
	case "value":
		return evalValue(c, contact.Value)
	case "tag":
		return evalTag(c, tagIDs)
	default:
		return Unsupported
	}
}

func evalSource(c Condition, source string) Result {
	switch c.Operator {
	case "equals":
		return boolResult(strings.EqualFold(source, c.Value))
	case "not_equals":
		return boolResult(!strings.EqualFold(source, c.Value))
	default:
		return Unsupported
	}
}

func evalValue(c Condition, raw string) Result {
	contactValue := parseNumber(raw)
	wanted := parseNumber(c.Value)

	switch c.Operator {
	case "greater_than":
		return boolResult(contactValue > wanted)
	case "less_than":
		return boolResult(contactValue < wanted)
	case "equals":
		return boolResult(contactValue == wanted)
	default:
		return Unsupported
	}
}

func evalTag(c Condition, tagIDs []uuid.UUID) Result {
	has := false
	for _, id := range tagIDs {
		if strings.EqualFold(id.String(), c.Value) {
			has = true
			break
		}
	}

	switch c.Operator {
	case "contains":
		return boolResult(has)
	case "not_contains":
		return boolResult(!has)
	default:
		return Unsupported
	}
}

func boolResult(ok bool) Result {
	if ok {
		return Matched
	}
	return Unmatched
}

// parseNumber coerces operator-entered values. Non-numeric input counts as 0
// so a half-filled contact never makes evaluation blow up.
func parseNumber(s string) float64 {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return n
}
