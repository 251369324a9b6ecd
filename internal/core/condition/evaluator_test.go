package condition

import (
	"testing"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestEvaluateEmptyListMatches(t *testing.T) {
	contact := &models.Contact{Source: "instagram"}
	assert.Equal(t, Matched, Evaluate(nil, contact, nil))
}

func TestEvaluateSourceOperators(t *testing.T) {
	contact := &models.Contact{Source: "Instagram"}

	tests := []struct {
		name string
		cond Condition
		want Result
	}{
		{"equals case insensitive", Condition{Field: "source", Operator: "equals", Value: "instagram"}, Matched},
		{"equals mismatch", Condition{Field: "source", Operator: "equals", Value: "facebook"}, Unmatched},
		{"not_equals", Condition{Field: "source", Operator: "not_equals", Value: "facebook"}, Matched},
		{"unknown operator", Condition{Field: "source", Operator: "starts_with", Value: "insta"}, Unsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate([]Condition{tt.cond}, contact, nil))
		})
	}
}

func TestEvaluateValueCoercion(t *testing.T) {
	tests := []struct {
		name  string
		value string
		cond  Condition
		want  Result
	}{
		{"greater_than", "1500", Condition{Field: "value", Operator: "greater_than", Value: "1000"}, Matched},
		{"less_than", "500", Condition{Field: "value", Operator: "less_than", Value: "1000"}, Matched},
		{"equals numeric", "250.5", Condition{Field: "value", Operator: "equals", Value: "250.5"}, Matched},
		{"non-numeric treated as zero", "a lot", Condition{Field: "value", Operator: "less_than", Value: "1"}, Matched},
		{"non-numeric not greater", "n/a", Condition{Field: "value", Operator: "greater_than", Value: "0"}, Unmatched},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contact := &models.Contact{Value: tt.value}
			assert.Equal(t, tt.want, Evaluate([]Condition{tt.cond}, contact, nil))
		})
	}
}

func TestEvaluateTagMembership(t *testing.T) {
	tagID := uuid.New()
	other := uuid.New()
	contact := &models.Contact{}

	assert.Equal(t, Matched, Evaluate([]Condition{
		{Field: "tag", Operator: "contains", Value: tagID.String()},
	}, contact, []uuid.UUID{tagID, other}))

	assert.Equal(t, Unmatched, Evaluate([]Condition{
		{Field: "tag", Operator: "contains", Value: uuid.NewString()},
	}, contact, []uuid.UUID{tagID}))

	assert.Equal(t, Matched, Evaluate([]Condition{
		{Field: "tag", Operator: "not_contains", Value: uuid.NewString()},
	}, contact, []uuid.UUID{tagID}))
}

func TestEvaluateConjunction(t *testing.T) {
	tagID := uuid.New()
	contact := &models.Contact{Source: "ads", Value: "2000"}

	conds := []Condition{
		{Field: "source", Operator: "equals", Value: "ads"},
		{Field: "value", Operator: "greater_than", Value: "1000"},
		{Field: "tag", Operator: "contains", Value: tagID.String()},
	}

	assert.Equal(t, Matched, Evaluate(conds, contact, []uuid.UUID{tagID}))

	// One failing predicate fails the whole list.
	contact.Value = "100"
	assert.Equal(t, Unmatched, Evaluate(conds, contact, []uuid.UUID{tagID}))
}

func TestEvaluateUnsupportedDominates(t *testing.T) {
	contact := &models.Contact{Source: "ads"}

	conds := []Condition{
		{Field: "source", Operator: "equals", Value: "ads"},
		{Field: "lifetime_spend", Operator: "equals", Value: "10"},
	}

	assert.Equal(t, Unsupported, Evaluate(conds, contact, nil))
}
