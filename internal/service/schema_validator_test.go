package service

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caremap-policy-core/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func medicationSpec() domain.FieldSpec {
	return domain.FieldSpec{
		Domain: domain.MedicationDomain,
		Fields: []domain.FieldRule{
			{Name: "medication", Kind: domain.TextField, Fallback: domain.FallbackText},
			{Name: "why_it_matters", Kind: domain.TextField, Fallback: domain.FallbackText, MaxSentences: 1},
			{Name: "when_to_give", Kind: domain.TextField, Fallback: domain.FallbackText, DosagePermitted: true},
			{Name: "important_note", Kind: domain.TextField, Fallback: domain.FallbackText, MaxSentences: 1},
		},
	}
}

func TestSchemaValidatorFillsMissingFields(t *testing.T) {
	v := NewSchemaValidator(testLogger())

	raw := domain.RawItemResult{
		"medication": "Lisinopril",
		// why_it_matters missing entirely
		"when_to_give": "With breakfast",
		// important_note missing entirely
	}

	item := v.Validate(raw, medicationSpec(), 0)

	assert.Equal(t, "Lisinopril", item.Field("medication"))
	assert.Equal(t, "With breakfast", item.Field("when_to_give"))
	assert.Equal(t, domain.FallbackText, item.Field("why_it_matters"))
	assert.Equal(t, domain.FallbackText, item.Field("important_note"))
	assert.ElementsMatch(t, []string{"why_it_matters", "important_note"}, item.Defaulted)
}

func TestSchemaValidatorRejectsWrongTypes(t *testing.T) {
	v := NewSchemaValidator(testLogger())

	raw := domain.RawItemResult{
		"medication":     42,
		"why_it_matters": []string{"not", "a", "string"},
		"when_to_give":   nil,
		"important_note": map[string]any{"text": "nested"},
	}

	item := v.Validate(raw, medicationSpec(), 0)

	for _, name := range []string{"medication", "why_it_matters", "when_to_give", "important_note"} {
		assert.Equal(t, domain.FallbackText, item.Field(name), "field %s", name)
	}
	assert.Len(t, item.Defaulted, 4)
}

func TestSchemaValidatorTreatsBlankAsMissing(t *testing.T) {
	v := NewSchemaValidator(testLogger())

	raw := domain.RawItemResult{
		"medication":     "",
		"why_it_matters": "   ",
		"when_to_give":   "Morning",
		"important_note": "Take with food",
	}

	item := v.Validate(raw, medicationSpec(), 0)

	assert.Equal(t, domain.FallbackText, item.Field("medication"))
	assert.Equal(t, domain.FallbackText, item.Field("why_it_matters"))
	assert.Equal(t, "Morning", item.Field("when_to_give"))
}

func TestSchemaValidatorDropsExtraKeys(t *testing.T) {
	v := NewSchemaValidator(testLogger())

	raw := domain.RawItemResult{
		"medication":     "Metformin",
		"why_it_matters": "Controls blood sugar.",
		"when_to_give":   "With dinner",
		"important_note": "Watch for stomach upset.",
		"invented_field": "should never survive",
		"ssn":            "123-45-6789",
	}

	item := v.Validate(raw, medicationSpec(), 0)

	assert.Len(t, item.Fields, 4)
	assert.NotContains(t, item.Fields, "invented_field")
	assert.NotContains(t, item.Fields, "ssn")
	assert.Empty(t, item.Defaulted)
}

func TestSchemaValidatorCoercesLists(t *testing.T) {
	spec := domain.FieldSpec{
		Domain: domain.RadiologyFindingDomain,
		Fields: []domain.FieldRule{
			{Name: "findings", Kind: domain.ListField, Fallback: "No findings reported"},
			{Name: "priority", Kind: domain.TextField, Fallback: string(domain.ROUTINE)},
		},
	}
	v := NewSchemaValidator(testLogger())

	tests := []struct {
		name string
		raw  any
		want []string
	}{
		{"typed slice", []string{"pneumothorax", "effusion"}, []string{"pneumothorax", "effusion"}},
		{"json decoded slice", []any{"pneumothorax", "effusion"}, []string{"pneumothorax", "effusion"}},
		{"blank elements dropped", []string{"", "  ", "mass"}, []string{"mass"}},
		{"missing", nil, []string{"No findings reported"}},
		{"wrong type", "pneumothorax", []string{"No findings reported"}},
		{"all blank counts as missing", []string{"", "  "}, []string{"No findings reported"}},
		{"mixed element types keep strings", []any{"edema", 7, true}, []string{"edema"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := v.Validate(domain.RawItemResult{"findings": tt.raw, "priority": "STAT"}, spec, 0)
			require.Contains(t, item.Lists, "findings")
			assert.Equal(t, tt.want, item.Lists["findings"])
		})
	}
}

func TestSchemaValidatorPreservesIndex(t *testing.T) {
	v := NewSchemaValidator(testLogger())
	item := v.Validate(domain.RawItemResult{}, medicationSpec(), 7)
	assert.Equal(t, 7, item.Index)
	assert.Equal(t, domain.MedicationDomain, item.Domain)
}
