package service

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/caremap-policy-core/internal/domain"
)

// SchemaValidator turns an untrusted generator result into a
// field-complete ValidatedItem. It never fails: a missing, wrong-typed, or
// empty field gets the contract's fallback value, and extra keys the
// generator invented are dropped.
type SchemaValidator struct {
	logger *logrus.Logger
}

// NewSchemaValidator creates a new schema validator.
func NewSchemaValidator(logger *logrus.Logger) *SchemaValidator {
	return &SchemaValidator{logger: logger}
}

// Validate applies the field spec to one raw generator result. index is
// the item's position in the original input.
func (v *SchemaValidator) Validate(raw domain.RawItemResult, spec domain.FieldSpec, index int) domain.ValidatedItem {
	item := domain.ValidatedItem{
		Domain: spec.Domain,
		Index:  index,
		Fields: make(map[string]string),
	}

	for _, rule := range spec.Fields {
		switch rule.Kind {
		case domain.ListField:
			values, ok := coerceStringList(raw[rule.Name])
			if !ok {
				values = []string{rule.Fallback}
				item.Defaulted = append(item.Defaulted, rule.Name)
			}
			if item.Lists == nil {
				item.Lists = make(map[string][]string)
			}
			item.Lists[rule.Name] = values
		default:
			value, ok := coerceText(raw[rule.Name])
			if !ok {
				value = rule.Fallback
				item.Defaulted = append(item.Defaulted, rule.Name)
			}
			item.Fields[rule.Name] = value
		}
	}

	if len(item.Defaulted) > 0 {
		v.logger.WithFields(logrus.Fields{
			"domain":     string(spec.Domain),
			"item_index": index,
			"defaulted":  item.Defaulted,
		}).Debug("Filled missing or malformed generator fields with fallbacks")
	}

	return item
}

// coerceText accepts only a non-blank string. An empty string counts as
// missing so the page never shows a blank row.
func coerceText(value any) (string, bool) {
	s, ok := value.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// coerceStringList accepts []string, or a JSON-decoded []any whose
// elements are strings. Blank elements are dropped; an empty result counts
// as missing.
func coerceStringList(value any) ([]string, bool) {
	var out []string
	switch list := value.(type) {
	case []string:
		for _, s := range list {
			if strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, e := range list {
			if s, ok := e.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
	default:
		return nil, false
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}
