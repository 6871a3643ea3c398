package domain

import (
	"errors"
	"fmt"
)

// FieldKind is the expected value shape for a field.
type FieldKind string

const (
	// TextField expects a single string value.
	TextField FieldKind = "text"
	// ListField expects an array of strings.
	ListField FieldKind = "list"
)

// IsValid reports whether the field kind is known.
func (k FieldKind) IsValid() bool {
	return k == TextField || k == ListField
}

// FieldRule is the per-field contract inside a FieldSpec: the expected
// shape, the fallback substituted when the generator omits or mangles the
// field, and the safety constraints the field carries.
type FieldRule struct {
	Name     string    `json:"name" mapstructure:"name"`
	Kind     FieldKind `json:"kind" mapstructure:"kind"`
	Fallback string    `json:"fallback" mapstructure:"fallback"`

	// DosagePermitted whitelists the field for numeric dose/unit tokens.
	// Default is false: dosage text never reaches the caregiver page
	// unless the contract says so explicitly.
	DosagePermitted bool `json:"dosage_permitted,omitempty" mapstructure:"dosage_permitted"`

	// NamePermitted whitelists the field for person-name shaped content
	// (the nickname field). All other fields treat full-name patterns as
	// identifier-like.
	NamePermitted bool `json:"name_permitted,omitempty" mapstructure:"name_permitted"`

	// OneQuestion contracts the field to contain exactly one question.
	OneQuestion bool `json:"one_question,omitempty" mapstructure:"one_question"`

	// MaxSentences bounds the field length in sentences; 0 means no bound.
	MaxSentences int `json:"max_sentences,omitempty" mapstructure:"max_sentences"`
}

// Validate ensures the rule is usable as a contract.
func (r *FieldRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("field rule validation: %w", errors.New("field name is required"))
	}
	if !r.Kind.IsValid() {
		return fmt.Errorf("field rule validation: invalid kind %q for field %q", r.Kind, r.Name)
	}
	if r.Fallback == "" {
		return fmt.Errorf("field rule validation: field %q has no fallback value", r.Name)
	}
	if r.MaxSentences < 0 {
		return fmt.Errorf("field rule validation: field %q has negative sentence bound", r.Name)
	}
	return nil
}

// FieldSpec is the closed per-domain contract: the exact set of required
// fields and their rules. Immutable after load; extra generator keys are
// dropped, missing ones are filled.
type FieldSpec struct {
	Domain ItemDomain  `json:"domain" mapstructure:"domain"`
	Fields []FieldRule `json:"fields" mapstructure:"fields"`
}

// Validate ensures the spec describes a complete, unambiguous contract.
func (s *FieldSpec) Validate() error {
	if !s.Domain.IsValid() {
		return fmt.Errorf("field spec validation: invalid domain %q", s.Domain)
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("field spec validation: domain %q has no fields", s.Domain)
	}
	seen := make(map[string]bool, len(s.Fields))
	for i := range s.Fields {
		if err := s.Fields[i].Validate(); err != nil {
			return fmt.Errorf("field spec validation: domain %q: %w", s.Domain, err)
		}
		if seen[s.Fields[i].Name] {
			return fmt.Errorf("field spec validation: domain %q declares field %q twice", s.Domain, s.Fields[i].Name)
		}
		seen[s.Fields[i].Name] = true
	}
	return nil
}

// Rule returns the rule for the named field.
func (s *FieldSpec) Rule(name string) (FieldRule, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return s.Fields[i], true
		}
	}
	return FieldRule{}, false
}
