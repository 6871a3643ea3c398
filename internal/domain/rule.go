package domain

import (
	"errors"
	"fmt"
	"strings"
)

// RuleScope limits a priority rule to one triage stream.
type RuleScope string

const (
	ImagingScope RuleScope = "imaging"
	MessageScope RuleScope = "message"
)

// IsValid reports whether the scope is known.
func (s RuleScope) IsValid() bool {
	return s == ImagingScope || s == MessageScope
}

// AppliesTo reports whether rules with this scope cover the given domain.
func (s RuleScope) AppliesTo(d ItemDomain) bool {
	switch s {
	case ImagingScope:
		return d == RadiologyFindingDomain
	case MessageScope:
		return d == HL7MessageDomain
	default:
		return false
	}
}

// PriorityRule is one physician-maintained escalation rule: a
// case-insensitive substring pattern over finding text and the minimum
// priority any matching item must receive. Rules only escalate.
type PriorityRule struct {
	Pattern     string    `json:"pattern" mapstructure:"pattern"`
	MinPriority Priority  `json:"min_priority" mapstructure:"min_priority"`
	Name        string    `json:"name" mapstructure:"name"`
	Rationale   string    `json:"rationale" mapstructure:"rationale"`
	Scope       RuleScope `json:"scope" mapstructure:"scope"`
}

// Validate ensures the rule definition is complete and well-formed. Any
// failure here must abort startup: a silently dropped rule could silently
// suppress an escalation.
func (r *PriorityRule) Validate() error {
	if strings.TrimSpace(r.Pattern) == "" {
		return &RuleConfigError{Rule: r.Name, Reason: "empty finding pattern"}
	}
	if !r.MinPriority.IsValid() {
		return &RuleConfigError{Rule: r.Name, Reason: fmt.Sprintf("invalid priority %q", r.MinPriority)}
	}
	if r.Name == "" {
		return &RuleConfigError{Rule: r.Pattern, Reason: "rule name is required"}
	}
	if !r.Scope.IsValid() {
		return &RuleConfigError{Rule: r.Name, Reason: fmt.Sprintf("invalid scope %q", r.Scope)}
	}
	return nil
}

// Normalize lowercases the pattern and uppercases the priority so that
// matching is case-insensitive regardless of how the table was authored.
func (r *PriorityRule) Normalize() {
	r.Pattern = strings.ToLower(strings.TrimSpace(r.Pattern))
	r.MinPriority = Priority(normalizeUpper(string(r.MinPriority)))
	r.Scope = RuleScope(strings.ToLower(strings.TrimSpace(string(r.Scope))))
}

// RuleConfigError reports an unusable rule definition at load time. It is
// fatal by design: the rule table must never be partially loaded.
type RuleConfigError struct {
	Rule   string
	Reason string
}

// Error implements the error interface.
func (e *RuleConfigError) Error() string {
	return fmt.Sprintf("priority rule config error: rule %q: %s", e.Rule, e.Reason)
}

// ErrEmptyRuleTable is returned when the rule table loads with no rules at
// all, which would leave every triage decision to the generator alone.
var ErrEmptyRuleTable = errors.New("priority rule table is empty")
