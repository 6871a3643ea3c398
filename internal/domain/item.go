package domain

// RawItemResult is the untrusted field-to-value mapping returned by the
// generator for one input item. Values may be missing, wrong-typed, or
// extra; it is consumed exactly once by the schema validator and never
// crosses further into the pipeline.
type RawItemResult map[string]any

// ValidatedItem is a field-complete item conforming to its domain's
// FieldSpec. Every required field is present with the expected shape; the
// content may still be unsafe.
type ValidatedItem struct {
	Domain ItemDomain `json:"domain"`

	// Index is the item's position in the original input, used for
	// stable tie-breaking at assembly time.
	Index int `json:"index"`

	// Fields holds the free-text fields of the item.
	Fields map[string]string `json:"fields"`

	// Lists holds the string-list fields (e.g. triage findings).
	Lists map[string][]string `json:"lists,omitempty"`

	// Defaulted names the fields that received their fallback value
	// during schema validation. Diagnostics only; never rendered.
	Defaulted []string `json:"defaulted,omitempty"`
}

// Field returns the named free-text field, or "" if absent.
func (v *ValidatedItem) Field(name string) string {
	return v.Fields[name]
}

// SafeItem is a ValidatedItem whose fields have each either passed safety
// scanning or been replaced by their fallback. This is the only item shape
// handed to ranking and rendering.
type SafeItem struct {
	ValidatedItem

	// Violations records what the safety scan rejected, for audit only.
	Violations []SafetyViolation `json:"violations,omitempty"`
}

// ViolationReason is the reason code attached to a rejected field.
type ViolationReason string

const (
	ForbiddenDosage        ViolationReason = "forbidden-dosage"
	DiagnosticLanguage     ViolationReason = "diagnostic-language"
	TreatmentDirective     ViolationReason = "treatment-directive"
	IdentifierPattern      ViolationReason = "identifier-like-pattern"
	MalformedQuestionCount ViolationReason = "malformed-question-count"
	DisallowedAbbreviation ViolationReason = "disallowed-abbreviation"
	MalformedSentenceCount ViolationReason = "malformed-sentence-count"
)

// IsValid reports whether the reason code is known.
func (r ViolationReason) IsValid() bool {
	switch r {
	case ForbiddenDosage, DiagnosticLanguage, TreatmentDirective,
		IdentifierPattern, MalformedQuestionCount, DisallowedAbbreviation,
		MalformedSentenceCount:
		return true
	default:
		return false
	}
}

// SafetyViolation pairs a reason code with the offending field name.
// Produced transiently by the safety validator and recorded on the audit
// side channel; never persisted and never rendered.
type SafetyViolation struct {
	Field  string          `json:"field"`
	Reason ViolationReason `json:"reason"`
}

// TriageDecision is the auditable outcome of the escalate-only merge for
// one triage item. Invariant: FinalPriority.Rank() >=
// max(ModelPriority.Rank(), RulePriority.Rank()).
type TriageDecision struct {
	ModelPriority Priority `json:"model_priority"`
	RulePriority  Priority `json:"rule_priority"`
	FinalPriority Priority `json:"final_priority"`

	// MatchedRules lists every rule name that fired, for clinician review.
	MatchedRules []string `json:"matched_rules"`

	// OverrideReason explains why the final priority differs from the
	// model priority. Empty when nothing changed.
	OverrideReason string `json:"override_reason,omitempty"`
}

// LogFields returns structured logging fields for the audit trail.
func (d *TriageDecision) LogFields() map[string]any {
	return map[string]any{
		"model_priority": d.ModelPriority.String(),
		"rule_priority":  d.RulePriority.String(),
		"final_priority": d.FinalPriority.String(),
		"matched_rules":  d.MatchedRules,
		"overridden":     d.OverrideReason != "",
	}
}

// TriageResult couples a scrubbed triage item with its priority decision.
type TriageResult struct {
	Item     SafeItem       `json:"item"`
	Decision TriageDecision `json:"decision"`
}

// RankedItem is one section candidate with its precomputed ranking score.
// Higher scores sort first; ties preserve input order.
type RankedItem struct {
	Item   SafeItem        `json:"item"`
	Triage *TriageDecision `json:"triage,omitempty"`
	Score  int             `json:"score"`
	Order  int             `json:"order"`
}

// BoundedCollection is the final ordered, length-capped sequence for one
// section. Len(Items) never exceeds the section's configured capacity.
type BoundedCollection struct {
	Section   Section      `json:"section"`
	Items     []RankedItem `json:"items"`
	Truncated bool         `json:"truncated"`

	// Pointer is the single fixed pointer line, set only when truncated.
	Pointer string `json:"pointer,omitempty"`
}
