package service

import (
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/caremap-policy-core/internal/domain"
)

// SafetyValidator is the single enforcement point all free text passes
// through before assembly. It scans every text field of a validated item
// against the forbidden content classes and replaces a violating field
// wholesale with its fallback; partial redaction is never attempted.
//
// The scanner is pure and stateless: scanning already-scrubbed output is a
// no-op, which requires every configured fallback to pass its own field's
// checks.
type SafetyValidator struct {
	logger *logrus.Logger
}

// NewSafetyValidator creates a new safety validator.
func NewSafetyValidator(logger *logrus.Logger) *SafetyValidator {
	return &SafetyValidator{logger: logger}
}

// Dose/unit tokens: a number followed by a standard unit, plus the named
// measurements (eGFR, INR, A1c) that carry implicit clinical thresholds.
var (
	dosagePattern      = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s*(?:mg|mcg|g|kg|ml|l|units?|iu|meq|mmol|tablets?|caps?|puffs?|drops?|mm|cm)\b`)
	percentPattern     = regexp.MustCompile(`\b\d+(?:\.\d+)?\s*%`)
	measurementPattern = regexp.MustCompile(`(?i)\b(?:egfr|inr|a1c)\s*[<>=]?\s*\d`)
)

// Assertive disease-naming. Both the phrase shapes ("you have X") and the
// standalone terms the caregiver page must never assert.
var (
	diagnosisTermPattern = regexp.MustCompile(`(?i)\b(?:cancer|malignant|malignancy|tumor|carcinoma|metastasis|metastatic|terminal|fatal)\b`)
	diagnosisPhrases     = []string{
		"you have ",
		"diagnosis of",
		"diagnosed with",
		"this indicates",
		"this is cancer",
		"consistent with malignancy",
	}
)

// Treatment-change directives applied to a medication.
var directivePattern = regexp.MustCompile(`(?i)\b(?:increase|decrease|stop|start|switch|double|halve)\b[^.!?]*\b(?:dose|dosage|dosing|medication|medicine|med|meds|pills?|taking)\b`)

// Identifier-like patterns: full dates, long digit runs, street addresses,
// and honorific-prefixed legal names.
var (
	datePattern     = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`)
	digitRunPattern = regexp.MustCompile(`\d{8,}`)
	addressPattern  = regexp.MustCompile(`(?i)\b\d+\s+[a-z]+\.?\s+(?:st|street|ave|avenue|rd|road|blvd|boulevard|ln|lane|dr|drive|ct|court|way)\b`)
	// Bare First-Last patterns collide with clinical phrases ("Pulmonary
	// Edema"), so the legal-name check keys on honorifics.
	namePattern = regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr)\.?\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?\b`)
)

// Abbreviations that must not reach the caregiver page unless immediately
// expanded in parentheses. Matched case-sensitively on their written forms
// so that e.g. "mi" inside ordinary words never trips the check.
var abbreviationPattern = regexp.MustCompile(`\b(?:CHF|CKD|COPD|AFib|AFIB|MI|CVA|HTN|TIA|CABG|HCC|UTI|SOB|DVT|CHD)\b`)

var sentenceSplitPattern = regexp.MustCompile(`[.!?](?:\s+|$)`)

// Scan produces a SafeItem from a validated item. Each text field either
// passes every check or is replaced by its fallback with a violation
// recorded. A violation never aborts the rest of the item.
func (s *SafetyValidator) Scan(item domain.ValidatedItem, spec domain.FieldSpec) domain.SafeItem {
	safe := domain.SafeItem{ValidatedItem: domain.ValidatedItem{
		Domain:    item.Domain,
		Index:     item.Index,
		Fields:    make(map[string]string, len(item.Fields)),
		Defaulted: item.Defaulted,
	}}

	for _, rule := range spec.Fields {
		if rule.Kind == domain.ListField {
			continue
		}
		value := item.Fields[rule.Name]
		if reason, ok := s.checkText(value, rule); !ok {
			safe.Violations = append(safe.Violations, domain.SafetyViolation{
				Field:  rule.Name,
				Reason: reason,
			})
			value = rule.Fallback
		}
		safe.Fields[rule.Name] = value
	}

	// List fields (triage findings) feed rule matching and the clinician
	// queue, where clinical terms are the signal. Only identifier-like
	// content is scrubbed there, element by element, so a stray PHI token
	// cannot suppress an escalation carried by a neighboring finding.
	for _, rule := range spec.Fields {
		if rule.Kind != domain.ListField {
			continue
		}
		src := item.Lists[rule.Name]
		dst := make([]string, len(src))
		for i, entry := range src {
			if hasIdentifierPattern(entry, rule.NamePermitted) {
				safe.Violations = append(safe.Violations, domain.SafetyViolation{
					Field:  rule.Name,
					Reason: domain.IdentifierPattern,
				})
				dst[i] = rule.Fallback
				continue
			}
			dst[i] = entry
		}
		if safe.Lists == nil {
			safe.Lists = make(map[string][]string)
		}
		safe.Lists[rule.Name] = dst
	}

	if len(safe.Violations) > 0 {
		s.logger.WithFields(logrus.Fields{
			"domain":     string(item.Domain),
			"item_index": item.Index,
			"violations": len(safe.Violations),
		}).Debug("Safety scan replaced violating fields with fallbacks")
	}

	return safe
}

// checkText runs every check the field's contract requires. The first
// violation wins; its reason code is returned with ok=false.
func (s *SafetyValidator) checkText(value string, rule domain.FieldRule) (domain.ViolationReason, bool) {
	// The fixed safety reminder is the one sanctioned directive sentence.
	if value == domain.SafetyReminder {
		return "", true
	}

	if !rule.DosagePermitted && hasDosageToken(value) {
		return domain.ForbiddenDosage, false
	}
	if hasDiagnosticLanguage(value) {
		return domain.DiagnosticLanguage, false
	}
	if directivePattern.MatchString(value) {
		return domain.TreatmentDirective, false
	}
	if hasIdentifierPattern(value, rule.NamePermitted) {
		return domain.IdentifierPattern, false
	}
	if hasUnexpandedAbbreviation(value) {
		return domain.DisallowedAbbreviation, false
	}
	if rule.OneQuestion && strings.Count(value, "?") != 1 {
		return domain.MalformedQuestionCount, false
	}
	if rule.MaxSentences > 0 && countSentences(value) > rule.MaxSentences {
		return domain.MalformedSentenceCount, false
	}
	return "", true
}

func hasDosageToken(value string) bool {
	return dosagePattern.MatchString(value) ||
		percentPattern.MatchString(value) ||
		measurementPattern.MatchString(value)
}

func hasDiagnosticLanguage(value string) bool {
	if diagnosisTermPattern.MatchString(value) {
		return true
	}
	lower := strings.ToLower(value)
	for _, phrase := range diagnosisPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func hasIdentifierPattern(value string, namePermitted bool) bool {
	if datePattern.MatchString(value) ||
		digitRunPattern.MatchString(value) ||
		addressPattern.MatchString(value) {
		return true
	}
	if !namePermitted && namePattern.MatchString(value) {
		return true
	}
	return false
}

// hasUnexpandedAbbreviation reports a disallowed abbreviation that is not
// immediately followed by a parenthesized expansion.
func hasUnexpandedAbbreviation(value string) bool {
	for _, loc := range abbreviationPattern.FindAllStringIndex(value, -1) {
		rest := strings.TrimLeft(value[loc[1]:], " ")
		if !strings.HasPrefix(rest, "(") {
			return true
		}
	}
	return false
}

// countSentences splits on ./!/? boundaries, the same deterministic rough
// count the field contracts were authored against.
func countSentences(value string) int {
	count := 0
	for _, part := range sentenceSplitPattern.Split(value, -1) {
		if strings.TrimSpace(part) != "" {
			count++
		}
	}
	return count
}
