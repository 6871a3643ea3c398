// Package domain contains core business entities for the caregiver-sheet
// policy layer: triage severities, item domains, output sections, and the
// validated/scrubbed item shapes that cross into rendering.
//
// Everything the generator returns is untrusted; the types here represent
// the guarantees the policy pipeline has already enforced.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

func normalizeUpper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Priority represents a triage severity level for imaging findings and
// incoming clinical messages. The set is totally ordered:
// ROUTINE < SOON < STAT.
type Priority string

const (
	ROUTINE Priority = "ROUTINE"
	SOON    Priority = "SOON"
	STAT    Priority = "STAT"
)

// priorityRank is the numeric ordering used for the escalate-only merge.
// Merging is always done on ranks, never on the string values, so an
// unknown level can never accidentally outrank a known one.
var priorityRank = map[Priority]int{
	ROUTINE: 1,
	SOON:    2,
	STAT:    3,
}

// Rank returns the numeric severity rank. Invalid priorities rank 0,
// below ROUTINE.
func (p Priority) Rank() int {
	return priorityRank[p]
}

// IsValid reports whether the priority is one of the three triage levels.
func (p Priority) IsValid() bool {
	_, ok := priorityRank[p]
	return ok
}

// String returns the string representation of the priority.
func (p Priority) String() string {
	return string(p)
}

// LogFields returns structured logging fields for audit trails.
func (p Priority) LogFields() map[string]any {
	return map[string]any{
		"priority":      string(p),
		"priority_rank": p.Rank(),
		"is_valid":      p.IsValid(),
	}
}

// ParsePriority normalizes a generator-reported priority string. The
// second return is false when the value is missing or not one of the three
// levels; callers degrade such values to ROUTINE so the rule table, not
// the generator, decides the outcome.
func ParsePriority(s string) (Priority, bool) {
	p := Priority(normalizeUpper(s))
	if p.IsValid() {
		return p, true
	}
	return ROUTINE, false
}

// MaxPriority joins two priorities under the severity ordering. The result
// is never weaker than either input.
func MaxPriority(a, b Priority) Priority {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ItemDomain identifies which generator contract an item belongs to. Each
// domain has its own closed FieldSpec.
type ItemDomain string

const (
	MedicationDomain       ItemDomain = "medication"
	LabDomain              ItemDomain = "lab"
	CareGapDomain          ItemDomain = "care_gap"
	ImagingDomain          ItemDomain = "imaging"
	RadiologyFindingDomain ItemDomain = "radiology_finding"
	HL7MessageDomain       ItemDomain = "hl7_message"
)

// IsValid reports whether the item domain is known.
func (d ItemDomain) IsValid() bool {
	switch d {
	case MedicationDomain, LabDomain, CareGapDomain, ImagingDomain,
		RadiologyFindingDomain, HL7MessageDomain:
		return true
	default:
		return false
	}
}

// IsTriage reports whether items of this domain carry a priority and go
// through the rule engine.
func (d ItemDomain) IsTriage() bool {
	return d == RadiologyFindingDomain || d == HL7MessageDomain
}

// Section identifies one bounded block of the rendered page. Section order
// on the page is fixed by configuration, not by arrival order.
type Section string

const (
	SectionMedications  Section = "medications"
	SectionLabInsights  Section = "lab_insights"
	SectionPendingItems Section = "pending_items"
	SectionActionsToday Section = "actions_today"
	SectionActionsWeek  Section = "actions_week"
	SectionActionsLater Section = "actions_later"
	SectionImagingQueue Section = "imaging_queue"
	SectionMessageQueue Section = "message_queue"
)

// IsValid reports whether the section is known.
func (s Section) IsValid() bool {
	switch s {
	case SectionMedications, SectionLabInsights, SectionPendingItems,
		SectionActionsToday, SectionActionsWeek, SectionActionsLater,
		SectionImagingQueue, SectionMessageQueue:
		return true
	default:
		return false
	}
}

// RankMetric selects how a section orders its candidates before capping.
type RankMetric string

const (
	// MetricInputOrder preserves source record order (medications: the
	// record order is clinically curated upstream).
	MetricInputOrder RankMetric = "input_order"
	// MetricLabSeverity orders by meaning category, most abnormal first.
	MetricLabSeverity RankMetric = "lab_severity"
	// MetricUrgency orders by time bucket then actionability.
	MetricUrgency RankMetric = "urgency"
	// MetricFinalPriority orders by final triage priority rank.
	MetricFinalPriority RankMetric = "final_priority"
)

// IsValid reports whether the rank metric is known.
func (m RankMetric) IsValid() bool {
	switch m {
	case MetricInputOrder, MetricLabSeverity, MetricUrgency, MetricFinalPriority:
		return true
	default:
		return false
	}
}

// SectionCap fixes the capacity and ranking metric for one section.
type SectionCap struct {
	Section  Section    `json:"section" mapstructure:"section"`
	Capacity int        `json:"capacity" mapstructure:"capacity"`
	Metric   RankMetric `json:"metric" mapstructure:"metric"`
}

// Validate ensures the cap can be enforced deterministically.
func (c *SectionCap) Validate() error {
	if !c.Section.IsValid() {
		return fmt.Errorf("section cap validation: invalid section %q", c.Section)
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("section cap validation: %w", errors.New("capacity must be positive"))
	}
	if !c.Metric.IsValid() {
		return fmt.Errorf("section cap validation: invalid rank metric %q", c.Metric)
	}
	return nil
}

// FallbackText is the shared safe placeholder substituted for missing or
// rejected field content.
const FallbackText = "Not specified — confirm with care team."

// TruncationPointer is the single fixed line surfaced when a section was
// truncated to its cap.
const TruncationPointer = "More items are on file — ask your care team for the full list."

// SafetyReminder is the fixed, non-generated reminder printed on every
// sheet. It is the one sanctioned directive sentence and is exempt from
// the treatment-directive scan.
const SafetyReminder = "Do not change any medicines without talking to your care team."
