package config

import (
	"github.com/caremap-policy-core/internal/domain"
)

// Built-in policy. The config file can override any of these tables; what
// ships here matches the clinically reviewed defaults of the reference
// deployment.

func defaultSectionCaps() map[domain.Section]domain.SectionCap {
	caps := []domain.SectionCap{
		{Section: domain.SectionMedications, Capacity: 8, Metric: domain.MetricInputOrder},
		{Section: domain.SectionLabInsights, Capacity: 3, Metric: domain.MetricLabSeverity},
		{Section: domain.SectionPendingItems, Capacity: 5, Metric: domain.MetricUrgency},
		{Section: domain.SectionActionsToday, Capacity: 2, Metric: domain.MetricUrgency},
		{Section: domain.SectionActionsWeek, Capacity: 2, Metric: domain.MetricUrgency},
		{Section: domain.SectionActionsLater, Capacity: 1, Metric: domain.MetricUrgency},
		{Section: domain.SectionImagingQueue, Capacity: 10, Metric: domain.MetricFinalPriority},
		{Section: domain.SectionMessageQueue, Capacity: 10, Metric: domain.MetricFinalPriority},
	}
	out := make(map[domain.Section]domain.SectionCap, len(caps))
	for _, c := range caps {
		out[c.Section] = c
	}
	return out
}

func defaultSectionOrder() []domain.Section {
	return []domain.Section{
		domain.SectionMedications,
		domain.SectionLabInsights,
		domain.SectionActionsToday,
		domain.SectionActionsWeek,
		domain.SectionActionsLater,
		domain.SectionPendingItems,
		domain.SectionImagingQueue,
		domain.SectionMessageQueue,
	}
}

// askDoctorFallback is the fallback for one-question fields. It must
// itself satisfy the one-question contract so that re-scanning scrubbed
// output is a no-op.
const askDoctorFallback = "What should we ask the care team about this?"

func defaultFieldSpecs() map[domain.ItemDomain]domain.FieldSpec {
	specs := []domain.FieldSpec{
		{
			Domain: domain.MedicationDomain,
			Fields: []domain.FieldRule{
				{Name: "medication", Kind: domain.TextField, Fallback: domain.FallbackText},
				{Name: "why_it_matters", Kind: domain.TextField, Fallback: domain.FallbackText, MaxSentences: 1},
				// The when_to_give column is the one place dose and timing
				// text from the record is allowed to appear.
				{Name: "when_to_give", Kind: domain.TextField, Fallback: domain.FallbackText, DosagePermitted: true},
				{Name: "important_note", Kind: domain.TextField, Fallback: domain.FallbackText, MaxSentences: 1},
			},
		},
		{
			Domain: domain.LabDomain,
			Fields: []domain.FieldRule{
				{Name: "what_was_checked", Kind: domain.TextField, Fallback: domain.FallbackText, MaxSentences: 1},
				{Name: "what_it_means", Kind: domain.TextField, Fallback: domain.FallbackText},
				{Name: "what_to_ask_doctor", Kind: domain.TextField, Fallback: askDoctorFallback, OneQuestion: true},
			},
		},
		{
			Domain: domain.CareGapDomain,
			Fields: []domain.FieldRule{
				{Name: "time_bucket", Kind: domain.TextField, Fallback: "Later"},
				{Name: "action_item", Kind: domain.TextField, Fallback: domain.FallbackText, MaxSentences: 1},
				{Name: "next_step", Kind: domain.TextField, Fallback: domain.FallbackText},
			},
		},
		{
			Domain: domain.ImagingDomain,
			Fields: []domain.FieldRule{
				{Name: "study_type", Kind: domain.TextField, Fallback: domain.FallbackText},
				{Name: "what_was_done", Kind: domain.TextField, Fallback: domain.FallbackText, MaxSentences: 1},
				{Name: "key_finding", Kind: domain.TextField, Fallback: domain.FallbackText, MaxSentences: 3},
				{Name: "what_to_ask_doctor", Kind: domain.TextField, Fallback: askDoctorFallback, OneQuestion: true},
			},
		},
		{
			Domain: domain.RadiologyFindingDomain,
			Fields: []domain.FieldRule{
				{Name: "findings", Kind: domain.ListField, Fallback: "Findings unavailable — manual review"},
				{Name: "primary_impression", Kind: domain.TextField, Fallback: domain.FallbackText},
				{Name: "priority", Kind: domain.TextField, Fallback: string(domain.ROUTINE)},
				{Name: "priority_reason", Kind: domain.TextField, Fallback: domain.FallbackText},
			},
		},
		{
			Domain: domain.HL7MessageDomain,
			Fields: []domain.FieldRule{
				{Name: "priority", Kind: domain.TextField, Fallback: string(domain.ROUTINE)},
				{Name: "priority_reason", Kind: domain.TextField, Fallback: domain.FallbackText},
				{Name: "key_findings", Kind: domain.ListField, Fallback: "Findings unavailable — manual review"},
				{Name: "recommended_action", Kind: domain.TextField, Fallback: "Manual review required"},
			},
		},
	}
	out := make(map[domain.ItemDomain]domain.FieldSpec, len(specs))
	for _, s := range specs {
		out[s.Domain] = s
	}
	return out
}

func defaultPriorityRules() []domain.PriorityRule {
	return []domain.PriorityRule{
		// Imaging stream.
		{Pattern: "pneumothorax", MinPriority: domain.STAT, Name: "Pneumothorax Rule",
			Rationale: "Collapsed lung requires immediate intervention", Scope: domain.ImagingScope},
		{Pattern: "edema", MinPriority: domain.STAT, Name: "Pulmonary Edema Rule",
			Rationale: "Fluid overload requires immediate intervention", Scope: domain.ImagingScope},
		{Pattern: "pneumonia", MinPriority: domain.SOON, Name: "Pneumonia Rule",
			Rationale: "Active infection needs same-day evaluation", Scope: domain.ImagingScope},
		{Pattern: "effusion", MinPriority: domain.SOON, Name: "Pleural Effusion Rule",
			Rationale: "Fluid collection needs same-day evaluation", Scope: domain.ImagingScope},
		{Pattern: "consolidation", MinPriority: domain.SOON, Name: "Consolidation Rule",
			Rationale: "Possible infection needs same-day evaluation", Scope: domain.ImagingScope},
		{Pattern: "infiltrat", MinPriority: domain.SOON, Name: "Infiltration Rule",
			Rationale: "Possible infection needs same-day evaluation", Scope: domain.ImagingScope},
		{Pattern: "mass", MinPriority: domain.SOON, Name: "Mass Rule",
			Rationale: "Rule out malignancy", Scope: domain.ImagingScope},
		{Pattern: "nodule", MinPriority: domain.SOON, Name: "Nodule Rule",
			Rationale: "Rule out malignancy", Scope: domain.ImagingScope},
		{Pattern: "cardiomegaly", MinPriority: domain.ROUTINE, Name: "Cardiomegaly Rule",
			Rationale: "Chronic finding, routine follow-up", Scope: domain.ImagingScope},

		// Message stream.
		{Pattern: "critical", MinPriority: domain.STAT, Name: "Critical Value Rule",
			Rationale: "Lab flagged a critical value", Scope: domain.MessageScope},
		{Pattern: "troponin", MinPriority: domain.STAT, Name: "Cardiac Marker Rule",
			Rationale: "Possible myocardial injury", Scope: domain.MessageScope},
		{Pattern: "positive blood culture", MinPriority: domain.STAT, Name: "Bacteremia Rule",
			Rationale: "Possible bloodstream infection", Scope: domain.MessageScope},
		{Pattern: "potassium", MinPriority: domain.SOON, Name: "Electrolyte Rule",
			Rationale: "Electrolyte disturbance needs same-day review", Scope: domain.MessageScope},
		{Pattern: "hemoglobin", MinPriority: domain.SOON, Name: "Anemia Rule",
			Rationale: "Falling hemoglobin needs same-day review", Scope: domain.MessageScope},
		{Pattern: "elevated inr", MinPriority: domain.SOON, Name: "Coagulation Rule",
			Rationale: "Bleeding risk needs same-day review", Scope: domain.MessageScope},
	}
}
