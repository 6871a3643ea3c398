package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caremap-policy-core/internal/audit"
	"github.com/caremap-policy-core/internal/config"
	"github.com/caremap-policy-core/internal/domain"
)

func testPipeline(t *testing.T) (*Pipeline, *audit.MemoryRecorder) {
	t.Helper()
	manager, err := config.NewManager(t.TempDir())
	require.NoError(t, err)

	recorder := audit.NewMemoryRecorder()
	pipeline, err := NewPipeline(manager.Policy(), testLogger(), recorder)
	require.NoError(t, err)
	return pipeline, recorder
}

func medicationItems(n int) []ItemRequest {
	items := make([]ItemRequest, n)
	for i := range items {
		items[i] = ItemRequest{Raw: domain.RawItemResult{
			"medication":     fmt.Sprintf("Medication %d", i),
			"why_it_matters": "Keeps a chronic condition stable.",
			"when_to_give":   "With breakfast",
			"important_note": "Take with a full glass of water.",
		}}
	}
	return items
}

func TestPipelineCapsOversizedSection(t *testing.T) {
	pipeline, _ := testPipeline(t)

	page, err := pipeline.Process(context.Background(), []SectionRequest{{
		Section: domain.SectionMedications,
		Domain:  domain.MedicationDomain,
		Items:   medicationItems(15),
	}})
	require.NoError(t, err)
	require.NotEmpty(t, page.RequestID)
	assert.Equal(t, domain.SafetyReminder, page.SafetyReminder)
	require.Len(t, page.Sections, 1)

	section := page.Sections[0]
	assert.Equal(t, domain.SectionMedications, section.Section)
	assert.Len(t, section.Items, 8)
	assert.True(t, section.Truncated)
	assert.Equal(t, domain.TruncationPointer, section.Pointer)
	// Input-order metric: the first eight source records survive, in order.
	for i, item := range section.Items {
		assert.Equal(t, fmt.Sprintf("Medication %d", i), item.Item.Field("medication"))
	}
}

func TestPipelineEscalatesAndRecordsTriage(t *testing.T) {
	pipeline, recorder := testPipeline(t)

	page, err := pipeline.Process(context.Background(), []SectionRequest{{
		Section: domain.SectionImagingQueue,
		Domain:  domain.RadiologyFindingDomain,
		Items: []ItemRequest{
			{Raw: domain.RawItemResult{
				"findings":           []string{"heart size normal"},
				"primary_impression": "No acute process.",
				"priority":           "ROUTINE",
				"priority_reason":    "Stable appearance.",
			}},
			{Raw: domain.RawItemResult{
				"findings":           []string{"large right pneumothorax"},
				"primary_impression": "Needs clinician review.",
				"priority":           "ROUTINE",
				"priority_reason":    "Generator under-called this.",
			}},
		},
	}})
	require.NoError(t, err)
	require.Len(t, page.Sections, 1)

	// Final-priority metric: the escalated item ranks first despite arriving
	// second.
	items := page.Sections[0].Items
	require.Len(t, items, 2)
	require.NotNil(t, items[0].Triage)
	assert.Equal(t, domain.STAT, items[0].Triage.FinalPriority)
	assert.Equal(t, 1, items[0].Order)
	assert.Equal(t, domain.ROUTINE, items[1].Triage.FinalPriority)

	decisions := recorder.TriageDecisions()
	require.Len(t, decisions, 2)
	for _, rec := range decisions {
		assert.Equal(t, page.RequestID, rec.RequestID)
		assert.Equal(t, domain.RadiologyFindingDomain, rec.Domain)
	}
}

func TestPipelineMissingFindingsNeverDowngrade(t *testing.T) {
	pipeline, _ := testPipeline(t)

	page, err := pipeline.Process(context.Background(), []SectionRequest{{
		Section: domain.SectionImagingQueue,
		Domain:  domain.RadiologyFindingDomain,
		Items: []ItemRequest{
			// findings key absent entirely: the fallback fills the list.
			{Raw: domain.RawItemResult{
				"primary_impression": "Needs clinician review.",
				"priority":           "STAT",
				"priority_reason":    "Urgent appearance on the study.",
			}},
			// Sole findings element is scrubbed for identifier content.
			{Raw: domain.RawItemResult{
				"findings":           []string{"compared with study from 2025-01-15"},
				"primary_impression": "Needs clinician review.",
				"priority":           "STAT",
				"priority_reason":    "Urgent appearance on the study.",
			}},
		},
	}})
	require.NoError(t, err)
	require.Len(t, page.Sections, 1)

	items := page.Sections[0].Items
	require.Len(t, items, 2)
	for _, item := range items {
		require.NotNil(t, item.Triage)
		assert.Equal(t, domain.STAT, item.Triage.ModelPriority)
		assert.Equal(t, domain.STAT, item.Triage.FinalPriority,
			"missing or redacted findings must not downgrade a valid model priority")
		assert.Empty(t, item.Triage.OverrideReason)
	}
}

func TestPipelineRecordsSafetyViolations(t *testing.T) {
	pipeline, recorder := testPipeline(t)

	page, err := pipeline.Process(context.Background(), []SectionRequest{{
		Section: domain.SectionLabInsights,
		Domain:  domain.LabDomain,
		Items: []ItemRequest{{
			Raw: domain.RawItemResult{
				"what_was_checked":   "Your potassium level was checked.",
				"what_it_means":      "The level is a bit low.",
				"what_to_ask_doctor": "Is this serious? Should we retest?",
			},
			SeverityHint: "slightly off",
		}},
	}})
	require.NoError(t, err)
	require.Len(t, page.Sections, 1)
	require.Len(t, page.Sections[0].Items, 1)

	item := page.Sections[0].Items[0].Item
	assert.Equal(t, "What should we ask the care team about this?", item.Field("what_to_ask_doctor"))
	assert.Equal(t, "The level is a bit low.", item.Field("what_it_means"))

	violations := recorder.Violations()
	require.Len(t, violations, 1)
	assert.Equal(t, page.RequestID, violations[0].RequestID)
	assert.Equal(t, "what_to_ask_doctor", violations[0].Violation.Field)
	assert.Equal(t, domain.MalformedQuestionCount, violations[0].Violation.Reason)
}

func TestPipelineOrdersSectionsByConfiguration(t *testing.T) {
	pipeline, _ := testPipeline(t)

	// Requested message queue before medications; the page must flip them.
	page, err := pipeline.Process(context.Background(), []SectionRequest{
		{
			Section: domain.SectionMessageQueue,
			Domain:  domain.HL7MessageDomain,
			Items: []ItemRequest{{Raw: domain.RawItemResult{
				"priority":           "ROUTINE",
				"priority_reason":    "Routine result message.",
				"key_findings":       []string{"potassium low"},
				"recommended_action": "Review at next huddle",
			}}},
		},
		{
			Section: domain.SectionMedications,
			Domain:  domain.MedicationDomain,
			Items:   medicationItems(2),
		},
	})
	require.NoError(t, err)
	require.Len(t, page.Sections, 2)
	assert.Equal(t, domain.SectionMedications, page.Sections[0].Section)
	assert.Equal(t, domain.SectionMessageQueue, page.Sections[1].Section)
}

func TestPipelineDropsCareGapWithUnknownBucket(t *testing.T) {
	pipeline, _ := testPipeline(t)

	page, err := pipeline.Process(context.Background(), []SectionRequest{{
		Section: domain.SectionActionsToday,
		Domain:  domain.CareGapDomain,
		Items: []ItemRequest{
			{Raw: domain.RawItemResult{
				"time_bucket": "Today",
				"action_item": "Schedule the flu shot.",
				"next_step":   "Call the clinic to book.",
			}},
			{Raw: domain.RawItemResult{
				"time_bucket": "Someday",
				"action_item": "Review the care plan.",
				"next_step":   "Bring it to the next visit.",
			}},
		},
	}})
	require.NoError(t, err)
	require.Len(t, page.Sections, 1)

	items := page.Sections[0].Items
	require.Len(t, items, 1)
	assert.Equal(t, "Schedule the flu shot.", items[0].Item.Field("action_item"))
}

func TestPipelineFillsMissingFieldsBeforeAssembly(t *testing.T) {
	pipeline, _ := testPipeline(t)

	page, err := pipeline.Process(context.Background(), []SectionRequest{{
		Section: domain.SectionMedications,
		Domain:  domain.MedicationDomain,
		Items:   []ItemRequest{{Raw: domain.RawItemResult{"medication": "Warfarin"}}},
	}})
	require.NoError(t, err)
	require.Len(t, page.Sections, 1)
	require.Len(t, page.Sections[0].Items, 1)

	item := page.Sections[0].Items[0].Item
	assert.Equal(t, "Warfarin", item.Field("medication"))
	assert.Equal(t, domain.FallbackText, item.Field("why_it_matters"))
	assert.Equal(t, domain.FallbackText, item.Field("when_to_give"))
}

func TestPipelineSkipsUnknownSection(t *testing.T) {
	pipeline, _ := testPipeline(t)

	page, err := pipeline.Process(context.Background(), []SectionRequest{{
		Section: domain.Section("not-a-section"),
		Domain:  domain.MedicationDomain,
		Items:   medicationItems(1),
	}})
	require.NoError(t, err)
	assert.Empty(t, page.Sections)
}

func TestPipelineCancelledContext(t *testing.T) {
	pipeline, _ := testPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	page, err := pipeline.Process(ctx, []SectionRequest{{
		Section: domain.SectionMedications,
		Domain:  domain.MedicationDomain,
		Items:   medicationItems(5),
	}})
	require.Error(t, err)
	assert.Nil(t, page, "a cancelled request must not return a partial page")
	assert.ErrorIs(t, err, context.Canceled)
}
