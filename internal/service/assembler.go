package service

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/caremap-policy-core/internal/domain"
)

// CappingAssembler produces the final bounded, ordered collection for each
// section. It is the only component that sees a section's full candidate
// set, and the only place the one-page guarantee is enforced.
type CappingAssembler struct {
	logger *logrus.Logger
}

// NewCappingAssembler creates a new assembler.
func NewCappingAssembler(logger *logrus.Logger) *CappingAssembler {
	return &CappingAssembler{logger: logger}
}

// Assemble ranks the candidates by score (descending) and truncates to the
// section cap. The sort is stable, so equal scores keep original input
// order. The result never exceeds cap.Capacity regardless of input size.
func (a *CappingAssembler) Assemble(items []domain.RankedItem, cap domain.SectionCap) domain.BoundedCollection {
	ranked := make([]domain.RankedItem, len(items))
	copy(ranked, items)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	out := domain.BoundedCollection{Section: cap.Section, Items: ranked}
	if len(ranked) > cap.Capacity {
		out.Items = ranked[:cap.Capacity]
		out.Truncated = true
		out.Pointer = domain.TruncationPointer
	}

	a.logger.WithFields(logrus.Fields{
		"section":    string(cap.Section),
		"candidates": len(items),
		"emitted":    len(out.Items),
		"truncated":  out.Truncated,
	}).Debug("Assembled bounded section")

	return out
}

// Score computes a section candidate's ranking value under the section's
// metric. Higher scores rank first; ties fall back to input order via the
// stable sort in Assemble.
func Score(metric domain.RankMetric, item *domain.SafeItem, triage *domain.TriageDecision, severityHint string) int {
	switch metric {
	case domain.MetricFinalPriority:
		if triage != nil {
			return triage.FinalPriority.Rank()
		}
		return 0
	case domain.MetricLabSeverity:
		return labSeverityScore(severityHint)
	case domain.MetricUrgency:
		return urgencyScore(item)
	default:
		// MetricInputOrder: every candidate scores equal, the stable
		// sort preserves source record order.
		return 0
	}
}

// labSeverityScore orders lab insights most-abnormal first. The hint is
// the source record's meaning category, not generator text.
func labSeverityScore(category string) int {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "needs follow-up":
		return 3
	case "slightly off":
		return 2
	case "normal":
		return 1
	default:
		return 0
	}
}

// urgencyScore orders action items by time bucket, then actionability: an
// item with a concrete next step outranks one that fell back.
func urgencyScore(item *domain.SafeItem) int {
	bucket := 0
	switch item.Field("time_bucket") {
	case "Today":
		bucket = 3
	case "This Week":
		bucket = 2
	case "Later":
		bucket = 1
	}
	score := bucket * 2
	if step := item.Field("next_step"); step != "" && step != domain.FallbackText {
		score++
	}
	return score
}
