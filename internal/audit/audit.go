// Package audit is the diagnostic side channel of the policy pipeline. It
// captures safety violations and triage decisions for clinician/auditor
// review; nothing recorded here ever reaches the caregiver-facing page.
package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/caremap-policy-core/internal/domain"
)

// ViolationRecord is one rejected field, tied back to its request and item.
type ViolationRecord struct {
	ID        string                 `json:"id"`
	RequestID string                 `json:"request_id"`
	Domain    domain.ItemDomain      `json:"domain"`
	ItemIndex int                    `json:"item_index"`
	Violation domain.SafetyViolation `json:"violation"`
	Timestamp time.Time              `json:"timestamp"`
}

// TriageRecord is one priority decision, tied back to its request and item.
type TriageRecord struct {
	ID        string                `json:"id"`
	RequestID string                `json:"request_id"`
	Domain    domain.ItemDomain     `json:"domain"`
	ItemIndex int                   `json:"item_index"`
	Decision  domain.TriageDecision `json:"decision"`
	Timestamp time.Time             `json:"timestamp"`
}

// Recorder receives pipeline diagnostics. Implementations must be safe for
// concurrent use; the pipeline records from multiple item workers.
type Recorder interface {
	RecordViolation(requestID string, d domain.ItemDomain, itemIndex int, v domain.SafetyViolation)
	RecordTriage(requestID string, d domain.ItemDomain, itemIndex int, dec domain.TriageDecision)
}

// LogRecorder writes audit records as structured log entries.
type LogRecorder struct {
	logger *logrus.Logger
}

// NewLogRecorder creates a recorder backed by the given logger.
func NewLogRecorder(logger *logrus.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

// RecordViolation logs a rejected field with its reason code.
func (r *LogRecorder) RecordViolation(requestID string, d domain.ItemDomain, itemIndex int, v domain.SafetyViolation) {
	r.logger.WithFields(logrus.Fields{
		"audit_id":   uuid.NewString(),
		"request_id": requestID,
		"domain":     string(d),
		"item_index": itemIndex,
		"field":      v.Field,
		"reason":     string(v.Reason),
	}).Warn("Safety violation: field replaced with fallback")
}

// RecordTriage logs a triage decision with the full merge breakdown.
func (r *LogRecorder) RecordTriage(requestID string, d domain.ItemDomain, itemIndex int, dec domain.TriageDecision) {
	fields := logrus.Fields{
		"audit_id":   uuid.NewString(),
		"request_id": requestID,
		"domain":     string(d),
		"item_index": itemIndex,
	}
	for k, v := range dec.LogFields() {
		fields[k] = v
	}
	r.logger.WithFields(fields).Info("Triage decision recorded")
}

// MemoryRecorder keeps audit records in memory. Used by tests and by
// callers that surface the clinician review queue directly.
type MemoryRecorder struct {
	mu         sync.Mutex
	violations []ViolationRecord
	triage     []TriageRecord
}

// NewMemoryRecorder creates an empty in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// RecordViolation stores a violation record.
func (r *MemoryRecorder) RecordViolation(requestID string, d domain.ItemDomain, itemIndex int, v domain.SafetyViolation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.violations = append(r.violations, ViolationRecord{
		ID:        uuid.NewString(),
		RequestID: requestID,
		Domain:    d,
		ItemIndex: itemIndex,
		Violation: v,
		Timestamp: time.Now().UTC(),
	})
}

// RecordTriage stores a triage record.
func (r *MemoryRecorder) RecordTriage(requestID string, d domain.ItemDomain, itemIndex int, dec domain.TriageDecision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triage = append(r.triage, TriageRecord{
		ID:        uuid.NewString(),
		RequestID: requestID,
		Domain:    d,
		ItemIndex: itemIndex,
		Decision:  dec,
		Timestamp: time.Now().UTC(),
	})
}

// Violations returns a copy of the recorded violations.
func (r *MemoryRecorder) Violations() []ViolationRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ViolationRecord, len(r.violations))
	copy(out, r.violations)
	return out
}

// TriageDecisions returns a copy of the recorded triage decisions.
func (r *MemoryRecorder) TriageDecisions() []TriageRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TriageRecord, len(r.triage))
	copy(out, r.triage)
	return out
}
