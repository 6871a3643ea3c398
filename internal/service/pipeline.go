package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/caremap-policy-core/internal/audit"
	"github.com/caremap-policy-core/internal/config"
	"github.com/caremap-policy-core/internal/domain"
)

// defaultMaxWorkers bounds the per-item fan-out.
const defaultMaxWorkers = 8

// ItemRequest pairs one raw generator result with the source-side ranking
// hint the generator does not own (e.g. the lab's meaning category).
type ItemRequest struct {
	Raw domain.RawItemResult `json:"raw"`

	// SeverityHint carries the structured input's abnormality category
	// for metrics that rank on source data. Optional.
	SeverityHint string `json:"severity_hint,omitempty"`
}

// SectionRequest is the full candidate set for one output section.
type SectionRequest struct {
	Section domain.Section    `json:"section"`
	Domain  domain.ItemDomain `json:"domain"`
	Items   []ItemRequest     `json:"items"`
}

// Page is the complete, bounded, safety-scrubbed output of one request.
// Sections appear in configured order, never arrival order.
type Page struct {
	RequestID string                     `json:"request_id"`
	Sections  []domain.BoundedCollection `json:"sections"`

	// SafetyReminder is the fixed, non-generated line printed on every
	// sheet regardless of content.
	SafetyReminder string `json:"safety_reminder"`
}

// Pipeline wires the policy components together:
// schema validation -> safety scan -> (triage) rule engine -> assembly.
// Per-item work is fanned out; the assembler is the join barrier.
type Pipeline struct {
	policy     *config.Policy
	logger     *logrus.Logger
	recorder   audit.Recorder
	schema     *SchemaValidator
	safety     *SafetyValidator
	engine     *PriorityRuleEngine
	assembler  *CappingAssembler
	maxWorkers int
}

// NewPipeline builds a pipeline over a loaded policy. Rule table problems
// surface here, before any request is accepted.
func NewPipeline(policy *config.Policy, logger *logrus.Logger, recorder audit.Recorder) (*Pipeline, error) {
	engine, err := NewPriorityRuleEngine(logger, policy.Rules)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rule engine: %w", err)
	}
	return &Pipeline{
		policy:     policy,
		logger:     logger,
		recorder:   recorder,
		schema:     NewSchemaValidator(logger),
		safety:     NewSafetyValidator(logger),
		engine:     engine,
		assembler:  NewCappingAssembler(logger),
		maxWorkers: defaultMaxWorkers,
	}, nil
}

// Process validates, scrubs, triages, and assembles every requested
// section. Cancellation is all-or-nothing: on context cancellation no
// partially validated page is returned.
func (p *Pipeline) Process(ctx context.Context, requests []SectionRequest) (*Page, error) {
	requestID := uuid.NewString()
	start := time.Now()

	p.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"sections":   len(requests),
	}).Info("Starting policy pipeline")

	assembled := make(map[domain.Section]domain.BoundedCollection, len(requests))
	for _, req := range requests {
		collection, err := p.processSection(ctx, requestID, req)
		if err != nil {
			return nil, err
		}
		if collection == nil {
			continue
		}
		assembled[req.Section] = *collection
	}

	page := &Page{RequestID: requestID, SafetyReminder: domain.SafetyReminder}
	for _, section := range p.policy.SectionOrder {
		if c, ok := assembled[section]; ok {
			page.Sections = append(page.Sections, c)
		}
	}

	p.logger.WithFields(logrus.Fields{
		"request_id":      requestID,
		"sections":        len(page.Sections),
		"processing_time": time.Since(start),
	}).Info("Completed policy pipeline")

	return page, nil
}

// processSection runs the per-item stages concurrently, then assembles.
// Only context cancellation can produce an error; every per-item failure
// is absorbed into safe defaults upstream of this point.
func (p *Pipeline) processSection(ctx context.Context, requestID string, req SectionRequest) (*domain.BoundedCollection, error) {
	cap, ok := p.policy.Cap(req.Section)
	if !ok {
		p.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"section":    string(req.Section),
		}).Warn("Skipping section with no configured cap")
		return nil, nil
	}
	spec, ok := p.policy.Spec(req.Domain)
	if !ok {
		p.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"domain":     string(req.Domain),
		}).Warn("Skipping section with no field spec for its domain")
		return nil, nil
	}

	results := make([]*domain.RankedItem, len(req.Items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxWorkers)
	for i := range req.Items {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.processItem(requestID, req, spec, cap.Metric, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Discard partial results rather than emit a half-validated page.
		return nil, fmt.Errorf("request cancelled: %w", err)
	}

	candidates := make([]domain.RankedItem, 0, len(results))
	for _, r := range results {
		if r != nil {
			candidates = append(candidates, *r)
		}
	}

	collection := p.assembler.Assemble(candidates, cap)
	return &collection, nil
}

// processItem runs one item through schema validation, safety scanning,
// and, for triage domains, the rule engine. It never fails.
func (p *Pipeline) processItem(requestID string, req SectionRequest, spec domain.FieldSpec, metric domain.RankMetric, index int) *domain.RankedItem {
	validated := p.schema.Validate(req.Items[index].Raw, spec, index)
	safe := p.safety.Scan(validated, spec)

	for _, v := range safe.Violations {
		p.recorder.RecordViolation(requestID, req.Domain, index, v)
	}

	// Care-gap items carry a time bucket copied from the source record;
	// an unknown bucket means the item cannot be placed on the page.
	if req.Domain == domain.CareGapDomain && !validBucket(safe.Field("time_bucket")) {
		p.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"item_index": index,
			"bucket":     safe.Field("time_bucket"),
		}).Warn("Dropping care-gap item with unknown time bucket")
		return nil
	}

	item := &domain.RankedItem{Item: safe, Order: index}
	if req.Domain.IsTriage() {
		decision := p.engine.Decide(&safe)
		p.recorder.RecordTriage(requestID, req.Domain, index, decision)
		item.Triage = &decision
	}
	item.Score = Score(metric, &item.Item, item.Triage, req.Items[index].SeverityHint)
	return item
}

func validBucket(bucket string) bool {
	switch bucket {
	case "Today", "This Week", "Later":
		return true
	default:
		return false
	}
}
