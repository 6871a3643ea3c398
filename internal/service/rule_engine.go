package service

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/caremap-policy-core/internal/domain"
)

// decisionCacheSize bounds the in-memory decision cache. Decisions are a
// pure function of the rule table and the item's findings, so caching is
// safe for the life of the process.
const decisionCacheSize = 2048

// noFindingTerms mark an explicitly negative/normal result.
var noFindingTerms = []string{"no finding", "normal", "unremarkable"}

// findingListFields are the list fields the rule table matches against.
var findingListFields = []string{"findings", "key_findings"}

// PriorityRuleEngine computes the auditable, escalate-only final priority
// for triage items by joining the generator-proposed priority with the
// physician-maintained rule table.
//
// The rule table is immutable after construction; Decide is safe for
// concurrent use.
type PriorityRuleEngine struct {
	logger *logrus.Logger
	rules  []domain.PriorityRule
	cache  *lru.Cache
}

// NewPriorityRuleEngine creates a rule engine over a validated rule table.
// A malformed rule is a construction error: the engine must never run with
// a partially loaded table.
func NewPriorityRuleEngine(logger *logrus.Logger, rules []domain.PriorityRule) (*PriorityRuleEngine, error) {
	if len(rules) == 0 {
		return nil, domain.ErrEmptyRuleTable
	}
	table := make([]domain.PriorityRule, len(rules))
	copy(table, rules)
	for i := range table {
		table[i].Normalize()
		if err := table[i].Validate(); err != nil {
			return nil, err
		}
	}

	cache, err := lru.New(decisionCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create decision cache: %w", err)
	}

	logger.WithField("rule_count", len(table)).Info("Initialized priority rule table")

	return &PriorityRuleEngine{
		logger: logger,
		rules:  table,
		cache:  cache,
	}, nil
}

// Decide evaluates every in-scope rule against the item's findings and
// joins the result with the generator-proposed priority. The join only
// escalates: rank(final) >= max(rank(model), rank(rule)).
func (e *PriorityRuleEngine) Decide(item *domain.SafeItem) domain.TriageDecision {
	findings := e.findingsFor(item)
	// The negative-result override only trusts text the generator actually
	// wrote. A findings list filled by schema defaulting or altered during
	// safety scanning is missing data, not a normal result.
	negative := hasNoFindingTerm(findings) && !findingsTampered(item)
	model, parsed := domain.ParsePriority(item.Field("priority"))
	if !parsed {
		// Fail toward relying on rules, never toward silence.
		e.logger.WithFields(logrus.Fields{
			"domain":     string(item.Domain),
			"item_index": item.Index,
			"reported":   item.Field("priority"),
		}).Warn("Unparseable model priority, degrading to ROUTINE for the join")
	}

	key := cacheKey(item.Domain, model, negative, findings)
	if cached, ok := e.cache.Get(key); ok {
		return cached.(domain.TriageDecision)
	}

	decision := e.decide(item.Domain, model, negative, findings)
	e.cache.Add(key, decision)

	e.logger.WithFields(logrus.Fields{
		"domain":         string(item.Domain),
		"item_index":     item.Index,
		"model_priority": decision.ModelPriority.String(),
		"rule_priority":  decision.RulePriority.String(),
		"final_priority": decision.FinalPriority.String(),
		"matched_rules":  decision.MatchedRules,
	}).Debug("Completed triage priority decision")

	return decision
}

func (e *PriorityRuleEngine) decide(d domain.ItemDomain, model domain.Priority, negative bool, findings []string) domain.TriageDecision {
	decision := domain.TriageDecision{
		ModelPriority: model,
		RulePriority:  domain.ROUTINE,
		MatchedRules:  []string{},
	}

	// Match every in-scope rule; each rule fires at most once per item.
	var matched []domain.PriorityRule
	for _, rule := range e.rules {
		if !rule.Scope.AppliesTo(d) {
			continue
		}
		for _, finding := range findings {
			if strings.Contains(finding, rule.Pattern) {
				matched = append(matched, rule)
				decision.MatchedRules = append(decision.MatchedRules, rule.Name)
				break
			}
		}
	}

	var top domain.PriorityRule
	for _, rule := range matched {
		if rule.MinPriority.Rank() > decision.RulePriority.Rank() {
			decision.RulePriority = rule.MinPriority
			top = rule
		}
	}

	// An explicitly negative result forces ROUTINE unless an escalating
	// rule matched; a "normal" label must never mask a rule hit.
	if negative && decision.RulePriority.Rank() < domain.SOON.Rank() {
		decision.RulePriority = domain.ROUTINE
		decision.FinalPriority = domain.ROUTINE
		if model != domain.ROUTINE {
			decision.OverrideReason = fmt.Sprintf(
				"Rule override: negative finding indicates normal result (%s → ROUTINE)", model)
		}
		return decision
	}

	decision.FinalPriority = domain.MaxPriority(model, decision.RulePriority)
	if decision.FinalPriority != model {
		decision.OverrideReason = fmt.Sprintf("Rule override: %s (%s → %s)",
			top.Name, model, decision.FinalPriority)
	}
	return decision
}

// findingsFor returns the lowercased finding text the rule table matches
// against: every list field of the item (findings / key_findings).
func (e *PriorityRuleEngine) findingsFor(item *domain.SafeItem) []string {
	var out []string
	for _, name := range findingListFields {
		for _, f := range item.Lists[name] {
			out = append(out, strings.ToLower(f))
		}
	}
	return out
}

// findingsTampered reports whether any findings list was defaulted during
// schema validation or had elements replaced during safety scanning.
func findingsTampered(item *domain.SafeItem) bool {
	for _, name := range findingListFields {
		for _, d := range item.Defaulted {
			if d == name {
				return true
			}
		}
		for _, v := range item.Violations {
			if v.Field == name {
				return true
			}
		}
	}
	return false
}

func hasNoFindingTerm(findings []string) bool {
	for _, finding := range findings {
		for _, term := range noFindingTerms {
			if strings.Contains(finding, term) {
				return true
			}
		}
	}
	return false
}

func cacheKey(d domain.ItemDomain, model domain.Priority, negative bool, findings []string) string {
	key := string(d) + "|" + string(model) + "|" + strings.Join(findings, "\x1f")
	if negative {
		key += "|negative"
	}
	return key
}
