// Package config loads the process-wide, read-only policy configuration:
// section caps, per-domain field specs, and the priority rule table.
// Everything here is loaded once at startup; request handling only ever
// reads the resulting Policy by reference.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/caremap-policy-core/internal/domain"
)

// Policy is the immutable configuration the pipeline runs against.
type Policy struct {
	Logging LoggingConfig

	// Caps maps each section to its capacity and ranking metric.
	Caps map[domain.Section]domain.SectionCap

	// Specs maps each item domain to its closed field contract.
	Specs map[domain.ItemDomain]domain.FieldSpec

	// Rules is the full, validated priority rule table, in authored order.
	Rules []domain.PriorityRule

	// SectionOrder fixes the order sections appear on the page.
	SectionOrder []domain.Section
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Manager loads and validates the policy configuration using Viper.
type Manager struct {
	v      *viper.Viper
	policy *Policy
}

// NewManager creates a configuration manager and loads the policy. A
// malformed rule table is a fatal load error by design: the process must
// refuse to start rather than run with a partially valid table.
func NewManager(configPath string) (*Manager, error) {
	m := &Manager{v: viper.New()}
	if err := m.load(configPath); err != nil {
		return nil, fmt.Errorf("failed to load policy configuration: %w", err)
	}
	return m, nil
}

// Policy returns the loaded, validated policy.
func (m *Manager) Policy() *Policy {
	return m.policy
}

func (m *Manager) load(configPath string) error {
	m.v.SetConfigName("policy")
	m.v.SetConfigType("yaml")
	if configPath != "" {
		m.v.AddConfigPath(configPath)
	}
	m.v.AddConfigPath(".")
	m.v.AddConfigPath("./config")
	m.v.AddConfigPath("/etc/caremap-policy/")

	m.v.SetEnvPrefix("CAREMAP")
	m.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.v.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults carry the full built-in policy.
	if err := m.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	policy := &Policy{
		Logging: LoggingConfig{
			Level:  m.v.GetString("logging.level"),
			Format: m.v.GetString("logging.format"),
		},
		Caps:         defaultSectionCaps(),
		Specs:        defaultFieldSpecs(),
		Rules:        defaultPriorityRules(),
		SectionOrder: defaultSectionOrder(),
	}

	if m.v.IsSet("section_caps") {
		var caps []domain.SectionCap
		if err := m.v.UnmarshalKey("section_caps", &caps); err != nil {
			return fmt.Errorf("error unmarshaling section caps: %w", err)
		}
		for _, c := range caps {
			policy.Caps[c.Section] = c
		}
	}

	if m.v.IsSet("field_specs") {
		var specs []domain.FieldSpec
		if err := m.v.UnmarshalKey("field_specs", &specs); err != nil {
			return fmt.Errorf("error unmarshaling field specs: %w", err)
		}
		for _, s := range specs {
			policy.Specs[s.Domain] = s
		}
	}

	if m.v.IsSet("priority_rules") {
		var rules []domain.PriorityRule
		if err := m.v.UnmarshalKey("priority_rules", &rules); err != nil {
			return fmt.Errorf("error unmarshaling priority rules: %w", err)
		}
		policy.Rules = rules
	}

	if err := policy.Validate(); err != nil {
		return err
	}

	m.policy = policy
	return nil
}

func (m *Manager) setDefaults() {
	m.v.SetDefault("logging.level", "info")
	m.v.SetDefault("logging.format", "json")
}

// Validate normalizes and checks the whole policy. Rule validation is
// all-or-nothing: the first bad rule fails the load.
func (p *Policy) Validate() error {
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(p.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", p.Logging.Level)
	}

	if len(p.Rules) == 0 {
		return domain.ErrEmptyRuleTable
	}
	for i := range p.Rules {
		p.Rules[i].Normalize()
		if err := p.Rules[i].Validate(); err != nil {
			return err
		}
	}

	if len(p.Caps) == 0 {
		return fmt.Errorf("no section caps configured")
	}
	for section, cap := range p.Caps {
		if cap.Section != section {
			return fmt.Errorf("section cap key %q does not match cap section %q", section, cap.Section)
		}
		if err := cap.Validate(); err != nil {
			return err
		}
	}

	if len(p.Specs) == 0 {
		return fmt.Errorf("no field specs configured")
	}
	for d, spec := range p.Specs {
		if spec.Domain != d {
			return fmt.Errorf("field spec key %q does not match spec domain %q", d, spec.Domain)
		}
		if err := spec.Validate(); err != nil {
			return err
		}
	}

	for _, s := range p.SectionOrder {
		if _, ok := p.Caps[s]; !ok {
			return fmt.Errorf("section order names uncapped section %q", s)
		}
	}

	return nil
}

// Spec returns the field spec for an item domain.
func (p *Policy) Spec(d domain.ItemDomain) (domain.FieldSpec, bool) {
	s, ok := p.Specs[d]
	return s, ok
}

// Cap returns the cap for a section.
func (p *Policy) Cap(s domain.Section) (domain.SectionCap, bool) {
	c, ok := p.Caps[s]
	return c, ok
}
