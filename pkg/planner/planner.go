package planner

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jllopis/conductor/pkg/value"
)

// Planner turns a goal into a plan. ok is false when the goal is not
// recognized. Implementations must not block indefinitely.
type Planner interface {
	GeneratePlan(ctx context.Context, goal string) (plan *Plan, ok bool)
}

// PlannerFunc adapts a function into a Planner.
type PlannerFunc func(ctx context.Context, goal string) (*Plan, bool)

// GeneratePlan implements Planner.
func (f PlannerFunc) GeneratePlan(ctx context.Context, goal string) (*Plan, bool) {
	return f(ctx, goal)
}

// Rule maps goals containing a phrase to a step template.
type Rule struct {
	Contains string `yaml:"contains" json:"contains"`
	Steps    []Step `yaml:"steps" json:"steps"`
}

// KeywordPlanner returns the steps of the first rule whose phrase occurs in
// the goal, compared case-insensitively.
type KeywordPlanner struct {
	rules []Rule
}

// NewKeywordPlanner creates a planner with the given rules, or DefaultRules
// when none are given.
func NewKeywordPlanner(rules ...Rule) *KeywordPlanner {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &KeywordPlanner{rules: append([]Rule(nil), rules...)}
}

// DefaultRules handles log summarization and disk usage analysis.
func DefaultRules() []Rule {
	return []Rule{
		{
			Contains: "summarize log file",
			Steps: []Step{
				{ToolName: "read_file", Args: value.Object(map[string]value.Value{"path": value.String("system.log")}), OutputKey: "log_content"},
				{ToolName: "summarize", Args: value.Object(map[string]value.Value{"text": value.String("${log_content}")}), OutputKey: "summary"},
			},
		},
		{
			Contains: "analyze disk usage",
			Steps: []Step{
				{ToolName: "check_disk", Args: value.Object(nil), OutputKey: "disk_info"},
				{ToolName: "summarize", Args: value.Object(map[string]value.Value{"text": value.String("${disk_info}")}), OutputKey: "disk_summary"},
			},
		},
	}
}

// Rules returns a copy of the configured rules.
func (p *KeywordPlanner) Rules() []Rule {
	return append([]Rule(nil), p.rules...)
}

// GeneratePlan implements Planner.
func (p *KeywordPlanner) GeneratePlan(_ context.Context, goal string) (*Plan, bool) {
	normalized := strings.ToLower(goal)
	for _, rule := range p.rules {
		phrase := strings.ToLower(strings.TrimSpace(rule.Contains))
		if phrase == "" || !strings.Contains(normalized, phrase) {
			continue
		}
		return &Plan{Goal: goal, Steps: append([]Step(nil), rule.Steps...)}, true
	}
	return nil, false
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// ParseRules decodes a YAML document of the form "rules: [{contains, steps}]".
func ParseRules(data []byte) ([]Rule, error) {
	var doc rulesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse planner rules: %w", err)
	}
	for i, rule := range doc.Rules {
		if strings.TrimSpace(rule.Contains) == "" {
			return nil, fmt.Errorf("rule %d: contains is required", i)
		}
		plan := Plan{Goal: rule.Contains, Steps: rule.Steps}
		if err := plan.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return doc.Rules, nil
}

// LoadRules reads planner rules from a YAML file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRules(data)
}
