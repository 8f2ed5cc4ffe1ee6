package coupons

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
)

// StaticRuleSet is an in-memory rule table keyed by normalized code.
type StaticRuleSet struct {
	rules map[string]Rule
}

// NewStaticRuleSet indexes rules by code. Later duplicates replace earlier ones.
func NewStaticRuleSet(rules ...Rule) (*StaticRuleSet, error) {
	set := &StaticRuleSet{rules: make(map[string]Rule, len(rules))}
	for _, rule := range rules {
		if err := rule.CheckWellFormed(); err != nil {
			return nil, fmt.Errorf("coupon %q: %w", rule.Code, err)
		}
		rule.Code = NormalizeCode(rule.Code)
		set.rules[rule.Code] = rule
	}
	return set, nil
}

// DefaultRules are the codes shipped with the storefront.
func DefaultRules() []Rule {
	return []Rule{
		{
			Code:            "WELCOME10",
			Kind:            enums.DiscountKindPercentage,
			Value:           decimal.RequireFromString("0.10"),
			MinimumPurchase: decimal.Zero,
			Active:          true,
			Description:     "10% off your first booking",
		},
		{
			Code:            "FIXED50",
			Kind:            enums.DiscountKindFixed,
			Value:           decimal.NewFromInt(50),
			MinimumPurchase: decimal.NewFromInt(500),
			Active:          true,
			Description:     "50 off orders of 500 or more",
		},
	}
}

func (s *StaticRuleSet) Resolve(_ context.Context, code string) (Rule, error) {
	rule, ok := s.rules[NormalizeCode(code)]
	if !ok {
		return Rule{}, pkgerrors.New(pkgerrors.CodeCouponNotFound, fmt.Sprintf("coupon %s not found", NormalizeCode(code)))
	}
	return rule, nil
}

// Rules returns a copy of every rule in the table.
func (s *StaticRuleSet) Rules() []Rule {
	out := make([]Rule, 0, len(s.rules))
	for _, rule := range s.rules {
		out = append(out, rule)
	}
	return out
}

type seedFile struct {
	Coupons []seedRule `yaml:"coupons"`
}

type seedRule struct {
	Code            string `yaml:"code"`
	Kind            string `yaml:"kind"`
	Value           string `yaml:"value"`
	MinimumPurchase string `yaml:"minimum_purchase"`
	StartsAt        string `yaml:"starts_at"`
	ExpiresAt       string `yaml:"expires_at"`
	Active          *bool  `yaml:"active"`
	Description     string `yaml:"description"`
}

// ParseRulesYAML decodes a seed document of the form:
//
//	coupons:
//	  - code: SUMMER15
//	    kind: percentage
//	    value: "0.15"
//	    minimum_purchase: "200"
//	    expires_at: 2024-09-01T00:00:00Z
func ParseRulesYAML(data []byte) ([]Rule, error) {
	var doc seedFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding coupon seed: %w", err)
	}
	rules := make([]Rule, 0, len(doc.Coupons))
	for i, raw := range doc.Coupons {
		rule, err := raw.toRule()
		if err != nil {
			return nil, fmt.Errorf("coupon seed entry %d: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// LoadRulesFile reads and parses a YAML seed file.
func LoadRulesFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading coupon seed %q: %w", path, err)
	}
	return ParseRulesYAML(data)
}

func (s seedRule) toRule() (Rule, error) {
	kind, err := enums.ParseDiscountKind(s.Kind)
	if err != nil {
		return Rule{}, err
	}
	value, err := decimal.NewFromString(s.Value)
	if err != nil {
		return Rule{}, fmt.Errorf("invalid value %q: %w", s.Value, err)
	}
	minimum := decimal.Zero
	if s.MinimumPurchase != "" {
		if minimum, err = decimal.NewFromString(s.MinimumPurchase); err != nil {
			return Rule{}, fmt.Errorf("invalid minimum_purchase %q: %w", s.MinimumPurchase, err)
		}
	}
	startsAt, err := parseOptionalTime(s.StartsAt)
	if err != nil {
		return Rule{}, fmt.Errorf("invalid starts_at: %w", err)
	}
	expiresAt, err := parseOptionalTime(s.ExpiresAt)
	if err != nil {
		return Rule{}, fmt.Errorf("invalid expires_at: %w", err)
	}
	active := true
	if s.Active != nil {
		active = *s.Active
	}
	return Rule{
		Code:            NormalizeCode(s.Code),
		Kind:            kind,
		Value:           value,
		MinimumPurchase: minimum,
		StartsAt:        startsAt,
		ExpiresAt:       expiresAt,
		Active:          active,
		Description:     s.Description,
	}, nil
}
