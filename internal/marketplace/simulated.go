package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// CategoryRule: категории, содержащие Match, считаются закрытыми для листинга.
type CategoryRule struct {
	Match  string
	Reason string
}

func DefaultCategoryRules() []CategoryRule {
	return []CategoryRule{
		{Match: "safety", Reason: "Safety products require approval before listing"},
		{Match: "communication", Reason: "Communication devices require approval before listing"},
	}
}

// SimulatedLookup строит детерминированный результат по категории без обращения к маркетплейсу.
// Все результаты помечены Simulated и имеют непустой Rationale.
type SimulatedLookup struct {
	rules []CategoryRule
}

func NewSimulatedLookup(rules []CategoryRule) *SimulatedLookup {
	if len(rules) == 0 {
		rules = DefaultCategoryRules()
	}
	return &SimulatedLookup{rules: rules}
}

func (s *SimulatedLookup) Lookup(_ context.Context, kind Kind, items []Item) ([]LookupResult, error) {
	results := make([]LookupResult, len(items))
	for i, item := range items {
		payload, rationale := s.simulate(kind, item)
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		results[i] = LookupResult{
			Key:       item.Key,
			Success:   true,
			Payload:   raw,
			Simulated: true,
			Rationale: rationale,
		}
	}
	return results, nil
}

func (s *SimulatedLookup) simulate(kind Kind, item Item) (any, string) {
	rule, restricted := s.match(item.Category)

	switch kind {
	case KindRestrictions:
		if restricted {
			reason := rule.Reason
			if reason == "" {
				reason = fmt.Sprintf("Category %q is restricted", item.Category)
			}
			return restrictionVerdict{Listable: false, Reasons: []string{reason}},
				fmt.Sprintf("simulated: category %q matches restricted rule %q", item.Category, rule.Match)
		}
		return restrictionVerdict{Listable: true, Reasons: []string{}},
			fmt.Sprintf("simulated: category %q matches no restricted rule, listable by default", item.Category)
	default:
		payload := map[string]any{
			"key":      item.Key,
			"listable": !restricted,
			"price":    nil,
		}
		return payload, fmt.Sprintf("simulated: no live %s data available", kind)
	}
}

func (s *SimulatedLookup) match(category string) (CategoryRule, bool) {
	c := strings.ToLower(category)
	if c == "" {
		return CategoryRule{}, false
	}
	for _, r := range s.rules {
		if r.Match != "" && strings.Contains(c, strings.ToLower(r.Match)) {
			return r, true
		}
	}
	return CategoryRule{}, false
}
