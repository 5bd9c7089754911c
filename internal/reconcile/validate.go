package reconcile

import (
	"fmt"

	"gomarket_mdm/pkg/records"
	"gomarket_mdm/pkg/records/converters"
)

type ValidationResult struct {
	SourceField  string `json:"source_field"`
	TargetField  string `json:"target_field"`
	ExpectedType string `json:"expected_type"`
	ActualType   string `json:"actual_type"`
	Valid        bool   `json:"valid"`
	SampleValue  any    `json:"sample_value,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// ValidateMappings сверяет тип данных в сопоставленных колонках с типом поля схемы.
// Результаты идут в порядке mappings; незаполненные сопоставления пропускаются.
func ValidateMappings(table *records.Table, targets []TargetFieldSpec, mappings []FieldMapping) []ValidationResult {
	byID := make(map[string]TargetFieldSpec, len(targets))
	for _, t := range targets {
		if _, ok := byID[t.ID]; !ok {
			byID[t.ID] = t
		}
	}

	results := make([]ValidationResult, 0, len(mappings))
	for _, m := range mappings {
		if !m.Complete() {
			continue
		}
		values := table.Column(m.SourceField)
		actual := converters.DetectType(values)

		target, known := byID[m.TargetField]
		expected := target.Type
		if !known || expected == "" {
			expected = converters.TypeUnknown
		}

		res := ValidationResult{
			SourceField:  m.SourceField,
			TargetField:  m.TargetField,
			ExpectedType: expected,
			ActualType:   actual,
			SampleValue:  firstNonNil(values),
		}
		switch {
		case !known:
			res.Notes = "Field not in expected schema"
		case expected == converters.TypeUnknown:
			res.Valid = true
		case actual == expected:
			res.Valid = true
		case expected == converters.TypeNumber && actual == converters.TypeString && allNumeric(values):
			res.Valid = true
		default:
			res.Notes = fmt.Sprintf("Expected %s, but found %s", expected, actual)
		}
		results = append(results, res)
	}
	return results
}

func firstNonNil(values []any) any {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func allNumeric(values []any) bool {
	for _, v := range values {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok || !converters.IsNumericString(s) {
			return false
		}
	}
	return true
}
