package converters

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeDate    = "date"
	TypeObject  = "object"
	TypeArray   = "array"
	TypeString  = "string"
	TypeNull    = "null"
	TypeUnknown = "unknown"
)

// Смотрим только на первые непустые значения.
const detectSampleSize = 5

var datePattern = regexp.MustCompile(`^\d{1,4}[/-]\d{1,2}[/-]\d{1,4}|^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}`)

var booleanWords = map[string]struct{}{
	"true": {}, "false": {}, "yes": {}, "no": {}, "0": {}, "1": {},
}

// DetectType определяет тип колонки по образцу значений.
// Пустой образец даёт unknown, образец из одних nil даёт null.
func DetectType(values []any) string {
	if len(values) == 0 {
		return TypeUnknown
	}

	sample := make([]any, 0, detectSampleSize)
	for _, v := range values {
		if v == nil {
			continue
		}
		sample = append(sample, v)
		if len(sample) == detectSampleSize {
			break
		}
	}
	if len(sample) == 0 {
		return TypeNull
	}

	switch {
	case all(sample, isNumeric):
		return TypeNumber
	case all(sample, isBoolean):
		return TypeBoolean
	case all(sample, isDate):
		return TypeDate
	case all(sample, isObject):
		return TypeObject
	case all(sample, isArray):
		return TypeArray
	}
	return TypeString
}

// IsNumericString: строка из цифр с не более чем одной точкой.
func IsNumericString(s string) bool {
	s = strings.Replace(s, ".", "", 1)
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func all(values []any, pred func(any) bool) bool {
	for _, v := range values {
		if !pred(v) {
			return false
		}
	}
	return true
}

func isNumeric(v any) bool {
	switch t := v.(type) {
	case int, int32, int64, float32, float64:
		return true
	case string:
		return IsNumericString(t)
	}
	return false
}

func isBoolean(v any) bool {
	switch t := v.(type) {
	case bool:
		return true
	case string:
		_, ok := booleanWords[strings.ToLower(t)]
		return ok
	}
	return false
}

func isDate(v any) bool {
	s, ok := v.(string)
	return ok && datePattern.MatchString(s)
}

func isObject(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

func isArray(v any) bool {
	_, ok := v.([]any)
	return ok
}
