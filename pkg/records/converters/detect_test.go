package converters

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectType(t *testing.T) {
	tests := []struct {
		name   string
		values []any
		want   string
	}{
		{"empty", nil, TypeUnknown},
		{"only nils", []any{nil, nil}, TypeNull},
		{"floats", []any{1.5, float64(2)}, TypeNumber},
		{"numeric strings", []any{"12", "3.50", nil}, TypeNumber},
		{"negative is not numeric", []any{"-1"}, TypeString},
		{"booleans", []any{true, "no", "Yes"}, TypeBoolean},
		{"dates", []any{"2024-01-02", "1/2/2024"}, TypeDate},
		{"iso timestamps", []any{"2024-01-02T10:00:00Z"}, TypeDate},
		{"objects", []any{map[string]any{"w": 1}}, TypeObject},
		{"arrays", []any{[]any{"a"}}, TypeArray},
		{"mixed", []any{"abc", 1.0}, TypeString},
		// смотрим только первые пять непустых значений
		{"sample window", []any{"1", "2", "3", "4", "5", "oops"}, TypeNumber},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectType(tt.values))
		})
	}
}

func TestForType(t *testing.T) {
	conv, err := ForType("integer")
	assert.NoError(t, err)
	v, err := conv(" 42 ")
	assert.NoError(t, err)
	assert.Equal(t, 42, v)

	conv, err = ForType("")
	assert.NoError(t, err)
	v, err = conv("   ")
	assert.NoError(t, err)
	assert.Nil(t, v)

	_, err = ForType("blob")
	assert.Error(t, err)

	_, err = BoolConverter("maybe")
	assert.Error(t, err)
}
