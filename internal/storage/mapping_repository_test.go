package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"gomarket_mdm/internal/reconcile"
)

func TestMappingRepository_RejectsBeforeTouchingDatabase(t *testing.T) {
	// db == nil: любое обращение к базе упало бы с паникой
	repo := NewMappingRepository(nil, nil)

	tests := []struct {
		name     string
		mappings []reconcile.FieldMapping
		want     error
	}{
		{"empty source", []reconcile.FieldMapping{{SourceField: "", TargetField: "sku"}}, ErrIncompleteMapping},
		{"empty target", []reconcile.FieldMapping{{SourceField: "SKU", TargetField: ""}}, ErrIncompleteMapping},
		{"duplicate target", []reconcile.FieldMapping{
			{SourceField: "SKU", TargetField: "sku"},
			{SourceField: "Item #", TargetField: "sku"},
		}, ErrDuplicateTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Replace(context.Background(), "source", tt.mappings)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCheckMappings_SharedSourceIsAllowed(t *testing.T) {
	err := checkMappings([]reconcile.FieldMapping{
		{SourceField: "Price", TargetField: "price"},
		{SourceField: "Price", TargetField: "cost"},
	})
	assert.NoError(t, err)
}
