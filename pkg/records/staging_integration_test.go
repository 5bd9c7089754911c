//go:build integration

package records

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStager_Stage(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE SCHEMA IF NOT EXISTS mdm_test;
		CREATE TABLE IF NOT EXISTS mdm_test.staged_records (
			source_id UUID NOT NULL,
			pull_id UUID NOT NULL,
			row_number INT NOT NULL,
			payload JSONB NOT NULL
		);`)
	require.NoError(t, err)
	defer db.Exec(`DROP SCHEMA mdm_test CASCADE`)

	sourceID, pullID := uuid.NewString(), uuid.NewString()
	table := &Table{Columns: []string{"sku"}, Records: []Record{{"sku": "A"}, {"sku": "B"}}, Total: 2}

	n, err := NewPostgresStager(db, nil).SetNewSchema("mdm_test").Stage(context.Background(), sourceID, pullID, table)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var sku string
	err = db.QueryRow(`SELECT payload->>'sku' FROM mdm_test.staged_records WHERE pull_id = $1 AND row_number = 2`, pullID).Scan(&sku)
	require.NoError(t, err)
	assert.Equal(t, "B", sku)
}
