//go:build integration

package storage

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomarket_mdm/internal/acquisition"
	"gomarket_mdm/internal/reconcile"
	"gomarket_mdm/migrations/mdm"
	"gomarket_mdm/pkg/dbconnect/migration"
	"gomarket_mdm/pkg/records"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migration.Apply(db, mdm.NewMigration(nil)))
	return db
}

func TestSourceRepository_Lifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	sources := NewSourceRepository(db, nil)

	created, err := sources.Create(ctx, acquisition.RemoteSource{
		Label:   "Acme feed",
		Kind:    acquisition.KindHTTP,
		Path:    "https://acme.example/products.csv",
		Options: map[string]any{"delimiter": ";"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	t.Cleanup(func() { db.Exec(`DELETE FROM mdm.remote_sources WHERE id = $1`, created.ID) })

	got, err := sources.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Acme feed", got.Label)
	assert.Equal(t, ";", got.Options["delimiter"])
	assert.Nil(t, got.LastPulledAt)

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, sources.RecordPull(ctx, created.ID, acquisition.PullOutcome{Success: false}, at))

	got, err = sources.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastPulledAt)
	assert.True(t, at.Equal(*got.LastPulledAt))
	assert.Equal(t, acquisition.PullStatusError, got.LastPullStatus)

	missing, err := sources.Get(ctx, "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := sources.List(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, all)
}

func TestPullLogRepository_LogAndRecent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	src, err := NewSourceRepository(db, nil).Create(ctx, acquisition.RemoteSource{Kind: acquisition.KindFile, Label: "upload"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Exec(`DELETE FROM mdm.remote_sources WHERE id = $1`, src.ID) })

	logs := NewPullLogRepository(db, nil)
	_, err = logs.Log(ctx, src.ID, acquisition.PullOutcome{
		Message: "operation timed out after 60 seconds", Attempts: 3, ErrorCode: acquisition.ErrTimeout,
	})
	require.NoError(t, err)
	_, err = logs.Log(ctx, src.ID, acquisition.PullOutcome{
		Success: true, Message: "Successfully retrieved 2 records", Attempts: 1, TotalRecords: 2,
		Records: []records.Record{{"sku": "A"}, {"sku": "B"}},
	})
	require.NoError(t, err)

	recent, err := logs.Recent(ctx, src.ID, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.True(t, recent[0].Success)
	assert.JSONEq(t, `[{"sku":"A"},{"sku":"B"}]`, string(recent[0].SampleData))
	assert.Equal(t, "Timeout", recent[1].ErrorCode)
	assert.Nil(t, recent[1].SampleData)
}

func TestMappingRepository_Replace(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	src, err := NewSourceRepository(db, nil).Create(ctx, acquisition.RemoteSource{Kind: acquisition.KindFile, Label: "upload"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Exec(`DELETE FROM mdm.remote_sources WHERE id = $1`, src.ID) })

	repo := NewMappingRepository(db, nil)
	require.NoError(t, repo.Replace(ctx, src.ID, []reconcile.FieldMapping{
		{SourceField: "SKU", TargetField: "sku"},
		{SourceField: "Title", TargetField: "product_name"},
	}))
	require.NoError(t, repo.Replace(ctx, src.ID, []reconcile.FieldMapping{
		{SourceField: "Item", TargetField: "sku"},
	}))

	got, err := repo.List(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, []reconcile.FieldMapping{{SourceField: "Item", TargetField: "sku"}}, got)
}
