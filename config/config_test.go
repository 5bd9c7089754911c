package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Pull.Retries)
	assert.Equal(t, time.Second, cfg.Pull.BaseDelay)
	assert.Equal(t, 60*time.Second, cfg.Pull.Deadline)
	assert.Equal(t, 20, cfg.Marketplace.BatchSize)
	assert.Equal(t, 60*time.Second, cfg.Marketplace.TokenSafetyMargin)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
pull:
  retries: 5
  base_delay: 250ms
  deadline: 10s
marketplace:
  batch_size: 10
  inter_call_delay: 500ms
catalog:
  targets:
    - id: sku
      name: SKU
      required: true
      type: string
      aliases: [artikul]
  restricted_categories:
    - match: weapons
      reason: not allowed
debug: true
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Pull.Retries)
	assert.Equal(t, 250*time.Millisecond, cfg.Pull.BaseDelay)
	assert.Equal(t, 10*time.Second, cfg.Pull.Deadline)
	// не указанное в файле остаётся по умолчанию
	assert.Equal(t, 100, cfg.Pull.SampleLimit)
	assert.Equal(t, 10, cfg.Marketplace.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Marketplace.InterCallDelay)
	require.Len(t, cfg.Catalog.Targets, 1)
	assert.Equal(t, []string{"artikul"}, cfg.Catalog.Targets[0].Aliases)
	assert.False(t, cfg.Catalog.Empty())
	assert.True(t, cfg.Debug)
}

func TestLoadConfig_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("MARKETPLACE_CLIENT_ID", "client-from-env")
	t.Setenv("MARKETPLACE_REFRESH_TOKEN", "refresh-from-env")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/mdm?sslmode=disable")

	path := writeConfig(t, `
marketplace:
  client_id: client-from-file
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "client-from-env", cfg.Marketplace.ClientID)
	assert.Equal(t, "refresh-from-env", cfg.Marketplace.RefreshToken)
	assert.Equal(t, "postgres://u:p@db:5432/mdm?sslmode=disable", cfg.Postgres.GetConnectionString())
	assert.True(t, cfg.Postgres.Enabled())
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero retries", "pull:\n  retries: 0\n"},
		{"batch too large", "marketplace:\n  batch_size: 50\n"},
		{"unknown field", "pull:\n  retriez: 3\n"},
		{"target without id", "catalog:\n  targets:\n    - name: SKU\n"},
		{"bad target type", "catalog:\n  targets:\n    - id: sku\n      type: blob\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestPostgresConfig_GetConnectionString(t *testing.T) {
	pc := PostgresConfig{Host: "db", Port: "5432", User: "mdm", Password: "secret", DBName: "mdm"}
	assert.Equal(t, "host=db port=5432 user=mdm password=secret dbname=mdm sslmode=disable", pc.GetConnectionString())

	assert.False(t, (&PostgresConfig{}).Enabled())
}
