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
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadConfigFromAppliesDefaults(t *testing.T) {
	dir := writeConfig(t, `
database:
  dsn: postgres://u:p@localhost:5432/portal
crm:
  base_url: https://crm.example.com/api
`)
	cfg, err := LoadConfigFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.CRM.RetryCount)
	assert.Equal(t, "P", cfg.CRM.ProspectTypeCode)
	assert.Equal(t, "0 * * * *", cfg.Sync.Cron)
	assert.Equal(t, 1, cfg.Sync.Workers)
	assert.Equal(t, 2*time.Hour, cfg.Sync.StaleAfter)
	assert.Equal(t, 10*time.Minute, cfg.Sync.TenantTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Contains(t, cfg.Sync.HotStages, "Negotiation")

	day, err := cfg.Sync.Weekday()
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, day)
}

func TestLoadConfigFromEnvOverride(t *testing.T) {
	dir := writeConfig(t, `
database:
  dsn: postgres://u:p@localhost:5432/portal
crm:
  base_url: https://crm.example.com/api
sync:
  snapshot_weekday: Fri
  timezone: America/New_York
`)
	t.Setenv("DATABASE_DSN", "postgres://other:pw@db:5432/portal")
	t.Setenv("SYNC_CRON", "*/15 * * * *")

	cfg, err := LoadConfigFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, "postgres://other:pw@db:5432/portal", cfg.Database.DSN)
	assert.Equal(t, "*/15 * * * *", cfg.Sync.Cron)

	day, err := cfg.Sync.Weekday()
	require.NoError(t, err)
	assert.Equal(t, time.Friday, day)

	loc, err := cfg.Sync.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())
}

func TestLoadConfigFromRejectsMissingDSN(t *testing.T) {
	dir := writeConfig(t, `
crm:
  base_url: https://crm.example.com/api
`)
	t.Setenv("DATABASE_DSN", "")
	_, err := LoadConfigFrom(dir)
	assert.Error(t, err)
}

func TestWeekdayRejectsUnknownName(t *testing.T) {
	_, err := SyncConfig{SnapshotWeekday: "someday"}.Weekday()
	assert.Error(t, err)
}
