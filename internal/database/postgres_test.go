package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestAdminDSNFor(t *testing.T) {
	name, admin, err := adminDSNFor("postgres://u:p@localhost:5432/portal_sync?sslmode=disable")
	require.NoError(t, err)
	assert.Equal(t, "portal_sync", name)
	assert.Equal(t, "postgres://u:p@localhost:5432/postgres?sslmode=disable", admin)

	name, admin, err = adminDSNFor("postgres://u:p@localhost:5432/postgres")
	require.NoError(t, err)
	assert.Empty(t, name)
	assert.Empty(t, admin)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, ParseLogLevel("silent"))
	assert.Equal(t, logger.Info, ParseLogLevel(" INFO "))
	assert.Equal(t, logger.Error, ParseLogLevel("error"))
	assert.Equal(t, logger.Warn, ParseLogLevel(""))
}
