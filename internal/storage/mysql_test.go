package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDSNAddsParseTime(t *testing.T) {
	out, err := normalizeDSN("user:pass@tcp(localhost:3306)/pulseboard")
	require.NoError(t, err)
	assert.Contains(t, out, "parseTime=true")
}

func TestNormalizeDSNKeepsExistingOptions(t *testing.T) {
	out, err := normalizeDSN("user:pass@tcp(db:3306)/pulseboard?charset=utf8mb4&parseTime=false")
	require.NoError(t, err)
	assert.Contains(t, out, "parseTime=true")
	assert.Contains(t, out, "charset=utf8mb4")
	assert.NotContains(t, out, "parseTime=false")
}

func TestNormalizeDSNRejectsGarbage(t *testing.T) {
	_, err := normalizeDSN("not a dsn at all://")
	assert.Error(t, err)
}
