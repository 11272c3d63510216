package platform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulseboard/internal/credentials"
)

func TestRequireKeys(t *testing.T) {
	creds := credentials.Credentials{"access_token": "tok", "shop_name": "demo"}

	assert.NoError(t, RequireKeys("shopify", creds, "access_token", "shop_name"))

	err := RequireKeys("shopify", creds, "access_token", "api_secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_secret")
	assert.Contains(t, err.Error(), "shopify")

	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestRequireKeysRejectsEmptyValues(t *testing.T) {
	creds := credentials.Credentials{"access_token": ""}
	assert.Error(t, RequireKeys("meta", creds, "access_token"))
}

func TestWindowDefaults(t *testing.T) {
	start, end := Window(time.Time{}, time.Time{})
	assert.InDelta(t, float64(DefaultWindowDays), end.Sub(start).Hours()/24, 0.01)
	assert.WithinDuration(t, time.Now(), end, time.Second)
}

func TestWindowKeepsExplicitBounds(t *testing.T) {
	wantStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)

	start, end := Window(wantStart, wantEnd)
	assert.Equal(t, wantStart, start)
	assert.Equal(t, wantEnd, end)
}

func TestWindowFillsMissingEnd(t *testing.T) {
	wantStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	start, end := Window(wantStart, time.Time{})
	assert.Equal(t, wantStart, start)
	assert.WithinDuration(t, time.Now(), end, time.Second)
}
