package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	path := filepath.Join(t.TempDir(), "creds.enc")
	store, err := NewFileStore(path, "test-secret", logger)
	require.NoError(t, err)
	return store
}

func TestSaveLoadRoundtrip(t *testing.T) {
	store := newTestStore(t)

	creds := Credentials{"shop_name": "demo", "access_token": "tok_123"}
	require.NoError(t, store.Save("shopify", creds))

	loaded, err := store.Load("shopify")
	require.NoError(t, err)
	assert.Equal(t, creds, loaded)
}

func TestLoadReturnsCopy(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save("shopify", Credentials{"access_token": "tok"}))

	first, err := store.Load("shopify")
	require.NoError(t, err)
	first["access_token"] = "mutated"

	second, err := store.Load("shopify")
	require.NoError(t, err)
	assert.Equal(t, "tok", second["access_token"])
}

func TestLoadMissingPlatform(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save("twitter", Credentials{"api_key": "k"}))

	require.NoError(t, store.Delete("twitter"))
	_, err := store.Load("twitter")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Delete("twitter"), ErrNotFound)
}

func TestPlatformsSorted(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save("twitter", Credentials{"a": "1"}))
	require.NoError(t, store.Save("meta", Credentials{"a": "1"}))
	require.NoError(t, store.Save("shopify", Credentials{"a": "1"}))

	names, err := store.Platforms()
	require.NoError(t, err)
	assert.Equal(t, []string{"meta", "shopify", "twitter"}, names)
}

func TestFileIsEncrypted(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	path := filepath.Join(t.TempDir(), "creds.enc")
	store, err := NewFileStore(path, "test-secret", logger)
	require.NoError(t, err)

	require.NoError(t, store.Save("shopify", Credentials{"access_token": "very_secret_token"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "very_secret_token")
	assert.NotContains(t, string(raw), "shopify")
}

func TestWrongKeyFailsToDecrypt(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	path := filepath.Join(t.TempDir(), "creds.enc")

	store, err := NewFileStore(path, "right-key", logger)
	require.NoError(t, err)
	require.NoError(t, store.Save("meta", Credentials{"access_token": "tok"}))

	other, err := NewFileStore(path, "wrong-key", logger)
	require.NoError(t, err)
	_, err = other.Load("meta")
	assert.Error(t, err)
}
