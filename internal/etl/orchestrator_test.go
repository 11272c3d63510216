package etl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulseboard/internal/credentials"
	"pulseboard/internal/httpx"
	"pulseboard/internal/storage"
)

type fakeCredStore struct {
	creds map[string]credentials.Credentials
}

func (f *fakeCredStore) Load(platform string) (credentials.Credentials, error) {
	creds, ok := f.creds[platform]
	if !ok {
		return nil, credentials.ErrNotFound
	}
	return creds, nil
}

func (f *fakeCredStore) Save(platform string, creds credentials.Credentials) error {
	f.creds[platform] = creds
	return nil
}

func (f *fakeCredStore) Delete(platform string) error {
	delete(f.creds, platform)
	return nil
}

func (f *fakeCredStore) Platforms() ([]string, error) {
	names := make([]string, 0, len(f.creds))
	for name := range f.creds {
		names = append(names, name)
	}
	return names, nil
}

type fakePipeline struct {
	name       string
	valid      bool
	processErr error
	processed  int
}

func (f *fakePipeline) Platform() string              { return f.name }
func (f *fakePipeline) Validate(context.Context) bool { return f.valid }
func (f *fakePipeline) Process(ctx context.Context, start, end time.Time) error {
	f.processed++
	return f.processErr
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func newTestOrchestrator(creds *fakeCredStore, pipelines map[string]*fakePipeline) *Orchestrator {
	o := NewOrchestrator(creds, storage.NewMemoryStore(), httpx.Config{Timeout: time.Second}, testLogger())
	o.SetFactory(func(platform string, _ credentials.Credentials) (Pipeline, error) {
		p, ok := pipelines[platform]
		if !ok {
			return nil, errors.New("no pipeline for " + platform)
		}
		return p, nil
	})
	return o
}

func TestRunAllIsolatesFailures(t *testing.T) {
	creds := &fakeCredStore{creds: map[string]credentials.Credentials{
		"shopify": {"access_token": "a"},
		"meta":    {"access_token": "b"},
		"twitter": {"api_key": "c"},
	}}
	pipelines := map[string]*fakePipeline{
		"shopify": {name: "shopify", valid: true},
		"meta":    {name: "meta", valid: true, processErr: errors.New("boom")},
		"twitter": {name: "twitter", valid: true},
	}
	o := newTestOrchestrator(creds, pipelines)

	summary, err := o.RunAll(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"shopify", "twitter"}, summary.Succeeded)
	assert.Empty(t, summary.Skipped)
	require.Contains(t, summary.Failed, "meta")
	assert.EqualError(t, summary.Failed["meta"], "boom")

	// The failing platform never stops the others.
	assert.Equal(t, 1, pipelines["shopify"].processed)
	assert.Equal(t, 1, pipelines["twitter"].processed)
}

func TestRunAllSkipsInvalidCredentials(t *testing.T) {
	creds := &fakeCredStore{creds: map[string]credentials.Credentials{
		"shopify": {"access_token": "a"},
		"meta":    {"access_token": "expired"},
	}}
	pipelines := map[string]*fakePipeline{
		"shopify": {name: "shopify", valid: true},
		"meta":    {name: "meta", valid: false},
	}
	o := newTestOrchestrator(creds, pipelines)

	summary, err := o.RunAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"shopify"}, summary.Succeeded)
	assert.Equal(t, []string{"meta"}, summary.Skipped)
	assert.Zero(t, pipelines["meta"].processed)
}

func TestRunAllRecordsFactoryFailures(t *testing.T) {
	creds := &fakeCredStore{creds: map[string]credentials.Credentials{
		"mystery": {"token": "x"},
	}}
	o := newTestOrchestrator(creds, map[string]*fakePipeline{})

	summary, err := o.RunAll(context.Background())
	require.NoError(t, err)
	assert.Contains(t, summary.Failed, "mystery")
}

func TestRunSinglePlatform(t *testing.T) {
	creds := &fakeCredStore{creds: map[string]credentials.Credentials{
		"twitter": {"api_key": "k"},
	}}
	pipelines := map[string]*fakePipeline{
		"twitter": {name: "twitter", valid: true},
	}
	o := newTestOrchestrator(creds, pipelines)

	require.NoError(t, o.Run(context.Background(), "twitter"))
	assert.Equal(t, 1, pipelines["twitter"].processed)
}

func TestRunMissingCredentials(t *testing.T) {
	o := newTestOrchestrator(&fakeCredStore{creds: map[string]credentials.Credentials{}}, nil)

	err := o.Run(context.Background(), "shopify")
	require.Error(t, err)
	assert.ErrorIs(t, err, credentials.ErrNotFound)
}

func TestRunValidationFailure(t *testing.T) {
	creds := &fakeCredStore{creds: map[string]credentials.Credentials{
		"meta": {"access_token": "bad"},
	}}
	pipelines := map[string]*fakePipeline{
		"meta": {name: "meta", valid: false},
	}
	o := newTestOrchestrator(creds, pipelines)

	err := o.Run(context.Background(), "meta")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Zero(t, pipelines["meta"].processed)
}

func TestTestCredentialsRunsValidation(t *testing.T) {
	pipelines := map[string]*fakePipeline{
		"shopify": {name: "shopify", valid: true},
		"meta":    {name: "meta", valid: false},
	}
	o := newTestOrchestrator(&fakeCredStore{creds: map[string]credentials.Credentials{}}, pipelines)

	require.NoError(t, o.TestCredentials(context.Background(), "shopify", credentials.Credentials{"access_token": "a"}))

	err := o.TestCredentials(context.Background(), "meta", credentials.Credentials{"access_token": "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")

	assert.Error(t, o.TestCredentials(context.Background(), "unknown", credentials.Credentials{}))
}

func TestDefaultFactoryRejectsUnknownPlatform(t *testing.T) {
	o := NewOrchestrator(&fakeCredStore{creds: map[string]credentials.Credentials{
		"not_a_platform": {"token": "x"},
	}}, storage.NewMemoryStore(), httpx.Config{Timeout: time.Second}, testLogger())

	err := o.Run(context.Background(), "not_a_platform")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown platform")
}
