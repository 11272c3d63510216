package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"pulseboard/internal/credentials"
	"pulseboard/internal/httpx"
	"pulseboard/internal/platform/googleanalytics"
	"pulseboard/internal/platform/meta"
	"pulseboard/internal/platform/shopify"
	"pulseboard/internal/platform/tiktok"
	"pulseboard/internal/platform/twitter"
	"pulseboard/internal/storage"
)

// Pipeline is one platform's extract-transform-load unit.
type Pipeline interface {
	Platform() string
	Validate(ctx context.Context) bool
	Process(ctx context.Context, start, end time.Time) error
}

// Factory builds a pipeline for a platform from its stored credentials.
// Injected so tests can substitute fakes.
type Factory func(platform string, creds credentials.Credentials) (Pipeline, error)

// Summary reports the outcome of one collection run.
type Summary struct {
	Succeeded []string
	Skipped   []string
	Failed    map[string]error
}

// Orchestrator drives collection across every platform with stored
// credentials. Platform failures are isolated; one bad integration never
// stops the others.
type Orchestrator struct {
	creds   credentials.Store
	logger  *logrus.Entry
	factory Factory
}

func NewOrchestrator(creds credentials.Store, store storage.Store, httpCfg httpx.Config, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Orchestrator{
		creds:   creds,
		logger:  logger.WithField("component", "orchestrator"),
		factory: defaultFactory(store, httpCfg, logger),
	}
}

// SetFactory replaces the pipeline factory, used by tests.
func (o *Orchestrator) SetFactory(f Factory) { o.factory = f }

func defaultFactory(store storage.Store, httpCfg httpx.Config, logger *logrus.Logger) Factory {
	return func(platform string, creds credentials.Credentials) (Pipeline, error) {
		switch platform {
		case shopify.Platform:
			return shopify.NewPipeline(creds, store, httpCfg, logger)
		case meta.Platform:
			return meta.NewPipeline(creds, store, httpCfg, logger)
		case googleanalytics.Platform:
			return googleanalytics.NewPipeline(creds, store, httpCfg, logger)
		case tiktok.Platform:
			return tiktok.NewPipeline(creds, store, httpCfg, logger)
		case twitter.Platform:
			return twitter.NewPipeline(creds, store, httpCfg, logger)
		default:
			return nil, fmt.Errorf("unknown platform: %s", platform)
		}
	}
}

// TestCredentials builds a pipeline from the given credentials and runs its
// validation call, without touching the stored set.
func (o *Orchestrator) TestCredentials(ctx context.Context, platform string, creds credentials.Credentials) error {
	pipeline, err := o.factory(platform, creds)
	if err != nil {
		return err
	}
	if !pipeline.Validate(ctx) {
		return fmt.Errorf("credential validation failed for %s", platform)
	}
	return nil
}

// Run collects one platform over the trailing default window.
func (o *Orchestrator) Run(ctx context.Context, platform string) error {
	creds, err := o.creds.Load(platform)
	if err != nil {
		return fmt.Errorf("load credentials for %s: %w", platform, err)
	}

	pipeline, err := o.factory(platform, creds)
	if err != nil {
		return fmt.Errorf("build pipeline for %s: %w", platform, err)
	}

	if !pipeline.Validate(ctx) {
		return fmt.Errorf("credential validation failed for %s", platform)
	}

	var start, end time.Time // zero bounds select the default window
	if err := pipeline.Process(ctx, start, end); err != nil {
		return fmt.Errorf("process %s: %w", platform, err)
	}
	return nil
}

// RunAll collects every configured platform, continuing past individual
// failures, and returns a per-platform summary.
func (o *Orchestrator) RunAll(ctx context.Context) (*Summary, error) {
	platforms, err := o.creds.Platforms()
	if err != nil {
		return nil, fmt.Errorf("list platforms: %w", err)
	}

	summary := &Summary{Failed: map[string]error{}}
	o.logger.WithField("platforms", platforms).Info("Starting collection run")

	for _, name := range platforms {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		creds, err := o.creds.Load(name)
		if err != nil {
			o.logger.WithError(err).WithField("platform", name).Error("Credential load failed")
			summary.Failed[name] = err
			continue
		}

		pipeline, err := o.factory(name, creds)
		if err != nil {
			o.logger.WithError(err).WithField("platform", name).Error("Pipeline construction failed")
			summary.Failed[name] = err
			continue
		}

		if !pipeline.Validate(ctx) {
			o.logger.WithField("platform", name).Warn("Credential validation failed, skipping")
			summary.Skipped = append(summary.Skipped, name)
			continue
		}

		var start, end time.Time
		if err := pipeline.Process(ctx, start, end); err != nil {
			o.logger.WithError(err).WithField("platform", name).Error("Collection failed")
			summary.Failed[name] = err
			continue
		}

		o.logger.WithField("platform", name).Info("Collection completed")
		summary.Succeeded = append(summary.Succeeded, name)
	}

	o.logger.WithFields(logrus.Fields{
		"succeeded": len(summary.Succeeded),
		"skipped":   len(summary.Skipped),
		"failed":    len(summary.Failed),
	}).Info("Collection run finished")
	return summary, nil
}
