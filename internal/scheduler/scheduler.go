package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"

	"pulseboard/internal/etl"
)

// platformSlots staggers per-platform refreshes across the early morning so
// no two integrations hammer their APIs at once.
var platformSlots = map[string]string{
	"shopify":          "02:00",
	"meta":             "03:00",
	"google_analytics": "04:00",
	"tiktok_ads":       "05:00",
	"twitter":          "06:00",
}

// Scheduler runs the daily collection cadence.
type Scheduler struct {
	cron         *gocron.Scheduler
	orchestrator *etl.Orchestrator
	logger       *logrus.Entry
}

func New(orchestrator *etl.Orchestrator, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scheduler{
		cron:         gocron.NewScheduler(time.UTC),
		orchestrator: orchestrator,
		logger:       logger.WithField("component", "scheduler"),
	}
}

// Start registers the daily full run plus the staggered per-platform
// refreshes and launches the scheduler in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.Every(1).Day().At("01:00").Do(func() {
		s.logger.Info("Scheduled full collection starting")
		if _, err := s.orchestrator.RunAll(ctx); err != nil {
			s.logger.WithError(err).Error("Scheduled full collection failed")
		}
	})
	if err != nil {
		return err
	}

	for name, at := range platformSlots {
		platform := name
		_, err := s.cron.Every(1).Day().At(at).Do(func() {
			s.logger.WithField("platform", platform).Info("Scheduled platform collection starting")
			if err := s.orchestrator.Run(ctx, platform); err != nil {
				s.logger.WithError(err).WithField("platform", platform).Error("Scheduled platform collection failed")
			}
		})
		if err != nil {
			return err
		}
	}

	s.cron.StartAsync()
	s.logger.WithField("jobs", len(platformSlots)+1).Info("Scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("Scheduler stopped")
}
