package tiktok

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"pulseboard/internal/models"
	"pulseboard/internal/storage"
)

// assumedOrderValue converts conversions into estimated revenue for the
// return-on-spend metric. The ads API reports conversions, not revenue.
const assumedOrderValue = 50.0

// Processor turns an ads bundle into generic metric records.
type Processor struct {
	store  storage.Store
	logger *logrus.Entry
}

func NewProcessor(store storage.Store, logger *logrus.Logger) *Processor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Processor{
		store:  store,
		logger: logger.WithField("platform", Platform),
	}
}

type Transformed struct {
	Sections models.Sections
	totals   PerformanceTotals
}

func (p *Processor) Extract(ctx context.Context, client *Client, start, end time.Time) (*Bundle, error) {
	return client.CollectMetrics(ctx, start, end)
}

func (p *Processor) Transform(bundle *Bundle) *Transformed {
	t := &Transformed{Sections: models.Sections{}}
	t.totals = sumReport(bundle.Report, p.logger)
	t.Sections["marketing"] = p.transformMarketing(bundle, t.totals)
	t.Sections["social"] = p.transformSocial(t.totals)
	p.calculateDerived(t)
	return t
}

// sumReport rolls every report row up into numeric totals. Ratio metrics are
// recomputed from the totals rather than averaged across rows.
func sumReport(rows []ReportRow, logger *logrus.Entry) PerformanceTotals {
	var totals PerformanceTotals
	spend := decimal.Zero
	for _, row := range rows {
		s, err := decimal.NewFromString(row.Metrics.Spend)
		if err != nil {
			logger.WithField("spend", row.Metrics.Spend).Warn("Unparseable spend, counted as zero")
		} else {
			spend = spend.Add(s)
		}
		totals.Impressions += parseMetric(row.Metrics.Impressions)
		totals.Clicks += parseMetric(row.Metrics.Clicks)
		totals.Conversions += parseMetric(row.Metrics.Conversion)
		totals.Reach += parseMetric(row.Metrics.Reach)
	}
	totals.Spend, _ = spend.Float64()
	return totals
}

func parseMetric(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func (p *Processor) transformMarketing(bundle *Bundle, totals PerformanceTotals) []models.Record {
	var metrics []models.Record
	now := time.Now()

	if len(bundle.Report) > 0 {
		metrics = append(metrics,
			models.TimestampedMetric{
				Type:         "advertising",
				Name:         "TikTok Ad Spend",
				Value:        totals.Spend,
				DisplayValue: models.Money(totals.Spend),
				Color:        "danger",
				Date:         now,
			},
			models.TimestampedMetric{
				Type:         "advertising",
				Name:         "TikTok Impressions",
				Value:        totals.Impressions,
				DisplayValue: models.Comma(int64(totals.Impressions)),
				Color:        "primary",
				Date:         now,
			},
			models.TimestampedMetric{
				Type:         "advertising",
				Name:         "TikTok Clicks",
				Value:        totals.Clicks,
				DisplayValue: models.Comma(int64(totals.Clicks)),
				Color:        "info",
				Date:         now,
			},
			models.TimestampedMetric{
				Type:         "advertising",
				Name:         "TikTok Conversions",
				Value:        totals.Conversions,
				DisplayValue: models.Comma(int64(totals.Conversions)),
				Color:        "success",
				Date:         now,
			},
		)

		if totals.Impressions > 0 {
			ctr := totals.Clicks / totals.Impressions * 100
			metrics = append(metrics, models.TimestampedMetric{
				Type:         "advertising",
				Name:         "TikTok CTR",
				Value:        ctr,
				DisplayValue: models.Rate2(ctr) + "%",
				Color:        "warning",
				Date:         now,
			})
		}
		if totals.Clicks > 0 {
			cpc := totals.Spend / totals.Clicks
			metrics = append(metrics, models.TimestampedMetric{
				Type:         "advertising",
				Name:         "TikTok CPC",
				Value:        cpc,
				DisplayValue: models.Money(cpc),
				Color:        "secondary",
				Date:         now,
			})
		}
		if totals.Conversions > 0 {
			cpa := totals.Spend / totals.Conversions
			metrics = append(metrics, models.TimestampedMetric{
				Type:         "advertising",
				Name:         "TikTok CPA",
				Value:        cpa,
				DisplayValue: models.Money(cpa),
				Color:        "dark",
				Date:         now,
			})
		}
	}

	// Per-operation-status campaign counts, in first-seen order.
	statusCounts := map[string]int{}
	var statusOrder []string
	for _, campaign := range bundle.Campaigns {
		status := campaign.OperationStatus
		if status == "" {
			status = "unknown"
		}
		if _, seen := statusCounts[status]; !seen {
			statusOrder = append(statusOrder, status)
		}
		statusCounts[status]++
	}
	for _, status := range statusOrder {
		color := "secondary"
		if status == "ENABLE" || status == "enable" {
			color = "primary"
		}
		metrics = append(metrics, models.TimestampedMetric{
			Type:         "tiktok_campaigns",
			Name:         fmt.Sprintf("%s Campaigns", status),
			Value:        float64(statusCounts[status]),
			DisplayValue: fmt.Sprintf("%d", statusCounts[status]),
			Color:        color,
			Date:         now,
		})
	}

	return metrics
}

func (p *Processor) transformSocial(totals PerformanceTotals) []models.Record {
	if totals.Impressions == 0 && totals.Spend == 0 {
		return nil
	}

	metrics := []models.Record{
		models.KeyedMetric{
			Category:     "tiktok",
			SubCategory:  "Ad Spend",
			Value:        models.Money(totals.Spend),
			Unit:         "USD",
			Icon:         "dollar-sign",
			Color:        "danger",
			DisplayOrder: 1,
		},
		models.KeyedMetric{
			Category:     "tiktok",
			SubCategory:  "Impressions",
			Value:        models.Comma(int64(totals.Impressions)),
			Unit:         "views",
			Icon:         "eye",
			Color:        "primary",
			DisplayOrder: 2,
		},
		models.KeyedMetric{
			Category:     "tiktok",
			SubCategory:  "Clicks",
			Value:        models.Comma(int64(totals.Clicks)),
			Unit:         "clicks",
			Icon:         "mouse-pointer",
			Color:        "info",
			DisplayOrder: 3,
		},
		models.KeyedMetric{
			Category:     "tiktok",
			SubCategory:  "Conversions",
			Value:        models.Comma(int64(totals.Conversions)),
			Unit:         "conversions",
			Icon:         "check-circle",
			Color:        "success",
			DisplayOrder: 4,
		},
		models.KeyedMetric{
			Category:     "tiktok",
			SubCategory:  "Reach",
			Value:        models.Comma(int64(totals.Reach)),
			Unit:         "users",
			Icon:         "users",
			Color:        "purple",
			DisplayOrder: 5,
		},
	}

	if totals.Impressions > 0 {
		metrics = append(metrics, models.KeyedMetric{
			Category:     "tiktok",
			SubCategory:  "CTR",
			Value:        models.Rate2(totals.Clicks / totals.Impressions * 100),
			Unit:         "%",
			Icon:         "percentage",
			Color:        "warning",
			DisplayOrder: 6,
		})
	}
	if totals.Clicks > 0 {
		metrics = append(metrics, models.KeyedMetric{
			Category:     "tiktok",
			SubCategory:  "CPC",
			Value:        models.Money(totals.Spend / totals.Clicks),
			Unit:         "USD",
			Icon:         "coins",
			Color:        "secondary",
			DisplayOrder: 7,
		})
	}
	if totals.Conversions > 0 {
		metrics = append(metrics, models.KeyedMetric{
			Category:     "tiktok",
			SubCategory:  "CPA",
			Value:        models.Money(totals.Spend / totals.Conversions),
			Unit:         "USD",
			Icon:         "coins",
			Color:        "dark",
			DisplayOrder: 8,
		})
	}

	return metrics
}

// calculateDerived appends the return-on-spend metric computed from the
// transform-time totals. It only ever adds records.
func (p *Processor) calculateDerived(t *Transformed) {
	if t.totals.Spend <= 0 || t.totals.Conversions <= 0 {
		return
	}
	revenue := t.totals.Conversions * assumedOrderValue
	roas := revenue / t.totals.Spend
	t.Sections["marketing"] = append(t.Sections["marketing"], models.TimestampedMetric{
		Type:         "derived_metric",
		Name:         "TikTok ROAS",
		Value:        roas,
		DisplayValue: fmt.Sprintf("%.2fx", roas),
		Color:        "success",
		Date:         time.Now(),
	})
}

// Load writes every record in one session; any failure rolls back the whole
// batch.
func (p *Processor) Load(ctx context.Context, t *Transformed) error {
	session, err := p.store.Begin(ctx)
	if err != nil {
		return err
	}
	for _, rec := range t.Sections.Records() {
		if err := session.Add(rec); err != nil {
			session.Rollback()
			return fmt.Errorf("load: %w", err)
		}
	}
	if err := session.Commit(); err != nil {
		session.Rollback()
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (p *Processor) Process(ctx context.Context, client *Client, start, end time.Time) error {
	p.logger.Info("Starting ETL process")

	bundle, err := p.Extract(ctx, client, start, end)
	if err != nil {
		p.logger.WithError(err).WithField("phase", "extract").Error("ETL process failed")
		return err
	}

	transformed := p.Transform(bundle)

	if err := p.Load(ctx, transformed); err != nil {
		p.logger.WithError(err).WithField("phase", "load").Error("ETL process failed")
		return err
	}

	p.logger.WithField("records", transformed.Sections.Count()).Info("ETL process completed")
	return nil
}
