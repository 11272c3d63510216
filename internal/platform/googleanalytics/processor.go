package googleanalytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"pulseboard/internal/models"
	"pulseboard/internal/storage"
)

var deviceIcons = map[string]string{
	"mobile":  "mobile-alt",
	"tablet":  "tablet",
	"desktop": "desktop",
}

// Processor turns analytics reports into generic metric records.
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

// trafficTotals carries the transform-time aggregates the derived step
// computes ratios from.
type trafficTotals struct {
	sessions float64
	views    float64
}

type Transformed struct {
	Sections models.Sections
	totals   trafficTotals
}

func (p *Processor) Extract(ctx context.Context, client *Client, start, end time.Time) (*Bundle, error) {
	return client.CollectMetrics(ctx, start, end)
}

func (p *Processor) Transform(bundle *Bundle) *Transformed {
	t := &Transformed{Sections: models.Sections{}}
	t.Sections["website"] = p.transformWebsite(bundle, &t.totals)
	t.Sections["customer"] = p.transformCustomer(bundle)
	p.calculateDerived(t)
	return t
}

func (p *Processor) transformWebsite(bundle *Bundle, totals *trafficTotals) []models.Record {
	var metrics []models.Record

	if bundle.Basic != nil && len(bundle.Basic.Rows) > 0 {
		var sessions, users, views, weightedBounce, weightedDuration float64
		deviceSessions := map[string]float64{}
		for _, row := range bundle.Basic.Rows {
			s := row.Metrics["sessions"]
			sessions += s
			users += row.Metrics["activeUsers"]
			views += row.Metrics["screenPageViews"]
			weightedBounce += row.Metrics["bounceRate"] * s
			weightedDuration += row.Metrics["averageSessionDuration"] * s
			deviceSessions[row.Dimensions["deviceCategory"]] += s
		}
		totals.sessions = sessions
		totals.views = views

		metrics = append(metrics,
			models.KeyedMetric{
				Category:     "traffic",
				SubCategory:  "Sessions",
				Value:        models.Comma(int64(sessions)),
				Unit:         "sessions",
				Icon:         "chart-line",
				Color:        "primary",
				DisplayOrder: 1,
			},
			models.KeyedMetric{
				Category:     "traffic",
				SubCategory:  "Active Users",
				Value:        models.Comma(int64(users)),
				Unit:         "users",
				Icon:         "users",
				Color:        "info",
				DisplayOrder: 2,
			},
			models.KeyedMetric{
				Category:     "traffic",
				SubCategory:  "Page Views",
				Value:        models.Comma(int64(views)),
				Unit:         "views",
				Icon:         "eye",
				Color:        "success",
				DisplayOrder: 3,
			},
		)

		if sessions > 0 {
			metrics = append(metrics,
				models.KeyedMetric{
					Category:     "engagement",
					SubCategory:  "Bounce Rate",
					Value:        models.Rate2(weightedBounce / sessions * 100),
					Unit:         "%",
					Icon:         "sign-out-alt",
					Color:        "warning",
					DisplayOrder: 4,
				},
				models.KeyedMetric{
					Category:     "engagement",
					SubCategory:  "Avg Session Duration",
					Value:        models.Rate2(weightedDuration / sessions),
					Unit:         "seconds",
					Icon:         "clock",
					Color:        "info",
					DisplayOrder: 5,
				},
			)

			// Per-device share of sessions, fixed category order.
			for _, device := range []string{"mobile", "tablet", "desktop"} {
				s, ok := deviceSessions[device]
				if !ok {
					continue
				}
				metrics = append(metrics, models.KeyedMetric{
					Category:     "devices",
					SubCategory:  device,
					Value:        models.Comma(int64(s)),
					Unit:         "sessions",
					TrendValue:   models.Rate1(s / sessions * 100),
					TrendUnit:    "%",
					Icon:         deviceIcons[device],
					Color:        "primary",
					DisplayOrder: 10,
				})
			}
		}
	}

	if bundle.TrafficSources != nil {
		rows := topRowsBy(bundle.TrafficSources.Rows, "sessions", 10)
		for i, row := range rows {
			metrics = append(metrics, models.KeyedMetric{
				Category:     "traffic_sources",
				SubCategory:  row.Dimensions["sessionSource"] + " / " + row.Dimensions["sessionMedium"],
				Value:        models.Comma(int64(row.Metrics["sessions"])),
				Unit:         "sessions",
				Icon:         "link",
				Color:        "info",
				DisplayOrder: 20 + i,
			})
		}
	}

	if bundle.Pages != nil {
		rows := topRowsBy(bundle.Pages.Rows, "screenPageViews", 10)
		for i, row := range rows {
			title := row.Dimensions["pageTitle"]
			if title == "" {
				title = row.Dimensions["pagePath"]
			}
			// Truncate on rune boundaries; titles can be non-ASCII.
			if r := []rune(title); len(r) > 50 {
				title = string(r[:50])
			}
			metrics = append(metrics, models.KeyedMetric{
				Category:     "top_pages",
				SubCategory:  title,
				Value:        models.Comma(int64(row.Metrics["screenPageViews"])),
				Unit:         "views",
				Icon:         "file",
				Color:        "success",
				DisplayOrder: 30 + i,
			})
		}
	}

	return metrics
}

func (p *Processor) transformCustomer(bundle *Bundle) []models.Record {
	var metrics []models.Record

	if bundle.Basic == nil || len(bundle.Basic.Rows) == 0 {
		return metrics
	}

	var users float64
	countryUsers := map[string]float64{}
	deviceUsers := map[string]float64{}
	for _, row := range bundle.Basic.Rows {
		u := row.Metrics["activeUsers"]
		users += u
		countryUsers[row.Dimensions["country"]] += u
		deviceUsers[row.Dimensions["deviceCategory"]] += u
	}

	metrics = append(metrics, models.NamedMetric{
		Type:         "top_metrics",
		Name:         "Website Visitors",
		Value:        users,
		DisplayValue: models.Comma(int64(users)),
		Color:        "primary",
		Icon:         "users",
	})

	if users > 0 {
		for _, entry := range topShares(countryUsers, 5) {
			share := entry.value / users * 100
			metrics = append(metrics, models.NamedMetric{
				Type:         "segments",
				Name:         entry.key,
				Value:        share,
				DisplayValue: models.Rate1(share) + "%",
				Color:        "info",
				Icon:         "globe",
			})
		}
		for _, entry := range topShares(deviceUsers, len(deviceUsers)) {
			share := entry.value / users * 100
			metrics = append(metrics, models.NamedMetric{
				Type:         "channels",
				Name:         entry.key,
				Value:        share,
				DisplayValue: models.Rate1(share) + "%",
				Color:        "success",
				Icon:         deviceIcons[entry.key],
			})
		}
	}

	if bundle.TrafficSources != nil && len(bundle.TrafficSources.Rows) > 0 {
		mediumUsers := map[string]float64{}
		for _, row := range bundle.TrafficSources.Rows {
			mediumUsers[row.Dimensions["sessionMedium"]] += row.Metrics["activeUsers"]
		}
		top := topShares(mediumUsers, 5)

		// Shares are against the top-5 total so the listed mediums sum
		// to 100%.
		var topTotal float64
		for _, entry := range top {
			topTotal += entry.value
		}
		if topTotal > 0 {
			for _, entry := range top {
				share := entry.value / topTotal * 100
				metrics = append(metrics, models.NamedMetric{
					Type:         "activities",
					Name:         entry.key,
					Value:        share,
					DisplayValue: models.Rate1(share) + "%",
					Color:        "warning",
					Icon:         "chart-bar",
				})
			}
		}
	}

	return metrics
}

// calculateDerived appends ratio metrics computed from the transform-time
// aggregates. It only ever adds records.
func (p *Processor) calculateDerived(t *Transformed) {
	if t.totals.sessions == 0 {
		return
	}
	perSession := t.totals.views / t.totals.sessions
	t.Sections["website"] = append(t.Sections["website"], models.KeyedMetric{
		Category:     "engagement",
		SubCategory:  "Pages per Session",
		Value:        models.Rate2(perSession),
		Unit:         "pages/session",
		Icon:         "layer-group",
		Color:        "info",
		DisplayOrder: 6,
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

// topRowsBy returns up to n rows sorted descending by the named metric,
// stable so input order breaks ties.
func topRowsBy(rows []Row, metric string, n int) []Row {
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Metrics[metric] > sorted[j].Metrics[metric]
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

type shareEntry struct {
	key   string
	value float64
}

func topShares(m map[string]float64, n int) []shareEntry {
	entries := make([]shareEntry, 0, len(m))
	for k, v := range m {
		entries = append(entries, shareEntry{k, v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].value != entries[j].value {
			return entries[i].value > entries[j].value
		}
		return entries[i].key < entries[j].key
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
