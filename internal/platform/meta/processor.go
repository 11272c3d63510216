package meta

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"pulseboard/internal/models"
	"pulseboard/internal/storage"
)

// pageInsightNames maps raw page metric names to display labels.
var pageInsightNames = map[string]string{
	"page_impressions":      "Page Impressions",
	"page_reach":            "Page Reach",
	"page_engaged_users":    "Engaged Users",
	"page_post_engagements": "Post Engagements",
	"page_fans":             "Total Fans",
	"page_fan_adds":         "New Fans",
	"page_fan_removes":      "Lost Fans",
}

var instagramInsightNames = map[string]string{
	"impressions":    "Impressions",
	"reach":          "Reach",
	"profile_views":  "Profile Views",
	"follower_count": "Followers",
}

// Processor turns a social-graph bundle into generic metric records.
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

// engagementTotals carries the transform-time aggregates the derived step
// computes rates from.
type engagementTotals struct {
	pageFollowers   int64
	pageEngagements float64

	igFollowers   float64
	igImpressions float64
}

type Transformed struct {
	Sections models.Sections
	totals   engagementTotals
}

func (p *Processor) Extract(ctx context.Context, client *Client, start, end time.Time) (*Bundle, error) {
	return client.CollectMetrics(ctx, start, end)
}

func (p *Processor) Transform(bundle *Bundle) *Transformed {
	t := &Transformed{Sections: models.Sections{}}
	t.Sections["facebook"] = p.transformPage(bundle, &t.totals)
	if bundle.Instagram != nil {
		t.Sections["instagram"] = p.transformInstagram(bundle.Instagram, &t.totals)
	}
	t.Sections["marketing"] = p.transformMarketing(bundle)
	p.calculateDerived(t)
	return t
}

func (p *Processor) transformPage(bundle *Bundle, totals *engagementTotals) []models.Record {
	var metrics []models.Record

	page := bundle.Page
	totals.pageFollowers = page.FollowersCount

	metrics = append(metrics,
		models.KeyedMetric{
			Category:     "facebook",
			SubCategory:  "Page Followers",
			Value:        models.Comma(page.FollowersCount),
			Unit:         "followers",
			Icon:         "users",
			Color:        "primary",
			DisplayOrder: 1,
		},
		models.KeyedMetric{
			Category:     "facebook",
			SubCategory:  "Page Likes",
			Value:        models.Comma(page.FanCount),
			Unit:         "likes",
			Icon:         "thumbs-up",
			Color:        "info",
			DisplayOrder: 2,
		},
	)

	if len(bundle.Posts) > 0 {
		var likes, comments, shares int64
		for _, post := range bundle.Posts {
			likes += post.Likes.Summary.TotalCount
			comments += post.Comments.Summary.TotalCount
			shares += post.Shares.Count
		}
		n := float64(len(bundle.Posts))

		metrics = append(metrics,
			models.KeyedMetric{
				Category:     "facebook",
				SubCategory:  "Total Posts",
				Value:        fmt.Sprintf("%d", len(bundle.Posts)),
				Unit:         "posts",
				Icon:         "file-alt",
				Color:        "success",
				DisplayOrder: 3,
			},
			models.KeyedMetric{
				Category:     "facebook",
				SubCategory:  "Avg Likes per Post",
				Value:        models.Rate1(float64(likes) / n),
				Unit:         "likes",
				Icon:         "thumbs-up",
				Color:        "info",
				DisplayOrder: 4,
			},
			models.KeyedMetric{
				Category:     "facebook",
				SubCategory:  "Avg Comments per Post",
				Value:        models.Rate1(float64(comments) / n),
				Unit:         "comments",
				Icon:         "comment",
				Color:        "warning",
				DisplayOrder: 5,
			},
			models.KeyedMetric{
				Category:     "facebook",
				SubCategory:  "Avg Shares per Post",
				Value:        models.Rate1(float64(shares) / n),
				Unit:         "shares",
				Icon:         "share",
				Color:        "secondary",
				DisplayOrder: 6,
			},
		)
	}

	for _, insight := range bundle.Insights {
		name, known := pageInsightNames[insight.Name]
		if !known || len(insight.Values) == 0 {
			continue
		}
		var total float64
		for _, v := range insight.Values {
			total += v.Value
		}
		avg := total / float64(len(insight.Values))

		if insight.Name == "page_engaged_users" || insight.Name == "page_post_engagements" {
			totals.pageEngagements += total
		}

		metrics = append(metrics,
			models.KeyedMetric{
				Category:     "facebook",
				SubCategory:  name + " (Total)",
				Value:        models.Comma(int64(total)),
				Unit:         "",
				Icon:         "chart-bar",
				Color:        "primary",
				DisplayOrder: 10,
			},
			models.KeyedMetric{
				Category:     "facebook",
				SubCategory:  name + " (Avg)",
				Value:        models.Rate1(avg),
				Unit:         "per day",
				Icon:         "chart-line",
				Color:        "info",
				DisplayOrder: 11,
			},
		)
	}

	return metrics
}

func (p *Processor) transformInstagram(ig *Instagram, totals *engagementTotals) []models.Record {
	var metrics []models.Record

	if len(ig.Media) > 0 {
		var likes, comments int64
		typeCounts := map[string]int{}
		var typeOrder []string
		for _, m := range ig.Media {
			likes += m.LikeCount
			comments += m.CommentsCount
			if _, seen := typeCounts[m.MediaType]; !seen {
				typeOrder = append(typeOrder, m.MediaType)
			}
			typeCounts[m.MediaType]++
		}
		n := float64(len(ig.Media))

		metrics = append(metrics,
			models.KeyedMetric{
				Category:     "instagram",
				SubCategory:  "Total Posts",
				Value:        fmt.Sprintf("%d", len(ig.Media)),
				Unit:         "posts",
				Icon:         "images",
				Color:        "primary",
				DisplayOrder: 1,
			},
			models.KeyedMetric{
				Category:     "instagram",
				SubCategory:  "Avg Likes per Post",
				Value:        models.Rate1(float64(likes) / n),
				Unit:         "likes",
				Icon:         "heart",
				Color:        "danger",
				DisplayOrder: 2,
			},
			models.KeyedMetric{
				Category:     "instagram",
				SubCategory:  "Avg Comments per Post",
				Value:        models.Rate1(float64(comments) / n),
				Unit:         "comments",
				Icon:         "comment",
				Color:        "info",
				DisplayOrder: 3,
			},
		)
		for _, mediaType := range typeOrder {
			metrics = append(metrics, models.KeyedMetric{
				Category:     "instagram",
				SubCategory:  fmt.Sprintf("%s Posts", mediaType),
				Value:        fmt.Sprintf("%d", typeCounts[mediaType]),
				Unit:         "posts",
				Icon:         "photo-video",
				Color:        "secondary",
				DisplayOrder: 10,
			})
		}
	}

	for _, insight := range ig.Insights {
		name, known := instagramInsightNames[insight.Name]
		if !known || len(insight.Values) == 0 {
			continue
		}
		var total float64
		for _, v := range insight.Values {
			total += v.Value
		}
		avg := total / float64(len(insight.Values))

		switch insight.Name {
		case "follower_count":
			// Daily series; the latest point is the current count.
			totals.igFollowers = insight.Values[len(insight.Values)-1].Value
		case "impressions":
			totals.igImpressions = total
		}

		metrics = append(metrics,
			models.KeyedMetric{
				Category:     "instagram",
				SubCategory:  name + " (Total)",
				Value:        models.Comma(int64(total)),
				Unit:         "",
				Icon:         "chart-bar",
				Color:        "purple",
				DisplayOrder: 20,
			},
			models.KeyedMetric{
				Category:     "instagram",
				SubCategory:  name + " (Avg)",
				Value:        models.Rate1(avg),
				Unit:         "per day",
				Icon:         "chart-line",
				Color:        "pink",
				DisplayOrder: 21,
			},
		)
	}

	return metrics
}

// transformMarketing emits the time-stamped series rows the marketing views
// chart over collection runs.
func (p *Processor) transformMarketing(bundle *Bundle) []models.Record {
	var metrics []models.Record
	now := time.Now()

	metrics = append(metrics, models.TimestampedMetric{
		Type:         "social_media",
		Name:         "Facebook Followers",
		Value:        float64(bundle.Page.FollowersCount),
		DisplayValue: models.Comma(bundle.Page.FollowersCount),
		Color:        "primary",
		Date:         now,
	})

	for _, insight := range bundle.Insights {
		if len(insight.Values) == 0 {
			continue
		}
		var total float64
		for _, v := range insight.Values {
			total += v.Value
		}
		switch insight.Name {
		case "page_engaged_users":
			metrics = append(metrics, models.TimestampedMetric{
				Type:         "engagement",
				Name:         "Facebook Engaged Users",
				Value:        total,
				DisplayValue: models.Comma(int64(total)),
				Color:        "info",
				Date:         now,
			})
		case "page_post_engagements":
			metrics = append(metrics, models.TimestampedMetric{
				Type:         "engagement",
				Name:         "Facebook Post Engagements",
				Value:        total,
				DisplayValue: models.Comma(int64(total)),
				Color:        "success",
				Date:         now,
			})
		}
	}

	if ig := bundle.Instagram; ig != nil {
		for _, insight := range ig.Insights {
			if len(insight.Values) == 0 {
				continue
			}
			switch insight.Name {
			case "follower_count":
				latest := insight.Values[len(insight.Values)-1].Value
				metrics = append(metrics, models.TimestampedMetric{
					Type:         "social_media",
					Name:         "Instagram Followers",
					Value:        latest,
					DisplayValue: models.Comma(int64(latest)),
					Color:        "purple",
					Date:         now,
				})
			case "impressions":
				var total float64
				for _, v := range insight.Values {
					total += v.Value
				}
				metrics = append(metrics, models.TimestampedMetric{
					Type:         "reach",
					Name:         "Instagram Impressions",
					Value:        total,
					DisplayValue: models.Comma(int64(total)),
					Color:        "pink",
					Date:         now,
				})
			}
		}
	}

	return metrics
}

// calculateDerived appends engagement rates computed from the transform-time
// aggregates. It only ever adds records.
func (p *Processor) calculateDerived(t *Transformed) {
	if t.totals.pageFollowers > 0 && t.totals.pageEngagements > 0 {
		rate := t.totals.pageEngagements / float64(t.totals.pageFollowers) * 100
		t.Sections["facebook"] = append(t.Sections["facebook"], models.KeyedMetric{
			Category:     "facebook",
			SubCategory:  "Engagement Rate",
			Value:        models.Rate2(rate),
			Unit:         "%",
			Icon:         "percentage",
			Color:        "success",
			DisplayOrder: 30,
		})
	}
	if t.totals.igFollowers > 0 && t.totals.igImpressions > 0 {
		rate := t.totals.igImpressions / t.totals.igFollowers * 100
		t.Sections["instagram"] = append(t.Sections["instagram"], models.KeyedMetric{
			Category:     "instagram",
			SubCategory:  "Engagement Rate",
			Value:        models.Rate2(rate),
			Unit:         "%",
			Icon:         "percentage",
			Color:        "success",
			DisplayOrder: 30,
		})
	}
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
