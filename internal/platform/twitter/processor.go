package twitter

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"pulseboard/internal/models"
	"pulseboard/internal/storage"
)

// Processor turns a social bundle into generic metric records.
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
// computes the engagement rate from.
type engagementTotals struct {
	followers  int64
	sampled    int
	engagement int64
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
	t.Sections["social"] = p.transformSocial(bundle, &t.totals)
	t.Sections["marketing"] = p.transformMarketing(bundle)
	p.calculateDerived(t)
	return t
}

func (p *Processor) transformSocial(bundle *Bundle, totals *engagementTotals) []models.Record {
	var metrics []models.Record

	user := bundle.User
	if user == nil {
		return metrics
	}
	pm := user.PublicMetrics
	totals.followers = pm.FollowersCount

	metrics = append(metrics,
		models.KeyedMetric{
			Category:     "twitter",
			SubCategory:  "Followers",
			Value:        models.Comma(pm.FollowersCount),
			Unit:         "followers",
			Icon:         "users",
			Color:        "primary",
			DisplayOrder: 1,
		},
		models.KeyedMetric{
			Category:     "twitter",
			SubCategory:  "Following",
			Value:        models.Comma(pm.FollowingCount),
			Unit:         "accounts",
			Icon:         "user-plus",
			Color:        "info",
			DisplayOrder: 2,
		},
		models.KeyedMetric{
			Category:     "twitter",
			SubCategory:  "Tweet Count",
			Value:        models.Comma(pm.TweetCount),
			Unit:         "tweets",
			Icon:         "comment-dots",
			Color:        "success",
			DisplayOrder: 3,
		},
		models.KeyedMetric{
			Category:     "twitter",
			SubCategory:  "Listed Count",
			Value:        models.Comma(pm.ListedCount),
			Unit:         "lists",
			Icon:         "list",
			Color:        "secondary",
			DisplayOrder: 4,
		},
	)

	if len(bundle.Tweets) > 0 {
		var likes, retweets, replies, quotes int64
		for _, tweet := range bundle.Tweets {
			likes += tweet.PublicMetrics.LikeCount
			retweets += tweet.PublicMetrics.RetweetCount
			replies += tweet.PublicMetrics.ReplyCount
			quotes += tweet.PublicMetrics.QuoteCount
		}
		totals.sampled = len(bundle.Tweets)
		totals.engagement = likes + retweets + replies + quotes
		n := float64(len(bundle.Tweets))

		metrics = append(metrics,
			models.KeyedMetric{
				Category:     "twitter",
				SubCategory:  "Recent Tweets",
				Value:        fmt.Sprintf("%d", len(bundle.Tweets)),
				Unit:         "tweets",
				Icon:         "file-alt",
				Color:        "primary",
				DisplayOrder: 5,
			},
			models.KeyedMetric{
				Category:     "twitter",
				SubCategory:  "Avg Likes per Tweet",
				Value:        models.Rate1(float64(likes) / n),
				Unit:         "likes",
				Icon:         "heart",
				Color:        "danger",
				DisplayOrder: 6,
			},
			models.KeyedMetric{
				Category:     "twitter",
				SubCategory:  "Avg Retweets per Tweet",
				Value:        models.Rate1(float64(retweets) / n),
				Unit:         "retweets",
				Icon:         "retweet",
				Color:        "success",
				DisplayOrder: 7,
			},
			models.KeyedMetric{
				Category:     "twitter",
				SubCategory:  "Avg Replies per Tweet",
				Value:        models.Rate1(float64(replies) / n),
				Unit:         "replies",
				Icon:         "reply",
				Color:        "info",
				DisplayOrder: 8,
			},
			models.KeyedMetric{
				Category:     "twitter",
				SubCategory:  "Avg Quotes per Tweet",
				Value:        models.Rate1(float64(quotes) / n),
				Unit:         "quotes",
				Icon:         "quote-right",
				Color:        "warning",
				DisplayOrder: 9,
			},
		)
	}

	return metrics
}

func (p *Processor) transformMarketing(bundle *Bundle) []models.Record {
	var metrics []models.Record

	user := bundle.User
	if user == nil {
		return metrics
	}
	now := time.Now()

	metrics = append(metrics, models.TimestampedMetric{
		Type:         "social_media",
		Name:         "Twitter Followers",
		Value:        float64(user.PublicMetrics.FollowersCount),
		DisplayValue: models.Comma(user.PublicMetrics.FollowersCount),
		Color:        "info",
		Date:         now,
	})

	if len(bundle.Tweets) > 0 {
		var likes, retweets, replies, quotes int64
		for _, tweet := range bundle.Tweets {
			likes += tweet.PublicMetrics.LikeCount
			retweets += tweet.PublicMetrics.RetweetCount
			replies += tweet.PublicMetrics.ReplyCount
			quotes += tweet.PublicMetrics.QuoteCount
		}
		engagement := likes + retweets + replies + quotes

		metrics = append(metrics,
			models.TimestampedMetric{
				Type:         "engagement",
				Name:         "Twitter Engagement",
				Value:        float64(engagement),
				DisplayValue: models.Comma(engagement),
				Color:        "primary",
				Date:         now,
			},
			models.TimestampedMetric{
				Type:         "engagement",
				Name:         "Twitter Likes",
				Value:        float64(likes),
				DisplayValue: models.Comma(likes),
				Color:        "danger",
				Date:         now,
			},
			models.TimestampedMetric{
				Type:         "engagement",
				Name:         "Twitter Retweets",
				Value:        float64(retweets),
				DisplayValue: models.Comma(retweets),
				Color:        "success",
				Date:         now,
			},
		)
	}

	return metrics
}

// calculateDerived appends the engagement rate computed from the
// transform-time aggregates. It only ever adds records.
func (p *Processor) calculateDerived(t *Transformed) {
	if t.totals.followers <= 0 || t.totals.sampled == 0 {
		return
	}
	perTweet := float64(t.totals.engagement) / float64(t.totals.sampled)
	rate := perTweet / float64(t.totals.followers) * 100
	t.Sections["social"] = append(t.Sections["social"], models.KeyedMetric{
		Category:     "twitter",
		SubCategory:  "Engagement Rate",
		Value:        models.Rate2(rate),
		Unit:         "%",
		Icon:         "percentage",
		Color:        "success",
		DisplayOrder: 10,
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
