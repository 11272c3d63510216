package meta

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulseboard/internal/models"
	"pulseboard/internal/storage"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func findKeyed(records []models.Record, subCategory string) (models.KeyedMetric, bool) {
	for _, rec := range records {
		if m, ok := rec.(models.KeyedMetric); ok && m.SubCategory == subCategory {
			return m, true
		}
	}
	return models.KeyedMetric{}, false
}

func findSeries(records []models.Record, name string) (models.TimestampedMetric, bool) {
	for _, rec := range records {
		if m, ok := rec.(models.TimestampedMetric); ok && m.Name == name {
			return m, true
		}
	}
	return models.TimestampedMetric{}, false
}

func testBundle() *Bundle {
	return &Bundle{
		Page: PageInfo{ID: "1", Name: "Demo", FollowersCount: 1000, FanCount: 900},
		Posts: []Post{
			{
				ID:       "p1",
				Likes:    Summarized{Summary{TotalCount: 10}},
				Comments: Summarized{Summary{TotalCount: 4}},
				Shares:   Shares{Count: 2},
			},
			{
				ID:       "p2",
				Likes:    Summarized{Summary{TotalCount: 20}},
				Comments: Summarized{Summary{TotalCount: 6}},
				Shares:   Shares{Count: 4},
			},
		},
		Insights: []Insight{
			{Name: "page_impressions", Period: "day", Values: []InsightValue{{Value: 100}, {Value: 200}}},
			{Name: "page_engaged_users", Period: "day", Values: []InsightValue{{Value: 50}, {Value: 50}}},
		},
	}
}

func TestTransformPageMetrics(t *testing.T) {
	p := NewProcessor(storage.NewMemoryStore(), testLogger())

	out := p.Transform(testBundle())
	facebook := out.Sections["facebook"]

	followers, ok := findKeyed(facebook, "Page Followers")
	require.True(t, ok)
	assert.Equal(t, "1,000", followers.Value)
	assert.Equal(t, 1, followers.DisplayOrder)

	avgLikes, ok := findKeyed(facebook, "Avg Likes per Post")
	require.True(t, ok)
	assert.Equal(t, "15.0", avgLikes.Value)

	impTotal, ok := findKeyed(facebook, "Page Impressions (Total)")
	require.True(t, ok)
	assert.Equal(t, "300", impTotal.Value)

	impAvg, ok := findKeyed(facebook, "Page Impressions (Avg)")
	require.True(t, ok)
	assert.Equal(t, "150.0", impAvg.Value)
	assert.Equal(t, "per day", impAvg.Unit)
}

func TestTransformZeroPosts(t *testing.T) {
	p := NewProcessor(storage.NewMemoryStore(), testLogger())

	bundle := testBundle()
	bundle.Posts = nil

	out := p.Transform(bundle)
	facebook := out.Sections["facebook"]

	_, ok := findKeyed(facebook, "Page Followers")
	assert.True(t, ok)
	_, ok = findKeyed(facebook, "Avg Likes per Post")
	assert.False(t, ok)
	_, ok = findKeyed(facebook, "Total Posts")
	assert.False(t, ok)
}

func TestTransformSkipsUnknownInsights(t *testing.T) {
	p := NewProcessor(storage.NewMemoryStore(), testLogger())

	bundle := testBundle()
	bundle.Insights = append(bundle.Insights, Insight{
		Name: "page_mystery_metric", Values: []InsightValue{{Value: 5}},
	})

	out := p.Transform(bundle)
	_, ok := findKeyed(out.Sections["facebook"], "page_mystery_metric (Total)")
	assert.False(t, ok)
}

func TestDerivedEngagementRate(t *testing.T) {
	p := NewProcessor(storage.NewMemoryStore(), testLogger())

	out := p.Transform(testBundle())

	// 100 engaged users over 1000 followers.
	rate, ok := findKeyed(out.Sections["facebook"], "Engagement Rate")
	require.True(t, ok)
	assert.Equal(t, "10.00", rate.Value)
	assert.Equal(t, "%", rate.Unit)
}

func TestDerivedEngagementRateGuarded(t *testing.T) {
	p := NewProcessor(storage.NewMemoryStore(), testLogger())

	bundle := testBundle()
	bundle.Page.FollowersCount = 0

	out := p.Transform(bundle)
	_, ok := findKeyed(out.Sections["facebook"], "Engagement Rate")
	assert.False(t, ok)
}

func TestTransformInstagramSection(t *testing.T) {
	p := NewProcessor(storage.NewMemoryStore(), testLogger())

	bundle := testBundle()
	bundle.Instagram = &Instagram{
		AccountID: "ig1",
		Media: []Media{
			{ID: "m1", MediaType: "IMAGE", LikeCount: 30, CommentsCount: 10},
			{ID: "m2", MediaType: "VIDEO", LikeCount: 10, CommentsCount: 2},
		},
		Insights: []Insight{
			{Name: "follower_count", Values: []InsightValue{{Value: 480}, {Value: 500}}},
			{Name: "impressions", Values: []InsightValue{{Value: 1000}, {Value: 1500}}},
		},
	}

	out := p.Transform(bundle)
	instagram := out.Sections["instagram"]
	require.NotEmpty(t, instagram)

	avgLikes, ok := findKeyed(instagram, "Avg Likes per Post")
	require.True(t, ok)
	assert.Equal(t, "20.0", avgLikes.Value)

	imageCount, ok := findKeyed(instagram, "IMAGE Posts")
	require.True(t, ok)
	assert.Equal(t, "1", imageCount.Value)

	// Follower series uses the latest value; rate is impressions over the
	// current follower count.
	rate, ok := findKeyed(instagram, "Engagement Rate")
	require.True(t, ok)
	assert.Equal(t, "500.00", rate.Value)

	followers, ok := findSeries(out.Sections["marketing"], "Instagram Followers")
	require.True(t, ok)
	assert.Equal(t, 500.0, followers.Value)
}

func TestTransformNoInstagram(t *testing.T) {
	p := NewProcessor(storage.NewMemoryStore(), testLogger())

	out := p.Transform(testBundle())
	_, hasSection := out.Sections["instagram"]
	assert.False(t, hasSection)
}

func TestTransformMarketingSeries(t *testing.T) {
	p := NewProcessor(storage.NewMemoryStore(), testLogger())

	out := p.Transform(testBundle())
	marketing := out.Sections["marketing"]

	followers, ok := findSeries(marketing, "Facebook Followers")
	require.True(t, ok)
	assert.Equal(t, 1000.0, followers.Value)
	assert.Equal(t, "social_media", followers.Type)

	engaged, ok := findSeries(marketing, "Facebook Engaged Users")
	require.True(t, ok)
	assert.Equal(t, 100.0, engaged.Value)
}

func TestLoadIsAtomic(t *testing.T) {
	store := storage.NewMemoryStore()
	store.FailAfter(1)
	p := NewProcessor(store, testLogger())

	out := p.Transform(testBundle())
	err := p.Load(context.Background(), out)
	require.Error(t, err)
	assert.Empty(t, store.Records())
}
