package twitter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulseboard/internal/models"
	"pulseboard/internal/storage"
)

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
		User: &User{
			ID:       "u1",
			Username: "demo",
			PublicMetrics: UserMetrics{
				FollowersCount: 1000,
				FollowingCount: 150,
				TweetCount:     5000,
				ListedCount:    20,
			},
		},
		Tweets: []Tweet{
			{ID: "t1", PublicMetrics: TweetMetrics{LikeCount: 10, RetweetCount: 4, ReplyCount: 3, QuoteCount: 3}},
			{ID: "t2", PublicMetrics: TweetMetrics{LikeCount: 20, RetweetCount: 6, ReplyCount: 7, QuoteCount: 7}},
		},
	}
}

func TestTransformAccountMetrics(t *testing.T) {
	p := NewProcessor(storage.NewMemoryStore(), testLogger())

	out := p.Transform(testBundle())
	social := out.Sections["social"]

	followers, ok := findKeyed(social, "Followers")
	require.True(t, ok)
	assert.Equal(t, "1,000", followers.Value)
	assert.Equal(t, 1, followers.DisplayOrder)

	following, ok := findKeyed(social, "Following")
	require.True(t, ok)
	assert.Equal(t, "150", following.Value)
	assert.Equal(t, "accounts", following.Unit)

	avgLikes, ok := findKeyed(social, "Avg Likes per Tweet")
	require.True(t, ok)
	assert.Equal(t, "15.0", avgLikes.Value)
}

func TestTransformNilUserYieldsNothing(t *testing.T) {
	p := NewProcessor(storage.NewMemoryStore(), testLogger())

	out := p.Transform(&Bundle{})
	assert.Empty(t, out.Sections["social"])
	assert.Empty(t, out.Sections["marketing"])
}

func TestTransformZeroTweets(t *testing.T) {
	p := NewProcessor(storage.NewMemoryStore(), testLogger())

	bundle := testBundle()
	bundle.Tweets = nil

	out := p.Transform(bundle)
	social := out.Sections["social"]

	_, ok := findKeyed(social, "Followers")
	assert.True(t, ok)
	_, ok = findKeyed(social, "Avg Likes per Tweet")
	assert.False(t, ok)
	_, ok = findKeyed(social, "Engagement Rate")
	assert.False(t, ok)
}

func TestTransformMarketingSeries(t *testing.T) {
	p := NewProcessor(storage.NewMemoryStore(), testLogger())

	out := p.Transform(testBundle())
	marketing := out.Sections["marketing"]

	followers, ok := findSeries(marketing, "Twitter Followers")
	require.True(t, ok)
	assert.Equal(t, 1000.0, followers.Value)
	assert.Equal(t, "social_media", followers.Type)

	engagement, ok := findSeries(marketing, "Twitter Engagement")
	require.True(t, ok)
	assert.Equal(t, 60.0, engagement.Value)

	likes, ok := findSeries(marketing, "Twitter Likes")
	require.True(t, ok)
	assert.Equal(t, 30.0, likes.Value)
}

func TestDerivedEngagementRate(t *testing.T) {
	p := NewProcessor(storage.NewMemoryStore(), testLogger())

	out := p.Transform(testBundle())

	// 30 engagements per tweet over 1000 followers.
	rate, ok := findKeyed(out.Sections["social"], "Engagement Rate")
	require.True(t, ok)
	assert.Equal(t, "3.00", rate.Value)
	assert.Equal(t, "%", rate.Unit)
	assert.Equal(t, 10, rate.DisplayOrder)
}

func TestDerivedEngagementRateGuarded(t *testing.T) {
	p := NewProcessor(storage.NewMemoryStore(), testLogger())

	bundle := testBundle()
	bundle.User.PublicMetrics.FollowersCount = 0

	out := p.Transform(bundle)
	_, ok := findKeyed(out.Sections["social"], "Engagement Rate")
	assert.False(t, ok)
}

func TestLoadIsAtomic(t *testing.T) {
	store := storage.NewMemoryStore()
	store.FailAfter(2)
	p := NewProcessor(store, testLogger())

	out := p.Transform(testBundle())
	err := p.Load(context.Background(), out)
	require.Error(t, err)
	assert.Empty(t, store.Records())
}
