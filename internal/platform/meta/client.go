package meta

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"pulseboard/internal/credentials"
	"pulseboard/internal/httpx"
	"pulseboard/internal/platform"
)

const Platform = "meta"

const defaultBaseURL = "https://graph.facebook.com/v18.0"

var pageInsightMetrics = []string{
	"page_impressions",
	"page_reach",
	"page_engaged_users",
	"page_post_engagements",
	"page_fans",
	"page_fan_adds",
	"page_fan_removes",
}

var instagramInsightMetrics = []string{
	"impressions",
	"reach",
	"profile_views",
	"follower_count",
}

// Client talks to the social-graph API. The access token travels as a query
// parameter; a page-scoped token discovered from the accounts listing may
// replace the configured one for the rest of the run.
type Client struct {
	api    *httpx.Client
	logger *logrus.Entry

	accessToken string
	pageID      string
}

func NewClient(creds credentials.Credentials, httpCfg httpx.Config, logger *logrus.Logger) (*Client, error) {
	if err := platform.RequireKeys(Platform, creds, "access_token"); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		api: httpx.New(Platform, defaultBaseURL, map[string]string{
			"Content-Type": "application/json",
		}, httpCfg, logger),
		logger:      logger.WithField("platform", Platform),
		accessToken: creds["access_token"],
		pageID:      creds["page_id"], // optional, can be discovered
	}, nil
}

// SetBaseURL repoints the client for tests.
func (c *Client) SetBaseURL(base string, httpCfg httpx.Config, logger *logrus.Logger) {
	c.api = httpx.New(Platform, base, nil, httpCfg, logger)
}

func (c *Client) Name() string { return Platform }

func (c *Client) params(extra url.Values) url.Values {
	params := url.Values{}
	params.Set("access_token", c.accessToken)
	for k, vs := range extra {
		for _, v := range vs {
			params.Add(k, v)
		}
	}
	return params
}

func (c *Client) ValidateCredentials(ctx context.Context) bool {
	info, err := c.AccountInfo(ctx)
	if err != nil {
		c.logger.WithError(err).Error("Credential validation failed")
		return false
	}
	_, ok := info["id"]
	return ok
}

func (c *Client) AccountInfo(ctx context.Context) (map[string]any, error) {
	return c.api.DoMap(ctx, httpx.Request{
		Endpoint: "me",
		Params:   c.params(url.Values{"fields": {"id,name"}}),
	})
}

// PageID resolves the page identity: configured value first, then the "me"
// node, then the first entry of the accounts listing. When the listing
// carries a page access token, the client adopts it.
func (c *Client) PageID(ctx context.Context) (string, error) {
	if c.pageID != "" {
		return c.pageID, nil
	}

	var me struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	err := c.api.Do(ctx, httpx.Request{
		Endpoint: "me",
		Params:   c.params(url.Values{"fields": {"id,name"}}),
	}, &me)
	if err == nil && me.ID != "" {
		c.pageID = me.ID
		c.logger.WithFields(logrus.Fields{"page_id": me.ID, "name": me.Name}).Info("Resolved page id")
		return c.pageID, nil
	}

	var accounts struct {
		Data []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	err = c.api.Do(ctx, httpx.Request{
		Endpoint: "me/accounts",
		Params:   c.params(url.Values{"fields": {"id,name,access_token"}}),
	}, &accounts)
	if err == nil && len(accounts.Data) > 0 {
		first := accounts.Data[0]
		c.pageID = first.ID
		c.logger.WithFields(logrus.Fields{"page_id": first.ID, "name": first.Name}).Info("Selected first page from accounts")
		if first.AccessToken != "" {
			c.accessToken = first.AccessToken
			c.logger.Info("Using page access token")
		}
		return c.pageID, nil
	}

	return "", errors.New("could not resolve page id")
}

func (c *Client) PageInfo(ctx context.Context, pageID string) (PageInfo, error) {
	var info PageInfo
	err := c.api.Do(ctx, httpx.Request{
		Endpoint: pageID,
		Params: c.params(url.Values{
			"fields": {"name,followers_count,fan_count,about,website,category,link"},
		}),
	}, &info)
	return info, err
}

func (c *Client) RecentPosts(ctx context.Context, pageID string, limit int) ([]Post, error) {
	var resp struct {
		Data []Post `json:"data"`
	}
	err := c.api.Do(ctx, httpx.Request{
		Endpoint: pageID + "/posts",
		Params: c.params(url.Values{
			"fields": {"message,created_time,likes.summary(true),comments.summary(true),shares,reactions.summary(true)"},
			"limit":  {strconv.Itoa(limit)},
		}),
	}, &resp)
	return resp.Data, err
}

// PageInsights requests the standard page metric set with day granularity
// over the since/until window.
func (c *Client) PageInsights(ctx context.Context, pageID string, since, until time.Time) ([]Insight, error) {
	var resp struct {
		Data []Insight `json:"data"`
	}
	err := c.api.Do(ctx, httpx.Request{
		Endpoint: pageID + "/insights",
		Params: c.params(url.Values{
			"metric": {strings.Join(pageInsightMetrics, ",")},
			"period": {"day"},
			"since":  {since.Format("2006-01-02")},
			"until":  {until.Format("2006-01-02")},
		}),
	}, &resp)
	return resp.Data, err
}

// InstagramAccountID returns the linked image-sharing business account id,
// or "" when none is connected.
func (c *Client) InstagramAccountID(ctx context.Context, pageID string) (string, error) {
	var resp struct {
		InstagramBusinessAccount struct {
			ID string `json:"id"`
		} `json:"instagram_business_account"`
	}
	err := c.api.Do(ctx, httpx.Request{
		Endpoint: pageID,
		Params:   c.params(url.Values{"fields": {"instagram_business_account"}}),
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.InstagramBusinessAccount.ID, nil
}

func (c *Client) InstagramMedia(ctx context.Context, accountID string, limit int) ([]Media, error) {
	var resp struct {
		Data []Media `json:"data"`
	}
	err := c.api.Do(ctx, httpx.Request{
		Endpoint: accountID + "/media",
		Params: c.params(url.Values{
			"fields": {"id,caption,media_type,media_url,permalink,timestamp,like_count,comments_count"},
			"limit":  {strconv.Itoa(limit)},
		}),
	}, &resp)
	return resp.Data, err
}

func (c *Client) InstagramInsights(ctx context.Context, accountID string, since, until time.Time) ([]Insight, error) {
	var resp struct {
		Data []Insight `json:"data"`
	}
	err := c.api.Do(ctx, httpx.Request{
		Endpoint: accountID + "/insights",
		Params: c.params(url.Values{
			"metric": {strings.Join(instagramInsightMetrics, ",")},
			"period": {"day"},
			"since":  {since.Format("2006-01-02")},
			"until":  {until.Format("2006-01-02")},
		}),
	}, &resp)
	return resp.Data, err
}

// CollectMetrics gathers page info, recent posts, page insights, and, when a
// linked image-sharing account exists, its media and insights. A failed page
// id resolution aborts with an empty bundle.
func (c *Client) CollectMetrics(ctx context.Context, start, end time.Time) (*Bundle, error) {
	start, end = platform.Window(start, end)
	c.logger.WithField("days", int(end.Sub(start).Hours()/24)).Info("Collecting social-graph metrics")

	pageID, err := c.PageID(ctx)
	if err != nil {
		c.logger.WithError(err).Error("Page id resolution failed, aborting collection")
		return &Bundle{CollectedAt: time.Now(), Start: start, End: end}, nil
	}

	bundle := &Bundle{CollectedAt: time.Now(), Start: start, End: end}

	if bundle.Page, err = c.PageInfo(ctx, pageID); err != nil {
		c.logger.WithError(err).Warn("Page info failed, continuing with empty section")
		bundle.Page = PageInfo{}
	}
	if bundle.Posts, err = c.RecentPosts(ctx, pageID, 25); err != nil {
		c.logger.WithError(err).Warn("Posts collection failed, continuing with empty section")
		bundle.Posts = nil
	}
	if bundle.Insights, err = c.PageInsights(ctx, pageID, start, end); err != nil {
		c.logger.WithError(err).Warn("Insights collection failed, continuing with empty section")
		bundle.Insights = nil
	}

	igID, err := c.InstagramAccountID(ctx, pageID)
	if err != nil {
		c.logger.WithError(err).Warn("Instagram discovery failed, skipping")
	} else if igID != "" {
		c.logger.WithField("instagram_id", igID).Info("Found linked Instagram account")
		ig := &Instagram{AccountID: igID}
		if ig.Media, err = c.InstagramMedia(ctx, igID, 25); err != nil {
			c.logger.WithError(err).Warn("Instagram media failed, continuing with empty section")
			ig.Media = nil
		}
		if ig.Insights, err = c.InstagramInsights(ctx, igID, start, end); err != nil {
			c.logger.WithError(err).Warn("Instagram insights failed, continuing with empty section")
			ig.Insights = nil
		}
		bundle.Instagram = ig
	}

	return bundle, nil
}

