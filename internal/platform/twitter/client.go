package twitter

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"pulseboard/internal/credentials"
	"pulseboard/internal/httpx"
	"pulseboard/internal/platform"
)

const Platform = "twitter"

const defaultBaseURL = "https://api.twitter.com/2"

const tweetFields = "created_at,public_metrics,text"

// Client talks to the v2 social API. App-only bearer auth is preferred when
// a bearer token is configured; otherwise every call carries an OAuth 1.0a
// signature.
type Client struct {
	api    *httpx.Client
	logger *logrus.Entry

	baseURL     string
	bearerToken string
	signer      *signer
}

func NewClient(creds credentials.Credentials, httpCfg httpx.Config, logger *logrus.Logger) (*Client, error) {
	if err := platform.RequireKeys(Platform, creds, "api_key", "api_secret", "access_token", "access_token_secret"); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		api:         httpx.New(Platform, defaultBaseURL, nil, httpCfg, logger),
		logger:      logger.WithField("platform", Platform),
		baseURL:     defaultBaseURL,
		bearerToken: creds["bearer_token"],
		signer: newSigner(
			creds["api_key"], creds["api_secret"],
			creds["access_token"], creds["access_token_secret"],
		),
	}, nil
}

// SetBaseURL repoints the client for tests.
func (c *Client) SetBaseURL(base string, httpCfg httpx.Config, logger *logrus.Logger) {
	c.api = httpx.New(Platform, base, nil, httpCfg, logger)
	c.baseURL = strings.TrimRight(base, "/")
}

// Signer exposes the OAuth signer for tests.
func (c *Client) Signer() *signer { return c.signer }

func (c *Client) Name() string { return Platform }

// get performs an authenticated GET, choosing bearer or OAuth 1.0a auth.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	var auth string
	if c.bearerToken != "" {
		auth = "Bearer " + c.bearerToken
	} else {
		rawURL := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
		auth = c.signer.authorize("GET", rawURL, params)
	}
	return c.api.Do(ctx, httpx.Request{
		Endpoint: endpoint,
		Params:   params,
		Headers:  map[string]string{"Authorization": auth},
	}, out)
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var resp struct {
		Data User `json:"data"`
	}
	err := c.get(ctx, "users/me", url.Values{
		"user.fields": {"public_metrics,created_at,description"},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Data.ID == "" {
		return nil, fmt.Errorf("empty user in response")
	}
	return &resp.Data, nil
}

func (c *Client) ValidateCredentials(ctx context.Context) bool {
	if _, err := c.Me(ctx); err != nil {
		c.logger.WithError(err).Error("Credential validation failed")
		return false
	}
	return true
}

// RecentTweets fetches up to limit of the user's latest tweets with their
// public engagement metrics.
func (c *Client) RecentTweets(ctx context.Context, userID string, limit int) ([]Tweet, error) {
	var resp struct {
		Data []Tweet `json:"data"`
	}
	err := c.get(ctx, "users/"+userID+"/tweets", url.Values{
		"max_results":  {fmt.Sprintf("%d", limit)},
		"tweet.fields": {tweetFields},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) Followers(ctx context.Context, userID string, limit int) ([]User, error) {
	var resp struct {
		Data []User `json:"data"`
	}
	err := c.get(ctx, "users/"+userID+"/followers", url.Values{
		"max_results": {fmt.Sprintf("%d", limit)},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) Following(ctx context.Context, userID string, limit int) ([]User, error) {
	var resp struct {
		Data []User `json:"data"`
	}
	err := c.get(ctx, "users/"+userID+"/following", url.Values{
		"max_results": {fmt.Sprintf("%d", limit)},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// CollectMetrics gathers the account profile and recent tweets. The v2 API
// serves account-level metrics regardless of the requested window, so the
// range only annotates the bundle. A failed profile lookup aborts with an
// empty bundle.
func (c *Client) CollectMetrics(ctx context.Context, start, end time.Time) (*Bundle, error) {
	start, end = platform.Window(start, end)
	c.logger.Info("Collecting social metrics")

	user, err := c.Me(ctx)
	if err != nil {
		c.logger.WithError(err).Error("Profile lookup failed, aborting collection")
		return &Bundle{CollectedAt: time.Now(), Start: start, End: end}, nil
	}

	bundle := &Bundle{
		User:        user,
		CollectedAt: time.Now(),
		Start:       start,
		End:         end,
	}

	if bundle.Tweets, err = c.RecentTweets(ctx, user.ID, 100); err != nil {
		c.logger.WithError(err).Warn("Tweet collection failed, continuing with empty section")
		bundle.Tweets = nil
	}

	return bundle, nil
}
