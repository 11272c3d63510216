package tiktok

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"pulseboard/internal/credentials"
	"pulseboard/internal/httpx"
	"pulseboard/internal/platform"
)

const Platform = "tiktok_ads"

const defaultBaseURL = "https://business-api.tiktok.com/open_api/v1.3"

// adPageSize is the business API's per-page maximum.
const adPageSize = 100

var reportMetricNames = []string{
	"spend", "impressions", "clicks", "conversion",
	"cost_per_conversion", "ctr", "cpc", "reach",
}

// Client talks to the ads business API. Calls authenticate with the access
// token header plus an HMAC-SHA256 signature over the canonical request.
type Client struct {
	api    *httpx.Client
	logger *logrus.Entry

	secret       string
	advertiserID string
	basePath     string

	// now is replaced in tests to pin signature timestamps.
	now func() time.Time
}

func NewClient(creds credentials.Credentials, httpCfg httpx.Config, logger *logrus.Logger) (*Client, error) {
	if err := platform.RequireKeys(Platform, creds, "app_id", "secret", "access_token", "advertiser_id"); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		api: httpx.New(Platform, defaultBaseURL, map[string]string{
			"Access-Token": creds["access_token"],
			"Content-Type": "application/json",
		}, httpCfg, logger),
		logger:       logger.WithField("platform", Platform),
		secret:       creds["secret"],
		advertiserID: creds["advertiser_id"],
		basePath:     "/open_api/v1.3",
		now:          time.Now,
	}, nil
}

// SetBaseURL repoints the client for tests.
func (c *Client) SetBaseURL(base string, httpCfg httpx.Config, logger *logrus.Logger) {
	c.api = httpx.New(Platform, base, map[string]string{
		"Access-Token": "test",
	}, httpCfg, logger)
	if u, err := url.Parse(base); err == nil {
		c.basePath = u.Path
	}
}

func (c *Client) Name() string { return Platform }

// sign builds the HMAC-SHA256 request signature over the canonical string
// METHOD, path, timestamp, and the sorted key=value parameter list, each on
// its own line.
func (c *Client) sign(method, path, timestamp string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params.Get(k))
	}

	canonical := strings.Join([]string{method, path, timestamp, strings.Join(pairs, "&")}, "\n")
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// get performs a signed GET against one API endpoint and decodes data into
// out. A non-zero envelope code is an error even on HTTP 200.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	path := c.basePath + "/" + strings.TrimLeft(endpoint, "/")

	var resp struct {
		envelope
		Data json.RawMessage `json:"data"`
	}
	err := c.api.Do(ctx, httpx.Request{
		Endpoint: endpoint,
		Params:   params,
		Headers: map[string]string{
			"Signature": c.sign("GET", path, timestamp, params),
			"Timestamp": timestamp,
		},
	}, &resp)
	if err != nil {
		return err
	}
	if resp.Code != 0 {
		return fmt.Errorf("api error %d: %s", resp.Code, resp.Message)
	}
	if out != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

func (c *Client) AdvertiserInfo(ctx context.Context) (*Advertiser, error) {
	ids, _ := json.Marshal([]string{c.advertiserID})
	params := url.Values{"advertiser_ids": {string(ids)}}

	var data struct {
		List []Advertiser `json:"list"`
	}
	if err := c.get(ctx, "advertiser/info/", params, &data); err != nil {
		return nil, err
	}
	if len(data.List) == 0 {
		return nil, fmt.Errorf("advertiser %s not found", c.advertiserID)
	}
	return &data.List[0], nil
}

func (c *Client) ValidateCredentials(ctx context.Context) bool {
	if _, err := c.AdvertiserInfo(ctx); err != nil {
		c.logger.WithError(err).Error("Credential validation failed")
		return false
	}
	return true
}

func (c *Client) Campaigns(ctx context.Context) ([]Campaign, error) {
	params := url.Values{"advertiser_id": {c.advertiserID}}

	var data struct {
		List []Campaign `json:"list"`
	}
	if err := c.get(ctx, "campaign/get/", params, &data); err != nil {
		return nil, err
	}
	return data.List, nil
}

// Ads pages through the full ad list with page-number pagination.
func (c *Client) Ads(ctx context.Context) ([]Ad, error) {
	var all []Ad
	page := 1

	for {
		params := url.Values{
			"advertiser_id": {c.advertiserID},
			"page":          {strconv.Itoa(page)},
			"page_size":     {strconv.Itoa(adPageSize)},
		}

		var data struct {
			List     []Ad     `json:"list"`
			PageInfo pageInfo `json:"page_info"`
		}
		if err := c.get(ctx, "ad/get/", params, &data); err != nil {
			return nil, err
		}
		all = append(all, data.List...)
		c.logger.WithFields(logrus.Fields{"page": page, "count": len(all)}).Debug("Retrieved ads page")

		if page >= data.PageInfo.TotalPage || len(data.List) == 0 {
			break
		}
		page++
	}
	return all, nil
}

// Report runs the integrated BASIC report per ad over the date range.
func (c *Client) Report(ctx context.Context, start, end time.Time) ([]ReportRow, error) {
	dimensions, _ := json.Marshal([]string{"ad_id"})
	metrics, _ := json.Marshal(reportMetricNames)
	params := url.Values{
		"advertiser_id": {c.advertiserID},
		"report_type":   {"BASIC"},
		"dimensions":    {string(dimensions)},
		"metrics":       {string(metrics)},
		"start_date":    {start.Format("2006-01-02")},
		"end_date":      {end.Format("2006-01-02")},
	}

	var data struct {
		List []ReportRow `json:"list"`
	}
	if err := c.get(ctx, "report/integrated/get/", params, &data); err != nil {
		return nil, err
	}
	return data.List, nil
}

// CollectMetrics gathers advertiser info, campaigns, ads, and the window's
// performance report. A failed advertiser lookup aborts with an empty
// bundle; any other sub-call failure yields an empty section.
func (c *Client) CollectMetrics(ctx context.Context, start, end time.Time) (*Bundle, error) {
	start, end = platform.Window(start, end)
	c.logger.WithFields(logrus.Fields{
		"start": start.Format("2006-01-02"),
		"end":   end.Format("2006-01-02"),
	}).Info("Collecting ads metrics")

	advertiser, err := c.AdvertiserInfo(ctx)
	if err != nil {
		c.logger.WithError(err).Error("Advertiser lookup failed, aborting collection")
		return &Bundle{CollectedAt: time.Now(), Start: start, End: end}, nil
	}

	bundle := &Bundle{
		Advertiser:  advertiser,
		CollectedAt: time.Now(),
		Start:       start,
		End:         end,
	}

	if bundle.Campaigns, err = c.Campaigns(ctx); err != nil {
		c.logger.WithError(err).Warn("Campaign collection failed, continuing with empty section")
		bundle.Campaigns = nil
	}
	if bundle.Ads, err = c.Ads(ctx); err != nil {
		c.logger.WithError(err).Warn("Ad collection failed, continuing with empty section")
		bundle.Ads = nil
	}
	if bundle.Report, err = c.Report(ctx, start, end); err != nil {
		c.logger.WithError(err).Warn("Report collection failed, continuing with empty section")
		bundle.Report = nil
	}

	return bundle, nil
}
