package googleanalytics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"pulseboard/internal/credentials"
	"pulseboard/internal/httpx"
	"pulseboard/internal/platform"
)

const Platform = "google_analytics"

const defaultBaseURL = "https://analyticsdata.googleapis.com/v1beta"

const reportingScope = "https://www.googleapis.com/auth/analytics.readonly"

// tokenSlack refreshes the cached access token before it actually expires.
const tokenSlack = time.Minute

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// relativeDates are the named ranges the Data API accepts besides ISO dates.
var relativeDates = map[string]bool{
	"today":     true,
	"yesterday": true,
	"7daysAgo":  true,
	"30daysAgo": true,
}

// serviceAccount is the subset of a service-account key file the client
// needs for the JWT-bearer grant.
type serviceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// Client talks to the analytics Data API. Every report call exchanges or
// reuses a service-account bearer token minted with an RS256-signed JWT.
type Client struct {
	api    *httpx.Client
	logger *logrus.Entry

	account    serviceAccount
	propertyID string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time

	// now is replaced in tests to pin token expiry checks.
	now func() time.Time
}

func NewClient(creds credentials.Credentials, httpCfg httpx.Config, logger *logrus.Logger) (*Client, error) {
	if err := platform.RequireKeys(Platform, creds, "service_account_info", "property_id"); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}

	var account serviceAccount
	if err := json.Unmarshal([]byte(creds["service_account_info"]), &account); err != nil {
		return nil, fmt.Errorf("%s: parse service account info: %w", Platform, err)
	}
	if account.ClientEmail == "" || account.PrivateKey == "" {
		return nil, fmt.Errorf("%s: service account info missing client_email or private_key", Platform)
	}
	if account.TokenURI == "" {
		account.TokenURI = "https://oauth2.googleapis.com/token"
	}

	return &Client{
		api:        httpx.New(Platform, defaultBaseURL, nil, httpCfg, logger),
		logger:     logger.WithField("platform", Platform),
		account:    account,
		propertyID: creds["property_id"],
		now:        time.Now,
	}, nil
}

// SetBaseURL repoints both the report and token endpoints for tests.
func (c *Client) SetBaseURL(base string, httpCfg httpx.Config, logger *logrus.Logger) {
	c.api = httpx.New(Platform, base, nil, httpCfg, logger)
	c.account.TokenURI = base + "/token"
}

func (c *Client) Name() string { return Platform }

// token returns a valid bearer token, minting a fresh one via the JWT-bearer
// grant when the cached token is absent or near expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.now().Add(tokenSlack).Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(c.account.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("parse service account key: %w", err)
	}

	issued := c.now()
	claims := jwt.MapClaims{
		"iss":   c.account.ClientEmail,
		"scope": reportingScope,
		"aud":   c.account.TokenURI,
		"iat":   issued.Unix(),
		"exp":   issued.Add(time.Hour).Unix(),
	}
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign token assertion: %w", err)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	err = c.api.Do(ctx, httpx.Request{
		Method:   http.MethodPost,
		Endpoint: c.account.TokenURI,
		Form: url.Values{
			"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
			"assertion":  {assertion},
		},
	}, &tokenResp)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token exchange returned empty token")
	}

	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = issued.Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	c.logger.WithField("expires_in", tokenResp.ExpiresIn).Debug("Minted reporting access token")
	return c.accessToken, nil
}

// validDate accepts the Data API's named relative ranges or an ISO date.
func validDate(s string) bool {
	return relativeDates[s] || isoDate.MatchString(s)
}

// RunReport executes one runReport call over the date range with the given
// dimensions and metrics, limited to limit rows when limit > 0.
func (c *Client) RunReport(ctx context.Context, startDate, endDate string, dimensions, metrics []string, limit int) (*Report, error) {
	if !validDate(startDate) || !validDate(endDate) {
		return nil, fmt.Errorf("invalid date range %q..%q", startDate, endDate)
	}

	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"dateRanges": []map[string]string{{"startDate": startDate, "endDate": endDate}},
		"dimensions": nameList(dimensions),
		"metrics":    nameList(metrics),
	}
	if limit > 0 {
		body["limit"] = strconv.Itoa(limit)
	}

	var raw rawReport
	err = c.api.Do(ctx, httpx.Request{
		Method:   http.MethodPost,
		Endpoint: fmt.Sprintf("properties/%s:runReport", c.propertyID),
		Body:     body,
		Headers:  map[string]string{"Authorization": "Bearer " + token},
	}, &raw)
	if err != nil {
		return nil, err
	}
	return convert(&raw), nil
}

// RunRealtimeReport executes one runRealtimeReport call; realtime reports
// take no date range.
func (c *Client) RunRealtimeReport(ctx context.Context, dimensions, metrics []string) (*Report, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	var raw rawReport
	err = c.api.Do(ctx, httpx.Request{
		Method:   http.MethodPost,
		Endpoint: fmt.Sprintf("properties/%s:runRealtimeReport", c.propertyID),
		Body: map[string]any{
			"dimensions": nameList(dimensions),
			"metrics":    nameList(metrics),
		},
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}, &raw)
	if err != nil {
		return nil, err
	}
	return convert(&raw), nil
}

func nameList(names []string) []map[string]string {
	out := make([]map[string]string, 0, len(names))
	for _, n := range names {
		out = append(out, map[string]string{"name": n})
	}
	return out
}

// convert pairs each row value with its header name so processors never
// depend on column positions.
func convert(raw *rawReport) *Report {
	report := &Report{RowCount: raw.RowCount}
	for _, rawRow := range raw.Rows {
		row := Row{
			Dimensions: map[string]string{},
			Metrics:    map[string]float64{},
		}
		for i, v := range rawRow.DimensionValues {
			if i < len(raw.DimensionHeaders) {
				row.Dimensions[raw.DimensionHeaders[i].Name] = v.Value
			}
		}
		for i, v := range rawRow.MetricValues {
			if i < len(raw.MetricHeaders) {
				f, err := strconv.ParseFloat(v.Value, 64)
				if err != nil {
					continue
				}
				row.Metrics[raw.MetricHeaders[i].Name] = f
			}
		}
		report.Rows = append(report.Rows, row)
	}
	return report
}

func (c *Client) ValidateCredentials(ctx context.Context) bool {
	_, err := c.RunReport(ctx, "yesterday", "today", []string{"date"}, []string{"sessions"}, 1)
	if err != nil {
		c.logger.WithError(err).Error("Credential validation failed")
		return false
	}
	return true
}

func (c *Client) BasicReport(ctx context.Context, startDate, endDate string) (*Report, error) {
	return c.RunReport(ctx, startDate, endDate,
		[]string{"date", "country", "deviceCategory"},
		[]string{"sessions", "activeUsers", "screenPageViews", "bounceRate", "averageSessionDuration"},
		0)
}

func (c *Client) TrafficSources(ctx context.Context, startDate, endDate string) (*Report, error) {
	return c.RunReport(ctx, startDate, endDate,
		[]string{"sessionSource", "sessionMedium"},
		[]string{"sessions", "activeUsers"},
		0)
}

func (c *Client) TopPages(ctx context.Context, startDate, endDate string) (*Report, error) {
	return c.RunReport(ctx, startDate, endDate,
		[]string{"pagePath", "pageTitle"},
		[]string{"screenPageViews", "activeUsers", "averageSessionDuration"},
		0)
}

func (c *Client) Realtime(ctx context.Context) (*Report, error) {
	return c.RunRealtimeReport(ctx,
		[]string{"country", "deviceCategory"},
		[]string{"activeUsers"})
}

// CollectMetrics gathers the standard report set over the window. A failed
// report yields a nil section and collection continues.
func (c *Client) CollectMetrics(ctx context.Context, start, end time.Time) (*Bundle, error) {
	start, end = platform.Window(start, end)
	startDate := start.Format("2006-01-02")
	endDate := end.Format("2006-01-02")
	c.logger.WithFields(logrus.Fields{"start": startDate, "end": endDate}).Info("Collecting analytics reports")

	bundle := &Bundle{CollectedAt: time.Now(), Start: start, End: end}

	var err error
	if bundle.Basic, err = c.BasicReport(ctx, startDate, endDate); err != nil {
		c.logger.WithError(err).Warn("Basic report failed, continuing with empty section")
		bundle.Basic = nil
	}
	if bundle.TrafficSources, err = c.TrafficSources(ctx, startDate, endDate); err != nil {
		c.logger.WithError(err).Warn("Traffic sources report failed, continuing with empty section")
		bundle.TrafficSources = nil
	}
	if bundle.Pages, err = c.TopPages(ctx, startDate, endDate); err != nil {
		c.logger.WithError(err).Warn("Pages report failed, continuing with empty section")
		bundle.Pages = nil
	}
	if bundle.Realtime, err = c.Realtime(ctx); err != nil {
		c.logger.WithError(err).Warn("Realtime report failed, continuing with empty section")
		bundle.Realtime = nil
	}

	return bundle, nil
}
