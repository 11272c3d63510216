package tiktok

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulseboard/internal/credentials"
	"pulseboard/internal/httpx"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(credentials.Credentials{
		"app_id":        "app1",
		"secret":        "s3cret",
		"access_token":  "tok",
		"advertiser_id": "adv1",
	}, httpx.Config{Timeout: 5 * time.Second}, testLogger())
	require.NoError(t, err)
	if server != nil {
		client.SetBaseURL(server.URL, httpx.Config{Timeout: 5 * time.Second}, testLogger())
	}
	return client
}

func TestSignIsDeterministic(t *testing.T) {
	client := newTestClient(t, nil)

	params := url.Values{
		"advertiser_id": {"adv1"},
		"page":          {"1"},
	}
	first := client.sign("GET", "/open_api/v1.3/ad/get/", "1700000000", params)
	second := client.sign("GET", "/open_api/v1.3/ad/get/", "1700000000", params)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64) // hex SHA-256

	changed := client.sign("GET", "/open_api/v1.3/ad/get/", "1700000000", url.Values{
		"advertiser_id": {"adv1"},
		"page":          {"2"},
	})
	assert.NotEqual(t, first, changed)
}

func TestSignSortsParameters(t *testing.T) {
	client := newTestClient(t, nil)

	// The canonical string sorts keys, so the signature is computable
	// independently of map iteration order.
	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write([]byte("GET\n/open_api/v1.3/campaign/get/\n1700000000\na=1&b=2"))
	want := hex.EncodeToString(mac.Sum(nil))

	got := client.sign("GET", "/open_api/v1.3/campaign/get/", "1700000000", url.Values{
		"b": {"2"},
		"a": {"1"},
	})
	assert.Equal(t, want, got)
}

func TestGetAttachesSignatureHeaders(t *testing.T) {
	var gotSignature, gotTimestamp, gotToken string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("Signature")
		gotTimestamp = r.Header.Get("Timestamp")
		gotToken = r.Header.Get("Access-Token")
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0, "message": "OK",
			"data": map[string]any{"list": []Campaign{{CampaignID: "c1"}}},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server)
	client.now = func() time.Time { return time.Unix(1700000000, 0) }

	campaigns, err := client.Campaigns(context.Background())
	require.NoError(t, err)
	require.Len(t, campaigns, 1)

	assert.Equal(t, "1700000000", gotTimestamp)
	assert.NotEmpty(t, gotToken)
	want := client.sign("GET", client.basePath+"/campaign/get/", "1700000000", url.Values{"advertiser_id": {"adv1"}})
	assert.Equal(t, want, gotSignature)
}

func TestGetRejectsNonZeroCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"code": 40105, "message": "invalid access token"})
	}))
	defer server.Close()

	client := newTestClient(t, server)

	_, err := client.Campaigns(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "40105")
	assert.Contains(t, err.Error(), "invalid access token")
}

func TestAdsPaginates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		require.NoError(t, err)
		list := []Ad{{AdID: "a" + strconv.Itoa(page)}}
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{
				"list":      list,
				"page_info": map[string]any{"page": page, "total_page": 3},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server)

	ads, err := client.Ads(context.Background())
	require.NoError(t, err)
	assert.Len(t, ads, 3)
	assert.Equal(t, "a1", ads[0].AdID)
	assert.Equal(t, "a3", ads[2].AdID)
}

func TestCollectMetricsAdvertiserFailureYieldsEmptyBundle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"code": 40001, "message": "denied"})
	}))
	defer server.Close()

	client := newTestClient(t, server)

	bundle, err := client.CollectMetrics(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Nil(t, bundle.Advertiser)
	assert.Empty(t, bundle.Report)
}
