package twitter

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedSigner() *signer {
	s := newSigner("ckey", "csecret", "atoken", "asecret")
	s.nonce = func() string { return "fixednonce" }
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	return s
}

func TestPercentEncode(t *testing.T) {
	assert.Equal(t, "abc123", percentEncode("abc123"))
	assert.Equal(t, "a%20b", percentEncode("a b"))
	assert.Equal(t, "a%2Bb", percentEncode("a+b"))
	assert.Equal(t, "~-._", percentEncode("~-._"))
	assert.Equal(t, "%E2%82%AC", percentEncode("€"))
	assert.Equal(t, "a%3Db%26c", percentEncode("a=b&c"))
}

func TestSignatureMatchesManualComputation(t *testing.T) {
	s := fixedSigner()
	rawURL := "https://api.twitter.com/2/users/me"
	query := url.Values{"user.fields": {"public_metrics"}}

	oauth := map[string]string{
		"oauth_consumer_key":     "ckey",
		"oauth_nonce":            "fixednonce",
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        "1700000000",
		"oauth_token":            "atoken",
		"oauth_version":          "1.0",
	}
	got := s.signature("GET", rawURL, query, oauth)

	// Parameter string with all keys sorted after encoding.
	paramString := strings.Join([]string{
		"oauth_consumer_key=ckey",
		"oauth_nonce=fixednonce",
		"oauth_signature_method=HMAC-SHA1",
		"oauth_timestamp=1700000000",
		"oauth_token=atoken",
		"oauth_version=1.0",
		"user.fields=public_metrics",
	}, "&")
	base := "GET&" + percentEncode(rawURL) + "&" + percentEncode(paramString)

	mac := hmac.New(sha1.New, []byte("csecret&asecret"))
	mac.Write([]byte(base))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, got)
}

func TestAuthorizeHeaderFormat(t *testing.T) {
	s := fixedSigner()

	header := s.authorize("GET", "https://api.twitter.com/2/users/me", nil)

	require.True(t, strings.HasPrefix(header, "OAuth "))
	assert.Contains(t, header, `oauth_consumer_key="ckey"`)
	assert.Contains(t, header, `oauth_nonce="fixednonce"`)
	assert.Contains(t, header, `oauth_signature_method="HMAC-SHA1"`)
	assert.Contains(t, header, `oauth_timestamp="1700000000"`)
	assert.Contains(t, header, `oauth_token="atoken"`)
	assert.Contains(t, header, `oauth_version="1.0"`)
	assert.Contains(t, header, `oauth_signature="`)

	// Deterministic with fixed nonce and clock.
	assert.Equal(t, header, s.authorize("GET", "https://api.twitter.com/2/users/me", nil))
}

func TestAuthorizeChangesWithQuery(t *testing.T) {
	s := fixedSigner()

	plain := s.authorize("GET", "https://api.twitter.com/2/users/me", nil)
	withQuery := s.authorize("GET", "https://api.twitter.com/2/users/me", url.Values{
		"max_results": {"100"},
	})
	assert.NotEqual(t, plain, withQuery)
}
