package twitter

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// signer produces OAuth 1.0a Authorization headers with HMAC-SHA1 request
// signatures.
type signer struct {
	consumerKey    string
	consumerSecret string
	token          string
	tokenSecret    string

	// nonce and now are replaced in tests for deterministic signatures.
	nonce func() string
	now   func() time.Time
}

func newSigner(consumerKey, consumerSecret, token, tokenSecret string) *signer {
	return &signer{
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		token:          token,
		tokenSecret:    tokenSecret,
		nonce:          func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
		now:            time.Now,
	}
}

// percentEncode applies the stricter RFC 3986 escaping OAuth requires;
// url.QueryEscape differs on spaces and a few reserved characters.
func percentEncode(s string) string {
	var b strings.Builder
	for _, c := range []byte(s) {
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
			c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// authorize returns the Authorization header value for one request. Query
// parameters participate in the signature base string alongside the oauth
// parameters.
func (s *signer) authorize(method, rawURL string, query url.Values) string {
	oauth := map[string]string{
		"oauth_consumer_key":     s.consumerKey,
		"oauth_nonce":            s.nonce(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(s.now().Unix(), 10),
		"oauth_token":            s.token,
		"oauth_version":          "1.0",
	}

	oauth["oauth_signature"] = s.signature(method, rawURL, query, oauth)

	keys := make([]string, 0, len(oauth))
	for k := range oauth {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf(`%s="%s"`, k, percentEncode(oauth[k])))
	}
	return "OAuth " + strings.Join(parts, ", ")
}

func (s *signer) signature(method, rawURL string, query url.Values, oauth map[string]string) string {
	encoded := map[string]string{}
	for k, vs := range query {
		if len(vs) > 0 {
			encoded[percentEncode(k)] = percentEncode(vs[0])
		}
	}
	for k, v := range oauth {
		encoded[percentEncode(k)] = percentEncode(v)
	}

	keys := make([]string, 0, len(encoded))
	for k := range encoded {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+encoded[k])
	}
	paramString := strings.Join(pairs, "&")

	base := strings.ToUpper(method) + "&" + percentEncode(rawURL) + "&" + percentEncode(paramString)
	signingKey := percentEncode(s.consumerSecret) + "&" + percentEncode(s.tokenSecret)

	mac := hmac.New(sha1.New, []byte(signingKey))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
