// Package awssig signs courier requests with AWS Signature Version 4.
package awssig

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

// unsignedPayload is the payload hash used for streamed bodies.
const unsignedPayload = "UNSIGNED-PAYLOAD"

// Credentials holds credentials for AWS Signature v4 authentication
type Credentials struct {
	AccessKey string
	SecretKey string
	Region    string
	Service   string
}

// Signer is a request transformer that adds SigV4 headers. It must run
// after the body has been encoded.
type Signer struct {
	Credentials
	// Now is the signing clock; nil means time.Now.
	Now func() time.Time
}

// NewSigner returns a signer for creds.
func NewSigner(creds Credentials) *Signer {
	return &Signer{Credentials: creds}
}

// Append returns transforms followed by the signer.
func (s *Signer) Append(transforms []courier.RequestTransformer) []courier.RequestTransformer {
	out := append([]courier.RequestTransformer(nil), transforms...)
	return append(out, s.Transform)
}

// Transform signs the request described by cfg. It sets the
// Authorization, X-Amz-Date and X-Amz-Content-Sha256 headers and returns
// data unchanged.
func (s *Signer) Transform(cfg *courier.Config, data any, headers courier.Header) (any, error) {
	target := courier.BuildURL(courier.BuildFullPath(cfg.BaseURL, cfg.URL), cfg.Params, cfg.ParamsSerializer)
	parsedURL, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	payloadHash, err := payloadHash(data)
	if err != nil {
		return nil, err
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	authHeader, amzDate := s.sign(strings.ToUpper(cfg.Method), parsedURL, payloadHash, now().UTC())

	headers.Set("X-Amz-Date", amzDate)
	headers.Set("X-Amz-Content-Sha256", payloadHash)
	headers.Set("Authorization", authHeader)
	return data, nil
}

func payloadHash(data any) (string, error) {
	switch v := data.(type) {
	case nil:
		return sha256Hash(""), nil
	case string:
		return sha256Hash(v), nil
	case []byte:
		return sha256Hash(string(v)), nil
	case interface{ Bytes() []byte }:
		return sha256Hash(string(v.Bytes())), nil
	}
	return unsignedPayload, nil
}

// sign returns the Authorization header value and the X-Amz-Date used.
func (s *Signer) sign(method string, parsedURL *url.URL, payloadHash string, t time.Time) (string, string) {
	amzDate := t.Format("20060102T150405Z")
	dateStamp := t.Format("20060102")

	signedHeaders := "host;x-amz-date"
	canonicalHeaders := fmt.Sprintf("host:%s\nx-amz-date:%s\n", parsedURL.Host, amzDate)

	canonicalURI := parsedURL.EscapedPath()
	if canonicalURI == "" {
		canonicalURI = "/"
	}

	canonicalRequest := strings.Join([]string{
		method,
		canonicalURI,
		createCanonicalQueryString(parsedURL.Query()),
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")

	credentialScope := fmt.Sprintf("%s/%s/%s/aws4_request", dateStamp, s.Region, s.Service)

	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		credentialScope,
		sha256Hash(canonicalRequest),
	}, "\n")

	signingKey := getSignatureKey(s.SecretKey, dateStamp, s.Region, s.Service)
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	return fmt.Sprintf("AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		s.AccessKey, credentialScope, signedHeaders, signature), amzDate
}

// Verify recomputes the signature of a received request. It is meant for
// test servers standing in for an AWS endpoint.
func (s *Signer) Verify(r *http.Request, body []byte) bool {
	t, err := time.Parse("20060102T150405Z", r.Header.Get("X-Amz-Date"))
	if err != nil {
		return false
	}
	hash := r.Header.Get("X-Amz-Content-Sha256")
	if hash != unsignedPayload && hash != sha256Hash(string(body)) {
		return false
	}
	u := *r.URL
	u.Host = r.Host
	want, _ := s.sign(r.Method, &u, hash, t)
	return hmac.Equal([]byte(want), []byte(r.Header.Get("Authorization")))
}

func createCanonicalQueryString(values url.Values) string {
	if len(values) == 0 {
		return ""
	}

	var keys []string
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pairs []string
	for _, k := range keys {
		vals := values[k]
		sort.Strings(vals)
		for _, v := range vals {
			pairs = append(pairs, fmt.Sprintf("%s=%s",
				url.QueryEscape(k),
				url.QueryEscape(v)))
		}
	}

	return strings.Join(pairs, "&")
}

func sha256Hash(s string) string {
	h := sha256.New()
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

func getSignatureKey(secretKey, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), dateStamp)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)
	kSigning := hmacSHA256(kService, "aws4_request")
	return kSigning
}
