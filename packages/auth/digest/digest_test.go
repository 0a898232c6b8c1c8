package digest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

func TestParseWWWAuthenticate(t *testing.T) {
	params := ParseWWWAuthenticate(`Digest realm="testrealm@host.com", qop="auth,auth-int", nonce="dcd98b", opaque="5ccc"`)

	assert.Equal(t, "testrealm@host.com", params["realm"])
	assert.Equal(t, "dcd98b", params["nonce"])
	assert.Equal(t, "5ccc", params["opaque"])
	assert.Contains(t, params["qop"], "auth")
}

func TestComputeDigestResponse(t *testing.T) {
	d := &DigestAuth{
		Username: "Mufasa",
		Password: "Circle Of Life",
		Realm:    "testrealm@host.com",
		Nonce:    "dcd98b7102dd2f0e8b11d0f600bfb0c093",
		URI:      "/dir/index.html",
		Qop:      "auth",
		Nc:       "00000001",
		Cnonce:   "0a4f113b",
		Method:   "GET",
	}

	assert.Equal(t, "6629fae49393a05397450978507c4ef1", d.ComputeDigestResponse())

	header := d.BuildAuthorizationHeader()
	assert.True(t, strings.HasPrefix(header, "Digest "))
	assert.Contains(t, header, `username="Mufasa"`)
	assert.Contains(t, header, "qop=auth")
}

func TestInstall(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		auth := r.Header.Get("Authorization")
		if auth == "" {
			w.Header().Set("WWW-Authenticate", `Digest realm="api", nonce="abc", qop="auth", opaque="xyz"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		p := ParseWWWAuthenticate(auth)
		want := (&DigestAuth{
			Username: "ada", Password: "secret", Realm: p["realm"], Nonce: p["nonce"],
			URI: p["uri"], Qop: p["qop"], Nc: p["nc"], Cnonce: p["cnonce"], Method: r.Method,
		}).ComputeDigestResponse()
		if p["response"] != want || p["uri"] != r.URL.RequestURI() || p["opaque"] != "xyz" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := courier.NewClient(courier.WithBaseURL(srv.URL))
	Install(c, "ada", "secret")

	resp, err := c.Get(context.Background(), "/private?x=1", nil)

	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "ok", resp.String())
	assert.Equal(t, int32(2), hits.Load())
}

func TestInstall_WrongPassword(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("WWW-Authenticate", `Digest realm="api", nonce="abc"`)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := courier.NewClient(courier.WithBaseURL(srv.URL))
	Install(c, "ada", "wrong")

	_, err := c.Get(context.Background(), "/", nil)

	require.Error(t, err)
	e, ok := courier.AsError(err)
	require.True(t, ok)
	assert.Equal(t, 401, e.Response.Status)
	assert.Equal(t, int32(2), hits.Load())
}

func TestInstall_IgnoresOtherSchemes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("WWW-Authenticate", `Basic realm="api"`)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := courier.NewClient(courier.WithBaseURL(srv.URL), courier.WithConfig(&courier.Config{ValidateStatus: courier.Validate(nil)}))
	Install(c, "ada", "secret")

	resp, err := c.Get(context.Background(), "/", nil)

	require.NoError(t, err)
	assert.Equal(t, 401, resp.Status)
}
