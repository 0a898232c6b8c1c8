// Package digest answers HTTP digest challenges for a courier client.
package digest

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"strings"

	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

// retriedKey marks a config that already carries a digest answer.
const retriedKey = "digest.retried"

// DigestAuth contains the parameters needed for digest authentication
type DigestAuth struct {
	Username string
	Password string
	Realm    string
	Nonce    string
	URI      string
	Qop      string
	Nc       string
	Cnonce   string
	Opaque   string
	Method   string
}

// ParseWWWAuthenticate parses the WWW-Authenticate header from a 401 response
func ParseWWWAuthenticate(header string) map[string]string {
	result := make(map[string]string)

	header = strings.TrimSpace(header)
	if len(header) >= 7 && strings.EqualFold(header[:7], "Digest ") {
		header = header[7:]
	}

	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if idx := strings.Index(part, "="); idx != -1 {
			key := strings.TrimSpace(part[:idx])
			value := strings.Trim(strings.TrimSpace(part[idx+1:]), `"`)
			result[key] = value
		}
	}

	return result
}

// ComputeDigestResponse calculates the digest response hash
func (d *DigestAuth) ComputeDigestResponse() string {
	ha1 := md5Hash(fmt.Sprintf("%s:%s:%s", d.Username, d.Realm, d.Password))
	ha2 := md5Hash(fmt.Sprintf("%s:%s", d.Method, d.URI))

	if d.Qop == "auth" || d.Qop == "auth-int" {
		return md5Hash(fmt.Sprintf("%s:%s:%s:%s:%s:%s", ha1, d.Nonce, d.Nc, d.Cnonce, d.Qop, ha2))
	}
	return md5Hash(fmt.Sprintf("%s:%s:%s", ha1, d.Nonce, ha2))
}

// BuildAuthorizationHeader creates the Authorization header value
func (d *DigestAuth) BuildAuthorizationHeader() string {
	parts := []string{
		fmt.Sprintf(`username="%s"`, d.Username),
		fmt.Sprintf(`realm="%s"`, d.Realm),
		fmt.Sprintf(`nonce="%s"`, d.Nonce),
		fmt.Sprintf(`uri="%s"`, d.URI),
		fmt.Sprintf(`response="%s"`, d.ComputeDigestResponse()),
	}

	if d.Qop != "" {
		parts = append(parts,
			fmt.Sprintf(`qop=%s`, d.Qop),
			fmt.Sprintf(`nc=%s`, d.Nc),
			fmt.Sprintf(`cnonce="%s"`, d.Cnonce),
		)
	}

	if d.Opaque != "" {
		parts = append(parts, fmt.Sprintf(`opaque="%s"`, d.Opaque))
	}

	return "Digest " + strings.Join(parts, ", ")
}

// GenerateCnonce generates a random client nonce
func GenerateCnonce() (string, error) {
	b := make([]byte, 8)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func md5Hash(s string) string {
	h := md5.New()
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}

// Install registers a response handler on c that answers the first digest
// challenge of each request with the given credentials and re-issues it.
// It handles both a rejected 401 and a 401 accepted by ValidateStatus.
func Install(c *courier.Client, username, password string) int {
	retry := func(resp *courier.Response) (*courier.Response, bool, error) {
		if resp == nil || resp.Status != 401 || resp.Config == nil {
			return nil, false, nil
		}
		if retried, _ := resp.Config.Extra[retriedKey].(bool); retried {
			return nil, false, nil
		}
		challenge := resp.Header("WWW-Authenticate")
		if !strings.HasPrefix(strings.ToLower(challenge), "digest ") {
			return nil, false, nil
		}

		header, err := Authorization(resp.Config, challenge, username, password)
		if err != nil {
			return nil, true, err
		}

		next := resp.Config.Clone()
		if next.Headers == nil {
			next.Headers = courier.Header{}
		}
		next.Headers.Set("Authorization", header)
		if next.Extra == nil {
			next.Extra = map[string]any{}
		}
		next.Extra[retriedKey] = true
		out, err := c.Do(next.Context(), next)
		return out, true, err
	}

	return c.Interceptors.Response.Use(
		func(resp *courier.Response) (*courier.Response, error) {
			if out, handled, err := retry(resp); handled {
				return out, err
			}
			return resp, nil
		},
		func(err error) (*courier.Response, error) {
			if e, ok := courier.AsError(err); ok && e.Kind == courier.KindStatus {
				if out, handled, rerr := retry(e.Response); handled {
					return out, rerr
				}
			}
			return nil, err
		},
	)
}

// Authorization answers challenge for the request described by cfg.
func Authorization(cfg *courier.Config, challenge, username, password string) (string, error) {
	params := ParseWWWAuthenticate(challenge)

	auth := &DigestAuth{
		Username: username,
		Password: password,
		Realm:    params["realm"],
		Nonce:    params["nonce"],
		Qop:      params["qop"],
		Opaque:   params["opaque"],
		Method:   strings.ToUpper(cfg.Method),
		URI:      requestURI(cfg),
	}

	if auth.Qop != "" {
		auth.Nc = "00000001"
		cnonce, err := GenerateCnonce()
		if err != nil {
			return "", err
		}
		auth.Cnonce = cnonce
		// Prefer "auth" qop
		if strings.Contains(auth.Qop, "auth") {
			auth.Qop = "auth"
		}
	}

	return auth.BuildAuthorizationHeader(), nil
}

func requestURI(cfg *courier.Config) string {
	full := courier.BuildURL(courier.BuildFullPath(cfg.BaseURL, cfg.URL), cfg.Params, cfg.ParamsSerializer)
	u, err := url.Parse(full)
	if err != nil {
		return full
	}
	return u.RequestURI()
}
