// Package oauth2 fetches OAuth2 access tokens and attaches them to courier
// requests.
package oauth2

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	courier "github.com/abdul-hamid-achik/courier/packages/http"
	"github.com/abdul-hamid-achik/courier/packages/interceptor"
)

// GrantType represents the OAuth2 grant type
type GrantType string

const (
	// ClientCredentials is the client_credentials grant type
	ClientCredentials GrantType = "client_credentials"
	// Password is the password (resource owner) grant type
	Password GrantType = "password"
	// RefreshToken is the refresh_token grant type
	RefreshToken GrantType = "refresh_token"
)

// Config holds OAuth2 configuration
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Username     string // For password grant
	Password     string // For password grant
	GrantType    GrantType
}

// Token represents an OAuth2 access token
type Token struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"-"`
}

// IsExpired checks if the token is expired
func (t *Token) IsExpired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	// Add a small buffer (30 seconds) to account for clock skew
	return time.Now().Add(30 * time.Second).After(t.ExpiresAt)
}

// Provider handles OAuth2 token acquisition. Token requests go through a
// courier client, so they honor its defaults and interceptors.
type Provider struct {
	config *Config
	client *courier.Client
	cache  *TokenCache
	group  singleflight.Group
}

// NewProvider creates a new OAuth2 provider. A nil client gets one with a
// 30 second timeout.
func NewProvider(config *Config, client *courier.Client) *Provider {
	if client == nil {
		client = courier.NewClient(courier.WithTimeout(courier.DefaultTimeout))
	}
	return &Provider{
		config: config,
		client: client,
		cache:  NewTokenCache(),
	}
}

// GetToken retrieves a valid access token, fetching a new one if necessary.
// Concurrent callers share one fetch.
func (p *Provider) GetToken(ctx context.Context) (*Token, error) {
	cacheKey := p.getCacheKey()
	if token := p.cache.Valid(cacheKey); token != nil {
		return token, nil
	}

	v, err, _ := p.group.Do(cacheKey, func() (any, error) {
		if token := p.cache.Valid(cacheKey); token != nil {
			return token, nil
		}
		token, err := p.fetchToken(ctx)
		if err != nil {
			return nil, err
		}
		p.cache.Set(cacheKey, token)
		return token, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Token), nil
}

// Install registers an asynchronous request interceptor on c that sets a
// bearer token on every request.
func (p *Provider) Install(c *courier.Client) int {
	return c.Interceptors.Request.Use(func(cfg *courier.Config) (*courier.Config, error) {
		token, err := p.GetToken(cfg.Context())
		if err != nil {
			return nil, fmt.Errorf("failed to get OAuth2 token: %w", err)
		}
		if cfg.Headers == nil {
			cfg.Headers = courier.Header{}
		}
		tokenType := token.TokenType
		if tokenType == "" || strings.EqualFold(tokenType, "bearer") {
			tokenType = "Bearer"
		}
		cfg.Headers.Set("Authorization", tokenType+" "+token.AccessToken)
		return cfg, nil
	}, nil, interceptor.Options[*courier.Config]{
		RunWhen: func(cfg *courier.Config) bool {
			return cfg.URL != p.config.TokenURL
		},
	})
}

func (p *Provider) getCacheKey() string {
	return fmt.Sprintf("%s:%s:%s", p.config.TokenURL, p.config.ClientID, strings.Join(p.config.Scopes, ","))
}

func (p *Provider) fetchToken(ctx context.Context) (*Token, error) {
	data := url.Values{}
	switch p.config.GrantType {
	case Password:
		data.Set("grant_type", "password")
		data.Set("username", p.config.Username)
		data.Set("password", p.config.Password)
	default:
		data.Set("grant_type", "client_credentials")
	}
	if len(p.config.Scopes) > 0 {
		data.Set("scope", strings.Join(p.config.Scopes, " "))
	}

	return p.doTokenRequest(ctx, data)
}

func (p *Provider) doTokenRequest(ctx context.Context, data url.Values) (*Token, error) {
	cfg := &courier.Config{
		ResponseType: courier.ResponseTypeJSON,
		// accept every status so error bodies can be reported
		ValidateStatus: courier.Validate(nil),
	}
	if p.config.ClientID != "" && p.config.ClientSecret != "" {
		cfg.Auth = &courier.BasicAuth{Username: p.config.ClientID, Password: p.config.ClientSecret}
	}

	resp, err := p.client.Post(ctx, p.config.TokenURL, data, cfg)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}

	if resp.Status != 200 {
		var errResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if resp.Decode(&errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("token request failed: %s - %s", errResp.Error, errResp.ErrorDescription)
		}
		return nil, fmt.Errorf("token request failed with status %d: %s", resp.Status, resp.String())
	}

	var token Token
	if err := resp.Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("no access_token in response: %s", resp.String())
	}

	if token.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}

	return &token, nil
}

// RefreshAccessToken refreshes the access token using a refresh token
func (p *Provider) RefreshAccessToken(ctx context.Context, refreshToken string) (*Token, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	token, err := p.doTokenRequest(ctx, data)
	if err != nil {
		return nil, err
	}
	p.cache.Set(p.getCacheKey(), token)
	return token, nil
}

// ParseSpec parses a compact credential spec as used by the CLI.
// Format: client_credentials tokenUrl clientId clientSecret [scope1,scope2]
// Or: password tokenUrl clientId clientSecret username password [scope1,scope2]
func ParseSpec(params []string) (*Config, error) {
	if len(params) < 4 {
		return nil, fmt.Errorf("oauth2 auth requires at least: grant_type tokenUrl clientId clientSecret")
	}

	config := &Config{
		GrantType:    GrantType(params[0]),
		TokenURL:     params[1],
		ClientID:     params[2],
		ClientSecret: params[3],
	}

	switch config.GrantType {
	case ClientCredentials:
		if len(params) > 4 {
			config.Scopes = strings.Split(params[4], ",")
		}
	case Password:
		if len(params) < 6 {
			return nil, fmt.Errorf("oauth2 password grant requires: tokenUrl clientId clientSecret username password [scopes]")
		}
		config.Username = params[4]
		config.Password = params[5]
		if len(params) > 6 {
			config.Scopes = strings.Split(params[6], ",")
		}
	default:
		return nil, fmt.Errorf("unsupported OAuth2 grant type: %s", config.GrantType)
	}

	return config, nil
}
