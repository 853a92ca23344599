// Package twitchid talks to the Twitch identity service: the token endpoint
// for refresh-token exchanges and the validate endpoint for token
// introspection. It implements core.IdentityClient.
package twitchid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-twitch-auth/core"
)

const (
	defaultTokenURL    = "https://id.twitch.tv/oauth2/token"
	defaultValidateURL = "https://id.twitch.tv/oauth2/validate"
	defaultUserAgent   = "go-twitch-auth/1.0"

	defaultRequestTimeout = 30 * time.Second
	maxResponseBodyBytes  = 1 << 20 // 1 MiB
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	TokenURL       string
	ValidateURL    string
	UserAgent      string
	RequestTimeout time.Duration
	HTTPClient     HTTPDoer
	Now            func() time.Time
}

type Client struct {
	cfg        Config
	httpClient HTTPDoer
}

func New(cfg Config) (*Client, error) {
	cfg.TokenURL = strings.TrimSpace(cfg.TokenURL)
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	cfg.ValidateURL = strings.TrimSpace(cfg.ValidateURL)
	if cfg.ValidateURL == "" {
		cfg.ValidateURL = defaultValidateURL
	}
	cfg.UserAgent = strings.TrimSpace(cfg.UserAgent)
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time {
			return time.Now().UTC()
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
	}, nil
}

type tokenEndpointPayload struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	Scope        []string `json:"scope"`
	ExpiresIn    int64    `json:"expires_in"`
}

type validatePayload struct {
	ClientID  string   `json:"client_id"`
	Login     string   `json:"login"`
	Scopes    []string `json:"scopes"`
	UserID    string   `json:"user_id"`
	ExpiresIn int64    `json:"expires_in"`
}

type errorPayload struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// RefreshToken exchanges a refresh token for a new access token. Twitch
// expects the client credentials in the form body, not basic auth.
func (c *Client) RefreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) (core.TokenGrant, error) {
	if c == nil {
		return core.TokenGrant{}, fmt.Errorf("twitchid: client is nil")
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return core.TokenGrant{}, fmt.Errorf("twitchid: client id is required")
	}
	clientSecret = strings.TrimSpace(clientSecret)
	if clientSecret == "" {
		return core.TokenGrant{}, fmt.Errorf("twitchid: client secret is required")
	}
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return core.TokenGrant{}, fmt.Errorf("twitchid: refresh token is required")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)

	body, err := c.post(ctx, c.cfg.TokenURL, form)
	if err != nil {
		return core.TokenGrant{}, err
	}

	payload := tokenEndpointPayload{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return core.TokenGrant{}, fmt.Errorf("twitchid: decode token response: %w", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return core.TokenGrant{}, fmt.Errorf("twitchid: token endpoint response missing access token")
	}

	return core.TokenGrant{
		AccessToken:  strings.TrimSpace(payload.AccessToken),
		RefreshToken: strings.TrimSpace(payload.RefreshToken),
		Scopes:       payload.Scope,
		ExpiresIn:    payload.ExpiresIn,
		ObtainedAt:   c.cfg.Now().UTC(),
	}, nil
}

// TokenInfo introspects an access token via the validate endpoint. A zero
// expires_in from Twitch means the token has no expiry; ExpiresAt stays nil.
func (c *Client) TokenInfo(ctx context.Context, accessToken, clientID string) (core.TokenInfo, error) {
	if c == nil {
		return core.TokenInfo{}, fmt.Errorf("twitchid: client is nil")
	}
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return core.TokenInfo{}, fmt.Errorf("twitchid: access token is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodGet, c.cfg.ValidateURL, nil)
	if err != nil {
		return core.TokenInfo{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.cfg.UserAgent)

	body, err := c.do(httpReq)
	if err != nil {
		return core.TokenInfo{}, err
	}

	payload := validatePayload{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return core.TokenInfo{}, fmt.Errorf("twitchid: decode validate response: %w", err)
	}
	clientID = strings.TrimSpace(clientID)
	if clientID != "" && payload.ClientID != "" && payload.ClientID != clientID {
		return core.TokenInfo{}, fmt.Errorf(
			"twitchid: token client id mismatch: token belongs to %q",
			payload.ClientID,
		)
	}

	info := core.TokenInfo{
		ClientID:  payload.ClientID,
		Login:     payload.Login,
		UserID:    payload.UserID,
		Scopes:    payload.Scopes,
		ExpiresIn: payload.ExpiresIn,
	}
	if payload.ExpiresIn > 0 {
		expiresAt := c.cfg.Now().UTC().Add(time.Duration(payload.ExpiresIn) * time.Second)
		info.ExpiresAt = &expiresAt
	}
	return info, nil
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	requestCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(
		requestCtx,
		http.MethodPost,
		endpoint,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.cfg.UserAgent)

	return c.do(httpReq)
}

func (c *Client) do(httpReq *http.Request) ([]byte, error) {
	if c.httpClient == nil {
		return nil, fmt.Errorf("twitchid: http client is not configured")
	}

	response, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("twitchid: request failed: %w", err)
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxResponseBodyBytes+1))
	if readErr != nil {
		return nil, fmt.Errorf("twitchid: read response: %w", readErr)
	}
	if int64(len(body)) > maxResponseBodyBytes {
		return nil, fmt.Errorf("twitchid: response exceeds %d bytes", maxResponseBodyBytes)
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf(
			"twitchid: endpoint error (%d): %s",
			response.StatusCode,
			describeError(body),
		)
	}
	return body, nil
}

func describeError(body []byte) string {
	payload := errorPayload{}
	if err := json.Unmarshal(body, &payload); err == nil && strings.TrimSpace(payload.Message) != "" {
		return strings.TrimSpace(payload.Message)
	}
	return "unknown error"
}

var _ core.IdentityClient = (*Client)(nil)
