// internal/common/auth/client.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"loan-origination/internal/common/config"
	"loan-origination/internal/common/errors"
	commonhttp "loan-origination/internal/common/http"
	"loan-origination/internal/common/logger"
	"loan-origination/internal/models"
)

// expirySkew renews tokens slightly before the server would reject them.
const expirySkew = 30 * time.Second

// TokenResponse holds the response from the token endpoint.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
	TokenType        string `json:"token_type"`
	RefreshToken     string `json:"refresh_token"`
	Scope            string `json:"scope"`
}

// tokenErrorResponse is the RFC 6749 error body.
type tokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Client performs the OAuth2 resource-owner password grant for an officer and
// hands out bearer tokens, renewing them when they expire.
type Client struct {
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	logger       logger.Logger
	now          func() time.Time

	mu       sync.Mutex
	username string
	password string
	token    *models.OAuthToken
}

// NewClient creates a new instance of Client.
func NewClient(cfg config.AuthConfig, log logger.Logger) *Client {
	return &Client{
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   &http.Client{Timeout: config.GetDuration(cfg.Timeout)},
		logger:       log,
		now:          time.Now,
	}
}

// Login authenticates the officer and caches the issued token.
func (c *Client) Login(ctx context.Context, username, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", username)
	form.Set("password", password)

	token, err := c.requestToken(ctx, form)
	if err != nil {
		c.logger.Warn("Login failed", map[string]interface{}{
			"username": username,
			"error":    err,
		})
		return err
	}

	c.username = username
	c.password = password
	c.token = token

	c.logger.Info("Officer authenticated", map[string]interface{}{
		"username":  username,
		"expiresAt": token.ExpiresAt,
	})
	return nil
}

// Token returns a valid access token. An expired token is refreshed with the
// refresh token, falling back to the stored credentials.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.Valid(c.now()) {
		return c.token.AccessToken, nil
	}
	if c.username == "" {
		return "", errors.NewAuthenticationError(0, "Not logged in")
	}

	if c.token != nil && c.token.RefreshToken != "" {
		form := url.Values{}
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", c.token.RefreshToken)

		token, err := c.requestToken(ctx, form)
		if err == nil {
			c.token = token
			return token.AccessToken, nil
		}
		c.logger.Debug("Token refresh failed, logging in again", map[string]interface{}{
			"error": err,
		})
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", c.username)
	form.Set("password", c.password)

	token, err := c.requestToken(ctx, form)
	if err != nil {
		return "", err
	}
	c.token = token
	return token.AccessToken, nil
}

// Logout forgets the cached token and credentials.
func (c *Client) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = nil
	c.username = ""
	c.password = ""
}

func (c *Client) requestToken(ctx context.Context, form url.Values) (*models.OAuthToken, error) {
	form.Set("client_id", c.clientID)
	if c.clientSecret != "" {
		form.Set("client_secret", c.clientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransportError(fmt.Errorf("failed to read token response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewAuthenticationError(resp.StatusCode, tokenErrorMessage(resp.StatusCode, body))
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, errors.NewMalformedResponseError(resp.StatusCode, fmt.Sprintf("failed to decode token response: %v", err))
	}
	if tokenResp.AccessToken == "" {
		return nil, errors.NewMalformedResponseError(resp.StatusCode, "token response has no access_token")
	}

	token := &models.OAuthToken{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		TokenType:    tokenResp.TokenType,
		Scope:        tokenResp.Scope,
	}
	if tokenResp.ExpiresIn > 0 {
		lifetime := time.Duration(tokenResp.ExpiresIn) * time.Second
		if lifetime > 2*expirySkew {
			lifetime -= expirySkew
		}
		token.ExpiresAt = c.now().Add(lifetime)
	}
	return token, nil
}

func tokenErrorMessage(status int, body []byte) string {
	var e tokenErrorResponse
	if json.Unmarshal(body, &e) == nil {
		if e.ErrorDescription != "" {
			return e.ErrorDescription
		}
	}
	return commonhttp.ExtractErrorMessage(status, body)
}
