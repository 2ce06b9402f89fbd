package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the auth service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new auth service client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Login exchanges an email and password for a new token family.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	var out TokenResponse
	err := c.do(ctx, http.MethodPost, "/v1/auth/token", "", TokenRequest{Email: email, Password: password}, &out, http.StatusOK)
	return &out, err
}

// Refresh rotates refreshToken. The presented token is spent either way.
func (c *Client) Refresh(ctx context.Context, email, refreshToken string) (*TokenResponse, error) {
	var out TokenResponse
	err := c.do(ctx, http.MethodPost, "/v1/auth/token", "", TokenRequest{Email: email, RefreshToken: refreshToken}, &out, http.StatusOK)
	return &out, err
}

// Register creates a user and returns it.
func (c *Client) Register(ctx context.Context, email, password string) (*UserResponse, error) {
	var out UserResponse
	err := c.do(ctx, http.MethodPost, "/v1/users", "", RegisterRequest{Email: email, Password: password}, &out, http.StatusCreated)
	return &out, err
}

// RequestPasswordReset always succeeds for well-formed input.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/v1/auth/password-reset", "", PasswordResetRequest{Email: email}, nil, http.StatusAccepted)
}

// RedeemAction submits a signed action token.
func (c *Client) RedeemAction(ctx context.Context, req ActionRedeemRequest) (*ActionResponse, error) {
	var out ActionResponse
	err := c.do(ctx, http.MethodPost, "/v1/actions", "", req, &out, http.StatusAccepted)
	return &out, err
}

// GetAction polls an action request.
func (c *Client) GetAction(ctx context.Context, id string) (*ActionResponse, error) {
	var out ActionResponse
	err := c.do(ctx, http.MethodGet, "/v1/actions/"+url.PathEscape(id), "", nil, &out, http.StatusOK)
	return &out, err
}

// GetUser reads a user with the given access token.
func (c *Client) GetUser(ctx context.Context, accessToken, id string) (*UserResponse, error) {
	var out UserResponse
	err := c.do(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(id), accessToken, nil, &out, http.StatusOK)
	return &out, err
}

// RequestEmailChange starts an email change for user id.
func (c *Client) RequestEmailChange(ctx context.Context, accessToken, id, email string) error {
	return c.do(ctx, http.MethodPost, "/v1/users/"+url.PathEscape(id)+"/email", accessToken,
		EmailChangeRequest{Email: email}, nil, http.StatusAccepted)
}

// GetUsers reads several users at once. It needs an admin access token.
func (c *Client) GetUsers(ctx context.Context, accessToken string, ids ...string) ([]UserResponse, error) {
	q := url.Values{"ids": {strings.Join(ids, ",")}}
	var out []UserResponse
	err := c.do(ctx, http.MethodGet, "/v1/users?"+q.Encode(), accessToken, nil, &out, http.StatusOK)
	return out, err
}

// ResendActionToken re-announces an unused action token. Admin only.
func (c *Client) ResendActionToken(ctx context.Context, accessToken, tokenID string) error {
	return c.do(ctx, http.MethodPost, "/v1/tokens/"+url.PathEscape(tokenID)+"/resend", accessToken,
		nil, nil, http.StatusAccepted)
}

// GetLiveness calls /livez.
func (c *Client) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	err := c.do(ctx, http.MethodGet, "/livez", "", nil, &out, http.StatusOK)
	return &out, err
}

// GetReadiness calls /readyz. A degraded service yields an APIError.
func (c *Client) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	err := c.do(ctx, http.MethodGet, "/readyz", "", nil, &out, http.StatusOK)
	return &out, err
}

// GetJWKS fetches the public key set.
func (c *Client) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	var out JWKSResponse
	err := c.do(ctx, http.MethodGet, "/.well-known/jwks.json", "", nil, &out, http.StatusOK)
	return &out, err
}

func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any, expected int) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != expected {
		return parseErrorResponse(resp, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
