package paypal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/harmonia-digital/storefront-backend/pkg/config"
	"github.com/harmonia-digital/storefront-backend/pkg/logger"
)

// Client is a thin PayPal Orders v2 REST client with a cached OAuth token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	webhookID  string
	tokens     *tokenSource
}

var (
	errClientIDRequired = errors.New("paypal client id is required")
	errSecretRequired   = errors.New("paypal client secret is required")
)

func NewClient(ctx context.Context, cfg config.PayPalConfig, logg *logger.Logger) (*Client, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, errClientIDRequired
	}
	secret := strings.TrimSpace(cfg.ClientSecret)
	if secret == "" {
		return nil, errSecretRequired
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}
	baseURL := cfg.BaseURL()

	c := &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		webhookID:  strings.TrimSpace(cfg.WebhookID),
		tokens: &tokenSource{
			fetch: func(ctx context.Context) (string, time.Time, error) {
				return fetchAccessToken(ctx, httpClient, baseURL, clientID, secret)
			},
		},
	}

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("paypal client initialized (%s)", cfg.Env))
	}

	return c, nil
}

// WebhookID returns the configured webhook resource id used for verification.
func (c *Client) WebhookID() string {
	if c == nil {
		return ""
	}
	return c.webhookID
}

type tokenSource struct {
	mu     sync.Mutex
	token  string
	expiry time.Time
	fetch  func(context.Context) (string, time.Time, error)
}

func (t *tokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && time.Until(t.expiry) > time.Minute {
		return t.token, nil
	}

	token, expiry, err := t.fetch(ctx)
	if err != nil {
		return "", err
	}
	t.token = token
	t.expiry = expiry
	return token, nil
}

func fetchAccessToken(ctx context.Context, client *http.Client, baseURL, clientID, secret string) (string, time.Time, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(clientID + ":" + secret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return "", time.Time{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("paypal token endpoint returned %s", resp.Status)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", time.Time{}, err
	}

	return tokenResp.AccessToken, time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second), nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	if c == nil || c.tokens == nil {
		return errors.New("paypal client not initialized")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("paypal %s %s returned %s: %s", method, path, resp.Status, strings.TrimSpace(string(data)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return err
		}
	}
	return nil
}
