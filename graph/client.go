// Package graph is a thin client for the Microsoft Graph endpoints the
// notification pipeline touches: message lookup, subscription renewal and the
// Azure AD client-credentials token exchange.
package graph

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

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/microsoft"

	"graphmail/models"
)

const (
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"
	defaultScope   = "https://graph.microsoft.com/.default"

	// ExpirationLayout is the timestamp format Graph accepts for expirationDateTime.
	ExpirationLayout = "2006-01-02T15:04:05Z"
)

// AppCredentials identify the app registration used for the client-credentials grant.
type AppCredentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// Client talks to Graph with a caller-supplied bearer token. It never retries;
// retry policy belongs to whatever invoked the handler.
type Client struct {
	baseURL    string
	loginURL   string
	httpClient *http.Client
}

// NewClient builds a client. An empty baseURL means the public Graph v1.0 root;
// an empty loginURL means the Azure AD v2 endpoint for the tenant.
func NewClient(baseURL, loginURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		loginURL:   strings.TrimRight(loginURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// IssueToken exchanges app credentials for an access token.
func (c *Client) IssueToken(ctx context.Context, creds AppCredentials) (string, error) {
	tokenURL := microsoft.AzureADEndpoint(creds.TenantID).TokenURL
	if c.loginURL != "" {
		tokenURL = c.loginURL + "/" + url.PathEscape(creds.TenantID) + "/oauth2/v2.0/token"
	}

	cfg := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{defaultScope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	tok, err := cfg.Token(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient))
	if err != nil {
		return "", fmt.Errorf("requesting token for tenant %s: %w", creds.TenantID, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access_token for tenant %s", creds.TenantID)
	}
	return tok.AccessToken, nil
}

// GetMessage retrieves the selected message fields for a mailbox owner.
func (c *Client) GetMessage(ctx context.Context, token, userID, messageID string) (*models.GraphMessage, error) {
	path := fmt.Sprintf("/users/%s/messages/%s?$select=%s",
		url.PathEscape(userID),
		url.PathEscape(messageID),
		strings.Join(models.MessageSelectFields, ","),
	)

	var msg models.GraphMessage
	if err := c.do(ctx, token, http.MethodGet, path, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// UpdateSubscription moves a subscription's expiration to expiresAt.
func (c *Client) UpdateSubscription(ctx context.Context, token, subscriptionID string, expiresAt time.Time) (*Subscription, error) {
	body := map[string]string{
		"expirationDateTime": expiresAt.UTC().Format(ExpirationLayout),
	}

	var sub Subscription
	path := "/subscriptions/" + url.PathEscape(subscriptionID)
	if err := c.do(ctx, token, http.MethodPatch, path, body, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// do builds the request, attaches the bearer token through an oauth2 transport
// and decodes JSON responses.
func (c *Client) do(ctx context.Context, token, method, path string, body, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	authed := &http.Client{
		Timeout: c.httpClient.Timeout,
		Transport: &oauth2.Transport{
			Base:   c.httpClient.Transport,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
		},
	}

	resp, err := authed.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, method, path, respBody)
	}

	if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
	}
	return nil
}
