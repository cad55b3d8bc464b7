package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bonebunny/lootledger/internal/domain/item"
)

const (
	userAgent          = "lootledger/0.1"
	defaultHTTPTimeout = 15 * time.Second
	tokenExpirySlack   = 60 * time.Second
)

// TokenSource supplies a bearer token for the inventory API.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client is the HTTP inventory provider.
type Client struct {
	baseURL string
	tokens  TokenSource
	httpc   *http.Client
}

// ClientOption applies a configuration option to the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(httpc *http.Client) ClientOption {
	return func(c *Client) {
		if httpc != nil {
			c.httpc = httpc
		}
	}
}

// NewClient creates an inventory API client.
func NewClient(baseURL string, tokens TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpc:   &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// characterResponse mirrors the upstream character detail payload.
type characterResponse struct {
	Character struct {
		Inventory []wireItem `json:"inventory"`
	} `json:"character"`
}

type wireItem struct {
	ID        string `json:"id"`
	TypeLine  string `json:"typeLine"`
	BaseType  string `json:"baseType"`
	StackSize int    `json:"stackSize"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Rarity    string `json:"rarity"`
}

// Inventory fetches the character's current inventory.
func (c *Client) Inventory(ctx context.Context, character string) ([]item.Record, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuth, err)
	}

	endpoint := c.baseURL + "/character/poe2/" + url.PathEscape(character)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("character endpoint returned %s", resp.Status)
	}

	var payload characterResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding character payload: %w", err)
	}

	records := make([]item.Record, len(payload.Character.Inventory))
	for i, w := range payload.Character.Inventory {
		records[i] = item.Record{
			ID:        w.ID,
			TypeName:  w.TypeLine,
			BaseType:  w.BaseType,
			StackSize: w.StackSize,
			X:         w.X,
			Y:         w.Y,
			Rarity:    w.Rarity,
		}
	}
	return records, nil
}

// OAuthTokenSource fetches client-credentials tokens and caches them until
// shortly before expiry.
type OAuthTokenSource struct {
	authURL      string
	clientID     string
	clientSecret string
	scope        string
	httpc        *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewOAuthTokenSource creates a token source against the given auth endpoint.
func NewOAuthTokenSource(authURL, clientID, clientSecret string) *OAuthTokenSource {
	return &OAuthTokenSource{
		authURL:      authURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		scope:        "account:characters account:profile",
		httpc:        &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// Token returns a cached token or fetches a fresh one.
func (o *OAuthTokenSource) Token(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.token != "" && time.Until(o.expires) > tokenExpirySlack {
		return o.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {o.clientID},
		"client_secret": {o.clientSecret},
		"scope":         {o.scope},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := o.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %s", resp.Status)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding token payload: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty access_token")
	}

	o.token = payload.AccessToken
	o.expires = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	return o.token, nil
}
