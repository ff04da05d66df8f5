package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"dealersync/internal/listing"
)

// ErrAuth marks a token-endpoint or credential failure. Callers use
// errors.Is to distinguish auth failures from ordinary page failures.
var ErrAuth = errors.New("remote authentication failed")

// tokenSkew renews tokens slightly before their declared expiry.
const tokenSkew = 30 * time.Second

// Page is one page of raw inventory items. TotalPages and TotalResults
// are zero when the API omits pagination metadata.
type Page struct {
	Items        []listing.Document
	Page         int
	TotalPages   int
	TotalResults int
}

// Client fetches inventory pages from the remote dealer API. It is
// stateless besides a cached bearer token.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time

	now func() time.Time
}

func NewClient(baseURL, clientID, clientSecret string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:      strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
		now:          time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type pageResponse struct {
	Items        *[]json.RawMessage `json:"items"`
	Page         int                `json:"page"`
	TotalPages   int                `json:"totalPages"`
	TotalResults int                `json:"totalResults"`
}

// GetPage fetches one page of inventory for the given advertiser. A 401
// invalidates the cached token and retries once after re-authenticating;
// any other failure is returned as-is.
func (c *Client) GetPage(ctx context.Context, targetID string, page, pageSize int) (Page, error) {
	if pageSize <= 0 {
		pageSize = 100
	}
	if page <= 0 {
		page = 1
	}

	result, retry, err := c.getPageOnce(ctx, targetID, page, pageSize)
	if retry {
		c.invalidateToken()
		result, _, err = c.getPageOnce(ctx, targetID, page, pageSize)
	}
	return result, err
}

func (c *Client) getPageOnce(ctx context.Context, targetID string, page, pageSize int) (Page, bool, error) {
	token, err := c.bearerToken(ctx)
	if err != nil {
		return Page{}, false, err
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("size", strconv.Itoa(pageSize))
	requestURL := fmt.Sprintf("%s/listings/%s?%s", c.baseURL, url.PathEscape(targetID), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return Page{}, false, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Page{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return Page{}, true, fmt.Errorf("%w: page request status 401", ErrAuth)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Page{}, false, fmt.Errorf("remote status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Page{}, false, fmt.Errorf("decode page %d: %w", page, err)
	}
	if decoded.Items == nil {
		return Page{}, false, fmt.Errorf("page %d: missing result set", page)
	}

	items := make([]listing.Document, 0, len(*decoded.Items))
	for _, raw := range *decoded.Items {
		items = append(items, listing.ParseDocument(raw))
	}

	return Page{
		Items:        items,
		Page:         page,
		TotalPages:   decoded.TotalPages,
		TotalResults: decoded.TotalResults,
	}, false, nil
}

func (c *Client) bearerToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	payload, err := json.Marshal(map[string]string{
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/token", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token endpoint status %d", ErrAuth, resp.StatusCode)
	}

	var decoded tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: decode token response: %v", ErrAuth, err)
	}
	if strings.TrimSpace(decoded.AccessToken) == "" {
		return "", fmt.Errorf("%w: empty access token", ErrAuth)
	}

	c.token = decoded.AccessToken
	expiresIn := time.Duration(decoded.ExpiresIn) * time.Second
	if expiresIn <= tokenSkew {
		expiresIn = time.Minute
	}
	c.tokenExpiry = c.now().Add(expiresIn - tokenSkew)

	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.tokenExpiry = time.Time{}
	c.mu.Unlock()
}
