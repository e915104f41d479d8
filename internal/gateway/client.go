package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rivetr/rivetr-console/internal/models"
	"github.com/rivetr/rivetr-console/internal/stream"
)

const (
	requestTimeout = 15 * time.Second
	retryCount     = 2
)

// Client talks to one Rivetr server: REST for listings, stream dialers for
// logs, terminals and build logs
type Client struct {
	http      *resty.Client
	baseURL   string
	token     string
	team      string
	transport models.TransportKind

	// Cached listings
	mu          sync.RWMutex
	lastApps    []models.App
	lastFetched time.Time
	lastError   error
}

// Options configures a Client
type Options struct {
	Server    models.ServerProfile
	Team      string // Overrides Server.Team when set
	Transport models.TransportKind
	Timeout   time.Duration
}

// NewClient creates a client for the given server
func NewClient(opts Options) (*Client, error) {
	base, err := normalizeBaseURL(opts.Server.URL)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = requestTimeout
	}
	team := opts.Team
	if team == "" {
		team = opts.Server.Team
	}
	transport := opts.Transport
	if transport == "" {
		transport = models.TransportSSE
	}

	token := opts.Server.ResolvedToken()
	rc := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(retryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	if token != "" {
		rc.SetAuthToken(token)
	}
	rc.AddRetryCondition(retryCondition)

	return &Client{
		http:      rc,
		baseURL:   base,
		token:     token,
		team:      team,
		transport: transport,
	}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("server url must be http or https, got %q", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server url has no host: %q", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// retryCondition retries network errors and transient server errors
func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code == 429 || code == 502 || code == 503 || code == 504
}

// APIError is the error body returned by the backend
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: %s (status %d)", e.Message, e.Status)
}

func handleResponse(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	if apiErr, ok := resp.Error().(*APIError); ok && apiErr != nil && apiErr.Message != "" {
		apiErr.Status = resp.StatusCode()
		return apiErr
	}
	return &APIError{Status: resp.StatusCode(), Message: strings.TrimSpace(resp.String())}
}

// BaseURL returns the server base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Team returns the team whose apps are listed
func (c *Client) Team() string {
	return c.team
}

// ListApps fetches the apps of the current team
func (c *Client) ListApps(ctx context.Context) ([]models.App, error) {
	var apps []models.App
	req := c.http.R().SetContext(ctx).SetResult(&apps).SetError(&APIError{})
	if c.team != "" {
		req.SetQueryParam("team_id", c.team)
	}

	resp, err := req.Get("/api/apps")
	if err == nil {
		err = handleResponse(resp)
	}
	if err != nil {
		err = fmt.Errorf("list apps: %w", err)
		c.mu.Lock()
		c.lastError = err
		c.mu.Unlock()
		return nil, err
	}

	// Cache the result
	c.mu.Lock()
	c.lastApps = apps
	c.lastFetched = time.Now()
	c.lastError = nil
	c.mu.Unlock()

	return apps, nil
}

// ListDeployments fetches the deployments of an app, newest first
func (c *Client) ListDeployments(ctx context.Context, appID string) ([]models.Deployment, error) {
	var deployments []models.Deployment
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", appID).
		SetResult(&deployments).
		SetError(&APIError{}).
		Get("/api/apps/{id}/deployments")
	if err == nil {
		err = handleResponse(resp)
	}
	if err != nil {
		return nil, fmt.Errorf("list deployments for %s: %w", appID, err)
	}
	return deployments, nil
}

// CachedApps returns the last fetched apps without making a new request
func (c *Client) CachedApps() []models.App {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastApps
}

// LastError returns the last listing error
func (c *Client) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

// CacheAge returns how old the cached app list is
func (c *Client) CacheAge() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastFetched.IsZero() {
		return 0
	}
	return time.Since(c.lastFetched)
}

// LogStream returns a dialer for the runtime logs of an app
func (c *Client) LogStream(appID string) stream.Dialer {
	path := "/api/apps/" + url.PathEscape(appID) + "/logs/stream"
	if c.transport == models.TransportWebSocket {
		return stream.NewWebSocketDialer(c.wsURL(path), c.token)
	}
	return stream.NewSSEDialer(c.baseURL+path, c.token)
}

// Terminal returns a duplex dialer for an interactive shell in the app container
func (c *Client) Terminal(appID string) stream.Dialer {
	return stream.NewWebSocketDialer(c.wsURL("/api/apps/"+url.PathEscape(appID)+"/terminal"), c.token)
}

// BuildLogs returns a dialer for the build output of a deployment
func (c *Client) BuildLogs(deploymentID string) stream.Dialer {
	return stream.NewWebSocketDialer(c.wsURL("/api/deployments/"+url.PathEscape(deploymentID)+"/logs/stream"), c.token)
}

// wsURL maps the base URL to ws or wss and appends path
func (c *Client) wsURL(path string) string {
	return WebSocketURL(c.baseURL) + path
}

// WebSocketURL swaps an http(s) scheme for ws(s)
func WebSocketURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}
