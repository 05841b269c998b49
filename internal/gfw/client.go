// Package gfw is a small client for the Global Fishing Watch v3 API, used to
// enrich stored vessels with identity records and fishing events.
package gfw

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/term"

	"aisdb/internal/logging"
)

const (
	DefaultBaseURL = "https://gateway.api.globalfishingwatch.org/v3"
	TokenEnv       = "GFW_API_TOKEN"

	IdentityDataset      = "public-global-vessel-identity:latest"
	FishingEventsDataset = "public-global-fishing-events:latest"

	DefaultTimeout     = 30 * time.Second
	DefaultEventsLimit = 10
	maxErrorBody       = 4 << 10
)

var (
	// ErrNoToken is returned when no API token could be found.
	ErrNoToken = errors.New("gfw api token is required")

	// ErrAPI wraps non-2xx responses.
	ErrAPI = errors.New("gfw api error")
)

// Entry is one raw result object.
type Entry map[string]any

type entriesResponse struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
}

// Client calls the GFW API with a bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root. An empty u keeps the default.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = logging.OrNop(l) }
}

// New creates a Client. token must not be empty.
func New(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		log:        zap.NewNop(),
		token:      token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Token returns the current token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the token and exports it to the environment.
func (c *Client) SetToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrNoToken
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return os.Setenv(TokenEnv, token)
}

// ResolveToken returns explicit if set, then $GFW_API_TOKEN, and finally asks
// on in. Input from a terminal is read without echo. The resolved token is
// exported to the environment for child processes and later calls.
func ResolveToken(explicit string, in *os.File, out io.Writer) (string, error) {
	token := strings.TrimSpace(explicit)
	if token == "" {
		token = strings.TrimSpace(os.Getenv(TokenEnv))
	}
	if token == "" && in != nil {
		var err error
		if token, err = prompt(in, out); err != nil {
			return "", err
		}
	}
	if token == "" {
		return "", ErrNoToken
	}
	if err := os.Setenv(TokenEnv, token); err != nil {
		return "", fmt.Errorf("export token: %w", err)
	}
	return token, nil
}

func prompt(in *os.File, out io.Writer) (string, error) {
	if out != nil {
		fmt.Fprint(out, "GFW API token: ")
	}
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		if out != nil {
			fmt.Fprintln(out)
		}
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// SearchVessel looks up identity records matching a name, MMSI, IMO or call
// sign.
func (c *Client) SearchVessel(ctx context.Context, identifier string) ([]Entry, error) {
	if strings.TrimSpace(identifier) == "" {
		return nil, errors.New("vessel identifier is required")
	}
	params := url.Values{}
	params.Set("query", identifier)
	params.Set("datasets[0]", IdentityDataset)
	return c.entries(ctx, "vessels/search", params)
}

// EventsQuery selects fishing events of one vessel.
type EventsQuery struct {
	VesselID  string
	StartDate string // YYYY-MM-DD
	EndDate   string // YYYY-MM-DD
	Limit     int
	Offset    int
}

// FishingEvents returns the fishing events of a GFW vessel id.
func (c *Client) FishingEvents(ctx context.Context, q EventsQuery) ([]Entry, error) {
	if q.VesselID == "" {
		return nil, errors.New("vessel id is required")
	}
	if q.Limit <= 0 {
		q.Limit = DefaultEventsLimit
	}
	if q.Offset < 0 {
		return nil, fmt.Errorf("invalid offset %d", q.Offset)
	}
	params := url.Values{}
	params.Set("vessels[0]", q.VesselID)
	params.Set("datasets[0]", FishingEventsDataset)
	if q.StartDate != "" {
		params.Set("start-date", q.StartDate)
	}
	if q.EndDate != "" {
		params.Set("end-date", q.EndDate)
	}
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("offset", strconv.Itoa(q.Offset))
	return c.entries(ctx, "events", params)
}

func (c *Client) entries(ctx context.Context, endpoint string, params url.Values) ([]Entry, error) {
	u := c.baseURL + "/" + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token())
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	c.log.Debug("gfw request",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: %s: HTTP %d: %s", ErrAPI, endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out entriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	if out.Entries == nil {
		out.Entries = []Entry{}
	}
	return out.Entries, nil
}
