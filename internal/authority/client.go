package authority

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
	"time"

	"github.com/jfloresavalos/InvBF/internal/inventory"
)

// API defines the calls the sync core makes against the authority.
// It is implemented by *Client and can be faked in tests.
type API interface {
	ActiveSession(ctx context.Context) (*inventory.Session, error)
	CatalogVersion(ctx context.Context) (inventory.CatalogVersion, error)
	Catalog(ctx context.Context) ([]inventory.CatalogEntry, error)
	Stock(ctx context.Context, sessionID int64) ([]inventory.StockItem, error)
	Readings(ctx context.Context, sessionID int64, device string) ([]inventory.ReadingRecord, error)
	Push(ctx context.Context, sessionID int64, req PushRequest) (PushResponse, error)
	Progress(ctx context.Context, sessionID int64) (inventory.Progress, error)
}

// Ensure Client implements API at compile time.
var _ API = (*Client)(nil)

const (
	defaultAddress   = "127.0.0.1:8080"
	defaultUserAgent = "invbf/0.1"
)

// Timeouts bounds each class of request.
type Timeouts struct {
	Probe   time.Duration
	Version time.Duration
	Catalog time.Duration
	Request time.Duration
}

// DefaultTimeouts fails fast on the probe and allows the catalog transfer a
// couple of minutes.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Probe:   8 * time.Second,
		Version: 10 * time.Second,
		Catalog: 2 * time.Minute,
		Request: 15 * time.Second,
	}
}

// ProgressFunc returns a writer that receives a copy of the catalog body as it
// is read. size is -1 when the server did not announce a length.
type ProgressFunc func(size int64) io.Writer

// Client talks to the authority's JSON API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	timeouts  Timeouts
	progress  ProgressFunc
}

// NewClient builds a Client for the given authority address. Zero timeouts
// fall back to DefaultTimeouts.
func NewClient(address string, timeouts Timeouts) (*Client, error) {
	base, err := parseBaseURL(address)
	if err != nil {
		return nil, err
	}
	def := DefaultTimeouts()
	if timeouts.Probe <= 0 {
		timeouts.Probe = def.Probe
	}
	if timeouts.Version <= 0 {
		timeouts.Version = def.Version
	}
	if timeouts.Catalog <= 0 {
		timeouts.Catalog = def.Catalog
	}
	if timeouts.Request <= 0 {
		timeouts.Request = def.Request
	}
	return &Client{
		baseURL:   base,
		http:      &http.Client{},
		userAgent: defaultUserAgent,
		timeouts:  timeouts,
	}, nil
}

// BaseURL returns the normalized authority address.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// WithProgress installs fn to observe catalog downloads.
func (c *Client) WithProgress(fn ProgressFunc) *Client {
	c.progress = fn
	return c
}

// ActiveSession returns the inventory open on the authority, or nil when none is.
func (c *Client) ActiveSession(ctx context.Context) (*inventory.Session, error) {
	var payload activeResponse
	if err := c.do(ctx, c.timeouts.Probe, http.MethodGet, "/api/inventory/active", nil, &payload); err != nil {
		return nil, err
	}
	if !payload.Active || payload.Inventory == nil {
		return nil, nil
	}
	return payload.Inventory, nil
}

// CatalogVersion fetches the catalog fingerprint.
func (c *Client) CatalogVersion(ctx context.Context) (inventory.CatalogVersion, error) {
	var payload versionResponse
	if err := c.do(ctx, c.timeouts.Version, http.MethodGet, "/api/catalog/version", nil, &payload); err != nil {
		return inventory.CatalogVersion{}, err
	}
	v := inventory.CatalogVersion{Hash: payload.Hash, Count: payload.Count}
	if payload.Timestamp != nil {
		v.Timestamp = *payload.Timestamp
	}
	return v, nil
}

// Catalog downloads the full reference dataset.
func (c *Client) Catalog(ctx context.Context) ([]inventory.CatalogEntry, error) {
	var payload []inventory.CatalogEntry
	if err := c.do(ctx, c.timeouts.Catalog, http.MethodGet, "/api/catalog", nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Stock fetches the theoretical-stock extract for a session.
func (c *Client) Stock(ctx context.Context, sessionID int64) ([]inventory.StockItem, error) {
	var payload []inventory.StockItem
	if err := c.do(ctx, c.timeouts.Request, http.MethodGet, sessionPath(sessionID, "stock"), nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Readings fetches the readings the authority already holds for device.
func (c *Client) Readings(ctx context.Context, sessionID int64, device string) ([]inventory.ReadingRecord, error) {
	values := url.Values{}
	values.Set("device", device)
	rel := &url.URL{Path: sessionPath(sessionID, "readings"), RawQuery: values.Encode()}
	var payload []inventory.ReadingRecord
	if err := c.doURL(ctx, c.timeouts.Request, http.MethodGet, rel, nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Push sends the device's complete journal.
func (c *Client) Push(ctx context.Context, sessionID int64, req PushRequest) (PushResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return PushResponse{}, fmt.Errorf("encode push: %w", err)
	}
	var payload PushResponse
	if err := c.do(ctx, c.timeouts.Request, http.MethodPost, sessionPath(sessionID, "sync"), body, &payload); err != nil {
		return PushResponse{}, err
	}
	return payload, nil
}

// Progress fetches the live count summary.
func (c *Client) Progress(ctx context.Context, sessionID int64) (inventory.Progress, error) {
	var payload inventory.Progress
	if err := c.do(ctx, c.timeouts.Request, http.MethodGet, sessionPath(sessionID, "progress"), nil, &payload); err != nil {
		return inventory.Progress{}, err
	}
	return payload, nil
}

func sessionPath(sessionID int64, leaf string) string {
	return "/api/inventory/" + strconv.FormatInt(sessionID, 10) + "/" + leaf
}

func (c *Client) do(ctx context.Context, timeout time.Duration, method, path string, body []byte, dest any) error {
	rel := &url.URL{Path: path}
	return c.doURL(ctx, timeout, method, rel, body, dest)
}

func (c *Client) doURL(ctx context.Context, timeout time.Duration, method string, rel *url.URL, body []byte, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	op := method + " " + rel.Path
	reqURL := c.baseURL.ResolveReference(rel)
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &inventory.NetworkError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(rel.Path, resp)
	}
	if dest == nil {
		return nil
	}

	var src io.Reader = resp.Body
	if c.progress != nil && rel.Path == "/api/catalog" {
		if w := c.progress(resp.ContentLength); w != nil {
			src = io.TeeReader(resp.Body, w)
		}
	}
	if err := json.NewDecoder(src).Decode(dest); err != nil {
		// A body cut off by the deadline is a network failure, not bad data.
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &inventory.NetworkError{Op: op, Err: err}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StatusError is a non-2xx reply from the authority.
type StatusError struct {
	Path   string
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api %s returned status %d: %s", e.Path, e.Status, e.Detail)
	}
	return fmt.Sprintf("api %s returned status %d", e.Path, e.Status)
}

func newStatusError(path string, resp *http.Response) error {
	serr := &StatusError{Path: path, Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	var body struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &body) == nil {
		serr.Detail = strings.TrimSpace(body.Detail)
	}
	return serr
}

func parseBaseURL(address string) (*url.URL, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		trimmed = defaultAddress
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse server %q: %w", address, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse server %q: missing host", address)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
