package zoom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/zoombulk/internal/instrumentation"
	"github.com/teemow/zoombulk/internal/logging"
)

// DefaultBaseURL is the root of the Zoom REST API v2.
const DefaultBaseURL = "https://api.zoom.us/v2"

// DefaultPageSize is the page size used when listing users.
const DefaultPageSize = 300

// maxResponseBody bounds successful response bodies.
const maxResponseBody = 10 << 20

// Operation names used for metrics and spans.
const (
	OperationListUsers     = "list_users"
	OperationCreateMeeting = "create_meeting"
)

// Client calls the Zoom REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *instrumentation.Metrics
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root, e.g. for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithMetrics records per-call metrics.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger sets the client's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client that sends requests through httpClient. The
// HTTP client is expected to authorize requests.
func NewClient(httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.WithOperation(c.logger, "zoom")
	return c
}

// ListUsers fetches one page of the account's users.
func (c *Client) ListUsers(ctx context.Context, opts ListUsersOptions) (*UserPage, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.PageNumber <= 0 {
		opts.PageNumber = 1
	}

	q := url.Values{}
	q.Set("page_size", strconv.Itoa(opts.PageSize))
	q.Set("page_number", strconv.Itoa(opts.PageNumber))
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}

	data, err := c.do(ctx, OperationListUsers, http.MethodGet, "/users?"+q.Encode(), nil,
		attribute.Int("zoom.page_number", opts.PageNumber))
	if err != nil {
		return nil, err
	}

	var page UserPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("failed to decode user page: %w", err)
	}
	return &page, nil
}

// CreateMeeting creates a meeting hosted by userID ("me" for the app's own
// user). Host selection fields in params are ignored; resolve them to
// userID before calling.
func (c *Client) CreateMeeting(ctx context.Context, userID string, params Params) (*Meeting, error) {
	if userID == "" {
		userID = "me"
	}

	body, err := json.Marshal(params.requestBody())
	if err != nil {
		return nil, fmt.Errorf("failed to encode meeting request: %w", err)
	}

	path := "/users/" + url.PathEscape(userID) + "/meetings"
	data, err := c.do(ctx, OperationCreateMeeting, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}

	meeting, err := decodeMeeting(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode meeting: %w", err)
	}
	return meeting, nil
}

// do sends one request and returns the response body of a 2xx reply.
func (c *Client) do(ctx context.Context, operation, method, path string, body []byte, attrs ...attribute.KeyValue) (_ []byte, err error) {
	ctx, span := instrumentation.StartAPISpan(ctx, operation, attrs...)
	start := time.Now()
	defer func() {
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
		}
		c.metrics.RecordAPIRequest(ctx, operation, status, time.Since(start))
		instrumentation.EndSpan(span, err)
	}()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("zoom request", "method", method, "path", path)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", operation, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		apiErr := newAPIError(res)
		c.logger.Debug("zoom request rejected",
			"method", method,
			"path", path,
			"http_status", apiErr.StatusCode,
			"zoom_code", apiErr.Code,
		)
		return nil, apiErr
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", operation, err)
	}
	return data, nil
}
