package peertubeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Another0Noob/peertube-import/internal/logging"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	userAgent       = "PeerTube-Import/0.1 (https://github.com/Another0Noob/peertube-import)"
	defaultPageSize = 100
	maxErrorBody    = 2048
)

const (
	rateLimitRequests = 5
	rateLimitDuration = time.Second
)

// Client talks to the PeerTube REST API.
type Client struct {
	reader      *retryablehttp.Client
	writer      *retryablehttp.Client
	baseURL     string
	userAgent   string
	rateLimiter *rate.Limiter
	token       *Token

	dateFields  []string
	updateField string
	pageSize    int
	log         logrus.FieldLogger
}

// NewClient creates a new PeerTube API client.
func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("peertube base URL is not set")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}
	perSecond := opts.RateLimit
	if perSecond <= 0 {
		perSecond = rateLimitRequests
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	dateFields := opts.DateFields
	if len(dateFields) == 0 {
		dateFields = []string{"originallyPublishedAt", "publishedAt"}
	}
	updateField := opts.UpdateField
	if updateField == "" {
		updateField = "originallyPublishedAt"
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	reader := retryablehttp.NewClient()
	reader.HTTPClient = httpClient
	reader.Logger = leveledLogger{log}
	reader.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		reader.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		reader.RetryWaitMax = opts.RetryWaitMax
	}
	reader.ErrorHandler = retryablehttp.PassthroughErrorHandler

	writer := retryablehttp.NewClient()
	writer.HTTPClient = httpClient
	writer.Logger = leveledLogger{log}
	writer.RetryMax = 0
	writer.CheckRetry = func(context.Context, *http.Response, error) (bool, error) {
		return false, nil
	}
	writer.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		reader:      reader,
		writer:      writer,
		baseURL:     base,
		userAgent:   userAgent,
		rateLimiter: rate.NewLimiter(rate.Every(rateLimitDuration/time.Duration(perSecond)), perSecond),
		dateFields:  dateFields,
		updateField: updateField,
		pageSize:    pageSize,
		log:         log,
	}, nil
}

// SetToken sets the authentication token for the client.
func (c *Client) SetToken(token *Token) {
	c.token = token
}

func (c *Client) Authenticated() bool {
	return c.token != nil && c.token.AccessToken != ""
}

// doRequest performs an HTTP request (raw, no decoding). Reads go through
// the retrying client, everything else is attempted once.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, params url.Values, body []byte, contentType string) (*http.Response, error) {
	// Rate limiting
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	fullURL := c.baseURL + endpoint
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var payload any
	if body != nil {
		payload = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, fullURL, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if c.Authenticated() {
		req.Header.Set("Authorization", "Bearer "+c.token.AccessToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	hc := c.writer
	if method == http.MethodGet {
		hc = c.reader
	}
	resp, err := hc.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	return resp, nil
}

// doJSON executes the request and returns the body of a 2xx response.
// Anything else becomes an *APIError carrying status and body.
func (c *Client) doJSON(ctx context.Context, method, endpoint string, params url.Values, body any) ([]byte, error) {
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}
	return c.do(ctx, method, endpoint, params, raw, "application/json")
}

func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, body []byte, contentType string) ([]byte, error) {
	resp, err := c.doRequest(ctx, method, endpoint, params, body, contentType)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(b) > maxErrorBody {
			b = b[:maxErrorBody]
		}
		return nil, &APIError{
			Method:     method,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(b),
		}
	}
	return b, nil
}

// leveledLogger adapts logrus to retryablehttp's LeveledLogger.
type leveledLogger struct {
	log logrus.FieldLogger
}

func (l leveledLogger) fields(kv []interface{}) logrus.FieldLogger {
	entry := l.log
	for i := 0; i+1 < len(kv); i += 2 {
		entry = entry.WithField(fmt.Sprint(kv[i]), kv[i+1])
	}
	return entry
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.fields(kv).Error(msg) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.fields(kv).Debug(msg) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.fields(kv).Debug(msg) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.fields(kv).Warn(msg) }

var _ retryablehttp.LeveledLogger = leveledLogger{}
