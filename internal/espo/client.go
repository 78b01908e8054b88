// Package espo is a thin synchronous client for the EspoCRM REST API.
package espo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// DefaultTimeout bounds every request when no other timeout is configured.
const DefaultTimeout = 10 * time.Second

// Client calls an EspoCRM instance authenticated with an API key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient builds a client for the API rooted at baseURL, for example
// "https://crm.example.com/api/v1".
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request performs method against action. POST, PATCH and PUT send params as
// a JSON body; other methods encode them into the query string. The response
// must be a JSON object.
func (c *Client) Request(ctx context.Context, method, action string, params map[string]any) (map[string]any, error) {
	method = strings.ToUpper(method)
	target := c.normalizeURL(action)

	var body io.Reader
	switch method {
	case http.MethodPost, http.MethodPatch, http.MethodPut:
		if params == nil {
			params = map[string]any{}
		}
		payload, err := json.Marshal(params)
		if err != nil {
			return nil, &APIError{Message: "encode request body", Err: err}
		}
		body = bytes.NewReader(payload)
	default:
		if len(params) > 0 {
			target += "?" + BuildQuery(params)
		}
	}

	data, err := c.do(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &APIError{Message: "wrong request, content response is empty"}
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, &APIError{Message: "decode response", Err: err}
	}
	object, ok := decoded.(map[string]any)
	if !ok {
		return nil, &APIError{Message: "API response is not a JSON object"}
	}
	return object, nil
}

// DownloadFile fetches action and returns the raw response body.
func (c *Client) DownloadFile(ctx context.Context, action string, params map[string]any) ([]byte, error) {
	target := c.normalizeURL(action)
	if len(params) > 0 {
		target += "?" + BuildQuery(params)
	}
	return c.do(ctx, http.MethodGet, target, nil)
}

// UploadOptions describes the record an uploaded attachment belongs to.
type UploadOptions struct {
	RelatedType string
	RelatedID   string
	Field       string
}

// UploadFile stores content as an Attachment and returns the created record.
// RelatedType defaults to "Contact" and Field to "resume".
func (c *Client) UploadFile(ctx context.Context, content []byte, filename string, opts UploadOptions) (map[string]any, error) {
	if opts.RelatedType == "" {
		opts.RelatedType = "Contact"
	}
	if opts.Field == "" {
		opts.Field = "resume"
	}

	mimeType := guessMIMEType(filename)
	payload := map[string]any{
		"name":        filename,
		"type":        mimeType,
		"role":        "Attachment",
		"relatedType": opts.RelatedType,
		"relatedId":   opts.RelatedID,
		"field":       opts.Field,
		"file":        "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(content),
	}
	return c.Request(ctx, http.MethodPost, "Attachment", payload)
}

func (c *Client) do(ctx context.Context, method, target string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &APIError{Message: "build request", Err: err}
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "espo request failed",
			slog.String("method", method),
			slog.String("url", req.URL.Path),
			slog.Any("error", err),
		)
		return nil, &APIError{Message: "send request", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Reason: parseReason(resp.Header), Message: "read response", Err: err}
	}

	c.logger.DebugContext(ctx, "espo request",
		slog.String("method", method),
		slog.String("url", req.URL.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Reason: parseReason(resp.Header)}
	}
	return data, nil
}

func (c *Client) normalizeURL(action string) string {
	return c.baseURL + "/" + strings.TrimLeft(action, "/")
}

func parseReason(header http.Header) string {
	if reason := header.Get("X-Status-Reason"); reason != "" {
		return reason
	}
	return "Unknown Error"
}

func guessMIMEType(filename string) string {
	guessed := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	if guessed == "" {
		return "application/octet-stream"
	}
	if mediaType, _, err := mime.ParseMediaType(guessed); err == nil {
		return mediaType
	}
	return guessed
}
