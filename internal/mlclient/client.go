package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"aakar-gateway/internal/model"
)

const (
	DefaultBaseURL = "http://localhost:5001"
	DefaultTimeout = 5 * time.Minute

	// Upstream bodies are small JSON documents; anything past this is cut.
	maxBodyBytes = 4 << 20
)

// Client calls the house generation service. Calls are never retried: a
// generation can take minutes and a failure is reported to the caller as is.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UpstreamError is a non-2xx answer from the generation service.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("generation service returned %d: %s", e.Status, e.Message)
}

func (c *Client) Generate(ctx context.Context, req model.GenerateRequest) (*model.GenerationResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode generate request: %w", err)
	}

	var out model.GenerationResponse
	if err := c.do(ctx, http.MethodPost, "/generate", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GenerateExample(ctx context.Context, exampleID string) (*model.GenerationResponse, error) {
	var out model.GenerationResponse
	path := "/generate/example/" + url.PathEscape(exampleID)
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Examples, Styles and Health return the upstream document untouched.
func (c *Client) Examples(ctx context.Context) (json.RawMessage, error) {
	return c.raw(ctx, "/generate/examples")
}

func (c *Client) Styles(ctx context.Context) (json.RawMessage, error) {
	return c.raw(ctx, "/styles")
}

func (c *Client) Health(ctx context.Context) (json.RawMessage, error) {
	return c.raw(ctx, "/health")
}

func (c *Client) Status(ctx context.Context) (json.RawMessage, error) {
	return c.raw(ctx, "/status")
}

// FileStream is an open download from the generation service. The caller
// must close Body.
type FileStream struct {
	Body               io.ReadCloser
	ContentType        string
	ContentDisposition string
	ContentLength      int64
}

// Download opens a generated file by its path relative to the service's
// output directory. The body is not buffered.
func (c *Client) Download(ctx context.Context, filePath string) (*FileStream, error) {
	segments := strings.Split(strings.Trim(filePath, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	path := "/download/" + strings.Join(segments, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build GET %s: %w", path, err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", model.ErrMLUnavailable, path, err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		defer res.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
		return nil, &UpstreamError{Status: res.StatusCode, Message: upstreamMessage(raw, res.Status)}
	}

	return &FileStream{
		Body:               res.Body,
		ContentType:        res.Header.Get("Content-Type"),
		ContentDisposition: res.Header.Get("Content-Disposition"),
		ContentLength:      res.ContentLength,
	}, nil
}

func (c *Client) raw(ctx context.Context, path string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method string, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", model.ErrMLUnavailable, method, path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %w", model.ErrMLUnavailable, path, err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &UpstreamError{Status: res.StatusCode, Message: upstreamMessage(raw, res.Status)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", model.ErrMLUnavailable, path, err)
	}
	return nil
}

func upstreamMessage(raw []byte, fallback string) string {
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if envelope.Error != "" {
			return envelope.Error
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	return fallback
}

// IsUnavailable reports whether err means the service could not be reached
// or answered with something unreadable.
func IsUnavailable(err error) bool {
	return errors.Is(err, model.ErrMLUnavailable)
}
