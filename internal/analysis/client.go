// Package analysis talks to the remote redundancy service.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/curricheck/internal/apperr"
	"github.com/verte-zerg/curricheck/internal/model"
)

const (
	// DefaultEndpoint is where the reference redundancy service listens.
	DefaultEndpoint = "http://127.0.0.1:5000/check_redundancy"
	// DefaultField is the multipart field the service reads the file from.
	DefaultField = "file"
	// DefaultTimeout bounds a single analysis request.
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 32 << 20
)

// Analyzer finds redundant course pairs in an uploaded spreadsheet.
type Analyzer interface {
	Analyze(ctx context.Context, file model.UploadedFile) ([]model.RedundancyPair, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, file model.UploadedFile) ([]model.RedundancyPair, error)

// Analyze implements Analyzer.
func (f AnalyzerFunc) Analyze(ctx context.Context, file model.UploadedFile) ([]model.RedundancyPair, error) {
	return f(ctx, file)
}

// Client posts files to the redundancy service over HTTP.
type Client struct {
	endpoint string
	field    string
	timeout  time.Duration
	http     *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithField overrides the multipart field name.
func WithField(field string) Option {
	return func(c *Client) {
		if field != "" {
			c.field = field
		}
	}
}

// WithTimeout bounds each request. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient returns a Client for endpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint: endpoint,
		field:    DefaultField,
		timeout:  DefaultTimeout,
		http:     http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the configured service URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Analyze uploads file and decodes the redundancy list. It never retries.
func (c *Client) Analyze(ctx context.Context, file model.UploadedFile) ([]model.RedundancyPair, error) {
	body, contentType, err := encodeMultipart(c.field, file)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Network("request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperr.Network("failed to read response", err)
	}
	return decodeResponse(resp.StatusCode, raw)
}

func encodeMultipart(field string, file model.UploadedFile) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, file.Name)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

type response struct {
	Error        *string            `json:"error"`
	Redundancies *[]json.RawMessage `json:"redundancies"`
}

type entry struct {
	Pair       []json.RawMessage `json:"pair"`
	Similarity json.RawMessage   `json:"similarity"`
}

func decodeResponse(status int, raw []byte) ([]model.RedundancyPair, error) {
	if !json.Valid(raw) {
		return nil, apperr.Network(fmt.Sprintf("unexpected response (HTTP %d)", status), errors.New("body is not JSON"))
	}
	var payload response
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, apperr.Format("malformed response", err)
	}
	if payload.Error != nil && *payload.Error != "" {
		return nil, apperr.Service(*payload.Error)
	}
	if status < 200 || status > 299 {
		return nil, apperr.Service(fmt.Sprintf("service responded %d %s", status, http.StatusText(status)))
	}
	if payload.Redundancies == nil {
		return nil, apperr.Format("malformed response", errors.New("missing redundancies field"))
	}
	pairs := make([]model.RedundancyPair, 0, len(*payload.Redundancies))
	for i, item := range *payload.Redundancies {
		pair, err := decodeEntry(item)
		if err != nil {
			return nil, apperr.Format("malformed response", fmt.Errorf("redundancy %d: %w", i, err))
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

func decodeEntry(raw json.RawMessage) (model.RedundancyPair, error) {
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return model.RedundancyPair{}, err
	}
	if len(e.Pair) != 2 {
		return model.RedundancyPair{}, fmt.Errorf("pair must have 2 elements, got %d", len(e.Pair))
	}
	first, err := decodeName(e.Pair[0])
	if err != nil {
		return model.RedundancyPair{}, fmt.Errorf("pair[0]: %w", err)
	}
	second, err := decodeName(e.Pair[1])
	if err != nil {
		return model.RedundancyPair{}, fmt.Errorf("pair[1]: %w", err)
	}
	if isNull(e.Similarity) {
		return model.RedundancyPair{}, fmt.Errorf("missing similarity")
	}
	var similarity float64
	if err := json.Unmarshal(e.Similarity, &similarity); err != nil {
		return model.RedundancyPair{}, fmt.Errorf("similarity is not a number")
	}
	return model.RedundancyPair{First: first, Second: second, Similarity: similarity}, nil
}

func decodeName(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", errors.New("missing course identifier")
	}
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return "", errors.New("course identifier is not a string")
	}
	return name, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
