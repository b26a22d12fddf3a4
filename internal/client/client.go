// Package client is a typed HTTP client for the EcoSort waste-management API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ecosort/smoke/internal/models"
	"github.com/ecosort/smoke/internal/version"
)

// API paths relative to the base URL.
const (
	PathStats           = "/waste-classifications/stats"
	PathClassifications = "/waste-classifications"
	PathUsers           = "/users"
	PathTrucks          = "/trucks"
	PathHealth          = "/health"
)

// Result is a decoded response together with its status code.
type Result[T any] struct {
	Status int
	Count  int // only meaningful for list endpoints
	Data   T
}

type Client struct {
	base      string
	healthURL string
	httpc     *http.Client
	log       *slog.Logger
	newID     func() string
	schemas   schemaSet
}

type Option func(*Client)

// WithHTTPClient replaces the default client, which has no timeout.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.httpc = h } }

func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.log = l } }

// WithHealthURL points Health at an absolute URL instead of <base>/health.
func WithHealthURL(u string) Option { return func(c *Client) { c.healthURL = u } }

// WithRequestIDs overrides the X-Request-ID generator.
func WithRequestIDs(f func() string) Option { return func(c *Client) { c.newID = f } }

func New(baseURL string, opts ...Option) (*Client, error) {
	schemas, err := loadSchemas()
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}
	c := &Client{
		base:    strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{},
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID:   uuid.NewString,
		schemas: schemas,
	}
	for _, o := range opts {
		o(c)
	}
	if c.healthURL == "" {
		c.healthURL = c.base + PathHealth
	}
	return c, nil
}

// BaseURL returns the API root all paths are resolved against.
func (c *Client) BaseURL() string { return c.base }

func (c *Client) Stats(ctx context.Context) (*Result[models.Stats], error) {
	var env models.Envelope[models.Stats]
	code, err := c.do(ctx, http.MethodGet, c.base+PathStats, nil, schemaStats, &env, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &Result[models.Stats]{Status: code, Data: env.Data}, nil
}

func (c *Client) CreateUser(ctx context.Context, in models.UserPayload) (*Result[models.User], error) {
	var env models.Envelope[models.User]
	code, err := c.do(ctx, http.MethodPost, c.base+PathUsers, in, schemaUser, &env, http.StatusOK, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	return &Result[models.User]{Status: code, Data: env.Data}, nil
}

func (c *Client) ListUsers(ctx context.Context) (*Result[[]models.User], error) {
	var env models.Envelope[[]models.User]
	code, err := c.do(ctx, http.MethodGet, c.base+PathUsers, nil, schemaList, &env, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &Result[[]models.User]{Status: code, Count: count(env.Count, len(env.Data)), Data: env.Data}, nil
}

func (c *Client) CreateClassification(ctx context.Context, in models.ClassificationPayload) (*Result[models.Classification], error) {
	var env models.Envelope[models.Classification]
	code, err := c.do(ctx, http.MethodPost, c.base+PathClassifications, in, schemaClassification, &env, http.StatusOK, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	return &Result[models.Classification]{Status: code, Data: env.Data}, nil
}

// UpsertTruck posts a telemetry sample; the API creates the truck on first sight.
func (c *Client) UpsertTruck(ctx context.Context, in models.TruckPayload) (*Result[models.Truck], error) {
	var env models.Envelope[models.Truck]
	code, err := c.do(ctx, http.MethodPost, c.base+PathTrucks, in, schemaTruck, &env, http.StatusOK, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	return &Result[models.Truck]{Status: code, Data: env.Data}, nil
}

func (c *Client) ListTrucks(ctx context.Context) (*Result[[]models.Truck], error) {
	var env models.Envelope[[]models.Truck]
	code, err := c.do(ctx, http.MethodGet, c.base+PathTrucks, nil, schemaList, &env, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &Result[[]models.Truck]{Status: code, Count: count(env.Count, len(env.Data)), Data: env.Data}, nil
}

func (c *Client) Health(ctx context.Context) (*Result[models.Health], error) {
	var h models.Health
	code, err := c.do(ctx, http.MethodGet, c.healthURL, nil, schemaHealth, &h, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &Result[models.Health]{Status: code, Data: h}, nil
}

func (c *Client) do(ctx context.Context, method, url string, in any, schema string, out any, accept ...int) (int, error) {
	path := strings.TrimPrefix(url, c.base)
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	reqID := c.newID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Request-ID", reqID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Debug("request failed", slog.String("method", method), slog.String("path", path), slog.String("request_id", reqID), slog.String("error", err.Error()))
		return 0, fmt.Errorf("%w: %s %s: %w", ErrUnreachable, method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: read %s %s: %w", ErrUnreachable, method, path, err)
	}
	c.log.Debug("http", slog.String("method", method), slog.String("path", path), slog.Int("status", resp.StatusCode), slog.String("request_id", reqID), slog.String("duration", time.Since(start).String()), slog.Int("bytes", len(raw)))

	if !accepted(resp.StatusCode, accept) {
		return resp.StatusCode, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: raw, Message: errorMessage(raw)}
	}
	if err := c.schemas.validate(schema, raw); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: %s %s: %w", ErrMalformed, method, path, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: %s %s: %w", ErrMalformed, method, path, err)
	}
	return resp.StatusCode, nil
}

func accepted(code int, set []int) bool {
	for _, c := range set {
		if code == c {
			return true
		}
	}
	return false
}

// errorMessage extracts the envelope error string from a failure body.
func errorMessage(raw []byte) string {
	var env struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}
	return env.Error
}

func count(declared *int, n int) int {
	if declared != nil {
		return *declared
	}
	return n
}
