package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/upb/cluster-policy-builder/internal/observability"
	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// Config holds the workspace connection settings
type Config struct {
	Host    string
	Token   string
	Timeout time.Duration
}

type tokenKey struct{}

// WithToken returns a context whose workspace calls authenticate with token
// instead of the configured one
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Client talks to the workspace REST API. It implements both the policy
// store and the catalog provider contracts.
type Client struct {
	config     Config
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewClient creates a new workspace Client
func NewClient(config Config, metrics *observability.Metrics, logger *zap.Logger) *Client {
	config.Host = strings.TrimRight(config.Host, "/")
	if config.Host != "" && !strings.Contains(config.Host, "://") {
		config.Host = "https://" + config.Host
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Host returns the normalized workspace URL
func (c *Client) Host() string {
	return c.config.Host
}

// PolicyURL returns the workspace page of a policy
func (c *Client) PolicyURL(id string) string {
	return c.config.Host + "/compute/policies/" + url.PathEscape(id)
}

// Ping checks that the workspace answers authenticated requests
func (c *Client) Ping(ctx context.Context) error {
	return c.get(ctx, "clusters.spark_versions", "/api/2.0/clusters/spark-versions", nil, nil)
}

func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, out interface{}) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, endpoint, path, nil, out)
}

func (c *Client) post(ctx context.Context, endpoint, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, endpoint, path, body, out)
}

// do executes one request. There are no retries: a failure is reported once.
func (c *Client) do(ctx context.Context, method, endpoint, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.Host+path, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", endpoint, err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token := tokenFrom(ctx)
	if token == "" {
		token = c.config.Token
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordWorkspaceRequest(endpoint, 0)
		c.logger.Warn("workspace request failed",
			zap.String("endpoint", endpoint),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return transportError(endpoint, err)
	}
	defer resp.Body.Close()
	c.metrics.RecordWorkspaceRequest(endpoint, resp.StatusCode)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("workspace returned an error",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode))
		return statusError(endpoint, resp.StatusCode, respBody)
	}

	c.logger.Debug("workspace request completed",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return malformed(endpoint, err)
	}
	return nil
}
