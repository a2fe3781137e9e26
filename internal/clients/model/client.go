// Package model provides a client for the external prediction service.
package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/paperd/internal/common"
	"github.com/bobmcallan/paperd/internal/interfaces"
)

const (
	DefaultBaseURL   = "http://localhost:8001"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 10 // requests per second
)

// Client implements the ModelClient interface against the prediction
// service's /predict and /predict_from_closes endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new prediction-service client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents a prediction-service error response.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("model API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// predictionResponse is the service's wire format.
type predictionResponse struct {
	Action    int     `json:"action"`
	LatencyMs float64 `json:"latency_ms"`
}

// post performs a rate-limited JSON POST request
func (c *Client) post(ctx context.Context, path string, body, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug().Str("url", c.baseURL+path).Msg("Model API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(data),
			Endpoint:   path,
		}
	}

	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Predict scores a raw observation vector.
func (c *Client) Predict(ctx context.Context, obs []float64) (*interfaces.Prediction, error) {
	var resp predictionResponse
	req := map[string]interface{}{"obs": obs}
	if err := c.post(ctx, "/predict", req, &resp); err != nil {
		return nil, err
	}
	return &interfaces.Prediction{Action: resp.Action, LatencyMs: resp.LatencyMs}, nil
}

// PredictFromCloses scores a closing-price series with the current position flag.
func (c *Client) PredictFromCloses(ctx context.Context, closes []float64, positionFlag int) (*interfaces.Prediction, error) {
	var resp predictionResponse
	req := map[string]interface{}{
		"closes":   closes,
		"position": positionFlag,
	}
	if err := c.post(ctx, "/predict_from_closes", req, &resp); err != nil {
		return nil, err
	}
	return &interfaces.Prediction{Action: resp.Action, LatencyMs: resp.LatencyMs}, nil
}

// Ensure Client implements ModelClient
var _ interfaces.ModelClient = (*Client)(nil)
