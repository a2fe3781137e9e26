package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bobmcallan/paperd/internal/common"
	"github.com/bobmcallan/paperd/internal/interfaces"
)

const defaultHTTPTimeout = 10 * time.Second

// HTTPAdapter forwards orders to a real or simulated venue over HTTP.
type HTTPAdapter struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
}

// HTTPOption configures the adapter
type HTTPOption func(*HTTPAdapter)

// WithLogger sets the logger
func WithLogger(logger *common.Logger) HTTPOption {
	return func(a *HTTPAdapter) {
		a.logger = logger
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(a *HTTPAdapter) {
		a.httpClient.Timeout = timeout
	}
}

// NewHTTPAdapter creates an adapter posting to the venue's /orders endpoint.
func NewHTTPAdapter(baseURL string, opts ...HTTPOption) *HTTPAdapter {
	a := &HTTPAdapter{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
		logger: common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// venueResponse is the venue's wire format.
type venueResponse struct {
	OrderID  string    `json:"order_id"`
	Status   string    `json:"status"`
	PlacedAt time.Time `json:"placed_at"`
	FilledAt time.Time `json:"filled_at"`
}

// PlaceOrder submits the order and returns the venue's result verbatim in Raw.
func (a *HTTPAdapter) PlaceOrder(ctx context.Context, req *interfaces.PlaceOrderRequest) (*interfaces.PlaceOrderResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	a.logger.Debug().Str("url", a.baseURL+"/orders").Str("symbol", req.Symbol).Msg("Venue order request")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("venue rejected order (status %d): %s", resp.StatusCode, string(data))
	}

	var vr venueResponse
	if err := json.Unmarshal(data, &vr); err != nil {
		return nil, fmt.Errorf("failed to decode venue response: %w", err)
	}

	result := &interfaces.PlaceOrderResult{
		OrderID:  vr.OrderID,
		Status:   vr.Status,
		Raw:      string(data),
		PlacedAt: vr.PlacedAt,
		FilledAt: vr.FilledAt,
	}
	if result.PlacedAt.IsZero() {
		result.PlacedAt = time.Now()
	}
	if result.FilledAt.IsZero() {
		result.FilledAt = result.PlacedAt
	}
	return result, nil
}

// Ensure HTTPAdapter implements ExecutionAdapter
var _ interfaces.ExecutionAdapter = (*HTTPAdapter)(nil)
