package execution

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bobmcallan/paperd/internal/common"
	"github.com/bobmcallan/paperd/internal/interfaces"
	"github.com/bobmcallan/paperd/internal/models"
)

func TestPaperAdapterFillsInstantly(t *testing.T) {
	a := NewPaperAdapter(common.NewSilentLogger())

	result, err := a.PlaceOrder(context.Background(), &interfaces.PlaceOrderRequest{
		Symbol:   "AAPL",
		Side:     "BUY",
		Quantity: 10,
		Price:    100,
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if result.Status != models.OrderStatusFilled {
		t.Errorf("expected status FILLED, got %s", result.Status)
	}
	if !strings.HasPrefix(result.OrderID, "ORD-") {
		t.Errorf("unexpected order ID format: %s", result.OrderID)
	}
	if result.FilledAt.IsZero() {
		t.Error("expected FilledAt to be set")
	}
}

func TestPaperAdapterHonorsCancelledContext(t *testing.T) {
	a := NewPaperAdapter(common.NewSilentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.PlaceOrder(ctx, &interfaces.PlaceOrderRequest{Symbol: "AAPL", Side: "BUY", Quantity: 1, Price: 1}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestHTTPAdapterPlaceOrder(t *testing.T) {
	placedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var gotReq interfaces.PlaceOrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"order_id":  "VEN-123",
			"status":    "FILLED",
			"placed_at": placedAt,
			"filled_at": placedAt,
		})
	}))
	defer srv.Close()

	a := NewHTTPAdapter(srv.URL)

	result, err := a.PlaceOrder(context.Background(), &interfaces.PlaceOrderRequest{
		Symbol:   "MSFT",
		Side:     "SELL",
		Quantity: 5,
		Price:    300,
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if result.OrderID != "VEN-123" {
		t.Errorf("expected venue order ID VEN-123, got %s", result.OrderID)
	}
	if !result.PlacedAt.Equal(placedAt) {
		t.Errorf("expected placed_at %v, got %v", placedAt, result.PlacedAt)
	}
	if result.Raw == "" {
		t.Error("expected raw venue payload to be preserved")
	}
	if gotReq.Symbol != "MSFT" || gotReq.Quantity != 5 {
		t.Errorf("unexpected forwarded request: %+v", gotReq)
	}
}

func TestHTTPAdapterVenueRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "market closed", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	a := NewHTTPAdapter(srv.URL)

	_, err := a.PlaceOrder(context.Background(), &interfaces.PlaceOrderRequest{Symbol: "AAPL", Side: "BUY", Quantity: 1, Price: 1})
	if err == nil {
		t.Fatal("expected error for venue rejection")
	}
	if !strings.Contains(err.Error(), "422") {
		t.Errorf("expected status code in error, got: %v", err)
	}
}

func TestHTTPAdapterDefaultsZeroTimestamps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"order_id": "VEN-1", "status": "FILLED"})
	}))
	defer srv.Close()

	a := NewHTTPAdapter(srv.URL)

	result, err := a.PlaceOrder(context.Background(), &interfaces.PlaceOrderRequest{Symbol: "AAPL", Side: "BUY", Quantity: 1, Price: 1})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if result.PlacedAt.IsZero() || result.FilledAt.IsZero() {
		t.Error("expected zero venue timestamps to be defaulted")
	}
}
