package model

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPredict(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"action": 1, "latency_ms": 2.5})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))

	pred, err := c.Predict(context.Background(), []float64{0.1, 0.2, 0.3})
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if pred.Action != 1 {
		t.Errorf("expected action 1, got %d", pred.Action)
	}
	if pred.LatencyMs != 2.5 {
		t.Errorf("expected latency 2.5, got %f", pred.LatencyMs)
	}
	if gotPath != "/predict" {
		t.Errorf("expected POST /predict, got %s", gotPath)
	}
	obs, ok := gotBody["obs"].([]interface{})
	if !ok || len(obs) != 3 {
		t.Errorf("expected obs vector of 3 in request, got %v", gotBody["obs"])
	}
}

func TestPredictFromCloses(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict_from_closes" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"action": 2, "latency_ms": 1.0})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))

	pred, err := c.PredictFromCloses(context.Background(), []float64{100, 101, 99}, 1)
	if err != nil {
		t.Fatalf("PredictFromCloses failed: %v", err)
	}
	if pred.Action != 2 {
		t.Errorf("expected action 2, got %d", pred.Action)
	}
	if gotBody["position"] != 1.0 {
		t.Errorf("expected position flag 1 in request, got %v", gotBody["position"])
	}
}

func TestPredictServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))

	_, err := c.Predict(context.Background(), []float64{0.1})
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", apiErr.StatusCode)
	}
	if apiErr.Endpoint != "/predict" {
		t.Errorf("expected endpoint /predict, got %s", apiErr.Endpoint)
	}
}

func TestPredictContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"action": 0})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Predict(ctx, []float64{0.1}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
