package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bobmcallan/paperd/internal/interfaces"
	"github.com/bobmcallan/paperd/internal/models"
)

// --- Manual trading handlers ---

// handleAccount handles GET /api/trading/account.
func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	account, err := s.app.Ledger.GetAccount(r.Context(), userID)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"data": map[string]interface{}{
			"account":         account,
			"portfolio_stats": account.CalculatePortfolioValue(),
		},
	})
}

// handleAccountReset handles POST /api/trading/account/reset.
// Restores starting cash, clears holdings, and wipes tracked positions.
func (s *Server) handleAccountReset(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	ctx := r.Context()
	account, err := s.app.Ledger.Reset(ctx, userID)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	if err := s.app.Positions.Reset(ctx); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to clear positions on account reset")
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"message": "Account reset successfully",
		"data": map[string]interface{}{
			"account": account,
		},
	})
}

// handleOrders dispatches GET and POST for /api/trading/orders.
func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleOrderList(w, r)
	case http.MethodPost:
		s.handleOrderCreate(w, r)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleOrderList handles GET /api/trading/orders?status=&limit=.
func (s *Server) handleOrderList(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	q := interfaces.OrderQuery{
		Status: strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))),
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v <= 0 {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		q.Limit = v
	}

	orders, err := s.app.Storage.OrderStore().ListOrders(r.Context(), userID, q)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"data": map[string]interface{}{
			"orders": orders,
			"count":  len(orders),
		},
	})
}

// handleOrderCreate handles POST /api/trading/orders.
func (s *Server) handleOrderCreate(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	var req struct {
		Symbol    string  `json:"symbol"`
		Side      string  `json:"side"`
		Quantity  float64 `json:"quantity"`
		Price     float64 `json:"price"`
		OrderType string  `json:"order_type"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	intent := &models.OrderIntent{
		UserID:    userID,
		Symbol:    strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Side:      strings.ToUpper(strings.TrimSpace(req.Side)),
		Quantity:  req.Quantity,
		Price:     req.Price,
		OrderType: req.OrderType,
	}

	order, account, err := s.app.Executor.Execute(r.Context(), intent)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"status": "ok",
		"data": map[string]interface{}{
			"order":   order,
			"account": account,
		},
	})
}

// handlePositions handles GET /api/trading/positions.
func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if requireUser(w, r) == "" {
		return
	}

	positions, err := s.app.Positions.List(r.Context())
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"data": map[string]interface{}{
			"positions": positions,
			"count":     len(positions),
		},
	})
}

// handlePortfolio handles GET /api/trading/portfolio, the combined view of
// account valuation, manual holdings, and tracked positions.
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	ctx := r.Context()
	account, err := s.app.Ledger.GetAccount(ctx, userID)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	positions, err := s.app.Positions.List(ctx)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	stats := account.CalculatePortfolioValue()

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"data": map[string]interface{}{
			"portfolio_stats": stats,
			"holdings":        account.Holdings,
			"positions":       positions,
		},
	})
}
