package server

import (
	"net/http"
	"strings"

	"github.com/bobmcallan/paperd/internal/interfaces"
)

// handleSignal handles POST /api/signal, one automated pipeline invocation.
// The response is the terminal pipeline outcome: HOLD or ORDER_PLACED.
func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req interfaces.SignalRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))

	result, err := s.app.Pipeline.Process(r.Context(), &req)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"data":   result,
	})
}
