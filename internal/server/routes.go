package server

import (
	"net/http"
	"time"

	"github.com/bobmcallan/paperd/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Users + auth
	mux.HandleFunc("/api/users", s.handleUserCreate)
	mux.HandleFunc("/api/auth/login", s.handleAuthLogin)

	// Manual trading
	mux.HandleFunc("/api/trading/account/reset", s.handleAccountReset)
	mux.HandleFunc("/api/trading/account", s.handleAccount)
	mux.HandleFunc("/api/trading/orders", s.handleOrders)
	mux.HandleFunc("/api/trading/positions", s.handlePositions)
	mux.HandleFunc("/api/trading/portfolio", s.handlePortfolio)

	// Automated pipeline
	mux.HandleFunc("/api/signal", s.handleSignal)

	// Live event stream
	mux.HandleFunc("/ws/events", s.handleEventsWS)
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}

// handleEventsWS upgrades /ws/events connections onto the event hub.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	s.app.Hub.ServeWS(w, r)
}
