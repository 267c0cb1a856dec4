package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/engine"
	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/hub"
	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/ledger"
	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/scanner"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		return true
	},
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	engine   *engine.Engine
	scan     *scanner.Scanner
	eventHub *hub.Hub
	ctx      context.Context
}

// NewHandler creates a new handler
func NewHandler(e *engine.Engine, s *scanner.Scanner, eventHub *hub.Hub, ctx context.Context) *Handler {
	return &Handler{
		engine:   e,
		scan:     s,
		eventHub: eventHub,
		ctx:      ctx,
	}
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"service":        "bet-engine",
		"scanner":        h.scan.Status().State,
		"active_clients": h.eventHub.ClientCount(),
	})
}

// GetOpportunities returns the live opportunity set, best first
func (h *Handler) GetOpportunities(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.GetActiveOpportunities())
}

// GetPortfolio returns the allocation from the most recent scan cycle
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.scan.LastAllocation())
}

// GetPerformance returns rolling performance metrics
func (h *Handler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.GetPerformanceMetrics())
}

// GetPositions returns the full position ledger
func (h *Handler) GetPositions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.Positions())
}

// placeBetRequest is the bet placement payload
type placeBetRequest struct {
	OpportunityID string  `json:"opportunity_id"`
	Amount        float64 `json:"amount"`
}

// PlaceBet places a stake against a live opportunity
func (h *Handler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	if req.OpportunityID == "" {
		respondError(w, http.StatusBadRequest, "opportunity_id is required")
		return
	}

	result := h.engine.PlaceBet(r.Context(), req.OpportunityID, req.Amount)
	if !result.Success {
		// Constraint violations are client errors, not server faults
		respondJSON(w, http.StatusUnprocessableEntity, result)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// closePositionRequest is the settlement payload
type closePositionRequest struct {
	ClosePrice  float64  `json:"close_price"`
	ClosingOdds *float64 `json:"closing_odds,omitempty"`
}

// ClosePosition settles a position at the given close price, optionally
// recording the closing line for CLV
func (h *Handler) ClosePosition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req closePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	position, err := h.engine.ClosePosition(id, req.ClosePrice)
	if err != nil {
		if errors.Is(err, ledger.ErrLedgerState) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Record the closing line only once the close is committed, so a rejected
	// request leaves the ledger untouched
	if req.ClosingOdds != nil {
		if err := h.engine.RecordClosingLine(id, *req.ClosingOdds); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		position.ClosingOdds = req.ClosingOdds
	}

	respondJSON(w, http.StatusOK, position)
}

// StartScanner starts the periodic scan loop
func (h *Handler) StartScanner(w http.ResponseWriter, r *http.Request) {
	h.scan.Start(h.ctx)
	respondJSON(w, http.StatusOK, h.scan.Status())
}

// StopScanner stops the scan loop; an in-flight cycle finishes
func (h *Handler) StopScanner(w http.ResponseWriter, r *http.Request) {
	h.scan.Stop()
	respondJSON(w, http.StatusOK, h.scan.Status())
}

// ScannerStatus returns the orchestrator's introspection snapshot
func (h *Handler) ScannerStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.scan.Status())
}

// HandleWebSocket upgrades the connection and attaches it to the event hub
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		fmt.Printf("⚠️  WebSocket upgrade error: %v\n", err)
		return
	}

	clientID := uuid.New().String()
	c := hub.NewClient(clientID, conn, h.eventHub)

	h.eventHub.Register(c)

	// Use handler context, not request context: the pumps outlive the request
	go c.WritePump(h.ctx)
	go c.ReadPump(h.ctx)

	fmt.Printf("✓ WebSocket connection established: %s\n", clientID)
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		fmt.Printf("error encoding response: %v\n", err)
	}
}

// respondError writes a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
