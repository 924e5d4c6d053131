package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/wonny/edgefactory/internal/contracts"
	"github.com/wonny/edgefactory/pkg/logger"
)

// SignalRanker runs one ranking cycle over a symbol universe.
type SignalRanker interface {
	RankSignals(ctx context.Context, symbols []string, mode contracts.RankMode) ([]contracts.SignalRecord, error)
}

// SignalHandler handles ranking and signal history API endpoints
// ⭐ SSOT: 시그널 API 핸들러는 이 구조체에서만
type SignalHandler struct {
	ranker SignalRanker
	store  contracts.SignalStore
	logger *logger.Logger
}

// NewSignalHandler creates a new signal handler
func NewSignalHandler(ranker SignalRanker, store contracts.SignalStore, log *logger.Logger) *SignalHandler {
	return &SignalHandler{
		ranker: ranker,
		store:  store,
		logger: log,
	}
}

// RankRequest is the rank-cycle request body
type RankRequest struct {
	Symbols []string `json:"symbols"`
	Mode    string   `json:"mode"` // conservative (default) | aggressive
}

// Rank runs a ranking cycle and returns the ordered signals
// POST /api/signals/rank
func (h *SignalHandler) Rank(w http.ResponseWriter, r *http.Request) {
	var req RankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Symbols) == 0 {
		respondError(w, http.StatusBadRequest, "symbols is required")
		return
	}

	mode := contracts.RankMode(req.Mode)
	if mode == "" {
		mode = contracts.ModeConservative
	}

	signals, err := h.ranker.RankSignals(r.Context(), req.Symbols, mode)
	if err != nil {
		h.logger.WithError(err).Error("Ranking cycle failed")
		respondError(w, http.StatusInternalServerError, "Ranking cycle failed: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"mode":    string(mode),
			"count":   len(signals),
			"signals": signals,
		},
	})
}

// History returns past signals with optional filters
// GET /api/signals?symbol=AAPL&side=long&resolved=true&limit=50
func (h *SignalHandler) History(w http.ResponseWriter, r *http.Request) {
	q := contracts.SignalQuery{
		Symbol: r.URL.Query().Get("symbol"),
		Side:   contracts.Side(r.URL.Query().Get("side")),
	}
	if v := r.URL.Query().Get("resolved"); v != "" {
		q.OnlyResolved = v == "true" || v == "1"
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		q.Limit = limit
	}
	if v := r.URL.Query().Get("from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid from timestamp (RFC3339)")
			return
		}
		q.From = from
	}
	if v := r.URL.Query().Get("to"); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid to timestamp (RFC3339)")
			return
		}
		q.To = to
	}

	records, err := h.store.Query(r.Context(), q)
	if err != nil {
		h.logger.WithError(err).Error("Failed to query signals")
		respondError(w, http.StatusInternalServerError, "Failed to query signals")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"count":   len(records),
			"signals": records,
		},
	})
}
