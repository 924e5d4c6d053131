package handlers

import (
	"net/http"

	"github.com/wonny/edgefactory/internal/artifact"
	"github.com/wonny/edgefactory/internal/contracts"
	"github.com/wonny/edgefactory/pkg/logger"
)

// ModelHandler exposes the active model and its training history
// ⭐ SSOT: 모델 상태 API 핸들러는 이 구조체에서만
type ModelHandler struct {
	models  *artifact.Manager
	history contracts.OverfitHistory
	logger  *logger.Logger
}

// NewModelHandler creates a new model handler
func NewModelHandler(models *artifact.Manager, history contracts.OverfitHistory, log *logger.Logger) *ModelHandler {
	return &ModelHandler{
		models:  models,
		history: history,
		logger:  log,
	}
}

// Status reports the currently active model, or cold-start when none exists
// GET /api/model/status
func (h *ModelHandler) Status(w http.ResponseWriter, r *http.Request) {
	active := h.models.Current()
	if active == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"active":     false,
				"cold_start": true,
			},
		})
		return
	}

	data := map[string]interface{}{
		"active":         true,
		"cold_start":     false,
		"model_id":       active.Artifact.ModelID,
		"schema_version": active.Artifact.SchemaVersion,
		"trained_at":     active.Artifact.CreatedAt,
		"metrics":        active.Artifact.Metrics,
		"feature_count":  len(active.Schema.FeatureNames),
	}

	checks, err := h.history.LastN(r.Context(), 1)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to read overfit history")
	} else if len(checks) > 0 {
		data["last_overfit_check"] = checks[0]
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// Checks returns recent overfit check records, newest first
// GET /api/model/checks?limit=10
func (h *ModelHandler) Checks(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			limit = n
		}
	}

	checks, err := h.history.LastN(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to read overfit history")
		respondError(w, http.StatusInternalServerError, "Failed to read overfit history")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"count":  len(checks),
			"checks": checks,
		},
	})
}
