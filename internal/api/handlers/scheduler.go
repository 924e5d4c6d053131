package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/edgefactory/internal/retrain"
	"github.com/wonny/edgefactory/pkg/logger"
)

// CycleRunner exposes the retraining pipeline's live state.
type CycleRunner interface {
	State() (retrain.State, time.Time)
	LastRun() *retrain.RunResult
}

// JobScheduler exposes registered jobs and their run history.
type JobScheduler interface {
	RunNow(name string) error
	History(name string) []retrain.JobResult
}

// SchedulerHandler handles retraining scheduler API endpoints
// ⭐ SSOT: 스케줄러 API 핸들러는 이 구조체에서만
type SchedulerHandler struct {
	runner    CycleRunner
	scheduler JobScheduler
	logger    *logger.Logger
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(runner CycleRunner, scheduler JobScheduler, log *logger.Logger) *SchedulerHandler {
	return &SchedulerHandler{
		runner:    runner,
		scheduler: scheduler,
		logger:    log,
	}
}

// Status reports the retraining cycle state and last run
// GET /api/scheduler/status
func (h *SchedulerHandler) Status(w http.ResponseWriter, r *http.Request) {
	state, changedAt := h.runner.State()

	data := map[string]interface{}{
		"state":            string(state),
		"state_changed_at": changedAt,
	}
	if last := h.runner.LastRun(); last != nil {
		lastData := map[string]interface{}{
			"final":       string(last.Final),
			"model_id":    last.ModelID,
			"started_at":  last.StartedAt,
			"finished_at": last.FinishedAt,
		}
		if last.Err != nil {
			lastData["error"] = last.Err.Error()
		}
		data["last_run"] = lastData
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// JobHistory returns recent runs of a scheduled job
// GET /api/scheduler/jobs/{name}/history
func (h *SchedulerHandler) JobHistory(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	history := h.scheduler.History(name)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"job":     name,
			"count":   len(history),
			"history": history,
		},
	})
}

// Trigger runs a scheduled job immediately
// POST /api/scheduler/jobs/{name}/run
func (h *SchedulerHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if err := h.scheduler.RunNow(name); err != nil {
		h.logger.WithError(err).WithField("job", name).Error("Failed to trigger job")
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"job":       name,
			"triggered": true,
		},
	})
}
