package handler

import (
	"errors"
	"net/http"
	"time"

	"linkguard/middleware"
	"linkguard/scheduler"
	"linkguard/store"

	"github.com/rs/zerolog/log"
)

// SchedulerHandler exposes on-demand scan passes
type SchedulerHandler struct {
	orchestrator *scheduler.Orchestrator
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(orchestrator *scheduler.Orchestrator) *SchedulerHandler {
	return &SchedulerHandler{orchestrator: orchestrator}
}

// RunMine handles POST /api/scans/run
// @Summary Run a scan pass for the authenticated user now
// @Description Probes the caller's due scans immediately, subject to the plan quota
// @Tags Scheduler
// @Produce json
// @Security BearerAuth
// @Success 200 {object} handler.MessageResponse
// @Failure 404 {object} handler.ErrorResponse "User not found"
// @Failure 429 {object} handler.ErrorResponse "Quota exceeded"
// @Router /api/scans/run [post]
func (sch *SchedulerHandler) RunMine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	err := sch.orchestrator.RunUser(r.Context(), userID, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrQuotaExceeded):
			SendJSONError(w, http.StatusTooManyRequests, err, "Your plan's scan quota is used up for the current window")
		case errors.Is(err, store.ErrNotFound):
			SendJSONError(w, http.StatusNotFound, err, "User not found")
		default:
			log.Error().Err(err).Str("user_id", userID).Msg("On-demand scan pass failed")
			SendJSONError(w, http.StatusInternalServerError, err, "Failed to run scan pass")
		}
		return
	}

	SendJSONSuccess(w, http.StatusOK, MessageResponse{Message: "Scan pass completed"})
}

// RunAll handles POST /api/admin/scans/run
// @Summary Run a full scan pass over all users now
// @Tags Scheduler
// @Produce json
// @Security BearerAuth
// @Success 200 {object} handler.MessageResponse
// @Failure 409 {object} handler.ErrorResponse "A pass is already running"
// @Router /api/admin/scans/run [post]
func (sch *SchedulerHandler) RunAll(w http.ResponseWriter, r *http.Request) {
	err := sch.orchestrator.RunPass(r.Context(), time.Now())
	if err != nil {
		if errors.Is(err, scheduler.ErrPassInProgress) {
			SendJSONError(w, http.StatusConflict, err, "A scan pass is already running")
			return
		}
		log.Error().Err(err).Msg("Full scan pass failed")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to run scan pass")
		return
	}

	SendJSONSuccess(w, http.StatusOK, MessageResponse{Message: "Scan pass completed"})
}
