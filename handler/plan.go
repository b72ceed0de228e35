package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"linkguard/model"
	"linkguard/store"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// PlanHandler handles subscription plan management. Reads are public;
// writes are restricted to admins by middleware.
type PlanHandler struct {
	store *store.Storage
}

// NewPlanHandler creates a new plan handler
func NewPlanHandler(storage *store.Storage) *PlanHandler {
	return &PlanHandler{store: storage}
}

// List handles GET /api/plans
// @Summary List all subscription plans
// @Tags Plans
// @Produce json
// @Success 200 {array} model.SubscriptionPlan
// @Router /api/plans [get]
func (ph *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	plans, err := ph.store.ListPlans(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list plans")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to list plans")
		return
	}

	SendJSONSuccess(w, http.StatusOK, plans)
}

// Get handles GET /api/plans/{id}
// @Summary Get a subscription plan
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} model.SubscriptionPlan
// @Failure 404 {object} handler.ErrorResponse "Plan not found"
// @Router /api/plans/{id} [get]
func (ph *PlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	plan, err := ph.store.GetPlan(ctx, mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			SendJSONError(w, http.StatusNotFound, err, "Plan not found")
			return
		}
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to load plan")
		return
	}

	SendJSONSuccess(w, http.StatusOK, plan)
}

// Create handles POST /api/admin/plans
// @Summary Create a subscription plan
// @Tags Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.CreatePlanRequest true "Plan definition"
// @Success 201 {object} model.SubscriptionPlan
// @Failure 400 {object} handler.ErrorResponse "Invalid request"
// @Failure 409 {object} handler.ErrorResponse "Plan name already exists"
// @Router /api/admin/plans [post]
func (ph *PlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req model.CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendJSONError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	if !req.Name.Valid() {
		SendJSONError(w, http.StatusBadRequest, errors.New("invalid plan name"), "Plan name must be one of: free, starter, pro, team")
		return
	}
	if !req.ScanFrequency.Valid() {
		SendJSONError(w, http.StatusBadRequest, errors.New("invalid scan frequency"), "Scan frequency must be one of: daily, weekly, monthly")
		return
	}
	if req.MaxURLs < 0 {
		SendJSONError(w, http.StatusBadRequest, errors.New("invalid quota"), "maxUrls must not be negative")
		return
	}
	if req.Price < 0 {
		SendJSONError(w, http.StatusBadRequest, errors.New("invalid price"), "price must not be negative")
		return
	}

	now := time.Now()
	plan := model.SubscriptionPlan{
		ID:            uuid.New().String(),
		Name:          req.Name,
		Price:         req.Price,
		MaxURLs:       req.MaxURLs,
		ScanFrequency: req.ScanFrequency,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := ph.store.CreatePlan(ctx, plan); err != nil {
		if errors.Is(err, store.ErrPlanNameTaken) {
			SendJSONError(w, http.StatusConflict, err, "A plan with this name already exists")
			return
		}
		log.Error().Err(err).Msg("Failed to create plan")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to create plan")
		return
	}

	log.Info().Str("plan_id", plan.ID).Str("name", string(plan.Name)).Msg("Plan created")
	SendJSONSuccess(w, http.StatusCreated, plan)
}

// Update handles PATCH /api/admin/plans/{id}
// @Summary Update a subscription plan
// @Description Applies a partial update; omitted fields are left unchanged
// @Tags Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Param request body model.PlanPatch true "Fields to update"
// @Success 200 {object} model.SubscriptionPlan
// @Failure 400 {object} handler.ErrorResponse "Invalid request"
// @Failure 404 {object} handler.ErrorResponse "Plan not found"
// @Router /api/admin/plans/{id} [patch]
func (ph *PlanHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var patch model.PlanPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		SendJSONError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	if patch.Name != nil && !patch.Name.Valid() {
		SendJSONError(w, http.StatusBadRequest, errors.New("invalid plan name"), "Plan name must be one of: free, starter, pro, team")
		return
	}
	if patch.ScanFrequency != nil && !patch.ScanFrequency.Valid() {
		SendJSONError(w, http.StatusBadRequest, errors.New("invalid scan frequency"), "Scan frequency must be one of: daily, weekly, monthly")
		return
	}
	if patch.MaxURLs != nil && *patch.MaxURLs < 0 {
		SendJSONError(w, http.StatusBadRequest, errors.New("invalid quota"), "maxUrls must not be negative")
		return
	}

	plan, err := ph.store.GetPlan(ctx, mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			SendJSONError(w, http.StatusNotFound, err, "Plan not found")
			return
		}
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to load plan")
		return
	}

	updated := patch.Apply(plan)
	if err := ph.store.UpdatePlan(ctx, updated); err != nil {
		if errors.Is(err, store.ErrPlanNameTaken) {
			SendJSONError(w, http.StatusConflict, err, "A plan with this name already exists")
			return
		}
		log.Error().Err(err).Str("plan_id", plan.ID).Msg("Failed to update plan")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to update plan")
		return
	}

	log.Info().Str("plan_id", plan.ID).Msg("Plan updated")
	SendJSONSuccess(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/admin/plans/{id}
// @Summary Delete a subscription plan
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Success 200 {object} handler.MessageResponse
// @Failure 404 {object} handler.ErrorResponse "Plan not found"
// @Router /api/admin/plans/{id} [delete]
func (ph *PlanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	planID := mux.Vars(r)["id"]
	if err := ph.store.DeletePlan(ctx, planID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			SendJSONError(w, http.StatusNotFound, err, "Plan not found")
			return
		}
		log.Error().Err(err).Str("plan_id", planID).Msg("Failed to delete plan")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to delete plan")
		return
	}

	log.Info().Str("plan_id", planID).Msg("Plan deleted")
	SendJSONSuccess(w, http.StatusOK, MessageResponse{Message: "Plan deleted"})
}
