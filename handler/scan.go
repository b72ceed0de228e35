package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"linkguard/email"
	"linkguard/middleware"
	"linkguard/model"
	"linkguard/probe"
	"linkguard/store"
	"linkguard/utils"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// Prober checks a single URL and reports the outcome.
type Prober interface {
	Probe(ctx context.Context, url string) probe.Result
}

// ScanHandler handles scan registration and queries
type ScanHandler struct {
	store        *store.Storage
	prober       Prober
	emailService *email.EmailService
}

// NewScanHandler creates a new scan handler
func NewScanHandler(storage *store.Storage, prober Prober, emailService *email.EmailService) *ScanHandler {
	return &ScanHandler{
		store:        storage,
		prober:       prober,
		emailService: emailService,
	}
}

// firstProbe runs the immediate probe after registration and stores the
// result. The scan's last-probed timestamp is deliberately left unset:
// only scheduled passes advance it.
func (sh *ScanHandler) firstProbe(ctx context.Context, scan model.Scan) model.LinkResult {
	outcome := sh.prober.Probe(ctx, scan.Input)
	result := model.LinkResult{
		ScanID:       scan.ID,
		StatusCode:   outcome.StatusCode,
		IsAccessible: outcome.IsAccessible,
		ResponseTime: outcome.ResponseTime,
		CheckedAt:    time.Now(),
	}

	if err := sh.store.UpsertLinkResult(ctx, result); err != nil {
		log.Error().Err(err).Str("scan_id", scan.ID).Msg("Failed to store first probe result")
	}
	return result
}

// Create handles POST /api/scans
// @Summary Register a URL for monitoring
// @Description Registers a scan for the authenticated user and probes it immediately
// @Tags Scans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.CreateScanRequest true "URL to monitor"
// @Success 201 {object} model.ScanWithResult
// @Failure 400 {object} handler.ErrorResponse "Invalid URL"
// @Router /api/scans [post]
func (sh *ScanHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	var req model.CreateScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendJSONError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	if err := utils.ValidateURL(req.Input); err != nil {
		SendJSONError(w, http.StatusBadRequest, err, "Please provide a valid http or https URL")
		return
	}

	scan := model.Scan{
		ID:        uuid.New().String(),
		Input:     req.Input,
		Owner:     model.AccountOwner(middleware.GetUserID(r)),
		CreatedAt: time.Now(),
	}

	if err := sh.store.CreateScan(ctx, scan); err != nil {
		log.Error().Err(err).Msg("Failed to create scan")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to register scan")
		return
	}

	result := sh.firstProbe(ctx, scan)

	log.Info().Str("scan_id", scan.ID).Str("user_id", scan.Owner.UserID).Str("url", scan.Input).Msg("Scan registered")
	SendJSONSuccess(w, http.StatusCreated, model.ScanWithResult{Scan: scan, Result: &result})
}

// CreateWithoutAccount handles POST /api/scans/anonymous
// @Summary Register a one-off scan without an account
// @Description Probes the URL immediately and emails the outcome to the given address
// @Tags Scans
// @Accept json
// @Produce json
// @Param request body model.CreateScanWithoutAccountRequest true "URL and report email"
// @Success 201 {object} model.ScanWithResult
// @Failure 400 {object} handler.ErrorResponse "Invalid URL or email"
// @Router /api/scans/anonymous [post]
func (sh *ScanHandler) CreateWithoutAccount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	var req model.CreateScanWithoutAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendJSONError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	if err := utils.ValidateURL(req.Input); err != nil {
		SendJSONError(w, http.StatusBadRequest, err, "Please provide a valid http or https URL")
		return
	}
	req.Email = utils.NormalizeEmail(req.Email)
	if err := utils.ValidateEmail(req.Email); err != nil {
		SendJSONError(w, http.StatusBadRequest, err, "Please provide a valid email address")
		return
	}

	scan := model.Scan{
		ID:        uuid.New().String(),
		Input:     req.Input,
		Owner:     model.AnonymousOwner(req.Email),
		CreatedAt: time.Now(),
	}

	if err := sh.store.CreateScan(ctx, scan); err != nil {
		log.Error().Err(err).Msg("Failed to create scan")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to register scan")
		return
	}

	result := sh.firstProbe(ctx, scan)

	if err := sh.emailService.SendSingleScanReport(req.Email, scan, result); err != nil {
		log.Warn().Err(err).Str("scan_id", scan.ID).Msg("Failed to send scan report")
	}

	log.Info().Str("scan_id", scan.ID).Str("url", scan.Input).Msg("Anonymous scan registered")
	SendJSONSuccess(w, http.StatusCreated, model.ScanWithResult{Scan: scan, Result: &result})
}

// canAccess reports whether the caller owns the scan or is an admin.
func canAccess(r *http.Request, scan model.Scan) bool {
	if middleware.GetUserRole(r) == model.RoleAdmin {
		return true
	}
	return scan.Owner.IsAccount() && scan.Owner.UserID == middleware.GetUserID(r)
}

// Get handles GET /api/scans/{id}
// @Summary Get a scan with its latest probe result
// @Tags Scans
// @Produce json
// @Security BearerAuth
// @Param id path string true "Scan ID"
// @Success 200 {object} model.ScanWithResult
// @Failure 404 {object} handler.ErrorResponse "Scan not found"
// @Router /api/scans/{id} [get]
func (sh *ScanHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	scan, err := sh.store.GetScan(ctx, mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			SendJSONError(w, http.StatusNotFound, err, "Scan not found")
			return
		}
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to load scan")
		return
	}

	if !canAccess(r, scan) {
		// Hide existence from non-owners
		SendJSONError(w, http.StatusNotFound, store.ErrNotFound, "Scan not found")
		return
	}

	response := model.ScanWithResult{Scan: scan}
	if result, err := sh.store.GetLinkResult(ctx, scan.ID); err == nil {
		response.Result = &result
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Warn().Err(err).Str("scan_id", scan.ID).Msg("Failed to load probe result")
	}

	SendJSONSuccess(w, http.StatusOK, response)
}

// List handles GET /api/scans
// @Summary List the authenticated user's scans with latest results
// @Tags Scans
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.ScanWithResult
// @Router /api/scans [get]
func (sh *ScanHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	scans, err := sh.store.ScansOf(ctx, middleware.GetUserID(r))
	if err != nil {
		log.Error().Err(err).Msg("Failed to list scans")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to list scans")
		return
	}

	response := make([]model.ScanWithResult, 0, len(scans))
	for _, scan := range scans {
		item := model.ScanWithResult{Scan: scan}
		if result, err := sh.store.GetLinkResult(ctx, scan.ID); err == nil {
			item.Result = &result
		}
		response = append(response, item)
	}

	SendJSONSuccess(w, http.StatusOK, response)
}

// Delete handles DELETE /api/scans/{id}
// @Summary Delete a scan and its probe result
// @Tags Scans
// @Produce json
// @Security BearerAuth
// @Param id path string true "Scan ID"
// @Success 200 {object} handler.MessageResponse
// @Failure 404 {object} handler.ErrorResponse "Scan not found"
// @Router /api/scans/{id} [delete]
func (sh *ScanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	scan, err := sh.store.GetScan(ctx, mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			SendJSONError(w, http.StatusNotFound, err, "Scan not found")
			return
		}
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to load scan")
		return
	}

	if !canAccess(r, scan) {
		SendJSONError(w, http.StatusNotFound, store.ErrNotFound, "Scan not found")
		return
	}

	if err := sh.store.DeleteScan(ctx, scan.ID); err != nil {
		log.Error().Err(err).Str("scan_id", scan.ID).Msg("Failed to delete scan")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to delete scan")
		return
	}

	log.Info().Str("scan_id", scan.ID).Msg("Scan deleted")
	SendJSONSuccess(w, http.StatusOK, MessageResponse{Message: "Scan deleted"})
}
