package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"linkguard/auth"
	"linkguard/config"
	"linkguard/email"
	"linkguard/middleware"
	"linkguard/model"
	"linkguard/store"
	"linkguard/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// UserHandler handles user registration, login and profile management
type UserHandler struct {
	store         *store.Storage
	jwtManager    *auth.JWTManager
	emailService  *email.EmailService
	passwordRules config.PasswordRulesConfig
}

// NewUserHandler creates a new user handler
func NewUserHandler(storage *store.Storage, jwtManager *auth.JWTManager, emailService *email.EmailService, passwordRules config.PasswordRulesConfig) *UserHandler {
	return &UserHandler{
		store:         storage,
		jwtManager:    jwtManager,
		emailService:  emailService,
		passwordRules: passwordRules,
	}
}

// Register handles POST /api/auth/register
// @Summary Register a new user
// @Description Register with email and password, optionally attaching a subscription plan
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body model.RegisterRequest true "Registration data"
// @Success 201 {object} model.LoginResponse "Access token and user"
// @Failure 400 {object} handler.ErrorResponse "Invalid request"
// @Failure 409 {object} handler.ErrorResponse "Email already exists"
// @Failure 500 {object} handler.ErrorResponse "Internal server error"
// @Router /api/auth/register [post]
func (uh *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendJSONError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	req.Email = utils.NormalizeEmail(req.Email)
	if err := utils.ValidateEmail(req.Email); err != nil {
		SendJSONError(w, http.StatusBadRequest, err, "Please provide a valid email address")
		return
	}

	if err := utils.ValidatePassword(req.Password, uh.passwordRules); err != nil {
		SendJSONError(w, http.StatusBadRequest, err, utils.GetPasswordRequirements(uh.passwordRules))
		return
	}

	// Resolve the plan before creating the user so a bad plan ID fails fast
	if req.PlanID != "" {
		if _, err := uh.store.GetPlan(ctx, req.PlanID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				SendJSONError(w, http.StatusBadRequest, err, "Unknown subscription plan")
				return
			}
			log.Error().Err(err).Msg("Failed to resolve plan during registration")
			SendJSONError(w, http.StatusInternalServerError, err, "Failed to process registration")
			return
		}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("Failed to hash password")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to process registration")
		return
	}

	now := time.Now()
	user := model.User{
		ID:                 uuid.New().String(),
		Email:              req.Email,
		PasswordHash:       string(hashedPassword),
		SubscriptionStatus: model.StatusFree,
		Role:               model.RoleUser,
		PlanID:             req.PlanID,
		CreatedAt:          now,
		LastLoginAt:        now,
	}

	if err := uh.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			SendJSONError(w, http.StatusConflict, err, "An account with this email already exists. Please login.")
			return
		}
		log.Error().Err(err).Msg("Failed to save user")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to process registration")
		return
	}

	token, err := uh.jwtManager.Generate(user)
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate token")
		SendJSONError(w, http.StatusInternalServerError, err, "Registration succeeded but login failed, please login manually")
		return
	}

	log.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User registered")
	SendJSONSuccess(w, http.StatusCreated, model.LoginResponse{
		AccessToken: token,
		User:        user.ToResponse(),
	})
}

// Login handles POST /api/auth/login
// @Summary Login with email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body model.LoginRequest true "Login credentials"
// @Success 200 {object} model.LoginResponse "Access token and user"
// @Failure 400 {object} handler.ErrorResponse "Invalid request"
// @Failure 401 {object} handler.ErrorResponse "Invalid credentials"
// @Router /api/auth/login [post]
func (uh *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendJSONError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	req.Email = utils.NormalizeEmail(req.Email)
	user, err := uh.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			SendJSONError(w, http.StatusUnauthorized, errors.New("invalid credentials"), "Email or password is incorrect")
			return
		}
		log.Error().Err(err).Msg("Failed to look up user")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to process login")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		SendJSONError(w, http.StatusUnauthorized, errors.New("invalid credentials"), "Email or password is incorrect")
		return
	}

	user.LastLoginAt = time.Now()
	if err := uh.store.UpdateUser(ctx, user); err != nil {
		// Login still succeeds; the timestamp is best-effort
		log.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to record login time")
	}

	token, err := uh.jwtManager.Generate(user)
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate token")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to process login")
		return
	}

	log.Info().Str("user_id", user.ID).Msg("User logged in")
	SendJSONSuccess(w, http.StatusOK, model.LoginResponse{
		AccessToken: token,
		User:        user.ToResponse(),
	})
}

// Me handles GET /api/users/me
// @Summary Get the authenticated user's profile
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.UserResponse
// @Failure 404 {object} handler.ErrorResponse "User not found"
// @Router /api/users/me [get]
func (uh *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := uh.store.GetUser(ctx, middleware.GetUserID(r))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			SendJSONError(w, http.StatusNotFound, err, "User not found")
			return
		}
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to load user")
		return
	}

	SendJSONSuccess(w, http.StatusOK, user.ToResponse())
}

// Update handles PATCH /api/users/me
// @Summary Update the authenticated user's profile
// @Description Applies a partial update; omitted fields are left unchanged
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.UserPatch true "Fields to update"
// @Success 200 {object} model.UserResponse
// @Failure 400 {object} handler.ErrorResponse "Invalid request"
// @Failure 409 {object} handler.ErrorResponse "Email already in use"
// @Router /api/users/me [patch]
func (uh *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var patch model.UserPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		SendJSONError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	if patch.Email != nil {
		normalized := utils.NormalizeEmail(*patch.Email)
		if err := utils.ValidateEmail(normalized); err != nil {
			SendJSONError(w, http.StatusBadRequest, err, "Please provide a valid email address")
			return
		}
		patch.Email = &normalized
	}
	if patch.SubscriptionStatus != nil && !patch.SubscriptionStatus.Valid() {
		SendJSONError(w, http.StatusBadRequest, errors.New("invalid subscription status"), "Unknown subscription status")
		return
	}
	if patch.PlanID != nil && *patch.PlanID != "" {
		if _, err := uh.store.GetPlan(ctx, *patch.PlanID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				SendJSONError(w, http.StatusBadRequest, err, "Unknown subscription plan")
				return
			}
			SendJSONError(w, http.StatusInternalServerError, err, "Failed to resolve plan")
			return
		}
	}

	user, err := uh.store.GetUser(ctx, middleware.GetUserID(r))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			SendJSONError(w, http.StatusNotFound, err, "User not found")
			return
		}
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to load user")
		return
	}

	updated := patch.Apply(user)
	if err := uh.store.UpdateUser(ctx, updated); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			SendJSONError(w, http.StatusConflict, err, "An account with this email already exists")
			return
		}
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to update user")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to update user")
		return
	}

	log.Info().Str("user_id", user.ID).Msg("User profile updated")
	SendJSONSuccess(w, http.StatusOK, updated.ToResponse())
}

// ChangePassword handles POST /api/users/me/password
// @Summary Change the authenticated user's password
// @Description Requires the current password; sends a confirmation email on success
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.ChangePasswordRequest true "Current and new password"
// @Success 200 {object} handler.MessageResponse
// @Failure 400 {object} handler.ErrorResponse "Invalid request"
// @Failure 401 {object} handler.ErrorResponse "Current password incorrect"
// @Router /api/users/me/password [post]
func (uh *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req model.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendJSONError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	if err := utils.ValidatePassword(req.NewPassword, uh.passwordRules); err != nil {
		SendJSONError(w, http.StatusBadRequest, err, utils.GetPasswordRequirements(uh.passwordRules))
		return
	}

	user, err := uh.store.GetUser(ctx, middleware.GetUserID(r))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			SendJSONError(w, http.StatusNotFound, err, "User not found")
			return
		}
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to load user")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		SendJSONError(w, http.StatusUnauthorized, errors.New("invalid credentials"), "Current password is incorrect")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("Failed to hash password")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to change password")
		return
	}

	user.PasswordHash = string(hashed)
	if err := uh.store.UpdateUser(ctx, user); err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to store new password")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to change password")
		return
	}

	if err := uh.emailService.SendPasswordChangeAlert(user.Email); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to send password change alert")
	}

	log.Info().Str("user_id", user.ID).Msg("Password changed")
	SendJSONSuccess(w, http.StatusOK, MessageResponse{Message: "Password changed successfully"})
}
