package model

import "time"

// SubscriptionStatus tracks where a user sits in the billing lifecycle.
type SubscriptionStatus string

const (
	StatusFree     SubscriptionStatus = "free"     // default for users not paying
	StatusTrial    SubscriptionStatus = "trial"    // trial period before payment starts
	StatusActive   SubscriptionStatus = "active"   // currently paying and within term
	StatusPastDue  SubscriptionStatus = "pastDue"  // payment failed, grace period
	StatusCanceled SubscriptionStatus = "canceled" // user or system canceled subscription
	StatusExpired  SubscriptionStatus = "expired"  // subscription ended, no auto-renew
)

// Valid reports whether the status is a known lifecycle state.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case StatusFree, StatusTrial, StatusActive, StatusPastDue, StatusCanceled, StatusExpired:
		return true
	}
	return false
}

// Role controls access to admin endpoints.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents a registered account (for internal storage)
type User struct {
	ID                 string             `json:"id"`    // UUID
	Email              string             `json:"email"` // unique
	PasswordHash       string             `json:"passwordHash"`
	SubscriptionStatus SubscriptionStatus `json:"subscriptionStatus"`
	Role               Role               `json:"role"`
	PlanID             string             `json:"planID,omitempty"` // reference to SubscriptionPlan, may be empty
	CreatedAt          time.Time          `json:"createdAt"`
	LastLoginAt        time.Time          `json:"lastLoginAt"`
}

// UserResponse represents user data for API responses (excludes sensitive fields)
type UserResponse struct {
	ID                 string             `json:"id"`
	Email              string             `json:"email"`
	SubscriptionStatus SubscriptionStatus `json:"subscriptionStatus"`
	Role               Role               `json:"role"`
	PlanID             string             `json:"planID,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	LastLoginAt        time.Time          `json:"lastLoginAt"`
}

// ToResponse converts User to UserResponse (removes sensitive data)
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:                 u.ID,
		Email:              u.Email,
		SubscriptionStatus: u.SubscriptionStatus,
		Role:               u.Role,
		PlanID:             u.PlanID,
		CreatedAt:          u.CreatedAt,
		LastLoginAt:        u.LastLoginAt,
	}
}

// UserPatch carries a partial profile update. Nil fields are left
// untouched; the patch is applied to a snapshot, never in place.
type UserPatch struct {
	Email              *string             `json:"email,omitempty"`
	SubscriptionStatus *SubscriptionStatus `json:"subscriptionStatus,omitempty"`
	PlanID             *string             `json:"planID,omitempty"`
}

// Apply returns a new user snapshot with the non-nil patch fields
// applied. The input user is not modified.
func (p UserPatch) Apply(user User) User {
	updated := user
	if p.Email != nil {
		updated.Email = *p.Email
	}
	if p.SubscriptionStatus != nil {
		updated.SubscriptionStatus = *p.SubscriptionStatus
	}
	if p.PlanID != nil {
		updated.PlanID = *p.PlanID
	}
	return updated
}

// RegisterRequest represents user registration data
type RegisterRequest struct {
	Email    string `json:"email" example:"user@example.com"`
	Password string `json:"password" example:"SecurePassword123"`
	PlanID   string `json:"planID,omitempty"`
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email" example:"user@example.com"`
	Password string `json:"password" example:"SecurePassword123"`
}

// LoginResponse represents successful login response
type LoginResponse struct {
	AccessToken string       `json:"accessToken"`
	User        UserResponse `json:"user"`
}

// ChangePasswordRequest represents password change (requires current password)
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" example:"OldPassword123"`
	NewPassword     string `json:"newPassword" example:"NewPassword123"`
}
