package model

import (
	"errors"
	"time"
)

var (
	// ErrNoOwner is returned when a scan carries neither an account nor an email.
	ErrNoOwner = errors.New("scan must belong to a user account or a bare email")
	// ErrAmbiguousOwner is returned when a scan carries both.
	ErrAmbiguousOwner = errors.New("scan cannot belong to both a user account and a bare email")
)

// ScanOwner identifies who a scan belongs to: either a registered user
// account or a bare email for account-less scans. Exactly one of the
// two is set; use AccountOwner or AnonymousOwner to construct it.
type ScanOwner struct {
	UserID string `json:"userID,omitempty"`
	Email  string `json:"email,omitempty"`
}

// AccountOwner builds an owner backed by a registered user.
func AccountOwner(userID string) ScanOwner {
	return ScanOwner{UserID: userID}
}

// AnonymousOwner builds an owner backed by a bare email address.
func AnonymousOwner(email string) ScanOwner {
	return ScanOwner{Email: email}
}

// IsAccount reports whether the owner is a registered user.
func (o ScanOwner) IsAccount() bool {
	return o.UserID != ""
}

// Validate enforces the exactly-one-identity invariant.
func (o ScanOwner) Validate() error {
	switch {
	case o.UserID == "" && o.Email == "":
		return ErrNoOwner
	case o.UserID != "" && o.Email != "":
		return ErrAmbiguousOwner
	}
	return nil
}

// Scan is a registered URL monitored for reachability.
type Scan struct {
	ID        string     `json:"id"` // UUID
	Input     string     `json:"input"`
	Owner     ScanOwner  `json:"owner"`
	CreatedAt time.Time  `json:"createdAt"`
	LastScan  *time.Time `json:"lastScan,omitempty"` // most recent probe, unset until first scheduled probe
}

// LinkResult is the outcome of the most recent probe of a scan. At most
// one exists per scan; it is replaced on every probe.
type LinkResult struct {
	ScanID       string    `json:"scanID"`
	StatusCode   int       `json:"statusCode"` // 0 means unreachable / network error
	IsAccessible bool      `json:"isAccessible"`
	ResponseTime int64     `json:"responseTime"` // milliseconds
	CheckedAt    time.Time `json:"checkedAt"`
}

// CreateScanRequest represents an authenticated scan registration
type CreateScanRequest struct {
	Input string `json:"input" example:"https://example.com"`
}

// CreateScanWithoutAccountRequest represents an account-less scan registration
type CreateScanWithoutAccountRequest struct {
	Input string `json:"input" example:"https://example.com"`
	Email string `json:"email" example:"user@example.com"`
}

// ScanWithResult bundles a scan with its latest probe outcome for API
// responses; Result is nil when the scan has never been probed.
type ScanWithResult struct {
	Scan   Scan        `json:"scan"`
	Result *LinkResult `json:"result,omitempty"`
}
