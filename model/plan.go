package model

import "time"

// PlanName identifies one of the fixed subscription tiers.
type PlanName string

const (
	PlanFree    PlanName = "free"
	PlanStarter PlanName = "starter"
	PlanPro     PlanName = "pro"
	PlanTeam    PlanName = "team"
)

// Valid reports whether the name is one of the known tiers.
func (n PlanName) Valid() bool {
	switch n {
	case PlanFree, PlanStarter, PlanPro, PlanTeam:
		return true
	}
	return false
}

// ScanFrequency defines how often a plan re-probes its scans and the
// width of the recency window used for quota accounting.
type ScanFrequency string

const (
	FrequencyDaily   ScanFrequency = "daily"
	FrequencyWeekly  ScanFrequency = "weekly"
	FrequencyMonthly ScanFrequency = "monthly"
)

// Valid reports whether the frequency is one of the known windows.
func (f ScanFrequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// SubscriptionPlan represents a purchasable plan. Plans are shared by
// many users and read-only outside of admin updates.
type SubscriptionPlan struct {
	ID            string        `json:"id"` // UUID
	Name          PlanName      `json:"name"`
	Price         float64       `json:"price"`
	MaxURLs       int           `json:"maxUrls"`       // quota ceiling on recent scans
	ScanFrequency ScanFrequency `json:"scanFrequency"` // daily | weekly | monthly
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// PlanPatch carries a partial admin update for a plan. Nil fields are
// left untouched.
type PlanPatch struct {
	Name          *PlanName      `json:"name,omitempty"`
	Price         *float64       `json:"price,omitempty"`
	MaxURLs       *int           `json:"maxUrls,omitempty"`
	ScanFrequency *ScanFrequency `json:"scanFrequency,omitempty"`
}

// Apply returns a new plan snapshot with the non-nil patch fields
// applied. The input plan is not modified.
func (p PlanPatch) Apply(plan SubscriptionPlan) SubscriptionPlan {
	updated := plan
	if p.Name != nil {
		updated.Name = *p.Name
	}
	if p.Price != nil {
		updated.Price = *p.Price
	}
	if p.MaxURLs != nil {
		updated.MaxURLs = *p.MaxURLs
	}
	if p.ScanFrequency != nil {
		updated.ScanFrequency = *p.ScanFrequency
	}
	updated.UpdatedAt = time.Now()
	return updated
}

// CreatePlanRequest represents the admin request to create a plan
type CreatePlanRequest struct {
	Name          PlanName      `json:"name" example:"starter"`
	Price         float64       `json:"price" example:"9.99"`
	MaxURLs       int           `json:"maxUrls" example:"10"`
	ScanFrequency ScanFrequency `json:"scanFrequency" example:"weekly"`
}
