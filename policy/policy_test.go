package policy

import (
	"testing"
	"time"

	"linkguard/model"
)

func mkScan(id string, createdAt time.Time) model.Scan {
	return model.Scan{
		ID:        id,
		Input:     "https://example.com/" + id,
		Owner:     model.AccountOwner("user-1"),
		CreatedAt: createdAt,
	}
}

func mkPlan(maxURLs int, freq model.ScanFrequency) model.SubscriptionPlan {
	return model.SubscriptionPlan{
		ID:            "plan-1",
		Name:          model.PlanStarter,
		MaxURLs:       maxURLs,
		ScanFrequency: freq,
	}
}

func TestRecentScans_Daily(t *testing.T) {
	now := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		createdAt time.Time
		want      bool
	}{
		{"Same day earlier", time.Date(2025, 6, 15, 1, 0, 0, 0, time.UTC), true},
		{"Same day later", time.Date(2025, 6, 15, 23, 59, 0, 0, time.UTC), true},
		{"Previous day just before midnight", time.Date(2025, 6, 14, 23, 59, 59, 0, time.UTC), false},
		{"A week ago", now.AddDate(0, 0, -7), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recent := RecentScans(model.FrequencyDaily, []model.Scan{mkScan("a", tt.createdAt)}, now)
			if got := len(recent) == 1; got != tt.want {
				t.Errorf("RecentScans() included = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecentScans_Weekly(t *testing.T) {
	now := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		createdAt time.Time
		want      bool
	}{
		{"Yesterday", now.AddDate(0, 0, -1), true},
		{"Six days ago", now.AddDate(0, 0, -6), true},
		{"Exactly seven days ago", now.AddDate(0, 0, -7), false},
		{"Ten days ago", now.AddDate(0, 0, -10), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recent := RecentScans(model.FrequencyWeekly, []model.Scan{mkScan("a", tt.createdAt)}, now)
			if got := len(recent) == 1; got != tt.want {
				t.Errorf("RecentScans() included = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecentScans_Monthly(t *testing.T) {
	now := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		createdAt time.Time
		want      bool
	}{
		{"Twenty days ago", now.AddDate(0, 0, -20), true},
		{"One day short of a month", time.Date(2025, 5, 16, 14, 30, 0, 0, time.UTC), true},
		{"Exactly one month ago", time.Date(2025, 5, 15, 14, 30, 0, 0, time.UTC), false},
		{"Two months ago", now.AddDate(0, -2, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recent := RecentScans(model.FrequencyMonthly, []model.Scan{mkScan("a", tt.createdAt)}, now)
			if got := len(recent) == 1; got != tt.want {
				t.Errorf("RecentScans() included = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecentScans_PreservesOrder(t *testing.T) {
	now := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)
	scans := []model.Scan{
		mkScan("a", now.AddDate(0, 0, -1)),
		mkScan("b", now.AddDate(0, 0, -10)), // outside weekly window
		mkScan("c", now.AddDate(0, 0, -2)),
		mkScan("d", now.AddDate(0, 0, -3)),
	}

	recent := RecentScans(model.FrequencyWeekly, scans, now)
	want := []string{"a", "c", "d"}
	if len(recent) != len(want) {
		t.Fatalf("RecentScans() returned %d scans, want %d", len(recent), len(want))
	}
	for i, id := range want {
		if recent[i].ID != id {
			t.Errorf("recent[%d].ID = %s, want %s", i, recent[i].ID, id)
		}
	}
}

func TestRecentScans_Idempotent(t *testing.T) {
	// Filtering an already-filtered set must not shrink it further.
	now := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)
	scans := []model.Scan{
		mkScan("a", now.AddDate(0, 0, -1)),
		mkScan("b", now.AddDate(0, 0, -10)),
		mkScan("c", now.AddDate(0, 0, -5)),
	}

	once := RecentScans(model.FrequencyWeekly, scans, now)
	twice := RecentScans(model.FrequencyWeekly, once, now)
	if len(once) != len(twice) {
		t.Errorf("Second filter pass changed count: %d != %d", len(once), len(twice))
	}
}

func TestEvaluate_QuotaStrictlyLessThan(t *testing.T) {
	now := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name        string
		maxURLs     int
		recentCount int
		wantCanScan bool
	}{
		{"Under quota", 3, 2, true},
		{"At quota", 3, 3, false},
		{"Over quota", 3, 5, false},
		{"Zero quota always blocked", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scans := make([]model.Scan, 0, tt.recentCount)
			for i := 0; i < tt.recentCount; i++ {
				scans = append(scans, mkScan(string(rune('a'+i)), now.AddDate(0, 0, -1)))
			}

			_, canScan := Evaluate(mkPlan(tt.maxURLs, model.FrequencyWeekly), scans, now)
			if canScan != tt.wantCanScan {
				t.Errorf("Evaluate() canScan = %v, want %v", canScan, tt.wantCanScan)
			}
		})
	}
}

func TestEvaluate_OldScansDoNotCountAgainstQuota(t *testing.T) {
	// Weekly plan with maxUrls=2: two recent scans fill the quota, but a
	// third scan created ten days ago is outside the window, so it does
	// not tip the count over.
	now := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)
	scans := []model.Scan{
		mkScan("a", now.AddDate(0, 0, -1)),
		mkScan("b", now.AddDate(0, 0, -10)),
	}

	recent, canScan := Evaluate(mkPlan(2, model.FrequencyWeekly), scans, now)
	if len(recent) != 1 {
		t.Errorf("Evaluate() recent count = %d, want 1", len(recent))
	}
	if !canScan {
		t.Error("Evaluate() canScan = false, want true")
	}
}

func TestIsDue_NeverProbed(t *testing.T) {
	now := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)
	for _, freq := range []model.ScanFrequency{model.FrequencyDaily, model.FrequencyWeekly, model.FrequencyMonthly} {
		if !IsDue(freq, nil, now) {
			t.Errorf("IsDue(%s, nil) = false, want true", freq)
		}
	}
}

func TestIsDue_Daily(t *testing.T) {
	now := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		lastScan time.Time
		want     bool
	}{
		{"Probed earlier today", time.Date(2025, 6, 15, 1, 0, 0, 0, time.UTC), false},
		{"Probed yesterday late", time.Date(2025, 6, 14, 23, 0, 0, 0, time.UTC), true},
		{"Probed a week ago", now.AddDate(0, 0, -7), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDue(model.FrequencyDaily, &tt.lastScan, now); got != tt.want {
				t.Errorf("IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsDue_Weekly(t *testing.T) {
	now := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		lastScan time.Time
		want     bool
	}{
		{"Probed six days ago", now.AddDate(0, 0, -6), false},
		{"Probed exactly seven days ago", now.AddDate(0, 0, -7), true},
		{"Probed eight days ago", now.AddDate(0, 0, -8), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDue(model.FrequencyWeekly, &tt.lastScan, now); got != tt.want {
				t.Errorf("IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsDue_Monthly(t *testing.T) {
	now := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		lastScan time.Time
		want     bool
	}{
		{"Probed twenty days ago", now.AddDate(0, 0, -20), false},
		{"Probed exactly one month ago", time.Date(2025, 5, 15, 14, 30, 0, 0, time.UTC), true},
		{"Probed six weeks ago", now.AddDate(0, 0, -42), true},
		{"Probed one month ago but later in the day", time.Date(2025, 5, 15, 18, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDue(model.FrequencyMonthly, &tt.lastScan, now); got != tt.want {
				t.Errorf("IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsDue_MonthEndBoundary(t *testing.T) {
	// Jan 31 -> Feb 28: day-of-month has not caught up, so not yet due;
	// Mar 1 is past a full month.
	last := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)

	if IsDue(model.FrequencyMonthly, &last, time.Date(2025, 2, 28, 12, 0, 0, 0, time.UTC)) {
		t.Error("IsDue() on Feb 28 = true, want false")
	}
	if !IsDue(model.FrequencyMonthly, &last, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Error("IsDue() on Mar 1 = false, want true")
	}
}
