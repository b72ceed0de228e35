package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"linkguard/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func setupTestStorage(t *testing.T) (*Storage, *miniredis.Miniredis) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	// nil cache: the storage layer must work without the read cache
	return New(client, nil), s
}

func testUser(id, email string) model.User {
	return model.User{
		ID:                 id,
		Email:              email,
		PasswordHash:       "$2a$10$fakehash",
		SubscriptionStatus: model.StatusActive,
		Role:               model.RoleUser,
		CreatedAt:          time.Now().UTC().Truncate(time.Second),
	}
}

func testPlan(id string, name model.PlanName) model.SubscriptionPlan {
	return model.SubscriptionPlan{
		ID:            id,
		Name:          name,
		Price:         9.99,
		MaxURLs:       10,
		ScanFrequency: model.FrequencyWeekly,
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
	}
}

func TestCreateAndGetUser(t *testing.T) {
	storage, _ := setupTestStorage(t)
	ctx := context.Background()

	user := testUser("u1", "alice@example.com")
	if err := storage.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	got, err := storage.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if got.Email != user.Email {
		t.Errorf("GetUser().Email = %s, want %s", got.Email, user.Email)
	}

	byEmail, err := storage.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if byEmail.ID != "u1" {
		t.Errorf("GetUserByEmail().ID = %s, want u1", byEmail.ID)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	storage, _ := setupTestStorage(t)
	ctx := context.Background()

	if err := storage.CreateUser(ctx, testUser("u1", "alice@example.com")); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	err := storage.CreateUser(ctx, testUser("u2", "alice@example.com"))
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("CreateUser() error = %v, want ErrEmailTaken", err)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	storage, _ := setupTestStorage(t)

	_, err := storage.GetUser(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateUser_EmailIndexSync(t *testing.T) {
	storage, _ := setupTestStorage(t)
	ctx := context.Background()

	user := testUser("u1", "old@example.com")
	if err := storage.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	user.Email = "new@example.com"
	if err := storage.UpdateUser(ctx, user); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}

	if _, err := storage.GetUserByEmail(ctx, "old@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Old email still resolves, error = %v, want ErrNotFound", err)
	}
	got, err := storage.GetUserByEmail(ctx, "new@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail(new) error = %v", err)
	}
	if got.ID != "u1" {
		t.Errorf("GetUserByEmail(new).ID = %s, want u1", got.ID)
	}
}

func TestUpdateUser_EmailConflict(t *testing.T) {
	storage, _ := setupTestStorage(t)
	ctx := context.Background()

	if err := storage.CreateUser(ctx, testUser("u1", "alice@example.com")); err != nil {
		t.Fatalf("CreateUser(u1) error = %v", err)
	}
	bob := testUser("u2", "bob@example.com")
	if err := storage.CreateUser(ctx, bob); err != nil {
		t.Fatalf("CreateUser(u2) error = %v", err)
	}

	bob.Email = "alice@example.com"
	if err := storage.UpdateUser(ctx, bob); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("UpdateUser() error = %v, want ErrEmailTaken", err)
	}
}

func TestFindUsersWithPlan(t *testing.T) {
	storage, _ := setupTestStorage(t)
	ctx := context.Background()

	plan := testPlan("p1", model.PlanStarter)
	if err := storage.CreatePlan(ctx, plan); err != nil {
		t.Fatalf("CreatePlan() error = %v", err)
	}

	withPlan := testUser("u1", "alice@example.com")
	withPlan.PlanID = "p1"
	withoutPlan := testUser("u2", "bob@example.com")

	for _, u := range []model.User{withPlan, withoutPlan} {
		if err := storage.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser(%s) error = %v", u.ID, err)
		}
	}

	users, err := storage.FindUsersWithPlan(ctx)
	if err != nil {
		t.Fatalf("FindUsersWithPlan() error = %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("FindUsersWithPlan() returned %d users, want 2", len(users))
	}

	byID := make(map[string]UserWithPlan)
	for _, uw := range users {
		byID[uw.User.ID] = uw
	}
	if byID["u1"].Plan == nil || byID["u1"].Plan.ID != "p1" {
		t.Error("User u1 should carry plan p1")
	}
	if byID["u2"].Plan != nil {
		t.Error("User u2 should carry a nil plan")
	}
}

func TestFindUsersWithPlan_MissingPlanDocument(t *testing.T) {
	storage, _ := setupTestStorage(t)
	ctx := context.Background()

	user := testUser("u1", "alice@example.com")
	user.PlanID = "ghost-plan"
	if err := storage.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	users, err := storage.FindUsersWithPlan(ctx)
	if err != nil {
		t.Fatalf("FindUsersWithPlan() error = %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("FindUsersWithPlan() returned %d users, want 1", len(users))
	}
	if users[0].Plan != nil {
		t.Error("Plan should be nil when the plan document is missing")
	}
}

func TestPlanLifecycle(t *testing.T) {
	storage, _ := setupTestStorage(t)
	ctx := context.Background()

	plan := testPlan("p1", model.PlanPro)
	if err := storage.CreatePlan(ctx, plan); err != nil {
		t.Fatalf("CreatePlan() error = %v", err)
	}

	// Duplicate name rejected
	dup := testPlan("p2", model.PlanPro)
	if err := storage.CreatePlan(ctx, dup); !errors.Is(err, ErrPlanNameTaken) {
		t.Errorf("CreatePlan(duplicate name) error = %v, want ErrPlanNameTaken", err)
	}

	byName, err := storage.GetPlanByName(ctx, model.PlanPro)
	if err != nil {
		t.Fatalf("GetPlanByName() error = %v", err)
	}
	if byName.ID != "p1" {
		t.Errorf("GetPlanByName().ID = %s, want p1", byName.ID)
	}

	// Rename keeps the index in sync
	plan.Name = model.PlanTeam
	if err := storage.UpdatePlan(ctx, plan); err != nil {
		t.Fatalf("UpdatePlan() error = %v", err)
	}
	if _, err := storage.GetPlanByName(ctx, model.PlanPro); !errors.Is(err, ErrNotFound) {
		t.Errorf("Old name still resolves, error = %v, want ErrNotFound", err)
	}
	if _, err := storage.GetPlanByName(ctx, model.PlanTeam); err != nil {
		t.Errorf("GetPlanByName(new name) error = %v", err)
	}

	plans, err := storage.ListPlans(ctx)
	if err != nil {
		t.Fatalf("ListPlans() error = %v", err)
	}
	if len(plans) != 1 {
		t.Errorf("ListPlans() returned %d plans, want 1", len(plans))
	}

	if err := storage.DeletePlan(ctx, "p1"); err != nil {
		t.Fatalf("DeletePlan() error = %v", err)
	}
	if _, err := storage.GetPlan(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPlan(deleted) error = %v, want ErrNotFound", err)
	}
}

func TestCreateScan_OwnerValidation(t *testing.T) {
	storage, _ := setupTestStorage(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		owner   model.ScanOwner
		wantErr error
	}{
		{"Account owner", model.AccountOwner("u1"), nil},
		{"Anonymous owner", model.AnonymousOwner("a@example.com"), nil},
		{"No owner", model.ScanOwner{}, model.ErrNoOwner},
		{"Both identities", model.ScanOwner{UserID: "u1", Email: "a@example.com"}, model.ErrAmbiguousOwner},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scan := model.Scan{
				ID:        "s" + string(rune('0'+i)),
				Input:     "https://example.com",
				Owner:     tt.owner,
				CreatedAt: time.Now(),
			}
			err := storage.CreateScan(ctx, scan)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateScan() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestScansOf(t *testing.T) {
	storage, _ := setupTestStorage(t)
	ctx := context.Background()

	for _, id := range []string{"s1", "s2"} {
		scan := model.Scan{
			ID:        id,
			Input:     "https://example.com/" + id,
			Owner:     model.AccountOwner("u1"),
			CreatedAt: time.Now(),
		}
		if err := storage.CreateScan(ctx, scan); err != nil {
			t.Fatalf("CreateScan(%s) error = %v", id, err)
		}
	}

	// Anonymous scans never join a user's scan set
	anon := model.Scan{
		ID:        "s3",
		Input:     "https://example.com/s3",
		Owner:     model.AnonymousOwner("a@example.com"),
		CreatedAt: time.Now(),
	}
	if err := storage.CreateScan(ctx, anon); err != nil {
		t.Fatalf("CreateScan(anonymous) error = %v", err)
	}

	scans, err := storage.ScansOf(ctx, "u1")
	if err != nil {
		t.Fatalf("ScansOf() error = %v", err)
	}
	if len(scans) != 2 {
		t.Errorf("ScansOf() returned %d scans, want 2", len(scans))
	}
}

func TestDeleteScan_CascadesResult(t *testing.T) {
	storage, _ := setupTestStorage(t)
	ctx := context.Background()

	scan := model.Scan{
		ID:        "s1",
		Input:     "https://example.com",
		Owner:     model.AccountOwner("u1"),
		CreatedAt: time.Now(),
	}
	if err := storage.CreateScan(ctx, scan); err != nil {
		t.Fatalf("CreateScan() error = %v", err)
	}
	result := model.LinkResult{ScanID: "s1", StatusCode: 200, IsAccessible: true, ResponseTime: 42, CheckedAt: time.Now()}
	if err := storage.UpsertLinkResult(ctx, result); err != nil {
		t.Fatalf("UpsertLinkResult() error = %v", err)
	}

	if err := storage.DeleteScan(ctx, "s1"); err != nil {
		t.Fatalf("DeleteScan() error = %v", err)
	}

	if _, err := storage.GetScan(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetScan(deleted) error = %v, want ErrNotFound", err)
	}
	if _, err := storage.GetLinkResult(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetLinkResult(deleted) error = %v, want ErrNotFound", err)
	}
	scans, err := storage.ScansOf(ctx, "u1")
	if err != nil {
		t.Fatalf("ScansOf() error = %v", err)
	}
	if len(scans) != 0 {
		t.Errorf("ScansOf() returned %d scans after delete, want 0", len(scans))
	}
}

func TestUpsertLinkResult_ReplacesPrevious(t *testing.T) {
	storage, _ := setupTestStorage(t)
	ctx := context.Background()

	first := model.LinkResult{ScanID: "s1", StatusCode: 200, IsAccessible: true, ResponseTime: 10, CheckedAt: time.Now()}
	if err := storage.UpsertLinkResult(ctx, first); err != nil {
		t.Fatalf("UpsertLinkResult() error = %v", err)
	}

	second := model.LinkResult{ScanID: "s1", StatusCode: 503, IsAccessible: false, ResponseTime: 900, CheckedAt: time.Now()}
	if err := storage.UpsertLinkResult(ctx, second); err != nil {
		t.Fatalf("UpsertLinkResult() error = %v", err)
	}

	got, err := storage.GetLinkResult(ctx, "s1")
	if err != nil {
		t.Fatalf("GetLinkResult() error = %v", err)
	}
	if got.StatusCode != 503 || got.IsAccessible {
		t.Errorf("GetLinkResult() = %+v, want the replacement result", got)
	}
}

func TestRecordProbe(t *testing.T) {
	storage, _ := setupTestStorage(t)
	ctx := context.Background()

	scan := model.Scan{
		ID:        "s1",
		Input:     "https://example.com",
		Owner:     model.AccountOwner("u1"),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := storage.CreateScan(ctx, scan); err != nil {
		t.Fatalf("CreateScan() error = %v", err)
	}

	probedAt := time.Now().UTC().Truncate(time.Second)
	result := model.LinkResult{ScanID: "s1", StatusCode: 404, IsAccessible: false, ResponseTime: 120, CheckedAt: probedAt}
	if err := storage.RecordProbe(ctx, scan, result, probedAt); err != nil {
		t.Fatalf("RecordProbe() error = %v", err)
	}

	gotScan, err := storage.GetScan(ctx, "s1")
	if err != nil {
		t.Fatalf("GetScan() error = %v", err)
	}
	if gotScan.LastScan == nil || !gotScan.LastScan.Equal(probedAt) {
		t.Errorf("GetScan().LastScan = %v, want %v", gotScan.LastScan, probedAt)
	}

	gotResult, err := storage.GetLinkResult(ctx, "s1")
	if err != nil {
		t.Fatalf("GetLinkResult() error = %v", err)
	}
	if gotResult.StatusCode != 404 {
		t.Errorf("GetLinkResult().StatusCode = %d, want 404", gotResult.StatusCode)
	}
}
