// Package store is the Redis-backed persistence layer. Entities are
// JSON documents under typed keys with hash/set indexes for lookups,
// one write per entity; no cross-entity transaction is ever required.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"linkguard/cache"
	"linkguard/model"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

const (
	userKeyPrefix   = "user:"       // user:<userID> -> User JSON
	userEmailPrefix = "user:email:" // user:email:<email> -> userID
	userIndexKey    = "user_index"  // hash: userID -> email

	planKeyPrefix = "plan:"      // plan:<planID> -> SubscriptionPlan JSON
	planIndexKey  = "plan_index" // hash: plan name -> planID

	scanKeyPrefix      = "scan:"       // scan:<scanID> -> Scan JSON
	userScansKeyPrefix = "user_scans:" // user_scans:<userID> -> set of scanIDs

	resultKeyPrefix = "result:" // result:<scanID> -> LinkResult JSON
)

var (
	ErrNotFound      = errors.New("entity not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrPlanNameTaken = errors.New("plan name already exists")
)

// UserWithPlan pairs a user with their resolved plan reference. Plan is
// nil when the user has no plan assigned.
type UserWithPlan struct {
	User model.User
	Plan *model.SubscriptionPlan
}

// Storage provides typed access to the Redis document store
type Storage struct {
	redis *redis.Client
	cache *cache.Cache
}

// New creates a storage layer; cacheClient may be nil to disable the
// read cache.
func New(redisClient *redis.Client, cacheClient *cache.Cache) *Storage {
	return &Storage{
		redis: redisClient,
		cache: cacheClient,
	}
}

// --- Users ---

// CreateUser persists a new user and its email index entry
func (s *Storage) CreateUser(ctx context.Context, user model.User) error {
	emailKey := userEmailPrefix + user.Email
	existing, err := s.redis.Exists(ctx, emailKey).Result()
	if err != nil {
		return err
	}
	if existing > 0 {
		return ErrEmailTaken
	}

	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, userKeyPrefix+user.ID, data, 0)
	pipe.Set(ctx, emailKey, user.ID, 0)
	pipe.HSet(ctx, userIndexKey, user.ID, user.Email)
	_, err = pipe.Exec(ctx)
	return err
}

// GetUser retrieves a user by ID
func (s *Storage) GetUser(ctx context.Context, userID string) (model.User, error) {
	var user model.User
	data, err := s.redis.Get(ctx, userKeyPrefix+userID).Bytes()
	if err == redis.Nil {
		return user, ErrNotFound
	} else if err != nil {
		return user, err
	}
	err = json.Unmarshal(data, &user)
	return user, err
}

// GetUserByEmail retrieves a user through the email index
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	userID, err := s.redis.Get(ctx, userEmailPrefix+email).Result()
	if err == redis.Nil {
		return model.User{}, ErrNotFound
	} else if err != nil {
		return model.User{}, err
	}
	return s.GetUser(ctx, userID)
}

// UpdateUser overwrites a user snapshot, keeping the email index in sync
func (s *Storage) UpdateUser(ctx context.Context, user model.User) error {
	current, err := s.GetUser(ctx, user.ID)
	if err != nil {
		return err
	}

	if current.Email != user.Email {
		ownerID, err := s.redis.Get(ctx, userEmailPrefix+user.Email).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil && ownerID != user.ID {
			return ErrEmailTaken
		}
	}

	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	pipe := s.redis.TxPipeline()
	if current.Email != user.Email {
		pipe.Del(ctx, userEmailPrefix+current.Email)
		pipe.Set(ctx, userEmailPrefix+user.Email, user.ID, 0)
		pipe.HSet(ctx, userIndexKey, user.ID, user.Email)
	}
	pipe.Set(ctx, userKeyPrefix+user.ID, data, 0)
	_, err = pipe.Exec(ctx)
	return err
}

// FindUsersWithPlan returns all users together with their resolved plan
// reference. A user whose plan document is missing is returned with a
// nil plan rather than dropped.
func (s *Storage) FindUsersWithPlan(ctx context.Context) ([]UserWithPlan, error) {
	index, err := s.redis.HGetAll(ctx, userIndexKey).Result()
	if err != nil {
		return nil, err
	}

	users := make([]UserWithPlan, 0, len(index))
	for userID := range index {
		user, err := s.GetUser(ctx, userID)
		if err == ErrNotFound {
			// Stale index entry; skip it
			log.Warn().Str("user_id", userID).Msg("User index entry without user document")
			continue
		} else if err != nil {
			return nil, err
		}

		entry := UserWithPlan{User: user}
		if user.PlanID != "" {
			plan, err := s.GetPlan(ctx, user.PlanID)
			if err == nil {
				entry.Plan = &plan
			} else if err != ErrNotFound {
				return nil, err
			}
		}
		users = append(users, entry)
	}
	return users, nil
}

// --- Plans ---

// CreatePlan persists a new subscription plan and its name index entry
func (s *Storage) CreatePlan(ctx context.Context, plan model.SubscriptionPlan) error {
	taken, err := s.redis.HExists(ctx, planIndexKey, string(plan.Name)).Result()
	if err != nil {
		return err
	}
	if taken {
		return ErrPlanNameTaken
	}

	data, err := json.Marshal(plan)
	if err != nil {
		return err
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, planKeyPrefix+plan.ID, data, 0)
	pipe.HSet(ctx, planIndexKey, string(plan.Name), plan.ID)
	_, err = pipe.Exec(ctx)
	return err
}

// GetPlan retrieves a plan by ID. Plans are read once per user per scan
// pass, so hits are served from the in-process cache when enabled.
func (s *Storage) GetPlan(ctx context.Context, planID string) (model.SubscriptionPlan, error) {
	cacheKey := planKeyPrefix + planID
	if cached, found := s.cache.Get(cacheKey); found {
		if plan, ok := cached.(model.SubscriptionPlan); ok {
			return plan, nil
		}
	}

	var plan model.SubscriptionPlan
	data, err := s.redis.Get(ctx, cacheKey).Bytes()
	if err == redis.Nil {
		return plan, ErrNotFound
	} else if err != nil {
		return plan, err
	}
	if err := json.Unmarshal(data, &plan); err != nil {
		return plan, err
	}

	s.cache.Set(cacheKey, plan, 1)
	return plan, nil
}

// GetPlanByName retrieves a plan through the name index
func (s *Storage) GetPlanByName(ctx context.Context, name model.PlanName) (model.SubscriptionPlan, error) {
	planID, err := s.redis.HGet(ctx, planIndexKey, string(name)).Result()
	if err == redis.Nil {
		return model.SubscriptionPlan{}, ErrNotFound
	} else if err != nil {
		return model.SubscriptionPlan{}, err
	}
	return s.GetPlan(ctx, planID)
}

// ListPlans returns every plan in the name index
func (s *Storage) ListPlans(ctx context.Context) ([]model.SubscriptionPlan, error) {
	index, err := s.redis.HGetAll(ctx, planIndexKey).Result()
	if err != nil {
		return nil, err
	}

	plans := make([]model.SubscriptionPlan, 0, len(index))
	for _, planID := range index {
		plan, err := s.GetPlan(ctx, planID)
		if err == ErrNotFound {
			continue
		} else if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// UpdatePlan overwrites a plan snapshot and invalidates its cache entry
func (s *Storage) UpdatePlan(ctx context.Context, plan model.SubscriptionPlan) error {
	current, err := s.GetPlan(ctx, plan.ID)
	if err != nil {
		return err
	}

	if current.Name != plan.Name {
		ownerID, err := s.redis.HGet(ctx, planIndexKey, string(plan.Name)).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil && ownerID != plan.ID {
			return ErrPlanNameTaken
		}
	}

	data, err := json.Marshal(plan)
	if err != nil {
		return err
	}

	pipe := s.redis.TxPipeline()
	if current.Name != plan.Name {
		pipe.HDel(ctx, planIndexKey, string(current.Name))
		pipe.HSet(ctx, planIndexKey, string(plan.Name), plan.ID)
	}
	pipe.Set(ctx, planKeyPrefix+plan.ID, data, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	s.cache.Delete(planKeyPrefix + plan.ID)
	return nil
}

// DeletePlan removes a plan and its index entry
func (s *Storage) DeletePlan(ctx context.Context, planID string) error {
	plan, err := s.GetPlan(ctx, planID)
	if err != nil {
		return err
	}

	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, planKeyPrefix+planID)
	pipe.HDel(ctx, planIndexKey, string(plan.Name))
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	s.cache.Delete(planKeyPrefix + planID)
	return nil
}

// --- Scans ---

// CreateScan persists a new scan; account-owned scans are added to the
// owner's scan set.
func (s *Storage) CreateScan(ctx context.Context, scan model.Scan) error {
	if err := scan.Owner.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(scan)
	if err != nil {
		return err
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, scanKeyPrefix+scan.ID, data, 0)
	if scan.Owner.IsAccount() {
		pipe.SAdd(ctx, userScansKeyPrefix+scan.Owner.UserID, scan.ID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// GetScan retrieves a scan by ID
func (s *Storage) GetScan(ctx context.Context, scanID string) (model.Scan, error) {
	var scan model.Scan
	data, err := s.redis.Get(ctx, scanKeyPrefix+scanID).Bytes()
	if err == redis.Nil {
		return scan, ErrNotFound
	} else if err != nil {
		return scan, err
	}
	err = json.Unmarshal(data, &scan)
	return scan, err
}

// ScansOf returns all scans registered by a user
func (s *Storage) ScansOf(ctx context.Context, userID string) ([]model.Scan, error) {
	scanIDs, err := s.redis.SMembers(ctx, userScansKeyPrefix+userID).Result()
	if err != nil {
		return nil, err
	}

	scans := make([]model.Scan, 0, len(scanIDs))
	for _, scanID := range scanIDs {
		scan, err := s.GetScan(ctx, scanID)
		if err == ErrNotFound {
			log.Warn().Str("scan_id", scanID).Str("user_id", userID).Msg("Scan set entry without scan document")
			continue
		} else if err != nil {
			return nil, err
		}
		scans = append(scans, scan)
	}
	return scans, nil
}

// DeleteScan removes a scan, its set membership and its link result
func (s *Storage) DeleteScan(ctx context.Context, scanID string) error {
	scan, err := s.GetScan(ctx, scanID)
	if err != nil {
		return err
	}

	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, scanKeyPrefix+scanID)
	pipe.Del(ctx, resultKeyPrefix+scanID)
	if scan.Owner.IsAccount() {
		pipe.SRem(ctx, userScansKeyPrefix+scan.Owner.UserID, scanID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	s.cache.Delete(resultKeyPrefix + scanID)
	return nil
}

// --- Link results ---

// UpsertLinkResult replaces the latest probe outcome for a scan. There
// is at most one result per scan; history is never accumulated.
func (s *Storage) UpsertLinkResult(ctx context.Context, result model.LinkResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, resultKeyPrefix+result.ScanID, data, 0).Err(); err != nil {
		return err
	}
	s.cache.Delete(resultKeyPrefix + result.ScanID)
	return nil
}

// GetLinkResult retrieves the latest probe outcome for a scan
func (s *Storage) GetLinkResult(ctx context.Context, scanID string) (model.LinkResult, error) {
	cacheKey := resultKeyPrefix + scanID
	if cached, found := s.cache.Get(cacheKey); found {
		if result, ok := cached.(model.LinkResult); ok {
			return result, nil
		}
	}

	var result model.LinkResult
	data, err := s.redis.Get(ctx, cacheKey).Bytes()
	if err == redis.Nil {
		return result, ErrNotFound
	} else if err != nil {
		return result, err
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, err
	}

	s.cache.Set(cacheKey, result, 1)
	return result, nil
}

// UpdateScanLastProbed stamps a scan's lastScan timestamp
func (s *Storage) UpdateScanLastProbed(ctx context.Context, scanID string, probedAt time.Time) error {
	scan, err := s.GetScan(ctx, scanID)
	if err != nil {
		return err
	}
	scan.LastScan = &probedAt

	data, err := json.Marshal(scan)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, scanKeyPrefix+scanID, data, 0).Err()
}

// RecordProbe persists a probe outcome and the scan's lastScan stamp in
// one transaction, so a scan can never carry a result newer than its
// own lastScan.
func (s *Storage) RecordProbe(ctx context.Context, scan model.Scan, result model.LinkResult, probedAt time.Time) error {
	scan.LastScan = &probedAt

	scanData, err := json.Marshal(scan)
	if err != nil {
		return err
	}
	resultData, err := json.Marshal(result)
	if err != nil {
		return err
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, scanKeyPrefix+scan.ID, scanData, 0)
	pipe.Set(ctx, resultKeyPrefix+scan.ID, resultData, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	s.cache.Delete(resultKeyPrefix + scan.ID)
	return nil
}
