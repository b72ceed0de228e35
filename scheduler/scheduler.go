package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"linkguard/email"
	"linkguard/metrics"
	"linkguard/model"
	"linkguard/policy"
	"linkguard/probe"
	"linkguard/store"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

var (
	// ErrQuotaExceeded is returned by RunUser when the user's plan
	// quota leaves no room for another probe this window.
	ErrQuotaExceeded = errors.New("scan quota exceeded for the current window")

	// ErrPassInProgress is returned when a pass is requested while
	// another one is still running.
	ErrPassInProgress = errors.New("scan pass already in progress")
)

// Prober checks a single URL and reports the outcome.
type Prober interface {
	Probe(ctx context.Context, url string) probe.Result
}

// Notifier delivers a per-user report after a pass.
type Notifier interface {
	SendScanReport(toEmail string, report email.Report) error
}

// Orchestrator runs periodic scan passes over all users, enforcing
// each user's plan quota and scan frequency before probing.
type Orchestrator struct {
	store    *store.Storage
	prober   Prober
	notifier Notifier
	workers  int

	running atomic.Bool
	cron    *cron.Cron
}

// New creates an orchestrator. workers bounds how many users are
// processed concurrently within one pass.
func New(storage *store.Storage, prober Prober, notifier Notifier, workers int) *Orchestrator {
	if workers <= 0 {
		workers = 1
	}
	return &Orchestrator{
		store:    storage,
		prober:   prober,
		notifier: notifier,
		workers:  workers,
	}
}

// userSummary is the outcome of one user's slice of a pass.
type userSummary struct {
	probed       int
	inaccessible int
	skippedQuota bool
}

// RunPass executes one full scan pass: every user with a resolvable
// plan is evaluated against quota and frequency, due scans are probed,
// and a report is emailed when at least one probe ran. Users are
// isolated from each other: one user's failure never aborts the pass.
func (o *Orchestrator) RunPass(ctx context.Context, now time.Time) error {
	if !o.running.CompareAndSwap(false, true) {
		log.Warn().Msg("Scan pass requested while another is running, skipping")
		return ErrPassInProgress
	}
	defer o.running.Store(false)

	started := time.Now()
	users, err := o.store.FindUsersWithPlan(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load users, aborting scan pass")
		return err
	}

	log.Info().Int("users", len(users)).Msg("Starting scan pass")

	var (
		wg      sync.WaitGroup
		sem     = make(chan struct{}, o.workers)
		mu      sync.Mutex
		probed  int
		skipped int
	)

	for _, uw := range users {
		wg.Add(1)
		sem <- struct{}{}
		go func(uw store.UserWithPlan) {
			defer wg.Done()
			defer func() { <-sem }()

			summary := o.runUser(ctx, uw, now)

			mu.Lock()
			probed += summary.probed
			if summary.skippedQuota {
				skipped++
			}
			mu.Unlock()
		}(uw)
	}
	wg.Wait()

	metrics.RecordPass(time.Since(started))
	log.Info().
		Int("users", len(users)).
		Int("probed", probed).
		Int("quota_skipped", skipped).
		Dur("elapsed", time.Since(started)).
		Msg("Scan pass complete")
	return nil
}

// RunUser runs the pass logic for a single user on demand. Unlike the
// periodic pass it surfaces quota exhaustion to the caller.
func (o *Orchestrator) RunUser(ctx context.Context, userID string, now time.Time) error {
	user, err := o.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	var plan *model.SubscriptionPlan
	if user.PlanID != "" {
		p, err := o.store.GetPlan(ctx, user.PlanID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err == nil {
			plan = &p
		}
	}

	uw := store.UserWithPlan{User: user, Plan: plan}
	summary := o.runUser(ctx, uw, now)
	if summary.skippedQuota {
		return ErrQuotaExceeded
	}
	return nil
}

func (o *Orchestrator) runUser(ctx context.Context, uw store.UserWithPlan, now time.Time) userSummary {
	if uw.Plan == nil {
		log.Warn().Str("user_id", uw.User.ID).Msg("User has no resolvable plan, skipping")
		return userSummary{}
	}

	scans, err := o.store.ScansOf(ctx, uw.User.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", uw.User.ID).Msg("Failed to load scans, skipping user")
		return userSummary{}
	}
	if len(scans) == 0 {
		return userSummary{}
	}

	_, canScan := policy.Evaluate(*uw.Plan, scans, now)
	if !canScan {
		metrics.RecordQuotaSkip()
		log.Info().
			Str("user_id", uw.User.ID).
			Str("plan", string(uw.Plan.Name)).
			Int("max_urls", uw.Plan.MaxURLs).
			Msg("Quota reached, skipping all scans for user")
		return userSummary{skippedQuota: true}
	}

	summary := userSummary{}
	report := email.Report{}
	for _, scan := range scans {
		if !policy.IsDue(uw.Plan.ScanFrequency, scan.LastScan, now) {
			continue
		}

		result := o.probeScan(ctx, scan, now)
		summary.probed++
		report.Total++
		if !result.IsAccessible {
			summary.inaccessible++
			report.InaccessibleURLs = append(report.InaccessibleURLs, scan.Input)
		}
	}

	if summary.probed > 0 {
		if err := o.notifier.SendScanReport(uw.User.Email, report); err != nil {
			metrics.RecordNotification(err)
			log.Error().Err(err).Str("user_id", uw.User.ID).Msg("Failed to send scan report")
		} else {
			metrics.RecordNotification(nil)
		}
	}

	return summary
}

// probeScan probes one scan target and persists the result together
// with the scan's refreshed last-probed timestamp.
func (o *Orchestrator) probeScan(ctx context.Context, scan model.Scan, now time.Time) model.LinkResult {
	outcome := o.prober.Probe(ctx, scan.Input)
	metrics.RecordProbe(outcome.IsAccessible, outcome.StatusCode != 0, time.Duration(outcome.ResponseTime)*time.Millisecond)

	result := model.LinkResult{
		ScanID:       scan.ID,
		StatusCode:   outcome.StatusCode,
		IsAccessible: outcome.IsAccessible,
		ResponseTime: outcome.ResponseTime,
		CheckedAt:    now,
	}

	if err := o.store.RecordProbe(ctx, scan, result, now); err != nil {
		log.Error().Err(err).Str("scan_id", scan.ID).Msg("Failed to persist probe result")
	}

	log.Debug().
		Str("scan_id", scan.ID).
		Str("url", scan.Input).
		Int("status", outcome.StatusCode).
		Bool("accessible", outcome.IsAccessible).
		Int64("response_time_ms", outcome.ResponseTime).
		Msg("Probed scan target")
	return result
}

// Start schedules periodic passes with the given cron spec and returns
// the running cron instance so the caller can stop it on shutdown.
func (o *Orchestrator) Start(spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx := context.Background()
		if err := o.RunPass(ctx, time.Now()); err != nil && !errors.Is(err, ErrPassInProgress) {
			log.Error().Err(err).Msg("Scheduled scan pass failed")
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	o.cron = c
	log.Info().Str("cron", spec).Msg("Scan scheduler started")
	return c, nil
}

// Stop halts the periodic schedule, waiting for a running pass to end.
func (o *Orchestrator) Stop() {
	if o.cron != nil {
		ctx := o.cron.Stop()
		<-ctx.Done()
	}
}
