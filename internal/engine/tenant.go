// Package engine owns the per-tenant aggregates and the monitoring cycle
// that ties the protocol client, catalog, planner, analyzer and sequencer
// together.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/catalog"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/config"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/journal"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/jsf"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/model"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/notify"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/planner"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/scheduler"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/sequencer"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/watchlist"
)

// Tenant is one authenticated identity: its own session, watchlist, logs,
// history and schedule. Tenants never share state; the registry only hands
// out pointers.
type Tenant struct {
	ID    string
	Email string

	client   *jsf.Client
	watch    *watchlist.Store
	log      *journal.Log
	history  *journal.History
	notifier notify.Notifier
	poller   *planner.Poller
	seq      *sequencer.Sequencer

	mu            sync.Mutex
	sched         *scheduler.Scheduler
	stopped       bool
	mileThreshold int
	cadence       scheduler.Spec
	accounts      []model.Account
}

func newTenant(client *jsf.Client, cfg config.Settings, notifier notify.Notifier, logger *log.Logger) *Tenant {
	t := &Tenant{
		ID:       uuid.NewString(),
		Email:    client.Email(),
		client:   client,
		watch:    watchlist.NewStore(),
		log:      journal.NewLog(cfg.LogCapacity, logger),
		history:  journal.NewHistory(cfg.HistoryCapacity),
		notifier: notifier,
	}
	t.poller = planner.New(client, cfg.PollDelay, cfg.MaxPolls, t.log)
	t.seq = sequencer.New(client, t.log)
	t.mileThreshold = cfg.MileThreshold
	t.cadence = scheduler.Spec{
		Mode:     cfg.Cadence,
		Interval: time.Duration(cfg.IntervalMinutes) * time.Minute,
	}
	t.sched = scheduler.New(t.cadence, t.RunCycle)

	// Login re-renders the active-account view, so discovery hooks there.
	client.OnAuthenticated = func(ctx context.Context) error {
		return t.refreshAccounts(ctx)
	}
	return t
}

// Start begins (or resumes) the tenant's schedule. A tenant stopped earlier
// gets a fresh scheduler on its current cadence.
func (t *Tenant) Start() {
	t.mu.Lock()
	if t.stopped {
		t.sched = scheduler.New(t.cadence, t.RunCycle)
		t.stopped = false
	}
	sched := t.sched
	t.mu.Unlock()
	sched.Start()
}

// Stop halts the schedule. A cycle in flight finishes first. Watchlist,
// session and journals survive; Start resumes monitoring.
func (t *Tenant) Stop() {
	t.mu.Lock()
	sched := t.sched
	t.stopped = true
	t.mu.Unlock()
	sched.Stop()
}

// Running reports whether the schedule is active.
func (t *Tenant) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped
}

// RunNow queues one immediate cycle on the tenant's scheduler.
func (t *Tenant) RunNow() {
	t.mu.Lock()
	sched := t.sched
	t.mu.Unlock()
	sched.RunNow()
}

func (t *Tenant) NextRun() (time.Time, bool) {
	t.mu.Lock()
	sched := t.sched
	t.mu.Unlock()
	return sched.NextRun()
}

func (t *Tenant) Watchlist() []model.WatchEntry { return t.watch.Snapshot() }

func (t *Tenant) Logs() []model.LogEntry { return t.log.Entries() }

func (t *Tenant) History() []model.HistoryEntry { return t.history.Entries() }

func (t *Tenant) UpdateEntry(key string, maxMiles int, targets string) error {
	return t.watch.UpdateRules(key, maxMiles, targets)
}
func (t *Tenant) RemoveEntry(key string) bool { return t.watch.Remove(key) }

// Settings reports the tenant's live cycle parameters.
func (t *Tenant) Settings() (threshold int, spec scheduler.Spec) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mileThreshold, t.cadence
}

// UpdateSettings changes the threshold and cadence, rescheduling in place.
func (t *Tenant) UpdateSettings(threshold int, spec scheduler.Spec) error {
	if threshold < config.MinMileThreshold || threshold > config.MaxMileThreshold {
		return fmt.Errorf("mile threshold %d out of range [%d, %d]",
			threshold, config.MinMileThreshold, config.MaxMileThreshold)
	}
	if spec.Mode == model.CadenceInterval {
		mins := int(spec.Interval / time.Minute)
		if mins < config.MinIntervalMins || mins > config.MaxIntervalMins {
			return fmt.Errorf("interval %d minutes out of range [%d, %d]",
				mins, config.MinIntervalMins, config.MaxIntervalMins)
		}
	}
	t.mu.Lock()
	t.mileThreshold = threshold
	t.cadence = spec
	sched := t.sched
	t.mu.Unlock()
	sched.Reconcile(spec)
	t.log.Logf(model.SeverityInfo, "settings updated: %d mi threshold, %s", threshold, cadenceLabel(spec))
	return nil
}

func (t *Tenant) refreshAccounts(ctx context.Context) error {
	accounts, err := catalog.Accounts(ctx, t.client)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.accounts = accounts
	t.mu.Unlock()
	return nil
}

// Accounts returns the cached account list, discovering it on first use.
func (t *Tenant) Accounts(ctx context.Context) ([]model.Account, error) {
	t.mu.Lock()
	cached := t.accounts
	t.mu.Unlock()
	if cached == nil {
		if err := t.client.WithSession(ctx, func() error { return t.refreshAccounts(ctx) }); err != nil {
			return nil, err
		}
		t.mu.Lock()
		cached = t.accounts
		t.mu.Unlock()
	}
	out := make([]model.Account, len(cached))
	copy(out, cached)
	return out, nil
}

func (t *Tenant) activeAccount() (model.Account, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, a := range t.accounts {
		if a.Active {
			return a, true
		}
	}
	return model.Account{}, false
}

// SwitchAccount changes the session's active account context.
func (t *Tenant) SwitchAccount(ctx context.Context, accountID string) error {
	err := t.client.WithSession(ctx, func() error {
		return catalog.Switch(ctx, t.client, accountID)
	})
	if err != nil {
		return err
	}
	t.mu.Lock()
	for i := range t.accounts {
		t.accounts[i].Active = t.accounts[i].ID == accountID
	}
	t.mu.Unlock()
	return nil
}

// Drafts lists the catalog under the current account context, with enrolled
// drafts flagged.
func (t *Tenant) Drafts(ctx context.Context) ([]model.Draft, error) {
	var drafts []model.Draft
	err := t.client.WithSession(ctx, func() error {
		var err error
		drafts, _, err = catalog.Fetch(ctx, t.client, t.watch.Keys())
		return err
	})
	return drafts, err
}

// Enroll places a catalog draft under monitoring, bound to the currently
// active account. Without a known active account the operation fails
// closed: a later cycle must never replicate under the wrong context.
func (t *Tenant) Enroll(ctx context.Context, key string, maxMiles int, targets string) error {
	account, ok := t.activeAccount()
	if !ok {
		if err := t.client.WithSession(ctx, func() error { return t.refreshAccounts(ctx) }); err != nil {
			return fmt.Errorf("enroll %s: active account unknown: %w", key, err)
		}
		if account, ok = t.activeAccount(); !ok {
			return fmt.Errorf("enroll %s: no active account", key)
		}
	}

	drafts, err := t.Drafts(ctx)
	if err != nil {
		return err
	}
	for _, d := range drafts {
		if d.Created != key {
			continue
		}
		err := t.watch.Enroll(model.WatchEntry{
			Key:         key,
			Name:        d.Name,
			Origin:      d.Origin,
			AccountID:   account.ID,
			AccountName: account.Name,
			MaxMiles:    maxMiles,
			Targets:     targets,
		})
		if err != nil {
			return err
		}
		t.log.Logf(model.SeverityInfo, "watching %s (%s) on %s", d.Name, key, account.Name)
		return nil
	}
	return fmt.Errorf("enroll %s: draft not in catalog", key)
}

func cadenceLabel(spec scheduler.Spec) string {
	if spec.Mode == model.CadenceInterval {
		return fmt.Sprintf("every %s", spec.Interval)
	}
	return string(spec.Mode)
}

func joinComma(items []string) string { return strings.Join(items, ", ") }
