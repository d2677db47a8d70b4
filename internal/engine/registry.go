package engine

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/config"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/jsf"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/model"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/notify"
)

// Registry owns every live tenant. A tenant is created on the first
// successful login for a credential pair and lives until process shutdown;
// detaching a UI never tears the tenant down.
type Registry struct {
	cfg      config.Settings
	notifier notify.Notifier
	logger   *log.Logger

	mu      sync.Mutex
	byEmail map[string]*Tenant
	byID    map[string]*Tenant
}

func NewRegistry(cfg config.Settings, notifier notify.Notifier, logger *log.Logger) *Registry {
	return &Registry{
		cfg:      cfg,
		notifier: notifier,
		logger:   logger,
		byEmail:  make(map[string]*Tenant),
		byID:     make(map[string]*Tenant),
	}
}

// Attach logs a credential pair in and returns its tenant. Reconnecting to
// an existing tenant refreshes the held password and re-authenticates;
// state (watchlist, logs, history, schedule) is untouched.
func (r *Registry) Attach(ctx context.Context, creds model.Credentials) (*Tenant, error) {
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	r.mu.Lock()
	existing, ok := r.byEmail[email]
	r.mu.Unlock()
	if ok {
		existing.client.SetPassword(creds.Password)
		if err := existing.client.Authenticate(ctx); err != nil {
			return nil, err
		}
		existing.log.Logf(model.SeverityInfo, "session re-attached")
		return existing, nil
	}

	client, err := jsf.NewClient(r.cfg.BaseURL, r.cfg.UserAgent, creds, r.logger)
	if err != nil {
		return nil, err
	}
	tenant := newTenant(client, r.cfg, r.notifier, r.logger)
	if err := client.Authenticate(ctx); err != nil {
		return nil, err
	}
	tenant.Start()
	tenant.log.Logf(model.SeverityInfo, "monitoring started for %s", email)

	r.mu.Lock()
	defer r.mu.Unlock()
	if raced, ok := r.byEmail[email]; ok {
		tenant.Stop()
		return raced, nil
	}
	r.byEmail[email] = tenant
	r.byID[tenant.ID] = tenant
	return tenant, nil
}

func (r *Registry) Get(id string) (*Tenant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	return t, ok
}

// Tenants returns the live tenants in no particular order.
func (r *Registry) Tenants() []*Tenant {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Tenant, 0, len(r.byID))
	for _, t := range r.byID {
		out = append(out, t)
	}
	return out
}

// Shutdown stops every tenant's schedule, letting in-flight cycles finish.
func (r *Registry) Shutdown() {
	for _, t := range r.Tenants() {
		t.Stop()
	}
}
