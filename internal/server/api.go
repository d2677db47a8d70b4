// Package server exposes the engine over a JSON API. The UI collaborator is
// stateless: every view it renders is a fresh read of tenant state, and
// credentials pass through to the engine without being stored.
package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/engine"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/model"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/scheduler"
)

type API struct {
	registry *engine.Registry
}

func New(registry *engine.Registry) *API {
	return &API{registry: registry}
}

func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/health", a.handleHealth)
	mux.HandleFunc("/api/v1/session", a.handleSession)
	mux.HandleFunc("/api/v1/tenants/", a.handleTenant)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type sessionRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
}

type statusResponse struct {
	Email           string `json:"email"`
	Running         bool   `json:"running"`
	MileThreshold   int    `json:"mile_threshold"`
	Cadence         string `json:"cadence"`
	IntervalMinutes int    `json:"interval_minutes,omitempty"`
	NextRun         string `json:"next_run,omitempty"`
	Watched         int    `json:"watched"`
}

type settingsRequest struct {
	MileThreshold   int    `json:"mile_threshold"`
	Cadence         string `json:"cadence"`
	IntervalMinutes int    `json:"interval_minutes"`
}

type enrollRequest struct {
	Key      string `json:"key"`
	MaxMiles int    `json:"max_miles"`
	Targets  string `json:"targets"`
}

type switchRequest struct {
	AccountID string `json:"account_id"`
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSession attaches a credential pair, creating the tenant on first
// login. Logout has no endpoint on purpose: closing the UI detaches it and
// the tenant keeps running.
func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only POST is supported")
		return
	}
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials", "email and password are required")
		return
	}
	tenant, err := a.registry.Attach(r.Context(), model.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		writeError(w, http.StatusUnauthorized, "login_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{TenantID: tenant.ID, Email: tenant.Email})
}

func (a *API) handleTenant(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/tenants/")
	parts := strings.SplitN(rest, "/", 3)
	if parts[0] == "" {
		writeError(w, http.StatusBadRequest, "invalid_tenant_id", "tenant id is required")
		return
	}
	tenant, ok := a.registry.Get(parts[0])
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_tenant", "no such tenant")
		return
	}
	resource := ""
	if len(parts) > 1 {
		resource = parts[1]
	}
	tail := ""
	if len(parts) > 2 {
		tail = parts[2]
	}

	switch resource {
	case "", "status":
		a.handleStatus(w, r, tenant)
	case "watchlist":
		a.handleWatchlist(w, r, tenant, tail)
	case "logs":
		a.handleLogs(w, r, tenant)
	case "history":
		a.handleHistory(w, r, tenant)
	case "accounts":
		a.handleAccounts(w, r, tenant)
	case "drafts":
		a.handleDrafts(w, r, tenant)
	case "run":
		a.handleRun(w, r, tenant)
	case "start":
		a.handleStart(w, r, tenant)
	case "stop":
		a.handleStop(w, r, tenant)
	case "settings":
		a.handleSettings(w, r, tenant)
	case "account":
		a.handleSwitch(w, r, tenant)
	default:
		writeError(w, http.StatusNotFound, "unknown_resource", "no such resource")
	}
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request, tenant *engine.Tenant) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET is supported")
		return
	}
	threshold, spec := tenant.Settings()
	resp := statusResponse{
		Email:         tenant.Email,
		Running:       tenant.Running(),
		MileThreshold: threshold,
		Cadence:       string(spec.Mode),
		Watched:       len(tenant.Watchlist()),
	}
	if spec.Mode == model.CadenceInterval {
		resp.IntervalMinutes = int(spec.Interval / time.Minute)
	}
	if next, ok := tenant.NextRun(); ok {
		resp.NextRun = next.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleWatchlist(w http.ResponseWriter, r *http.Request, tenant *engine.Tenant, key string) {
	switch {
	case r.Method == http.MethodGet && key == "":
		writeJSON(w, http.StatusOK, map[string]any{"entries": tenant.Watchlist()})
	case r.Method == http.MethodPost && key == "":
		var req enrollRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
			return
		}
		if err := tenant.Enroll(r.Context(), req.Key, req.MaxMiles, req.Targets); err != nil {
			writeError(w, http.StatusConflict, "enroll_failed", err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"key": req.Key})
	case r.Method == http.MethodPost:
		var req enrollRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
			return
		}
		if err := tenant.UpdateEntry(key, req.MaxMiles, req.Targets); err != nil {
			writeError(w, http.StatusNotFound, "unknown_entry", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"key": key})
	case r.Method == http.MethodDelete && key != "":
		if !tenant.RemoveEntry(key) {
			writeError(w, http.StatusNotFound, "unknown_entry", "no such watch entry")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"key": key})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (a *API) handleLogs(w http.ResponseWriter, r *http.Request, tenant *engine.Tenant) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET is supported")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": tenant.Logs()})
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request, tenant *engine.Tenant) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET is supported")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": tenant.History()})
}

func (a *API) handleAccounts(w http.ResponseWriter, r *http.Request, tenant *engine.Tenant) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET is supported")
		return
	}
	accounts, err := tenant.Accounts(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "remote_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (a *API) handleDrafts(w http.ResponseWriter, r *http.Request, tenant *engine.Tenant) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET is supported")
		return
	}
	drafts, err := tenant.Drafts(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "remote_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"drafts": drafts})
}

func (a *API) handleRun(w http.ResponseWriter, r *http.Request, tenant *engine.Tenant) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only POST is supported")
		return
	}
	tenant.RunNow()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (a *API) handleStart(w http.ResponseWriter, r *http.Request, tenant *engine.Tenant) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only POST is supported")
		return
	}
	tenant.Start()
	writeJSON(w, http.StatusOK, map[string]bool{"running": true})
}

// handleStop pauses the schedule; an in-flight cycle completes first. The
// tenant itself stays attached.
func (a *API) handleStop(w http.ResponseWriter, r *http.Request, tenant *engine.Tenant) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only POST is supported")
		return
	}
	tenant.Stop()
	writeJSON(w, http.StatusOK, map[string]bool{"running": false})
}

func (a *API) handleSettings(w http.ResponseWriter, r *http.Request, tenant *engine.Tenant) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only POST is supported")
		return
	}
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	spec := scheduler.Spec{
		Mode:     model.CadenceMode(req.Cadence),
		Interval: time.Duration(req.IntervalMinutes) * time.Minute,
	}
	switch spec.Mode {
	case model.CadenceInterval, model.CadenceHalfHourly, model.CadenceQuarterly:
	default:
		writeError(w, http.StatusBadRequest, "invalid_cadence", "unknown cadence "+req.Cadence)
		return
	}
	if err := tenant.UpdateSettings(req.MileThreshold, spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_settings", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (a *API) handleSwitch(w http.ResponseWriter, r *http.Request, tenant *engine.Tenant) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only POST is supported")
		return
	}
	var req switchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if strings.TrimSpace(req.AccountID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_account", "account id is required")
		return
	}
	if err := tenant.SwitchAccount(r.Context(), req.AccountID); err != nil {
		writeError(w, http.StatusBadGateway, "switch_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"active": req.AccountID})
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]apiError{
		"error": {
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
