package model

import (
	"sort"
	"strings"
	"time"
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"-"`
}

// Draft is one row of the remote draft listing. The open and clone handles
// are component ids valid only for the page render they were scraped from.
type Draft struct {
	Name        string `json:"name"`
	Origin      string `json:"origin"`
	Created     string `json:"created"`
	SKUs        string `json:"skus"`
	Units       string `json:"units"`
	OpenHandle  string `json:"-"`
	CloneHandle string `json:"-"`
	NameInputID string `json:"-"`
	Watched     bool   `json:"watched"`
}

type Account struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type WatchStatus string

const (
	WatchStatusIdle      WatchStatus = "idle"
	WatchStatusResolving WatchStatus = "resolving"
	WatchStatusReplaced  WatchStatus = "replaced"
	WatchStatusRetired   WatchStatus = "retired"
)

// WatchEntry is the monitoring record for one draft. Keyed by the draft's
// creation timestamp; the key changes every time the entry is replicated.
type WatchEntry struct {
	Key         string      `json:"key"`
	Name        string      `json:"name"`
	Origin      string      `json:"origin"`
	AccountID   string      `json:"account_id"`
	AccountName string      `json:"account_name"`
	MaxMiles    int         `json:"max_miles"`
	Targets     string      `json:"targets"`
	Found       []string    `json:"found"`
	Status      WatchStatus `json:"status"`
}

// TargetList splits the comma-separated target-warehouse tokens, trimmed and
// upper-cased. Empty tokens are dropped.
func (e WatchEntry) TargetList() []string {
	var out []string
	for _, t := range strings.Split(e.Targets, ",") {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// FoundSet returns the accumulated matched destinations as a lookup set.
func (e WatchEntry) FoundSet() map[string]bool {
	set := make(map[string]bool, len(e.Found))
	for _, f := range e.Found {
		set[strings.ToUpper(strings.TrimSpace(f))] = true
	}
	return set
}

// EffectiveThreshold is the per-entry override when set, else the tenant
// default.
func (e WatchEntry) EffectiveThreshold(tenantDefault int) int {
	if e.MaxMiles > 0 {
		return e.MaxMiles
	}
	return tenantDefault
}

// PlanRow is one parsed line of a converged plan result.
type PlanRow struct {
	OptionGroup string `json:"option_group"`
	Destination string `json:"destination"`
	Miles       int    `json:"miles"`
}

type Opportunity struct {
	OptionGroup string `json:"option_group"`
	Destination string `json:"destination"`
	Miles       int    `json:"miles"`
}

type VerdictKind string

const (
	VerdictNone      VerdictKind = "none"
	VerdictReplicate VerdictKind = "replicate"
	VerdictStop      VerdictKind = "stop"
)

// Verdict is the analyzer's classification of one poll cycle.
type Verdict struct {
	Kind          VerdictKind   `json:"kind"`
	Target        *Opportunity  `json:"target,omitempty"`
	NewlyFound    []string      `json:"newly_found,omitempty"`
	Opportunities []Opportunity `json:"opportunities,omitempty"`
}

// CloneResult is the replacement identity produced by the sequencer.
type CloneResult struct {
	Name    string `json:"name"`
	Created string `json:"created"`
	Origin  string `json:"origin"`
}

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

func (s Severity) Icon() string {
	switch s {
	case SeveritySuccess:
		return "✅"
	case SeverityWarning:
		return "⚠️"
	case SeverityError:
		return "❌"
	default:
		return "ℹ️"
	}
}

type LogEntry struct {
	Time     time.Time `json:"time"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
}

func (l LogEntry) String() string {
	return l.Time.Format("15:04:05") + " " + l.Severity.Icon() + " " + l.Message
}

type HistoryEntry struct {
	ID      string    `json:"id"`
	Account string    `json:"account"`
	Draft   string    `json:"draft"`
	Found   string    `json:"found"`
	Time    time.Time `json:"time"`
}

type CadenceMode string

const (
	CadenceInterval   CadenceMode = "interval"
	CadenceHalfHourly CadenceMode = "half_hourly"
	CadenceQuarterly  CadenceMode = "quarterly"
)

type Fact struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Notification is the engine's outbound event contract: the card rendering is
// a collaborator concern.
type Notification struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Facts    []Fact   `json:"facts,omitempty"`
	Severity Severity `json:"severity"`
}

// MergeFound unions two matched-destination sets into a sorted slice.
func MergeFound(existing, newly []string) []string {
	set := make(map[string]bool, len(existing)+len(newly))
	for _, f := range existing {
		set[strings.ToUpper(strings.TrimSpace(f))] = true
	}
	for _, f := range newly {
		set[strings.ToUpper(strings.TrimSpace(f))] = true
	}
	delete(set, "")
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
