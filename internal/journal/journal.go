// Package journal keeps the per-tenant activity log and replication history.
// Both are bounded in-memory rings; the process is the unit of retention.
package journal

import (
	"fmt"
	"io"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid"

	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/model"
)

// Log is a newest-first bounded activity feed. Writes also mirror to the
// process logger so the feed survives in stdout even when nobody polls it.
type Log struct {
	mu     sync.Mutex
	cap    int
	logger *log.Logger
	items  []model.LogEntry
}

func NewLog(capacity int, logger *log.Logger) *Log {
	if capacity <= 0 {
		capacity = 50
	}
	return &Log{cap: capacity, logger: logger}
}

// Logf records one entry at the head of the feed.
func (l *Log) Logf(sev model.Severity, format string, args ...any) {
	entry := model.LogEntry{
		Time:     time.Now(),
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
	}
	l.mu.Lock()
	l.items = append([]model.LogEntry{entry}, l.items...)
	if len(l.items) > l.cap {
		l.items = l.items[:l.cap]
	}
	l.mu.Unlock()
	if l.logger != nil {
		l.logger.Print(entry.String())
	}
}

// Entries returns a newest-first copy of the feed.
func (l *Log) Entries() []model.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.LogEntry, len(l.items))
	copy(out, l.items)
	return out
}

// History is the bounded record of completed replications, newest first.
// Entry ids are lexicographically sortable so consumers can merge feeds
// from several tenants without a shared clock.
type History struct {
	mu      sync.Mutex
	cap     int
	entropy io.Reader
	items   []model.HistoryEntry
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 50
	}
	return &History{
		cap:     capacity,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// Add records one replication with the destinations it matched.
func (h *History) Add(account, draft string, found ...string) model.HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now()
	entry := model.HistoryEntry{
		ID:      ulid.MustNew(ulid.Timestamp(now), h.entropy).String(),
		Account: account,
		Draft:   draft,
		Found:   strings.Join(found, ", "),
		Time:    now,
	}
	h.items = append([]model.HistoryEntry{entry}, h.items...)
	if len(h.items) > h.cap {
		h.items = h.items[:h.cap]
	}
	return entry
}

func (h *History) Entries() []model.HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]model.HistoryEntry, len(h.items))
	copy(out, h.items)
	return out
}
