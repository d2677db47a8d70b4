// Package watchlist holds the per-tenant collection of monitored drafts.
// State is process-lifetime: entries live in memory and die with the tenant.
package watchlist

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/hsm"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/model"
)

// Store is safe for concurrent use: the scheduler cycle mutates it while the
// API serves snapshots.
type Store struct {
	mu      sync.Mutex
	entries map[string]*model.WatchEntry
}

func NewStore() *Store {
	return &Store{entries: make(map[string]*model.WatchEntry)}
}

// Enroll adds a draft to monitoring. The account binding is mandatory:
// without it a later cycle could replicate the draft under whichever account
// happens to be active.
func (s *Store) Enroll(entry model.WatchEntry) error {
	if entry.Key == "" {
		return fmt.Errorf("enroll: empty watch key")
	}
	if entry.AccountID == "" {
		return fmt.Errorf("enroll %s: no active account bound", entry.Key)
	}
	if entry.Status == "" {
		entry.Status = model.WatchStatusIdle
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[entry.Key]; exists {
		return fmt.Errorf("enroll %s: already watched", entry.Key)
	}
	s.entries[entry.Key] = &entry
	return nil
}

func (s *Store) Get(key string) (model.WatchEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return model.WatchEntry{}, false
	}
	return *e, true
}

// Keys returns the enrolled watch keys, unordered.
func (s *Store) Keys() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.entries))
	for k := range s.entries {
		out[k] = true
	}
	return out
}

// Snapshot returns a copy of all entries ordered by account id then key, so
// a cycle visits each account's drafts contiguously and switches context
// once per account.
func (s *Store) Snapshot() []model.WatchEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.WatchEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AccountID != out[j].AccountID {
			return out[i].AccountID < out[j].AccountID
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// MarkResolving flags the entry as mid-cycle.
func (s *Store) MarkResolving(key string) error {
	return s.transition(key, model.WatchStatusResolving)
}

// MarkIdle returns a no-news entry to rest.
func (s *Store) MarkIdle(key string) error {
	return s.transition(key, model.WatchStatusIdle)
}

func (s *Store) transition(key string, to model.WatchStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return fmt.Errorf("watch %s: not enrolled", key)
	}
	if !hsm.CanTransitionWatch(e.Status, to) {
		return fmt.Errorf("watch %s: cannot move %s -> %s", key, e.Status, to)
	}
	e.Status = to
	return nil
}

// Replace installs the clone's identity under its new key and removes the
// old key in one critical section, so no cycle ever observes both or
// neither. The replacement carries the account binding forward and its
// match set is the union of old and newly found.
func (s *Store) Replace(oldKey string, next model.WatchEntry) error {
	if next.Key == "" {
		return fmt.Errorf("replace %s: empty replacement key", oldKey)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.entries[oldKey]
	if !ok {
		return fmt.Errorf("replace %s: not enrolled", oldKey)
	}
	if !hsm.CanTransitionWatch(old.Status, model.WatchStatusReplaced) {
		return fmt.Errorf("replace %s: cannot move %s -> %s", oldKey, old.Status, model.WatchStatusReplaced)
	}
	if next.AccountID == "" {
		next.AccountID = old.AccountID
		next.AccountName = old.AccountName
	}
	if next.MaxMiles == 0 {
		next.MaxMiles = old.MaxMiles
	}
	if next.Targets == "" {
		next.Targets = old.Targets
	}
	next.Found = model.MergeFound(old.Found, next.Found)
	next.Status = model.WatchStatusIdle
	s.entries[next.Key] = &next
	if next.Key != oldKey {
		delete(s.entries, oldKey)
	}
	return nil
}

// Retire removes a target-found entry from monitoring.
func (s *Store) Retire(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return fmt.Errorf("retire %s: not enrolled", key)
	}
	if !hsm.CanTransitionWatch(e.Status, model.WatchStatusRetired) {
		return fmt.Errorf("retire %s: cannot move %s -> %s", key, e.Status, model.WatchStatusRetired)
	}
	delete(s.entries, key)
	return nil
}

// UpdateRules changes an entry's threshold override and target tokens.
func (s *Store) UpdateRules(key string, maxMiles int, targets string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return fmt.Errorf("watch %s: not enrolled", key)
	}
	e.MaxMiles = maxMiles
	e.Targets = targets
	return nil
}

// MergeFound folds newly matched destinations into an entry that stays
// under its current key, used when replication failed but the findings are
// still real.
func (s *Store) MergeFound(key string, newly []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return fmt.Errorf("watch %s: not enrolled", key)
	}
	e.Found = model.MergeFound(e.Found, newly)
	return nil
}

// Remove drops an entry without lifecycle checks (operator action).
func (s *Store) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	return ok
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
