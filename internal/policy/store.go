package policy

import (
	"sync"
	"sync/atomic"
)

// RuleSet is an immutable snapshot of the installed configuration.
type RuleSet struct {
	Rules  []Rule
	Legacy map[string]struct{}
}

// IsLegacyBlocked reports whether packageName is in the legacy blocklist.
func (s *RuleSet) IsLegacyBlocked(packageName string) bool {
	if s == nil {
		return false
	}
	_, ok := s.Legacy[packageName]
	return ok
}

// EnabledCount returns the number of enabled rules.
func (s *RuleSet) EnabledCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, r := range s.Rules {
		if r.Enabled {
			n++
		}
	}
	return n
}

// Store holds the current RuleSet. Readers get a snapshot that never changes
// under them; writers build a new snapshot and swap it in.
type Store struct {
	current atomic.Pointer[RuleSet]
	writeMu sync.Mutex
}

// NewStore creates a store with no rules and an empty blocklist.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(&RuleSet{Rules: []Rule{}, Legacy: map[string]struct{}{}})
	return s
}

// Snapshot returns the current configuration.
func (s *Store) Snapshot() *RuleSet {
	return s.current.Load()
}

// ReplaceRules installs a new ordered rule list.
func (s *Store) ReplaceRules(rules []Rule) {
	cp := make([]Rule, len(rules))
	copy(cp, rules)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	old := s.current.Load()
	s.current.Store(&RuleSet{Rules: cp, Legacy: old.Legacy})
}

// ReplaceLegacy installs a new legacy blocked-package set.
func (s *Store) ReplaceLegacy(packages []string) {
	set := make(map[string]struct{}, len(packages))
	for _, p := range packages {
		set[p] = struct{}{}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	old := s.current.Load()
	s.current.Store(&RuleSet{Rules: old.Rules, Legacy: set})
}
