package policy

import "strings"

// NameLookup resolves a package name to its display label.
type NameLookup interface {
	DisplayName(packageName string) (string, bool)
}

// MatcherConfig lists packages that are never blocked.
type MatcherConfig struct {
	SelfPackage      string   // the host app's own identity
	ExcludedPackages []string // system shell and launchers
	ExcludedPrefixes []string
}

// DefaultMatcherConfig returns the built-in allow-list.
func DefaultMatcherConfig(selfPackage string) MatcherConfig {
	return MatcherConfig{
		SelfPackage: selfPackage,
		ExcludedPackages: []string{
			"com.android.systemui",
			"com.google.android.apps.nexuslauncher",
		},
		ExcludedPrefixes: []string{
			"com.android.launcher",
		},
	}
}

// Matcher finds the rule that blocks a foreground package.
type Matcher struct {
	self     string
	excluded map[string]struct{}
	prefixes []string
}

// NewMatcher creates a matcher with the given allow-list.
func NewMatcher(cfg MatcherConfig) *Matcher {
	m := &Matcher{
		self:     cfg.SelfPackage,
		excluded: make(map[string]struct{}, len(cfg.ExcludedPackages)),
		prefixes: append([]string(nil), cfg.ExcludedPrefixes...),
	}
	for _, p := range cfg.ExcludedPackages {
		m.excluded[p] = struct{}{}
	}
	return m
}

// IsExcluded reports whether packageName is on the allow-list.
func (m *Matcher) IsExcluded(packageName string) bool {
	if packageName == m.self {
		return true
	}
	if _, ok := m.excluded[packageName]; ok {
		return true
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(packageName, p) {
			return true
		}
	}
	return false
}

// Match returns the first enabled rule in set that matches packageName, or
// a synthesized rule when only the legacy blocklist matches. nil means the
// package is not blocked.
func (m *Matcher) Match(packageName string, names NameLookup, set *RuleSet) *Rule {
	if m.IsExcluded(packageName) || set == nil {
		return nil
	}

	displayName := ""
	if names != nil {
		displayName, _ = names.DisplayName(packageName)
	}

	for i := range set.Rules {
		r := &set.Rules[i]
		if !r.Enabled || r.Predicate == nil {
			continue
		}
		if r.Predicate.Matches(packageName, displayName) {
			return r
		}
	}

	if set.IsLegacyBlocked(packageName) {
		legacy := LegacyRule(packageName)
		return &legacy
	}
	return nil
}
