// Package policy implements blocking rules and the first-match rule matcher.
// Each rule pairs a predicate (one of five kinds) with overlay presentation parameters.
package policy

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/eliteGoblin/focusd/overlay_mon/internal/domain"
)

// RuleKind is the wire tag of a rule predicate (0..4).
type RuleKind int

const (
	KindExactPackage   RuleKind = iota // package name equals pattern
	KindNameContains                   // display name contains pattern
	KindNameStartsWith                 // display name starts with pattern
	KindPackageRegex                   // package name fully matches regex
	KindCompanyPrefix                  // package name starts with company prefix
)

func (k RuleKind) String() string {
	switch k {
	case KindExactPackage:
		return "exact"
	case KindNameContains:
		return "name_contains"
	case KindNameStartsWith:
		return "name_starts_with"
	case KindPackageRegex:
		return "regex"
	case KindCompanyPrefix:
		return "company"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Predicate decides whether a foreground app is blocked.
// The interface is sealed: only the kinds in this package implement it.
type Predicate interface {
	Kind() RuleKind

	// Matches reports whether the app identified by packageName and its
	// resolved displayName (possibly empty) satisfies the predicate.
	Matches(packageName, displayName string) bool

	sealed()
}

// ExactPackage matches one package name exactly.
type ExactPackage struct{ Package string }

// NameContains matches display names containing Substring, ignoring case.
type NameContains struct{ Substring string }

// NameStartsWith matches display names starting with Prefix, ignoring case.
type NameStartsWith struct{ Prefix string }

// CompanyPrefix matches package names starting with Prefix (case-sensitive).
type CompanyPrefix struct{ Prefix string }

// PackageRegex matches package names against a regular expression anchored
// at both ends. An expression that fails to compile never matches.
type PackageRegex struct {
	Expr string
	re   *regexp.Regexp
	err  error
}

// NewPackageRegex compiles expr as a full-string match. expr is checked on
// its own first so unbalanced groups cannot break out of the anchors.
func NewPackageRegex(expr string) PackageRegex {
	if _, err := regexp.Compile(expr); err != nil {
		return PackageRegex{Expr: expr, err: err}
	}
	re, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		return PackageRegex{Expr: expr, err: err}
	}
	return PackageRegex{Expr: expr, re: re}
}

// Err returns the compile error, if any.
func (p PackageRegex) Err() error { return p.err }

func (ExactPackage) Kind() RuleKind   { return KindExactPackage }
func (NameContains) Kind() RuleKind   { return KindNameContains }
func (NameStartsWith) Kind() RuleKind { return KindNameStartsWith }
func (PackageRegex) Kind() RuleKind   { return KindPackageRegex }
func (CompanyPrefix) Kind() RuleKind  { return KindCompanyPrefix }

func (p ExactPackage) Matches(packageName, _ string) bool {
	return packageName == p.Package
}

func (p NameContains) Matches(_, displayName string) bool {
	return strings.Contains(strings.ToLower(displayName), strings.ToLower(p.Substring))
}

func (p NameStartsWith) Matches(_, displayName string) bool {
	return strings.HasPrefix(strings.ToLower(displayName), strings.ToLower(p.Prefix))
}

func (p PackageRegex) Matches(packageName, _ string) bool {
	if p.re == nil {
		return false
	}
	return p.re.MatchString(packageName)
}

func (p CompanyPrefix) Matches(packageName, _ string) bool {
	return strings.HasPrefix(packageName, p.Prefix)
}

func (ExactPackage) sealed()   {}
func (NameContains) sealed()   {}
func (NameStartsWith) sealed() {}
func (PackageRegex) sealed()   {}
func (CompanyPrefix) sealed()  {}

// NewPredicate builds the predicate for a wire kind and pattern.
func NewPredicate(kind RuleKind, pattern string) (Predicate, error) {
	switch kind {
	case KindExactPackage:
		return ExactPackage{Package: pattern}, nil
	case KindNameContains:
		return NameContains{Substring: pattern}, nil
	case KindNameStartsWith:
		return NameStartsWith{Prefix: pattern}, nil
	case KindPackageRegex:
		return NewPackageRegex(pattern), nil
	case KindCompanyPrefix:
		return CompanyPrefix{Prefix: pattern}, nil
	default:
		return nil, fmt.Errorf("unknown rule type %d", int(kind))
	}
}

// Point is a pair of coordinates.
type Point struct {
	X float64
	Y float64
}

// Rule is one blocking condition plus overlay presentation parameters.
// Rules are immutable once built.
type Rule struct {
	Predicate    Predicate
	Pattern      string
	Enabled      bool
	ImagePaths   []string
	OverlayTexts []string // never empty
	TextPosition Point    // fractions of the surface size
	ImageScale   float64
	ImageOffset  Point // pixels
}

// Default presentation values.
const (
	DefaultTextX      = 0.5
	DefaultTextY      = 0.5
	DefaultImageScale = 1.0
)

// NewRule builds an enabled rule with default presentation.
func NewRule(kind RuleKind, pattern string) (Rule, error) {
	pred, err := NewPredicate(kind, pattern)
	if err != nil {
		return Rule{}, err
	}
	return Rule{
		Predicate:    pred,
		Pattern:      pattern,
		Enabled:      true,
		OverlayTexts: DefaultQuotes(),
		TextPosition: Point{X: DefaultTextX, Y: DefaultTextY},
		ImageScale:   DefaultImageScale,
	}, nil
}

// LegacyRule synthesizes the exact-package rule used for legacy blocklist hits.
func LegacyRule(packageName string) Rule {
	return Rule{
		Predicate:    ExactPackage{Package: packageName},
		Pattern:      packageName,
		Enabled:      true,
		ImagePaths:   []string{},
		OverlayTexts: DefaultQuotes(),
		TextPosition: Point{X: DefaultTextX, Y: DefaultTextY},
		ImageScale:   DefaultImageScale,
	}
}

// Kind returns the rule's predicate kind.
func (r Rule) Kind() RuleKind {
	return r.Predicate.Kind()
}

// PickImage returns a uniformly random image path, or "" if the rule has none.
func (r Rule) PickImage(rng *rand.Rand) string {
	if len(r.ImagePaths) == 0 {
		return ""
	}
	return r.ImagePaths[rng.IntN(len(r.ImagePaths))]
}

// PickText returns a uniformly random overlay text.
func (r Rule) PickText(rng *rand.Rand) string {
	texts := r.OverlayTexts
	if len(texts) == 0 {
		texts = defaultQuotes
	}
	return texts[rng.IntN(len(texts))]
}

// Presentation resolves the rule's random picks into overlay parameters.
func (r Rule) Presentation(rng *rand.Rand) domain.Presentation {
	return domain.Presentation{
		ImagePath:    r.PickImage(rng),
		Text:         r.PickText(rng),
		TextX:        r.TextPosition.X,
		TextY:        r.TextPosition.Y,
		ImageScale:   r.ImageScale,
		ImageOffsetX: r.ImageOffset.X,
		ImageOffsetY: r.ImageOffset.Y,
	}
}
