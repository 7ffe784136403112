package bot

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"

	domerrors "github.com/garyellow/lullabot-go/internal/errors"
)

type patternKind int

const (
	kindRegex patternKind = iota + 1
	kindLiteral
	kindPredicate
)

// PatternKind is a matcher: a regular expression, a literal string, or a
// predicate function. The zero value matches nothing.
type PatternKind struct {
	kind      patternKind
	re        *regexp.Regexp
	literal   string
	fold      bool
	predicate func(string) bool
}

// Regex matches when re matches anywhere in the text; anchor it as needed.
func Regex(re *regexp.Regexp) PatternKind {
	return PatternKind{kind: kindRegex, re: re}
}

// MustRegex compiles expr and panics on error. For package-level patterns.
func MustRegex(expr string) PatternKind {
	return Regex(regexp.MustCompile(expr))
}

// Literal matches text equal to s.
func Literal(s string) PatternKind {
	return PatternKind{kind: kindLiteral, literal: s}
}

// LiteralFold matches text equal to s under Unicode case folding.
func LiteralFold(s string) PatternKind {
	return PatternKind{kind: kindLiteral, literal: s, fold: true}
}

// Predicate matches when fn returns true.
func Predicate(fn func(string) bool) PatternKind {
	return PatternKind{kind: kindPredicate, predicate: fn}
}

// Match reports whether text matches.
func (p PatternKind) Match(text string) bool {
	switch p.kind {
	case kindRegex:
		return p.re.MatchString(text)
	case kindLiteral:
		if p.fold {
			return strings.EqualFold(text, p.literal)
		}
		return text == p.literal
	case kindPredicate:
		return p.predicate(text)
	default:
		return false
	}
}

func (p PatternKind) valid() bool {
	switch p.kind {
	case kindRegex:
		return p.re != nil
	case kindLiteral:
		return true
	case kindPredicate:
		return p.predicate != nil
	default:
		return false
	}
}

// String describes the pattern for logs.
func (p PatternKind) String() string {
	switch p.kind {
	case kindRegex:
		return "regex:" + p.re.String()
	case kindLiteral:
		if p.fold {
			return "literal(i):" + p.literal
		}
		return "literal:" + p.literal
	case kindPredicate:
		return "predicate"
	default:
		return "invalid"
	}
}

// PatternRule claims text matching Pattern for Owner. Higher Priority wins;
// among equal priorities the earlier registration wins.
type PatternRule struct {
	Pattern  PatternKind
	Owner    HandlerID
	Priority int

	seq int
}

// Registry is the ordered rule set used to arbitrate ownership of text.
type Registry struct {
	mu     sync.Mutex // guards registration only
	rules  []PatternRule
	next   int
	frozen bool
}

// NewRegistry creates an empty registry open for registration.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds rule and keeps rules sorted by (priority desc, insertion
// asc). It fails after Freeze.
func (r *Registry) Register(rule PatternRule) error {
	if rule.Owner == "" || !rule.Pattern.valid() {
		return fmt.Errorf("%w: rule needs an owner and a pattern", domerrors.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("%w: %s %s", domerrors.ErrRegistryFrozen, rule.Owner, rule.Pattern)
	}

	rule.seq = r.next
	r.next++
	r.rules = append(r.rules, rule)
	slices.SortStableFunc(r.rules, func(a, b PatternRule) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	return nil
}

// RegisterHandler registers every pattern h declares, forcing the owner to
// h.Name().
func (r *Registry) RegisterHandler(h Handler) error {
	for _, rule := range h.Patterns() {
		rule.Owner = h.Name()
		if err := r.Register(rule); err != nil {
			return err
		}
	}
	return nil
}

// Freeze ends registration. Calling it again is a no-op.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frozen
}

// FindOwner returns the owner of the first rule matching text. Empty text
// never matches. Lookups take no lock: they are only valid once the
// registry is frozen (or from the goroutine doing registration).
func (r *Registry) FindOwner(text string) (HandlerID, bool) {
	if text == "" {
		return "", false
	}
	for _, rule := range r.rules {
		if rule.Pattern.Match(text) {
			return rule.Owner, true
		}
	}
	return "", false
}

// MatchesAny reports whether any rule claims text.
func (r *Registry) MatchesAny(text string) bool {
	_, ok := r.FindOwner(text)
	return ok
}

// Rules returns a copy of the rules in arbitration order.
func (r *Registry) Rules() []PatternRule {
	return slices.Clone(r.rules)
}
