package bot

import (
	"math"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/garyellow/lullabot-go/internal/errors"
)

func TestPatternKind_Match(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern PatternKind
		text    string
		want    bool
	}{
		{"regex match", MustRegex(`^botsnack$`), "botsnack", true},
		{"regex miss", MustRegex(`^botsnack$`), "botsnacks", false},
		{"literal exact", Literal("uptime"), "uptime", true},
		{"literal case", Literal("uptime"), "Uptime", false},
		{"literal fold", LiteralFold("uptime"), "UPTIME", true},
		{"predicate", Predicate(func(s string) bool { return strings.HasSuffix(s, "?") }), "pizza?", true},
		{"zero value", PatternKind{}, "anything", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.pattern.Match(tt.text))
		})
	}
}

func TestRegistry_PriorityAndInsertionOrder(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register(PatternRule{Pattern: MustRegex(`^.+[!?]$`), Owner: "factoid", Priority: 2}))
	require.NoError(t, r.Register(PatternRule{Pattern: MustRegex(`(?i)^hello!?$`), Owner: "greeting", Priority: 10}))
	require.NoError(t, r.Register(PatternRule{Pattern: MustRegex(`(?i)^hello!$`), Owner: "echo", Priority: 10}))
	require.NoError(t, r.Register(PatternRule{Pattern: MustRegex(`.`), Owner: "catchall", Priority: 0}))
	r.Freeze()

	owner, ok := r.FindOwner("hello!")
	require.True(t, ok)
	assert.Equal(t, HandlerID("greeting"), owner, "higher priority beats factoid, earlier registration beats echo")

	owner, ok = r.FindOwner("pizza?")
	require.True(t, ok)
	assert.Equal(t, HandlerID("factoid"), owner)

	owner, ok = r.FindOwner("plain")
	require.True(t, ok)
	assert.Equal(t, HandlerID("catchall"), owner)

	_, ok = r.FindOwner("")
	assert.False(t, ok, "empty text never matches")

	var order []HandlerID
	for _, rule := range r.Rules() {
		order = append(order, rule.Owner)
	}
	assert.Equal(t, []HandlerID{"greeting", "echo", "factoid", "catchall"}, order)
}

func TestRegistry_ExtremePriorities(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register(PatternRule{Pattern: MustRegex(`.`), Owner: "lowest", Priority: math.MinInt}))
	require.NoError(t, r.Register(PatternRule{Pattern: MustRegex(`.`), Owner: "highest", Priority: math.MaxInt}))
	require.NoError(t, r.Register(PatternRule{Pattern: MustRegex(`.`), Owner: "zero", Priority: 0}))
	r.Freeze()

	owner, ok := r.FindOwner("x")
	require.True(t, ok)
	assert.Equal(t, HandlerID("highest"), owner)

	var order []HandlerID
	for _, rule := range r.Rules() {
		order = append(order, rule.Owner)
	}
	assert.Equal(t, []HandlerID{"highest", "zero", "lowest"}, order)
}

func TestRegistry_FindOwnerOnlyReturnsMatchingRules(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	words := []string{"alpha", "beta", "gamma", "delta"}
	for i, w := range words {
		require.NoError(t, r.Register(PatternRule{
			Pattern:  Regex(regexp.MustCompile(w)),
			Owner:    HandlerID(w),
			Priority: i % 2,
		}))
	}
	r.Freeze()

	for _, text := range []string{"alpha beta", "gamma", "delta alpha", "beta gamma delta", "omega"} {
		owner, ok := r.FindOwner(text)
		if !ok {
			assert.False(t, r.MatchesAny(text))
			continue
		}
		assert.Contains(t, text, string(owner), "owner's rule must match %q", text)
		assert.True(t, r.MatchesAny(text))
	}

	owner, _ := r.FindOwner("alpha beta")
	assert.Equal(t, HandlerID("beta"), owner, "priority 1 beats priority 0")
}

func TestRegistry_Freeze(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register(PatternRule{Pattern: Literal("a"), Owner: "a"}))
	r.Freeze()
	r.Freeze()
	assert.True(t, r.Frozen())

	err := r.Register(PatternRule{Pattern: Literal("b"), Owner: "b"})
	assert.ErrorIs(t, err, domerrors.ErrRegistryFrozen)
	assert.Len(t, r.Rules(), 1)
}

func TestRegistry_InvalidRules(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	assert.ErrorIs(t, r.Register(PatternRule{Pattern: Literal("a")}), domerrors.ErrInvalidInput)
	assert.ErrorIs(t, r.Register(PatternRule{Owner: "x"}), domerrors.ErrInvalidInput)
	assert.ErrorIs(t, r.Register(PatternRule{Pattern: Regex(nil), Owner: "x"}), domerrors.ErrInvalidInput)
	assert.ErrorIs(t, r.Register(PatternRule{Pattern: Predicate(nil), Owner: "x"}), domerrors.ErrInvalidInput)
	assert.Empty(t, r.Rules())
}

func TestRegistry_RulesIsACopy(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register(PatternRule{Pattern: Literal("a"), Owner: "a"}))
	rules := r.Rules()
	rules[0].Owner = "mutated"

	owner, _ := r.FindOwner("a")
	assert.Equal(t, HandlerID("a"), owner)
}
