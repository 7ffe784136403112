package stringutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"Tacos", "tacos"},
		{"ÉCOLE", "école"},
		{"U123ABC", "u123abc"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FoldKey(tt.in), tt.in)
	}
}

func TestLen(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 5, Len("héllo"))
	assert.Equal(t, 0, Len(""))
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"héllo wörld", 8, "héllo..."},
		{"abcdef", 3, "abc"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Truncate(tt.in, tt.n), tt.in)
	}
}

func TestWordCount(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 3, WordCount("  multi   word factoid "))
	assert.Equal(t, 0, WordCount("   "))
}
