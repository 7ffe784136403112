package factoid

import (
	"regexp"
	"strings"
)

const maxQueryWords = 5

var (
	queryRegex         = regexp.MustCompile(`^.+[!?]$`)
	legacyQueryRegex   = regexp.MustCompile(`(?i)^!factoid:\s*(.+?)[!?]$`)
	addressedTextRe    = regexp.MustCompile(`(?i)^(?:Hey\s+)?(?:<@[UW][A-Z0-9]+>|@[\w\s]+)(?:\s+.+|\s*,.+|\s*:.+)[!?]$`)
	spaceBeforePunctRe = regexp.MustCompile(`\s[!?]$`)
)

// IsQuery reports whether text asks for a factoid: a short phrase ending in
// "?" or "!" ("pizza?", "<@U123>!"). Sentences addressed to someone
// ("@ann, are you there?"), a space before the punctuation and phrases of
// more than five words are chatter, not queries. The legacy
// "!factoid: pizza?" form is always a query.
func IsQuery(text string) bool {
	if legacyQueryRegex.MatchString(text) {
		return true
	}
	if !queryRegex.MatchString(text) {
		return false
	}
	if addressedTextRe.MatchString(text) || spaceBeforePunctRe.MatchString(text) {
		return false
	}
	return len(strings.Fields(text[:len(text)-1])) <= maxQueryWords
}

// QuerySubject strips the query syntax from text, leaving the factoid name.
func QuerySubject(text string) string {
	if m := legacyQueryRegex.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(strings.TrimRight(text, "!?"))
}
