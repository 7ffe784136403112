package bot

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

var (
	leadingMentionRe = regexp.MustCompile(`^\s*<@[^>]+>`)
	userMentionRe    = regexp.MustCompile(`<@([UW][A-Z0-9]+)>`)
	rawUserIDRe      = regexp.MustCompile(`^[UW][A-Z0-9]+$`)
)

// Normalize strips one leading self-mention token and trims whitespace.
// With an empty botID any leading mention token is stripped.
func Normalize(text, botID string) string {
	trimmed := strings.TrimSpace(text)
	if botID != "" {
		if rest, ok := strings.CutPrefix(trimmed, "<@"+botID+">"); ok {
			return strings.TrimSpace(rest)
		}
		// Slack may append the display name: <@U123|lullabot>
		if strings.HasPrefix(trimmed, "<@"+botID+"|") {
			if _, rest, ok := strings.Cut(trimmed, ">"); ok {
				return strings.TrimSpace(rest)
			}
		}
		return trimmed
	}
	return strings.TrimSpace(leadingMentionRe.ReplaceAllString(trimmed, ""))
}

// MentionedUserID returns the first user ID mentioned in text.
func MentionedUserID(text string) (string, bool) {
	m := userMentionRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// IsRawUserID reports whether text looks like a bare user ID ("U123ABC").
func IsRawUserID(text string) bool {
	return rawUserIDRe.MatchString(text)
}

// ResolveMentionedUser looks up the user mentioned in text. It returns nil
// when text mentions no one or the lookup fails; lookup failures are
// logged and otherwise treated as a miss.
func ResolveMentionedUser(ctx context.Context, dir UserDirectory, text string) *User {
	id, ok := MentionedUserID(text)
	if !ok || dir == nil {
		return nil
	}
	user, err := dir.LookupUser(ctx, id)
	if err != nil {
		slog.DebugContext(ctx, "user lookup failed", "lookup_id", id, "error", err)
		return nil
	}
	return user
}
