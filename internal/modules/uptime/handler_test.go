package uptime

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/lullabot-go/internal/bot"
	"github.com/garyellow/lullabot-go/internal/bot/bottest"
)

func TestFormatUptime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0 seconds"},
		{time.Second, "1 second"},
		{59 * time.Second, "59 seconds"},
		{time.Minute, "1 minute, 0 seconds"},
		{time.Hour + 2*time.Second, "1 hour, 0 minutes, 2 seconds"},
		{24 * time.Hour, "1 day, 0 hours, 0 minutes, 0 seconds"},
		{50*time.Hour + 61*time.Second, "2 days, 2 hours, 1 minute, 1 second"},
		{1500 * time.Millisecond, "1 second"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FormatUptime(tt.d))
		})
	}
}

func TestPatterns(t *testing.T) {
	t.Parallel()
	h := NewHandler(bot.StaticIdentity("UBOT"), &bottest.ReplySink{}, time.Now())
	rule := h.Patterns()[0]

	for _, text := range []string{"uptime", "Identify yourself", "WHO ARE YOU", "what is your name"} {
		assert.True(t, rule.Pattern.Match(text), text)
	}
	assert.False(t, rule.Pattern.Match("uptime please"))
	assert.False(t, rule.Pattern.Match("who are you?"))
}

func TestRespond(t *testing.T) {
	t.Parallel()
	replies := &bottest.ReplySink{}
	started := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h := NewHandler(bot.StaticIdentity("UBOT"), replies, started)
	h.hostname = "bothost"
	h.now = func() time.Time { return started.Add(90 * time.Second) }

	event := bottest.Event("uptime")
	event.ThreadTS = "1699999999.000001"
	require.NoError(t, h.Respond(context.Background(), event, "uptime"))

	got := replies.Replies()
	require.Len(t, got, 1)
	assert.Equal(t, ":robot_face: I am a bot named <@UBOT>. I have been running for 1 minute, 30 seconds on bothost.", got[0].Text)
	assert.Equal(t, event.ThreadTS, got[0].ThreadTS)
	assert.False(t, strings.Contains(got[0].Text, "unknown"))
}
