package help

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/lullabot-go/internal/bot/bottest"
)

func respond(t *testing.T, text string) string {
	t.Helper()
	replies := &bottest.ReplySink{}
	h := NewHandler(DefaultCatalog, replies)
	require.NoError(t, h.Respond(context.Background(), bottest.Event(text), text))
	require.Len(t, replies.Replies(), 1)
	assert.Equal(t, "1700000000.000100", replies.Replies()[0].ThreadTS)
	return replies.Last()
}

func TestPatterns(t *testing.T) {
	t.Parallel()
	rule := NewHandler(DefaultCatalog, &bottest.ReplySink{}).Patterns()[0]

	for _, text := range []string{"help", "HELP", "commands", "plugins", "help karma", "Help Uptime"} {
		assert.True(t, rule.Pattern.Match(text), text)
	}
	for _, text := range []string{"help me please", "helpful", "need help", "help karma!"} {
		assert.False(t, rule.Pattern.Match(text), text)
	}
}

func TestFullHelp(t *testing.T) {
	t.Parallel()
	got := respond(t, "help")

	assert.True(t, strings.HasPrefix(got, "*Available Plugins:*\n\n*Botsnack*\nGive the bot a treat!\n_Key commands:_\n"))
	assert.Contains(t, got, "• `@user++` - Give karma to user\n• `@user--` - Take karma from user\n\n")
	assert.NotContains(t, got, "thing++", "only the first two commands are listed")
	assert.True(t, strings.HasSuffix(got, "try `@bot help <plugin>` (e.g., `@bot help karma`)"))
	assert.Equal(t, got, respond(t, "commands"))
}

func TestTopicHelp(t *testing.T) {
	t.Parallel()

	want := "*Uptime*\nBot status information\n\n*Commands:*\n" +
		"• `uptime` - Show bot uptime\n" +
		"• `identify yourself` - Show bot info\n" +
		"• `who are you` - Show bot identity"
	assert.Equal(t, want, respond(t, "help Uptime"))
}

func TestUnknownTopic(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		`Plugin "weather" not found. Try one of: botsnack, factoids, karma, greetings, uptime`,
		respond(t, "plugins Weather"))
}

func TestCapabilities(t *testing.T) {
	t.Parallel()
	got := DefaultCatalog.Capabilities()

	assert.True(t, strings.HasPrefix(got, "Available bot capabilities:\n\nbotsnack:\nGive the bot a treat!\nExamples:\n- botsnack (Give the bot a snack)"))
	for _, name := range DefaultCatalog.Names() {
		assert.Contains(t, got, "\n"+name+":\n")
	}
	assert.Contains(t, got, "Use the exact command syntax from the examples")
}
