package help

import (
	"fmt"
	"strings"
)

// Command is one usage example.
type Command struct {
	Pattern     string
	Description string
}

// Topic documents one group of commands.
type Topic struct {
	Name        string
	Title       string
	Description string
	Commands    []Command
}

// Catalog is the help content, in display order.
type Catalog []Topic

// DefaultCatalog describes the built-in commands.
var DefaultCatalog = Catalog{
	{
		Name:        "botsnack",
		Title:       "Botsnack",
		Description: "Give the bot a treat!",
		Commands: []Command{
			{"botsnack", "Give the bot a snack"},
			{"@bot botsnack", "Give the bot a snack (with mention)"},
		},
	},
	{
		Name:        "factoids",
		Title:       "Factoids",
		Description: "Store and retrieve custom responses",
		Commands: []Command{
			{"!factoid: X?", "Query a factoid"},
			{"@Lullabot X is Y", "Set a factoid"},
			{"@Lullabot X is <reply>Y", "Set with reply"},
			{"@Lullabot forget X", "Delete a factoid"},
			{"!factoid: list", "List all factoids"},
			{"X?", "Query a factoid (short form)"},
		},
	},
	{
		Name:        "karma",
		Title:       "Karma System",
		Description: "Track and manage karma points",
		Commands: []Command{
			{"@user++", "Give karma to user"},
			{"@user--", "Take karma from user"},
			{"thing++", "Give karma to thing"},
			{"thing--", "Take karma from thing"},
			{"karma @user", "Query user's karma"},
			{"karma thing", "Query thing's karma"},
			{"karma", "Show the karma leaderboard"},
		},
	},
	{
		Name:        "greetings",
		Title:       "Greetings",
		Description: "Responds to various greeting patterns",
		Commands: []Command{
			{"hello!", "Say hello"},
			{"hey!", "Say hey"},
			{"hi!", "Say hi"},
			{":wave:", "Wave emoji"},
		},
	},
	{
		Name:        "uptime",
		Title:       "Uptime",
		Description: "Bot status information",
		Commands: []Command{
			{"uptime", "Show bot uptime"},
			{"identify yourself", "Show bot info"},
			{"who are you", "Show bot identity"},
		},
	},
}

const keyCommands = 2

// Lookup returns the topic called name.
func (c Catalog) Lookup(name string) (Topic, bool) {
	for _, t := range c {
		if t.Name == name {
			return t, true
		}
	}
	return Topic{}, false
}

// Names lists topic names in display order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, t := range c {
		names[i] = t.Name
	}
	return names
}

// Full renders every topic with its first two commands.
func (c Catalog) Full() string {
	var b strings.Builder
	b.WriteString("*Available Plugins:*\n\n")
	for _, t := range c {
		fmt.Fprintf(&b, "*%s*\n%s\n_Key commands:_\n", t.Title, t.Description)
		writeCommands(&b, t.Commands[:min(keyCommands, len(t.Commands))])
		b.WriteByte('\n')
	}
	b.WriteString("\nFor detailed help on a specific plugin, try `@bot help <plugin>` (e.g., `@bot help karma`)")
	return b.String()
}

// String renders the topic with all of its commands.
func (t Topic) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n%s\n\n*Commands:*\n", t.Title, t.Description)
	writeCommands(&b, t.Commands)
	return strings.TrimSuffix(b.String(), "\n")
}

func writeCommands(b *strings.Builder, cmds []Command) {
	for _, cmd := range cmds {
		fmt.Fprintf(b, "• `%s` - %s\n", cmd.Pattern, cmd.Description)
	}
}

// Capabilities summarizes the commands for a language model's system
// prompt, so conversational replies can point people at them.
func (c Catalog) Capabilities() string {
	sections := make([]string, len(c))
	for i, t := range c {
		var b strings.Builder
		fmt.Fprintf(&b, "%s:\n%s", t.Name, t.Description)
		if len(t.Commands) > 0 {
			b.WriteString("\nExamples:")
			for _, cmd := range t.Commands {
				fmt.Fprintf(&b, "\n- %s (%s)", cmd.Pattern, cmd.Description)
			}
		}
		sections[i] = b.String()
	}

	return "Available bot capabilities:\n\n" +
		strings.Join(sections, "\n\n") +
		"\n\nWhen responding to users, you can reference and explain these capabilities when relevant " +
		"to the conversation. Use the exact command syntax from the examples when suggesting commands."
}
