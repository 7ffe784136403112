package slackapp

import (
	"context"
	"strings"

	"github.com/slack-go/slack/slackevents"

	"github.com/garyellow/lullabot-go/internal/bot"
)

// Dispatcher receives converted events. *bot.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, event bot.InboundEvent) bot.Outcome
}

// Subtypes that still carry user-authored text.
var acceptedSubtypes = map[string]bool{
	"":                 true,
	"file_share":       true,
	"thread_broadcast": true,
}

// FromCallback converts an Events API callback into an InboundEvent. ok is
// false for events the bot ignores: messages from bots, edits and other
// system subtypes, and channel messages that mention the bot (Slack
// delivers those again as app_mention).
func FromCallback(cb slackevents.EventsAPIEvent, botUserID string) (bot.InboundEvent, bool) {
	teamID := cb.TeamID

	switch ev := cb.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		if ev.BotID != "" || ev.User == "" || ev.User == botUserID {
			return bot.InboundEvent{}, false
		}
		return bot.InboundEvent{
			Text:      ev.Text,
			ChannelID: ev.Channel,
			ThreadTS:  ev.ThreadTimeStamp,
			MessageTS: ev.TimeStamp,
			UserID:    ev.User,
			TeamID:    teamID,
			Addressed: true,
		}, true

	case *slackevents.MessageEvent:
		if ev.BotID != "" || ev.User == "" || ev.User == botUserID {
			return bot.InboundEvent{}, false
		}
		if !acceptedSubtypes[ev.SubType] {
			return bot.InboundEvent{}, false
		}
		direct := isDirectMessage(ev)
		if !direct && mentions(ev.Text, botUserID) {
			return bot.InboundEvent{}, false
		}
		return bot.InboundEvent{
			Text:      ev.Text,
			ChannelID: ev.Channel,
			ThreadTS:  ev.ThreadTimeStamp,
			MessageTS: ev.TimeStamp,
			UserID:    ev.User,
			TeamID:    teamID,
			Addressed: direct,
		}, true
	}

	return bot.InboundEvent{}, false
}

func isDirectMessage(ev *slackevents.MessageEvent) bool {
	if ev.ChannelType != "" {
		return ev.ChannelType == "im"
	}
	return strings.HasPrefix(ev.Channel, "D")
}

func mentions(text, botUserID string) bool {
	if botUserID == "" {
		return false
	}
	return strings.Contains(text, "<@"+botUserID+">") || strings.Contains(text, "<@"+botUserID+"|")
}

// EventType labels a callback for metrics.
func EventType(cb slackevents.EventsAPIEvent) string {
	if cb.InnerEvent.Type != "" {
		return cb.InnerEvent.Type
	}
	return cb.Type
}
