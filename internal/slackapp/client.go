// Package slackapp connects the dispatcher to Slack: it turns Socket Mode
// events into bot.InboundEvent values and implements the reply, reaction,
// user directory and identity collaborators on top of the Web API.
package slackapp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/slack-go/slack"

	"github.com/garyellow/lullabot-go/internal/bot"
	domerrors "github.com/garyellow/lullabot-go/internal/errors"
	"github.com/garyellow/lullabot-go/internal/metrics"
)

// API is the subset of *slack.Client the bot uses.
type API interface {
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	AddReactionContext(ctx context.Context, name string, item slack.ItemRef) error
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
	GetUsersContext(ctx context.Context, options ...slack.GetUsersOption) ([]slack.User, error)
}

var _ API = (*slack.Client)(nil)

// Client implements bot.ReplySink, bot.Reactor, bot.UserDirectory and
// bot.BotIdentity.
type Client struct {
	api     API
	users   *userCache
	metrics *metrics.Metrics

	mu        sync.RWMutex
	botUserID string
	teamID    string
}

var (
	_ bot.ReplySink     = (*Client)(nil)
	_ bot.Reactor       = (*Client)(nil)
	_ bot.UserDirectory = (*Client)(nil)
	_ bot.BotIdentity   = (*Client)(nil)
)

// ClientConfig holds the Web API client settings.
type ClientConfig struct {
	BotToken string
	AppToken string // required for Socket Mode only

	Metrics *metrics.Metrics

	// UserCacheTTL is how long resolved profiles are reused.
	UserCacheTTL time.Duration
}

// NewClient creates a client for the Slack Web API.
func NewClient(cfg ClientConfig) *Client {
	opts := []slack.Option{}
	if cfg.AppToken != "" {
		opts = append(opts, slack.OptionAppLevelToken(cfg.AppToken))
	}
	return NewClientWithAPI(slack.New(cfg.BotToken, opts...), cfg.UserCacheTTL, cfg.Metrics)
}

// NewClientWithAPI wraps an existing API implementation.
func NewClientWithAPI(api API, userCacheTTL time.Duration, m *metrics.Metrics) *Client {
	return &Client{
		api:     api,
		users:   newUserCache(userCacheTTL),
		metrics: m,
	}
}

// API returns the underlying Web API client.
func (c *Client) API() API {
	return c.api
}

// Authenticate resolves the bot's own user and team IDs.
func (c *Client) Authenticate(ctx context.Context) error {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: slack auth.test: %w", domerrors.ErrUpstream, err)
	}
	c.mu.Lock()
	c.botUserID = resp.UserID
	c.teamID = resp.TeamID
	c.mu.Unlock()
	return nil
}

// BotUserID implements bot.BotIdentity. Empty until Authenticate succeeds.
func (c *Client) BotUserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.botUserID
}

// TeamID returns the workspace the bot token belongs to.
func (c *Client) TeamID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.teamID
}

// Reply implements bot.ReplySink.
func (c *Client) Reply(ctx context.Context, r bot.Reply) error {
	opts := []slack.MsgOption{slack.MsgOptionText(r.Text, false)}
	if r.ThreadTS != "" {
		opts = append(opts, slack.MsgOptionTS(r.ThreadTS))
	}
	if _, _, err := c.api.PostMessageContext(ctx, r.ChannelID, opts...); err != nil {
		return fmt.Errorf("%w: post message to %s: %w", domerrors.ErrUpstream, r.ChannelID, err)
	}
	return nil
}

// React implements bot.Reactor.
func (c *Client) React(ctx context.Context, channelID, messageTS, name string) error {
	if err := c.api.AddReactionContext(ctx, name, slack.NewRefToMessage(channelID, messageTS)); err != nil {
		return fmt.Errorf("%w: add reaction %s: %w", domerrors.ErrUpstream, name, err)
	}
	return nil
}

// LookupUser implements bot.UserDirectory. Profiles are cached and
// concurrent lookups of the same ID share one users.info call.
func (c *Client) LookupUser(ctx context.Context, id string) (*bot.User, error) {
	if u, ok := c.users.get(id); ok {
		c.metrics.RecordUserLookup("cache_hit")
		return u, nil
	}

	v, err, shared := c.users.group.Do(id, func() (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		info, err := c.api.GetUserInfoContext(ctx, id)
		if err != nil {
			return nil, err
		}
		u := toUser(info)
		c.users.put(u)
		return u, nil
	})
	if err != nil {
		if isUserNotFound(err) {
			c.metrics.RecordUserLookup("not_found")
			return nil, fmt.Errorf("user %s: %w", id, domerrors.ErrNotFound)
		}
		c.metrics.RecordUserLookup("error")
		return nil, fmt.Errorf("%w: users.info %s: %w", domerrors.ErrUpstream, id, err)
	}

	if shared {
		c.metrics.RecordUserLookup("shared")
	} else {
		c.metrics.RecordUserLookup("fetched")
	}
	return v.(*bot.User), nil
}

// ListUsers returns every member of the workspace, bots included.
func (c *Client) ListUsers(ctx context.Context) ([]bot.User, error) {
	members, err := c.api.GetUsersContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: users.list: %w", domerrors.ErrUpstream, err)
	}
	out := make([]bot.User, 0, len(members))
	for i := range members {
		out = append(out, *toUser(&members[i]))
	}
	return out, nil
}

func toUser(u *slack.User) *bot.User {
	return &bot.User{
		ID:          u.ID,
		Name:        u.Name,
		RealName:    u.RealName,
		DisplayName: u.Profile.DisplayName,
	}
}

func isUserNotFound(err error) bool {
	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) {
		return slackErr.Err == "user_not_found"
	}
	return err.Error() == "user_not_found"
}
