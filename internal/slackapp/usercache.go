package slackapp

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/garyellow/lullabot-go/internal/bot"
)

const defaultUserCacheTTL = 10 * time.Minute

type cachedUser struct {
	user    *bot.User
	expires time.Time
}

// userCache holds resolved profiles. Concurrent misses for one ID are
// collapsed through group.
type userCache struct {
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]cachedUser
	ttl     time.Duration
	now     func() time.Time
}

func newUserCache(ttl time.Duration) *userCache {
	if ttl <= 0 {
		ttl = defaultUserCacheTTL
	}
	return &userCache{
		entries: make(map[string]cachedUser),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *userCache) get(id string) (*bot.User, bool) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expires) {
		return nil, false
	}
	return e.user, true
}

func (c *userCache) put(u *bot.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	// Expired entries are dropped on write; the cache never grows past the
	// number of users seen within one TTL.
	for id, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, id)
		}
	}
	c.entries[u.ID] = cachedUser{user: u, expires: now.Add(c.ttl)}
}

func (c *userCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
