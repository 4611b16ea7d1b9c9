package access

import (
	"context"
	"sync"

	"github.com/poiesic/tensorvault/storage"
	"golang.org/x/sync/singleflight"
)

// membershipCache is a read-through cache of each user's groups.
// Concurrent misses for the same user share one store read. The generation
// counter keeps a load that raced an invalidation from repopulating the
// entry with stale membership.
type membershipCache struct {
	repo   storage.GroupRepository
	flight singleflight.Group

	mu     sync.RWMutex
	groups map[string][]string
	gen    map[string]uint64
}

func newMembershipCache(repo storage.GroupRepository) *membershipCache {
	return &membershipCache{
		repo:   repo,
		groups: make(map[string][]string),
		gen:    make(map[string]uint64),
	}
}

// get returns the user's sorted groups. The slice is shared and must not be
// modified.
func (c *membershipCache) get(ctx context.Context, userID string) ([]string, error) {
	c.mu.RLock()
	groups, ok := c.groups[userID]
	gen := c.gen[userID]
	c.mu.RUnlock()
	if ok {
		membershipLookups.WithLabelValues("hit").Inc()
		return groups, nil
	}
	membershipLookups.WithLabelValues("miss").Inc()

	v, err, _ := c.flight.Do(userID, func() (any, error) {
		loaded, err := c.repo.GetUserGroups(ctx, userID)
		if err != nil {
			return nil, err
		}
		if loaded == nil {
			loaded = []string{}
		}
		c.mu.Lock()
		if c.gen[userID] == gen {
			c.groups[userID] = loaded
		}
		c.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// invalidate drops the user's entry. Loads already in flight are forgotten
// so later callers read the store again.
func (c *membershipCache) invalidate(userID string) {
	c.mu.Lock()
	delete(c.groups, userID)
	c.gen[userID]++
	c.mu.Unlock()
	c.flight.Forget(userID)
}

// clear drops every entry.
func (c *membershipCache) clear() {
	c.mu.Lock()
	for userID := range c.groups {
		c.flight.Forget(userID)
		c.gen[userID]++
	}
	clear(c.groups)
	c.mu.Unlock()
}
