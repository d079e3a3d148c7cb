package membership

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/opaudit/opaudit/pkg/domain"
	"github.com/opaudit/opaudit/pkg/telemetry"
)

// MemberLister is the slice of the authority client the cache needs.
type MemberLister interface {
	ListGroupMembers(ctx context.Context, groupID domain.GroupID) []domain.User
}

// Cache holds group memberships keyed by group ID so per-vault group-access
// resolution is a map lookup instead of a repeated authority call.
//
// The cache has two phases. Build is the write phase: one concurrent fetch
// per group, each writing a distinct key under the mutex. Once Build returns
// the cache is read-only, which is what makes the lock-free Members reads
// during concurrent vault resolution safe. Members must not be called before
// Build has returned.
type Cache struct {
	lister MemberLister
	logger telemetry.Logger

	mu      sync.Mutex
	members map[domain.GroupID][]domain.User
}

func NewCache(lister MemberLister, logger telemetry.Logger) *Cache {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Cache{
		lister:  lister,
		logger:  logger,
		members: make(map[domain.GroupID][]domain.User),
	}
}

// Build fetches every group's membership concurrently. Groups without a
// usable ID are skipped and logged as anomalies. A failed fetch degrades to
// an empty member list for that group (the lister already maps failures to
// empty), so Build only fails when the context is cancelled.
func (c *Cache) Build(ctx context.Context, groups []domain.Group, concurrency int) error {
	g, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	for _, group := range groups {
		if group.ID == "" {
			c.logger.Warn(ctx, "skipping group without an identifier", map[string]any{
				"group_name": group.Name,
			})
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			members := c.lister.ListGroupMembers(ctx, group.ID)
			c.mu.Lock()
			c.members[group.ID] = members
			c.mu.Unlock()
			return nil
		})
	}

	return g.Wait()
}

// Members returns the cached membership for a group. A group the cache never
// saw behaves exactly like a group with no members.
func (c *Cache) Members(groupID domain.GroupID) []domain.User {
	return c.members[groupID]
}

// Len returns the number of cached groups.
func (c *Cache) Len() int {
	return len(c.members)
}
