package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DecisionCache stores resolved permission decisions in Redis with a short
// TTL. A nil cache (or nil client) degrades to pass-through.
type DecisionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDecisionCache instantiates the cache helper.
func NewDecisionCache(client *redis.Client, ttl time.Duration) *DecisionCache {
	return &DecisionCache{client: client, ttl: ttl}
}

func decisionKey(userID uuid.UUID, permission string) string {
	return fmt.Sprintf("perm:%s:%s", userID, permission)
}

// Get returns the cached decision. The second return is false on a miss.
func (c *DecisionCache) Get(ctx context.Context, userID uuid.UUID, permission string) (bool, bool) {
	if c == nil || c.client == nil {
		return false, false
	}
	val, err := c.client.Get(ctx, decisionKey(userID, permission)).Result()
	if err != nil {
		return false, false
	}
	return val == "1", true
}

// Set stores a decision for the configured TTL.
func (c *DecisionCache) Set(ctx context.Context, userID uuid.UUID, permission string, granted bool) {
	if c == nil || c.client == nil {
		return
	}
	val := "0"
	if granted {
		val = "1"
	}
	_ = c.client.Set(ctx, decisionKey(userID, permission), val, c.ttl).Err()
}

// InvalidateUser drops every cached decision for the user. Grants change
// rarely; a full per-user sweep keeps the invariant simple.
func (c *DecisionCache) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}
	pattern := fmt.Sprintf("perm:%s:*", userID)
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
