package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/wilesp/plumbflow-platform/internal/pricing"
)

const RateLimitWindowTTL = time.Minute

func QuoteKey(leadID string) string {
	return fmt.Sprintf("quote:lead:%s", leadID)
}

func RateLimitKey(userID int64) string {
	return fmt.Sprintf("ratelimit:user:%d", userID)
}

func LockKey(name string) string {
	return fmt.Sprintf("lock:%s", name)
}

func (c *Cache) SetQuote(ctx context.Context, leadID string, quote *pricing.Breakdown, ttl time.Duration) error {
	return c.Set(ctx, QuoteKey(leadID), quote, ttl)
}

func (c *Cache) GetQuote(ctx context.Context, leadID string) (*pricing.Breakdown, error) {
	var quote pricing.Breakdown
	if err := c.Get(ctx, QuoteKey(leadID), &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

func (c *Cache) DeleteQuote(ctx context.Context, leadID string) error {
	return c.Delete(ctx, QuoteKey(leadID))
}

func (c *Cache) IncrementUserRateLimit(ctx context.Context, userID int64) (int64, error) {
	return c.IncrementWithExpiry(ctx, RateLimitKey(userID), RateLimitWindowTTL)
}
