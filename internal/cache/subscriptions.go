package cache

import "github.com/frkn-dev/pony/internal/model"

// PutSubscription inserts or replaces a subscription by id.
func (c *Cache) PutSubscription(sub model.Subscription) {
	c.subscriptions.Store(sub.ID, sub)
}

// GetSubscription looks up a subscription by id.
func (c *Cache) GetSubscription(id string) (model.Subscription, bool) {
	return c.subscriptions.Load(id)
}

// DeleteSubscription removes a subscription from the cache.
func (c *Cache) DeleteSubscription(id string) {
	c.subscriptions.Delete(id)
}

// RangeSubscriptions iterates cached subscriptions in no particular order.
func (c *Cache) RangeSubscriptions(fn func(model.Subscription) bool) {
	c.subscriptions.Range(func(_ string, sub model.Subscription) bool {
		return fn(sub)
	})
}

// SubscriptionCount reports the number of cached subscriptions.
func (c *Cache) SubscriptionCount() int {
	return c.subscriptions.Size()
}
